package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFailureReason(t *testing.T) {
	long := strings.Repeat("x", 600)
	accented := "x" + strings.Repeat("é", 400)
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"first line", errors.New("bad gateway\nat line 3"), "bad gateway"},
		{"truncated", errors.New(long), long[:maxErrorLength]},
		{"truncated on rune boundary", errors.New(accented), "x" + strings.Repeat("é", 255)},
		{"cancelled", fmt.Errorf("call model: %w", context.Canceled), reasonInterrupted},
		{"deadline", fmt.Errorf("call model: %w", context.DeadlineExceeded), reasonTimedOut},
		{"panic", &panicError{value: "boom"}, reasonPanicked},
		{"blank", errors.New("\nonly trailing"), reasonPanicked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := failureReason(tt.err)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if !utf8.ValidString(got) {
				t.Errorf("expected valid UTF-8, got %q", got)
			}
		})
	}
}

func TestEncodeResult(t *testing.T) {
	raw, err := encodeResult(json.RawMessage(`{"a":1}`))
	if err != nil || string(raw) != `{"a":1}` {
		t.Errorf("expected raw JSON to pass through, got %s, %v", raw, err)
	}
	raw, err = encodeResult("text")
	if err != nil || string(raw) != `"text"` {
		t.Errorf("expected string to be encoded, got %s, %v", raw, err)
	}
	raw, err = encodeResult([]byte("not json"))
	if err != nil || !strings.HasPrefix(string(raw), `"`) {
		t.Errorf("expected invalid bytes to be base64 encoded, got %s, %v", raw, err)
	}
	if _, err := encodeResult(make(chan int)); err == nil {
		t.Error("expected error for unsupported type")
	}
}
