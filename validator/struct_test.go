package validator

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Subject    string `json:"subject" validate:"required,max=20"`
	Difficulty string `json:"difficulty" validate:"required,oneof=Easy Moderate Difficult"`
	Note       string `json:"note,omitempty" validate:"max=5"`
}

func TestValidateStruct_Valid(t *testing.T) {
	if err := ValidateStruct(&sample{Subject: "Civil Law", Difficulty: "Easy"}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateStruct_FieldErrors(t *testing.T) {
	err := ValidateStruct(&sample{Difficulty: "Impossible", Note: "too long"})
	var fe Errors
	if !errors.As(err, &fe) {
		t.Fatalf("expected Errors, got %T (%v)", err, err)
	}
	if len(fe) != 3 {
		t.Errorf("expected 3 field errors, got %v", fe)
	}
	if fe["subject"] != "The field 'subject' is required." {
		t.Errorf("unexpected subject message %q", fe["subject"])
	}
	if fe["difficulty"] != "The field 'difficulty' must be one of: Easy, Moderate, Difficult." {
		t.Errorf("unexpected difficulty message %q", fe["difficulty"])
	}
	if !strings.Contains(fe["note"], "no longer than 5") {
		t.Errorf("unexpected note message %q", fe["note"])
	}
	if !strings.HasPrefix(err.Error(), "The field 'difficulty'") {
		t.Errorf("expected messages sorted by field, got %q", err.Error())
	}
}
