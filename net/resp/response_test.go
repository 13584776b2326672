package resp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ncobase/genqueue/ecode"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestSuccessWritesDataVerbatim(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, map[string]string{"jobId": "job_1", "status": "queued"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := decode(t, w)
	if body["jobId"] != "job_1" || body["status"] != "queued" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestFailPaymentRequired(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(w, PaymentRequired("Quota exceeded", "daily limit reached"))

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	body := decode(t, w)
	if body["error"] != "Quota exceeded" {
		t.Errorf("expected error title, got %v", body["error"])
	}
	if body["message"] != "daily limit reached" {
		t.Errorf("expected message, got %v", body["message"])
	}
	if int(body["code"].(float64)) != ecode.QuotaExceeded {
		t.Errorf("expected quota code, got %v", body["code"])
	}
}

func TestFailDefaults(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(w, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	Fail(w, NotFound("job not found"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "Not Found" {
		t.Errorf("expected status text as error title, got %v", body["error"])
	}
}
