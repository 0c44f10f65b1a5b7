package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAppErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError("INTERNAL", "lookup failed", http.StatusInternalServerError, cause)

	if !errors.Is(err, cause) {
		t.Fatal("AppError must unwrap to its cause")
	}
	if err.Error() != "connection refused" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !IsAppError(fmt.Errorf("handler: %w", err)) {
		t.Fatal("IsAppError must see through wrapping")
	}
	if IsAppError(cause) {
		t.Fatal("plain errors are not AppErrors")
	}
}

func TestRenderError(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, NewAppError("UNSUPPORTED_CURRENCY", "currency not supported", http.StatusBadRequest, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "UNSUPPORTED_CURRENCY" || body.Message != "currency not supported" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRenderErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, errors.New("pq: relation does not exist"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "INTERNAL" || body.Message != "internal error" {
		t.Fatalf("internal detail must not leak, got %+v", body)
	}
}
