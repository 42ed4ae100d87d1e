package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadBodyStrict(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello"))
	w := httptest.NewRecorder()

	body, err := ReadBodyStrict(w, req, 64)
	if err != nil {
		t.Fatalf("ReadBodyStrict failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("expected body %q, got %q", "hello", body)
	}
}

func TestReadBodyStrictEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	w := httptest.NewRecorder()

	if _, err := ReadBodyStrict(w, req, 64); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestReadBodyStrictTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100)))
	w := httptest.NewRecorder()

	if _, err := ReadBodyStrict(w, req, 10); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteJSON(w, http.StatusOK, map[string]bool{"received": true}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"received":true`) {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestSetSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SetSecurityHeaders(w)
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if w.Header().Get("Cache-Control") == "" {
		t.Error("missing cache-control header")
	}
}
