package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoDecodesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New([]string{srv.URL}, time.Second, time.Second, nil)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.Do(context.Background(), "GET", "/thing", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK {
		t.Error("expected decoded response ok=true")
	}
}

func TestDoNoContentReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New([]string{srv.URL}, time.Second, time.Second, nil)
	err := c.Do(context.Background(), "GET", "/withdraw", nil, nil)
	if !errors.Is(err, NoContent) {
		t.Errorf("expected NoContent, got %v", err)
	}
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad input"))
	}))
	defer srv.Close()

	c := New([]string{srv.URL}, time.Second, time.Second, nil)
	err := c.Do(context.Background(), "POST", "/work", map[string]any{"x": 1}, nil)

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %v", err)
	}
	if clientErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", clientErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("4xx should not be retried, saw %d attempts", attempts)
	}
}

func TestDoServerErrorRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New([]string{srv.URL}, time.Second, time.Second, nil)
	c.MaxAttempts = 5
	err := c.Do(context.Background(), "PUT", "/work/1", map[string]any{"x": 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts, saw %d", attempts)
	}
}
