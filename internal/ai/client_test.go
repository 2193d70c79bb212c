package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionBody(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":"` + text + `"}}]}`
}

func TestClientCompleteSuccess(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Canon XYZ - fast")))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-4o-mini", 3, 5*time.Second)
	text, err := c.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Canon XYZ - fast" {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestClientRetriesOn500ThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error":{"message":"upstream blew up"}}`, http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m", 3, 5*time.Second)
	text, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" || calls != 2 {
		t.Errorf("text=%q calls=%d", text, calls)
	}
}

func TestClientDoesNotRetryOn400(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m", 3, 5*time.Second)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected single attempt, got %d", calls)
	}
	if !strings.Contains(err.Error(), "bad request") {
		t.Errorf("error should carry upstream message: %v", err)
	}
}

func TestClientExhaustsAttemptsOn429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "m", 2, 5*time.Second)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
	if !strings.Contains(err.Error(), "attempts exhausted") {
		t.Errorf("error = %v", err)
	}
}

func TestClientHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("k", srv.URL, "m", 3, 5*time.Second)
	if _, err := c.Complete(ctx, "s", "u"); err == nil {
		t.Fatal("expected context error")
	}
}
