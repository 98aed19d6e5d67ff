package captcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/certbridge/auth-service/internal/core/port"
	"github.com/certbridge/auth-service/internal/infra/config"
)

func TestVerifyAcceptsHighScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("response"); got != "challenge-token" {
			t.Fatalf("unexpected token: %s", got)
		}
		if got := r.PostFormValue("remoteip"); got != "203.0.113.9" {
			t.Fatalf("unexpected remote ip: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"score":0.9}`))
	}))
	defer server.Close()

	client := NewClient(config.CaptchaSettings{
		VerifyURL: server.URL,
		Secret:    "verifier-secret",
		MinScore:  0.5,
	}, nil)

	result, err := client.Verify(context.Background(), "challenge-token", "203.0.113.9")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Accepted {
		t.Fatal("expected high-score verification to be accepted")
	}
	if result.Score != 0.9 {
		t.Fatalf("Score = %v, want 0.9", result.Score)
	}
}

func TestVerifyPreservesAcceptanceForLowScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"score":0.2}`))
	}))
	defer server.Close()

	client := NewClient(config.CaptchaSettings{
		VerifyURL: server.URL,
		Secret:    "verifier-secret",
		MinScore:  0.5,
	}, nil)

	// The client reports the remote verdict untouched; score policy belongs
	// to the login pipeline so it can tell a low score from a rejection.
	result, err := client.Verify(context.Background(), "challenge-token", "")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Accepted {
		t.Fatal("accepted challenge reported as rejected")
	}
	if result.Score != 0.2 {
		t.Fatalf("Score = %v, want 0.2", result.Score)
	}
}

func TestVerifyReportsRejectedChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"score":0.0,"error-codes":["invalid-input-response"]}`))
	}))
	defer server.Close()

	client := NewClient(config.CaptchaSettings{
		VerifyURL: server.URL,
		Secret:    "verifier-secret",
		MinScore:  0.5,
	}, nil)

	result, err := client.Verify(context.Background(), "challenge-token", "")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Accepted {
		t.Fatal("rejected challenge reported as accepted")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "invalid-input-response" {
		t.Fatalf("Errors = %v, want [invalid-input-response]", result.Errors)
	}
}

func TestVerifyMapsTimeoutToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true,"score":0.9}`))
	}))
	defer server.Close()

	client := NewClient(config.CaptchaSettings{
		VerifyURL: server.URL,
		Secret:    "verifier-secret",
		MinScore:  0.5,
		Timeout:   20 * time.Millisecond,
	}, nil)

	_, err := client.Verify(context.Background(), "challenge-token", "")
	if !errors.Is(err, port.ErrCaptchaTimeout) {
		t.Fatalf("expected ErrCaptchaTimeout, got %v", err)
	}
}

func TestVerifyMapsServerErrorToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.CaptchaSettings{
		VerifyURL: server.URL,
		Secret:    "verifier-secret",
		MinScore:  0.5,
	}, nil)

	_, err := client.Verify(context.Background(), "challenge-token", "")
	if !errors.Is(err, port.ErrCaptchaUnavailable) {
		t.Fatalf("expected ErrCaptchaUnavailable, got %v", err)
	}
}
