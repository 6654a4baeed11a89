package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aria-labs/ariactl/internal/testutil/testlog"
)

func TestStaticToken(t *testing.T) {
	testlog.Start(t)
	if _, err := (StaticToken{}).Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	got, err := (StaticToken{Value: "tok"}).Token(context.Background())
	if err != nil || got != "tok" {
		t.Fatalf("unexpected token: %q err=%v", got, err)
	}
}

func TestClientCredentialsFetchesAndCaches(t *testing.T) {
	testlog.Start(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type: %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("client_id") != "aria-client" {
			t.Errorf("unexpected client_id: %q", r.PostForm.Get("client_id"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"issued-token","expires_in":3600}`))
	}))
	defer srv.Close()

	src := &ClientCredentials{
		AuthURL:      srv.URL,
		ClientID:     "aria-client",
		ClientSecret: "s3cret",
	}
	for range 3 {
		got, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if got != "issued-token" {
			t.Fatalf("unexpected token: %q", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("token not cached: %d fetches", calls.Load())
	}
}

func TestClientCredentialsRejectedStatus(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad client", http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := &ClientCredentials{AuthURL: srv.URL, ClientID: "aria-client"}
	if _, err := src.Token(context.Background()); !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("expected ErrTokenRejected, got %v", err)
	}
}

func TestClientCredentialsEmptyAccessToken(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":""}`))
	}))
	defer srv.Close()

	src := &ClientCredentials{AuthURL: srv.URL, ClientID: "aria-client"}
	if _, err := src.Token(context.Background()); !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("expected ErrTokenRejected, got %v", err)
	}
}

func TestClientCredentialsMissingConfig(t *testing.T) {
	testlog.Start(t)
	src := &ClientCredentials{}
	if _, err := src.Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}
