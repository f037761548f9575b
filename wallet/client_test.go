package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func creditReq() CreditRequest {
	return CreditRequest{
		AccountRef:     "acc-1",
		Amount:         5000,
		IdempotencyKey: "key-1",
		Reference:      "tournament 1 payout",
	}
}

func TestCreditSuccess(t *testing.T) {
	var got CreditRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/credits" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Fatal("missing request id")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", time.Second)
	outcome, err := client.Credit(context.Background(), creditReq())
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s", outcome)
	}
	if got.AccountRef != "acc-1" || got.Amount != 5000 || got.IdempotencyKey != "key-1" {
		t.Fatalf("request body wrong: %+v", got)
	}
}

func TestCreditDuplicateKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", time.Second)
	outcome, err := client.Credit(context.Background(), creditReq())
	if err != nil {
		t.Fatalf("duplicate must not error: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}
}

func TestCreditServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", time.Second)
	outcome, err := client.Credit(context.Background(), creditReq())
	if outcome != OutcomeFailure {
		t.Fatalf("expected failure outcome, got %s", outcome)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCreditRejectionCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"status": "rejected", "detail": "account frozen"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", time.Second)
	outcome, err := client.Credit(context.Background(), creditReq())
	if outcome != OutcomeFailure {
		t.Fatalf("expected failure outcome, got %s", outcome)
	}
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Fatalf("rejection is not a transport failure: %v", err)
	}
}

func TestReleaseToleratesAlreadyReleased(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/escrows/esc-9/release" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", time.Second)
	if err := client.Release(context.Background(), "esc-9"); err != nil {
		t.Fatalf("409 on release should be tolerated: %v", err)
	}
}

func TestReleaseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", time.Second)
	if err := client.Release(context.Background(), "esc-9"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
