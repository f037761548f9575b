package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/services"
)

func TestReadJSON(t *testing.T) {
	type input struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"summer cup"}`, ""},
		{"empty body", ``, "body must not be empty"},
		{"malformed", `{"name":`, "badly-formed JSON"},
		{"unknown field", `{"nmae":"x"}`, "unknown key"},
		{"wrong type", `{"name":5}`, `incorrect JSON type for field "name"`},
		{"trailing value", `{"name":"x"}{"name":"y"}`, "single JSON value"},
	}

	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(c.body))
		rr := httptest.NewRecorder()
		var dst input
		err := readJSON(rr, req, &dst)
		if c.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", c.name, err)
			}
			if dst.Name != "summer cup" {
				t.Fatalf("%s: decoded %q", c.name, dst.Name)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), c.wantErr) {
			t.Fatalf("%s: expected %q in error, got %v", c.name, c.wantErr, err)
		}
	}
}

func TestReadJSONBodyTooLarge(t *testing.T) {
	big := fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 2_000_000))
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(big)))
	rr := httptest.NewRecorder()
	var dst struct {
		Name string `json:"name"`
	}
	err := readJSON(rr, req, &dst)
	if err == nil || !strings.Contains(err.Error(), "larger than") {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := writeJSON(rr, http.StatusCreated, jsonResponse{"id": 7}, http.Header{"Location": []string{"/tournaments/7"}}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if rr.Code != http.StatusCreated {
		t.Fatalf("status %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Location") != "/tournaments/7" {
		t.Fatalf("custom header lost, got %q", rr.Header().Get("Location"))
	}
	var body map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["id"] != 7 {
		t.Fatalf("body %v", body)
	}
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{repositories.ErrMatchNotFound, http.StatusNotFound},
		{repositories.ErrTournamentNotFound, http.StatusNotFound},
		{repositories.ErrMatchVersionConflict, http.StatusConflict},
		{services.ErrMatchNotInState, http.StatusConflict},
		{services.ErrAlreadyCheckedIn, http.StatusConflict},
		{services.ErrInvalidScore, http.StatusBadRequest},
		{services.ErrDrawNotAllowed, http.StatusBadRequest},
		{services.ErrNotAMatchParticipant, http.StatusForbidden},
		{services.ErrConfirmBySubmitter, http.StatusForbidden},
		{errors.New("database on fire"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", services.ErrTournamentNotLive), http.StatusBadRequest},
	}

	for _, c := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		mapServiceErrorToHTTP(rr, req, c.err)
		if rr.Code != c.want {
			t.Fatalf("%v: expected %d, got %d", c.err, c.want, rr.Code)
		}
	}
}
