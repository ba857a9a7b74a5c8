package lib

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TecharoHQ/powhash/lib/digest"
)

func TestVerify(t *testing.T) {
	srv := spawnPowhash(t, Options{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	d := digest.Keccak256([]byte("hunter"))
	var wrong digest.Digest
	wrong[0] = ^d[0]

	for _, tt := range []struct {
		name   string
		query  string
		status int
	}{
		{name: "valid", query: "?fast=true&digest=" + d.String(), status: http.StatusOK},
		{name: "missing-digest", query: "?fast=true", status: http.StatusBadRequest},
		{name: "bad-difficulty", query: "?fast=true&difficulty=-1&digest=" + d.String(), status: http.StatusBadRequest},
		{name: "mismatch", query: "?fast=true&digest=" + wrong.String(), status: http.StatusUnprocessableEntity},
		{name: "too-hard", query: "?fast=true&difficulty=256&digest=" + d.String(), status: http.StatusUnprocessableEntity},
	} {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, "/api/verify"+tt.query, strings.NewReader("hunter"))
			if resp.StatusCode != tt.status {
				t.Fatalf("wanted %d, got %d", tt.status, resp.StatusCode)
			}

			if tt.status != http.StatusOK {
				if er := decodeError(t, resp); er.Error == "" || strings.Contains(er.Error, d.String()) {
					t.Errorf("error response should carry only the public reason: %+v", er)
				}
				return
			}

			var body struct {
				Valid     bool          `json:"valid"`
				Algorithm string        `json:"algorithm"`
				Digest    digest.Digest `json:"digest"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}

			if !body.Valid || body.Algorithm != digest.DefaultFast || body.Digest != d {
				t.Errorf("unexpected response: %+v", body)
			}
		})
	}
}
