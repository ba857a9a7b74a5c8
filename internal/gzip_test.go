package internal

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestGunzipRequest(t *testing.T) {
	payload := bytes.Repeat([]byte("powhash"), 1024)

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	if _, err := gw.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	var got []byte
	h := GunzipRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		got, err = io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
	}))

	t.Run("gzip body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(compressed.Bytes()))
		req.Header.Set("Content-Encoding", "gzip")
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)

		if !bytes.Equal(got, payload) {
			t.Errorf("decompressed body mismatch: got %d bytes, want %d", len(got), len(payload))
		}
	})

	t.Run("plain body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)

		if !bytes.Equal(got, payload) {
			t.Error("plain body was modified")
		}
	})

	t.Run("broken gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("nope")))
		req.Header.Set("Content-Encoding", "gzip")
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)

		if rw.Code != http.StatusBadRequest {
			t.Errorf("wanted status %d, got %d", http.StatusBadRequest, rw.Code)
		}
	})
}
