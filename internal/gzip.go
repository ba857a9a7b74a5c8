package internal

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GunzipRequest transparently decompresses request bodies sent with
// Content-Encoding: gzip so that large inputs can be uploaded compressed.
// Handlers must still bound the body with http.MaxBytesReader, which then
// limits the decompressed size.
func GunzipRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			slog.Debug("can't read gzip request body", "err", err)
			http.Error(w, "request body is not valid gzip", http.StatusBadRequest)
			return
		}
		defer gz.Close()

		r.Header.Del("Content-Encoding")
		r.ContentLength = -1
		r.Body = gz
		next.ServeHTTP(w, r)
	})
}
