package lib

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TecharoHQ/powhash"
	"github.com/TecharoHQ/powhash/internal"
	"github.com/TecharoHQ/powhash/lib/binding"
	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
	"github.com/TecharoHQ/powhash/lib/store"
	"github.com/TecharoHQ/powhash/lib/verify"
)

const (
	headerAlgorithm = "X-Powhash-Algorithm"
	headerDigest    = "X-Powhash-Digest"
)

type errorResponse struct {
	Error    string `json:"error"`
	Position int    `json:"position,omitempty"`
}

// statusFor maps the error kinds of the hash pipeline onto HTTP status codes.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	var verr *verify.Error

	switch {
	case errors.As(err, &verr):
		return verr.StatusCode
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, binding.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, lg *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		lg.Error("failed to encode response", "err", err)
	}
}

func respondWithError(w http.ResponseWriter, lg *slog.Logger, err error) {
	status := statusFor(err)

	resp := errorResponse{Error: err.Error()}

	var ae *binding.ArgumentError
	if errors.As(err, &ae) {
		resp.Position = ae.Position
	}

	var verr *verify.Error
	if errors.As(err, &verr) {
		resp.Error = verr.PublicReason
	}

	switch {
	case status >= 500 && status != http.StatusServiceUnavailable:
		lg.Error("request failed", "err", err)
	default:
		lg.Debug("request rejected", "err", err, "status", status)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, lg, status, resp)
}

// fastParam reads the optional fast query parameter. It is argument 2 of the
// hash operations.
func fastParam(r *http.Request) (bool, error) {
	val := r.URL.Query().Get("fast")
	if val == "" {
		return false, nil
	}

	fast, err := strconv.ParseBool(val)
	if err != nil {
		return false, &binding.ArgumentError{Position: 2, Reason: "argument 2 should be a boolean"}
	}

	return fast, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodySize))
}

// Hash computes the digest of the request body on the request goroutine and
// answers with the 32 raw digest bytes.
func (s *Server) Hash(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	fast, err := fastParam(r)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	data, err := s.readBody(w, r)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	v := digest.VariantOf(fast)
	lg = lg.With("variant", v, "size", len(data), "fingerprint", internal.Fingerprint(data))
	hashedBytes.WithLabelValues(v.String()).Add(float64(len(data)))

	d, err := s.binding.Hash(data, fast)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	lg.Debug("hashed", "digest", d)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(digest.Size))
	w.Header().Set(headerAlgorithm, s.engine.Algorithm(v))
	w.Header().Set(headerDigest, d.String())
	w.WriteHeader(http.StatusOK)
	w.Write(d[:])
}

// Verify checks a proof-of-work claim about the request body. The claim is
// carried in the digest, difficulty and fast query parameters.
func (s *Server) Verify(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	data, err := s.readBody(w, r)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	req, err := verify.ParseRequest(r, data)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	lg = lg.With("variant", req.Variant, "size", len(data), "fingerprint", internal.Fingerprint(data))
	hashedBytes.WithLabelValues(req.Variant.String()).Add(float64(len(data)))

	if err := verify.Verify(s.engine, lg, req); err != nil {
		respondWithError(w, lg, err)
		return
	}

	writeJSON(w, lg, http.StatusOK, struct {
		Valid     bool          `json:"valid"`
		Algorithm string        `json:"algorithm"`
		Digest    digest.Digest `json:"digest"`
	}{
		Valid:     true,
		Algorithm: s.engine.Algorithm(req.Variant),
		Digest:    req.Claimed,
	})
}

// Algorithms lists the registered transforms and which ones this server uses.
func (s *Server) Algorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, internal.GetRequestLogger(r), http.StatusOK, struct {
		Fast      string   `json:"fast"`
		Full      string   `json:"full"`
		Available []string `json:"available"`
	}{
		Fast:      s.engine.Algorithm(digest.Fast),
		Full:      s.engine.Algorithm(digest.Full),
		Available: digest.Algorithms(),
	})
}

// Healthz reports liveness together with a snapshot of the worker pool and,
// when sampled, the host load average.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	var load *internal.LoadStats
	if s.opts.LoadAvg != nil {
		stats := s.opts.LoadAvg.Stats()
		load = &stats
	}

	writeJSON(w, internal.GetRequestLogger(r), http.StatusOK, struct {
		Status     string              `json:"status"`
		Version    string              `json:"version"`
		Dispatcher dispatch.Stats      `json:"dispatcher"`
		Load       *internal.LoadStats `json:"load,omitempty"`
	}{
		Status:     "ok",
		Version:    powhash.Version,
		Dispatcher: s.disp.Stats(),
		Load:       load,
	})
}
