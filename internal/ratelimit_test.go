package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestNewRateLimiterValidation(t *testing.T) {
	for _, tt := range []struct {
		name      string
		perSecond float64
		burst     int
		exempt    []string
		err       error
	}{
		{
			name:      "valid",
			perSecond: 1,
			burst:     1,
			exempt:    []string{"10.0.0.0/8", "::1/128"},
		},
		{
			name:      "zero rate",
			perSecond: 0,
			burst:     1,
			err:       ErrBadRate,
		},
		{
			name:      "zero burst",
			perSecond: 1,
			burst:     0,
			err:       ErrBadBurst,
		},
		{
			name:      "bad exempt network",
			perSecond: 1,
			burst:     1,
			exempt:    []string{"not-a-cidr"},
			err:       ErrBadExempt,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRateLimiter(tt.perSecond, tt.burst, tt.exempt)
			if !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl, err := NewRateLimiter(0.001, 2, []string{"192.168.0.0/16"})
	if err != nil {
		t.Fatal(err)
	}

	client := netip.MustParseAddr("203.0.113.7")
	for i := range 2 {
		if !rl.Allow(client) {
			t.Fatalf("request %d should fit in the burst", i)
		}
	}

	if rl.Allow(client) {
		t.Error("third request should have been limited")
	}

	if !rl.Allow(netip.MustParseAddr("203.0.113.8")) {
		t.Error("a different client should have its own budget")
	}

	exempt := netip.MustParseAddr("192.168.1.10")
	for i := range 10 {
		if !rl.Allow(exempt) {
			t.Fatalf("exempt client was limited on request %d", i)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, err := NewRateLimiter(1, 1, []string{"127.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	if n := rl.Cleanup(); n != 0 {
		t.Errorf("new limiter tracks %d clients, want 0", n)
	}

	rl.Allow(netip.MustParseAddr("203.0.113.7"))
	rl.Allow(netip.MustParseAddr("203.0.113.8"))
	rl.Allow(netip.MustParseAddr("203.0.113.8"))
	rl.Allow(netip.MustParseAddr("127.0.0.1"))

	if n := rl.Cleanup(); n != 2 {
		t.Errorf("Cleanup() = %d, want 2 (exempt clients are not tracked)", n)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl, err := NewRateLimiter(0.001, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/hash", nil)
		req.RemoteAddr = "198.51.100.4:4321"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)

		if rw.Code != want {
			t.Errorf("wanted status %d, got %d", want, rw.Code)
		}
	}
}
