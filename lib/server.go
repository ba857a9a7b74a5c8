// Package lib is the powhashd HTTP surface: it exposes the synchronous and
// asynchronous hash operations as an API on top of lib/binding and
// lib/dispatch.
package lib

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TecharoHQ/powhash"
	"github.com/TecharoHQ/powhash/internal"
	"github.com/TecharoHQ/powhash/lib/binding"
	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
	"github.com/TecharoHQ/powhash/lib/store"
)

var (
	ErrNoDispatcher = errors.New("lib: Options.Dispatcher is required")
	ErrNoStore      = errors.New("lib: Options.Store is required")

	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powhash_api_requests_total",
		Help: "Number of API requests by route, method and status code",
	}, []string{"route", "method", "code"})

	apiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powhash_api_request_duration_seconds",
		Help:    "Time taken to answer API requests",
		Buckets: prometheus.ExponentialBucketsRange(0.0005, 30, 16),
	}, []string{"route", "method", "code"})

	hashedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powhash_hashed_bytes_total",
		Help: "Number of input bytes accepted for hashing over the API",
	}, []string{"variant"})
)

type Options struct {
	// Dispatcher runs asynchronous jobs. Its engine is also used for the
	// synchronous routes.
	Dispatcher *dispatch.Dispatcher

	// Store keeps job records for GET /api/jobs/{id}.
	Store store.Interface

	// ResultTTL is how long a job record stays readable. Defaults to
	// powhash.DefaultResultTTL.
	ResultTTL time.Duration

	// MaxBodySize caps the decompressed input size. Defaults to
	// powhash.DefaultMaxBodySize.
	MaxBodySize int64

	// RateLimiter limits API requests per client. Nil disables limiting.
	RateLimiter *internal.RateLimiter

	// LoadAvg, when set, adds the host load average to /healthz. The caller
	// runs it.
	LoadAvg *internal.LoadAvg

	BasePrefix string
}

type Server struct {
	mux     *http.ServeMux
	engine  *digest.Engine
	disp    *dispatch.Dispatcher
	binding *binding.Binding
	jobs    *store.JSON[JobRecord]
	opts    Options
}

func New(opts Options) (*Server, error) {
	if opts.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	if opts.Store == nil {
		return nil, ErrNoStore
	}

	if opts.ResultTTL <= 0 {
		opts.ResultTTL = powhash.DefaultResultTTL
	}

	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = powhash.DefaultMaxBodySize
	}

	powhash.BasePrefix = opts.BasePrefix

	engine := opts.Dispatcher.Engine()

	result := &Server{
		engine:  engine,
		disp:    opts.Dispatcher,
		binding: binding.New(engine, opts.Dispatcher),
		jobs: &store.JSON[JobRecord]{
			Underlying: opts.Store,
			Prefix:     "job:",
		},
		opts: opts,
	}

	mux := http.NewServeMux()

	registerWithPrefix := func(route, pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		basePrefix := strings.TrimSuffix(powhash.BasePrefix, "/")

		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		labels := prometheus.Labels{"route": route}
		handler = promhttp.InstrumentHandlerDuration(
			apiDuration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(apiRequests.MustCurryWith(labels), handler),
		)

		mux.Handle(method+basePrefix+pattern, handler)
	}

	api := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = internal.GunzipRequest(h)
		if opts.RateLimiter != nil {
			handler = opts.RateLimiter.Middleware(handler)
		}
		return handler
	}

	registerWithPrefix("hash", powhash.APIPrefix+"hash", api(result.Hash), http.MethodPost)
	registerWithPrefix("jobs_submit", powhash.APIPrefix+"jobs", api(result.SubmitJob), http.MethodPost)
	registerWithPrefix("jobs_get", powhash.APIPrefix+"jobs/{id}", api(result.GetJob), http.MethodGet)
	registerWithPrefix("verify", powhash.APIPrefix+"verify", api(result.Verify), http.MethodPost)
	registerWithPrefix("rpc", powhash.APIPrefix+"rpc", api(result.RPC), http.MethodPost)
	registerWithPrefix("algorithms", powhash.APIPrefix+"algorithms", http.HandlerFunc(result.Algorithms), http.MethodGet)
	registerWithPrefix("healthz", "/healthz", http.HandlerFunc(result.Healthz), http.MethodGet)

	result.mux = mux

	return result, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
