package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/TecharoHQ/powhash"
	"github.com/TecharoHQ/powhash/data"
	"github.com/TecharoHQ/powhash/internal"
	libpowhash "github.com/TecharoHQ/powhash/lib"
	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
)

var (
	basePrefix         = flag.String("base-prefix", "", "base prefix (root URL) the API is served under e.g. /powhash")
	bind               = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork        = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	configFname        = flag.String("config", "", "full path to the powhash config file (defaults to the built-in config)")
	dumpConfig         = flag.Bool("dump-config", false, "print the effective config as YAML and exit")
	extractConfig      = flag.String("extract-config", "", "if set, write the built-in config file to the specified folder and exit")
	healthcheck        = flag.Bool("healthcheck", false, "run a health check against a running powhashd")
	maxBodySize        = flag.Int64("max-body-size", powhash.DefaultMaxBodySize, "largest accepted input in bytes, after gzip decoding")
	metricsBind        = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	shutdownTimeout    = flag.Duration("shutdown-timeout", 30*time.Second, "how long to wait for in-flight requests and queued jobs on shutdown")
	slogLevel          = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode         = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	versionFlag        = flag.Bool("version", false, "print powhash version")
	workers            = flag.Int("workers", -1, "if zero or more, overrides dispatcher.workers from the config file")
)

const (
	// limiterCleanupInterval is how often idle per-client limiters are dropped.
	limiterCleanupInterval = 5 * time.Minute
	loadAvgInterval        = 15 * time.Second
)

func doHealthCheck() error {
	network, addr, err := parseBindNetFromAddr(*bind)
	if err != nil {
		return err
	}

	if network != "tcp" {
		return fmt.Errorf("healthcheck only supports tcp binds, not %s", network)
	}

	resp, err := http.Get("http://" + addr + strings.TrimSuffix(*basePrefix, "/") + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to fetch health status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("powhash", powhash.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *healthcheck {
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *extractConfig != "" {
		if err := extractEmbedFS(data.Config, *extractConfig); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Extracted built-in config to %s\n", *extractConfig)
		return
	}

	cfg, err := libpowhash.LoadConfigOrDefault(*configFname)
	if err != nil {
		log.Fatalf("can't load config: %v", err)
	}

	if *workers >= 0 {
		cfg.Dispatcher.Workers = *workers
	}

	if *dumpConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("can't render config: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := cfg.Engine.Build()
	if err != nil {
		log.Fatalf("can't build digest engine: %v", err)
	}

	// The store outlives ctx so that jobs drained during shutdown can still
	// record their results.
	st, err := cfg.Store.Build(context.WithoutCancel(ctx))
	if err != nil {
		log.Fatalf("can't open %s result store: %v", cfg.Store.Backend, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("can't close result store", "err", err)
		}
	}()

	rl, err := cfg.RateLimit.Build()
	if err != nil {
		log.Fatalf("can't build rate limiter: %v", err)
	}

	disp := dispatch.New(dispatch.Options{
		Workers:    cfg.Dispatcher.Workers,
		MaxPending: cfg.Dispatcher.MaxPending,
		Engine:     engine,
	})

	loadAvg := &internal.LoadAvg{}

	s, err := libpowhash.New(libpowhash.Options{
		Dispatcher:  disp,
		Store:       st,
		ResultTTL:   cfg.ResultTTL,
		MaxBodySize: *maxBodySize,
		RateLimiter: rl,
		LoadAvg:     loadAvg,
		BasePrefix:  *basePrefix,
	})
	if err != nil {
		log.Fatalf("can't construct lib.Server: %v", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	if *metricsBind != "" {
		g.Go(func() error {
			return metricsServer(gCtx)
		})
	}

	g.Go(func() error {
		loadAvg.Run(gCtx, loadAvgInterval)
		return nil
	})

	if rl != nil {
		g.Go(func() error {
			t := time.NewTicker(limiterCleanupInterval)
			defer t.Stop()

			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-t.C:
					slog.Debug("rate limiter cleanup", "clients", rl.Cleanup())
				}
			}
		})
	}

	srv := http.Server{Handler: s, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerURL, err := setupListener(*bindNetwork, *bind, *socketMode)
	if err != nil {
		log.Fatal(err)
	}

	stats := disp.Stats()
	slog.Info(
		"listening",
		"url", listenerURL,
		"version", powhash.Version,
		"base-prefix", *basePrefix,
		"fast", engine.Algorithm(digest.Fast),
		"full", engine.Algorithm(digest.Full),
		"workers", stats.Workers,
		"max-pending", cfg.Dispatcher.MaxPending,
		"store", cfg.Store.Backend,
		"result-ttl", cfg.ResultTTL,
		"rate-limit", cfg.RateLimit.Enabled(),
	)

	g.Go(func() error {
		<-gCtx.Done()
		c, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			return fmt.Errorf("cannot shut down: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "err", err)
	}

	slog.Info("draining queued jobs", "pending", disp.Stats().Pending)
	disp.Close()
	slog.Info("shut down")
}

func metricsServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(strings.TrimSuffix(*basePrefix, "/")+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsURL, err := setupListener(*metricsBindNetwork, *metricsBind, *socketMode)
	if err != nil {
		return err
	}
	slog.Debug("listening for metrics", "url", metricsURL)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			slog.Error("cannot shut down metrics server", "err", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func extractEmbedFS(fsys embed.FS, destDir string) error {
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return err
	}

	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, path)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o700)
		}

		embeddedData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		return os.WriteFile(destPath, embeddedData, 0o644)
	})
}
