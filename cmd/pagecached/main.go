// pagecached sits between the reverse proxy and the application: it
// forwards requests to the upstream app and writes admitted responses
// into the shared store the proxy serves cache hits from.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edgecache-io/pagecache/internal/config"
	"github.com/edgecache-io/pagecache/pkg/cache"
	"github.com/edgecache-io/pagecache/pkg/logging"
	"github.com/edgecache-io/pagecache/pkg/lookup"
	"github.com/edgecache-io/pagecache/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "pagecached.yaml", "Path to config file")
	flag.Parse()

	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger := logging.Setup(logging.DefaultConfig())
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	}).With().Str("component", "pagecached").Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to shared store")

	var records lookup.Recorder
	if cfg.LookupDB != "" {
		store, err := lookup.Open(ctx, cfg.LookupDB)
		if err != nil {
			return err
		}
		defer store.Close()
		records = store
		logger.Info().Str("path", cfg.LookupDB).Msg("Lookup-record store open")
	}

	version := cfg.Cache.Version
	writer, err := cache.NewWriter(
		cache.NewRedisStore(redisClient),
		records,
		cache.WriterConfig{
			TTL:                     cfg.TTL(),
			Version:                 func(*http.Request) string { return version },
			KeyPrefix:               cfg.Cache.KeyPrefix,
			LookupIdentifier:        cfg.Cache.LookupIdentifier,
			SupplementaryIdentifier: cfg.Cache.SupplementaryIdentifier,
		},
		logging.NewLogger("writer"),
	)
	if err != nil {
		return err
	}

	mw, err := middleware.New(middleware.Config{
		Policy:        cfg.Policy(),
		Writer:        writer,
		VersionCookie: cfg.Cache.VersionCookie,
		Logger:        logging.NewLogger("middleware"),
	})
	if err != nil {
		return err
	}

	handler, err := buildRouter(cfg.Upstream, mw)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: cfg.Listen, Handler: handler}
	metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: metricsHandler()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Listen).Str("upstream", cfg.Upstream).Msg("Serving")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsListen).Msg("Serving metrics")
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if merr := metricsServer.Shutdown(shutdownCtx); err == nil {
			err = merr
		}

		// Let in-flight cache writes land before the store client closes.
		mw.Drain()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildRouter assembles the serving chain: health endpoint plus the
// caching middleware wrapped around a reverse proxy to the upstream
// application.
func buildRouter(upstream string, mw *middleware.Middleware) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", healthHandler)
	r.Handle("/*", mw.Wrap(proxy))
	return r, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
