package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	"autoscuola/internal/consent"
	consenthandler "autoscuola/internal/consent/handler"
	"autoscuola/internal/platform/config"
	"autoscuola/internal/platform/httpserver"
	"autoscuola/internal/platform/kafka"
	"autoscuola/internal/platform/logger"
	"autoscuola/internal/platform/metrics"
	"autoscuola/internal/platform/postgres"
	"autoscuola/internal/platform/redis"
	ratelimit "autoscuola/internal/ratelimit/middleware"
	rlmodels "autoscuola/internal/ratelimit/models"
	"autoscuola/internal/ratelimit/store/bucket"
	contacthandler "autoscuola/internal/site/contact/handler"
	"autoscuola/internal/site/contact/publisher"
	"autoscuola/internal/site/contact/service"
	contactstore "autoscuola/internal/site/contact/store"
	"autoscuola/internal/site/fragments"
	"autoscuola/internal/site/pages"
	"autoscuola/internal/site/paths"
	httptransport "autoscuola/internal/transport/http"
	"autoscuola/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

// infra holds the optional backing services. Each is nil when unconfigured.
type infra struct {
	redis *redis.Client
	db    *sql.DB
	kafka *kgo.Client
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Error("close database", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error("close redis", "error", err)
		}
	}
}

// main wires dependencies and runs the server until SIGINT/SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer deps.close(log)

	m := metrics.New()
	router := httptransport.NewRouter(buildDependencies(cfg, deps, log, m))
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting autoscuola site server",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"site_root", cfg.Site.Root,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("server error", "error", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	deps.redis = rc

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	deps.db = db
	if db != nil {
		if err := contactstore.Migrate(db); err != nil {
			deps.close(log)
			return nil, err
		}
	}

	kc, err := kafka.New(cfg.Kafka)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	deps.kafka = kc
	if kc != nil {
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic); err != nil {
			// The broker may auto-create topics; publishing is best effort.
			log.Warn("ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
	}
	return deps, nil
}

func buildDependencies(cfg config.Server, deps *infra, log *slog.Logger, m *metrics.Metrics) httptransport.Dependencies {
	site := cfg.Site
	fsys := os.DirFS(site.Root)
	resolver := paths.NewResolver("/")
	gates := consent.NewFactory(site, log, m)
	checks := map[string]httptransport.HealthCheck{}

	var limiter ratelimit.BucketStore = bucket.NewInMemoryBucketStore()
	limiterOpts := []ratelimit.Option{ratelimit.WithMetrics(m)}
	if deps.redis != nil {
		limiter = bucket.NewRedisStore(deps.redis.Client)
		limiterOpts = append(limiterOpts,
			ratelimit.WithFallback(bucket.NewInMemoryBucketStore(), circuit.New("ratelimit")))
		checks["redis"] = deps.redis.Health
	}

	var store service.Store = contactstore.NewInMemoryStore()
	if deps.db != nil {
		store = contactstore.NewPostgres(deps.db)
		checks["postgres"] = deps.db.PingContext
	}

	var pub service.Publisher = publisher.NewLog(log)
	if deps.kafka != nil {
		pub = publisher.NewKafka(deps.kafka, cfg.Kafka.Topic)
		checks["kafka"] = deps.kafka.Ping
	}

	svc := service.New(store, log, service.WithPublisher(pub), service.WithMetrics(m))

	log.Info("site backends",
		"ratelimit_redis", deps.redis != nil,
		"contact_postgres", deps.db != nil,
		"contact_kafka", deps.kafka != nil,
	)

	return httptransport.Dependencies{
		Logger:   log,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Consent:  consenthandler.New(gates, log),
		Contact:  contacthandler.New(svc, site.Phone, resolver, log),
		Pages: pages.New(fsys, gates,
			fragments.New(fsys, resolver, fragments.WithLogger(log), fragments.WithMetrics(m)),
			resolver, log),
		RateLimit: ratelimit.New(limiter, log, limiterOpts...),
		ContactPolicy: rlmodels.Policy{
			Limit:  cfg.Contact.RateLimit,
			Window: cfg.Contact.RateWindow,
		},
		TrustProxy: cfg.TrustProxyHeaders,
		Checks:     checks,
	}
}
