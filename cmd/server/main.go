// Command server runs the credence decisioning service: case intake over
// HTTP, asynchronous rule/risk/tier/workflow evaluation, and the operational
// endpoints around them.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"credence/internal/cases/cache"
	"credence/internal/cases/events"
	"credence/internal/cases/handler"
	caseMetrics "credence/internal/cases/metrics"
	"credence/internal/cases/ports"
	"credence/internal/cases/service"
	"credence/internal/cases/store"
	"credence/internal/definitions"
	"credence/internal/platform/config"
	"credence/internal/platform/httpserver"
	"credence/internal/platform/kafka"
	"credence/internal/platform/logger"
	"credence/internal/platform/metrics"
	"credence/internal/platform/postgres"
	"credence/internal/platform/redis"
	httptransport "credence/internal/transport/http"
	"credence/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.HealthCheck{}

	// Case store: postgres when configured, memory otherwise.
	var caseStore ports.Store = store.NewMemoryStore()
	var db *postgresDB
	if cfg.DatabaseURL != "" {
		conn, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := postgres.Migrate(conn, migrations.FS); err != nil {
			return err
		}

		pgStore, err := store.NewPostgresStore(conn)
		if err != nil {
			return err
		}
		caseStore = pgStore
		db = &postgresDB{conn}
		checks["postgres"] = db.health
		log.Info("using postgres case store")
	} else {
		log.Info("using in-memory case store; cases do not survive restarts")
	}

	provider, watcher, err := buildDefinitions(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	caseMx := caseMetrics.New()
	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(caseMx),
		service.WithCacheTTL(cfg.CaseCacheTTL),
	}

	// Redis case cache, when configured.
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		caseCache, err := cache.NewRedisCache(redisClient.Client, log)
		if err != nil {
			return err
		}
		serviceOpts = append(serviceOpts, service.WithCache(caseCache))
		checks["redis"] = redisClient.Health
		log.Info("case cache enabled", "ttl", cfg.CaseCacheTTL)
	}

	// Event publishing: always the in-process broadcaster, plus Kafka when
	// brokers are configured.
	publishers := events.Fanout{events.NewBroadcaster()}
	kafkaClient, err := kafka.New(ctx, cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		if err := events.EnsureTopic(ctx, kafkaClient, cfg.KafkaTopic, 3); err != nil {
			return err
		}
		kafkaPublisher, err := events.NewKafkaPublisher(kafkaClient, cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		publishers = append(publishers, kafkaPublisher)
		checks["kafka"] = kafkaClient.Ping
		log.Info("kafka event publishing enabled", "topic", cfg.KafkaTopic)
	}
	serviceOpts = append(serviceOpts, service.WithPublisher(publishers))

	svc, err := service.NewService(caseStore, provider, serviceOpts...)
	if err != nil {
		return err
	}

	sweeper := service.NewSweeper(svc,
		service.WithSweepSchedule(cfg.SweepSchedule),
		service.WithSweepBatch(cfg.SweepBatch),
		service.WithSweepMinAge(cfg.SweepMinAge),
	)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	router := httptransport.NewRouter(metrics.NewHTTP(), checks, handler.New(svc, log))
	server := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildDefinitions picks the definition source in priority order: YAML
// bundle directory, then the postgres definitions table, then the built-in
// defaults. The watcher is non-nil only for the bundle source.
func buildDefinitions(ctx context.Context, cfg config.Config, db *postgresDB, log *slog.Logger) (*definitions.Provider, *definitions.Watcher, error) {
	if cfg.DefinitionsDir != "" {
		snapshot, err := definitions.LoadBundleDir(cfg.DefinitionsDir)
		if err != nil {
			return nil, nil, err
		}
		provider := definitions.NewProvider(snapshot)
		log.Info("loaded definitions bundle", "dir", cfg.DefinitionsDir, "rules", len(snapshot.Rules))

		if cfg.WatchDefinitions {
			return provider, definitions.NewWatcher(cfg.DefinitionsDir, provider, log), nil
		}
		return provider, nil, nil
	}

	if db != nil {
		snapshot, err := definitions.LoadActive(ctx, db.DB)
		if err != nil {
			return nil, nil, err
		}
		if !snapshot.Empty() {
			log.Info("loaded definitions from postgres", "rules", len(snapshot.Rules))
			return definitions.NewProvider(snapshot), nil, nil
		}
	}

	log.Info("using built-in default definitions")
	return definitions.NewProvider(definitions.Defaults()), nil, nil
}

type postgresDB struct {
	*sqlx.DB
}

func (p *postgresDB) health(ctx context.Context) error {
	return p.PingContext(ctx)
}
