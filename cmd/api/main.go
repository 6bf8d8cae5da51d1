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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/eventpass/backend/internal/auth"
	"github.com/eventpass/backend/internal/config"
	"github.com/eventpass/backend/internal/dashboard"
	"github.com/eventpass/backend/internal/engine"
	"github.com/eventpass/backend/internal/events"
	"github.com/eventpass/backend/internal/execution"
	"github.com/eventpass/backend/internal/handlers"
	"github.com/eventpass/backend/internal/ledger"
	"github.com/eventpass/backend/internal/metrics"
	"github.com/eventpass/backend/internal/models"
	"github.com/eventpass/backend/internal/router"
	"github.com/eventpass/backend/internal/schema"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := pflag.String("config", "", "path to the YAML config file (default $"+config.EnvConfigPath+")")
	pflag.Parse()

	if err := run(*configPath, logger); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// journalReader lists journaled events for startup replay and transfers
// for payment history.
type journalReader interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListTransfers(ctx context.Context, who models.Identity) ([]models.Transfer, error)
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sinks, checks, closePublishers, err := buildSinks(ctx, cfg.Events, logger)
	if err != nil {
		return err
	}
	defer closePublishers()

	var (
		journal     engine.Journal
		source      journalReader
		store       auth.Store
		riverClient *river.Client[pgx.Tx]
	)
	if cfg.Database.URL == "" {
		slog.Warn("No database configured; journal and accounts are in memory and events are published synchronously")
		mem := ledger.NewPublishingJournal(fanOut(sinks), logger)
		journal, source, store = mem, mem, auth.NewMemoryStore()
	} else {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		slog.Info("Connected to PostgreSQL database successfully!")
		checks["postgres"] = pool.Ping

		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			return err
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			return err
		}
		ledgerRepo := ledger.NewRepository(pool)
		if err := ledgerRepo.Migrate(ctx); err != nil {
			return err
		}
		slog.Info("Migrations applied")

		workers := river.NewWorkers()
		river.AddWorker(workers, execution.NewDeliverEventWorker(sinks, ledgerRepo, logger))
		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				// One worker keeps delivery in seq order.
				execution.QueueTicketEvents: {MaxWorkers: 1},
			},
			Workers: workers,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		insertDelivery := func(ctx context.Context, tx pgx.Tx, args execution.DeliverEventArgs) error {
			_, err := riverClient.InsertTx(ctx, tx, args, nil)
			return err
		}
		journal = ledger.NewJournal(pool, ledgerRepo, insertDelivery)
		source = ledgerRepo
		store = auth.NewRepository(pool)
	}

	eng, err := engine.New(engineCfg,
		engine.WithJournal(journal),
		engine.WithObserver(m),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	history, err := source.ListEvents(ctx)
	if err != nil {
		return err
	}
	if err := eng.Restore(history); err != nil {
		return err
	}
	m.TreasuryChanged(eng.TreasuryBalance())

	authSvc := auth.NewService(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, engineCfg.Admin)
	if cfg.Auth.AdminPasswordHash != "" {
		if err := authSvc.BootstrapAdmin(ctx, cfg.Auth.AdminPasswordHash); err != nil {
			return err
		}
		slog.Info("Admin account provisioned", "identity", engineCfg.Admin)
	} else {
		slog.Warn("No admin password hash configured; the admin account cannot log in", "identity", engineCfg.Admin)
	}
	ticketHandler := handlers.NewTicketHandler(eng, cfg.Engine.Decimals, logger)
	dashHandler := dashboard.NewHandler(source, eng, cfg.Engine.Decimals, logger)
	apiV1Router := router.New(auth.NewHandler(authSvc, logger), ticketHandler, dashHandler, authSvc, schema.MustNewValidator())

	mux := http.NewServeMux()
	mux.Handle("/api/", apiV1Router)
	registerOpsRoutes(mux, reg, checks)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if riverClient != nil {
		g.Go(func() error {
			// Start returns once the client is running; Stop below waits for jobs.
			return riverClient.Start(gctx)
		})
	}
	g.Go(func() error {
		slog.Info("Starting HTTP server", "addr", srv.Addr, "seq", eng.Seq())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if riverClient != nil {
			err = errors.Join(err, riverClient.Stop(shutdownCtx))
		}
		return err
	})
	return g.Wait()
}

// buildSinks creates every configured event sink. The returned checks feed
// /healthz.
func buildSinks(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) ([]events.Sink, map[string]func(context.Context) error, func(), error) {
	var (
		sinks   []events.Sink
		closers []func()
		checks  = map[string]func(context.Context) error{}
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, events.Sink{Name: "webhook", Publisher: events.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret)})
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		sinks = append(sinks, events.Sink{Name: "kafka", Publisher: k})
		closers = append(closers, k.Close)
		checks["kafka"] = k.Health
	}
	if cfg.RedisURL != "" {
		client, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		sinks = append(sinks, events.Sink{Name: "redis", Publisher: events.NewRedisStream(client, cfg.RedisStream)})
		closers = append(closers, func() { _ = client.Close() })
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	logger.Info("Event sinks configured", "count", len(sinks))
	return sinks, checks, closeAll, nil
}

// fanOut publishes to every sink in turn, for the in-memory journal.
func fanOut(sinks []events.Sink) events.Publisher {
	if len(sinks) == 0 {
		return events.Discard
	}
	m := make(events.Multi, 0, len(sinks))
	for _, s := range sinks {
		m = append(m, s)
	}
	return m
}
