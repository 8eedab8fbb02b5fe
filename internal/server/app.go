// Package server wires the ballot server together: storage, migrations, the
// event bus, the tally engine, the voting services, the gRPC transport and
// the metrics endpoint, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/identity"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/audit"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/config"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/metrics"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/repomanager"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/services"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/tally"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/ezforhamza/awaz-e-talba-sub000/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *dbx.DB
	registry *prometheus.Registry
	bus      *event.Bus
	engine   *tally.Engine
	voting   *services.VotingService
}

// NewApp opens and migrates storage and builds every component. The caller
// owns the returned App and must call Run (or Close) to release it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	db, err := OpenStorage(ctx, c)
	if err != nil {
		return nil, err
	}
	rm := repomanager.NewSQLRepositoryManager(db.Dialect)
	if err := rm.RunMigrations(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	keys, err := identity.NewKeyring([]byte(c.FingerprintSecret))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	bus := event.NewBus(reg, logger.With("module", "event_bus"))
	m.ObserveSessionEnds(bus)

	var archive audit.Sink
	if c.ArchiveEnabled() {
		client, err := audit.NewS3Client(ctx, audit.S3Options{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			bus.Stop()
			_ = db.Close()
			return nil, fmt.Errorf("audit archive: %w", err)
		}
		archive = audit.NewS3Sink(client, c.S3Bucket, "audit")
		logger.Info(ctx, "audit archive enabled", "bucket", c.S3Bucket)
	}

	engine := tally.New(tally.NewRepositorySource(db, rm), bus, logger.With("module", "tally"),
		tally.WithMetrics(m))

	voting := services.NewVotingService(services.Deps{
		DB:         db,
		Repos:      rm,
		Keys:       keys,
		Bus:        bus,
		Logger:     logger.With("module", "services"),
		Metrics:    m,
		Archive:    archive,
		SessionTTL: c.SessionTTL,
	}, engine)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		registry: reg,
		bus:      bus,
		engine:   engine,
		voting:   voting,
	}, nil
}

// OpenStorage opens the configured database and waits until it answers.
func OpenStorage(ctx context.Context, c *config.Config) (*dbx.DB, error) {
	db, err := repomanager.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repomanager.WaitReady(ctx, db.DB, c.DatabaseWait); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db not ready: %w", err)
	}
	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case s := <-sigs:
			app.logger.Info(context.Background(), "Received signal", "signal", s.String())
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc, lis net.Listener) error {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.voting, app.config.TokenSecret, app.config.CastTimeout)
	if err := s.Serve(ctx, lis); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc, lis net.Listener) error {
	s := metrics.NewServer(app.config.MetricsAddr, app.registry, app.logger.With("module", "metrics"))
	if err := s.Run(ctx, lis); err != nil {
		app.logger.Error(ctx, "metrics server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

// Run serves until ctx is cancelled, a shutdown signal arrives or a
// component fails, then releases everything. It returns the first
// component error, if any.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()
	defer app.Close()

	grpcLis, err := net.Listen("tcp", app.config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	var metricsLis net.Listener
	if app.config.MetricsAddr != "" {
		metricsLis, err = net.Listen("tcp", app.config.MetricsAddr)
		if err != nil {
			_ = grpcLis.Close()
			return fmt.Errorf("metrics listen: %w", err)
		}
	}

	app.engine.Attach()
	defer app.engine.Detach()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(app.startGRPCServer(ctx, cancelFunc, grpcLis))
	}()

	if metricsLis != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(app.startMetricsServer(ctx, cancelFunc, metricsLis))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		record(app.engine.Run(ctx, app.config.TallyReconcileInterval))
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")

	return errors.Join(errs...)
}

// Close stops the event bus and closes the database.
func (app *App) Close() {
	app.bus.Stop()
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "db close failed", "error", err)
	}
}
