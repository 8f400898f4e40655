package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"fileshare/internal/blobstore"
	"fileshare/internal/config"
	"fileshare/internal/database"
	"fileshare/internal/encryption"
	"fileshare/internal/fileshare"
	"fileshare/internal/httpapi"
)

// App is the application layer between the CLI and the storage facade.
// It constructs all dependencies from config, runs the HTTP server and the
// scheduled reconciler, and closes the database on Close.
type App struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	blobs   fileshare.BlobStore
	service *fileshare.Service
	logger  *slog.Logger
	op      *Operation
	clock   fileshare.Clock
}

// NewApp creates a fully wired App from the given config. operation names
// the CLI command being run; logs go to logOutput. The caller must call Close.
func NewApp(ctx context.Context, cfg *config.Config, operation string, logOutput io.Writer) (*App, error) {
	clock := fileshare.RealClock{}
	op := NewOperation(operation, clock.Now())

	logger, err := newLogger(cfg.Log, logOutput, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg, clock, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("storage ready",
		"operation", operation,
		"database", db.Path(),
		"blob_backend", cfg.Blob.Backend,
		"encryption", cfg.Encryption.Type,
	)

	svc := fileshare.NewService(db, blobs, &slogAdapter{l: logger}, clock, fileshare.UUIDGenerator{})
	return &App{
		cfg:     cfg,
		db:      db,
		blobs:   blobs,
		service: svc,
		logger:  logger,
		op:      op,
		clock:   clock,
	}, nil
}

// newBlobStore builds the configured backend, wraps it for encryption at
// rest when enabled, and checks it is usable.
func newBlobStore(ctx context.Context, cfg *config.Config, clock fileshare.Clock, logger *slog.Logger) (fileshare.BlobStore, error) {
	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.Blob, clock)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil {
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("encryption keys not found: run 'fileshare keygen' first")
		}

		var dec fileshare.DecryptionContext
		if cfg.Encryption.Passphrase != "" {
			dec, err = enc.Unlock(cfg.Encryption.Passphrase)
			if err != nil {
				return nil, fmt.Errorf("unlocking private key: %w", err)
			}
		} else {
			logger.Warn("no passphrase configured: uploads are encrypted but downloads will fail")
		}
		blobs = blobstore.NewEncryptedStore(blobs, enc, dec)
	}

	if err := blobs.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("blob store not usable: %w", err)
	}
	return blobs, nil
}

// Service returns the storage facade.
func (a *App) Service() *fileshare.Service {
	return a.service
}

// Handler builds the HTTP handler with metrics on a fresh registry.
func (a *App) Handler() (http.Handler, *httpapi.Metrics) {
	metrics := httpapi.NewMetrics()
	metrics.Registry().MustRegister(collectors.NewDBStatsCollector(a.db.DB(), "fileshare"))

	srv := httpapi.NewServer(a.service, &slogAdapter{l: a.logger}, httpapi.Options{
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		Metrics:        metrics,
	})
	return srv, metrics
}

// Serve binds the configured address and serves until ctx is cancelled,
// then shuts down gracefully within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("binding %s: %w", a.cfg.Addr(), err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve over an existing listener.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	handler, metrics := a.Handler()

	if schedule := a.cfg.Reconcile.Schedule; schedule != "" {
		rec, err := NewReconciler(a.service, schedule, a.reconcileOptions(a.cfg.Reconcile.DryRun), a.logger, metrics.Registry())
		if err != nil {
			ln.Close()
			return err
		}
		rec.Start(ctx)
		defer rec.Stop()
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	a.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// Reconcile removes orphan blobs once, honouring the configured grace period.
func (a *App) Reconcile(ctx context.Context, dryRun bool) (*fileshare.ReconcileReport, error) {
	return a.service.Reconcile(ctx, a.reconcileOptions(dryRun))
}

func (a *App) reconcileOptions(dryRun bool) fileshare.ReconcileOptions {
	return fileshare.ReconcileOptions{
		GracePeriod: a.cfg.Reconcile.GracePeriod.Duration,
		DryRun:      dryRun,
	}
}

// MigrationVersion reports the schema version after startup migrations.
func (a *App) MigrationVersion() (uint, error) {
	status, err := a.db.MigrationStatus()
	if err != nil {
		return 0, err
	}
	return status.Version, nil
}

// Finish records the outcome of the operation. Call it before Close.
func (a *App) Finish(err error) {
	elapsed := a.op.Finish(err, a.clock.Now())
	if err != nil {
		a.logger.Error("operation failed", "operation", a.op.Name, "duration", elapsed, "error", err)
		return
	}
	a.logger.Info("operation finished", "operation", a.op.Name, "duration", elapsed)
}

// Close releases the database.
func (a *App) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
