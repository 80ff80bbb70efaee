package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/qor-network/qor/internal/api"
	"github.com/qor-network/qor/internal/app"
	"github.com/qor-network/qor/internal/health"
	"github.com/qor-network/qor/internal/infra/sqlite"
	"github.com/qor-network/qor/internal/infra/tracing"
)

// Daemon is the QOR runtime. It wires the ledgers to storage and the API.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Core   *app.Core
	Server *api.Server
	Health *health.Checker
	Log    zerolog.Logger

	stopTracing func(context.Context) error
	cancel      context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration. Executed
// governance proposals are re-applied before it returns.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Logging, os.Stderr, cfg.Node.ID)

	stopTracing, err := tracing.Init(cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	home := qorHome()
	db, err := sqlite.Open(home)
	if err != nil {
		_ = stopTracing(context.Background())
		return nil, fmt.Errorf("open database: %w", err)
	}

	core := app.NewCore(db, cfg.Policy(), logger)
	if err := core.Governance.Replay(context.Background()); err != nil {
		db.Close()
		_ = stopTracing(context.Background())
		return nil, fmt.Errorf("replay governance: %w", err)
	}

	checker := health.NewChecker(db, home, logger)
	checker.SetInterval(parseDuration(cfg.Telemetry.HealthInterval, 60*time.Second))

	srv := api.NewServer(core, logger)
	srv.SetHealth(checker)
	srv.SetDecimals(cfg.Ledger.CurrencyDecimals)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	srv.SetRequestTimeout(parseDuration(cfg.API.RequestTimeout, 30*time.Second))
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:      cfg,
		DB:          db,
		Core:        core,
		Server:      srv,
		Health:      checker,
		Log:         logger,
		stopTracing: stopTracing,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			d.Log.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			d.Log.Error().Err(err).Msg("http shutdown")
		}
	}()

	event := d.Log.Info().Str("addr", "http://"+addr)
	if d.Config.Telemetry.Prometheus {
		event = event.Str("metrics", "http://"+addr+"/metrics")
	}
	event.Msg("QOR ledger serving")

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.stopTracing != nil {
		if err := d.stopTracing(context.Background()); err != nil {
			d.Log.Warn().Err(err).Msg("tracing shutdown")
		}
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
