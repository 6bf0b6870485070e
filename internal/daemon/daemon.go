package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/api"
	"github.com/storypets/storypets/internal/app/progression"
	"github.com/storypets/storypets/internal/app/session"
	"github.com/storypets/storypets/internal/infra/docstore"
	_ "github.com/storypets/storypets/internal/infra/metrics" // Register Prometheus metrics
	"github.com/storypets/storypets/internal/logger"
)

// Daemon is the progression engine runtime. It wires together the store and
// all services. Every component takes its store client explicitly — no
// process-wide singletons.
type Daemon struct {
	Config   Config
	Store    *docstore.Store
	Progress *progression.ProgressService
	Quests   *progression.QuestService
	Streaks  *progression.StreakService
	Session  *session.Manager
	Server   *api.Server

	log    zerolog.Logger
	cancel context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk config.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log := logger.New("storypets", cfg.Logging.Level)

	store, err := docstore.Open(cfg.Store.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	progress := progression.NewProgressService(store, log)
	quests := progression.NewQuestService(store, log)
	streaks := progression.NewStreakService(store, log)

	sess := session.NewManager(store, progress, quests, streaks, session.Config{
		RolloverThrottle: cfg.RolloverThrottleDuration(),
	}, log)

	srv := api.NewServer(store, progress, quests, streaks, sess, log)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:   cfg,
		Store:    store,
		Progress: progress,
		Quests:   quests,
		Streaks:  streaks,
		Session:  sess,
		Server:   srv,
		log:      log,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE change feeds stay open indefinitely
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Session.OnSignOut()
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Store.Close()
	}()

	d.log.Info().Str("addr", addr).Msg("storypets engine serving")
	if d.Config.Telemetry.Prometheus {
		d.log.Info().Str("url", "http://"+addr+"/metrics").Msg("metrics enabled")
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Session != nil {
		d.Session.OnSignOut()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}
