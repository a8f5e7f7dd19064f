package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focusguard/internal/categorizer"
	"focusguard/internal/companion"
	"focusguard/internal/config"
	"focusguard/internal/daemon"
	"focusguard/internal/database"
	"focusguard/internal/events"
	"focusguard/internal/intervention"
	"focusguard/internal/logger"
	"focusguard/internal/notify"
	"focusguard/internal/reporter"
	"focusguard/internal/session"
	"focusguard/internal/tracker"
	"focusguard/internal/usage"
	"focusguard/internal/web"
	"focusguard/pkg/browser"
	"focusguard/pkg/detector"
	"focusguard/pkg/integrations/procinfo"
)

const (
	sessionRetention = 90 * 24 * time.Hour
	eventHistory     = 100
	shutdownTimeout  = 10 * time.Second
)

// store is the persisted state shared by every command.
type store struct {
	cfg         *config.Config
	db          *database.DB
	repo        *database.Repository
	categorizer *categorizer.Categorizer
	aggregator  *usage.Aggregator
}

// loadConfig reads and validates the configuration.
func loadConfig() *config.Config {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// openStore opens the database and restores the category rules and usage
// data.
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if mode, err := db.JournalMode(); err == nil && mode != "wal" {
		logger.Warn("database not in WAL mode", "journal_mode", mode)
	}
	repo := database.NewRepository(db, cfg.Database.BackupLimit)

	cat := categorizer.NewDefault()
	if err := cat.Restore(ctx, repo); err != nil {
		logger.Warn("stored category rules ignored", "error", err)
	}
	if cfg.Focus.RulesFile != "" {
		if err := cat.ApplyFile(cfg.Focus.RulesFile); err != nil {
			logger.Warn("rules file not applied", "path", cfg.Focus.RulesFile, "error", err)
		}
	}
	for _, w := range cfg.Sanitize(cat.Names()) {
		logger.Warn("configuration corrected", "detail", w)
	}

	agg := usage.NewAggregator(cat, cfg.Tracker.ContinuityWindow)
	if err := agg.Restore(ctx, repo); err != nil {
		logger.Error("usage data unreadable, trying backup", "error", err)
		if err := repo.RestoreLatestBackup(ctx, usage.DataKey); err != nil {
			logger.Warn("no usable backup, starting empty", "error", err)
		} else if err := agg.Restore(ctx, repo); err != nil {
			logger.Error("backup unreadable, starting empty", "error", err)
		}
	}

	return &store{cfg: cfg, db: db, repo: repo, categorizer: cat, aggregator: agg}, nil
}

func (s *store) Close() {
	if err := s.db.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}

// run starts the tracker and the web API and blocks until a shutdown signal.
func run(s *store, dm *daemon.Daemon) error {
	cfg := s.cfg

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	det, err := detector.New()
	if err != nil {
		return fmt.Errorf("failed to initialize window detector: %w", err)
	}
	defer det.Close()

	if err := dm.WritePID(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer dm.RemovePID()

	if removed, err := s.repo.DeleteOldSessions(time.Now().Add(-sessionRetention)); err != nil {
		logger.Warn("failed to prune focus sessions", "error", err)
	} else if removed > 0 {
		logger.Info("pruned focus sessions", "removed", removed)
	}

	if cfg.Focus.RulesFile != "" {
		err := s.categorizer.Watch(ctx, cfg.Focus.RulesFile, func() {
			if err := s.categorizer.Persist(ctx, s.repo); err != nil {
				logger.Error("failed to persist category rules", "error", err)
			}
		})
		if err != nil {
			logger.Warn("rules file not watched", "error", err)
		}
	}

	bus := events.NewBus(eventHistory)
	bus.SubscribeAll(func(e events.Event) {
		logger.Debug("event", "type", e.Type, "app", e.AppIdentifier)
	})
	if cfg.Popup.Notify {
		notify.New().Subscribe(bus)
	}

	policy := intervention.NewPolicy(intervention.PreferencesFromConfig(cfg.Popup))
	deps := tracker.Dependencies{
		Detector:   det,
		Classifier: s.categorizer,
		Describer:  procinfo.NewDescriber(),
		Aggregator: s.aggregator,
		Gateway:    s.repo,
		Sessions:   session.NewMachine(bus),
		Policy:     policy,
		Bus:        bus,
		Errors:     s.repo,
		History:    s.repo,
	}
	// A nil *CommandResolver must not become a non-nil interface.
	if resolver := browser.NewCommandResolver(cfg.Tracker.TabResolver, cfg.Tracker.PollInterval/2); resolver != nil {
		deps.Resolver = resolver
	}
	trackerSvc := tracker.NewService(cfg, deps)

	var comp *companion.Client
	if cfg.Companion.URL != "" {
		comp = companion.NewClient(cfg.Companion.URL, cfg.Companion.Timeout)
	}

	webServer := web.NewServer(cfg, web.Dependencies{
		Aggregator:    s.aggregator,
		Categorizer:   s.categorizer,
		CategoryStore: s.repo,
		Reporter:      reporter.New(s.aggregator, s.repo),
		Policy:        policy,
		Tracker:       trackerSvc,
		Companion:     comp,
		Errors:        s.repo,
	}, 0)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 2)
	go func() {
		if err := webServer.Start(); err != nil {
			errChan <- fmt.Errorf("web server: %w", err)
		}
	}()

	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		if err := trackerSvc.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("tracker: %w", err)
		}
	}()

	logger.Info("focusguard running",
		"display_server", det.GetDisplayServer(),
		"web", "http://"+webServer.GetAddress())
	logger.Debug("configuration", "config", cfg.String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case runErr = <-errChan:
		logger.Error("service failed", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	cancel()
	trackerSvc.Stop()
	<-trackerDone

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down web server", "error", err)
	}

	logger.Info("focusguard stopped")
	return runErr
}
