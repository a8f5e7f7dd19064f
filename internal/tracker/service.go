package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"focusguard/internal/categorizer"
	"focusguard/internal/config"
	"focusguard/internal/events"
	"focusguard/internal/intervention"
	"focusguard/internal/logger"
	"focusguard/internal/models"
	"focusguard/internal/session"
	"focusguard/internal/usage"
	"focusguard/pkg/browser"
	"focusguard/pkg/window"
)

// ErrAlreadyRunning is returned by Start when the loop is already running.
var ErrAlreadyRunning = errors.New("tracker is already running")

// Classifier maps an app identity to its category.
type Classifier interface {
	Categorize(identity string) string
}

// Describer returns a human readable description of a process.
type Describer interface {
	Describe(pid int, identity string) string
}

// ErrorRecorder persists non-fatal errors.
type ErrorRecorder interface {
	CreateErrorLog(errorLog *models.ErrorLog) error
}

// SessionRecorder persists finished focus sessions.
type SessionRecorder interface {
	CreateFocusSession(s *models.FocusSession) error
}

// Dependencies are the collaborators of the sampler. Resolver, Describer,
// Policy, Bus, Errors and History are optional.
type Dependencies struct {
	Detector   window.Detector
	Resolver   browser.Resolver
	Classifier Classifier
	Describer  Describer
	Aggregator *usage.Aggregator
	Gateway    usage.Gateway
	Sessions   *session.Machine
	Policy     *intervention.Policy
	Bus        events.Publisher
	Errors     ErrorRecorder
	History    SessionRecorder
}

// observation is one categorized foreground sample.
type observation struct {
	class       string
	identity    string
	category    string
	description string
	domain      string
	pid         int
	browser     bool
	switched    bool
}

// Status is a snapshot of the sampler for the status endpoints.
type Status struct {
	Running        bool            `json:"running"`
	LastTick       time.Time       `json:"last_tick"`
	LastApp        string          `json:"last_app"`
	LastCategory   string          `json:"last_category"`
	Focused        bool            `json:"focused"`
	Session        session.Session `json:"session"`
	LastFlush      time.Time       `json:"last_flush"`
	LastFlushError string          `json:"last_flush_error,omitempty"`
}

type Service struct {
	config *config.Config
	deps   Dependencies

	// tickMu serializes ticks; last, lastUpdate and pendingSwitch belong to it.
	tickMu        sync.Mutex
	last          *observation
	lastUpdate    time.Time
	pendingSwitch bool

	mu       sync.Mutex
	running  bool
	stopping bool
	stopChan chan struct{}
	status   Status
	lastErr  string

	now func() time.Time
}

func NewService(cfg *config.Config, deps Dependencies) *Service {
	return &Service{
		config: cfg,
		deps:   deps,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for attribution.
func (s *Service) SetClock(now func() time.Time) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.now = now
}

// Start runs the sampling and flush loops until ctx is cancelled or Stop is
// called. Ticks run on this goroutine, so a slow tick delays the next one
// instead of overlapping it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopping = false
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.status.Running = true
	s.mu.Unlock()

	logger.Info("starting tracker",
		"poll_interval", s.config.Tracker.PollInterval,
		"flush_interval", s.config.Tracker.FlushInterval)

	pollTicker := time.NewTicker(s.config.Tracker.PollInterval)
	defer pollTicker.Stop()
	flushTicker := time.NewTicker(s.config.Tracker.FlushInterval)
	defer flushTicker.Stop()

	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("tracker stopped by context")
			s.shutdown()
			return ctx.Err()

		case <-stopChan:
			logger.Info("tracker stopped")
			s.shutdown()
			return nil

		case <-pollTicker.C:
			s.runTick(ctx)

		case <-flushTicker.C:
			s.flush(ctx)
		}
	}
}

// Stop ends the loop started by Start. Extra calls are ignored.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && !s.stopping {
		s.stopping = true
		close(s.stopChan)
	}
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// shutdown ends the focus session and attempts one final flush. A failed
// final flush is logged and not retried.
func (s *Service) shutdown() {
	s.EndSession(session.ReasonShutdown)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(ctx)

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.mu.Unlock()
}

func (s *Service) runTick(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		logger.Debug("tick skipped", "error", err)
		s.storeError(err, "tracker")
	}
}

// Tick takes one sample. Within a tick categorization, the session
// transition and attribution run in that order. The elapsed time since the
// last attribution is credited to the app observed on the previous tick.
func (s *Service) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	s.setStatus(func(st *Status) { st.LastTick = now })

	idle, err := s.deps.Detector.GetIdleInfo(s.config.Tracker.IdleThreshold)
	if err != nil {
		return fmt.Errorf("failed to get idle info: %w", err)
	}
	if state := idle.State(); state != window.StateActive {
		logger.Debug("skipping tick", "state", state, "idle_seconds", idle.IdleTime)
		s.resetLag()
		return nil
	}

	win, err := s.deps.Detector.GetFocusedWindow()
	if err != nil {
		if errors.Is(err, window.ErrNoWindow) {
			logger.Debug("skipping tick: no focused window")
			return nil
		}
		return fmt.Errorf("failed to get focused window: %w", err)
	}
	if win.Identity() == "" {
		logger.Debug("skipping tick: window has no identity")
		return nil
	}

	obs := s.observe(ctx, win)
	if obs.category == categorizer.Idle {
		logger.Debug("skipping tick: idle category", "app", obs.identity)
		s.resetLag()
		return nil
	}

	prev := s.last
	obs.switched = prev == nil ||
		!strings.EqualFold(prev.class, obs.class) ||
		(obs.browser && prev.identity != obs.identity)

	focused := !slices.Contains(s.config.Focus.DistractedCategories, obs.category)
	s.transition(obs, focused, now)
	s.attribute(prev, obs, now)

	s.setStatus(func(st *Status) {
		st.LastApp = obs.identity
		st.LastCategory = obs.category
		st.Focused = focused
	})
	return nil
}

// observe resolves the identity of win. Browsers are keyed by the active
// tab's domain, then the window title when the tab cannot be resolved.
func (s *Service) observe(ctx context.Context, win *window.WindowInfo) *observation {
	obs := &observation{
		class:    win.Identity(),
		identity: win.Identity(),
		pid:      win.PID,
	}

	if browser.IsBrowser(obs.class, s.config.Tracker.BrowserClasses) {
		obs.browser = true
		if tab := s.resolveTab(ctx, win.PID); tab != nil && tab.Domain != "" {
			obs.identity = tab.Domain
			obs.domain = tab.Domain
		} else if win.WindowTitle != "" {
			obs.identity = win.WindowTitle
		}
	}

	obs.category = s.deps.Classifier.Categorize(obs.identity)

	obs.description = win.WindowTitle
	if s.deps.Describer != nil {
		obs.description = s.deps.Describer.Describe(win.PID, obs.class)
	}
	if obs.description == "" {
		obs.description = obs.class
	}
	return obs
}

func (s *Service) resolveTab(ctx context.Context, pid int) *browser.Tab {
	if s.deps.Resolver == nil {
		return nil
	}
	tab, err := s.deps.Resolver.ResolveActiveTab(ctx, pid)
	if err != nil {
		if !errors.Is(err, browser.ErrNoTab) {
			logger.Debug("tab resolver failed", "pid", pid, "error", err)
		}
		return nil
	}
	return tab
}

// transition feeds the sample to the session machine. A distraction during
// an active session asks the policy for a popup before the session ends.
func (s *Service) transition(obs *observation, focused bool, now time.Time) {
	t, ended := s.deps.Sessions.Observe(focused, func(current session.Session) {
		s.intervene(obs, current, now)
	})

	switch t {
	case session.Started:
		logger.Info("focus session started", "app", obs.identity, "category", obs.category)
	case session.Stopped:
		logger.Info("focus session ended", "app", obs.identity, "category", obs.category, "elapsed", ended.Elapsed)
		s.recordSession(ended, obs.identity, obs.category)
	}
}

func (s *Service) intervene(obs *observation, current session.Session, now time.Time) {
	if s.deps.Policy == nil {
		return
	}
	decision := s.deps.Policy.Evaluate(obs.category, current)
	if !decision.Allowed {
		return
	}
	s.deps.Policy.RecordPopupShown(obs.category)

	if s.deps.Bus == nil {
		return
	}
	e := events.Event{
		Type:          events.PopupRequest,
		At:            now,
		SessionID:     current.ID,
		AppIdentifier: obs.identity,
		Category:      obs.category,
	}
	if obs.browser {
		e.PID = obs.pid
	}
	s.deps.Bus.Publish(e)
}

// attribute credits the interval since the last attribution to prev. Short
// intervals carry over to the next tick; long ones are sampling gaps.
func (s *Service) attribute(prev, obs *observation, now time.Time) {
	defer func() { s.last = obs }()

	if prev == nil {
		s.lastUpdate = now
		s.pendingSwitch = false
		return
	}

	elapsed := now.Sub(s.lastUpdate)
	switch {
	case elapsed > s.config.Tracker.MaxGap:
		logger.Warn("sampling gap, not attributed", "app", prev.identity, "elapsed", elapsed)
		s.lastUpdate = now
		s.pendingSwitch = false

	case elapsed >= s.config.Tracker.MinAttribution:
		s.deps.Aggregator.Record(usage.Sample{
			At:          now,
			Identity:    prev.identity,
			Delta:       elapsed,
			Description: prev.description,
			Domain:      prev.domain,
			Switched:    prev.switched || s.pendingSwitch,
		})
		s.lastUpdate = now
		s.pendingSwitch = false

	default:
		s.pendingSwitch = s.pendingSwitch || prev.switched
	}
}

// resetLag forgets the previous sample so time spent idle or locked is
// never attributed.
func (s *Service) resetLag() {
	s.last = nil
	s.pendingSwitch = false
}

// EndSession ends the active focus session, if any, and records it.
func (s *Service) EndSession(reason string) (session.Ended, bool) {
	ended, ok := s.deps.Sessions.End(reason)
	if !ok {
		return ended, false
	}

	s.mu.Lock()
	app, category := s.status.LastApp, s.status.LastCategory
	s.mu.Unlock()

	logger.Info("focus session ended", "reason", reason, "elapsed", ended.Elapsed)
	s.recordSession(ended, app, category)
	return ended, true
}

func (s *Service) recordSession(ended session.Ended, app, category string) {
	if s.deps.History == nil {
		return
	}
	record := &models.FocusSession{
		ID:             ended.ID,
		StartedAt:      ended.StartedAt,
		EndedAt:        ended.EndedAt,
		ElapsedSeconds: int64(ended.Elapsed / time.Second),
		EndingApp:      app,
		EndingCategory: category,
		Reason:         ended.Reason,
	}
	if err := s.deps.History.CreateFocusSession(record); err != nil {
		logger.Error("failed to record focus session", "error", err)
	}
}

// Flush writes the usage store now, even if it has not changed.
func (s *Service) Flush(ctx context.Context) error {
	return s.flushUsage(ctx, true)
}

func (s *Service) flush(ctx context.Context) {
	if err := s.flushUsage(ctx, false); err != nil {
		s.storeError(err, "flush")
	}
}

func (s *Service) flushUsage(ctx context.Context, force bool) error {
	if s.deps.Gateway == nil {
		return nil
	}
	err := s.deps.Aggregator.Flush(ctx, s.deps.Gateway, force)

	s.setStatus(func(st *Status) {
		if err != nil {
			st.LastFlushError = err.Error()
			return
		}
		st.LastFlush = s.now()
		st.LastFlushError = ""
	})
	if err != nil {
		logger.Error("failed to flush usage data", "error", err)
	}
	return err
}

// Status returns a snapshot of the sampler.
func (s *Service) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.Session = s.deps.Sessions.Current()
	return st
}

func (s *Service) setStatus(update func(*Status)) {
	s.mu.Lock()
	update(&s.status)
	s.mu.Unlock()
}

// storeError writes err to the error log. A repeat of the previous message
// is only logged.
func (s *Service) storeError(err error, source string) {
	if s.deps.Errors == nil {
		return
	}

	s.mu.Lock()
	repeat := s.lastErr == err.Error()
	s.lastErr = err.Error()
	s.mu.Unlock()
	if repeat {
		return
	}

	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		Source:    source,
		ErrorMsg:  err.Error(),
	}
	if dbErr := s.deps.Errors.CreateErrorLog(errorLog); dbErr != nil {
		logger.Error("failed to store error in database", "error", dbErr, "original", err)
	}
}
