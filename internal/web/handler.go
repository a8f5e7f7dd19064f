package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"focusguard/internal/categorizer"
	"focusguard/internal/companion"
	"focusguard/internal/config"
	"focusguard/internal/intervention"
	"focusguard/internal/logger"
	"focusguard/internal/models"
	"focusguard/internal/reporter"
	"focusguard/internal/session"
	"focusguard/internal/tracker"
	"focusguard/internal/usage"
)

// Tracker is the part of the sampler the API exposes.
type Tracker interface {
	Status() tracker.Status
	EndSession(reason string) (session.Ended, bool)
}

// ErrorSource lists recently stored errors.
type ErrorSource interface {
	RecentErrors(limit int) ([]models.ErrorLog, error)
}

// Dependencies are the services behind the API. Companion, Errors and
// CategoryStore may be nil.
type Dependencies struct {
	Aggregator    *usage.Aggregator
	Categorizer   *categorizer.Categorizer
	CategoryStore categorizer.Store
	Reporter      *reporter.Reporter
	Policy        *intervention.Policy
	Tracker       Tracker
	Companion     *companion.Client
	Errors        ErrorSource
}

type Handler struct {
	config *config.Config
	deps   Dependencies
	now    func() time.Time
}

func NewHandler(cfg *config.Config, deps Dependencies) *Handler {
	return &Handler{
		config: cfg,
		deps:   deps,
		now:    time.Now,
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/usage", h.handleUsage)
	mux.HandleFunc("/api/usage/range", h.handleUsageRange)
	mux.HandleFunc("/api/usage/clear", h.handleUsageClear)
	mux.HandleFunc("/api/categories/breakdown", h.handleCategoryBreakdown)
	mux.HandleFunc("/api/categories/totals", h.handleCategoryTotals)
	mux.HandleFunc("/api/categories/color", h.handleCategoryColor)
	mux.HandleFunc("/api/categories/override", h.handleCategoryOverride)
	mux.HandleFunc("/api/categorize", h.handleCategorize)
	mux.HandleFunc("/api/report", h.handleReport)

	mux.HandleFunc("/api/session", h.handleSession)
	mux.HandleFunc("/api/session/end", h.handleSessionEnd)

	mux.HandleFunc("/api/popup/stats", h.handlePopupStats)
	mux.HandleFunc("/api/popup/action", h.handlePopupAction)
	mux.HandleFunc("/api/popup/cleanup", h.handlePopupCleanup)
	mux.HandleFunc("/api/popup/reset", h.handlePopupReset)
	mux.HandleFunc("/api/popup/preferences", h.handlePopupPreferences)

	mux.HandleFunc("/api/companion/status", h.handleCompanionStatus)
	mux.HandleFunc("/api/companion/chat", h.handleCompanionChat)
	mux.HandleFunc("/api/companion/reset", h.handleCompanionReset)

	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/health", h.handleHealth)
}

// dateParam returns the "date" query parameter, defaulting to today.
func (h *Handler) dateParam(r *http.Request) (string, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return usage.DateKey(h.now()), nil
	}
	if _, err := time.Parse(usage.DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	return date, nil
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	date, err := h.dateParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	day, ok := h.deps.Aggregator.UsageForDate(date)
	if !ok {
		day = usage.DayRecord{
			Apps:  map[string]usage.AppUsage{},
			Hours: map[string]map[string]usage.AppUsage{},
		}
	}
	respondJSON(w, day)
}

func (h *Handler) handleUsageRange(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	start, end := query.Get("start"), query.Get("end")
	for _, d := range []string{start, end} {
		if _, err := time.Parse(usage.DateLayout, d); err != nil {
			http.Error(w, "start and end must be YYYY-MM-DD dates", http.StatusBadRequest)
			return
		}
	}
	if start > end {
		http.Error(w, "start must not be after end", http.StatusBadRequest)
		return
	}

	respondJSON(w, h.deps.Aggregator.UsageRange(start, end))
}

// handleUsageClear empties the in-memory store; the next flush persists it.
func (h *Handler) handleUsageClear(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.deps.Aggregator.Clear()
	logger.Info("usage data cleared")
	respondJSON(w, map[string]bool{"cleared": true})
}

func (h *Handler) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	date, err := h.dateParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, h.deps.Aggregator.CategoryBreakdown(date))
}

func (h *Handler) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	date, err := h.dateParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, h.deps.Aggregator.CategoryTotals(date))
}

func (h *Handler) handleCategoryColor(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		http.Error(w, "category is required", http.StatusBadRequest)
		return
	}

	respondJSON(w, map[string]string{
		"category": category,
		"color":    h.deps.Aggregator.CategoryColor(category),
	})
}

func (h *Handler) handleCategorize(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	identity := r.URL.Query().Get("identity")
	category := h.deps.Categorizer.Categorize(identity)
	respondJSON(w, map[string]string{
		"identity": identity,
		"category": category,
		"color":    h.deps.Categorizer.Color(category),
	})
}

type categoryOverrideRequest struct {
	Identity string `json:"identity"`
	Category string `json:"category"`
}

// handleCategoryOverride pins identity to a category, or drops the pin when
// category is empty. Usage queries pick the change up for every stored day.
func (h *Handler) handleCategoryOverride(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req categoryOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}
	if req.Category != "" && !slices.Contains(h.deps.Categorizer.Names(), req.Category) {
		http.Error(w, fmt.Sprintf("unknown category %q", req.Category), http.StatusBadRequest)
		return
	}

	h.deps.Categorizer.SetOverride(req.Identity, req.Category)
	if h.deps.CategoryStore != nil {
		if err := h.deps.Categorizer.Persist(r.Context(), h.deps.CategoryStore); err != nil {
			logger.Error("failed to persist category override", "identity", req.Identity, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	logger.Info("category override updated", "identity", req.Identity, "category", req.Category)

	category := h.deps.Categorizer.Categorize(req.Identity)
	respondJSON(w, map[string]string{
		"identity": req.Identity,
		"category": category,
		"color":    h.deps.Categorizer.Color(category),
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.deps.Reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusBadRequest)
		return
	}

	respondJSON(w, report)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	current := h.deps.Tracker.Status().Session
	respondJSON(w, map[string]any{
		"session":    current,
		"elapsed_ms": current.Age(h.now()).Milliseconds(),
	})
}

func (h *Handler) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	ended, ok := h.deps.Tracker.EndSession(session.ReasonUser)
	response := map[string]any{"ended": ok}
	if ok {
		response["session_id"] = ended.ID
		response["elapsed_ms"] = ended.Elapsed.Milliseconds()
	}
	respondJSON(w, response)
}

func (h *Handler) handlePopupStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, h.deps.Policy.Stats())
}

type popupActionRequest struct {
	Action   string `json:"action"`
	Category string `json:"category"`
}

func (h *Handler) handlePopupAction(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req popupActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	action, err := intervention.ParseAction(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Category == "" {
		http.Error(w, "category is required", http.StatusBadRequest)
		return
	}

	h.deps.Policy.RecordUserAction(action, req.Category)
	respondJSON(w, h.deps.Policy.Stats())
}

func (h *Handler) handlePopupCleanup(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	respondJSON(w, map[string]int{"removed": h.deps.Policy.CleanupExpiredDismissals()})
}

func (h *Handler) handlePopupReset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.deps.Policy.Reset()
	respondJSON(w, h.deps.Policy.Stats())
}

// preferencesPayload is the wire form of intervention.Preferences with
// durations in seconds.
type preferencesPayload struct {
	MinIntervalSeconds   int64 `json:"min_interval_seconds"`
	MaxConsecutive       int   `json:"max_consecutive"`
	AdaptiveDelay        bool  `json:"adaptive_delay"`
	RespectFocusTime     bool  `json:"respect_focus_time"`
	EarlyGraceSeconds    int64 `json:"early_session_grace_seconds"`
	BurstCooldownSeconds int64 `json:"burst_cooldown_seconds"`
	BreakSeconds         int64 `json:"break_seconds"`
	QuietHoursEnabled    bool  `json:"quiet_hours_enabled"`
	QuietHoursStart      int   `json:"quiet_hours_start"`
	QuietHoursEnd        int   `json:"quiet_hours_end"`
}

func toPayload(p intervention.Preferences) preferencesPayload {
	return preferencesPayload{
		MinIntervalSeconds:   int64(p.MinInterval / time.Second),
		MaxConsecutive:       p.MaxConsecutive,
		AdaptiveDelay:        p.AdaptiveDelay,
		RespectFocusTime:     p.RespectFocusTime,
		EarlyGraceSeconds:    int64(p.EarlySessionGrace / time.Second),
		BurstCooldownSeconds: int64(p.BurstCooldown / time.Second),
		BreakSeconds:         int64(p.BreakDuration / time.Second),
		QuietHoursEnabled:    p.QuietHours.Enabled,
		QuietHoursStart:      p.QuietHours.Start,
		QuietHoursEnd:        p.QuietHours.End,
	}
}

func (pl preferencesPayload) apply(p intervention.Preferences) intervention.Preferences {
	p.MinInterval = time.Duration(pl.MinIntervalSeconds) * time.Second
	p.MaxConsecutive = pl.MaxConsecutive
	p.AdaptiveDelay = pl.AdaptiveDelay
	p.RespectFocusTime = pl.RespectFocusTime
	p.EarlySessionGrace = time.Duration(pl.EarlyGraceSeconds) * time.Second
	p.BurstCooldown = time.Duration(pl.BurstCooldownSeconds) * time.Second
	p.BreakDuration = time.Duration(pl.BreakSeconds) * time.Second
	p.QuietHours.Enabled = pl.QuietHoursEnabled
	p.QuietHours.Start = pl.QuietHoursStart
	p.QuietHours.End = pl.QuietHoursEnd
	return p
}

// handlePopupPreferences returns the preferences on GET. A POST body is
// merged over the current values, so omitted fields are kept.
func (h *Handler) handlePopupPreferences(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		respondJSON(w, toPayload(h.deps.Policy.Preferences()))
		return
	}
	if !allow(w, r, http.MethodPost) {
		return
	}

	current := h.deps.Policy.Preferences()
	payload := toPayload(current)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	warnings := h.deps.Policy.UpdatePreferences(payload.apply(current))
	if warnings == nil {
		warnings = []string{}
	}
	respondJSON(w, map[string]any{
		"preferences": toPayload(h.deps.Policy.Preferences()),
		"warnings":    warnings,
	})
}

func (h *Handler) handleCompanionStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, h.deps.Companion.Status(r.Context()))
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleCompanionChat(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	reply, err := h.deps.Companion.Chat(r.Context(), req.Message)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, companion.ErrNotRunning) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(reply)
}

func (h *Handler) handleCompanionReset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	if err := h.deps.Companion.Reset(r.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, companion.ErrNotRunning) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	respondJSON(w, map[string]bool{"reset": true})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	st := h.deps.Tracker.Status()
	status := map[string]any{
		"running":       st.Running,
		"poll_interval": h.config.Tracker.PollInterval.String(),
		"database_path": h.config.Database.Path,
		"distracted":    h.config.Focus.DistractedCategories,
		"tracker":       st,
	}
	if st.LastFlushError != "" {
		status["persistence_error"] = st.LastFlushError
	}

	if h.deps.Errors != nil {
		if recent, err := h.deps.Errors.RecentErrors(1); err == nil && len(recent) > 0 {
			status["last_error"] = map[string]any{
				"source":    recent[0].Source,
				"message":   recent[0].ErrorMsg,
				"timestamp": recent[0].Timestamp,
			}
		}
	}

	respondJSON(w, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}

// allow rejects requests with a method other than method. CORS preflight
// requests are answered directly.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		setCORS(w)
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	setCORS(w)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("error encoding JSON", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
