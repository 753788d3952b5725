package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/adminguard/internal/auth"
	"github.com/BradenHooton/adminguard/internal/geo"
	"github.com/BradenHooton/adminguard/internal/services"
	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
)

const defaultHeartbeat = 15 * time.Second

// ConsoleRegistry hands out the console of a tab
type ConsoleRegistry interface {
	Get(ctx context.Context, tabID string) *services.LoginOrchestrator
}

// ConsoleHandler serves the admin login console of each browser tab
type ConsoleHandler struct {
	consoles  ConsoleRegistry
	ipConfig  *pkghttp.IPConfig
	timing    *auth.TimingDelay
	heartbeat time.Duration
	logger    *slog.Logger

	loginWriteTimeout time.Duration
}

// NewConsoleHandler creates a new ConsoleHandler. timing may be nil.
func NewConsoleHandler(consoles ConsoleRegistry, ipConfig *pkghttp.IPConfig, timing *auth.TimingDelay, logger *slog.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		consoles:  consoles,
		ipConfig:  ipConfig,
		timing:    timing,
		heartbeat: defaultHeartbeat,
		logger:    logger,
	}
}

// SetLoginWriteTimeout gives POST /admin/login its own write deadline. A
// login blocks on session geolocation, which can outlast the server-wide
// write timeout; the deadline must cover that lookup or a successful login
// reaches the client as a dropped connection. Zero keeps the server default.
func (h *ConsoleHandler) SetLoginWriteTimeout(d time.Duration) {
	h.loginWriteTimeout = d
}

// LoginRequest is the body of POST /admin/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

func (h *ConsoleHandler) console(r *http.Request) (*services.LoginOrchestrator, bool) {
	tabID := auth.GetTabID(r)
	if tabID == "" {
		return nil, false
	}
	return h.consoles.Get(r.Context(), tabID), true
}

// Console handles GET /admin/console
func (h *ConsoleHandler) Console(w http.ResponseWriter, r *http.Request) {
	console, ok := h.console(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "missing tab identity")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, console.View())
}

// Login handles POST /admin/login
func (h *ConsoleHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.loginWriteTimeout > 0 {
		if err := http.NewResponseController(w).SetWriteDeadline(start.Add(h.loginWriteTimeout)); err != nil {
			h.logger.Debug("login write deadline not extended", slog.Any("error", err))
		}
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<14)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	console, ok := h.console(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "missing tab identity")
		return
	}

	ctx := geo.WithClientIP(r.Context(), pkghttp.ExtractClientIP(r, h.ipConfig))
	result := console.Submit(ctx, req.Email, req.Password)

	switch result.Outcome {
	case services.OutcomeSuccess:
		pkghttp.WriteJSON(w, http.StatusOK, console.View())
	case services.OutcomeInvalidCredentials:
		h.timing.WaitFrom(start, false)
		pkghttp.WriteError(w, http.StatusUnauthorized, string(result.Outcome), result.Message)
	case services.OutcomeInsufficientPrivilege:
		h.timing.WaitFrom(start, false)
		pkghttp.WriteError(w, http.StatusForbidden, string(result.Outcome), result.Message)
	case services.OutcomeLockedOut, services.OutcomeRateLimited:
		pkghttp.WriteError(w, http.StatusTooManyRequests, string(result.Outcome), result.Message)
	case services.OutcomeInProgress:
		pkghttp.WriteError(w, http.StatusConflict, string(result.Outcome), result.Message)
	default:
		h.logger.Error("unknown login outcome", slog.String("outcome", string(result.Outcome)))
		pkghttp.WriteInternalError(w, "internal server error")
	}
}

// Logout handles POST /admin/logout
func (h *ConsoleHandler) Logout(w http.ResponseWriter, r *http.Request) {
	console, ok := h.console(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "missing tab identity")
		return
	}
	console.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Activity handles POST /admin/activity, sent by the page on qualifying interactions
func (h *ConsoleHandler) Activity(w http.ResponseWriter, r *http.Request) {
	console, ok := h.console(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "missing tab identity")
		return
	}
	console.OnUserActivity(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /admin/events as a server-sent event stream. The first
// event is the current view; later ones follow the console's changes.
func (h *ConsoleHandler) Events(w http.ResponseWriter, r *http.Request) {
	console, ok := h.console(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "missing tab identity")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		pkghttp.WriteInternalError(w, "streaming unsupported")
		return
	}

	// Long-lived stream; lift the server's write deadline where supported
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, release := console.Subscribe()
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, services.EventStatus, console.View()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-console.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if err := writeEvent(w, ev.Type, ev.View); err != nil {
				h.logger.Debug("event stream closed", slog.Any("error", err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, eventType services.EventType, view services.ConsoleView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}
