package handlers

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/adminguard/internal/geo"
	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/internal/services"
	pkghttp "github.com/BradenHooton/adminguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerEpoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func adminValidator() *services.MockValidator {
	return &services.MockValidator{ValidateFunc: func(context.Context, string, string) (*services.CredentialResult, error) {
		return &services.CredentialResult{User: &models.User{ID: "u1"}, HasAdminAccess: true}, nil
	}}
}

func newTestHandler(t *testing.T, validator services.Validator) (*ConsoleHandler, *services.FakeClock) {
	t.Helper()
	clock := services.NewFakeClock(handlerEpoch)
	registry := NewTestRegistry(t, validator, clock.Now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConsoleHandler(registry, &pkghttp.IPConfig{}, nil, logger), clock
}

func login(t *testing.T, h *ConsoleHandler, tabID, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	req := WithTab(NewTestRequest(t, http.MethodPost, "/admin/login", LoginRequest{Email: email, Password: password}), tabID)
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestConsoleHandler_LoginSuccess(t *testing.T) {
	h, _ := newTestHandler(t, adminValidator())

	rec := login(t, h, "tab-1", "admin@bank.test", "x")

	var view services.ConsoleView
	AssertJSONResponse(t, rec, http.StatusOK, &view)
	assert.Equal(t, models.StatusAuthenticated, view.Status)
	assert.Equal(t, "30:00", view.RemainingTime)
	assert.Equal(t, 1, view.ActiveSessions)
}

func TestConsoleHandler_LoginOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		validator services.Validator
		attempts  int
		wantCode  int
		wantError string
		wantText  string
	}{
		{
			name:      "invalid credentials",
			validator: &services.MockValidator{},
			attempts:  1,
			wantCode:  http.StatusUnauthorized,
			wantError: "invalid_credentials",
			wantText:  "2 attempts remaining",
		},
		{
			name: "insufficient privilege",
			validator: &services.MockValidator{ValidateFunc: func(context.Context, string, string) (*services.CredentialResult, error) {
				return &services.CredentialResult{User: &models.User{ID: "u2"}}, nil
			}},
			attempts:  1,
			wantCode:  http.StatusForbidden,
			wantError: "insufficient_privilege",
			wantText:  "Admin privileges required",
		},
		{
			name:      "locked out",
			validator: &services.MockValidator{},
			attempts:  3,
			wantCode:  http.StatusTooManyRequests,
			wantError: "locked_out",
			wantText:  "locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.validator)

			var rec *httptest.ResponseRecorder
			for i := 0; i < tt.attempts; i++ {
				rec = login(t, h, "tab-1", "admin@bank.test", "bad")
			}

			resp := AssertErrorResponse(t, rec, tt.wantCode, tt.wantError)
			assert.Contains(t, resp.Message, tt.wantText)
		})
	}
}

func TestConsoleHandler_RateLimited(t *testing.T) {
	denied := &services.MockValidator{ValidateFunc: func(context.Context, string, string) (*services.CredentialResult, error) {
		return &services.CredentialResult{User: &models.User{ID: "u2"}}, nil
	}}
	h, _ := newTestHandler(t, denied)

	for i := 0; i < 5; i++ {
		login(t, h, "tab-1", "teller@bank.test", "x")
	}
	rec := login(t, h, "tab-1", "teller@bank.test", "x")

	AssertErrorResponse(t, rec, http.StatusTooManyRequests, "rate_limited")
	assert.Equal(t, 5, denied.Calls())
}

func TestConsoleHandler_LoginValidation(t *testing.T) {
	h, _ := newTestHandler(t, &services.MockValidator{})

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"missing password", LoginRequest{Email: "admin@bank.test"}, "password"},
		{"malformed email", LoginRequest{Email: "admin", Password: "x"}, "email"},
		{"not json", "just a string", "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := WithTab(NewTestRequest(t, http.MethodPost, "/admin/login", tt.body), "tab-1")
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			resp := AssertErrorResponse(t, rec, http.StatusBadRequest, "bad_request")
			assert.Contains(t, resp.Message, tt.want)
		})
	}
}

func TestConsoleHandler_LoginPassesClientIP(t *testing.T) {
	var seenIP string
	validator := &services.MockValidator{ValidateFunc: func(ctx context.Context, _, _ string) (*services.CredentialResult, error) {
		seenIP = geo.ClientIPFrom(ctx)
		return nil, nil
	}}
	h, _ := newTestHandler(t, validator)

	req := WithTab(NewTestRequest(t, http.MethodPost, "/admin/login", LoginRequest{Email: "admin@bank.test", Password: "x"}), "tab-1")
	req.RemoteAddr = "198.51.100.20:5555"
	h.Login(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.20", seenIP)
}

func TestConsoleHandler_MissingTab(t *testing.T) {
	h, _ := newTestHandler(t, &services.MockValidator{})

	rec := httptest.NewRecorder()
	h.Console(rec, httptest.NewRequest(http.MethodGet, "/admin/console", nil))

	AssertErrorResponse(t, rec, http.StatusBadRequest, "bad_request")
}

func TestConsoleHandler_LogoutAndConsole(t *testing.T) {
	h, _ := newTestHandler(t, adminValidator())
	login(t, h, "tab-1", "admin@bank.test", "x")

	rec := httptest.NewRecorder()
	h.Logout(rec, WithTab(httptest.NewRequest(http.MethodPost, "/admin/logout", nil), "tab-1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Console(rec, WithTab(httptest.NewRequest(http.MethodGet, "/admin/console", nil), "tab-1"))

	var view services.ConsoleView
	AssertJSONResponse(t, rec, http.StatusOK, &view)
	assert.Equal(t, models.StatusUnauthenticated, view.Status)
	assert.Empty(t, view.Message)
	assert.Equal(t, 0, view.ActiveSessions)
}

func TestConsoleHandler_TabsAreSeparate(t *testing.T) {
	h, _ := newTestHandler(t, adminValidator())
	login(t, h, "tab-1", "admin@bank.test", "x")

	rec := httptest.NewRecorder()
	h.Console(rec, WithTab(httptest.NewRequest(http.MethodGet, "/admin/console", nil), "tab-2"))

	var view services.ConsoleView
	AssertJSONResponse(t, rec, http.StatusOK, &view)
	assert.Equal(t, models.StatusUnauthenticated, view.Status)
	assert.Equal(t, 1, view.ActiveSessions, "the roster is shared across tabs")
}

func TestConsoleHandler_Activity(t *testing.T) {
	h, _ := newTestHandler(t, adminValidator())

	rec := httptest.NewRecorder()
	h.Activity(rec, WithTab(httptest.NewRequest(http.MethodPost, "/admin/activity", nil), "tab-1"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestConsoleHandler_EventsStream(t *testing.T) {
	h, _ := newTestHandler(t, adminValidator())
	h.heartbeat = time.Hour

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Events(w, WithTab(r, "tab-1"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	assert.Equal(t, "status", first.name)
	assert.Contains(t, first.data, `"status":"unauthenticated"`)

	login(t, h, "tab-1", "admin@bank.test", "x")

	// Authenticating, then authenticated, then the roster change
	var authenticated, sessions string
	for authenticated == "" || sessions == "" {
		ev := readEvent(t, reader)
		switch {
		case ev.name == "status" && strings.Contains(ev.data, `"status":"authenticated"`):
			authenticated = ev.data
		case ev.name == "sessions":
			sessions = ev.data
		}
	}
	assert.Contains(t, authenticated, `"remaining_time":"30:00"`)
	assert.Contains(t, sessions, `"active_sessions":1`)
}

func TestConsoleHandler_LoginOutlastsServerWriteTimeout(t *testing.T) {
	slowAdmin := &services.MockValidator{ValidateFunc: func(context.Context, string, string) (*services.CredentialResult, error) {
		time.Sleep(300 * time.Millisecond)
		return &services.CredentialResult{User: &models.User{ID: "u1"}, HasAdminAccess: true}, nil
	}}

	post := func(t *testing.T, h *ConsoleHandler) (*http.Response, error) {
		t.Helper()
		server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.Login(w, WithTab(r, "tab-1"))
		}))
		server.Config.WriteTimeout = 50 * time.Millisecond
		server.Start()
		t.Cleanup(server.Close)

		return http.Post(server.URL, "application/json", strings.NewReader(`{"email":"admin@bank.test","password":"x"}`))
	}

	t.Run("server deadline drops the response", func(t *testing.T) {
		h, _ := newTestHandler(t, slowAdmin)
		resp, err := post(t, h)
		if err == nil {
			resp.Body.Close()
		}
		assert.Error(t, err)
	})

	t.Run("login deadline delivers it", func(t *testing.T) {
		h, _ := newTestHandler(t, slowAdmin)
		h.SetLoginWriteTimeout(5 * time.Second)

		resp, err := post(t, h)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}
