package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/internal/services"
	"github.com/BradenHooton/adminguard/internal/sessionstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, clock *services.FakeClock, kv sessionstore.KV, validator services.Validator) *services.ConsoleRegistry {
	t.Helper()
	base := sessionstore.NewStore(kv, "", quietLogger())
	cfg := services.OrchestratorConfig{
		Lockout:              services.DefaultLockoutConfig(),
		SessionTimeout:       testSessionTimeout,
		IdleTimeout:          10 * time.Minute,
		CountdownInterval:    time.Hour,
		SyncInterval:         time.Hour,
		CountBackendFailures: true,
		Now:                  clock.Now,
	}
	deps := services.OrchestratorDeps{
		Validator: validator,
		Geo:       &services.MockGeoResolver{},
		Logger:    quietLogger(),
	}
	factory := services.NewConsoleFactory(cfg, deps, func(tabID string) services.SessionStore {
		return base.ForTab(tabID)
	})
	registry := services.NewConsoleRegistry(factory, quietLogger())
	t.Cleanup(registry.Close)
	return registry
}

func TestConsoleRegistry_GetReturnsSameConsole(t *testing.T) {
	registry := newRegistry(t, services.NewFakeClock(consoleEpoch), sessionstore.NewMemoryKV(), &services.MockValidator{})

	first := registry.Get(context.Background(), "tab-a")
	again := registry.Get(context.Background(), "tab-a")
	other := registry.Get(context.Background(), "tab-b")

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, "tab-b", other.TabID())
	assert.Equal(t, 2, registry.Len())
}

func TestConsoleRegistry_TabsAreIsolated(t *testing.T) {
	validator := &services.MockValidator{}
	registry := newRegistry(t, services.NewFakeClock(consoleEpoch), sessionstore.NewMemoryKV(), validator)

	locked := registry.Get(context.Background(), "tab-a")
	for i := 0; i < 3; i++ {
		locked.Submit(context.Background(), "admin@bank.test", "bad")
	}
	require.Equal(t, models.StatusLockedOut, locked.State().Status())

	fresh := registry.Get(context.Background(), "tab-b")
	assert.Equal(t, models.StatusUnauthenticated, fresh.State().Status())
	assert.Equal(t, 0, fresh.SecurityState().FailedAttempts)
}

func TestConsoleRegistry_EvictKeepsSessionsAndLockouts(t *testing.T) {
	clock := services.NewFakeClock(consoleEpoch)
	validator := &services.MockValidator{}
	registry := newRegistry(t, clock, sessionstore.NewMemoryKV(), validator)

	registry.Get(context.Background(), "idle")

	locked := registry.Get(context.Background(), "locked")
	for i := 0; i < 3; i++ {
		locked.Submit(context.Background(), "admin@bank.test", "bad")
	}

	validator.ValidateFunc = func(context.Context, string, string) (*services.CredentialResult, error) {
		return &services.CredentialResult{User: &models.User{ID: "u1"}, HasAdminAccess: true}, nil
	}
	authed := registry.Get(context.Background(), "authed")
	require.Equal(t, services.OutcomeSuccess, authed.Submit(context.Background(), "admin@bank.test", "x").Outcome)

	clock.Advance(5 * time.Minute)
	evicted := registry.Evict(time.Minute)

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 2, registry.Len())
	assert.Same(t, locked, registry.Get(context.Background(), "locked"))
	assert.Same(t, authed, registry.Get(context.Background(), "authed"))
}

func TestConsoleRegistry_RecreatedConsoleRestoresSession(t *testing.T) {
	clock := services.NewFakeClock(consoleEpoch)
	kv := sessionstore.NewMemoryKV()
	validator := &services.MockValidator{ValidateFunc: func(context.Context, string, string) (*services.CredentialResult, error) {
		return &services.CredentialResult{User: &models.User{ID: "u1"}, HasAdminAccess: true}, nil
	}}

	first := newRegistry(t, clock, kv, validator)
	console := first.Get(context.Background(), "tab-a")
	require.Equal(t, services.OutcomeSuccess, console.Submit(context.Background(), "admin@bank.test", "x").Outcome)
	first.Close()

	// A second process sharing the backend picks the session up on mount
	clock.Advance(time.Minute)
	second := newRegistry(t, clock, kv, validator)
	restored := second.Get(context.Background(), "tab-a")

	assert.Equal(t, models.StatusAuthenticated, restored.State().Status())
	assert.Equal(t, "29:00", restored.View().RemainingTime)
}
