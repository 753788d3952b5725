package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ConsoleFactory builds the console of a tab
type ConsoleFactory func(tabID string) *LoginOrchestrator

// NewConsoleFactory binds shared config and collaborators to a per-tab store
func NewConsoleFactory(cfg OrchestratorConfig, deps OrchestratorDeps, storeFor func(tabID string) SessionStore) ConsoleFactory {
	return func(tabID string) *LoginOrchestrator {
		tabDeps := deps
		tabDeps.Store = storeFor(tabID)
		return NewLoginOrchestrator(tabID, cfg, tabDeps)
	}
}

// ConsoleRegistry maps tab ids to mounted consoles
type ConsoleRegistry struct {
	mu       sync.Mutex
	consoles map[string]*LoginOrchestrator
	factory  ConsoleFactory
	logger   *slog.Logger
}

func NewConsoleRegistry(factory ConsoleFactory, logger *slog.Logger) *ConsoleRegistry {
	return &ConsoleRegistry{
		consoles: make(map[string]*LoginOrchestrator),
		factory:  factory,
		logger:   logger,
	}
}

// Get returns the tab's console, creating and mounting it on first use
func (r *ConsoleRegistry) Get(ctx context.Context, tabID string) *LoginOrchestrator {
	r.mu.Lock()
	console, ok := r.consoles[tabID]
	if !ok {
		console = r.factory(tabID)
		r.consoles[tabID] = console
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("console created", slog.String("tab_id", tabID))
	}
	console.Mount(ctx)
	return console
}

// Evict closes consoles with no session or lockout that saw no request for idleFor
func (r *ConsoleRegistry) Evict(idleFor time.Duration) int {
	r.mu.Lock()
	var evicted []*LoginOrchestrator
	for tabID, console := range r.consoles {
		if console.Idle(idleFor) {
			evicted = append(evicted, console)
			delete(r.consoles, tabID)
		}
	}
	r.mu.Unlock()

	for _, console := range evicted {
		console.Close()
	}
	return len(evicted)
}

func (r *ConsoleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consoles)
}

// Close stops every console. Sessions stay in the roster.
func (r *ConsoleRegistry) Close() {
	r.mu.Lock()
	consoles := r.consoles
	r.consoles = make(map[string]*LoginOrchestrator)
	r.mu.Unlock()

	for _, console := range consoles {
		console.Close()
	}
}
