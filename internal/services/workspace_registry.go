package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"yield-service/internal/models"

	"github.com/google/uuid"
)

// WorkspaceRegistry owns the open field workspaces and expires idle ones.
type WorkspaceRegistry struct {
	deps     WorkspaceDeps
	idleTTL  time.Duration
	onRemove func(id string)
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*FieldWorkspace
}

// NewWorkspaceRegistry creates a registry. onRemove runs after a workspace is dropped
// (the websocket manager uses it to disconnect that workspace's clients).
func NewWorkspaceRegistry(deps WorkspaceDeps, idleTTL time.Duration, onRemove func(id string)) *WorkspaceRegistry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceRegistry{
		deps:       deps,
		idleTTL:    idleTTL,
		onRemove:   onRemove,
		logger:     logger.With("component", "workspace-registry"),
		now:        time.Now,
		workspaces: make(map[string]*FieldWorkspace),
	}
}

func (r *WorkspaceRegistry) Create(clientIP string) *FieldWorkspace {
	id := uuid.NewString()
	w := NewFieldWorkspace(id, clientIP, r.deps)

	r.mu.Lock()
	r.workspaces[id] = w
	total := len(r.workspaces)
	r.mu.Unlock()

	r.logger.Info("field workspace created", "workspace_id", id, "open", total)
	return w
}

func (r *WorkspaceRegistry) Get(id string) (*FieldWorkspace, error) {
	r.mu.RLock()
	w, ok := r.workspaces[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, models.ErrNotFound)
	}
	return w, nil
}

func (r *WorkspaceRegistry) Remove(id string) bool {
	r.mu.Lock()
	w, ok := r.workspaces[id]
	delete(r.workspaces, id)
	r.mu.Unlock()
	if !ok {
		return false
	}

	w.Close()
	if r.onRemove != nil {
		r.onRemove(id)
	}
	r.logger.Info("field workspace removed", "workspace_id", id)
	return true
}

func (r *WorkspaceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// SweepIdle removes workspaces untouched for longer than the idle TTL. Its signature
// matches worker.Job so the scheduler can run it.
func (r *WorkspaceRegistry) SweepIdle(ctx context.Context) error {
	if r.idleTTL <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.RLock()
	var expired []string
	for id, w := range r.workspaces {
		if w.LastActive().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Remove(id)
	}
	if len(expired) > 0 {
		r.logger.Info("idle workspaces swept", "removed", len(expired))
	}
	return nil
}
