package ports

import (
	"context"

	"github.com/propapanda/dinky/pkg/domain"
)

// StateStore persists session snapshots, enabling stop-and-resume play.
type StateStore interface {
	// Save persists the snapshot for a session ID.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the snapshot for a session ID.
	// Returns domain.ErrSessionNotFound when the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the snapshot for a session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the known session IDs.
	List(ctx context.Context) ([]string, error)
}
