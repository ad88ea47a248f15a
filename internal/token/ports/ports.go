// Package ports defines the interfaces the ledger's outer surfaces consume.
// Interfaces are placed here when more than one adapter depends on them.
package ports

import (
	"context"

	"ftledger/internal/token/models"
	"ftledger/internal/token/state"
	id "ftledger/pkg/domain"
)

// ActionHandler applies ledger actions. Implemented by service.Dispatcher.
type ActionHandler interface {
	Handle(ctx context.Context, caller id.ActorID, action models.Action) (models.Reply, error)
}

// QueryHandler answers read-only queries. Implemented by service.Dispatcher.
type QueryHandler interface {
	Query(ctx context.Context, q models.Query) (models.QueryReply, error)
}

// Ledger is the full dispatcher surface used by the HTTP handler.
type Ledger interface {
	ActionHandler
	QueryHandler
}

// SnapshotSource exposes the state the snapshot job persists.
type SnapshotSource interface {
	// Sweep removes expired journal records and returns how many were removed.
	Sweep(ctx context.Context) int

	// Snapshot copies the current state together with its revision.
	Snapshot() state.Snapshot

	// Version returns the current state revision.
	Version() uint64
}

// SnapshotStore persists full ledger snapshots.
type SnapshotStore interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap state.Snapshot) error

	// Load returns the stored snapshot or an error wrapping
	// sentinel.ErrNotFound when none was saved.
	Load(ctx context.Context) (state.Snapshot, error)
}

// ReplyPublisher delivers dispatch outcomes to the replies topic.
type ReplyPublisher interface {
	Publish(ctx context.Context, key string, env models.ReplyEnvelope) error
}
