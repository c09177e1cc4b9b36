// Package store provides local persistence for the observation journal.
package store

import (
	"context"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

// Repository persists sessions and the dispatched-envelope journal. The
// journal is strictly best effort: a write failure never blocks dispatch.
type Repository interface {
	// CreateSession records a session entering Active.
	CreateSession(ctx context.Context, session *domain.Session) error

	// CloseSession records a session leaving Active with its final phase.
	CloseSession(ctx context.Context, sessionID string, stoppedAt time.Time, phase string) error

	// JournalEnvelope appends one dispatched envelope with its outcome.
	JournalEnvelope(ctx context.Context, env *domain.ContextEnvelope, delivered bool) error

	// RecentEnvelopes returns the newest journaled envelopes, newest first.
	RecentEnvelopes(ctx context.Context, limit int) ([]domain.EnvelopeRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
