package domain

import "time"

// Session records one monitoring session for the journal.
type Session struct {
	SessionID string
	UserID    string
	StartedAt time.Time
	StoppedAt time.Time
	Phase     string
}

// EnvelopeRecord is one journaled envelope delivery, read back from the store.
type EnvelopeRecord struct {
	ID        int64
	SessionID string
	Payload   string
	Delivered bool
	CreatedAt time.Time
}
