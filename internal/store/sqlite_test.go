package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "watcher.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLite_SessionLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	session := &domain.Session{
		SessionID: "sess-1",
		UserID:    "default",
		StartedAt: time.Now(),
		Phase:     "active",
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Re-creating the same session updates the phase instead of failing.
	if err := repo.CreateSession(ctx, session); err != nil {
		t.Errorf("CreateSession upsert: %v", err)
	}

	if err := repo.CloseSession(ctx, "sess-1", time.Now(), "stopped"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
}

func TestSQLite_EnvelopeJournal(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env := &domain.ContextEnvelope{
			TypingSpeedRatio:    1.0,
			ScreenContentType:   "text",
			WorkStatus:          "unclear",
			VerbalConfusionCues: []string{},
			SessionID:           "sess-1",
			UserID:              "default",
			Source:              domain.EnvelopeSource,
			DetectedTopic:       "recursion",
		}
		if err := repo.JournalEnvelope(ctx, env, i%2 == 0); err != nil {
			t.Fatalf("JournalEnvelope %d: %v", i, err)
		}
	}

	records, err := repo.RecentEnvelopes(ctx, 2)
	if err != nil {
		t.Fatalf("RecentEnvelopes: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Records = %d, want 2", len(records))
	}

	// Newest first.
	if records[0].ID <= records[1].ID {
		t.Errorf("Order = [%d %d], want newest first", records[0].ID, records[1].ID)
	}

	var env domain.ContextEnvelope
	if err := json.Unmarshal([]byte(records[0].Payload), &env); err != nil {
		t.Fatalf("Payload unmarshal: %v", err)
	}
	if env.DetectedTopic != "recursion" || env.Source != "watcher" {
		t.Errorf("Payload = %+v", env)
	}
}

func TestSQLite_RecentEnvelopesDefaultLimit(t *testing.T) {
	repo := newTestStore(t)

	records, err := repo.RecentEnvelopes(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentEnvelopes: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Records on empty journal = %d", len(records))
	}
}
