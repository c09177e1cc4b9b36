package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

// ContentSource extracts the currently visible content from the monitored
// surface. Called at emission time only, never continuously.
type ContentSource interface {
	ExtractContent(ctx context.Context) (text string, kind domain.ContentType, url string, err error)
}

// Loop emits one ActivitySignal per tick. A failed emission is dropped
// silently: counters have already been reset by the snapshot, so there is
// no retry and no backlog.
type Loop struct {
	state    *TrackerState
	content  ContentSource
	interval time.Duration
	sink     func(domain.ActivitySignal) error
	logger   *slog.Logger
}

// NewLoop wires a tracker emission loop around existing state.
func NewLoop(state *TrackerState, content ContentSource, interval time.Duration, sink func(domain.ActivitySignal) error, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		state:    state,
		content:  content,
		interval: interval,
		sink:     sink,
		logger:   logger,
	}
}

// Run emits signals until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.emit(ctx, now)
		}
	}
}

func (l *Loop) emit(ctx context.Context, now time.Time) {
	text, kind, url, err := l.content.ExtractContent(ctx)
	if err != nil {
		l.logger.Debug("[TRACKER] Content extraction failed", "error", err)
		text, kind = "", domain.ContentTypeText
	}

	sig := l.state.Snapshot(now, text, kind, url)

	if err := l.sink(sig); err != nil {
		l.logger.Debug("[TRACKER] Emission dropped", "error", err)
	}
}
