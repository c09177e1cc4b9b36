package vision

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

// FrameSource provides frames of the monitored surface.
type FrameSource interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// CaptureLoop drives the provider-call cadence. Each tick it acquires one
// frame, calls the provider with the prior-context window and any pending
// transcript, and emits the parsed observation.
//
// Overlap policy: at most one provider call is in flight. A tick that fires
// while the previous call is still pending is skipped, which bounds backlog
// when the provider is slow. The ticker itself is never blocked by a call.
type CaptureLoop struct {
	source     FrameSource
	analyzer   Analyzer
	buffer     *ContextBuffer
	interval   time.Duration
	sink       func(domain.VisionObservation)
	transcript func() string
	notify     func(domain.StatusNote)
	logger     *slog.Logger
	inFlight   atomic.Bool
	cycles     sync.WaitGroup
}

// NewCaptureLoop wires a capture loop. sink receives parsed observations,
// transcript peeks at (without consuming) pending speech text, and notify
// surfaces status-only notifications.
func NewCaptureLoop(
	source FrameSource,
	analyzer Analyzer,
	buffer *ContextBuffer,
	interval time.Duration,
	sink func(domain.VisionObservation),
	transcript func() string,
	notify func(domain.StatusNote),
	logger *slog.Logger,
) *CaptureLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureLoop{
		source:     source,
		analyzer:   analyzer,
		buffer:     buffer,
		interval:   interval,
		sink:       sink,
		transcript: transcript,
		notify:     notify,
		logger:     logger,
	}
}

// Run fires capture cycles until ctx is cancelled. It returns only after
// any cycle still in flight has finished, so the caller's join covers the
// whole loop; a cancelled cycle discards its results on the way out.
func (l *CaptureLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.cycles.Wait()
			return
		case <-ticker.C:
			if !l.inFlight.CompareAndSwap(false, true) {
				l.logger.Debug("[VISION] Previous call still pending, tick skipped")
				continue
			}
			l.cycles.Add(1)
			go func() {
				defer l.cycles.Done()
				defer l.inFlight.Store(false)
				l.cycle(ctx)
			}()
		}
	}
}

// cycle runs one capture-analyze-parse pass. Every failure degrades to
// "this tick produced nothing": acquisition and actionable provider
// failures surface a status note, parse failures are silent.
func (l *CaptureLoop) cycle(ctx context.Context) {
	frame, err := l.source.CaptureFrame(ctx)
	if err != nil || len(frame) == 0 {
		if ctx.Err() != nil {
			return
		}
		detail := "empty frame"
		if err != nil {
			detail = err.Error()
		}
		l.logger.Debug("[VISION] Frame acquisition failed", "error", detail)
		l.notify(domain.StatusNote{
			Kind:   domain.StatusAcquisitionFailed,
			Detail: detail,
			Time:   time.Now(),
		})
		return
	}

	raw, err := l.analyzer.Analyze(ctx, AnalysisRequest{
		Frame:        frame,
		PriorContext: l.buffer.Recent(PriorContextWindow),
		Transcript:   l.transcript(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.reportProviderError(err)
		return
	}

	if ctx.Err() != nil {
		return
	}

	obs, err := ExtractObservation(raw)
	if err != nil {
		// Expected to happen occasionally; no status noise.
		l.logger.Debug("[VISION] Unparseable response, cycle skipped", "error", err)
		return
	}

	l.buffer.Push(raw)
	l.sink(obs)
}

// reportProviderError surfaces auth and capacity failures, which the user
// can act on; everything else stays at debug level.
func (l *CaptureLoop) reportProviderError(err error) {
	kind := ClassifyProviderError(err)
	l.logger.Debug("[VISION] Provider call failed", "kind", kind, "error", err)

	var status domain.StatusKind
	switch kind {
	case ProviderErrAuth:
		status = domain.StatusProviderAuth
	case ProviderErrQuota:
		status = domain.StatusProviderQuota
	case ProviderErrRate:
		status = domain.StatusProviderRate
	default:
		return
	}
	l.notify(domain.StatusNote{
		Kind:   status,
		Detail: fmt.Sprintf("vision provider: %v", err),
		Time:   time.Now(),
	})
}
