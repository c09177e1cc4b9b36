// Package session implements the session state machine. One supervisor
// owns the capture loops and the backend link and starts or stops them as
// a single unit; there is no half-started state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ambientlearn/watcher/internal/backend"
	"github.com/ambientlearn/watcher/internal/config"
	"github.com/ambientlearn/watcher/internal/domain"
	"github.com/ambientlearn/watcher/internal/fusion"
	"github.com/ambientlearn/watcher/internal/relay"
	"github.com/ambientlearn/watcher/internal/store"
	"github.com/ambientlearn/watcher/internal/surface"
	"github.com/ambientlearn/watcher/internal/tracker"
	"github.com/ambientlearn/watcher/internal/vision"
)

// Phase is the session lifecycle state.
type Phase string

const (
	// PhaseReady is the initial state.
	PhaseReady Phase = "ready"
	// PhaseConnecting means a start is validating the vision provider.
	PhaseConnecting Phase = "connecting"
	// PhaseActive means the capture loops and backend link are running.
	PhaseActive Phase = "active"
	// PhaseStopped means an active session was stopped cleanly.
	PhaseStopped Phase = "stopped"
	// PhaseError means the last start failed validation.
	PhaseError Phase = "error"
)

// ErrToggleInFlight is returned when a toggle arrives while another is
// still connecting.
var ErrToggleInFlight = errors.New("toggle already in flight")

// Surface is what the supervisor needs from the monitored surface.
type Surface interface {
	vision.FrameSource
	tracker.ContentSource
	Run(ctx context.Context)
}

// duplexHandle abstracts the duplex channel for shutdown and tests.
type duplexHandle interface {
	Close()
}

// Supervisor owns the single session. Toggle transitions are serialized
// under one mutex: a toggle that arrives while another is connecting waits
// for it, never interleaves with it.
type Supervisor struct {
	cfg      *config.Config
	analyzer vision.Analyzer
	surface  Surface // nil when no browser is attached
	state    *fusion.State
	client   *backend.Client
	buffer   *vision.ContextBuffer
	router   *relay.Router
	repo     store.Repository
	logger   *slog.Logger

	dial func(ctx context.Context, baseURL string) (duplexHandle, error)

	mu        sync.Mutex
	phase     Phase
	sessionID string
	trk       *tracker.TrackerState
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	duplex    duplexHandle

	inbox <-chan relay.Message
}

// NewSupervisor wires the session owner. surf may be nil; frame capture
// then fails as an acquisition error on every vision tick.
func NewSupervisor(
	cfg *config.Config,
	analyzer vision.Analyzer,
	surf Surface,
	state *fusion.State,
	client *backend.Client,
	router *relay.Router,
	repo store.Repository,
	logger *slog.Logger,
) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		analyzer: analyzer,
		surface:  surf,
		state:    state,
		client:   client,
		buffer:   vision.NewContextBuffer(vision.DefaultBufferSize),
		router:   router,
		repo:     repo,
		logger:   logger,
		phase:    PhaseReady,
		inbox:    router.Register(relay.BoundaryHost, 256),
		dial: func(ctx context.Context, baseURL string) (duplexHandle, error) {
			return backend.DialDuplex(ctx, baseURL, router, logger)
		},
	}
}

// Phase returns the current lifecycle state.
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SessionID returns the current session identifier, empty when inactive.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseActive {
		return ""
	}
	return s.sessionID
}

// Toggle starts the session when idle and stops it when active. Start
// performs a synchronous provider validation before any loop is launched;
// on validation failure nothing is left running.
func (s *Supervisor) Toggle(ctx context.Context) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseConnecting:
		return s.phase, ErrToggleInFlight
	case PhaseActive:
		s.stopLocked(ctx)
		return s.phase, nil
	default: // Ready, Stopped, Error
		return s.phase, s.startLocked(ctx)
	}
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	s.phase = PhaseConnecting
	s.logger.Info("[SESSION] Starting", "backend", s.cfg.BackendURL)

	if err := s.analyzer.Validate(ctx); err != nil {
		s.phase = PhaseError
		s.notify(domain.StatusNote{
			Kind:   domain.StatusSessionError,
			Detail: fmt.Sprintf("provider validation failed: %v", err),
			Time:   time.Now(),
		})
		return fmt.Errorf("validate provider: %w", err)
	}

	s.sessionID = uuid.NewString()
	s.state.ResetSession(s.sessionID)
	s.trk = tracker.NewTrackerState(s.cfg.TrackInterval)

	// Loops outlive the toggle request; their lifetime is the session's.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.surface != nil {
		s.runLoop(runCtx, s.surface.Run)
		trackLoop := tracker.NewLoop(s.trk, s.surface, s.cfg.TrackInterval, func(sig domain.ActivitySignal) error {
			s.state.UpdateActivity(sig)
			return nil
		}, s.logger)
		s.runLoop(runCtx, trackLoop.Run)
	}

	var source vision.FrameSource = noFrameSource{}
	if s.surface != nil {
		source = s.surface
	}
	captureLoop := vision.NewCaptureLoop(
		source,
		s.analyzer,
		s.buffer,
		s.cfg.VisionInterval,
		s.state.UpdateVision,
		s.state.PeekTranscript,
		s.notify,
		s.logger,
	)
	s.runLoop(runCtx, captureLoop.Run)

	dispatcher := fusion.NewDispatcher(s.state, s.client, s.repo, s.cfg.DispatchInterval, s.logger)
	s.runLoop(runCtx, dispatcher.Run)

	if d, err := s.dial(runCtx, s.cfg.BackendURL); err != nil {
		// Backend may simply be absent; push stays best-effort either way.
		s.logger.Warn("[SESSION] Duplex channel unavailable", "error", err)
		s.notify(domain.StatusNote{
			Kind:   domain.StatusBackendLink,
			Detail: "duplex channel unavailable",
			Time:   time.Now(),
		})
	} else {
		s.duplex = d
	}

	if s.repo != nil {
		if err := s.repo.CreateSession(ctx, &domain.Session{
			SessionID: s.sessionID,
			UserID:    s.cfg.UserID,
			StartedAt: time.Now(),
			Phase:     string(PhaseActive),
		}); err != nil {
			s.logger.Debug("[SESSION] Session journal write failed", "error", err)
		}
	}

	s.phase = PhaseActive
	s.logger.Info("[SESSION] Active", "session_id", s.sessionID)
	return nil
}

// stopLocked tears down the capture loops and the backend link together.
// It returns only after every loop goroutine has exited, so no tick can
// fire after the toggle completes.
func (s *Supervisor) stopLocked(ctx context.Context) {
	s.logger.Info("[SESSION] Stopping", "session_id", s.sessionID)

	s.cancel()
	s.wg.Wait()

	if s.duplex != nil {
		s.duplex.Close()
		s.duplex = nil
	}

	s.buffer.Reset()
	s.trk = nil

	if s.repo != nil {
		if err := s.repo.CloseSession(ctx, s.sessionID, time.Now(), string(PhaseStopped)); err != nil {
			s.logger.Debug("[SESSION] Session journal write failed", "error", err)
		}
	}

	s.phase = PhaseStopped
	s.logger.Info("[SESSION] Stopped")
}

func (s *Supervisor) runLoop(ctx context.Context, run func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(ctx)
	}()
}

func (s *Supervisor) notify(note domain.StatusNote) {
	s.router.Dispatch(relay.BoundaryHost, relay.Message{
		Kind:    relay.KindStatus,
		Payload: note,
	})
}

// noFrameSource stands in when no browser surface is attached.
type noFrameSource struct{}

func (noFrameSource) CaptureFrame(context.Context) ([]byte, error) {
	return nil, surface.ErrNoFrameSource
}
