package session

import (
	"context"

	"github.com/ambientlearn/watcher/internal/relay"
	"github.com/ambientlearn/watcher/internal/surface"
)

// TouchPayload carries the optional message of a help request.
type TouchPayload struct {
	Message string
}

// Run pumps the host inbox: commands relayed from the panel and input
// events relayed from the surface. It blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.inbox:
			s.handle(ctx, msg)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, msg relay.Message) {
	switch msg.Kind {
	case relay.KindToggleSession:
		if _, err := s.Toggle(ctx); err != nil {
			s.logger.Warn("[SESSION] Toggle failed", "error", err)
		}

	case relay.KindTranscript:
		if text, ok := msg.Payload.(string); ok {
			s.state.AppendTranscript(text)
		}

	case relay.KindTouch:
		payload, _ := msg.Payload.(TouchPayload)
		s.state.MarkTouched(payload.Message)
		// The immediate trigger bypasses the fusion cadence entirely and
		// fires regardless of session state.
		go s.client.Touch(ctx, s.cfg.UserID, payload.Message)

	case relay.KindActivity:
		events, ok := msg.Payload.([]surface.InputEvent)
		if !ok {
			return
		}
		s.feedEvents(events)

	default:
		s.logger.Debug("[SESSION] Unhandled host message", "kind", msg.Kind)
	}
}

// feedEvents applies drained surface events to the active tracker state.
// Events arriving while no session is active are discarded.
func (s *Supervisor) feedEvents(events []surface.InputEvent) {
	s.mu.Lock()
	trk := s.trk
	s.mu.Unlock()
	if trk == nil {
		return
	}

	for _, ev := range events {
		switch ev.Type {
		case "key":
			trk.RecordKeyDown(ev.Key, millisToTime(ev.TS))
		case "scroll":
			trk.RecordScroll(ev.Y)
		}
	}
}
