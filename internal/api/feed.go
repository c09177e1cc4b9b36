// Package api provides the HTTP control surface for the watcher.
package api

import (
	"context"
	"sync"

	"github.com/ambientlearn/watcher/internal/backend"
	"github.com/ambientlearn/watcher/internal/domain"
	"github.com/ambientlearn/watcher/internal/relay"
)

// feedDepth bounds how much panel history is retained.
const feedDepth = 50

// PanelFeed consumes the panel boundary's inbox and retains the recent
// status notes and agent responses for the UI to poll.
type PanelFeed struct {
	mu        sync.RWMutex
	statuses  []domain.StatusNote
	responses []backend.AgentResponse
	inbox     <-chan relay.Message
}

// NewPanelFeed registers the panel boundary on the router.
func NewPanelFeed(router *relay.Router) *PanelFeed {
	return &PanelFeed{inbox: router.Register(relay.BoundaryPanel, 128)}
}

// Run consumes panel messages until ctx is cancelled.
func (f *PanelFeed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.inbox:
			f.absorb(msg)
		}
	}
}

func (f *PanelFeed) absorb(msg relay.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch msg.Kind {
	case relay.KindStatus:
		if note, ok := msg.Payload.(domain.StatusNote); ok {
			f.statuses = append(f.statuses, note)
			if len(f.statuses) > feedDepth {
				f.statuses = f.statuses[len(f.statuses)-feedDepth:]
			}
		}
	case relay.KindAgentResponse:
		if resp, ok := msg.Payload.(backend.AgentResponse); ok {
			f.responses = append(f.responses, resp)
			if len(f.responses) > feedDepth {
				f.responses = f.responses[len(f.responses)-feedDepth:]
			}
		}
	}
}

// Statuses returns the retained status notes, oldest first.
func (f *PanelFeed) Statuses() []domain.StatusNote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.StatusNote, len(f.statuses))
	copy(out, f.statuses)
	return out
}

// Responses returns the retained agent responses, oldest first.
func (f *PanelFeed) Responses() []backend.AgentResponse {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]backend.AgentResponse, len(f.responses))
	copy(out, f.responses)
	return out
}
