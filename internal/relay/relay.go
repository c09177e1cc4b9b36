// Package relay routes typed messages between the isolated execution
// boundaries of the watcher: the in-page surface, the pipeline host, and
// the UI panel. Messages are forwarded by kind against a fixed allow-list;
// anything unlisted for a boundary is dropped without forwarding so the
// boundaries never leak each other's internal traffic.
package relay

import (
	"log/slog"
	"sync"
)

// Boundary identifies one isolated execution context.
type Boundary string

const (
	// BoundarySurface is the in-page observation context.
	BoundarySurface Boundary = "surface"
	// BoundaryHost is the session owner hosting the pipeline.
	BoundaryHost Boundary = "host"
	// BoundaryPanel is the embedded UI panel.
	BoundaryPanel Boundary = "panel"
)

// Kind identifies a message type crossing a boundary.
type Kind string

const (
	// KindActivity carries raw input events from the surface to the host.
	KindActivity Kind = "activity_events"
	// KindToggleSession starts or stops the session.
	KindToggleSession Kind = "toggle_session"
	// KindTranscript appends speech transcript text.
	KindTranscript Kind = "submit_transcript"
	// KindTouch signals an explicit user help request.
	KindTouch Kind = "request_help"
	// KindStatus carries status-only notifications to the panel.
	KindStatus Kind = "status"
	// KindAgentResponse carries backend agent responses to the panel.
	KindAgentResponse Kind = "agent_response"
)

// Message is a typed payload crossing a boundary. The relay never inspects
// the payload, only the kind.
type Message struct {
	Kind    Kind
	Payload any
}

// routes maps, per source boundary, each kind that may leave it to the one
// destination allowed to receive it.
var routes = map[Boundary]map[Kind]Boundary{
	BoundarySurface: {
		KindActivity: BoundaryHost,
	},
	BoundaryPanel: {
		KindToggleSession: BoundaryHost,
		KindTranscript:    BoundaryHost,
		KindTouch:         BoundaryHost,
	},
	BoundaryHost: {
		KindStatus:        BoundaryPanel,
		KindAgentResponse: BoundaryPanel,
	},
}

// Router forwards messages between registered boundary inboxes.
type Router struct {
	mu      sync.RWMutex
	inboxes map[Boundary]chan Message
}

// NewRouter creates a router with no registered inboxes.
func NewRouter() *Router {
	return &Router{inboxes: make(map[Boundary]chan Message)}
}

// Register creates the inbox for a boundary and returns its receive side.
// Registering a boundary twice replaces the previous inbox.
func (r *Router) Register(b Boundary, size int) <-chan Message {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Message, size)
	r.mu.Lock()
	r.inboxes[b] = ch
	r.mu.Unlock()
	return ch
}

// Dispatch forwards msg from the given boundary to the single destination
// its kind is listed for. Unlisted kinds and unregistered destinations are
// dropped. A full inbox also drops the message: the relay never blocks a
// sending boundary. Returns whether the message was forwarded.
func (r *Router) Dispatch(from Boundary, msg Message) bool {
	dest, ok := routes[from][msg.Kind]
	if !ok {
		slog.Debug("[RELAY] Dropped unlisted message", "from", from, "kind", msg.Kind)
		return false
	}

	r.mu.RLock()
	ch, ok := r.inboxes[dest]
	r.mu.RUnlock()
	if !ok {
		slog.Debug("[RELAY] Destination not registered", "dest", dest, "kind", msg.Kind)
		return false
	}

	select {
	case ch <- msg:
		return true
	default:
		slog.Debug("[RELAY] Inbox full, message dropped", "dest", dest, "kind", msg.Kind)
		return false
	}
}
