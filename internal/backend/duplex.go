package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ambientlearn/watcher/internal/domain"
	"github.com/ambientlearn/watcher/internal/relay"
)

// AgentResponse is a server-pushed message from the decision backend.
type AgentResponse struct {
	AgentType string `json:"agent_type"`
	Content   string `json:"content"`
}

// Duplex is the persistent socket side of the backend link. It only
// receives; envelopes go out over the push channel. On unexpected closure
// it does not reconnect: reconnection storms against a possibly-absent
// backend are worse than waiting for the next explicit session start.
type Duplex struct {
	conn   *websocket.Conn
	router *relay.Router
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// DialDuplex opens the /ws channel against the backend base URL and starts
// the read loop. The returned Duplex is closed by Close or by ctx.
func DialDuplex(ctx context.Context, baseURL string, router *relay.Router, logger *slog.Logger) (*Duplex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	wsURL, err := toWebsocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial backend duplex: %w", err)
	}

	d := &Duplex{
		conn:   conn,
		router: router,
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.readLoop(ctx)

	logger.Info("[BACKEND] Duplex channel open", "url", wsURL)
	return d, nil
}

// readLoop forwards typed agent responses to the panel until the channel
// closes for any reason.
func (d *Duplex) readLoop(ctx context.Context) {
	defer close(d.done)

	for {
		_, data, err := d.conn.Read(ctx)
		if err != nil {
			// A closure we initiated ourselves, via Close or the session
			// context, is not news the panel needs.
			if d.locallyClosed() || ctx.Err() != nil {
				d.logger.Debug("[BACKEND] Duplex channel closed", "error", err)
				return
			}
			if websocket.CloseStatus(err) != -1 {
				d.logger.Debug("[BACKEND] Duplex channel closed by backend", "error", err)
			} else {
				d.logger.Warn("[BACKEND] Duplex read error, channel abandoned", "error", err)
			}
			d.router.Dispatch(relay.BoundaryHost, relay.Message{
				Kind: relay.KindStatus,
				Payload: domain.StatusNote{
					Kind:   domain.StatusBackendLink,
					Detail: "duplex channel closed",
					Time:   time.Now(),
				},
			})
			return
		}

		var resp AgentResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			d.logger.Debug("[BACKEND] Unparseable duplex message dropped", "error", err)
			continue
		}

		d.router.Dispatch(relay.BoundaryHost, relay.Message{
			Kind:    relay.KindAgentResponse,
			Payload: resp,
		})
	}
}

// locallyClosed reports whether Close has begun tearing the channel down.
func (d *Duplex) locallyClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close shuts the duplex channel and waits for the read loop to exit.
func (d *Duplex) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if err := d.conn.Close(websocket.StatusNormalClosure, "session stopped"); err != nil {
		d.logger.Debug("[BACKEND] Duplex close", "error", err)
	}
	<-d.done
}

// toWebsocketURL maps the backend base URL to its /ws endpoint.
func toWebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
