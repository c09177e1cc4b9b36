package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ambientlearn/watcher/internal/relay"
	"github.com/ambientlearn/watcher/internal/session"
)

// Handler exposes the session control surface. Commands are not executed
// here: they are relayed from the panel boundary to the session owner, the
// same path any other UI context would use.
type Handler struct {
	router *relay.Router
	sup    *session.Supervisor
	feed   *PanelFeed
}

// NewHandler creates the control surface handler.
func NewHandler(router *relay.Router, sup *session.Supervisor, feed *PanelFeed) *Handler {
	return &Handler{router: router, sup: sup, feed: feed}
}

// RegisterRoutes mounts the control surface on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session/toggle", h.toggleSession)
	r.Post("/transcript", h.submitTranscript)
	r.Post("/touch", h.requestHelp)
	r.Get("/status", h.status)
	r.Get("/responses", h.responses)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// toggleSession relays the toggle and acknowledges it. The session owner
// applies the toggle asynchronously, so the phase in the response is the
// phase at the time of the request; clients observe the outcome by polling
// GET /status.
func (h *Handler) toggleSession(w http.ResponseWriter, r *http.Request) {
	forwarded := h.router.Dispatch(relay.BoundaryPanel, relay.Message{
		Kind: relay.KindToggleSession,
	})
	if !forwarded {
		Error(w, http.StatusServiceUnavailable, "session owner unavailable")
		return
	}
	JSON(w, http.StatusAccepted, map[string]string{
		"phase": string(h.sup.Phase()),
	})
}

type transcriptRequest struct {
	Text string `json:"text"`
}

func (h *Handler) submitTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	h.router.Dispatch(relay.BoundaryPanel, relay.Message{
		Kind:    relay.KindTranscript,
		Payload: req.Text,
	})
	JSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

type touchHTTPRequest struct {
	Message string `json:"message"`
}

func (h *Handler) requestHelp(w http.ResponseWriter, r *http.Request) {
	var req touchHTTPRequest
	// Body is optional for the help trigger.
	_ = json.NewDecoder(r.Body).Decode(&req)

	h.router.Dispatch(relay.BoundaryPanel, relay.Message{
		Kind:    relay.KindTouch,
		Payload: session.TouchPayload{Message: req.Message},
	})
	JSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"phase":      string(h.sup.Phase()),
		"session_id": h.sup.SessionID(),
		"statuses":   h.feed.Statuses(),
	})
}

func (h *Handler) responses(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"responses": h.feed.Responses(),
	})
}
