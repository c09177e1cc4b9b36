package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ambientlearn/watcher/internal/domain"
)

func TestPushContext_Delivered(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/context" {
			t.Errorf("Path = %q, want /context", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	env := domain.ContextEnvelope{
		TypingSpeedRatio:    1.0,
		VerbalConfusionCues: []string{},
		UserID:              "default",
		SessionID:           "sess-1",
		Source:              domain.EnvelopeSource,
	}

	res := c.PushContext(context.Background(), &env)
	if !res.Delivered || res.Ignored != nil {
		t.Fatalf("Result = %+v, want delivered", res)
	}
	if got["user_id"] != "default" || got["source"] != "watcher" {
		t.Errorf("Body = %v", got)
	}
	if _, ok := got["typing_speed_ratio"]; !ok {
		t.Error("Body missing typing_speed_ratio")
	}
}

func TestPushContext_ServerErrorIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	res := c.PushContext(context.Background(), &domain.ContextEnvelope{})
	if res.Delivered {
		t.Error("5xx should not count as delivered")
	}
	if res.Ignored == nil {
		t.Error("Swallowed failure should be recorded in Ignored")
	}
}

func TestPushContext_UnreachableIgnored(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	res := c.PushContext(context.Background(), &domain.ContextEnvelope{})
	if res.Delivered || res.Ignored == nil {
		t.Errorf("Result = %+v, want ignored failure", res)
	}
}

func TestTouch_PostsMessageAndUser(t *testing.T) {
	var got touchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/touch" {
			t.Errorf("Path = %q, want /touch", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil) // trailing slash is trimmed
	res := c.Touch(context.Background(), "default", "explain recursion")
	if !res.Delivered {
		t.Fatalf("Result = %+v", res)
	}
	if got.Message != "explain recursion" || got.UserID != "default" {
		t.Errorf("Body = %+v", got)
	}
}
