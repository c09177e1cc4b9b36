package fusion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

var buildTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestBuildEnvelope_Defaults(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")

	env := s.BuildEnvelope(buildTime)

	if env.TypingSpeedRatio != 1.0 {
		t.Errorf("TypingSpeedRatio = %v, want 1.0", env.TypingSpeedRatio)
	}
	if env.ScreenContentType != "text" {
		t.Errorf("ScreenContentType = %q, want text", env.ScreenContentType)
	}
	if env.WorkStatus != "unclear" {
		t.Errorf("WorkStatus = %q, want unclear", env.WorkStatus)
	}
	if env.VerbalConfusionCues == nil || len(env.VerbalConfusionCues) != 0 {
		t.Errorf("VerbalConfusionCues = %v, want empty non-nil slice", env.VerbalConfusionCues)
	}
	if env.Source != "watcher" {
		t.Errorf("Source = %q", env.Source)
	}
	if env.Timestamp != "2026-03-14T09:26:53Z" {
		t.Errorf("Timestamp = %q", env.Timestamp)
	}
}

func TestBuildEnvelope_AllKeysAlwaysOnWire(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")

	payload, err := json.Marshal(s.BuildEnvelope(buildTime))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, k := range []string{
		"screen_content", "screen_content_type", "typing_speed_ratio",
		"deletion_rate", "pause_duration", "scroll_back_count",
		"user_touched_agent", "detected_topic", "detected_subtopic",
		"activity", "mode", "stuck", "work_status", "error_description",
		"natural_pause", "screen_details", "verbal_confusion_cues",
		"user_message", "fluency", "user_id", "session_id", "timestamp",
		"source",
	} {
		if _, ok := keys[k]; !ok {
			t.Errorf("Envelope missing key %q", k)
		}
	}
	if string(keys["verbal_confusion_cues"]) != "[]" {
		t.Errorf("verbal_confusion_cues = %s, want []", keys["verbal_confusion_cues"])
	}
}

func TestBuildEnvelope_OverlaysActivityAndVision(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")

	s.UpdateActivity(domain.ActivitySignal{
		TypingSpeedRatio:  0.2,
		DeletionRate:      90,
		PauseDuration:     30,
		ScrollBackCount:   3,
		ScreenContent:     "def factorial(n):",
		ScreenContentType: domain.ContentTypeCode,
	})
	s.UpdateVision(domain.VisionObservation{
		Activity:         "coding",
		Topic:            "recursion",
		Subtopic:         "base cases",
		Mode:             domain.ModeApplied,
		Stuck:            true,
		WorkStatus:       domain.WorkStatusIncorrect,
		ErrorDescription: "missing return",
		NaturalPause:     true,
		ScreenDetails:    "editor with factorial",
	})

	env := s.BuildEnvelope(buildTime)

	if env.ScreenContent != "def factorial(n):" {
		t.Errorf("ScreenContent = %q", env.ScreenContent)
	}
	if env.DetectedTopic != "recursion" || env.Activity != "coding" {
		t.Errorf("Vision overlay missing: topic=%q activity=%q", env.DetectedTopic, env.Activity)
	}
	if !env.Stuck || env.WorkStatus != "incorrect" {
		t.Errorf("Stuck=%v WorkStatus=%q", env.Stuck, env.WorkStatus)
	}
	if env.ErrorDescription == nil || *env.ErrorDescription != "missing return" {
		t.Errorf("ErrorDescription = %v", env.ErrorDescription)
	}
	if !env.NaturalPause {
		t.Error("Vision natural pause should propagate")
	}
	if env.Fluency != string(domain.FluencyStruggling) {
		t.Errorf("Fluency = %q, want struggling", env.Fluency)
	}
}

func TestBuildEnvelope_ScreenDetailsFallback(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")
	s.UpdateVision(domain.VisionObservation{ScreenDetails: "a graph of y=x^2"})

	env := s.BuildEnvelope(buildTime)
	if env.ScreenContent != "a graph of y=x^2" {
		t.Errorf("ScreenContent = %q, want screen details fallback", env.ScreenContent)
	}
}

func TestBuildEnvelope_TranscriptConsumedOnce(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")
	s.AppendTranscript("I'm so confused")
	s.AppendTranscript("wait what")

	first := s.BuildEnvelope(buildTime)
	if first.UserMessage == nil || *first.UserMessage != "I'm so confused wait what" {
		t.Errorf("UserMessage = %v", first.UserMessage)
	}
	cues := map[string]bool{}
	for _, c := range first.VerbalConfusionCues {
		cues[c] = true
	}
	if !cues["confused"] || !cues["wait"] || !cues["what"] {
		t.Errorf("VerbalConfusionCues = %v", first.VerbalConfusionCues)
	}

	// The transcript is consumed regardless of delivery outcome.
	second := s.BuildEnvelope(buildTime)
	if second.UserMessage != nil {
		t.Errorf("Second UserMessage = %v, want nil", second.UserMessage)
	}
	if len(second.VerbalConfusionCues) != 0 {
		t.Errorf("Second cues = %v, want empty", second.VerbalConfusionCues)
	}
}

func TestBuildEnvelope_TouchReadNotCleared(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")
	s.MarkTouched("explain this please")

	first := s.BuildEnvelope(buildTime)
	if !first.UserTouchedAgent {
		t.Error("UserTouchedAgent should be set")
	}
	if first.UserMessage == nil || *first.UserMessage != "explain this please" {
		t.Errorf("UserMessage = %v", first.UserMessage)
	}

	// Still set until a confirmed delivery clears it.
	second := s.BuildEnvelope(buildTime)
	if !second.UserTouchedAgent {
		t.Error("UserTouchedAgent should survive an unconfirmed delivery")
	}

	s.ClearTouch()
	third := s.BuildEnvelope(buildTime)
	if third.UserTouchedAgent {
		t.Error("UserTouchedAgent should be cleared")
	}
	if third.UserMessage != nil {
		t.Errorf("UserMessage after clear = %v", third.UserMessage)
	}
}

func TestBuildEnvelope_TouchDuringDeliverySurvivesClear(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")
	s.MarkTouched("first question")

	first := s.BuildEnvelope(buildTime)
	if !first.UserTouchedAgent {
		t.Fatal("First envelope should carry the touch")
	}

	// A second touch lands while the first envelope is still in flight.
	s.MarkTouched("second question")
	s.ClearTouch() // confirmation of the first delivery

	next := s.BuildEnvelope(buildTime)
	if !next.UserTouchedAgent {
		t.Error("Touch arriving mid-delivery should still ride an envelope")
	}
	if next.UserMessage == nil || *next.UserMessage != "second question" {
		t.Errorf("UserMessage = %v, want the second message", next.UserMessage)
	}

	// Once an envelope has carried it, the confirmation clears it.
	s.ClearTouch()
	final := s.BuildEnvelope(buildTime)
	if final.UserTouchedAgent {
		t.Error("Touch should be cleared after its own envelope was confirmed")
	}
}

func TestResetSession_DropsPendingSignals(t *testing.T) {
	s := NewState("default")
	s.ResetSession("sess-1")
	s.UpdateActivity(domain.ActivitySignal{TypingSpeedRatio: 0.1})
	s.AppendTranscript("stuck")
	s.MarkTouched("")

	s.ResetSession("sess-2")
	env := s.BuildEnvelope(buildTime)

	if env.SessionID != "sess-2" {
		t.Errorf("SessionID = %q", env.SessionID)
	}
	if env.TypingSpeedRatio != 1.0 || env.UserTouchedAgent || env.UserMessage != nil {
		t.Errorf("Stale signals survived reset: %+v", env)
	}
}

func TestPeekTranscript_NonConsuming(t *testing.T) {
	s := NewState("default")
	s.AppendTranscript("no idea")
	s.AppendTranscript("  ") // whitespace-only is dropped

	if got := s.PeekTranscript(); got != "no idea" {
		t.Errorf("PeekTranscript = %q", got)
	}
	if got := s.PeekTranscript(); got != "no idea" {
		t.Errorf("Second peek = %q, peek must not consume", got)
	}
}
