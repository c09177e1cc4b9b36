package vision

import (
	"errors"
	"testing"

	"github.com/ambientlearn/watcher/internal/domain"
)

const sampleResponse = `Here is my analysis of the screen:
` + "```json" + `
{
  "activity": "coding",
  "topic": "recursion",
  "subtopic": "base cases",
  "mode": "applied",
  "stuck": true,
  "work_status": "Incorrect",
  "content_type": "code",
  "error_description": "missing return in base case",
  "natural_pause": false,
  "screen_details": "editor with a factorial function"
}
` + "```" + `
Let me know if you need more detail.`

func TestExtractObservation_FencedWithProse(t *testing.T) {
	obs, err := ExtractObservation(sampleResponse)
	if err != nil {
		t.Fatalf("ExtractObservation: %v", err)
	}

	if obs.Activity != "coding" {
		t.Errorf("Activity = %q", obs.Activity)
	}
	if obs.Topic != "recursion" || obs.Subtopic != "base cases" {
		t.Errorf("Topic/Subtopic = %q/%q", obs.Topic, obs.Subtopic)
	}
	if obs.Mode != domain.ModeApplied {
		t.Errorf("Mode = %q, want APPLIED", obs.Mode)
	}
	if !obs.Stuck {
		t.Error("Stuck should be true")
	}
	if obs.WorkStatus != domain.WorkStatusIncorrect {
		t.Errorf("WorkStatus = %q, want incorrect", obs.WorkStatus)
	}
	if obs.ErrorDescription != "missing return in base case" {
		t.Errorf("ErrorDescription = %q", obs.ErrorDescription)
	}
	if obs.Raw != sampleResponse {
		t.Error("Raw should preserve the full response text")
	}
}

func TestExtractObservation_NestedBracesInStrings(t *testing.T) {
	text := `{"activity": "reading {docs}", "topic": "maps", "subtopic": "", "mode": "conceptual", "stuck": false, "work_status": "unclear", "content_type": "text", "error_description": null, "natural_pause": true, "screen_details": "a page about map[string]int{}"}`

	obs, err := ExtractObservation(text)
	if err != nil {
		t.Fatalf("ExtractObservation: %v", err)
	}
	if obs.Activity != "reading {docs}" {
		t.Errorf("Activity = %q", obs.Activity)
	}
	if obs.ErrorDescription != "" {
		t.Errorf("Null error_description should map to empty, got %q", obs.ErrorDescription)
	}
	if !obs.NaturalPause {
		t.Error("NaturalPause should be true")
	}
}

func TestExtractObservation_NoJSON(t *testing.T) {
	_, err := ExtractObservation("the model declined to produce structured output")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}

func TestExtractObservation_UnbalancedObject(t *testing.T) {
	_, err := ExtractObservation(`{"activity": "coding", "topic":`)
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}
