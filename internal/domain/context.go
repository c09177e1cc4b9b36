// Package domain defines the data types shared across the watcher pipeline.
package domain

import "time"

// ContentType labels the kind of content dominating the monitored surface.
type ContentType string

const (
	// ContentTypeCode indicates visible source code.
	ContentTypeCode ContentType = "code"
	// ContentTypeEquation indicates rendered math or equations.
	ContentTypeEquation ContentType = "equation"
	// ContentTypeText indicates plain prose.
	ContentTypeText ContentType = "text"
)

// ActivitySignal is the behavioral snapshot produced once per tracker tick.
type ActivitySignal struct {
	TypingSpeedRatio  float64
	DeletionRate      float64 // deletions per minute
	PauseDuration     float64 // seconds since last keystroke
	ScrollBackCount   int
	ScreenContent     string
	ScreenContentType ContentType
	NaturalPause      bool
	URL               string
	Timestamp         time.Time
}

// Mode classifies the learning mode the vision model observed.
type Mode string

const (
	// ModeConceptual indicates the user is reading or studying theory.
	ModeConceptual Mode = "CONCEPTUAL"
	// ModeApplied indicates the user is actively working on a problem.
	ModeApplied Mode = "APPLIED"
	// ModeConsolidation indicates the user is reviewing or summarizing.
	ModeConsolidation Mode = "CONSOLIDATION"
)

// WorkStatus is the vision model's verdict on the visible work.
type WorkStatus string

const (
	// WorkStatusCorrect indicates the visible work appears correct.
	WorkStatusCorrect WorkStatus = "correct"
	// WorkStatusIncorrect indicates the visible work contains an error.
	WorkStatusIncorrect WorkStatus = "incorrect"
	// WorkStatusIncomplete indicates the work is still in progress.
	WorkStatusIncomplete WorkStatus = "incomplete"
	// WorkStatusUnclear indicates the model could not judge the work.
	WorkStatusUnclear WorkStatus = "unclear"
)

// VisionObservation is one parsed vision-model analysis of a captured frame.
// Raw retains the unparsed provider text for the context buffer feedback loop.
type VisionObservation struct {
	Activity         string
	Topic            string
	Subtopic         string
	Mode             Mode
	Stuck            bool
	WorkStatus       WorkStatus
	ContentType      ContentType
	ErrorDescription string
	NaturalPause     bool
	ScreenDetails    string
	Raw              string
	Timestamp        time.Time
}

// ContextEnvelope is the fused record shipped to the decision backend.
// Every defined field is always present on the wire; absent upstream values
// coalesce to the documented defaults (ratio 1.0, rates and counts zero,
// flags false, strings empty).
type ContextEnvelope struct {
	ScreenContent       string   `json:"screen_content"`
	ScreenContentType   string   `json:"screen_content_type"`
	TypingSpeedRatio    float64  `json:"typing_speed_ratio"`
	DeletionRate        float64  `json:"deletion_rate"`
	PauseDuration       float64  `json:"pause_duration"`
	ScrollBackCount     int      `json:"scroll_back_count"`
	UserTouchedAgent    bool     `json:"user_touched_agent"`
	DetectedTopic       string   `json:"detected_topic"`
	DetectedSubtopic    string   `json:"detected_subtopic"`
	Activity            string   `json:"activity"`
	Mode                string   `json:"mode"`
	Stuck               bool     `json:"stuck"`
	WorkStatus          string   `json:"work_status"`
	ErrorDescription    *string  `json:"error_description"`
	NaturalPause        bool     `json:"natural_pause"`
	ScreenDetails       string   `json:"screen_details"`
	VerbalConfusionCues []string `json:"verbal_confusion_cues"`
	UserMessage         *string  `json:"user_message"`
	Fluency             string   `json:"fluency"`
	UserID              string   `json:"user_id"`
	SessionID           string   `json:"session_id"`
	Timestamp           string   `json:"timestamp"`
	Source              string   `json:"source"`
}

// EnvelopeSource tags outgoing envelopes with the producing process.
const EnvelopeSource = "watcher"
