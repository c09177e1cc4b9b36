// Package fusion merges the latest behavioral, visual, transcript, and
// touch signals into ContextEnvelopes and dispatches them downstream on a
// cadence decoupled from every producer.
package fusion

import (
	"strings"
	"sync"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

// State holds the latest known value of every fused field. Producers update
// it whenever they have something new; the dispatcher reads it on its own
// tick. Out-of-order arrival across producers is fine: an envelope always
// carries the latest known value per field, never waits for a sibling.
type State struct {
	mu           sync.Mutex
	userID       string
	sessionID    string
	activity     domain.ActivitySignal
	haveActivity bool
	vision       domain.VisionObservation
	haveVision   bool
	transcript   []string
	touched      bool
	userMessage  string
	touchGen     uint64 // bumped per MarkTouched
	builtGen     uint64 // touchGen captured by the last envelope that carried the touch
}

// NewState creates fusion state for a user.
func NewState(userID string) *State {
	return &State{userID: userID}
}

// ResetSession clears all pending signals and installs the new session id.
func (s *State) ResetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.haveActivity = false
	s.haveVision = false
	s.transcript = nil
	s.touched = false
	s.userMessage = ""
	s.touchGen = 0
	s.builtGen = 0
}

// UpdateActivity records the latest behavioral signal.
func (s *State) UpdateActivity(sig domain.ActivitySignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = sig
	s.haveActivity = true
}

// UpdateVision records the latest vision observation.
func (s *State) UpdateVision(obs domain.VisionObservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vision = obs
	s.haveVision = true
}

// AppendTranscript queues speech text for the next envelope.
func (s *State) AppendTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, text)
}

// PeekTranscript returns the pending transcript without consuming it.
// The vision loop includes it in provider calls; consumption happens only
// at envelope build time.
func (s *State) PeekTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.transcript, " ")
}

// MarkTouched records an explicit help request with an optional message.
func (s *State) MarkTouched(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = true
	s.touchGen++
	if message != "" {
		s.userMessage = message
	}
}

// ClearTouch resets the touch flag and message after a delivery that
// carried them succeeded. A touch that arrived after the delivered
// envelope was built is left pending so it still rides the next one.
func (s *State) ClearTouch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchGen != s.builtGen {
		return
	}
	s.touched = false
	s.userMessage = ""
}

// BuildEnvelope fuses the latest known values into one envelope. The
// pending transcript is consumed here, exactly once per delivery attempt,
// regardless of whether the delivery later succeeds; this prevents stale
// speech from being re-sent forever. The touch flag is only read: clearing
// it is deferred to ClearTouch after a confirmed delivery.
func (s *State) BuildEnvelope(now time.Time) domain.ContextEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := domain.ContextEnvelope{
		TypingSpeedRatio:    1.0,
		ScreenContentType:   string(domain.ContentTypeText),
		WorkStatus:          string(domain.WorkStatusUnclear),
		VerbalConfusionCues: []string{},
		UserID:              s.userID,
		SessionID:           s.sessionID,
		Timestamp:           now.UTC().Format(time.RFC3339),
		Source:              domain.EnvelopeSource,
	}

	if s.haveActivity {
		env.ScreenContent = s.activity.ScreenContent
		env.ScreenContentType = string(s.activity.ScreenContentType)
		env.TypingSpeedRatio = s.activity.TypingSpeedRatio
		env.DeletionRate = s.activity.DeletionRate
		env.PauseDuration = s.activity.PauseDuration
		env.ScrollBackCount = s.activity.ScrollBackCount
		env.NaturalPause = s.activity.NaturalPause
	}

	if s.haveVision {
		env.DetectedTopic = s.vision.Topic
		env.DetectedSubtopic = s.vision.Subtopic
		env.Activity = s.vision.Activity
		env.Mode = string(s.vision.Mode)
		env.Stuck = s.vision.Stuck
		env.WorkStatus = string(s.vision.WorkStatus)
		env.NaturalPause = env.NaturalPause || s.vision.NaturalPause
		env.ScreenDetails = s.vision.ScreenDetails
		if s.vision.ErrorDescription != "" {
			desc := s.vision.ErrorDescription
			env.ErrorDescription = &desc
		}
		if s.vision.ScreenDetails != "" && env.ScreenContent == "" {
			env.ScreenContent = s.vision.ScreenDetails
		}
	}

	if len(s.transcript) > 0 {
		joined := strings.Join(s.transcript, " ")
		s.transcript = nil
		env.VerbalConfusionCues = ExtractConfusionCues(joined)
		msg := joined
		env.UserMessage = &msg
	}

	if s.touched {
		env.UserTouchedAgent = true
		s.builtGen = s.touchGen
		if s.userMessage != "" {
			msg := s.userMessage
			env.UserMessage = &msg
		}
	}

	env.Fluency = string(domain.ClassifyFluency(env.TypingSpeedRatio, env.DeletionRate, env.PauseDuration))

	return env
}
