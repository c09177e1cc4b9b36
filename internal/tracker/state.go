package tracker

import (
	"sync"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

const (
	// keystrokeWindow bounds how long keystroke timestamps are retained.
	keystrokeWindow = 60 * time.Second
	// speedWindow is the trailing window the current speed is counted over.
	speedWindow = 10 * time.Second
	// scrollBackThreshold is how far above the last offset a scroll must
	// land to count as scrolling back.
	scrollBackThreshold = 50.0
	// naturalPauseThreshold marks a pause long enough to prompt during.
	naturalPauseThreshold = 15 * time.Second
)

// deleteKeys are the key names that count as deletions.
var deleteKeys = map[string]bool{
	"Backspace": true,
	"Delete":    true,
}

// TrackerState owns all mutable behavioral tracking state. Per-tick
// counters (deletions, scroll-backs) are reset exactly once per Snapshot;
// the multi-tick windows (keystroke history, baseline samples) are not.
//
//nolint:revive // Name retained for clarity at call sites in other packages.
type TrackerState struct {
	mu            sync.Mutex
	keystrokes    []time.Time
	lastKeystroke time.Time
	deletions     int
	scrollBacks   int
	lastScrollY   float64
	haveScrollY   bool
	baseline      *RollingBaseline
	tickInterval  time.Duration
}

// NewTrackerState creates tracking state for the given emission cadence.
func NewTrackerState(tickInterval time.Duration) *TrackerState {
	return &TrackerState{
		baseline:     NewRollingBaseline(),
		tickInterval: tickInterval,
	}
}

// RecordKeyDown registers a key-down event. Old keystrokes are evicted
// here, on write, to bound memory between emissions.
func (t *TrackerState) RecordKeyDown(key string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.keystrokes = append(t.keystrokes, at)
	t.lastKeystroke = at

	cutoff := at.Add(-keystrokeWindow)
	for len(t.keystrokes) > 0 && t.keystrokes[0].Before(cutoff) {
		t.keystrokes = t.keystrokes[1:]
	}

	if deleteKeys[key] {
		t.deletions++
	}
}

// RecordScroll registers a new vertical scroll offset. A jump of more than
// scrollBackThreshold above the last-seen offset counts as scrolling back;
// the last-seen offset is updated regardless of direction.
func (t *TrackerState) RecordScroll(y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.haveScrollY && y < t.lastScrollY-scrollBackThreshold {
		t.scrollBacks++
	}
	t.lastScrollY = y
	t.haveScrollY = true
}

// Snapshot produces this tick's ActivitySignal and resets the per-tick
// counters. The current speed sample is folded into the baseline before
// the ratio is computed.
func (t *TrackerState) Snapshot(now time.Time, content string, kind domain.ContentType, url string) domain.ActivitySignal {
	t.mu.Lock()
	defer t.mu.Unlock()

	speedCutoff := now.Add(-speedWindow)
	speed := 0
	for i := len(t.keystrokes) - 1; i >= 0; i-- {
		if t.keystrokes[i].Before(speedCutoff) {
			break
		}
		speed++
	}

	ratio := t.baseline.Ratio(float64(speed))

	pause := 0.0
	if !t.lastKeystroke.IsZero() {
		pause = now.Sub(t.lastKeystroke).Seconds()
	}

	perMinute := 60_000.0 / float64(t.tickInterval.Milliseconds())
	sig := domain.ActivitySignal{
		TypingSpeedRatio:  ratio,
		DeletionRate:      float64(t.deletions) * perMinute,
		PauseDuration:     pause,
		ScrollBackCount:   t.scrollBacks,
		ScreenContent:     content,
		ScreenContentType: kind,
		NaturalPause:      pause >= naturalPauseThreshold.Seconds(),
		URL:               url,
		Timestamp:         now,
	}

	t.deletions = 0
	t.scrollBacks = 0

	return sig
}
