package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ambientlearn/watcher/internal/domain"
)

// ErrNoJSON indicates the provider response contained no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// observationWire mirrors the JSON shape the provider is instructed to emit.
type observationWire struct {
	Activity         string  `json:"activity"`
	Topic            string  `json:"topic"`
	Subtopic         string  `json:"subtopic"`
	Mode             string  `json:"mode"`
	Stuck            bool    `json:"stuck"`
	WorkStatus       string  `json:"work_status"`
	ContentType      string  `json:"content_type"`
	ErrorDescription *string `json:"error_description"`
	NaturalPause     bool    `json:"natural_pause"`
	ScreenDetails    string  `json:"screen_details"`
}

// ExtractObservation parses the first balanced JSON object out of a
// free-text provider response. Leading and trailing prose, including
// markdown code fences, is tolerated.
func ExtractObservation(text string) (domain.VisionObservation, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	object, err := firstJSONObject(cleaned)
	if err != nil {
		return domain.VisionObservation{}, err
	}

	var wire observationWire
	if err := json.Unmarshal([]byte(object), &wire); err != nil {
		return domain.VisionObservation{}, fmt.Errorf("decode observation: %w", err)
	}

	obs := domain.VisionObservation{
		Activity:      wire.Activity,
		Topic:         wire.Topic,
		Subtopic:      wire.Subtopic,
		Mode:          domain.Mode(strings.ToUpper(wire.Mode)),
		Stuck:         wire.Stuck,
		WorkStatus:    domain.WorkStatus(strings.ToLower(wire.WorkStatus)),
		ContentType:   domain.ContentType(wire.ContentType),
		NaturalPause:  wire.NaturalPause,
		ScreenDetails: wire.ScreenDetails,
		Raw:           text,
		Timestamp:     time.Now(),
	}
	if wire.ErrorDescription != nil {
		obs.ErrorDescription = *wire.ErrorDescription
	}
	return obs, nil
}

// firstJSONObject returns the substring from the first '{' to its matching
// closing brace, respecting strings and escapes.
func firstJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}
	return "", ErrNoJSON
}
