package fusion

import "strings"

// confusionCues are spoken phrases that signal confusion, ordered so that
// multi-word phrases are matched before their substrings.
var confusionCues = []string{
	"don't understand",
	"makes no sense",
	"no idea",
	"confused",
	"stuck",
	"lost",
	"help",
	"huh",
	"hmm",
	"wait",
	"what",
}

// ExtractConfusionCues scans transcript text for verbal confusion cues and
// returns each matched cue once, in match-priority order.
func ExtractConfusionCues(transcript string) []string {
	cues := []string{}
	lower := strings.ToLower(transcript)
	for _, cue := range confusionCues {
		if strings.Contains(lower, cue) {
			cues = append(cues, cue)
		}
	}
	return cues
}
