package domain

// Fluency is an advisory classification of behavioral signals.
type Fluency string

const (
	// FluencyFluent indicates unambiguously smooth work.
	FluencyFluent Fluency = "fluent"
	// FluencyStruggling indicates unambiguous struggle.
	FluencyStruggling Fluency = "struggling"
	// FluencyAmbiguous indicates the signals do not support a verdict.
	FluencyAmbiguous Fluency = ""
)

// ClassifyFluency maps behavioral signals to a fluency verdict. Only
// unambiguous combinations produce a classification; everything in between
// is reported as ambiguous so downstream consumers are not fed noise.
func ClassifyFluency(typingRatio, deletionRate, pauseSeconds float64) Fluency {
	if typingRatio > 0.9 && deletionRate < 2.0 && pauseSeconds < 5.0 {
		return FluencyFluent
	}
	if typingRatio < 0.3 && deletionRate > 8.0 && pauseSeconds > 20.0 {
		return FluencyStruggling
	}
	return FluencyAmbiguous
}
