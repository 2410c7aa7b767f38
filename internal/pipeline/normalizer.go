package pipeline

import (
	"context"
	"strings"

	"voicenote/internal/core"
	"voicenote/internal/inference"
)

// Normalizer asks the model to correct spelling and punctuation. It never
// fails a job: any problem returns the input text with a warning.
type Normalizer struct {
	completer inference.Completer
	prompts   Prompts
	markers   []string
}

func NewNormalizer(completer inference.Completer, prompts Prompts, markers []string) *Normalizer {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &Normalizer{completer: completer, prompts: prompts, markers: markers}
}

func (n *Normalizer) Correct(ctx context.Context, text string) (core.CorrectedText, *Warning) {
	unchanged := core.CorrectedText{Text: text, WasCorrected: false}
	if strings.TrimSpace(text) == "" {
		return unchanged, nil
	}

	answer, err := n.completer.Complete(ctx, n.prompts.Correction(text))
	if err != nil {
		return unchanged, correctionWarning(err)
	}
	cleaned := StripBoilerplate(answer, n.markers)
	if strings.TrimSpace(cleaned) == "" {
		return unchanged, correctionWarning(ErrEmptyCorrection)
	}
	return core.CorrectedText{Text: cleaned, WasCorrected: true}, nil
}

func correctionWarning(err error) *Warning {
	w := &Warning{
		Kind:    KindCorrectionDegraded,
		Stage:   StateCorrecting,
		Message: "Text correction failed; using the uncorrected text.",
		Detail:  err.Error(),
	}
	if IsUnavailable(err) {
		w.Detail = string(KindUpstreamUnavailable) + ": " + w.Detail
	}
	return w
}

// StripBoilerplate removes instruction echoes from a correction answer.
// When a marker appears, the last line free of markers is taken as the
// corrected text; if every line carries a marker, raw is returned as is.
func StripBoilerplate(raw string, markers []string) string {
	if !containsAny(raw, markers) {
		return strings.TrimSpace(raw)
	}
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if !containsAny(lines[i], markers) {
			return lines[i]
		}
	}
	return raw
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
