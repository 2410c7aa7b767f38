package pipeline

import (
	"fmt"
	"strings"
)

// DefaultLanguage is the note language when none is configured.
const DefaultLanguage = "Burmese"

// DefaultMarkers are the instruction echoes stripped from correction answers.
var DefaultMarkers = []string{
	"Text to correct:",
	"Corrected text:",
	"Here is the corrected text:",
}

// Prompts renders the instructions sent to the inference service.
type Prompts struct {
	Language string
}

// NewPrompts returns prompts for language, falling back to DefaultLanguage.
func NewPrompts(language string) Prompts {
	language = strings.TrimSpace(language)
	if language == "" {
		language = DefaultLanguage
	}
	return Prompts{Language: language}
}

func (p Prompts) Transcription() string {
	return fmt.Sprintf("Transcribe the following %s audio into accurate, natural-sounding text. "+
		"Focus on correct spelling, grammar, and punctuation. "+
		"Ensure the transcription reflects the spoken content precisely.", p.Language)
}

func (p Prompts) Correction(text string) string {
	return fmt.Sprintf("Review the following %[1]s text for any spelling or punctuation errors. "+
		"Also, ensure the text is natural and fluent for a native %[1]s speaker. "+
		"Provide only the corrected and polished %[1]s text, without any additional comments, "+
		"explanations, or introductory/concluding phrases.\n\nText to correct:\n%[2]s", p.Language, text)
}

func (p Prompts) Extraction(text string, categories []string) string {
	return fmt.Sprintf("Extract the expense or income described in the following %s text. "+
		"Respond with only a JSON object with exactly these keys: "+
		"\"amount\" (a number without currency symbols or thousands separators, or null if no amount is mentioned), "+
		"\"category\" (one of: %s), "+
		"\"description\" (a short description of what the money was for). "+
		"Do not wrap the JSON in code fences and do not add any other text.\n\nText:\n%s",
		p.Language, strings.Join(categories, ", "), text)
}
