package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"voicenote/internal/core"
	"voicenote/internal/inference"
)

// ParseResult is the tagged outcome of reading a model answer as a record.
// Exactly one of Fields (Parsed) or Reason (defaulted) is meaningful.
type ParseResult struct {
	Parsed bool
	Fields map[string]json.RawMessage
	Reason string
	Raw    string
}

// Extractor turns corrected text into a validated record. It never fails a
// job: call and parse failures resolve to the default record plus a warning.
type Extractor struct {
	completer  inference.Completer
	prompts    Prompts
	categories core.Categories
}

func NewExtractor(completer inference.Completer, prompts Prompts, categories core.Categories) *Extractor {
	return &Extractor{completer: completer, prompts: prompts, categories: categories}
}

func (x *Extractor) Extract(ctx context.Context, text string) (core.ExtractedRecord, *Warning) {
	answer, err := x.completer.Complete(ctx, x.prompts.Extraction(text, x.categories.Names()))
	if err != nil {
		rec, _ := Validate(core.DefaultRecord(), text, x.categories)
		detail := err.Error()
		if IsUnavailable(err) {
			detail = string(KindUpstreamUnavailable) + ": " + detail
		}
		return rec, &Warning{
			Kind:    KindExtractionDegraded,
			Stage:   StateExtracting,
			Message: "Structured extraction failed; using the default record.",
			Detail:  detail,
		}
	}

	parsed := ParseOrDefault(answer)
	candidate, notes := parsed.Record()
	rec, fixes := Validate(candidate, text, x.categories)
	notes = append(notes, fixes...)

	switch {
	case !parsed.Parsed:
		return rec, &Warning{
			Kind:    KindExtractionDegraded,
			Stage:   StateExtracting,
			Message: "Model answer was not a JSON object (" + parsed.Reason + "); using the default record.",
			Detail:  parsed.Raw,
		}
	case len(notes) > 0:
		return rec, &Warning{
			Kind:    KindExtractionDegraded,
			Stage:   StateExtracting,
			Message: "Replaced invalid fields: " + strings.Join(notes, "; ") + ".",
			Detail:  parsed.Raw,
		}
	}
	return rec, nil
}

// ParseOrDefault strips code fences and reads raw as a JSON object. Any
// failure, including a non-object root, yields a defaulted result.
func ParseOrDefault(raw string) ParseResult {
	cleaned := StripCodeFence(raw)
	if !strings.HasPrefix(cleaned, "{") {
		reason := "answer is not a JSON object"
		if cleaned == "" {
			reason = "empty answer"
		}
		return ParseResult{Reason: reason, Raw: raw}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return ParseResult{Reason: err.Error(), Raw: raw}
	}
	return ParseResult{Parsed: true, Fields: fields, Raw: raw}
}

// Record converts the parse result into a candidate record. The notes list
// fields whose JSON type made them unusable.
func (r ParseResult) Record() (core.ExtractedRecord, []string) {
	if !r.Parsed {
		return core.DefaultRecord(), nil
	}

	var (
		rec   core.ExtractedRecord
		notes []string
		ok    bool
	)
	if rec.Amount, ok = core.AmountFromJSON(r.Fields["amount"]); !ok {
		notes = append(notes, fmt.Sprintf("amount %s is not a number", compact(r.Fields["amount"])))
	}
	if rec.Category, ok = jsonString(r.Fields["category"]); !ok {
		notes = append(notes, fmt.Sprintf("category %s is not a string", compact(r.Fields["category"])))
	}
	if rec.Description, ok = jsonString(r.Fields["description"]); !ok {
		notes = append(notes, fmt.Sprintf("description %s is not a string", compact(r.Fields["description"])))
	}
	rec.Description = strings.TrimSpace(rec.Description)
	return rec, notes
}

// Validate enforces the record invariants. The returned notes describe the
// replacements made; a valid record comes back unchanged with no notes.
func Validate(rec core.ExtractedRecord, text string, categories core.Categories) (core.ExtractedRecord, []string) {
	var notes []string
	out := core.ExtractedRecord{Amount: rec.Amount, Category: rec.Category, Description: rec.Description}

	if !core.ValidAmount(out.Amount) {
		notes = append(notes, "amount is not finite")
		out.Amount = nil
	} else if out.Amount != nil {
		v := *out.Amount
		out.Amount = &v
	}

	if canon, ok := categories.Lookup(out.Category); ok {
		out.Category = canon
	} else {
		if strings.TrimSpace(out.Category) != "" {
			notes = append(notes, fmt.Sprintf("category %q is not allowed", out.Category))
		} else {
			notes = append(notes, "category missing")
		}
		out.Category = categories.Fallback()
	}

	if strings.TrimSpace(out.Description) == "" {
		notes = append(notes, "description missing")
		out.Description = core.SynthesizeDescription(text)
	}
	return out, notes
}

// StripCodeFence removes a leading ``` fence with an optional language tag
// and a trailing ``` fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if i := strings.IndexByte(s, '\n'); i >= 0 && isFenceTag(s[:i]) {
			s = s[i+1:]
		} else {
			s = strings.TrimLeftFunc(s, unicode.IsLetter)
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '+' && r != '_' {
			return false
		}
	}
	return true
}

func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
