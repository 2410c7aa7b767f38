package core

import (
	"errors"
	"strings"
	"time"
)

const (
	OriginTranscribed Origin = "transcribed"
	OriginProvided    Origin = "provided"
)

const (
	VariantNone       InputVariant = ""
	VariantInline     InputVariant = "inline_audio"
	VariantReferenced InputVariant = "referenced_audio"
	VariantRawText    InputVariant = "raw_text"
)

// DefaultDescription is used when neither the model nor the source text
// yields a usable description.
const DefaultDescription = "Voice Note"

// DescriptionLimit is the number of visible characters kept when a
// description is synthesized from the note text.
const DescriptionLimit = 50

type (
	Origin string

	InputVariant string

	// VoiceNoteInput carries exactly one of inline audio, a referenced audio
	// object or text typed by the caller.
	VoiceNoteInput struct {
		InlineAudio        []byte `json:"inlineAudio,omitempty"`
		ReferencedAudioURI string `json:"referencedAudioUri,omitempty"`
		Mime               string `json:"mime,omitempty"`
		RawText            string `json:"rawText,omitempty"`
	}

	TranscriptResult struct {
		Text   string `json:"text"`
		Origin Origin `json:"origin"`
	}

	CorrectedText struct {
		Text         string `json:"text"`
		WasCorrected bool   `json:"wasCorrected"`
	}

	// ExtractedRecord is the validated financial entry produced from a note.
	// Amount is nil when the note has no usable number.
	ExtractedRecord struct {
		Amount      *float64 `json:"amount"`
		Category    string   `json:"category"`
		Description string   `json:"description"`
	}

	// Note is a persisted voice note as kept by the local repository.
	Note struct {
		ID         string
		Record     ExtractedRecord
		Text       string
		Origin     Origin
		ExternalID string
		CreatedAt  time.Time
	}
)

var (
	ErrNoInput          = errors.New("no input variant provided")
	ErrAmbiguousInput   = errors.New("more than one input variant provided")
	ErrMissingMime      = errors.New("mime type required for audio input")
	ErrUnsupportedMime  = errors.New("unsupported mime type")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCategory  = errors.New("category not allowed")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Variant reports which input variant is populated. It returns VariantNone
// when zero or more than one variant is set; use Validate to tell them apart.
func (in VoiceNoteInput) Variant() InputVariant {
	var (
		set     int
		variant InputVariant
	)
	if len(in.InlineAudio) > 0 {
		set++
		variant = VariantInline
	}
	if strings.TrimSpace(in.ReferencedAudioURI) != "" {
		set++
		variant = VariantReferenced
	}
	if strings.TrimSpace(in.RawText) != "" {
		set++
		variant = VariantRawText
	}
	if set != 1 {
		return VariantNone
	}
	return variant
}

// Validate checks that exactly one variant is present and that audio comes
// with an allowed mime type. An empty allowedMimes accepts any mime.
func (in VoiceNoteInput) Validate(allowedMimes []string) error {
	set := 0
	if len(in.InlineAudio) > 0 {
		set++
	}
	if strings.TrimSpace(in.ReferencedAudioURI) != "" {
		set++
	}
	if strings.TrimSpace(in.RawText) != "" {
		set++
	}
	switch {
	case set == 0:
		return ErrNoInput
	case set > 1:
		return ErrAmbiguousInput
	}

	if in.Variant() == VariantRawText {
		return nil
	}
	mime := NormalizeMime(in.Mime)
	if mime == "" {
		return ErrMissingMime
	}
	if len(allowedMimes) == 0 {
		return nil
	}
	for _, m := range allowedMimes {
		if NormalizeMime(m) == mime {
			return nil
		}
	}
	return ErrUnsupportedMime
}

// NormalizeMime lowercases a mime type and drops parameters such as codecs.
func NormalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// Validate checks the record invariants against the allowed categories.
func (r ExtractedRecord) Validate(cats Categories) error {
	if !ValidAmount(r.Amount) {
		return ErrInvalidAmount
	}
	if canon, ok := cats.Lookup(r.Category); !ok || canon != r.Category {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// DefaultRecord is the record used when the model answer cannot be parsed.
func DefaultRecord() ExtractedRecord {
	return ExtractedRecord{
		Amount:      nil,
		Category:    CategoryOther,
		Description: DefaultDescription,
	}
}
