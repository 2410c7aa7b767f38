package pipeline

import (
	"context"
	"strings"
	"time"

	"voicenote/internal/core"
	"voicenote/internal/inference"
	"voicenote/internal/log"
)

// CleanupOptions controls deletion of referenced uploads after transcription.
type CleanupOptions struct {
	Enabled bool
	// Timeout bounds the detached delete call.
	Timeout time.Duration
	// Grace is how long Resolve waits for the delete before returning.
	// Zero never waits.
	Grace time.Duration
}

// Transcriber resolves an input into transcript text.
type Transcriber struct {
	svc     inference.Service
	prompts Prompts
	cleanup CleanupOptions
	logger  *log.Logger
}

func NewTranscriber(svc inference.Service, prompts Prompts, cleanup CleanupOptions, logger *log.Logger) *Transcriber {
	if logger == nil {
		logger = log.Default()
	}
	return &Transcriber{svc: svc, prompts: prompts, cleanup: cleanup, logger: logger}
}

// Resolve returns provided text as is, or transcribes the audio variant.
// The input must already be validated.
func (t *Transcriber) Resolve(ctx context.Context, in core.VoiceNoteInput) (core.TranscriptResult, []Warning, error) {
	var src inference.AudioSource
	switch in.Variant() {
	case core.VariantRawText:
		return core.TranscriptResult{Text: strings.TrimSpace(in.RawText), Origin: core.OriginProvided}, nil, nil
	case core.VariantInline:
		src = inference.InlineAudio(in.InlineAudio)
	case core.VariantReferenced:
		src = inference.ReferencedAudio(strings.TrimSpace(in.ReferencedAudioURI))
	default:
		return core.TranscriptResult{}, nil, stageError(StateTranscribing, KindInvalidInput, core.ErrNoInput)
	}

	text, err := t.svc.TranscribeAudio(ctx, src, in.Mime, t.prompts.Transcription())

	var warnings []Warning
	if src.IsReference() && t.cleanup.Enabled {
		if w := t.deleteReference(ctx, src.URI); w != nil {
			warnings = append(warnings, *w)
		}
	}

	if err != nil {
		return core.TranscriptResult{}, warnings, stageError(StateTranscribing, Classify(err, KindTranscriptionFailed), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return core.TranscriptResult{}, warnings, stageError(StateTranscribing, KindTranscriptionFailed, ErrEmptyTranscript)
	}
	return core.TranscriptResult{Text: text, Origin: core.OriginTranscribed}, warnings, nil
}

// deleteReference starts the delete detached from ctx and waits for it only
// up to the grace period. A failure seen in time becomes a warning.
func (t *Transcriber) deleteReference(ctx context.Context, uri string) *Warning {
	done := make(chan error, 1)
	go func() {
		cctx := context.WithoutCancel(ctx)
		if t.cleanup.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(cctx, t.cleanup.Timeout)
			defer cancel()
		}
		err := t.svc.DeleteReference(cctx, uri)
		if err != nil {
			t.logger.WarnContext(cctx, "Failed to delete referenced audio",
				log.FieldOperation, log.OpCleanup,
				log.FieldReferenceURI, uri,
				log.FieldError, err.Error())
		} else {
			t.logger.DebugContext(cctx, "Deleted referenced audio", log.FieldReferenceURI, uri)
		}
		done <- err
	}()

	if t.cleanup.Grace <= 0 {
		return nil
	}
	timer := time.NewTimer(t.cleanup.Grace)
	defer timer.Stop()
	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		return &Warning{
			Kind:    KindCleanupFailed,
			Stage:   StateTranscribing,
			Message: "Referenced audio could not be deleted.",
			Detail:  err.Error(),
		}
	case <-timer.C:
		return nil
	}
}
