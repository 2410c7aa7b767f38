// Package pipeline turns a voice note into a validated record in the
// record store: transcription, correction, extraction and persistence run
// in sequence under per-stage timeouts.
//
// Only invalid input, transcription and persistence failures, and
// cancellation end a job early. Correction and extraction degrade to
// warnings unless the Policy makes them fatal.
package pipeline

import (
	"context"
	"errors"
	"time"

	"voicenote/internal/core"
	"voicenote/internal/inference"
	"voicenote/internal/log"
	"voicenote/internal/records"
)

// Timeouts bounds each stage. A zero value disables the bound.
type Timeouts struct {
	Transcribe time.Duration
	Correct    time.Duration
	Extract    time.Duration
	Persist    time.Duration
}

// DefaultTimeouts are used for stages left unset in Config.
var DefaultTimeouts = Timeouts{
	Transcribe: 60 * time.Second,
	Correct:    20 * time.Second,
	Extract:    20 * time.Second,
	Persist:    15 * time.Second,
}

// Policy selects which degrade stages end the job instead.
type Policy struct {
	FatalCorrection bool
	FatalExtraction bool
}

// Config assembles an Orchestrator.
type Config struct {
	Language     string
	Categories   []string
	Markers      []string
	AllowedMimes []string
	Timeouts     Timeouts
	Policy       Policy
	Cleanup      CleanupOptions
	Now          func() time.Time
}

// Outcome is the result of a completed job.
type Outcome struct {
	JobID      string               `json:"jobId"`
	Transcript core.TranscriptResult `json:"-"`
	FinalText  string               `json:"transcript"`
	Corrected  bool                 `json:"corrected"`
	Record     core.ExtractedRecord `json:"record"`
	ExternalID string               `json:"externalId"`
	Warnings   []Warning            `json:"warnings"`
	Job        *Job                 `json:"-"`
}

// Orchestrator runs jobs. It holds no per-job state and is safe for
// concurrent use.
type Orchestrator struct {
	transcriber  *Transcriber
	normalizer   *Normalizer
	extractor    *Extractor
	persister    *Persister
	timeouts     Timeouts
	policy       Policy
	allowedMimes []string
	now          func() time.Time
	logger       *log.Logger
	events       *log.StructuredLogger
}

func New(svc inference.Service, store records.RecordStore, cfg Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentPipeline)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	prompts := NewPrompts(cfg.Language)
	cats := core.DefaultCategories
	if len(cfg.Categories) > 0 {
		cats = cfg.Categories
	}

	return &Orchestrator{
		transcriber:  NewTranscriber(svc, prompts, cfg.Cleanup, logger),
		normalizer:   NewNormalizer(svc, prompts, cfg.Markers),
		extractor:    NewExtractor(svc, prompts, core.NewCategories(cats)),
		persister:    NewPersister(store, cfg.Now),
		timeouts:     withDefaults(cfg.Timeouts),
		policy:       cfg.Policy,
		allowedMimes: cfg.AllowedMimes,
		now:          cfg.Now,
		logger:       logger,
		events:       log.NewStructuredLogger(logger),
	}
}

func withDefaults(t Timeouts) Timeouts {
	if t.Transcribe == 0 {
		t.Transcribe = DefaultTimeouts.Transcribe
	}
	if t.Correct == 0 {
		t.Correct = DefaultTimeouts.Correct
	}
	if t.Extract == 0 {
		t.Extract = DefaultTimeouts.Extract
	}
	if t.Persist == 0 {
		t.Persist = DefaultTimeouts.Persist
	}
	return t
}

// Run processes one input to completion. On failure the error is a
// *StageError naming the stage and kind.
func (o *Orchestrator) Run(ctx context.Context, in core.VoiceNoteInput) (*Outcome, error) {
	job := newJob(o.now())
	logger := o.logger.With(log.FieldJobID, job.ID)
	logger.InfoContext(ctx, "Pipeline job started", log.FieldInputVariant, string(in.Variant()))

	var warnings []Warning
	warn := func(w *Warning) {
		if w != nil {
			warnings = append(warnings, *w)
		}
	}

	// Transcribing
	if err := o.enter(ctx, job, StateTranscribing); err != nil {
		return nil, o.fail(ctx, logger, job, err)
	}
	if err := in.Validate(o.allowedMimes); err != nil {
		return nil, o.fail(ctx, logger, job, stageError(StateTranscribing, KindInvalidInput, err))
	}
	started := time.Now()
	sctx, cancel := stageContext(ctx, o.timeouts.Transcribe)
	transcript, tw, err := o.transcriber.Resolve(sctx, in)
	cancel()
	warnings = append(warnings, tw...)
	if err != nil {
		return nil, o.fail(ctx, logger, job, err)
	}
	o.events.LogStageCompleted(ctx, job.ID, string(StateTranscribing), time.Since(started), len(tw) > 0)

	// Correcting
	if err := o.enter(ctx, job, StateCorrecting); err != nil {
		return nil, o.fail(ctx, logger, job, err)
	}
	started = time.Now()
	sctx, cancel = stageContext(ctx, o.timeouts.Correct)
	corrected, cw := o.normalizer.Correct(sctx, transcript.Text)
	cancel()
	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, logger, job, stageError(StateCorrecting, KindCancelled, err))
	}
	if cw != nil && o.policy.FatalCorrection {
		return nil, o.fail(ctx, logger, job, stageError(StateCorrecting, KindCorrectionDegraded, errors.New(cw.Detail)))
	}
	warn(cw)
	o.events.LogStageCompleted(ctx, job.ID, string(StateCorrecting), time.Since(started), cw != nil)

	// Extracting
	if err := o.enter(ctx, job, StateExtracting); err != nil {
		return nil, o.fail(ctx, logger, job, err)
	}
	started = time.Now()
	sctx, cancel = stageContext(ctx, o.timeouts.Extract)
	record, ew := o.extractor.Extract(sctx, corrected.Text)
	cancel()
	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, logger, job, stageError(StateExtracting, KindCancelled, err))
	}
	if ew != nil && o.policy.FatalExtraction {
		return nil, o.fail(ctx, logger, job, stageError(StateExtracting, KindExtractionDegraded, errors.New(ew.Message)))
	}
	warn(ew)
	o.events.LogStageCompleted(ctx, job.ID, string(StateExtracting), time.Since(started), ew != nil)

	// Persisting
	if err := o.enter(ctx, job, StatePersisting); err != nil {
		return nil, o.fail(ctx, logger, job, err)
	}
	started = time.Now()
	sctx, cancel = stageContext(ctx, o.timeouts.Persist)
	externalID, err := o.persister.Persist(sctx, record, corrected.Text)
	cancel()
	if err != nil {
		return nil, o.fail(ctx, logger, job, err)
	}
	o.events.LogStageCompleted(ctx, job.ID, string(StatePersisting), time.Since(started), false)

	if err := job.transition(StateCompleted); err != nil {
		return nil, o.fail(ctx, logger, job, stageError(StatePersisting, KindInternal, err))
	}
	o.events.LogNoteRecorded(ctx, job.ID, record.Category, record.Amount, externalID, len(warnings))

	if warnings == nil {
		warnings = []Warning{}
	}
	return &Outcome{
		JobID:      job.ID,
		Transcript: transcript,
		FinalText:  corrected.Text,
		Corrected:  corrected.WasCorrected,
		Record:     record,
		ExternalID: externalID,
		Warnings:   warnings,
		Job:        job,
	}, nil
}

// enter checks for cancellation and moves the job into next.
func (o *Orchestrator) enter(ctx context.Context, job *Job, next State) error {
	if err := ctx.Err(); err != nil {
		return stageError(job.State, KindCancelled, err)
	}
	if err := job.transition(next); err != nil {
		return stageError(job.State, KindInternal, err)
	}
	return nil
}

// fail moves the job to Failed and stamps the error with the job id. A
// cancelled caller context overrides the kind reported by the stage.
func (o *Orchestrator) fail(ctx context.Context, logger *log.Logger, job *Job, err error) error {
	var se *StageError
	if !errors.As(err, &se) {
		se = stageError(job.State, Classify(err, KindInternal), err)
	}
	if ctx.Err() != nil && se.Kind != KindInvalidInput {
		se.Kind = KindCancelled
	}
	if se.Stage == StatePending {
		se.Stage = StateTranscribing
	}
	se.JobID = job.ID
	if job.State != StateFailed {
		_ = job.transition(StateFailed)
	}

	logger.ErrorContext(ctx, "Pipeline job failed",
		log.FieldStage, string(se.Stage),
		log.FieldErrorKind, string(se.Kind),
		log.FieldError, se.Error())
	return se
}

func stageContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
