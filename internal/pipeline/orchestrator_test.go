package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voicenote/internal/core"
	"voicenote/internal/log"
	"voicenote/internal/records"
)

const burmeseNote = "လျှပ်စစ်ဘေ 5000 ကျပ် ပေး ပြီးပါ"

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 15, 4, 0, 0, time.UTC) }

func newTestOrchestrator(svc *fakeService, store records.RecordStore, mutate func(*Config)) *Orchestrator {
	cfg := Config{
		AllowedMimes: []string{"audio/webm", "audio/ogg"},
		Cleanup:      CleanupOptions{Enabled: true, Timeout: time.Second},
		Now:          fixedNow,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(svc, store, cfg, log.Discard())
}

func requireStageError(t *testing.T, err error, stage State, kind ErrorKind) *StageError {
	t.Helper()
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if se.Stage != stage || se.Kind != kind {
		t.Fatalf("got Failed(%s, %s), want Failed(%s, %s): %v", se.Stage, se.Kind, stage, kind, se.Err)
	}
	if se.JobID == "" {
		t.Fatal("stage error should carry the job id")
	}
	return se
}

// Scenario A
func TestRunRawTextHappyPath(t *testing.T) {
	svc := &fakeService{
		correction: burmeseNote,
		extraction: `{"amount":5000,"category":"Utilities","description":"Electric bill"}`,
	}
	store := &fakeStore{id: "'Voice Notes'!A2:F2"}
	o := newTestOrchestrator(svc, store, nil)

	out, err := o.Run(context.Background(), core.VoiceNoteInput{RawText: burmeseNote})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Record.Amount == nil || *out.Record.Amount != 5000 || out.Record.Category != "Utilities" || out.Record.Description != "Electric bill" {
		t.Fatalf("record = %+v", out.Record)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings = %+v", out.Warnings)
	}
	if out.ExternalID != store.id {
		t.Fatalf("externalId = %q", out.ExternalID)
	}
	if svc.transcribeCalls != 0 {
		t.Fatal("raw text must not be transcribed")
	}
	if out.Transcript.Origin != core.OriginProvided {
		t.Fatalf("origin = %s", out.Transcript.Origin)
	}
	if out.Job.State != StateCompleted {
		t.Fatalf("state = %s", out.Job.State)
	}
	want := []State{StatePending, StateTranscribing, StateCorrecting, StateExtracting, StatePersisting, StateCompleted}
	if strings.Join(statesToStrings(out.Job.History), ",") != strings.Join(statesToStrings(want), ",") {
		t.Fatalf("history = %v", out.Job.History)
	}

	entry := store.entries[0]
	if entry.Title != "Voice Note - March 14, 2025 at 03:04 PM UTC" {
		t.Fatalf("title = %q", entry.Title)
	}
	if entry.Note != burmeseNote || entry.Category != "Utilities" || *entry.Amount != 5000 {
		t.Fatalf("entry = %+v", entry)
	}
}

// Scenario B
func TestRunExtractionDegrades(t *testing.T) {
	svc := &fakeService{
		correction: burmeseNote,
		extraction: "```json\n{\"amount\": \"free\"}\n```",
	}
	o := newTestOrchestrator(svc, &fakeStore{id: "row-1"}, nil)

	out, err := o.Run(context.Background(), core.VoiceNoteInput{RawText: burmeseNote})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Record.Amount != nil || out.Record.Category != core.CategoryOther || out.Record.Description != core.Truncate(burmeseNote, core.DescriptionLimit) {
		t.Fatalf("record = %+v", out.Record)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Kind != KindExtractionDegraded {
		t.Fatalf("warnings = %+v", out.Warnings)
	}
}

// Scenario C
func TestRunCorrectionDegrades(t *testing.T) {
	svc := &fakeService{
		transcript: "  raw transcript  ",
		correctErr: errors.New("model overloaded"),
		extraction: `{"amount":null,"category":"Other","description":"Memo"}`,
	}
	store := &fakeStore{id: "row-1"}
	o := newTestOrchestrator(svc, store, nil)

	out, err := o.Run(context.Background(), core.VoiceNoteInput{InlineAudio: []byte("OggS"), Mime: "audio/ogg"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.FinalText != "raw transcript" || out.Corrected {
		t.Fatalf("final text = %q corrected=%v", out.FinalText, out.Corrected)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Kind != KindCorrectionDegraded {
		t.Fatalf("warnings = %+v", out.Warnings)
	}
	if out.Job.State != StateCompleted {
		t.Fatalf("state = %s", out.Job.State)
	}
	if store.entries[0].Note != "raw transcript" {
		t.Fatalf("note = %q", store.entries[0].Note)
	}
}

// Scenario D
func TestRunEmptyTranscriptFails(t *testing.T) {
	svc := &fakeService{transcript: "   "}
	store := &fakeStore{id: "row-1"}
	o := newTestOrchestrator(svc, store, nil)

	_, err := o.Run(context.Background(), core.VoiceNoteInput{InlineAudio: []byte("OggS"), Mime: "audio/ogg"})
	requireStageError(t, err, StateTranscribing, KindTranscriptionFailed)
	if got := MapError(err).Status; got != 500 {
		t.Fatalf("status = %d", got)
	}
	if store.calls() != 0 {
		t.Fatal("no persistence should be attempted")
	}
	if svc.promptCount() != 0 {
		t.Fatal("no later stage should run")
	}
}

func TestRunInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   core.VoiceNoteInput
	}{
		{"none", core.VoiceNoteInput{}},
		{"two variants", core.VoiceNoteInput{RawText: "hi", InlineAudio: []byte("x"), Mime: "audio/ogg"}},
		{"unsupported mime", core.VoiceNoteInput{InlineAudio: []byte("x"), Mime: "video/mp4"}},
		{"missing mime", core.VoiceNoteInput{ReferencedAudioURI: "mem://notes/a.ogg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			o := newTestOrchestrator(svc, &fakeStore{id: "x"}, nil)
			_, err := o.Run(context.Background(), tt.in)
			requireStageError(t, err, StateTranscribing, KindInvalidInput)
			if MapError(err).Status != 400 {
				t.Fatalf("status = %d", MapError(err).Status)
			}
			if svc.transcribeCalls != 0 {
				t.Fatal("service should not be called")
			}
		})
	}
}

func TestRunPersistenceFailures(t *testing.T) {
	tests := []struct {
		name  string
		store records.RecordStore
		kind  ErrorKind
	}{
		{"no store", nil, KindPersistenceFailed},
		{"not configured", &fakeStore{err: records.ErrNotConfigured}, KindPersistenceFailed},
		{"store error", &fakeStore{err: errors.New("quota exceeded")}, KindPersistenceFailed},
		{"empty id", &fakeStore{id: ""}, KindPersistenceFailed},
		{"timeout", &fakeStore{err: context.DeadlineExceeded}, KindUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{correction: "ok", extraction: `{"amount":1,"category":"Food","description":"d"}`}
			o := newTestOrchestrator(svc, tt.store, nil)
			_, err := o.Run(context.Background(), core.VoiceNoteInput{RawText: "text"})
			requireStageError(t, err, StatePersisting, tt.kind)
		})
	}
}

func TestRunTranscriptionUnavailable(t *testing.T) {
	svc := &fakeService{block: true}
	o := newTestOrchestrator(svc, &fakeStore{id: "x"}, func(c *Config) {
		c.Timeouts.Transcribe = 20 * time.Millisecond
	})
	_, err := o.Run(context.Background(), core.VoiceNoteInput{InlineAudio: []byte("x"), Mime: "audio/webm"})
	requireStageError(t, err, StateTranscribing, KindUpstreamUnavailable)
	if !MapError(err).Retryable {
		t.Fatal("upstream failure should be retryable")
	}
}

func TestRunCancelledNeverPersists(t *testing.T) {
	svc := &fakeService{block: true}
	store := &fakeStore{id: "x"}
	o := newTestOrchestrator(svc, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := o.Run(ctx, core.VoiceNoteInput{RawText: "text"})
	requireStageError(t, err, StateCorrecting, KindCancelled)
	if MapError(err).Status != StatusClientClosedRequest {
		t.Fatalf("status = %d", MapError(err).Status)
	}
	if store.calls() != 0 {
		t.Fatal("cancelled job must not persist")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newTestOrchestrator(&fakeService{}, &fakeStore{id: "x"}, nil)
	_, err := o.Run(ctx, core.VoiceNoteInput{RawText: "text"})
	requireStageError(t, err, StateTranscribing, KindCancelled)
}

func TestRunFatalPolicy(t *testing.T) {
	svc := &fakeService{correctErr: errors.New("down"), extraction: "nope"}
	store := &fakeStore{id: "x"}

	o := newTestOrchestrator(svc, store, func(c *Config) { c.Policy.FatalCorrection = true })
	_, err := o.Run(context.Background(), core.VoiceNoteInput{RawText: "text"})
	requireStageError(t, err, StateCorrecting, KindCorrectionDegraded)

	svc = &fakeService{correction: "text", extraction: "nope"}
	o = newTestOrchestrator(svc, store, func(c *Config) { c.Policy.FatalExtraction = true })
	_, err = o.Run(context.Background(), core.VoiceNoteInput{RawText: "text"})
	requireStageError(t, err, StateExtracting, KindExtractionDegraded)

	if store.calls() != 0 {
		t.Fatal("fatal policy must stop before persistence")
	}
}

func TestRunReferencedAudioCleanup(t *testing.T) {
	svc := &fakeService{
		transcript: "text",
		correction: "text",
		extraction: `{"amount":2,"category":"Food","description":"Tea"}`,
		deleteErr:  errors.New("permission denied"),
		deleteDone: make(chan struct{}),
	}
	o := newTestOrchestrator(svc, &fakeStore{id: "x"}, func(c *Config) { c.Cleanup.Grace = time.Second })

	out, err := o.Run(context.Background(), core.VoiceNoteInput{ReferencedAudioURI: "s3://notes/a.webm", Mime: "audio/webm"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-svc.deleteDone
	if len(svc.deleted) != 1 || svc.deleted[0] != "s3://notes/a.webm" {
		t.Fatalf("deleted = %v", svc.deleted)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Kind != KindCleanupFailed {
		t.Fatalf("warnings = %+v", out.Warnings)
	}
	if out.Job.State != StateCompleted {
		t.Fatalf("cleanup failure must not fail the job")
	}
}

func TestRunCleanupRunsAfterTranscriptionFailure(t *testing.T) {
	svc := &fakeService{transcribeErr: errors.New("bad audio"), deleteDone: make(chan struct{})}
	o := newTestOrchestrator(svc, &fakeStore{id: "x"}, nil)

	_, err := o.Run(context.Background(), core.VoiceNoteInput{ReferencedAudioURI: "s3://notes/a.webm", Mime: "audio/webm"})
	requireStageError(t, err, StateTranscribing, KindTranscriptionFailed)

	select {
	case <-svc.deleteDone:
	case <-time.After(time.Second):
		t.Fatal("referenced audio was not deleted")
	}
}

func TestRunDoesNotWaitForSlowCleanup(t *testing.T) {
	svc := &fakeService{
		transcript:    "text",
		correction:    "text",
		extraction:    `{"amount":2,"category":"Food","description":"Tea"}`,
		deleteErr:     errors.New("storage timeout"),
		deleteDone:    make(chan struct{}),
		deleteRelease: make(chan struct{}),
	}
	o := newTestOrchestrator(svc, &fakeStore{id: "x"}, func(c *Config) {
		c.Cleanup.Grace = 0
		c.Cleanup.Timeout = time.Minute
	})

	type result struct {
		out *Outcome
		err error
	}
	ran := make(chan result, 1)
	go func() {
		out, err := o.Run(context.Background(), core.VoiceNoteInput{ReferencedAudioURI: "s3://notes/slow.webm", Mime: "audio/webm"})
		ran <- result{out, err}
	}()

	var res result
	select {
	case res = <-ran:
	case <-time.After(2 * time.Second):
		close(svc.deleteRelease)
		t.Fatal("Run waited for the delete to return")
	}

	select {
	case <-svc.deleteDone:
		t.Fatal("delete returned before it was released")
	default:
	}

	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	if res.out.Job.State != StateCompleted {
		t.Fatalf("state = %s", res.out.Job.State)
	}
	for _, w := range res.out.Warnings {
		if w.Kind == KindCleanupFailed {
			t.Fatalf("unexpected cleanup warning %+v", w)
		}
	}

	close(svc.deleteRelease)
	select {
	case <-svc.deleteDone:
	case <-time.After(time.Second):
		t.Fatal("delete never finished after release")
	}
}

func statesToStrings(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
