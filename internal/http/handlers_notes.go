package http

import (
	"net/http"
	"sync/atomic"

	"voicenote/internal/core"
)

// handleCreateNote runs one voice note through the pipeline. The request
// context bounds the job, so a caller that goes away cancels it.
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}

	var in core.VoiceNoteInput
	if err := decodeJSON(w, r, s.opts.MaxBodyBytes, &in); err != nil {
		writeBadRequest(w, r, "The request body is not a valid voice note.", err)
		return
	}

	outcome, err := s.opts.Notes.Run(r.Context(), in)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.notesFailed, 1)
		writeError(w, r, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.notesTotal, 1)
	atomic.AddInt64(&s.appMetrics.warningsTotal, int64(len(outcome.Warnings)))
	writeJSON(w, http.StatusOK, outcome)
}
