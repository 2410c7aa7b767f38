package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"voicenote/internal/pipeline"
	"voicenote/internal/textops"
)

const textBodyLimit = 1 << 20

type (
	processRequest struct {
		Text   string `json:"text"`
		Action string `json:"action"`
	}

	templateRequest struct {
		Text         string `json:"text"`
		TemplateType string `json:"templateType"`
	}

	askRequest struct {
		Transcript string `json:"transcript"`
		// Question is accepted for client compatibility; the answer is an
		// analysis of the transcript itself.
		Question string `json:"question,omitempty"`
	}
)

func (s *Server) handleProcessTranscript(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !s.decodeTextRequest(w, r, &req) {
		return
	}
	result, err := s.opts.Text.Process(r.Context(), req.Text, textops.Action(req.Action))
	if err != nil {
		s.writeTextError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.textActions, 1)
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decodeTextRequest(w, r, &req) {
		return
	}
	transformed, err := s.opts.Text.ApplyTemplate(r.Context(), req.Text, textops.Template(req.TemplateType))
	if err != nil {
		s.writeTextError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.textActions, 1)
	writeJSON(w, http.StatusOK, map[string]string{"transformedText": transformed})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decodeTextRequest(w, r, &req) {
		return
	}
	answer, err := s.opts.Text.Ask(r.Context(), req.Transcript)
	if err != nil {
		s.writeTextError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.textActions, 1)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) decodeTextRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !requirePOST(w, r) {
		return false
	}
	if s.opts.Text == nil {
		writeJSON(w, http.StatusServiceUnavailable, pipeline.ErrorResponse{
			Kind:    "TextActionsDisabled",
			Message: "Text actions are not configured on the server.",
		})
		return false
	}
	if err := decodeJSON(w, r, textBodyLimit, dst); err != nil {
		writeBadRequest(w, r, "The request body is not valid.", err)
		return false
	}
	return true
}

func (s *Server) writeTextError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, textops.ErrEmptyText):
		writeBadRequest(w, r, "No text provided.", err)
	case errors.Is(err, textops.ErrNoAction), errors.Is(err, textops.ErrUnknownAction):
		writeBadRequest(w, r, "Invalid action specified.", err)
	case errors.Is(err, textops.ErrNoTemplate):
		writeBadRequest(w, r, "No template type specified.", err)
	default:
		writeError(w, r, err)
	}
}
