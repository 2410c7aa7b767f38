package http

import (
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"

	"voicenote/internal/blob"
	"voicenote/internal/core"
	"voicenote/internal/log"
	"voicenote/internal/pipeline"
)

type signedURLRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// handleSignedURL issues a short-lived URL the client uploads audio to.
// The returned uri is then sent to /notes as referencedAudioUri.
func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	if s.opts.Uploads == nil {
		writeJSON(w, http.StatusServiceUnavailable, pipeline.ErrorResponse{
			Kind:    "UploadsDisabled",
			Message: "Direct uploads are not configured on the server.",
		})
		return
	}

	var req signedURLRequest
	if err := decodeJSON(w, r, 64<<10, &req); err != nil {
		writeBadRequest(w, r, "The request body is not valid.", err)
		return
	}
	req.FileName = sanitizeInput(req.FileName)
	if req.FileName == "" || req.ContentType == "" {
		writeBadRequest(w, r, "fileName and contentType are required.", nil)
		return
	}
	probe := core.VoiceNoteInput{ReferencedAudioURI: "pending", Mime: req.ContentType}
	if err := probe.Validate(s.opts.AllowedMimes); err != nil {
		writeBadRequest(w, r, "The audio format is missing or not supported.", err)
		return
	}

	key, err := blob.CleanKey(s.opts.UploadPrefix+"/"+uuid.NewString(), req.FileName)
	if err != nil {
		writeBadRequest(w, r, "The file name is not valid.", err)
		return
	}

	upload, err := s.opts.Uploads.PresignPut(r.Context(), key, core.NormalizeMime(req.ContentType), s.opts.SignedURLTTL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.uploadsSigned, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Issued signed upload URL",
		log.FieldOperation, log.OpPresign,
		log.FieldReferenceURI, upload.URI)
	writeJSON(w, http.StatusOK, upload)
}
