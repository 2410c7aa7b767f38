// Package inference defines the port to the model service that transcribes
// audio and answers text prompts.
package inference

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks failures worth retrying later: timeouts, network
	// errors, rate limiting and server-side errors.
	ErrUnavailable = errors.New("inference service unavailable")
	// ErrEmptyResponse is returned when the service answered without content.
	ErrEmptyResponse = errors.New("inference service returned no content")
	// ErrUnsupportedReference is returned for references the service cannot resolve.
	ErrUnsupportedReference = errors.New("unsupported audio reference")
)

// AudioSource is either inline audio bytes or a reference to an already
// uploaded object. Exactly one field is set.
type AudioSource struct {
	Inline []byte
	URI    string
}

// InlineAudio wraps raw audio bytes.
func InlineAudio(b []byte) AudioSource { return AudioSource{Inline: b} }

// ReferencedAudio wraps the URI of an uploaded audio object.
func ReferencedAudio(uri string) AudioSource { return AudioSource{URI: uri} }

// IsReference reports whether the source points at an uploaded object.
func (s AudioSource) IsReference() bool { return s.URI != "" && len(s.Inline) == 0 }

type (
	Transcriber interface {
		TranscribeAudio(ctx context.Context, src AudioSource, mime, instruction string) (string, error)
	}

	Completer interface {
		Complete(ctx context.Context, prompt string) (string, error)
	}

	ReferenceDeleter interface {
		// DeleteReference removes an uploaded object. Callers treat it as best effort.
		DeleteReference(ctx context.Context, uri string) error
	}

	// Service is the full model service used by the pipeline.
	Service interface {
		Transcriber
		Completer
		ReferenceDeleter
	}
)
