// Package openai implements inference.Service on top of an OpenAI-compatible
// API: Whisper for transcription, chat completions for prompts.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	goopenai "github.com/sashabaranov/go-openai"

	"voicenote/internal/blob"
	"voicenote/internal/inference"
)

// MaxAudioBytes is the largest audio payload the transcription endpoint accepts.
const MaxAudioBytes = 25 << 20

const filePrefix = "file-"

// Config holds client settings.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	CompletionModel    string
	Language           string // ISO-639-1 hint for transcription, e.g. "my"
	Temperature        float32
	MaxRetryTime       time.Duration
}

// Client implements inference.Service.
type Client struct {
	api   *goopenai.Client
	blobs blob.Store
	cfg   Config
}

var _ inference.Service = (*Client)(nil)

// New builds a client. blobs resolves referenced audio; it may be nil when
// only inline audio is used.
func New(cfg Config, blobs blob.Store) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = goopenai.Whisper1
	}
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = goopenai.GPT4oMini
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 15 * time.Second
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:   goopenai.NewClientWithConfig(apiCfg),
		blobs: blobs,
		cfg:   cfg,
	}, nil
}

// TranscribeAudio sends audio to the transcription model. Referenced audio
// is read from the blob store first.
func (c *Client) TranscribeAudio(ctx context.Context, src inference.AudioSource, mime, instruction string) (string, error) {
	data := src.Inline
	if src.IsReference() {
		var err error
		data, err = c.fetch(ctx, src.URI)
		if err != nil {
			return "", err
		}
	}
	if len(data) == 0 {
		return "", errors.New("no audio data")
	}
	if len(data) > MaxAudioBytes {
		return "", fmt.Errorf("audio payload of %d bytes exceeds limit (413)", len(data))
	}

	var text string
	err := c.retry(ctx, "transcribe", func() error {
		resp, err := c.api.CreateTranscription(ctx, goopenai.AudioRequest{
			Model:    c.cfg.TranscriptionModel,
			FilePath: "voice-note." + extensionFor(mime),
			Reader:   bytes.NewReader(data),
			Prompt:   instruction,
			Language: c.cfg.Language,
		})
		if err != nil {
			return err
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return text, nil
}

// Complete sends a single user prompt and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := c.retry(ctx, "complete", func() error {
		resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: c.cfg.CompletionModel,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: c.cfg.Temperature,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(inference.ErrEmptyResponse)
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("complete prompt: %w", err)
	}
	return answer, nil
}

// DeleteReference removes a referenced upload from the blob store, or an
// uploaded file from the API when the reference is a file id.
func (c *Client) DeleteReference(ctx context.Context, uri string) error {
	switch {
	case c.blobs != nil && c.blobs.Handles(uri):
		return c.blobs.Delete(ctx, uri)
	case strings.HasPrefix(uri, filePrefix):
		if err := c.api.DeleteFile(ctx, uri); err != nil {
			return fmt.Errorf("delete file %s: %w", uri, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", inference.ErrUnsupportedReference, uri)
	}
}

func (c *Client) fetch(ctx context.Context, uri string) ([]byte, error) {
	if c.blobs == nil || !c.blobs.Handles(uri) {
		return nil, fmt.Errorf("%w: %s", inference.ErrUnsupportedReference, uri)
	}
	rc, err := c.blobs.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("open referenced audio: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read referenced audio: %w", err)
	}
	return data, nil
}

// retry runs op with exponential backoff. Client errors stop immediately;
// what remains after the budget is wrapped with inference.ErrUnavailable
// when it was transient.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var attempts int
	wrapped := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "Inference call failed, retrying", "operation", op, "attempt", attempts, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime

	err := backoff.Retry(wrapped, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", inference.ErrUnavailable, err)
	}
	return err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])) {
	case "audio/ogg", "audio/opus":
		return "ogg"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/x-m4a", "audio/m4a", "audio/aac":
		return "m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/flac", "audio/x-flac":
		return "flac"
	default:
		return "webm"
	}
}
