// Package textops runs the supplementary text actions offered next to the
// voice note pipeline: summarize, translate, templates and free analysis.
package textops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicenote/internal/cache"
	"voicenote/internal/inference"
	"voicenote/internal/log"
)

type Action string

const (
	ActionSummarize Action = "summarize"
	ActionTranslate Action = "translate"
)

type Template string

const (
	TemplateMeetingNotes  Template = "meeting_notes"
	TemplateBrainstorming Template = "brainstorming"
	TemplateInterview     Template = "interview"
	TemplateGeneral       Template = "general"
)

var (
	ErrEmptyText     = errors.New("no text provided")
	ErrNoAction      = errors.New("no action specified")
	ErrUnknownAction = errors.New("invalid action specified")
	ErrNoTemplate    = errors.New("no template type specified")
)

// Service answers text actions with a completion model. Answers are cached
// by operation and input text.
type Service struct {
	completer inference.Completer
	language  string
	cache     *cache.LRUCache[string]
	timeout   time.Duration
	logger    *log.Logger
}

// DefaultTimeout bounds one text action call when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

type Options struct {
	Language  string
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

func New(completer inference.Completer, opts Options, logger *log.Logger) *Service {
	if opts.Language == "" {
		opts.Language = "Burmese"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		completer: completer,
		language:  opts.Language,
		timeout:   opts.Timeout,
		logger:    logger.WithComponent(log.ComponentTextOps),
	}
	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		s.cache = cache.NewLRUCache[string](opts.CacheSize, opts.CacheTTL)
	}
	return s
}

// Cache exposes the answer cache so it can be registered for sweeping.
// It is nil when caching is disabled.
func (s *Service) Cache() *cache.LRUCache[string] { return s.cache }

// Process summarizes or translates text.
func (s *Service) Process(ctx context.Context, text string, action Action) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	var prompt, prefix string
	switch action {
	case "":
		return "", ErrNoAction
	case ActionSummarize:
		prompt = fmt.Sprintf("Summarize the following %s text into a concise paragraph. Focus on the main points and key information. Do not add any introductory or concluding remarks.\n\nText:\n%s", s.language, text)
		prefix = "Summary:"
	case ActionTranslate:
		prompt = fmt.Sprintf("Translate the following %s text into clear and natural English. Provide only the English translation, without any introductory or concluding remarks.\n\nText:\n%s", s.language, text)
		prefix = "Translation:"
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	answer, err := s.complete(ctx, string(action), prompt)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(answer, prefix) {
		answer = strings.TrimSpace(strings.TrimPrefix(answer, prefix))
	}
	return answer, nil
}

// ApplyTemplate restructures text. The general template, and any template
// it does not know, returns the text unchanged without a model call.
func (s *Service) ApplyTemplate(ctx context.Context, text string, tmpl Template) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if tmpl == "" {
		return "", ErrNoTemplate
	}

	var prompt string
	switch tmpl {
	case TemplateMeetingNotes:
		prompt = fmt.Sprintf(`Transform the following %s text into structured meeting notes. Include sections like "Date:", "Attendees:", "Topics Discussed:", "Decisions Made:", and "Action Items:". If information is missing, state it as "N/A" or "Unknown". Provide the output entirely in %s.`, s.language, s.language)
	case TemplateBrainstorming:
		prompt = fmt.Sprintf("Organize the following %s text, which represents a brainstorming session, into key ideas or concepts. Use bullet points or a numbered list. Focus on clarity and distinct ideas. Provide the output entirely in %s.", s.language, s.language)
	case TemplateInterview:
		prompt = fmt.Sprintf(`Format the following %s text as an interview transcript. Identify speakers if possible (e.g., "Interviewer:", "Interviewee:"). If not, use "Speaker 1:", "Speaker 2:". Focus on clear dialogue flow. Provide the output entirely in %s.`, s.language, s.language)
	default:
		return text, nil
	}

	return s.complete(ctx, "template:"+string(tmpl), prompt+"\n\nText:\n"+text)
}

// Ask analyzes a transcript and answers in the note language.
func (s *Service) Ask(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyText
	}
	prompt := fmt.Sprintf("Analyze the following %s text and provide a comprehensive answer or analysis based on its content. Respond in %s. Provide only the answer/analysis, without any introductory or concluding remarks.\n\nText:\n%s", s.language, s.language, transcript)
	return s.complete(ctx, "ask", prompt)
}

func (s *Service) complete(ctx context.Context, op, prompt string) (string, error) {
	key := cache.Key(op, prompt)
	if s.cache != nil {
		if answer, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Text action served from cache", log.FieldOperation, op)
			return answer, nil
		}
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	answer, err := s.completer.Complete(cctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%s: %w", op, inference.ErrEmptyResponse)
	}

	s.logger.InfoContext(ctx, "Text action completed",
		log.FieldOperation, op,
		log.FieldDuration, time.Since(start).Milliseconds())

	if s.cache != nil {
		s.cache.Set(key, answer)
	}
	return answer, nil
}
