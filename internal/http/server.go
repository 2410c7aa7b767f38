// Package http exposes the voice note pipeline and the text actions as a
// JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"voicenote/internal/blob"
	"voicenote/internal/cache"
	"voicenote/internal/core"
	"voicenote/internal/log"
	"voicenote/internal/middleware/ratelimit"
	"voicenote/internal/middleware/security"
	"voicenote/internal/middleware/trace"
	"voicenote/internal/pipeline"
	"voicenote/internal/textops"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 10 << 20

type (
	// NoteRunner runs one voice note through the pipeline.
	NoteRunner interface {
		Run(ctx context.Context, in core.VoiceNoteInput) (*pipeline.Outcome, error)
	}

	// TextActions answers the supplementary transcript endpoints.
	TextActions interface {
		Process(ctx context.Context, text string, action textops.Action) (string, error)
		ApplyTemplate(ctx context.Context, text string, tmpl textops.Template) (string, error)
		Ask(ctx context.Context, transcript string) (string, error)
	}

	// ReadyCheck is one dependency probed by /readyz.
	ReadyCheck struct {
		Name  string
		Check func(ctx context.Context) error
	}
)

// Options wires the server. Notes is required; Text and Uploads disable
// their endpoints when nil.
type Options struct {
	Addr               string
	Notes              NoteRunner
	Text               TextActions
	Uploads            blob.Presigner
	UploadPrefix       string
	SignedURLTTL       time.Duration
	AllowedMimes       []string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	ReadyChecks        []ReadyCheck
	CacheStats         func() cache.Stats
	// WriteTimeout caps a whole request after its headers are read. It
	// must exceed the longest pipeline run; zero disables it.
	WriteTimeout time.Duration
	Logger       *log.Logger
}

type Server struct {
	http.Server
	opts    Options
	logger  *log.Logger
	limiter *ratelimit.Limiter

	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 15 * time.Minute
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		opts:             opts,
		logger:           logger,
		securityDetector: security.NewDetector(),
		appMetrics:       newAppMetrics(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/notes", s.handleCreateNote)
	mux.HandleFunc("/uploads/signed-url", s.handleSignedURL)
	mux.HandleFunc("/transcripts/process", s.handleProcessTranscript)
	mux.HandleFunc("/transcripts/template", s.handleApplyTemplate)
	mux.HandleFunc("/transcripts/ask", s.handleAsk)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/", s.handleNotFound)

	var handler http.Handler = mux
	handler = s.rateLimitPOST(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// rateLimitPOST limits only the POST endpoints, which are the ones that
// call the inference service.
func (s *Server) rateLimitPOST(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	limited := s.limiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, pipeline.ErrorResponse{
			Kind:    "RateLimited",
			Message: "Rate limit exceeded. Please try again later.",
		})
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
