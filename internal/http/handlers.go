package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type appMetrics struct {
	notesTotal    int64
	notesFailed   int64
	warningsTotal int64
	textActions   int64
	uploadsSigned int64
	uptime        time.Time
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady runs every configured dependency check
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.opts.Notes == nil {
		checks["pipeline"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["pipeline"] = "ok"
	}

	for _, c := range s.opts.ReadyChecks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	counter := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, value)
	}
	gauge := func(name, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, value)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	counter("voice_notes_total", "Voice notes recorded", atomic.LoadInt64(&s.appMetrics.notesTotal))
	counter("voice_notes_failed_total", "Voice note jobs that failed", atomic.LoadInt64(&s.appMetrics.notesFailed))
	counter("voice_note_warnings_total", "Warnings attached to recorded notes", atomic.LoadInt64(&s.appMetrics.warningsTotal))
	counter("text_actions_total", "Completed text actions", atomic.LoadInt64(&s.appMetrics.textActions))
	counter("signed_uploads_total", "Signed upload URLs issued", atomic.LoadInt64(&s.appMetrics.uploadsSigned))
	counter("suspicious_requests_total", "Requests flagged as suspicious", securityMetrics.SuspiciousRequests)

	if s.limiter != nil {
		m := s.limiter.GetMetrics()
		counter("rate_limit_hits_total", "Requests rejected by the rate limiter", m.TotalHits)
		gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", m.ClientCount)
	}
	if s.opts.CacheStats != nil {
		st := s.opts.CacheStats()
		counter("text_cache_hits_total", "Text action cache hits", int64(st.Hits))
		counter("text_cache_misses_total", "Text action cache misses", int64(st.Misses))
		gauge("text_cache_entries", "Entries in the text action cache", int64(st.Size))
	}
	gauge("uptime_seconds", "Seconds since the server started", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "NotFound",
		"message": "No such endpoint.",
	})
}
