package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/hiretrack/internal/dashboard"
	"github.com/jonathan/hiretrack/internal/db"
	"github.com/jonathan/hiretrack/internal/intake"
	"github.com/jonathan/hiretrack/internal/metrics"
	"github.com/jonathan/hiretrack/internal/pipeline"
	"github.com/jonathan/hiretrack/internal/server/middleware"
	"github.com/jonathan/hiretrack/internal/server/ratelimit"
	"github.com/jonathan/hiretrack/internal/types"
)

// Shutdowner is background work drained after the HTTP server stops.
// *tasks.Pool and *tasks.Group implement it.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port            int
	AllowedOrigins  []string // "*" allows any origin
	ShutdownTimeout time.Duration
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Store       db.Store
	Intake      *intake.Service
	Pipeline    *pipeline.Manager
	Dashboard   *dashboard.Aggregator
	JWT         *JWTService
	Auth        *AuthHandler
	RateLimiter *ratelimit.Limiter // nil disables rate limiting
	Background  []Shutdowner
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	store           db.Store
	intake          *intake.Service
	pipeline        *pipeline.Manager
	dashboard       *dashboard.Aggregator
	jwtService      *JWTService
	authHandler     *AuthHandler
	rateLimiter     *ratelimit.Limiter
	background      []Shutdowner
	allowedOrigins  map[string]bool
	anyOrigin       bool
	shutdownTimeout time.Duration
}

// New creates a new server instance
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		store:           deps.Store,
		intake:          deps.Intake,
		pipeline:        deps.Pipeline,
		dashboard:       deps.Dashboard,
		jwtService:      deps.JWT,
		authHandler:     deps.Auth,
		rateLimiter:     deps.RateLimiter,
		background:      deps.Background,
		allowedOrigins:  make(map[string]bool),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 30 * time.Second
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			s.anyOrigin = true
		} else if origin != "" {
			s.allowedOrigins[origin] = true
		}
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // synchronous scoring waits on the oracle
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain around the API routes.
func (s *Server) Handler() http.Handler {
	return s.withRateLimit(s.withLogging(s.withCORS(s.routes())))
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	admin := middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), types.RoleAdmin)
	protected := func(h http.HandlerFunc) http.Handler { return admin(h) }

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth
	mux.HandleFunc("POST /api/auth/login", s.authHandler.Login)
	mux.Handle("GET /api/auth/me", protected(s.authHandler.Me))

	// Job board
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.Handle("POST /api/jobs", protected(s.handleCreateJob))
	mux.Handle("PUT /api/jobs/{id}", protected(s.handleUpdateJob))
	mux.Handle("DELETE /api/jobs/{id}", protected(s.handleDeleteJob))

	// Applications
	mux.HandleFunc("POST /api/apply", s.handleApply)
	mux.HandleFunc("POST /api/upload-url", s.handleUploadURL)
	mux.HandleFunc("GET /api/resume/{candidateId}", s.handleResume)
	mux.Handle("GET /api/candidates/{jobId}", protected(s.handleListCandidates))
	mux.Handle("DELETE /api/candidates/{id}", protected(s.handleDeleteCandidate))

	// ATS
	mux.Handle("GET /api/admin/candidates", protected(s.handleAdminCandidates))
	mux.Handle("PATCH /api/admin/candidates/{id}/override", protected(s.handleOverride))
	mux.Handle("POST /api/admin/candidates/score-all", protected(s.handleScoreAll))
	mux.Handle("PATCH /api/movestage/{id}", protected(s.handleMoveStage))
	mux.Handle("GET /api/pipeline-logs/{candidateId}", protected(s.handlePipelineLogs))
	mux.Handle("POST /api/ats/score", protected(s.handleScore))
	mux.Handle("GET /api/dashboard/stats", protected(s.handleDashboardStats))

	return mux
}

// Run serves until ctx is cancelled, then shuts the HTTP server down and drains
// the background work, all within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", listener.Addr())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, waits for in-flight ones, then drains the
// background work. Every step runs even when an earlier one fails.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	for _, bg := range s.background {
		if err := bg.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers for allowed origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (s.anyOrigin || s.allowedOrigins[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			metrics.RateLimitRejects.Inc()
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth reports liveness and whether the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.store == nil || s.store.Ping(ctx) != nil {
		status["database"] = "unavailable"
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// fail writes err with the status HTTPStatus assigns to it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	writeErr(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeErr(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] %d: %v", status, err)
	}
	writeError(w, status, err.Error())
}

// extractClientID returns the client IP from RemoteAddr. X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
