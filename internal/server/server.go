// Package server exposes the identity service over HTTP.
//
// Uploads are spooled to disk before extraction so large multipart bodies
// never sit fully in memory twice, request admission is rate limited, and a
// semaphore bounds how many embedding extractions run at once.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/faceid"
)

const (
	defaultMaxUploadBytes = 8 << 20
	defaultRateLimit      = 50
	defaultRateBurst      = 100
	defaultMaxExtractions = 4
)

// Options configures a Server.
type Options struct {
	// SpoolDir holds uploaded images while a request is in flight.
	// Defaults to the OS temp directory.
	SpoolDir string

	// MaxUploadBytes caps the multipart body size.
	MaxUploadBytes int64

	// RateLimit is the sustained request rate per second; RateBurst the
	// burst allowance.
	RateLimit float64
	RateBurst int

	// MaxConcurrentExtractions bounds embedding extractions in flight.
	MaxConcurrentExtractions int64

	// Logger for request logging. Defaults to a no-op logger.
	Logger *faceid.Logger
}

// Server routes HTTP requests to a faceid.Service.
type Server struct {
	svc      *faceid.Service
	mux      *http.ServeMux
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	spoolDir string
	maxBytes int64
	logger   *faceid.Logger
}

// New creates a Server around svc.
func New(svc *faceid.Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		SpoolDir:                 os.TempDir(),
		MaxUploadBytes:           defaultMaxUploadBytes,
		RateLimit:                defaultRateLimit,
		RateBurst:                defaultRateBurst,
		MaxConcurrentExtractions: defaultMaxExtractions,
		Logger:                   faceid.NoopLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		svc:      svc,
		mux:      http.NewServeMux(),
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		sem:      semaphore.NewWeighted(opts.MaxConcurrentExtractions),
		spoolDir: opts.SpoolDir,
		maxBytes: opts.MaxUploadBytes,
		logger:   opts.Logger,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /identify", s.handleIdentify)
	s.mux.HandleFunc("GET /users", s.handleUsers)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	image, cleanup, err := s.spoolImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	identityID := r.FormValue("identity_id")

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	identity, err := s.svc.Register(r.Context(), identityID, image)
	s.sem.Release(1)

	if err != nil {
		logger.ErrorContext(r.Context(), "register failed", "identity", identityID, "error", err)
		writeServiceError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "register completed", "identity", identityID)
	writeJSON(w, http.StatusCreated, identity)
}

type identifyResponse struct {
	Matches      []faceid.Match `json:"matches"`
	TotalMatches int            `json:"total_matches"`
	TotalEntries int            `json:"total_entries"`
	TimeTaken    float64        `json:"time_taken"`
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	image, cleanup, err := s.spoolImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	k := 0
	if raw := r.FormValue("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil || k <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	result, err := s.svc.Identify(r.Context(), image, k)
	s.sem.Release(1)

	if err != nil {
		logger.ErrorContext(r.Context(), "identify failed", "error", err)
		writeServiceError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "identify completed", "matches", result.TotalMatches)
	writeJSON(w, http.StatusOK, identifyResponse{
		Matches:      result.Matches,
		TotalMatches: result.TotalMatches,
		TotalEntries: result.TotalEntries,
		TimeTaken:    result.TimeTaken.Seconds(),
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := s.svc.Identities(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total": len(identities),
		"users": identities,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unhealthy",
			"entries": s.svc.Count(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": s.svc.Count(),
	})
}

// spoolImage writes the uploaded image to a scratch file and returns its
// contents. The scratch file keeps multipart parsing independent of how
// long extraction holds the bytes.
func (s *Server) spoolImage(r *http.Request) ([]byte, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(nil, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		return nil, noop, fmt.Errorf("invalid multipart body: %w", err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, noop, errors.New("missing image file")
	}
	defer file.Close()

	scratch := filepath.Join(s.spoolDir, uuid.NewString()+".img")
	out, err := os.Create(scratch)
	if err != nil {
		return nil, noop, fmt.Errorf("spool image: %w", err)
	}
	cleanup := func() { os.Remove(scratch) }

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		cleanup()
		return nil, noop, fmt.Errorf("spool image: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("spool image: %w", err)
	}

	image, err := os.ReadFile(scratch)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("read spooled image: %w", err)
	}
	if len(image) == 0 {
		cleanup()
		return nil, noop, errors.New("empty image file")
	}

	return image, cleanup, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	var extractErr *faceid.ErrExtraction
	var dimErr *faceid.ErrDimensionMismatch

	switch {
	case errors.Is(err, faceid.ErrEmptyIdentityID), errors.Is(err, faceid.ErrInvalidK):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &extractErr), errors.As(err, &dimErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, faceid.ErrEmptyDatabase), errors.Is(err, faceid.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, faceid.ErrUnhealthy):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Run serves until the context is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
