// Package mockapi is a stand-in for the remote statistics service. It serves
// the five analysis endpoints with straightforward computations so the wizards
// can be exercised end to end without the real service.
package mockapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options tune the stub.
type Options struct {
	// Latency is added to every analysis call.
	Latency time.Duration
	// Seed makes the Monte Carlo simulation reproducible.
	Seed uint64
}

// Server routes the analysis endpoints.
type Server struct {
	router *chi.Mux
	opts   Options
}

// New creates the stub with its routes and middleware.
func New(opts Options) *Server {
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	s := &Server{router: chi.NewRouter(), opts: opts}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.latency)
		r.Post("/regression/linear", s.handleRegression)
		r.Post("/hypothesis/t-test", s.handleTTest)
		r.Post("/timeseries/autocorrelation", s.handleAutocorrelation)
		r.Post("/quality/control-chart", s.handleControlChart)
		r.Post("/simulation/monte-carlo", s.handleMonteCarlo)
	})
}

// latency delays a call, giving up when the client goes away.
func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// response is the envelope every analysis answers with.
type response struct {
	Results        any      `json:"results"`
	Interpretation []string `json:"interpretation,omitempty"`
	Plot           string   `json:"plot,omitempty"`
}

// inputError is reported as 400 with a detail message, the way the real
// service reports request validation failures.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func badInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badInput("invalid JSON body: %v", err)
	}
	return nil
}

func respond(w http.ResponseWriter, r *http.Request, res *response, err error) {
	if err != nil {
		if ie, ok := err.(*inputError); ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": ie.msg})
			return
		}
		// Computation failures are answered like the real service does: 200
		// with an error field.
		log.Printf("[MockAPI] %s failed: %v", r.URL.Path, err)
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[MockAPI] Failed to write response: %v", err)
	}
}
