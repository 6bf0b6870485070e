// Package api provides the HTTP surface of the progression engine: the
// per-user operations, the session lifecycle signals, and a live change feed.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/app/progression"
	"github.com/storypets/storypets/internal/app/session"
	"github.com/storypets/storypets/internal/infra/docstore"
)

// Server is the StoryPets HTTP API server.
type Server struct {
	store          *docstore.Store
	progress       *progression.ProgressService
	quests         *progression.QuestService
	streaks        *progression.StreakService
	session        *session.Manager
	log            zerolog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server over the given services.
func NewServer(store *docstore.Store, progress *progression.ProgressService, quests *progression.QuestService, streaks *progression.StreakService, sess *session.Manager, log zerolog.Logger) *Server {
	return &Server{
		store:    store,
		progress: progress,
		quests:   quests,
		streaks:  streaks,
		session:  sess,
		log:      log,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// The change feed lives outside the request timeout: it stays open
	// until the client disconnects.
	r.Get("/api/users/{userID}/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := s.store.Ping(); err != nil {
				writeError(w, http.StatusServiceUnavailable, "store unreachable")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})

		// Per-user progression operations
		r.Route("/api/users/{userID}", func(r chi.Router) {
			r.Post("/progress", s.handleRecordProgress)
			r.Post("/coins/deduct", s.handleDeductCoins)
			r.Post("/rollover", s.handleRollover)
			r.Get("/overview", s.handleOverview)
			r.Get("/quests", s.handleQuestStates)
			r.Get("/pets/names", s.handlePetNames)
			r.Put("/pets/{petID}/name", s.handleSetPetName)
			r.Post("/pets/{petID}/sleep", s.handleStartSleep)
			r.Delete("/pets/{petID}/sleep", s.handleClearSleep)
		})

		// Session lifecycle signals from the auth collaborator
		r.Route("/api/session", func(r chi.Router) {
			r.Post("/signin", s.handleSignIn)
			r.Post("/signout", s.handleSignOut)
			r.Post("/focus", s.handleFocusRegained)
			r.Get("/state", s.handleSessionState)
		})

		if s.metricsEnabled {
			r.Handle("/metrics", promhttp.Handler())
		}
	})

	return r
}

// Version is overridden at build time via -ldflags.
var Version = "dev"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for the web client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
