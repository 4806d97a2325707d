// Package api exposes the booking workflow and store over a small JSON
// surface, plus a WebSocket endpoint pushing change notifications to open
// views.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stuga/internal/models"
	"stuga/internal/store"
	"stuga/internal/workflow"
)

// UserStore resolves the requesting family member.
type UserStore interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
}

// Exporter renders a season workbook.
type Exporter interface {
	SeasonWorkbook(ctx context.Context, year int) ([]byte, error)
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	server   *http.Server
	workflow *workflow.Workflow
	bookings *store.BookingStore
	users    UserStore
	exporter Exporter
	hub      *Hub
	apiKey   string
	logger   zerolog.Logger
}

// New constructs the API server. exporter may be nil, which disables the
// export endpoint.
func New(port int, apiKey string, wf *workflow.Workflow, bookings *store.BookingStore, users UserStore, exporter Exporter, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		workflow: wf,
		bookings: bookings,
		users:    users,
		exporter: exporter,
		hub:      NewHub(logger),
		apiKey:   apiKey,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", s.requireKey(s.handleBookings))
	mux.HandleFunc("/api/v1/bookings/", s.requireKey(s.handleBookingByID))
	mux.HandleFunc("/api/v1/users", s.requireKey(s.handleUsers))
	mux.HandleFunc("/api/v1/export/season", s.requireKey(s.handleSeasonExport))
	mux.HandleFunc("/ws", s.handleWS)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is done, then shuts down gracefully. The store
// subscription feeding the WebSocket hub lives for the same span.
func (s *HTTPServer) Start(ctx context.Context) error {
	unsubscribe := s.bookings.Subscribe(s.hub.Broadcast)
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("API server started")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// requireKey rejects requests missing the shared API key. This guards the
// service surface; it is not user authentication.
func (s *HTTPServer) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next(w, r)
	}
}

// requestingUser resolves the family member named by the X-User-ID header.
func (s *HTTPServer) requestingUser(r *http.Request) (*models.User, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return nil, fmt.Errorf("X-User-ID header is required")
	}
	return s.users.Get(r.Context(), userID)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
