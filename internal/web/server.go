// Package web serves the JSON API a calendar UI talks to: event CRUD,
// windowed occurrence queries, month and week grids, ICS export and a
// websocket feed of store changes.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"reccal/internal/calendar"
	"reccal/internal/config"
	"reccal/internal/ics"
	appLog "reccal/internal/log"
	"reccal/internal/recurrence"
	"reccal/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server wires the store, the expansion options and the calendar
// configuration to HTTP handlers.
type Server struct {
	cfg    *config.Config
	store  store.Store
	syncer *ics.Syncer // nil when no subscriptions are configured

	cal      calendar.Calendar
	opts     recurrence.Options
	validate *validator.Validate
	hub      *Hub
	router   *mux.Router
}

// NewServer builds a Server. syncer may be nil. Store changes are pushed to
// websocket clients from here on.
func NewServer(cfg *config.Config, st store.Store, syncer *ics.Syncer) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		syncer:   syncer,
		cal:      cfg.Calendar(),
		opts:     cfg.ExpandOptions(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		hub:      NewHub(),
		router:   mux.NewRouter(),
	}
	st.OnChange(s.hub.BroadcastChange)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/events/{id}", s.handleGetEvent).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.handleUpdateEvent).Methods(http.MethodPut)
	api.HandleFunc("/events/{id}", s.handleDeleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/occurrences", s.handleEventOccurrences).Methods(http.MethodGet)
	api.HandleFunc("/occurrences", s.handleOccurrences).Methods(http.MethodGet)
	api.HandleFunc("/calendar/month", s.handleMonth).Methods(http.MethodGet)
	api.HandleFunc("/calendar/week", s.handleWeek).Methods(http.MethodGet)
	api.HandleFunc("/export.ics", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the router wrapped in middleware, outermost first:
// request logging, CORS, rate limiting, basic auth.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router

	if auth := newBasicAuth(s.cfg.BasicAuth); auth != nil {
		appLog.Info("HTTP basic auth enabled", "username", s.cfg.BasicAuth.Username, "bcrypt", auth.hash != nil)
		h = auth.middleware(h)
	}
	if n := s.cfg.RateLimitPerMinute; n > 0 {
		h = httprate.LimitByIP(n, time.Minute)(h)
	}
	if len(s.cfg.CORSOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		})(h)
	}
	return logRequests(h)
}

// Hub exposes the websocket hub, mainly for tests and shutdown.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully and disconnects websocket clients.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down HTTP server")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
