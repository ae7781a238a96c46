package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pastelcal/internal/auth"
	"pastelcal/internal/calendar"
	"pastelcal/internal/config"
	"pastelcal/internal/dateutil"
	"pastelcal/internal/events"
	"pastelcal/internal/grouping"
	"pastelcal/internal/holiday"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/modal"
	"pastelcal/internal/store"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the HTTP API serves from. Holidays may be nil.
type Deps struct {
	Store     store.Store
	Issuer    *auth.Issuer
	Directory auth.Directory
	Holidays  *holiday.Provider
	Builder   grouping.Builder
}

// Server provides the JSON API for the calendar page.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	store     store.Store
	issuer    *auth.Issuer
	directory auth.Directory
	holidays  *holiday.Provider
	builder   grouping.Builder
	now       func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, d Deps) *Server {
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		store:     d.Store,
		issuer:    d.Issuer,
		directory: d.Directory,
		holidays:  d.Holidays,
		builder:   d.Builder,
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.mux)
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully within a few seconds.
func (s *Server) Run(ctx context.Context) error {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)

	s.mux.Handle("GET /api/me", s.requireAuth(s.handleMe))
	s.mux.Handle("GET /api/events", s.requireAuth(s.handleListEvents))
	s.mux.Handle("GET /api/events/folded", s.requireAuth(s.handleFoldedEvents))
	s.mux.Handle("POST /api/events", s.requireAuth(s.handleCreateEvent))
	s.mux.Handle("PUT /api/events/{id}", s.requireAuth(s.handleUpdateEvent))
	s.mux.Handle("DELETE /api/events/{id}", s.requireAuth(s.handleDeleteEvent))
	s.mux.Handle("DELETE /api/events", s.requireAuth(s.handleDeleteMonth))
	s.mux.Handle("DELETE /api/groups/{groupId}", s.requireAuth(s.handleDeleteGroup))
	s.mux.Handle("GET /api/calendar", s.requireAuth(s.handleCalendar))
	s.mux.Handle("GET /api/holidays", s.requireAuth(s.handleHolidays))
	s.mux.Handle("GET /api/events.ics", s.requireAuth(s.handleExport))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// requireAuth resolves the bearer token into an auth.Identity on the
// request context. /health and /api/login are registered without it.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}
		id, err := s.issuer.Verify(tok)
		if err != nil {
			appLog.Debug("rejected bearer token", "path", r.URL.Path, "err", err.Error())
			writeError(w, http.StatusUnauthorized, "INVALID_TOKEN")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// session builds a per-request event session for the signed-in owner.
func (s *Server) session(r *http.Request) (*events.Session, auth.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok || id.Username == "" {
		return nil, auth.Identity{}, auth.ErrAuthRequired
	}
	return events.NewSession(id.Username, s.store).WithDefaultTitle(s.builder.DefaultTitle), id, nil
}

// page wires a session to a fresh event dialog for one request.
func (s *Server) page(r *http.Request) (*calendar.Page, error) {
	sess, id, err := s.session(r)
	if err != nil {
		return nil, err
	}
	return calendar.NewPage(id, sess, s.builder), nil
}

// monthQuery reads year and 1-based month, defaulting to the current month
// in the configured timezone.
func (s *Server) monthQuery(r *http.Request) (int, time.Month, error) {
	now := s.now().In(s.cfg.Location())
	q := r.URL.Query()
	year, month := now.Year(), now.Month()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 9999 {
			return 0, 0, errors.New("invalid year")
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			return 0, 0, errors.New("invalid month")
		}
		month = time.Month(n)
	}
	return year, month, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: code})
}

// writeFailure maps core errors onto status codes and error codes.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
	case errors.Is(err, events.ErrValidation), errors.Is(err, dateutil.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD")
	case errors.Is(err, modal.ErrClosed):
		writeError(w, http.StatusConflict, "MODAL_CLOSED")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, events.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "DB_QUERY_FAILED")
	default:
		appLog.Error("unhandled API error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL")
	}
}
