package web

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"pastelcal/internal/auth"
	"pastelcal/internal/calendar"
	"pastelcal/internal/dateutil"
	"pastelcal/internal/icsexport"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/modal"
	"pastelcal/internal/model"
	"pastelcal/internal/palette"
	"pastelcal/internal/store"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      auth.Identity `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD")
		return
	}
	u, err := auth.Login(r.Context(), s.directory, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		appLog.Info("login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS")
		return
	}
	if err != nil {
		appLog.Error("login lookup failed", err, "username", req.Username)
		writeError(w, http.StatusInternalServerError, "DB_QUERY_FAILED")
		return
	}
	tok, exp, err := s.issuer.Issue(u)
	if err != nil {
		appLog.Error("token signing failed", err)
		writeError(w, http.StatusInternalServerError, "TOKEN_SIGN_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     tok,
		ExpiresAt: exp.UTC(),
		User:      auth.Identity{Username: u.Username, Name: u.Name},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeFailure(w, auth.ErrAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

type eventsResponse struct {
	Events []model.EventItem `json:"events"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY")
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := sess.Load(r.Context(), dateutil.YearMonth(year, month)); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: sess.Items()})
}

// foldedEvent is a logical event with the classes it renders with.
type foldedEvent struct {
	model.DisplayEvent
	Palette palette.Entry `json:"palette"`
}

func (s *Server) handleFoldedEvents(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY")
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := sess.Load(r.Context(), dateutil.YearMonth(year, month)); err != nil {
		writeFailure(w, err)
		return
	}
	folded := sess.Folded()
	out := make([]foldedEvent, 0, len(folded))
	for _, ev := range folded {
		out = append(out, foldedEvent{DisplayEvent: ev, Palette: palette.Resolve(ev.Color, ev.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type createRequest struct {
	Title   string `json:"title"`
	Notes   string `json:"notes"`
	Date    string `json:"date"`
	EndDate string `json:"endDate,omitempty"`
	Color   string `json:"color,omitempty"`
}

// handleCreateEvent runs the same dialog the month page uses: a date opens
// a single-day dialog, date+endDate a range dialog.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD")
		return
	}
	p, err := s.page(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := p.Modal.OpenFor(req.Date, req.EndDate); err != nil {
		writeFailure(w, err)
		return
	}
	created, err := p.Submit(r.Context(), modal.Input{Title: req.Title, Notes: req.Notes, Color: req.Color})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if len(created) == 0 {
		// 날짜 없이 저장하면 아무 일도 일어나지 않는다.
		writeError(w, http.StatusBadRequest, "DATE_REQUIRED")
		return
	}
	writeJSON(w, http.StatusCreated, eventsResponse{Events: created})
}

type updateRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
	Color string `json:"color,omitempty"`
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD")
		return
	}
	p, err := s.page(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	target, err := s.store.Get(r.Context(), p.Session.Owner(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeFailure(w, err)
		return
	}
	if err != nil {
		appLog.Error("event lookup failed", err, "id", r.PathValue("id"))
		writeError(w, http.StatusInternalServerError, "DB_QUERY_FAILED")
		return
	}
	if err := p.Modal.OpenForEdit(target); err != nil {
		writeFailure(w, err)
		return
	}
	updated, err := p.Submit(r.Context(), modal.Input{Title: req.Title, Notes: req.Notes, Color: req.Color})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if updated == nil {
		updated = []model.EventItem{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: updated})
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	n, err := sess.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	n, err := sess.DeleteGroup(r.Context(), r.PathValue("groupId"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

// handleDeleteMonth clears a month. Both year and month must be given so a
// bare DELETE never wipes the current month by accident.
func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("year") == "" || q.Get("month") == "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY")
		return
	}
	year, month, err := s.monthQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY")
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	n, err := sess.DeleteMonth(r.Context(), dateutil.YearMonth(year, month))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

type calendarResponse struct {
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	WeekStart string            `json:"weekStart"`
	Weeks     [][]calendar.Cell `json:"weeks"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY")
		return
	}
	sess, _, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	g := calendar.Month(year, month, calendar.ParseWeekStart(s.cfg.WeekStart))
	// 앞뒤 칸에 걸친 이웃 달의 일정도 함께 읽는다.
	months := []string{g.YearMonth()}
	for _, key := range []string{g.First(), g.Last()} {
		if ym := key[:7]; !slices.Contains(months, ym) {
			months = append(months, ym)
		}
	}
	if err := sess.LoadMonths(r.Context(), months...); err != nil {
		writeFailure(w, err)
		return
	}

	// 1월/12월 그리드는 이웃 연도의 날짜도 보여준다.
	years := []int{year}
	for _, key := range []string{g.First(), g.Last()} {
		if y, _ := strconv.Atoi(key[:4]); y != year {
			years = append(years, y)
		}
	}
	hs := s.holidaysFor(r.Context(), years...)

	writeJSON(w, http.StatusOK, calendarResponse{
		Year:      year,
		Month:     int(month),
		WeekStart: s.cfg.WeekStart,
		Weeks:     calendar.Overlay(g, sess.Items(), hs),
	})
}

// holidaysFor collects the holidays of years. Lookup failures are logged
// and the grid renders without them.
func (s *Server) holidaysFor(ctx context.Context, years ...int) []model.Holiday {
	if s.holidays == nil {
		return []model.Holiday{}
	}
	out := make([]model.Holiday, 0)
	for _, y := range years {
		hs, err := s.holidays.ForYear(ctx, y)
		if err != nil {
			appLog.Error("holiday lookup failed", err, "year", y)
			continue
		}
		out = append(out, hs...)
	}
	return out
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year, _, err := s.monthQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":     year,
		"holidays": s.holidaysFor(r.Context(), year),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, id, err := s.session(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := sess.Load(r.Context(), ""); err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pastelcal.ics"`)
	w.WriteHeader(http.StatusOK)
	if err := icsexport.Write(w, sess.Folded(), "pastelcal "+id.Username, s.now()); err != nil {
		appLog.Error("ics export write failed", err, "owner", id.Username)
	}
}
