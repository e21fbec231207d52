package http

import (
	"net/http"

	"dailybudget/internal/auth"
	"dailybudget/internal/core"
	"dailybudget/internal/log"
)

// Daily limit, breakdown, export and alerts: the read-mostly views of a
// budget.

func (s *Server) handleDailyLimit(w http.ResponseWriter, r *http.Request) {
	today, err := ParseToday(r.URL.Query(), s.loc, s.now())
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	m, err := s.svc.Limits.DailyLimit(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), today)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	ok(w, m)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	today, err := ParseToday(r.URL.Query(), s.loc, s.now())
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	b, err := s.svc.Limits.Breakdown(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), today)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	ok(w, b)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var from, to core.Day
	var err error
	if from, err = ParseDayParam(r.URL.Query(), "from", s.loc); err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	if to, err = ParseDayParam(r.URL.Query(), "to", s.loc); err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	content, filename, err := s.svc.Export.ExportCSV(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), from, to)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().
		Raw("text/csv; charset=utf-8", content).
		Attachment(filename).
		Write(w)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	fetch := s.svc.Alerts.ListAll
	if ParseBool(r.URL.Query(), "unread") {
		fetch = s.svc.Alerts.ListUnread
	}
	alerts, err := fetch(r.Context(), user)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(alerts))
}

func (s *Server) handleGenerateAlerts(w http.ResponseWriter, r *http.Request) {
	today, err := ParseToday(r.URL.Query(), s.loc, s.now())
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	n, err := s.svc.Alerts.GenerateForUser(r.Context(), auth.UserFromContext(r.Context()), today)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	ok(w, map[string]int{"created": n})
}

func (s *Server) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Alerts.MarkRead(r.Context(), auth.UserFromContext(r.Context()), entryID(r)); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	noContent(w)
}

func (s *Server) handleMarkAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Alerts.MarkAllRead(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, map[string]int64{"updated": n})
}

func (s *Server) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Alerts.Remove(r.Context(), auth.UserFromContext(r.Context()), entryID(r)); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	noContent(w)
}
