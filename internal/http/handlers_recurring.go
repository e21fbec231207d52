package http

import (
	"net/http"

	"dailybudget/internal/auth"
	"dailybudget/internal/core"
	"dailybudget/internal/log"
	"dailybudget/internal/services"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Recurring.ListRecurring(r.Context(), auth.UserFromContext(r.Context()), budgetID(r))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(items))
}

func (s *Server) handleAddRecurring(w http.ResponseWriter, r *http.Request) {
	var in services.RecurringInput
	if err := DecodeJSON(r, &in); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	it, err := s.svc.Recurring.AddRecurring(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, it)
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var ch core.RecurringChange
	if err := DecodeJSON(r, &ch); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	it, err := s.svc.Recurring.UpdateRecurring(r.Context(), auth.UserFromContext(r.Context()), entryID(r), ch)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, it)
}

func (s *Server) handleRemoveRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Recurring.RemoveRecurring(r.Context(), auth.UserFromContext(r.Context()), entryID(r)); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	noContent(w)
}
