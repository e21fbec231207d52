package http

import (
	"net/http"

	"dailybudget/internal/auth"
	"dailybudget/internal/core"
	"dailybudget/internal/log"
	"dailybudget/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func budgetID(r *http.Request) string { return chi.URLParam(r, "budgetID") }

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.Budgets.ListBudgets(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(budgets))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.GetBudget(r.Context(), auth.UserFromContext(r.Context()), budgetID(r))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	ok(w, b)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in services.NewBudget
	if err := DecodeJSON(r, &in); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	b, err := s.svc.Budgets.CreateBudget(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var ch core.BudgetChange
	if err := DecodeJSON(r, &ch); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	b, err := s.svc.Budgets.UpdateBudget(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), ch)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, b)
}

func (s *Server) handleRemoveBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.RemoveBudget(r.Context(), auth.UserFromContext(r.Context()), budgetID(r)); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	noContent(w)
}

func (s *Server) handleDuplicateBudget(w http.ResponseWriter, r *http.Request) {
	var opts services.DuplicateOptions
	if err := DecodeJSON(r, &opts); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	b, err := s.svc.Budgets.DuplicateBudget(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), opts)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, b)
}

type currencyRequest struct {
	Currency string          `json:"currencyCode"`
	Rate     decimal.Decimal `json:"rateToMain"`
}

func (s *Server) handleSwitchMainCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currencyCode"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	b, err := s.svc.Budgets.SwitchMainCurrency(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), req.Currency)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, b)
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	rates, err := s.svc.Budgets.ListCurrencies(r.Context(), auth.UserFromContext(r.Context()), budgetID(r))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(rates))
}

func (s *Server) handleAddCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	c, err := s.svc.Budgets.AddCurrency(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), req.Currency, req.Rate)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, c)
}

func (s *Server) handleUpdateRate(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	err := s.svc.Budgets.UpdateRate(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), chi.URLParam(r, "code"), req.Rate)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	noContent(w)
}

func (s *Server) handleRemoveCurrency(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Budgets.RemoveCurrency(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), chi.URLParam(r, "code"))
	if err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	noContent(w)
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Rates.RefreshRates(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), r.URL.Query().Get("currency"))
	if err != nil {
		fail(w, r, log.OpRefresh, err)
		return
	}
	ok(w, res)
}
