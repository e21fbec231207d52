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

func entryID(r *http.Request) string { return chi.URLParam(r, "id") }

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	ok(w, services.Categories())
}

// Expenses

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ParseEntryFilter(r.URL.Query(), s.loc)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	expenses, err := s.svc.Ledger.ListExpenses(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), f)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(expenses))
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := DecodeJSON(r, &in); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	e, err := s.svc.Ledger.RecordExpense(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, e)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Ledger.GetExpense(r.Context(), auth.UserFromContext(r.Context()), entryID(r))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	ok(w, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var ch core.ExpenseChange
	if err := DecodeJSON(r, &ch); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	e, err := s.svc.Ledger.UpdateExpense(r.Context(), auth.UserFromContext(r.Context()), entryID(r), ch)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, e)
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.RemoveExpense(r.Context(), auth.UserFromContext(r.Context()), entryID(r)); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	noContent(w)
}

// Income

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	f, err := ParseEntryFilter(r.URL.Query(), s.loc)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	income, err := s.svc.Ledger.ListIncome(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), f)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(income))
}

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request) {
	var in services.IncomeInput
	if err := DecodeJSON(r, &in); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	i, err := s.svc.Ledger.RecordIncome(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, i)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	i, err := s.svc.Ledger.GetIncome(r.Context(), auth.UserFromContext(r.Context()), entryID(r))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	ok(w, i)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var ch core.IncomeChange
	if err := DecodeJSON(r, &ch); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	i, err := s.svc.Ledger.UpdateIncome(r.Context(), auth.UserFromContext(r.Context()), entryID(r), ch)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, i)
}

func (s *Server) handleRemoveIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ledger.RemoveIncome(r.Context(), auth.UserFromContext(r.Context()), entryID(r)); err != nil {
		fail(w, r, log.OpDelete, err)
		return
	}
	noContent(w)
}

// Transfers and assets

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var in services.TransferInput
	if err := DecodeJSON(r, &in); err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	t, err := s.svc.Ledger.Transfer(r.Context(), auth.UserFromContext(r.Context()), in)
	if err != nil {
		fail(w, r, log.OpCreate, err)
		return
	}
	created(w, t)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.svc.Ledger.ListTransfers(r.Context(), auth.UserFromContext(r.Context()), budgetID(r))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(transfers))
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.svc.Ledger.ListAssets(r.Context(), auth.UserFromContext(r.Context()), budgetID(r))
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	ok(w, list(assets))
}

func (s *Server) handleAssetsTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.svc.Ledger.AssetsTotal(r.Context(), auth.UserFromContext(r.Context()), budgetID(r))
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	ok(w, map[string]decimal.Decimal{"total": total})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleSetAsset(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	a, err := s.svc.Ledger.SetAsset(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), chi.URLParam(r, "code"), req.Amount)
	if err != nil {
		fail(w, r, log.OpUpdate, err)
		return
	}
	ok(w, a)
}

func (s *Server) handleAdjustAsset(subtract bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountRequest
		if err := DecodeJSON(r, &req); err != nil {
			fail(w, r, log.OpUpdate, err)
			return
		}
		adjust := s.svc.Ledger.AddToAsset
		if subtract {
			adjust = s.svc.Ledger.SubtractFromAsset
		}
		a, err := adjust(r.Context(), auth.UserFromContext(r.Context()), budgetID(r), chi.URLParam(r, "code"), req.Amount)
		if err != nil {
			fail(w, r, log.OpUpdate, err)
			return
		}
		ok(w, a)
	}
}
