package httpapi

import (
	"errors"
	"net/http"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostAccount).(postAccountRequest)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	initial, err := ledger.ParseAmount(s.catalog.Currency(), req.InitialBalance.String())
	if errors.Is(err, ledger.ErrAmountPrecision) {
		s.writeLedgerErr(w, r, errs.New(errs.KindValidation, "amount_precision", nil))
		return
	}
	if err != nil {
		badRequest(w, "invalid initial_balance")
		return
	}
	a, err := s.accountSvc.CreateAccount(r.Context(), *req.UserID, initial)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(a))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := s.querySvc.ListAccounts(r.Context())
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accs))
	for _, a := range accs {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	a, err := s.querySvc.GetAccount(r.Context(), id)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// listAccountTransactions returns the account's history, oldest first.
func (s *Server) listAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	txs, err := s.querySvc.TransactionHistory(r.Context(), id)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	toJSON(w, http.StatusOK, out)
}
