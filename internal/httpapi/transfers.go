package httpapi

import (
	"context"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// postTransfer executes a transfer. With an Idempotency-Key header the key is
// reserved before any money moves: a repeated request with the same body
// replays the original transaction (200), the same key with a different body
// or while the first request is still running is a 409.
func (s *Server) postTransfer(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostTransfer).(postTransferRequest)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	ctx := r.Context()

	amount, err := ledger.ParseAmount(s.catalog.Currency(), req.Amount.String())
	if errors.Is(err, ledger.ErrAmountPrecision) {
		s.writeLedgerErr(w, r, errs.New(errs.KindInvalidAmount, "amount_precision", nil))
		return
	}
	if err != nil {
		badRequest(w, "invalid amount")
		return
	}

	key := r.Header.Get(idempotencyHeader)
	useKey := key != "" && s.idemStore != nil
	if useKey {
		if !validIdempotencyKey(key) {
			badRequest(w, "invalid Idempotency-Key")
			return
		}
		body, _ := ctx.Value(ctxKeyRawBody).([]byte)
		rec, reserved, err := s.idemStore.ReserveTransferKey(ctx, key, hashBytes(body))
		if err != nil {
			s.writeLedgerErr(w, r, err)
			return
		}
		if !reserved {
			s.replayTransfer(w, r, rec, hashBytes(body))
			return
		}
	}

	tx, err := s.transferSvc.Transfer(ctx, *req.FromAccountID, *req.ToAccountID, amount)
	observeTransfer(err)
	if err != nil {
		if useKey {
			if rerr := s.idemStore.ReleaseTransferKey(context.WithoutCancel(ctx), key); rerr != nil {
				s.log.Error("release idempotency key", "req_id", chimw.GetReqID(ctx), "err", rerr)
			}
		}
		s.writeLedgerErr(w, r, err)
		return
	}
	s.log.Info("transfer committed",
		"req_id", chimw.GetReqID(ctx),
		"transaction_id", tx.ID,
		"reference", tx.Reference.String(),
		"from_account_id", tx.FromAccountID,
		"to_account_id", tx.ToAccountID,
		"amount_minor", ledger.MinorUnits(tx.Amount),
	)

	if useKey {
		if err := s.idemStore.CompleteTransferKey(context.WithoutCancel(ctx), key, tx.ID); err != nil {
			// transfer already committed; the key stays reserved until it expires
			s.log.Error("complete idempotency key", "req_id", chimw.GetReqID(ctx), "err", err)
		}
	}
	toJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// replayTransfer answers a request whose Idempotency-Key is already taken.
func (s *Server) replayTransfer(w http.ResponseWriter, r *http.Request, rec ledger.IdempotencyRecord, bodyHash string) {
	lang := r.Header.Get("Accept-Language")
	switch {
	case rec.BodyHash != bodyHash:
		toJSON(w, http.StatusConflict, errorResponse{
			Error: s.catalog.Message(lang, "idempotency_key_reuse", nil),
			Code:  "idempotency_key_reuse",
		})
	case rec.Pending():
		toJSON(w, http.StatusConflict, errorResponse{
			Error: s.catalog.Message(lang, "idempotency_key_in_progress", nil),
			Code:  "idempotency_key_in_progress",
		})
	default:
		tx, err := s.querySvc.GetTransaction(r.Context(), rec.TransactionID)
		if err != nil {
			s.writeLedgerErr(w, r, err)
			return
		}
		transfersTotal.WithLabelValues("replayed").Inc()
		toJSON(w, http.StatusOK, toTransactionResponse(tx))
	}
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	tx, err := s.querySvc.GetTransaction(r.Context(), id)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(tx))
}
