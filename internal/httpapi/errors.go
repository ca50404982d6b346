package httpapi

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/bankledger/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "invalid_request")
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindValidation, errs.KindInvalidAmount, errs.KindInvalidSourceAccount,
		errs.KindInvalidDestAccount, errs.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case errs.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerErr renders a service error through the message catalog in the
// caller's language. Errors without a kind are logged and reported as 500.
func (s *Server) writeLedgerErr(w http.ResponseWriter, r *http.Request, err error) {
	var le *errs.Error
	if !errors.As(err, &le) {
		s.log.Error("unhandled error", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	status := statusFor(le.Kind)
	if status >= http.StatusInternalServerError {
		s.log.Error("ledger error", "req_id", chimw.GetReqID(r.Context()), "kind", le.Kind, "err", err)
		if le.Retryable() {
			w.Header().Set("Retry-After", "1")
		}
	}
	toJSON(w, status, errorResponse{
		Error:  s.catalog.Message(r.Header.Get("Accept-Language"), le.MessageKey(), le.Params),
		Code:   string(le.Kind),
		Params: le.Params,
	})
}
