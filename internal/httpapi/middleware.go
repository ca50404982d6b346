package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type ctxKey string

const (
	ctxKeyPostUser     ctxKey = "validatedPostUser"
	ctxKeyPostAccount  ctxKey = "validatedPostAccount"
	ctxKeyPostTransfer ctxKey = "validatedPostTransfer"
	ctxKeyRawBody      ctxKey = "rawBody"
)

const maxBodyBytes = 1 << 20

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and returns nil bytes on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) ([]byte, bool) {
	if !requireJSON(w, r) {
		return nil, false
	}
	body, err := readBody(w, r)
	if err != nil {
		badRequest(w, "could not read body")
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Code: "invalid_request", Details: details})
			return nil, false
		}
		badRequest(w, err.Error())
		return nil, false
	}
	return body, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// validatePostUser decodes POST /v1/users. Name rules live in the account service.
func (s *Server) validatePostUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postUserRequest
			if _, ok := s.decodeAndValidate(w, r, &req); !ok {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostUser, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validatePostAccount decodes and structurally validates POST /v1/accounts.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postAccountRequest
			if _, ok := s.decodeAndValidate(w, r, &req); !ok {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostAccount, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validatePostTransfer decodes POST /v1/transfers and keeps the raw body so the
// handler can fingerprint it for idempotency.
func (s *Server) validatePostTransfer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postTransferRequest
			body, ok := s.decodeAndValidate(w, r, &req)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostTransfer, req)
			ctx = context.WithValue(ctx, ctxKeyRawBody, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// idParam parses an integer URL parameter. Range checks belong to the services.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
