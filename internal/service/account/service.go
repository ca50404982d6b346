// Package account implements user and account creation: names must be present,
// and opening balances must satisfy the ledger policy before anything is stored.
package account

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

type Writer interface {
	CreateUser(ctx context.Context, name string) (ledger.User, error)
	CreateAccount(ctx context.Context, ownerID int64, initial money.Amount) (ledger.Account, error)
}

type Service interface {
	CreateUser(ctx context.Context, name string) (ledger.User, error)
	CreateAccount(ctx context.Context, userID int64, initial money.Amount) (ledger.Account, error)
}

type service struct {
	writer Writer
	policy ledger.Policy
}

func New(writer Writer, policy ledger.Policy) Service {
	return &service{writer: writer, policy: policy}
}

func (s *service) CreateUser(ctx context.Context, name string) (ledger.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.User{}, errs.New(errs.KindValidation, "name_required", nil)
	}
	if utf8.RuneCountInString(name) > ledger.MaxNameLength {
		return ledger.User{}, errs.New(errs.KindValidation, "name_too_long", map[string]string{"max": strconv.Itoa(ledger.MaxNameLength)})
	}
	return s.writer.CreateUser(ctx, name)
}

// CreateAccount validates the opening balance first; the store reports a
// missing owner.
func (s *service) CreateAccount(ctx context.Context, userID int64, initial money.Amount) (ledger.Account, error) {
	if err := s.policy.ValidateNewAccount(initial); err != nil {
		return ledger.Account{}, err
	}
	if userID <= 0 {
		return ledger.Account{}, errs.NotFound("user_not_found")
	}
	return s.writer.CreateAccount(ctx, userID, initial)
}
