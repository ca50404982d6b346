// Package query exposes the read-only views of the ledger.
package query

import (
	"context"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

type Repo interface {
	ListUsers(ctx context.Context) ([]ledger.User, error)
	GetUser(ctx context.Context, id int64) (ledger.User, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	GetAccount(ctx context.Context, id int64) (ledger.Account, error)
	TransactionsForAccount(ctx context.Context, accountID int64) ([]ledger.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error)
}

type Service interface {
	ListUsers(ctx context.Context) ([]ledger.User, error)
	GetUser(ctx context.Context, id int64) (ledger.User, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	GetAccount(ctx context.Context, id int64) (ledger.Account, error)
	TransactionHistory(ctx context.Context, accountID int64) ([]ledger.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error)
}

type service struct {
	repo Repo
}

func New(repo Repo) Service { return &service{repo: repo} }

func (s *service) ListUsers(ctx context.Context) ([]ledger.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *service) GetUser(ctx context.Context, id int64) (ledger.User, error) {
	if id <= 0 {
		return ledger.User{}, errs.NotFound("user_not_found")
	}
	return s.repo.GetUser(ctx, id)
}

func (s *service) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *service) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	if id <= 0 {
		return ledger.Account{}, errs.NotFound("account_not_found")
	}
	return s.repo.GetAccount(ctx, id)
}

// TransactionHistory lists every transaction touching the account, oldest first.
func (s *service) TransactionHistory(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
	if accountID <= 0 {
		return nil, errs.NotFound("account_not_found")
	}
	return s.repo.TransactionsForAccount(ctx, accountID)
}

func (s *service) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	if id <= 0 {
		return ledger.Transaction{}, errs.NotFound("transaction_not_found")
	}
	return s.repo.GetTransaction(ctx, id)
}
