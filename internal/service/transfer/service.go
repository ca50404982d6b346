// Package transfer implements the transfer engine: look up both accounts,
// validate against the ledger policy, then commit atomically through the store,
// which repeats the validation while holding both accounts' locks.
package transfer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

type Repo interface {
	GetAccount(ctx context.Context, id int64) (ledger.Account, error)
}

type Writer interface {
	ApplyTransfer(ctx context.Context, t ledger.Transfer, check ledger.TransferCheck) (ledger.Transaction, error)
}

type Service interface {
	Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) (ledger.Transaction, error)
}

type service struct {
	repo   Repo
	writer Writer
	policy ledger.Policy
}

func New(repo Repo, writer Writer, policy ledger.Policy) Service {
	return &service{repo: repo, writer: writer, policy: policy}
}

// Transfer moves amount between two accounts and returns the recorded
// transaction. A rejected transfer leaves no trace.
func (s *service) Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) (ledger.Transaction, error) {
	from, err := s.lookup(ctx, fromID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	to, err := s.lookup(ctx, toID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.policy.ValidateTransfer(from, to, amount); err != nil {
		return ledger.Transaction{}, err
	}
	t := ledger.Transfer{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Reference:     uuid.New(),
	}
	return s.writer.ApplyTransfer(ctx, t, s.policy.CheckFor(amount))
}

// lookup returns nil for a missing account so the policy can report which side
// of the transfer is invalid.
func (s *service) lookup(ctx context.Context, id int64) (*ledger.Account, error) {
	if id <= 0 {
		return nil, nil
	}
	a, err := s.repo.GetAccount(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
