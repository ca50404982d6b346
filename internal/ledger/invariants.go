package ledger

import (
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
)

// Policy holds the balance rules applied uniformly to every account.
// Its methods are pure: they inspect values and never touch storage.
type Policy struct {
	MinBalance money.Amount
}

func (p Policy) minBalanceParams() map[string]string {
	return map[string]string{"min_balance": FormatAmount(p.MinBalance)}
}

// ValidateNewAccount rejects opening balances that are not strictly positive or
// fall below the floor.
func (p Policy) ValidateNewAccount(initial money.Amount) error {
	units := MinorUnits(initial)
	if units <= 0 || units < MinorUnits(p.MinBalance) {
		return errs.New(errs.KindValidation, "min_balance_error", p.minBalanceParams())
	}
	return nil
}

// ValidateTransfer checks a transfer of amount from one account to another.
// Leaving the source exactly at the floor is allowed.
func (p Policy) ValidateTransfer(from, to *Account, amount money.Amount) error {
	if from == nil {
		return errs.New(errs.KindInvalidSourceAccount, "invalid_account_from", nil)
	}
	if to == nil {
		return errs.New(errs.KindInvalidDestAccount, "invalid_account_to", nil)
	}
	if MinorUnits(amount) <= 0 {
		return errs.New(errs.KindInvalidAmount, "invalid_amount", nil)
	}
	if from.ID == to.ID {
		return errs.New(errs.KindValidation, "same_account", nil)
	}
	remaining, err := from.Balance.Sub(amount)
	if err != nil {
		return &errs.Error{Kind: errs.KindInvalidAmount, Key: "invalid_amount", Err: err}
	}
	if _, err := to.Balance.Add(amount); err != nil {
		return &errs.Error{Kind: errs.KindInvalidAmount, Key: "invalid_amount", Err: err}
	}
	if MinorUnits(remaining) < MinorUnits(p.MinBalance) {
		return errs.New(errs.KindInsufficientBalance, "transfer_not_possible_min_bal", p.minBalanceParams())
	}
	return nil
}

// CheckFor binds amount into a TransferCheck suitable for a store's locked
// re-validation step.
func (p Policy) CheckFor(amount money.Amount) TransferCheck {
	return func(from, to *Account) error { return p.ValidateTransfer(from, to, amount) }
}
