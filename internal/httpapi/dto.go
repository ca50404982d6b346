package httpapi

import (
	"encoding/json"
	"time"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// Users

type postUserRequest struct {
	Name string `json:"name"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u ledger.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
}

// Accounts

// postAccountRequest accepts the balance as a JSON number or a decimal string.
// Ids are pointers so that a missing id is rejected here while 0 or a negative
// id reaches the services and is reported as not found.
type postAccountRequest struct {
	UserID         *int64      `json:"user_id" validate:"required"`
	InitialBalance json.Number `json:"initial_balance" validate:"required"`
}

type accountResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Balance      string    `json:"balance"`
	BalanceMinor int64     `json:"balance_minor"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		UserID:       a.OwnerID,
		Balance:      ledger.FormatAmount(a.Balance),
		BalanceMinor: ledger.MinorUnits(a.Balance),
		Currency:     a.Balance.Curr().Code(),
		CreatedAt:    a.CreatedAt,
	}
}

// Transfers

type postTransferRequest struct {
	FromAccountID *int64      `json:"from_account_id" validate:"required"`
	ToAccountID   *int64      `json:"to_account_id" validate:"required"`
	Amount        json.Number `json:"amount" validate:"required"`
}

type transactionResponse struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	Amount        string    `json:"amount"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Reference:     t.Reference.String(),
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        ledger.FormatAmount(t.Amount),
		AmountMinor:   ledger.MinorUnits(t.Amount),
		Currency:      t.Amount.Curr().Code(),
		CreatedAt:     t.CreatedAt,
	}
}
