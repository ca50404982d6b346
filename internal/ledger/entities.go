package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// MaxNameLength bounds User.Name.
const MaxNameLength = 255

// User owns zero or more accounts.
type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Account holds a balance owned by a single user.
// Balance never drops below the configured minimum in any committed state.
type Account struct {
	ID        int64
	OwnerID   int64
	Balance   money.Amount
	CreatedAt time.Time
}

// Transaction is the immutable record of a committed transfer. It appears in the
// history of both the source and the destination account.
type Transaction struct {
	ID            int64
	Reference     uuid.UUID
	Amount        money.Amount
	FromAccountID int64
	ToAccountID   int64
	CreatedAt     time.Time
}

// Transfer describes a proposed movement of funds between two accounts.
type Transfer struct {
	FromAccountID int64
	ToAccountID   int64
	Amount        money.Amount
	Reference     uuid.UUID
}

// TransferCheck validates a transfer against the current state of both accounts.
// Stores call it while holding the locks of both accounts; a nil account means
// it does not exist.
type TransferCheck func(from, to *Account) error

// IdempotencyRecord binds an Idempotency-Key to the transaction it produced and a
// hash of the request body that produced it. A zero TransactionID marks a key
// that is reserved by a request still in flight.
type IdempotencyRecord struct {
	TransactionID int64  `json:"transaction_id"`
	BodyHash      string `json:"body_hash"`
}

// Pending reports whether the transfer owning the key has not committed yet.
func (r IdempotencyRecord) Pending() bool { return r.TransactionID == 0 }
