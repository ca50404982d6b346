package httpapi

import (
	"context"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// IdempotencyStore remembers which transaction an Idempotency-Key produced.
// ReserveTransferKey must claim a key atomically: of several concurrent callers
// with the same key exactly one gets reserved == true. The others receive the
// record as it stands, pending until CompleteTransferKey fills in the
// transaction. ReleaseTransferKey drops a reservation whose transfer failed.
type IdempotencyStore interface {
	ReserveTransferKey(ctx context.Context, key, bodyHash string) (rec ledger.IdempotencyRecord, reserved bool, err error)
	CompleteTransferKey(ctx context.Context, key string, transactionID int64) error
	ReleaseTransferKey(ctx context.Context, key string) error
}

// ReadyChecker is implemented by backends that can report connectivity.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
