package transfer_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/transfer"
	"github.com/tinoosan/bankledger/internal/storage/memory"
)

var policy = ledger.Policy{MinBalance: ledger.MustFromMinorUnits("EUR", 1000)}

func setup(t *testing.T, balances ...int64) (*memory.Store, transfer.Service, []int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.New("EUR")
	u, err := store.CreateUser(ctx, "Alice")
	require.NoError(t, err)
	ids := make([]int64, 0, len(balances))
	for _, b := range balances {
		a, err := store.CreateAccount(ctx, u.ID, ledger.MustFromMinorUnits("EUR", b))
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	return store, transfer.New(store, store, policy), ids
}

func balance(t *testing.T, s *memory.Store, id int64) int64 {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return ledger.MinorUnits(a.Balance)
}

func TestTransfer_MovesFunds(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 10000, 5000)
	a, b := ids[0], ids[1]

	tx, err := svc.Transfer(ctx, a, b, ledger.MustFromMinorUnits("EUR", 5000))
	require.NoError(t, err)
	assert.Equal(t, a, tx.FromAccountID)
	assert.Equal(t, b, tx.ToAccountID)
	assert.Equal(t, int64(5000), ledger.MinorUnits(tx.Amount))
	assert.NotEqual(t, uuid.Nil, tx.Reference)

	assert.Equal(t, int64(5000), balance(t, store, a))
	assert.Equal(t, int64(10000), balance(t, store, b))

	for _, id := range ids {
		hist, err := store.TransactionsForAccount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []ledger.Transaction{tx}, hist)
	}
}

func TestTransfer_ExactlyAtFloor(t *testing.T) {
	store, svc, ids := setup(t, 10000, 5000)
	_, err := svc.Transfer(context.Background(), ids[0], ids[1], ledger.MustFromMinorUnits("EUR", 9000))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance(t, store, ids[0]))
}

func TestTransfer_Rejections(t *testing.T) {
	cases := map[string]struct {
		from, to int64 // indexes into ids; negative means that literal id
		units    int64
		want     error
		key      string
	}{
		"below floor":         {0, 1, 9500, errs.ErrInsufficientBalance, "transfer_not_possible_min_bal"},
		"unknown source":      {-999, 1, 1000, errs.ErrInvalidSourceAccount, "invalid_account_from"},
		"unknown destination": {0, -999, 1000, errs.ErrInvalidDestAccount, "invalid_account_to"},
		"zero amount":         {0, 1, 0, errs.ErrInvalidAmount, "invalid_amount"},
		"negative amount":     {0, 1, -100, errs.ErrInvalidAmount, "invalid_amount"},
		"same account":        {0, 0, 100, errs.ErrValidation, "same_account"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, svc, ids := setup(t, 10000, 5000)
			pick := func(i int64) int64 {
				if i < 0 {
					return -i
				}
				return ids[i]
			}
			_, err := svc.Transfer(ctx, pick(tc.from), pick(tc.to), ledger.MustFromMinorUnits("EUR", tc.units))
			require.ErrorIs(t, err, tc.want)
			var e *errs.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tc.key, e.MessageKey())

			assert.Equal(t, int64(10000), balance(t, store, ids[0]))
			assert.Equal(t, int64(5000), balance(t, store, ids[1]))
			hist, _ := store.TransactionsForAccount(ctx, ids[0])
			assert.Empty(t, hist)
		})
	}
}

func TestTransfer_InsufficientCarriesFloor(t *testing.T) {
	_, svc, ids := setup(t, 10000, 5000)
	_, err := svc.Transfer(context.Background(), ids[0], ids[1], ledger.MustFromMinorUnits("EUR", 9500))
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, map[string]string{"min_balance": "10.00"}, e.Params)
}

func TestTransfer_NonPositiveIDsAreInvalidAccounts(t *testing.T) {
	_, svc, ids := setup(t, 10000)
	_, err := svc.Transfer(context.Background(), 0, ids[0], ledger.MustFromMinorUnits("EUR", 100))
	assert.ErrorIs(t, err, errs.ErrInvalidSourceAccount)
	_, err = svc.Transfer(context.Background(), ids[0], -3, ledger.MustFromMinorUnits("EUR", 100))
	assert.ErrorIs(t, err, errs.ErrInvalidDestAccount)
}

type failingRepo struct{}

func (failingRepo) GetAccount(context.Context, int64) (ledger.Account, error) {
	return ledger.Account{}, errs.Unavailable(errors.New("connection refused"))
}

type recordingWriter struct{ calls int }

func (w *recordingWriter) ApplyTransfer(context.Context, ledger.Transfer, ledger.TransferCheck) (ledger.Transaction, error) {
	w.calls++
	return ledger.Transaction{}, nil
}

func TestTransfer_StoreUnavailableSkipsCommit(t *testing.T) {
	w := &recordingWriter{}
	svc := transfer.New(failingRepo{}, w, policy)
	_, err := svc.Transfer(context.Background(), 1, 2, ledger.MustFromMinorUnits("EUR", 100))
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.True(t, errs.IsRetryable(err))
	assert.Zero(t, w.calls)
}

// Random transfers between a handful of accounts never change the total and
// never leave an account under the floor.
func TestTransfer_RandomSequenceConservesTotal(t *testing.T) {
	ctx := context.Background()
	store, svc, ids := setup(t, 5000, 2500, 12000, 1000, 7300)
	var total int64
	for _, id := range ids {
		total += balance(t, store, id)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		from := ids[rng.Intn(len(ids))]
		to := ids[rng.Intn(len(ids))]
		units := rng.Int63n(4000) - 200
		_, err := svc.Transfer(ctx, from, to, ledger.MustFromMinorUnits("EUR", units))
		if err != nil {
			kind := errs.KindOf(err)
			require.Contains(t, []errs.Kind{errs.KindInsufficientBalance, errs.KindInvalidAmount, errs.KindValidation}, kind)
		}
	}

	var after int64
	for _, id := range ids {
		b := balance(t, store, id)
		assert.GreaterOrEqual(t, b, int64(1000))
		after += b
	}
	assert.Equal(t, total, after)
}
