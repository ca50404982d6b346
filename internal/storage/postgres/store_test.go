package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

var policy = ledger.Policy{MinBalance: ledger.MustFromMinorUnits("EUR", 1000)}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, "EUR"), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "balance_minor", "created_at"})
}

func TestApplyTransfer_Commits(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	ref := uuid.New()
	amount := ledger.MustFromMinorUnits("EUR", 5000)

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, owner_id, balance_minor, created_at from accounts\s+where id in \(\$1, \$2\)\s+order by id\s+for update`).
		WithArgs(int64(2), int64(1)).
		WillReturnRows(accountRows().AddRow(1, 1, 5000, now).AddRow(2, 1, 10000, now))
	mock.ExpectExec(`update accounts set balance_minor = balance_minor - \$1 where id = \$2`).
		WithArgs(int64(5000), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update accounts set balance_minor = balance_minor \+ \$1 where id = \$2`).
		WithArgs(int64(5000), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`insert into transactions`).
		WithArgs(ref, int64(2), int64(1), int64(5000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, now))
	mock.ExpectCommit()

	tr := ledger.Transfer{FromAccountID: 2, ToAccountID: 1, Amount: amount, Reference: ref}
	tx, err := s.ApplyTransfer(context.Background(), tr, policy.CheckFor(amount))
	require.NoError(t, err)
	assert.Equal(t, int64(7), tx.ID)
	assert.Equal(t, ref, tx.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransfer_InsufficientBalanceRollsBack(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	amount := ledger.MustFromMinorUnits("EUR", 9500)

	mock.ExpectBegin()
	mock.ExpectQuery(`for update`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(accountRows().AddRow(1, 1, 10000, now).AddRow(2, 1, 5000, now))
	mock.ExpectRollback()

	tr := ledger.Transfer{FromAccountID: 1, ToAccountID: 2, Amount: amount, Reference: uuid.New()}
	_, err := s.ApplyTransfer(context.Background(), tr, policy.CheckFor(amount))
	assert.ErrorIs(t, err, errs.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransfer_MissingDestination(t *testing.T) {
	s, mock := newMock(t)
	amount := ledger.MustFromMinorUnits("EUR", 100)

	mock.ExpectBegin()
	mock.ExpectQuery(`for update`).
		WithArgs(int64(1), int64(99)).
		WillReturnRows(accountRows().AddRow(1, 1, 10000, time.Now()))
	mock.ExpectRollback()

	tr := ledger.Transfer{FromAccountID: 1, ToAccountID: 99, Amount: amount, Reference: uuid.New()}
	_, err := s.ApplyTransfer(context.Background(), tr, policy.CheckFor(amount))
	assert.ErrorIs(t, err, errs.ErrInvalidDestAccount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransfer_DriverFailureIsUnavailable(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	amount := ledger.MustFromMinorUnits("EUR", 100)

	mock.ExpectBegin()
	mock.ExpectQuery(`for update`).
		WillReturnRows(accountRows().AddRow(1, 1, 10000, now).AddRow(2, 1, 5000, now))
	mock.ExpectExec(`update accounts`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	tr := ledger.Transfer{FromAccountID: 1, ToAccountID: 2, Amount: amount, Reference: uuid.New()}
	_, err := s.ApplyTransfer(context.Background(), tr, policy.CheckFor(amount))
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.True(t, errs.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccount_UnknownOwner(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`insert into accounts`).
		WithArgs(int64(42), int64(10000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	_, err := s.CreateAccount(context.Background(), 42, ledger.MustFromMinorUnits("EUR", 10000))
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccount(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(`from accounts where id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(accountRows().AddRow(1, 3, 12345, now))
	mock.ExpectQuery(`from accounts where id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(accountRows())

	a, err := s.GetAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.OwnerID)
	assert.Equal(t, "123.45", ledger.FormatAmount(a.Balance))

	_, err = s.GetAccount(context.Background(), 2)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionsForAccount(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	refA, refB := uuid.New(), uuid.New()

	mock.ExpectQuery(`select exists`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`where from_account_id = \$1\s+union all\s+select .* where to_account_id = \$1\s+order by id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference", "from_account_id", "to_account_id", "amount_minor", "created_at"}).
			AddRow(1, refA.String(), 1, 2, 500, now).
			AddRow(2, refB.String(), 2, 1, 300, now))

	hist, err := s.TransactionsForAccount(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, refA, hist[0].Reference)
	assert.Equal(t, int64(300), ledger.MinorUnits(hist[1].Amount))

	mock.ExpectQuery(`select exists`).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = s.TransactionsForAccount(context.Background(), 9)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferKeyReservation(t *testing.T) {
	s, mock := newMock(t)
	claim := `insert into transfer_idempotency \(key, body_hash\) values \(\$1, \$2\)\s+on conflict \(key\) do nothing\s+returning key`
	read := `select transaction_id, body_hash from transfer_idempotency where key = \$1`

	mock.ExpectQuery(claim).WithArgs("k1", "h").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("k1"))
	mock.ExpectQuery(claim).WithArgs("k1", "h").
		WillReturnRows(sqlmock.NewRows([]string{"key"}))
	mock.ExpectQuery(read).WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "body_hash"}).AddRow(nil, "h"))
	mock.ExpectExec(`update transfer_idempotency set transaction_id = \$2 where key = \$1`).WithArgs("k1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(claim).WithArgs("k1", "h").
		WillReturnRows(sqlmock.NewRows([]string{"key"}))
	mock.ExpectQuery(read).WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "body_hash"}).AddRow(4, "h"))
	mock.ExpectExec(`delete from transfer_idempotency where key = \$1 and transaction_id is null`).WithArgs("k2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(claim).WithArgs("k3", "h").WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	rec, reserved, err := s.ReserveTransferKey(ctx, "k1", "h")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.True(t, rec.Pending())

	rec, reserved, err = s.ReserveTransferKey(ctx, "k1", "h")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.True(t, rec.Pending())

	require.NoError(t, s.CompleteTransferKey(ctx, "k1", 4))
	rec, reserved, err = s.ReserveTransferKey(ctx, "k1", "h")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, ledger.IdempotencyRecord{TransactionID: 4, BodyHash: "h"}, rec)

	require.NoError(t, s.ReleaseTransferKey(ctx, "k2"))

	_, _, err = s.ReserveTransferKey(ctx, "k3", "h")
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Integration tests below run against a real database when TEST_DATABASE_URL is set.

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, getTestDSN(t), "EUR")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	_, err = s.db.ExecContext(ctx, `truncate table transfer_idempotency, transactions, accounts, users restart identity cascade`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ConcurrentTransfersConserveTotal(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Alice")
	require.NoError(t, err)
	a, err := s.CreateAccount(ctx, u.ID, ledger.MustFromMinorUnits("EUR", 100000))
	require.NoError(t, err)
	b, err := s.CreateAccount(ctx, u.ID, ledger.MustFromMinorUnits("EUR", 100000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = to, from
			}
			amt := ledger.MustFromMinorUnits("EUR", 250)
			tr := ledger.Transfer{FromAccountID: from, ToAccountID: to, Amount: amt, Reference: uuid.New()}
			_, err := s.ApplyTransfer(ctx, tr, policy.CheckFor(amt))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	accs, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	var total int64
	for _, acc := range accs {
		total += ledger.MinorUnits(acc.Balance)
	}
	assert.Equal(t, int64(200000), total)

	hist, err := s.TransactionsForAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 40)
}
