// Package postgres provides the PostgreSQL ledger store. It talks to the
// database through database/sql with the pgx driver and keeps every statement
// explicit. Amounts are persisted as bigint minor units.
//
// Transfers run in a single transaction that locks both account rows with
// SELECT ... FOR UPDATE in ascending id order, re-validates and then writes.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/govalues/money"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements the ledger repositories and writers on PostgreSQL.
// All methods are safe for concurrent use.
type Store struct {
	db       *sql.DB
	currency string
}

// Open connects using the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn, currency string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, currency), nil
}

// New wraps an existing handle.
func New(db *sql.DB, currency string) *Store { return &Store{db: db, currency: currency} }

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// Ready pings the database to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	b, err := migrations.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return errs.Unavailable(fmt.Errorf("%s: %w", op, err))
}

func (s *Store) amount(units int64) (money.Amount, error) {
	return ledger.FromMinorUnits(s.currency, units)
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, name string) (ledger.User, error) {
	u := ledger.User{Name: name}
	err := s.db.QueryRowContext(ctx, `
		insert into users (name) values ($1)
		returning id, created_at
	`, name).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return ledger.User{}, unavailable("insert user", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (ledger.User, error) {
	var u ledger.User
	err := s.db.QueryRowContext(ctx, `
		select id, name, created_at from users where id = $1
	`, id).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, errs.NotFound("user_not_found")
	}
	if err != nil {
		return ledger.User{}, unavailable("get user", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name, created_at from users order by id`)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer rows.Close()
	out := make([]ledger.User, 0)
	for rows.Next() {
		var u ledger.User
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, unavailable("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list users", err)
	}
	return out, nil
}

// --- Accounts ---

const accountColumns = `id, owner_id, balance_minor, created_at`

type rowScanner interface{ Scan(dest ...any) error }

func (s *Store) scanAccount(row rowScanner) (ledger.Account, error) {
	var a ledger.Account
	var units int64
	if err := row.Scan(&a.ID, &a.OwnerID, &units, &a.CreatedAt); err != nil {
		return ledger.Account{}, err
	}
	bal, err := s.amount(units)
	if err != nil {
		return ledger.Account{}, err
	}
	a.Balance = bal
	return a, nil
}

// CreateAccount inserts the account only if the owner exists, in one statement.
func (s *Store) CreateAccount(ctx context.Context, ownerID int64, initial money.Amount) (ledger.Account, error) {
	a := ledger.Account{OwnerID: ownerID, Balance: initial}
	err := s.db.QueryRowContext(ctx, `
		insert into accounts (owner_id, balance_minor)
		select $1, $2 where exists (select 1 from users where id = $1)
		returning id, created_at
	`, ownerID, ledger.MinorUnits(initial)).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, errs.NotFound("user_not_found")
	}
	if err != nil {
		return ledger.Account{}, unavailable("insert account", err)
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	a, err := s.scanAccount(s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, errs.NotFound("account_not_found")
	}
	if err != nil {
		return ledger.Account{}, unavailable("get account", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `select `+accountColumns+` from accounts order by id`)
	if err != nil {
		return nil, unavailable("list accounts", err)
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			return nil, unavailable("scan account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list accounts", err)
	}
	return out, nil
}

// --- Transfers ---

// ApplyTransfer locks both accounts, runs check against the locked rows and
// writes the debit, the credit and the transaction record in one commit.
func (s *Store) ApplyTransfer(ctx context.Context, t ledger.Transfer, check ledger.TransferCheck) (ledger.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, unavailable("begin transfer", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		select `+accountColumns+` from accounts
		where id in ($1, $2)
		order by id
		for update
	`, t.FromAccountID, t.ToAccountID)
	if err != nil {
		return ledger.Transaction{}, unavailable("lock accounts", err)
	}
	locked := make(map[int64]ledger.Account, 2)
	for rows.Next() {
		a, err := s.scanAccount(rows)
		if err != nil {
			rows.Close()
			return ledger.Transaction{}, unavailable("scan account", err)
		}
		locked[a.ID] = a
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ledger.Transaction{}, unavailable("lock accounts", err)
	}

	var from, to *ledger.Account
	if a, ok := locked[t.FromAccountID]; ok {
		from = &a
	}
	if a, ok := locked[t.ToAccountID]; ok {
		to = &a
	}
	if err := check(from, to); err != nil {
		return ledger.Transaction{}, err
	}

	units := ledger.MinorUnits(t.Amount)
	if _, err := tx.ExecContext(ctx, `update accounts set balance_minor = balance_minor - $1 where id = $2`, units, t.FromAccountID); err != nil {
		return ledger.Transaction{}, unavailable("debit account", err)
	}
	if _, err := tx.ExecContext(ctx, `update accounts set balance_minor = balance_minor + $1 where id = $2`, units, t.ToAccountID); err != nil {
		return ledger.Transaction{}, unavailable("credit account", err)
	}
	rec := ledger.Transaction{
		Reference:     t.Reference,
		Amount:        t.Amount,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
	}
	err = tx.QueryRowContext(ctx, `
		insert into transactions (reference, from_account_id, to_account_id, amount_minor)
		values ($1, $2, $3, $4)
		returning id, created_at
	`, t.Reference, t.FromAccountID, t.ToAccountID, units).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return ledger.Transaction{}, unavailable("insert transaction", err)
	}
	if err := tx.Commit(); err != nil {
		return ledger.Transaction{}, unavailable("commit transfer", err)
	}
	return rec, nil
}

// --- Transactions ---

const txColumns = `id, reference, from_account_id, to_account_id, amount_minor, created_at`

func (s *Store) scanTx(row rowScanner) (ledger.Transaction, error) {
	var t ledger.Transaction
	var units int64
	if err := row.Scan(&t.ID, &t.Reference, &t.FromAccountID, &t.ToAccountID, &units, &t.CreatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	amt, err := s.amount(units)
	if err != nil {
		return ledger.Transaction{}, err
	}
	t.Amount = amt
	return t, nil
}

// TransactionsForAccount merges the by-source and by-destination index scans,
// oldest first.
func (s *Store) TransactionsForAccount(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists (select 1 from accounts where id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, unavailable("check account", err)
	}
	if !exists {
		return nil, errs.NotFound("account_not_found")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+txColumns+` from transactions where from_account_id = $1
		union all
		select `+txColumns+` from transactions where to_account_id = $1
		order by id
	`, accountID)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		t, err := s.scanTx(rows)
		if err != nil {
			return nil, unavailable("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list transactions", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	t, err := s.scanTx(s.db.QueryRowContext(ctx, `select `+txColumns+` from transactions where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, errs.NotFound("transaction_not_found")
	}
	if err != nil {
		return ledger.Transaction{}, unavailable("get transaction", err)
	}
	return t, nil
}

// --- Idempotency ---

// ReserveTransferKey claims key with a single insert; the unique key decides
// between concurrent callers. A loser reads back the record as it stands.
func (s *Store) ReserveTransferKey(ctx context.Context, key, bodyHash string) (ledger.IdempotencyRecord, bool, error) {
	var claimed string
	err := s.db.QueryRowContext(ctx, `
		insert into transfer_idempotency (key, body_hash) values ($1, $2)
		on conflict (key) do nothing
		returning key
	`, key, bodyHash).Scan(&claimed)
	if err == nil {
		return ledger.IdempotencyRecord{BodyHash: bodyHash}, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ledger.IdempotencyRecord{}, false, unavailable("reserve idempotency key", err)
	}

	var txID sql.NullInt64
	var rec ledger.IdempotencyRecord
	err = s.db.QueryRowContext(ctx, `
		select transaction_id, body_hash from transfer_idempotency where key = $1
	`, key).Scan(&txID, &rec.BodyHash)
	if errors.Is(err, sql.ErrNoRows) {
		// released between the two statements; still owned by another request
		return ledger.IdempotencyRecord{BodyHash: bodyHash}, false, nil
	}
	if err != nil {
		return ledger.IdempotencyRecord{}, false, unavailable("lookup idempotency key", err)
	}
	rec.TransactionID = txID.Int64
	return rec, false, nil
}

func (s *Store) CompleteTransferKey(ctx context.Context, key string, transactionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		update transfer_idempotency set transaction_id = $2 where key = $1
	`, key, transactionID)
	if err != nil {
		return unavailable("complete idempotency key", err)
	}
	return nil
}

func (s *Store) ReleaseTransferKey(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		delete from transfer_idempotency where key = $1 and transaction_id is null
	`, key)
	if err != nil {
		return unavailable("release idempotency key", err)
	}
	return nil
}
