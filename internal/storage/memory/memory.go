// Package memory provides the in-memory ledger store used by default and in tests.
// Transfers lock the two accounts involved in ascending id order; the store-wide
// RWMutex is only held while a transfer's effects are published, so readers see
// either all of a transfer or none of it.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// Store is an in-memory implementation of the ledger repositories and writers.
type Store struct {
	mu sync.RWMutex

	currency string

	nextUserID    int64
	nextAccountID int64

	users     map[int64]ledger.User
	userOrder []int64

	accounts     map[int64]ledger.Account
	accountOrder []int64
	accountLocks map[int64]*sync.Mutex

	// Append-only transaction log plus per-account positions into it.
	txLog    []ledger.Transaction
	bySource map[int64][]int
	byDest   map[int64][]int

	idem map[string]ledger.IdempotencyRecord

	now func() time.Time
}

// New constructs an empty store. currency tags the amounts it rebuilds from
// snapshots.
func New(currency string) *Store {
	s := &Store{currency: currency, now: time.Now}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.nextUserID = 0
	s.nextAccountID = 0
	s.users = make(map[int64]ledger.User)
	s.userOrder = nil
	s.accounts = make(map[int64]ledger.Account)
	s.accountOrder = nil
	s.accountLocks = make(map[int64]*sync.Mutex)
	s.txLog = nil
	s.bySource = make(map[int64][]int)
	s.byDest = make(map[int64][]int)
	s.idem = make(map[string]ledger.IdempotencyRecord)
}

// Reset drops all data. Intended for tests.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// Ready always succeeds for the memory backend.
func (s *Store) Ready(context.Context) error { return nil }

// CreateUser stores a user with the next id.
func (s *Store) CreateUser(_ context.Context, name string) (ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u := ledger.User{ID: s.nextUserID, Name: name, CreatedAt: s.now().UTC()}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return ledger.User{}, errs.NotFound("user_not_found")
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

// CreateAccount opens an account for an existing user.
func (s *Store) CreateAccount(_ context.Context, ownerID int64, initial money.Amount) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[ownerID]; !ok {
		return ledger.Account{}, errs.NotFound("user_not_found")
	}
	s.nextAccountID++
	a := ledger.Account{ID: s.nextAccountID, OwnerID: ownerID, Balance: initial, CreatedAt: s.now().UTC()}
	s.insertAccountLocked(a)
	return a, nil
}

func (s *Store) insertAccountLocked(a ledger.Account) {
	s.accounts[a.ID] = a
	s.accountOrder = append(s.accountOrder, a.ID)
	s.accountLocks[a.ID] = &sync.Mutex{}
}

func (s *Store) GetAccount(_ context.Context, id int64) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.NotFound("account_not_found")
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accountOrder))
	for _, id := range s.accountOrder {
		out = append(out, s.accounts[id])
	}
	return out, nil
}

// lockPair acquires the locks of both accounts in ascending id order and
// returns the matching unlock. Missing accounts have no lock; check reports them.
func (s *Store) lockPair(a, b int64) func() {
	if b < a {
		a, b = b, a
	}
	s.mu.RLock()
	first, second := s.accountLocks[a], s.accountLocks[b]
	s.mu.RUnlock()
	if a == b {
		second = nil
	}
	if first != nil {
		first.Lock()
	}
	if second != nil {
		second.Lock()
	}
	return func() {
		if second != nil {
			second.Unlock()
		}
		if first != nil {
			first.Unlock()
		}
	}
}

// ApplyTransfer debits the source, credits the destination and appends the
// transaction as one step. check runs against the balances as they are while
// both accounts are locked; if it fails nothing changes.
func (s *Store) ApplyTransfer(_ context.Context, t ledger.Transfer, check ledger.TransferCheck) (ledger.Transaction, error) {
	unlock := s.lockPair(t.FromAccountID, t.ToAccountID)
	defer unlock()

	s.mu.RLock()
	from, okFrom := s.accounts[t.FromAccountID]
	to, okTo := s.accounts[t.ToAccountID]
	s.mu.RUnlock()

	var fromPtr, toPtr *ledger.Account
	if okFrom {
		fromPtr = &from
	}
	if okTo {
		toPtr = &to
	}
	if err := check(fromPtr, toPtr); err != nil {
		return ledger.Transaction{}, err
	}
	if from.ID == to.ID {
		return ledger.Transaction{}, errs.New(errs.KindValidation, "same_account", nil)
	}

	debited, err := from.Balance.Sub(t.Amount)
	if err != nil {
		return ledger.Transaction{}, &errs.Error{Kind: errs.KindInvalidAmount, Key: "invalid_amount", Err: err}
	}
	credited, err := to.Balance.Add(t.Amount)
	if err != nil {
		return ledger.Transaction{}, &errs.Error{Kind: errs.KindInvalidAmount, Key: "invalid_amount", Err: err}
	}
	from.Balance = debited
	to.Balance = credited

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := ledger.Transaction{
		ID:            int64(len(s.txLog)) + 1,
		Reference:     t.Reference,
		Amount:        t.Amount,
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		CreatedAt:     s.now().UTC(),
	}
	s.accounts[from.ID] = from
	s.accounts[to.ID] = to
	s.appendTxLocked(tx)
	return tx, nil
}

func (s *Store) appendTxLocked(tx ledger.Transaction) {
	pos := len(s.txLog)
	s.txLog = append(s.txLog, tx)
	s.bySource[tx.FromAccountID] = append(s.bySource[tx.FromAccountID], pos)
	s.byDest[tx.ToAccountID] = append(s.byDest[tx.ToAccountID], pos)
}

// TransactionsForAccount merges the by-source and by-destination indices of the
// account into one list ordered by creation.
func (s *Store) TransactionsForAccount(_ context.Context, accountID int64) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, errs.NotFound("account_not_found")
	}
	src, dst := s.bySource[accountID], s.byDest[accountID]
	out := make([]ledger.Transaction, 0, len(src)+len(dst))
	i, j := 0, 0
	for i < len(src) || j < len(dst) {
		switch {
		case j == len(dst) || (i < len(src) && src[i] < dst[j]):
			out = append(out, s.txLog[src[i]])
			i++
		case i == len(src) || dst[j] < src[i]:
			out = append(out, s.txLog[dst[j]])
			j++
		default:
			// same position in both indices
			out = append(out, s.txLog[src[i]])
			i++
			j++
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id <= 0 || id > int64(len(s.txLog)) {
		return ledger.Transaction{}, errs.NotFound("transaction_not_found")
	}
	return s.txLog[id-1], nil
}

// ReserveTransferKey claims key for a request with bodyHash. If the key is
// already known the existing record is returned with reserved == false.
func (s *Store) ReserveTransferKey(_ context.Context, key, bodyHash string) (ledger.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.idem[key]; ok {
		return rec, false, nil
	}
	rec := ledger.IdempotencyRecord{BodyHash: bodyHash}
	s.idem[key] = rec
	return rec, true, nil
}

// CompleteTransferKey records the transaction produced under a reserved key.
func (s *Store) CompleteTransferKey(_ context.Context, key string, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.idem[key]
	if !ok {
		return errs.NotFound("idempotency_key_not_found")
	}
	rec.TransactionID = transactionID
	s.idem[key] = rec
	return nil
}

// ReleaseTransferKey forgets a reservation that never produced a transaction.
func (s *Store) ReleaseTransferKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.idem[key]; ok && rec.Pending() {
		delete(s.idem, key)
	}
	return nil
}
