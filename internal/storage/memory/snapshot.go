package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/bankledger/internal/ledger"
)

const snapshotVersion = 1

type snapshot struct {
	Version      int                                 `json:"version"`
	Currency     string                              `json:"currency"`
	Users        []snapshotUser                      `json:"users"`
	Accounts     []snapshotAccount                   `json:"accounts"`
	Transactions []snapshotTx                        `json:"transactions"`
	Idempotency  map[string]ledger.IdempotencyRecord `json:"idempotency,omitempty"`
}

type snapshotUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type snapshotAccount struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	BalanceMinor int64     `json:"balance_minor"`
	CreatedAt    time.Time `json:"created_at"`
}

type snapshotTx struct {
	ID            int64     `json:"id"`
	Reference     uuid.UUID `json:"reference"`
	AmountMinor   int64     `json:"amount_minor"`
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// SaveSnapshot writes the whole store to path. The file is replaced atomically
// via a temporary file and rename.
func (s *Store) SaveSnapshot(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Version:      snapshotVersion,
		Currency:     s.currency,
		Users:        make([]snapshotUser, 0, len(s.userOrder)),
		Accounts:     make([]snapshotAccount, 0, len(s.accountOrder)),
		Transactions: make([]snapshotTx, 0, len(s.txLog)),
		Idempotency:  make(map[string]ledger.IdempotencyRecord, len(s.idem)),
	}
	for _, id := range s.userOrder {
		u := s.users[id]
		snap.Users = append(snap.Users, snapshotUser{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt})
	}
	for _, id := range s.accountOrder {
		a := s.accounts[id]
		snap.Accounts = append(snap.Accounts, snapshotAccount{ID: a.ID, OwnerID: a.OwnerID, BalanceMinor: ledger.MinorUnits(a.Balance), CreatedAt: a.CreatedAt})
	}
	for _, tx := range s.txLog {
		snap.Transactions = append(snap.Transactions, snapshotTx{
			ID: tx.ID, Reference: tx.Reference, AmountMinor: ledger.MinorUnits(tx.Amount),
			FromAccountID: tx.FromAccountID, ToAccountID: tx.ToAccountID, CreatedAt: tx.CreatedAt,
		})
	}
	for k, v := range s.idem {
		if v.Pending() {
			continue
		}
		snap.Idempotency[k] = v
	}
	s.mu.RUnlock()

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot replaces the store's contents with the snapshot at path.
// A missing file leaves the store empty and is not an error.
func (s *Store) LoadSnapshot(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Currency != s.currency {
		return fmt.Errorf("snapshot currency %q does not match %q", snap.Currency, s.currency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	for _, u := range snap.Users {
		s.users[u.ID] = ledger.User{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
		s.userOrder = append(s.userOrder, u.ID)
		if u.ID > s.nextUserID {
			s.nextUserID = u.ID
		}
	}
	for _, a := range snap.Accounts {
		bal, err := ledger.FromMinorUnits(s.currency, a.BalanceMinor)
		if err != nil {
			s.resetLocked()
			return fmt.Errorf("account %d: %w", a.ID, err)
		}
		s.insertAccountLocked(ledger.Account{ID: a.ID, OwnerID: a.OwnerID, Balance: bal, CreatedAt: a.CreatedAt})
		if a.ID > s.nextAccountID {
			s.nextAccountID = a.ID
		}
	}
	for i, t := range snap.Transactions {
		if t.ID != int64(i)+1 {
			s.resetLocked()
			return fmt.Errorf("transaction log out of order at id %d", t.ID)
		}
		amt, err := ledger.FromMinorUnits(s.currency, t.AmountMinor)
		if err != nil {
			s.resetLocked()
			return fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		s.appendTxLocked(ledger.Transaction{
			ID: t.ID, Reference: t.Reference, Amount: amt,
			FromAccountID: t.FromAccountID, ToAccountID: t.ToAccountID, CreatedAt: t.CreatedAt,
		})
	}
	for k, v := range snap.Idempotency {
		s.idem[k] = v
	}
	return nil
}
