// Package services implements the business rules on top of the ledger
// store: balance accounting, recurrence processing, budget monitoring and
// monthly reporting.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"smartspend/internal/core"
	"smartspend/internal/storage"

	"github.com/google/uuid"
)

// EventPublisher pushes dashboard invalidation events after committed
// balance changes. Implementations are best-effort; a publish failure
// never fails the operation.
type EventPublisher interface {
	PublishInvalidation(ctx context.Context, userID string, accountIDs []string) error
}

// LedgerService is the balance accounting engine. Every transaction
// mutation and its balance effect commit in one atomic unit, so the
// account balance can never drift from the transaction log.
type LedgerService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

func NewLedgerService(storage *storage.SQLiteRepository, events EventPublisher) *LedgerService {
	return &LedgerService{
		storage: storage,
		events:  events,
	}
}

// AccountOverview is the dashboard view of one account.
type AccountOverview struct {
	Account          core.Account
	Transactions     []core.Transaction
	TransactionCount int64
}

// CreateTransaction validates and persists a transaction, applying its
// signed amount to the owning account balance atomically.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, t core.Transaction) (*core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.storage.GetAccount(ctx, userID, t.AccountID); err != nil {
		return nil, fmt.Errorf("target account: %w", err)
	}

	t.ID = uuid.NewString()
	t.UserID = userID
	if t.IsRecurring {
		next := core.NextRecurringDate(t.Date, t.RecurringInterval)
		t.NextRecurringDate = &next
	} else {
		t.NextRecurringDate = nil
	}

	err := s.storage.RunAtomic(ctx, func(q storage.DBTX) error {
		if err := s.storage.InsertTransaction(ctx, q, t); err != nil {
			return err
		}
		return s.storage.AdjustAccountBalance(ctx, q, t.AccountID, t.Signed())
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"recurring", t.IsRecurring)

	s.invalidate(ctx, userID, t.AccountID)
	return &t, nil
}

// GetTransaction returns a single transaction owned by userID, for
// prefilling edit forms.
func (s *LedgerService) GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.storage.GetTransaction(ctx, userID, id)
}

// UpdateTransaction applies the net balance delta between the stored
// transaction and the updated one. Moving the transaction to another
// account reverses the old contribution on the old account and applies
// the full new contribution on the new one.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, updated core.Transaction) (*core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}

	original, err := s.storage.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updated.ID = original.ID
	updated.UserID = userID
	if updated.Status == "" {
		updated.Status = original.Status
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if updated.AccountID != original.AccountID {
		if _, err := s.storage.GetAccount(ctx, userID, updated.AccountID); err != nil {
			return nil, fmt.Errorf("target account: %w", err)
		}
	}

	if updated.IsRecurring {
		next := core.NextRecurringDate(updated.Date, updated.RecurringInterval)
		updated.NextRecurringDate = &next
	} else {
		updated.NextRecurringDate = nil
	}
	updated.LastProcessed = original.LastProcessed

	err = s.storage.RunAtomic(ctx, func(q storage.DBTX) error {
		if err := s.storage.UpdateTransactionRow(ctx, q, updated); err != nil {
			return err
		}
		if updated.AccountID != original.AccountID {
			if err := s.storage.AdjustAccountBalance(ctx, q, original.AccountID, -original.Signed()); err != nil {
				return err
			}
			return s.storage.AdjustAccountBalance(ctx, q, updated.AccountID, updated.Signed())
		}
		netDelta := updated.Signed() - original.Signed()
		if netDelta == 0 {
			return nil
		}
		return s.storage.AdjustAccountBalance(ctx, q, updated.AccountID, netDelta)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		"transaction_id", updated.ID,
		"account_id", updated.AccountID,
		"net_delta_cents", updated.Signed()-original.Signed())

	s.invalidate(ctx, userID, original.AccountID, updated.AccountID)
	return &updated, nil
}

// DeleteTransactions removes the given transactions and reverses their
// balance contributions. Deltas are aggregated per account first so each
// affected account gets exactly one balance update, all inside one atomic
// unit.
func (s *LedgerService) DeleteTransactions(ctx context.Context, userID string, ids []string) error {
	if userID == "" {
		return core.ErrUnauthorized
	}
	if len(ids) == 0 {
		return nil
	}

	txs, err := s.storage.ListTransactionsByIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return core.ErrNotFound
	}

	deltas := make(map[string]int64)
	deleteIDs := make([]string, 0, len(txs))
	for _, t := range txs {
		deltas[t.AccountID] -= t.Signed()
		deleteIDs = append(deleteIDs, t.ID)
	}

	err = s.storage.RunAtomic(ctx, func(q storage.DBTX) error {
		if _, err := s.storage.DeleteTransactionRows(ctx, q, userID, deleteIDs); err != nil {
			return err
		}
		for accountID, delta := range deltas {
			if err := s.storage.AdjustAccountBalance(ctx, q, accountID, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	accountIDs := make([]string, 0, len(deltas))
	for accountID := range deltas {
		accountIDs = append(accountIDs, accountID)
	}

	slog.InfoContext(ctx, "Transactions deleted",
		"count", len(deleteIDs),
		"accounts", len(accountIDs))

	s.invalidate(ctx, userID, accountIDs...)
	return nil
}

// CreateAccount persists a new account. When it is the user's first
// account, or marked default, any previous default is cleared in the same
// atomic unit so at most one default survives.
func (s *LedgerService) CreateAccount(ctx context.Context, userID string, a core.Account) (*core.Account, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.storage.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		a.IsDefault = true
	}

	a.ID = uuid.NewString()
	a.UserID = userID

	err = s.storage.RunAtomic(ctx, func(q storage.DBTX) error {
		if a.IsDefault {
			if err := s.storage.ClearDefaultAccount(ctx, q, userID); err != nil {
				return err
			}
		}
		return s.storage.CreateAccount(ctx, q, a)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", a.ID,
		"name", a.Name,
		"default", a.IsDefault)

	return &a, nil
}

// SetDefaultAccount makes accountID the user's only default account.
func (s *LedgerService) SetDefaultAccount(ctx context.Context, userID, accountID string) (*core.Account, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}

	if _, err := s.storage.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}

	err := s.storage.RunAtomic(ctx, func(q storage.DBTX) error {
		if err := s.storage.ClearDefaultAccount(ctx, q, userID); err != nil {
			return err
		}
		return s.storage.MarkAccountDefault(ctx, q, userID, accountID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID, accountID)
	return s.storage.GetAccount(ctx, userID, accountID)
}

// GetAccountOverview returns the account with its transactions, newest
// first.
func (s *LedgerService) GetAccountOverview(ctx context.Context, userID, accountID string) (*AccountOverview, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}

	account, err := s.storage.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	txs, err := s.storage.ListAccountTransactions(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	count, err := s.storage.CountAccountTransactions(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	return &AccountOverview{
		Account:          *account,
		Transactions:     txs,
		TransactionCount: count,
	}, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return s.storage.ListAccounts(ctx, userID)
}

func (s *LedgerService) invalidate(ctx context.Context, userID string, accountIDs ...string) {
	if s.events == nil {
		return
	}
	seen := make(map[string]bool, len(accountIDs))
	unique := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return
	}
	if err := s.events.PublishInvalidation(ctx, userID, unique); err != nil {
		// Cache invalidation is advisory; the operation already committed.
		slog.WarnContext(ctx, "Failed to publish invalidation event",
			"error", err,
			"user_id", userID)
	}
}
