package services

import (
	"context"
	"log/slog"
	"time"

	"smartspend/internal/core"
	"smartspend/internal/storage"

	"github.com/google/uuid"
)

// RecurringProcessor materializes due recurring transactions into concrete
// one-time rows and advances their schedules.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

func NewRecurringProcessor(storage *storage.SQLiteRepository, events EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		storage: storage,
		events:  events,
	}
}

// ProcessDue runs one sweep over all eligible recurring transactions,
// across every user. A single transaction's failure is logged and skipped;
// the sweep continues. Returns the number of transactions materialized.
//
// now is injected so sweeps are deterministic under test.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	due, err := p.storage.ListDueRecurring(ctx, now)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total_due", len(due),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	touched := make(map[string][]string)

	for _, candidate := range due {
		// Re-fetch and re-check at processing time. A prior sweep (or an
		// overlapping one) may already have advanced this transaction past
		// due; skipping here is what makes retried sweeps idempotent.
		tx, err := p.storage.GetTransactionByID(ctx, candidate.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to re-fetch recurring transaction",
				"transaction_id", candidate.ID,
				"error", err)
			continue
		}
		if !isDue(tx, now) {
			continue
		}

		if err := p.materialize(ctx, tx, now); err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring transaction",
				"transaction_id", tx.ID,
				"error", err)
			continue
		}

		processed++
		touched[tx.UserID] = append(touched[tx.UserID], tx.AccountID)

		slog.InfoContext(ctx, "Materialized recurring transaction",
			"transaction_id", tx.ID,
			"account_id", tx.AccountID,
			"amount_cents", tx.Amount.Cents,
			"interval", tx.RecurringInterval)
	}

	if p.events != nil {
		for userID, accountIDs := range touched {
			if err := p.events.PublishInvalidation(ctx, userID, accountIDs); err != nil {
				slog.WarnContext(ctx, "Failed to publish invalidation event",
					"error", err,
					"user_id", userID)
			}
		}
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed,
		"total_checked", len(due))

	return processed, nil
}

// isDue is the processing-time eligibility check: the next scheduled date
// must exist and not lie in the future. Note this is stricter than the
// sweep query, which also picks up never-processed rows regardless of
// their next date; those stay untouched until the date arrives.
func isDue(t *core.Transaction, now time.Time) bool {
	if t == nil || !t.IsRecurring || t.Status != core.StatusCompleted {
		return false
	}
	if t.NextRecurringDate == nil {
		return false
	}
	return !t.NextRecurringDate.After(now)
}

// materialize creates the one-time copy, applies its balance delta and
// advances the source schedule, all in one atomic unit.
func (p *RecurringProcessor) materialize(ctx context.Context, src *core.Transaction, now time.Time) error {
	instance := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      src.UserID,
		AccountID:   src.AccountID,
		Type:        src.Type,
		Amount:      src.Amount,
		Date:        now,
		Description: src.Description + " (Recurring)",
		Category:    src.Category,
		Status:      core.StatusCompleted,
	}

	next := core.NextRecurringDate(*src.NextRecurringDate, src.RecurringInterval)

	return p.storage.RunAtomic(ctx, func(q storage.DBTX) error {
		if err := p.storage.InsertTransaction(ctx, q, instance); err != nil {
			return err
		}
		if err := p.storage.AdjustAccountBalance(ctx, q, instance.AccountID, instance.Signed()); err != nil {
			return err
		}
		return p.storage.MarkRecurringProcessed(ctx, q, src.ID, now, next)
	})
}
