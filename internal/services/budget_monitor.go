package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartspend/internal/core"
	"smartspend/internal/notify"
	"smartspend/internal/storage"

	"github.com/google/uuid"
)

// Budgets below this fraction of use never alert: alert iff
// spent/budget >= 80%. Compared in integer cents (spent*5 >= budget*4).
const budgetAlertThresholdPct = 80

// BudgetMonitor checks month-to-date spending on each user's default
// account against their budget and sends at most one alert per calendar
// month.
type BudgetMonitor struct {
	storage    *storage.SQLiteRepository
	dispatcher notify.Dispatcher
}

func NewBudgetMonitor(storage *storage.SQLiteRepository, dispatcher notify.Dispatcher) *BudgetMonitor {
	return &BudgetMonitor{
		storage:    storage,
		dispatcher: dispatcher,
	}
}

// BudgetStatus is the user-facing view of a budget against the current
// month's spending on one account.
type BudgetStatus struct {
	Budget          *core.Budget
	CurrentExpenses core.Money
}

// CurrentStatus returns the user's budget with this month's expense total
// on the given account. Budget is nil when none has been set.
func (m *BudgetMonitor) CurrentStatus(ctx context.Context, userID, accountID string, now time.Time) (*BudgetStatus, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}

	budget, err := m.storage.GetBudget(ctx, userID)
	if err != nil && err != core.ErrNotFound {
		return nil, err
	}

	spent, err := m.storage.SumExpenses(ctx, userID, accountID, core.MonthStart(now), now)
	if err != nil {
		return nil, err
	}

	return &BudgetStatus{
		Budget:          budget,
		CurrentExpenses: core.Money{Cents: spent},
	}, nil
}

// SetBudget upserts the user's single monthly budget.
func (m *BudgetMonitor) SetBudget(ctx context.Context, userID string, amount core.Money) (*core.Budget, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	return m.storage.UpsertBudget(ctx, core.Budget{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount,
	})
}

// CheckAll runs one alerting sweep over every budget. A single budget's
// failure is logged and skipped. Returns the number of alerts sent.
func (m *BudgetMonitor) CheckAll(ctx context.Context, now time.Time) (int, error) {
	recipients, err := m.storage.ListBudgetRecipients(ctx)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Checking budgets", "total", len(recipients))

	alerted := 0
	for _, rec := range recipients {
		// Users without a default account are skipped, not errored.
		if rec.Account == nil {
			continue
		}

		sent, err := m.checkOne(ctx, rec, now)
		if err != nil {
			slog.ErrorContext(ctx, "Budget check failed",
				"budget_id", rec.Budget.ID,
				"user_id", rec.Budget.UserID,
				"error", err)
			continue
		}
		if sent {
			alerted++
		}
	}

	slog.InfoContext(ctx, "Budget check complete",
		"alerts_sent", alerted,
		"total_checked", len(recipients))

	return alerted, nil
}

func (m *BudgetMonitor) checkOne(ctx context.Context, rec storage.BudgetRecipient, now time.Time) (bool, error) {
	spentCents, err := m.storage.SumExpenses(ctx, rec.Budget.UserID, rec.Account.ID, core.MonthStart(now), now)
	if err != nil {
		return false, err
	}

	// Integer threshold compare: spent/budget >= 80% <=> spent*5 >= budget*4
	if spentCents*5 < rec.Budget.Amount.Cents*4 {
		return false, nil
	}
	if rec.Budget.LastAlertSent != nil && core.SameMonth(*rec.Budget.LastAlertSent, now) {
		// Already alerted this calendar month; this compare is the sole
		// de-duplication mechanism.
		return false, nil
	}

	spent := core.Money{Cents: spentCents}
	subject := fmt.Sprintf("Budget Alert for %s", rec.Account.Name)
	body := fmt.Sprintf(
		"Hi %s,\n\nYou have used %.1f%% of your monthly budget.\n\nBudget: %s\nSpent so far: %s\nAccount: %s\n",
		rec.UserName,
		spent.Percent(rec.Budget.Amount),
		rec.Budget.Amount,
		spent,
		rec.Account.Name)

	if err := m.dispatcher.Send(ctx, rec.UserEmail, subject, body); err != nil {
		return false, fmt.Errorf("send alert: %w", err)
	}

	if err := m.storage.SetBudgetAlertSent(ctx, rec.Budget.ID, now); err != nil {
		return false, err
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"budget_id", rec.Budget.ID,
		"user_id", rec.Budget.UserID,
		"used_pct", fmt.Sprintf("%.1f", spent.Percent(rec.Budget.Amount)))

	return true, nil
}
