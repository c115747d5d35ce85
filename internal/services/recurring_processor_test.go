package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"smartspend/internal/core"
)

func seedRecurring(t *testing.T, svc *LedgerService, userID, accountID string, next time.Time) *core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:                uuid.NewString(),
		UserID:            userID,
		AccountID:         accountID,
		Type:              core.Expense,
		Amount:            core.Money{Cents: 999},
		Date:              next.AddDate(0, -1, 0),
		Description:       "Netflix",
		Category:          "entertainment",
		Status:            core.StatusCompleted,
		IsRecurring:       true,
		RecurringInterval: core.Monthly,
		NextRecurringDate: &next,
	}
	if err := svc.storage.InsertTransaction(context.Background(), svc.storage.DB(), tx); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return &tx
}

func TestProcessDue_MaterializesAndAdvances(t *testing.T) {
	svc, _ := newLedger(t)
	events := &fakePublisher{}
	proc := NewRecurringProcessor(svc.storage, events)
	ctx := context.Background()

	user := seedUser(t, svc.storage)
	account := mustCreateAccount(t, svc, user.ID, "Checking")
	next := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	src := seedRecurring(t, svc, user.ID, account.ID, next)

	now := time.Date(2025, time.February, 1, 8, 0, 0, 0, time.UTC)
	processed, err := proc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	if got := accountBalance(t, svc.storage, user.ID, account.ID); got != -999 {
		t.Errorf("balance = %d, want -999", got)
	}

	after, err := svc.storage.GetTransactionByID(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetTransactionByID: %v", err)
	}
	if after.LastProcessed == nil || !after.LastProcessed.Equal(now) {
		t.Errorf("LastProcessed = %v, want %v", after.LastProcessed, now)
	}
	// Jan 31 plus one month normalizes through Feb 31 to Mar 3 in a
	// non-leap year. The schedule advances from the scheduled date, not
	// from the sweep time.
	want := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	if after.NextRecurringDate == nil || !after.NextRecurringDate.Equal(want) {
		t.Errorf("NextRecurringDate = %v, want %v", after.NextRecurringDate, want)
	}

	instances, err := svc.storage.ListAccountTransactions(ctx, user.ID, account.ID)
	if err != nil {
		t.Fatalf("ListAccountTransactions: %v", err)
	}
	found := false
	for _, tx := range instances {
		if tx.ID == src.ID {
			continue
		}
		found = true
		if !strings.HasSuffix(tx.Description, " (Recurring)") {
			t.Errorf("instance description = %q, want (Recurring) suffix", tx.Description)
		}
		if tx.IsRecurring {
			t.Error("materialized instance should not itself be recurring")
		}
		if !tx.Date.Equal(now) {
			t.Errorf("instance date = %v, want sweep time %v", tx.Date, now)
		}
	}
	if !found {
		t.Fatal("no materialized instance found")
	}

	if len(events.published) != 1 {
		t.Errorf("published %d invalidation events, want 1", len(events.published))
	}
}

func TestProcessDue_SecondSweepIsNoOp(t *testing.T) {
	svc, _ := newLedger(t)
	proc := NewRecurringProcessor(svc.storage, nil)
	ctx := context.Background()

	user := seedUser(t, svc.storage)
	account := mustCreateAccount(t, svc, user.ID, "Checking")
	next := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	seedRecurring(t, svc, user.ID, account.ID, next)

	now := time.Date(2025, time.August, 2, 9, 0, 0, 0, time.UTC)
	if processed, err := proc.ProcessDue(ctx, now); err != nil || processed != 1 {
		t.Fatalf("first sweep = (%d, %v), want (1, nil)", processed, err)
	}
	if processed, err := proc.ProcessDue(ctx, now); err != nil || processed != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", processed, err)
	}

	if got := accountBalance(t, svc.storage, user.ID, account.ID); got != -999 {
		t.Errorf("balance after repeated sweep = %d, want -999 applied once", got)
	}
}

func TestProcessDue_SkipsNotYetDue(t *testing.T) {
	svc, _ := newLedger(t)
	proc := NewRecurringProcessor(svc.storage, nil)
	ctx := context.Background()

	user := seedUser(t, svc.storage)
	account := mustCreateAccount(t, svc, user.ID, "Checking")
	future := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	seedRecurring(t, svc, user.ID, account.ID, future)

	now := time.Date(2025, time.August, 2, 9, 0, 0, 0, time.UTC)
	processed, err := proc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0 for future schedule", processed)
	}
	if got := accountBalance(t, svc.storage, user.ID, account.ID); got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2025, time.August, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	base := core.Transaction{
		Type:              core.Expense,
		Status:            core.StatusCompleted,
		IsRecurring:       true,
		RecurringInterval: core.Daily,
		NextRecurringDate: &past,
	}

	tests := []struct {
		name   string
		mutate func(*core.Transaction)
		want   bool
	}{
		{"due yesterday", func(*core.Transaction) {}, true},
		{"due exactly now", func(tx *core.Transaction) { tx.NextRecurringDate = &now }, true},
		{"due tomorrow", func(tx *core.Transaction) { tx.NextRecurringDate = &future }, false},
		{"no schedule", func(tx *core.Transaction) { tx.NextRecurringDate = nil }, false},
		{"not recurring", func(tx *core.Transaction) { tx.IsRecurring = false }, false},
		{"pending status", func(tx *core.Transaction) { tx.Status = core.StatusPending }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tt.mutate(&tx)
			if got := isDue(&tx, now); got != tt.want {
				t.Errorf("isDue = %v, want %v", got, tt.want)
			}
		})
	}
}
