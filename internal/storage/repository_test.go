package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"smartspend/internal/core"

	"github.com/google/uuid"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUserAccount(t *testing.T, repo *SQLiteRepository) (core.User, core.Account) {
	t.Helper()
	ctx := context.Background()
	user := core.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Name: "Test User"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	account := core.Account{ID: uuid.NewString(), UserID: user.ID, Name: "Checking", IsDefault: true}
	if err := repo.CreateAccount(ctx, repo.DB(), account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return user, account
}

func seedTransaction(t *testing.T, repo *SQLiteRepository, tx core.Transaction) core.Transaction {
	t.Helper()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = core.StatusCompleted
	}
	if err := repo.InsertTransaction(context.Background(), repo.DB(), tx); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return tx
}

func TestRunAtomic_RollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, account := seedUserAccount(t, repo)

	boom := errors.New("boom")
	err := repo.RunAtomic(ctx, func(q DBTX) error {
		if err := repo.AdjustAccountBalance(ctx, q, account.ID, 5000); err != nil {
			t.Fatalf("AdjustAccountBalance: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunAtomic error = %v, want boom", err)
	}

	got, err := repo.GetAccount(ctx, account.UserID, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Balance.Cents != 0 {
		t.Errorf("balance after rollback = %d, want 0", got.Balance.Cents)
	}
}

func TestAdjustAccountBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, account := seedUserAccount(t, repo)

	if err := repo.AdjustAccountBalance(ctx, repo.DB(), account.ID, 1000); err != nil {
		t.Fatalf("AdjustAccountBalance: %v", err)
	}
	if err := repo.AdjustAccountBalance(ctx, repo.DB(), account.ID, -250); err != nil {
		t.Fatalf("AdjustAccountBalance: %v", err)
	}

	got, err := repo.GetAccount(ctx, account.UserID, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Balance.Cents != 750 {
		t.Errorf("balance = %d, want 750", got.Balance.Cents)
	}

	if err := repo.AdjustAccountBalance(ctx, repo.DB(), "missing", 10); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("adjust on missing account = %v, want ErrNotFound", err)
	}
}

func TestGetAccount_OwnerFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, account := seedUserAccount(t, repo)

	if _, err := repo.GetAccount(ctx, "someone-else", account.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner GetAccount = %v, want ErrNotFound", err)
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo)

	next := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	tx := seedTransaction(t, repo, core.Transaction{
		UserID:            user.ID,
		AccountID:         account.ID,
		Type:              core.Expense,
		Amount:            core.Money{Cents: 4599},
		Date:              time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
		Description:       "Gym membership",
		Category:          "personal",
		IsRecurring:       true,
		RecurringInterval: core.Monthly,
		NextRecurringDate: &next,
	})

	got, err := repo.GetTransaction(ctx, user.ID, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount.Cents != 4599 || got.Type != core.Expense || got.Category != "personal" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Date.Equal(tx.Date) {
		t.Errorf("date = %v, want %v", got.Date, tx.Date)
	}
	if got.NextRecurringDate == nil || !got.NextRecurringDate.Equal(next) {
		t.Errorf("next recurring date = %v, want %v", got.NextRecurringDate, next)
	}
	if got.LastProcessed != nil {
		t.Errorf("last processed = %v, want nil", got.LastProcessed)
	}
}

func TestListDueRecurring(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo)
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 10)
	processed := now.AddDate(0, -1, 0)

	base := core.Transaction{
		UserID:    user.ID,
		AccountID: account.ID,
		Type:      core.Expense,
		Amount:    core.Money{Cents: 100},
		Date:      now.AddDate(0, -2, 0),
	}

	neverProcessed := base
	neverProcessed.IsRecurring = true
	neverProcessed.RecurringInterval = core.Daily
	neverProcessed.NextRecurringDate = &future
	neverProcessed = seedTransaction(t, repo, neverProcessed)

	due := base
	due.IsRecurring = true
	due.RecurringInterval = core.Weekly
	due.NextRecurringDate = &past
	due.LastProcessed = &processed
	due = seedTransaction(t, repo, due)

	notDue := base
	notDue.IsRecurring = true
	notDue.RecurringInterval = core.Monthly
	notDue.NextRecurringDate = &future
	notDue.LastProcessed = &processed
	seedTransaction(t, repo, notDue)

	pending := base
	pending.IsRecurring = true
	pending.RecurringInterval = core.Daily
	pending.NextRecurringDate = &past
	pending.Status = core.StatusPending
	seedTransaction(t, repo, pending)

	oneTime := base
	seedTransaction(t, repo, oneTime)

	got, err := repo.ListDueRecurring(ctx, now)
	if err != nil {
		t.Fatalf("ListDueRecurring: %v", err)
	}
	ids := map[string]bool{}
	for _, tx := range got {
		ids[tx.ID] = true
	}
	if len(got) != 2 || !ids[neverProcessed.ID] || !ids[due.ID] {
		t.Errorf("due set = %v, want {never-processed, past-due}", ids)
	}
}

func TestSumExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	seedTransaction(t, repo, core.Transaction{
		UserID: user.ID, AccountID: account.ID, Type: core.Expense,
		Amount: core.Money{Cents: 1000}, Date: from,
	})
	seedTransaction(t, repo, core.Transaction{
		UserID: user.ID, AccountID: account.ID, Type: core.Expense,
		Amount: core.Money{Cents: 2500}, Date: to,
	})
	// Income and out-of-range rows excluded
	seedTransaction(t, repo, core.Transaction{
		UserID: user.ID, AccountID: account.ID, Type: core.Income,
		Amount: core.Money{Cents: 9999}, Date: from.AddDate(0, 0, 5),
	})
	seedTransaction(t, repo, core.Transaction{
		UserID: user.ID, AccountID: account.ID, Type: core.Expense,
		Amount: core.Money{Cents: 7777}, Date: to.AddDate(0, 0, 1),
	})

	sum, err := repo.SumExpenses(ctx, user.ID, account.ID, from, to)
	if err != nil {
		t.Fatalf("SumExpenses: %v", err)
	}
	if sum != 3500 {
		t.Errorf("SumExpenses = %d, want 3500", sum)
	}
}

func TestBudgetUpsertAndRecipients(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo)

	b, err := repo.UpsertBudget(ctx, core.Budget{ID: uuid.NewString(), UserID: user.ID, Amount: core.Money{Cents: 100000}})
	if err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}
	if b.Amount.Cents != 100000 || b.LastAlertSent != nil {
		t.Errorf("budget = %+v", b)
	}

	// Second upsert updates in place, keeping one budget per user
	b2, err := repo.UpsertBudget(ctx, core.Budget{ID: uuid.NewString(), UserID: user.ID, Amount: core.Money{Cents: 50000}})
	if err != nil {
		t.Fatalf("UpsertBudget update: %v", err)
	}
	if b2.ID != b.ID || b2.Amount.Cents != 50000 {
		t.Errorf("updated budget = %+v, want same id with 50000 cents", b2)
	}

	at := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	if err := repo.SetBudgetAlertSent(ctx, b.ID, at); err != nil {
		t.Fatalf("SetBudgetAlertSent: %v", err)
	}

	recipients, err := repo.ListBudgetRecipients(ctx)
	if err != nil {
		t.Fatalf("ListBudgetRecipients: %v", err)
	}
	if len(recipients) != 1 {
		t.Fatalf("recipients = %d, want 1", len(recipients))
	}
	rec := recipients[0]
	if rec.UserEmail != user.Email || rec.Account == nil || rec.Account.ID != account.ID {
		t.Errorf("recipient = %+v", rec)
	}
	if rec.Budget.LastAlertSent == nil || !rec.Budget.LastAlertSent.Equal(at) {
		t.Errorf("last alert sent = %v, want %v", rec.Budget.LastAlertSent, at)
	}
}

func TestListBudgetRecipients_NoDefaultAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := core.User{ID: uuid.NewString(), Email: "nodefault@example.com", Name: "No Default"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := repo.UpsertBudget(ctx, core.Budget{ID: uuid.NewString(), UserID: user.ID, Amount: core.Money{Cents: 1000}}); err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}

	recipients, err := repo.ListBudgetRecipients(ctx)
	if err != nil {
		t.Fatalf("ListBudgetRecipients: %v", err)
	}
	if len(recipients) != 1 || recipients[0].Account != nil {
		t.Errorf("recipient without default account = %+v", recipients)
	}
}

func TestDeleteTransactionRows_OwnerScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, account := seedUserAccount(t, repo)

	tx := seedTransaction(t, repo, core.Transaction{
		UserID: user.ID, AccountID: account.ID, Type: core.Expense,
		Amount: core.Money{Cents: 100}, Date: time.Now().UTC(),
	})

	n, err := repo.DeleteTransactionRows(ctx, repo.DB(), "intruder", []string{tx.ID})
	if err != nil {
		t.Fatalf("DeleteTransactionRows: %v", err)
	}
	if n != 0 {
		t.Errorf("cross-owner delete removed %d rows, want 0", n)
	}

	n, err = repo.DeleteTransactionRows(ctx, repo.DB(), user.ID, []string{tx.ID})
	if err != nil {
		t.Fatalf("DeleteTransactionRows: %v", err)
	}
	if n != 1 {
		t.Errorf("owner delete removed %d rows, want 1", n)
	}
}
