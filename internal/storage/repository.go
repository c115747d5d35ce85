// Package storage implements the ledger store on SQLite.
//
// All timestamps are persisted as UTC RFC3339 strings so that string
// comparison in SQL matches chronological order.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartspend/internal/core"

	_ "modernc.org/sqlite"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx. Write helpers take it so
// they can run inside or outside an atomic unit.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for read paths that do not need an
// atomic unit.
func (r *SQLiteRepository) DB() DBTX {
	return r.db
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunAtomic executes fn inside a database transaction. The transaction is
// committed only if fn returns nil; any error rolls the whole unit back.
func (r *SQLiteRepository) RunAtomic(ctx context.Context, fn func(q DBTX) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.Name)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email, name FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- accounts ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, q DBTX, a core.Account) error {
	isDefault := 0
	if a.IsDefault {
		isDefault = 1
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, balance_cents, is_default) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Balance.Cents, isDefault)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func scanAccount(row interface{ Scan(...any) error }) (core.Account, error) {
	var (
		a         core.Account
		isDefault int
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Balance.Cents, &isDefault); err != nil {
		return core.Account{}, err
	}
	a.IsDefault = isDefault != 0
	return a, nil
}

const accountCols = `id, user_id, name, balance_cents, is_default`

func (r *SQLiteRepository) GetAccount(ctx context.Context, ownerID, id string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id = ? AND user_id = ?`, id, ownerID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE user_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) GetDefaultAccount(ctx context.Context, userID string) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE user_id = ? AND is_default = 1`, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default account: %w", err)
	}
	return &a, nil
}

// AdjustAccountBalance applies a signed delta as an atomic increment.
// Balances are never written read-modify-write.
func (r *SQLiteRepository) AdjustAccountBalance(ctx context.Context, q DBTX, accountID string, deltaCents int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ClearDefaultAccount(ctx context.Context, q DBTX, userID string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE accounts SET is_default = 0 WHERE user_id = ? AND is_default = 1`, userID)
	if err != nil {
		return fmt.Errorf("clear default account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkAccountDefault(ctx context.Context, q DBTX, ownerID, accountID string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET is_default = 1 WHERE id = ? AND user_id = ?`, accountID, ownerID)
	if err != nil {
		return fmt.Errorf("mark account default: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark account default rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- transactions ---

const transactionCols = `id, user_id, account_id, type, amount_cents, date, description,
	category, status, is_recurring, recurring_interval, next_recurring_date, last_processed`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t           core.Transaction
		date        string
		isRecurring int
		interval    sql.NullString
		nextDate    sql.NullString
		lastProc    sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Type, &t.Amount.Cents, &date,
		&t.Description, &t.Category, &t.Status, &isRecurring, &interval, &nextDate, &lastProc)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date: %w", err)
	}
	t.IsRecurring = isRecurring != 0
	if interval.Valid {
		t.RecurringInterval = core.RecurringInterval(interval.String)
	}
	if t.NextRecurringDate, err = parseNullTime(nextDate); err != nil {
		return core.Transaction{}, fmt.Errorf("parse next recurring date: %w", err)
	}
	if t.LastProcessed, err = parseNullTime(lastProc); err != nil {
		return core.Transaction{}, fmt.Errorf("parse last processed: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, q DBTX, t core.Transaction) error {
	isRecurring := 0
	var interval any
	if t.IsRecurring {
		isRecurring = 1
		interval = string(t.RecurringInterval)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions
			(id, user_id, account_id, type, amount_cents, date, description, category,
			 status, is_recurring, recurring_interval, next_recurring_date, last_processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, string(t.Type), t.Amount.Cents, fmtTime(t.Date),
		t.Description, t.Category, string(t.Status), isRecurring, interval,
		fmtNullTime(t.NextRecurringDate), fmtNullTime(t.LastProcessed))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTransactionRow(ctx context.Context, q DBTX, t core.Transaction) error {
	isRecurring := 0
	var interval any
	if t.IsRecurring {
		isRecurring = 1
		interval = string(t.RecurringInterval)
	}
	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET
			account_id = ?, type = ?, amount_cents = ?, date = ?, description = ?,
			category = ?, status = ?, is_recurring = ?, recurring_interval = ?,
			next_recurring_date = ?, last_processed = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ? AND user_id = ?`,
		t.AccountID, string(t.Type), t.Amount.Cents, fmtTime(t.Date), t.Description,
		t.Category, string(t.Status), isRecurring, interval,
		fmtNullTime(t.NextRecurringDate), fmtNullTime(t.LastProcessed),
		t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = ? AND user_id = ?`, id, ownerID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// GetTransactionByID fetches without an owner filter. Internal sweeps only.
func (r *SQLiteRepository) GetTransactionByID(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) ListTransactionsByIDs(ctx context.Context, ownerID string, ids []string) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, ownerID)
	return r.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE id IN (`+placeholders+`) AND user_id = ?`, args...)
}

func (r *SQLiteRepository) ListAccountTransactions(ctx context.Context, ownerID, accountID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE account_id = ? AND user_id = ? ORDER BY date DESC, created_at DESC`,
		accountID, ownerID)
}

// ListUserTransactionsInRange returns a user's transactions with
// from <= date < to.
func (r *SQLiteRepository) ListUserTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date`,
		userID, fmtTime(from), fmtTime(to))
}

// ListDueRecurring returns every recurring transaction eligible for a
// sweep pass: completed, and either never processed or past its next
// scheduled date.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE is_recurring = 1 AND status = 'COMPLETED'
		   AND (last_processed IS NULL OR next_recurring_date <= ?)`,
		fmtTime(now))
}

func (r *SQLiteRepository) DeleteTransactionRows(ctx context.Context, q DBTX, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, ownerID)
	res, err := q.ExecContext(ctx,
		`DELETE FROM transactions WHERE id IN (`+placeholders+`) AND user_id = ?`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete transactions rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MarkRecurringProcessed(ctx context.Context, q DBTX, id string, lastProcessed, nextDate time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE transactions SET last_processed = ?, next_recurring_date = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		fmtTime(lastProcessed), fmtTime(nextDate), id)
	if err != nil {
		return fmt.Errorf("mark recurring processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark recurring processed rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumExpenses aggregates expense cents on one account within
// [from, to] inclusive.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND account_id = ? AND type = 'EXPENSE'
		   AND date >= ? AND date <= ?`,
		userID, accountID, fmtTime(from), fmtTime(to)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}

func (r *SQLiteRepository) CountAccountTransactions(ctx context.Context, ownerID, accountID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ? AND user_id = ?`,
		accountID, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// --- budgets ---

// BudgetRecipient joins a budget with its owner's contact details and
// default account, as one sweep row. Account is nil when the user has no
// default account.
type BudgetRecipient struct {
	Budget    core.Budget
	UserEmail string
	UserName  string
	Account   *core.Account
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (*core.Budget, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, amount_cents)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		b.ID, b.UserID, b.Amount.Cents)
	if err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	return r.GetBudget(ctx, b.UserID)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string) (*core.Budget, error) {
	var (
		b         core.Budget
		alertSent sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents, last_alert_sent FROM budgets WHERE user_id = ?`,
		userID).Scan(&b.ID, &b.UserID, &b.Amount.Cents, &alertSent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if b.LastAlertSent, err = parseNullTime(alertSent); err != nil {
		return nil, fmt.Errorf("parse last alert sent: %w", err)
	}
	return &b, nil
}

func (r *SQLiteRepository) ListBudgetRecipients(ctx context.Context) ([]BudgetRecipient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.amount_cents, b.last_alert_sent,
			u.email, u.name,
			a.id, a.name, a.balance_cents, a.is_default
		 FROM budgets b
		 JOIN users u ON u.id = b.user_id
		 LEFT JOIN accounts a ON a.user_id = b.user_id AND a.is_default = 1
		 ORDER BY b.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list budget recipients: %w", err)
	}
	defer rows.Close()

	var recipients []BudgetRecipient
	for rows.Next() {
		var (
			rec       BudgetRecipient
			alertSent sql.NullString
			accID     sql.NullString
			accName   sql.NullString
			accBal    sql.NullInt64
			accDef    sql.NullInt64
		)
		err := rows.Scan(&rec.Budget.ID, &rec.Budget.UserID, &rec.Budget.Amount.Cents,
			&alertSent, &rec.UserEmail, &rec.UserName, &accID, &accName, &accBal, &accDef)
		if err != nil {
			return nil, fmt.Errorf("scan budget recipient: %w", err)
		}
		if rec.Budget.LastAlertSent, err = parseNullTime(alertSent); err != nil {
			return nil, fmt.Errorf("parse last alert sent: %w", err)
		}
		if accID.Valid {
			rec.Account = &core.Account{
				ID:        accID.String,
				UserID:    rec.Budget.UserID,
				Name:      accName.String,
				Balance:   core.Money{Cents: accBal.Int64},
				IsDefault: accDef.Int64 != 0,
			}
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *SQLiteRepository) SetBudgetAlertSent(ctx context.Context, budgetID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE id = ?`,
		fmtTime(at), budgetID)
	if err != nil {
		return fmt.Errorf("set budget alert sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set budget alert sent rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
