package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

type (
	TransactionType   string
	RecurringInterval string
	TransactionStatus string

	Money struct {
		Cents int64
	}

	User struct {
		ID    string
		Email string
		Name  string
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Balance   Money
		IsDefault bool
	}

	Transaction struct {
		ID          string
		UserID      string
		AccountID   string
		Type        TransactionType
		Amount      Money
		Date        time.Time
		Description string
		Category    string
		Status      TransactionStatus

		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate *time.Time
		LastProcessed     *time.Time
	}

	Budget struct {
		ID            string
		UserID        string
		Amount        Money
		LastAlertSent *time.Time
	}

	// MonthlyStats aggregates one user's transactions over one calendar
	// month for reporting.
	MonthlyStats struct {
		TotalIncome      Money
		TotalExpenses    Money
		ByCategory       map[string]Money
		TransactionCount int
	}
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidInterval = errors.New("recurring interval required for recurring transactions")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyName       = errors.New("empty name")
	ErrValidation      = errors.New("validation failed")
	ErrExternalService = errors.New("external service failure")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Signed returns the transaction's contribution to its account balance in
// cents: positive for income, negative for expense.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

// Net returns total income minus total expenses.
func (s MonthlyStats) Net() Money {
	return Money{Cents: s.TotalIncome.Cents - s.TotalExpenses.Cents}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

func (i RecurringInterval) Validate() error {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return nil
	}
	return ErrInvalidInterval
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.AccountID == "" {
		return fmt.Errorf("%w: account id required", ErrValidation)
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	if t.IsRecurring {
		if err := t.RecurringInterval.Validate(); err != nil {
			return err
		}
	} else if t.RecurringInterval != "" {
		return fmt.Errorf("%w: recurring interval set on non-recurring transaction", ErrValidation)
	}
	return nil
}

func (a Account) Validate() error {
	if len(strings.TrimSpace(a.Name)) == 0 {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return fmt.Errorf("%w: name too long (max 100 characters)", ErrValidation)
	}
	return nil
}
