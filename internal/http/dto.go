package http

import (
	"fmt"
	"time"

	"smartspend/internal/ai"
	"smartspend/internal/core"
	"smartspend/internal/services"
)

// Wire representations. Amounts travel as decimal strings ("12.34"),
// dates as YYYY-MM-DD.

type accountJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
	IsDefault bool   `json:"isDefault"`
}

type transactionJSON struct {
	ID                string `json:"id"`
	AccountID         string `json:"accountId"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Date              string `json:"date"`
	Description       string `json:"description"`
	Category          string `json:"category,omitempty"`
	Status            string `json:"status"`
	IsRecurring       bool   `json:"isRecurring"`
	RecurringInterval string `json:"recurringInterval,omitempty"`
	NextRecurringDate string `json:"nextRecurringDate,omitempty"`
}

type overviewJSON struct {
	Account          accountJSON       `json:"account"`
	Transactions     []transactionJSON `json:"transactions"`
	TransactionCount int64             `json:"transactionCount"`
}

type budgetJSON struct {
	Amount          string  `json:"amount"`
	CurrentExpenses string  `json:"currentExpenses"`
	UsedPct         float64 `json:"usedPct"`
}

type receiptJSON struct {
	Amount       string `json:"amount"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	MerchantName string `json:"merchantName"`
	Category     string `json:"category"`
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:        a.ID,
		Name:      a.Name,
		Balance:   a.Balance.String(),
		IsDefault: a.IsDefault,
	}
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:                t.ID,
		AccountID:         t.AccountID,
		Type:              string(t.Type),
		Amount:            t.Amount.String(),
		Date:              t.Date.Format("2006-01-02"),
		Description:       t.Description,
		Category:          t.Category,
		Status:            string(t.Status),
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.RecurringInterval),
	}
	if t.NextRecurringDate != nil {
		out.NextRecurringDate = t.NextRecurringDate.Format("2006-01-02")
	}
	return out
}

func toOverviewJSON(o *services.AccountOverview) overviewJSON {
	txs := make([]transactionJSON, len(o.Transactions))
	for i, t := range o.Transactions {
		txs[i] = toTransactionJSON(t)
	}
	return overviewJSON{
		Account:          toAccountJSON(o.Account),
		Transactions:     txs,
		TransactionCount: o.TransactionCount,
	}
}

func toReceiptJSON(r *ai.ReceiptData) receiptJSON {
	return receiptJSON{
		Amount:       r.Amount.String(),
		Date:         r.Date.Format("2006-01-02"),
		Description:  r.Description,
		MerchantName: r.MerchantName,
		Category:     r.Category,
	}
}

func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}
	return core.Money{Cents: cents}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return t.UTC(), nil
}
