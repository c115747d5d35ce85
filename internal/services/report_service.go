package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"smartspend/internal/core"
	"smartspend/internal/notify"
	"smartspend/internal/storage"
)

// InsightGenerator produces short commentary strings for a month of
// activity. Implementations may call out to an AI model; failures are
// absorbed by the fallback below.
type InsightGenerator interface {
	Generate(ctx context.Context, stats core.MonthlyStats, monthName string) ([]string, error)
}

var fallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

// ReportService emails each user a summary of the previous calendar
// month. No throttle is needed: the trigger cadence (monthly, on the 1st)
// is the throttle.
type ReportService struct {
	storage    *storage.SQLiteRepository
	insights   InsightGenerator
	dispatcher notify.Dispatcher
}

func NewReportService(storage *storage.SQLiteRepository, insights InsightGenerator, dispatcher notify.Dispatcher) *ReportService {
	return &ReportService{
		storage:    storage,
		insights:   insights,
		dispatcher: dispatcher,
	}
}

// GenerateAll sends one report per user for the month before now. A
// single user's failure is logged and skipped. Returns the number of
// reports sent.
func (s *ReportService) GenerateAll(ctx context.Context, now time.Time) (int, error) {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	start, end := core.PreviousMonthRange(now)
	monthName := start.Month().String()

	slog.InfoContext(ctx, "Generating monthly reports",
		"total_users", len(users),
		"month", monthName)

	sent := 0
	for _, user := range users {
		if err := s.generateOne(ctx, user, start, end, monthName); err != nil {
			slog.ErrorContext(ctx, "Report generation failed",
				"user_id", user.ID,
				"error", err)
			continue
		}
		sent++
	}

	slog.InfoContext(ctx, "Monthly report generation complete",
		"sent", sent,
		"total_users", len(users))

	return sent, nil
}

func (s *ReportService) generateOne(ctx context.Context, user core.User, start, end time.Time, monthName string) error {
	stats, err := s.monthlyStats(ctx, user.ID, start, end)
	if err != nil {
		return err
	}

	insights := s.generateInsights(ctx, stats, monthName)

	subject := fmt.Sprintf("Your Monthly Financial Report - %s", monthName)
	body := renderReport(user.Name, monthName, stats, insights)

	if err := s.dispatcher.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

func (s *ReportService) monthlyStats(ctx context.Context, userID string, start, end time.Time) (core.MonthlyStats, error) {
	txs, err := s.storage.ListUserTransactionsInRange(ctx, userID, start, end)
	if err != nil {
		return core.MonthlyStats{}, err
	}

	stats := core.MonthlyStats{
		ByCategory:       make(map[string]core.Money),
		TransactionCount: len(txs),
	}
	for _, t := range txs {
		if t.Type == core.Expense {
			stats.TotalExpenses.Cents += t.Amount.Cents
			c := stats.ByCategory[t.Category]
			c.Cents += t.Amount.Cents
			stats.ByCategory[t.Category] = c
		} else {
			stats.TotalIncome.Cents += t.Amount.Cents
		}
	}
	return stats, nil
}

// generateInsights degrades to fixed fallback strings whenever the
// generator is missing, errors, or returns nothing usable. Report
// generation never fails on insight problems.
func (s *ReportService) generateInsights(ctx context.Context, stats core.MonthlyStats, monthName string) []string {
	if s.insights == nil {
		return fallbackInsights
	}
	insights, err := s.insights.Generate(ctx, stats, monthName)
	if err != nil || len(insights) == 0 {
		if err != nil {
			slog.WarnContext(ctx, "Insight generation failed, using fallback", "error", err)
		}
		return fallbackInsights
	}
	return insights
}

func renderReport(userName, monthName string, stats core.MonthlyStats, insights []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nHere is your financial report for %s:\n\n", userName, monthName)
	fmt.Fprintf(&b, "Total Income: %s\n", stats.TotalIncome)
	fmt.Fprintf(&b, "Total Expenses: %s\n", stats.TotalExpenses)
	fmt.Fprintf(&b, "Net: %s\n", stats.Net())
	fmt.Fprintf(&b, "Transactions: %d\n", stats.TransactionCount)

	if len(stats.ByCategory) > 0 {
		b.WriteString("\nExpenses by category:\n")
		categories := make([]string, 0, len(stats.ByCategory))
		for c := range stats.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			name := c
			if name == "" {
				name = "uncategorized"
			}
			fmt.Fprintf(&b, "  %s: %s\n", name, stats.ByCategory[c])
		}
	}

	b.WriteString("\nInsights:\n")
	for _, insight := range insights {
		fmt.Fprintf(&b, "  - %s\n", insight)
	}
	return b.String()
}
