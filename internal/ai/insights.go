package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"smartspend/internal/core"
)

// Generate asks the model for a handful of short observations about one
// month of activity. It satisfies the report service's insight
// generator; callers fall back to canned text when it errors.
func (c *Client) Generate(ctx context.Context, stats core.MonthlyStats, monthName string) ([]string, error) {
	prompt := insightPrompt(stats, monthName)
	raw, err := c.generate(ctx, []*genai.Part{{Text: prompt}})
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	clean := cleanModelJSON(raw, '[', ']')
	var insights []string
	if err := json.Unmarshal([]byte(clean), &insights); err != nil {
		return nil, fmt.Errorf("parse insights response: %w", err)
	}

	out := insights[:0]
	for _, s := range insights {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func insightPrompt(stats core.MonthlyStats, monthName string) string {
	categories := make([]string, 0, len(stats.ByCategory))
	for name := range stats.ByCategory {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this financial data for %s and provide 3 concise, actionable insights.\n", monthName)
	b.WriteString("Focus on spending patterns and practical advice. Keep it friendly and conversational.\n\n")
	fmt.Fprintf(&b, "Total income: %s\n", stats.TotalIncome)
	fmt.Fprintf(&b, "Total expenses: %s\n", stats.TotalExpenses)
	fmt.Fprintf(&b, "Net: %s\n", stats.Net())
	fmt.Fprintf(&b, "Transactions: %d\n", stats.TransactionCount)
	b.WriteString("Expenses by category:\n")
	for _, name := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", name, stats.ByCategory[name])
	}
	b.WriteString("\nRespond with a JSON array of 3 strings. Do NOT use Markdown fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}
