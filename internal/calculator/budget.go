package calculator

import (
	"sort"

	"github.com/brainbox-app/brainbox/internal/models"
)

// CategoryTotal is the money moved in one category.
type CategoryTotal struct {
	Category string
	Income   float64
	Expense  float64
	Net      float64 // Positive = earned more than spent
}

// BudgetSummary aggregates a set of transactions.
type BudgetSummary struct {
	Income     float64
	Expense    float64
	Balance    float64 // Income - Expense
	Count      int
	Categories []CategoryTotal
}

// SummarizeBudget computes the totals shown by the budget tracker.
//
// Algorithm:
// - Each transaction adds its amount to income or expense by type
// - Balance = income - expense
// - Categories are aggregated the same way and sorted by absolute net,
//   largest first, then by name
//
// If month is non-zero ("2025-03"), only transactions dated in that month count.
func SummarizeBudget(txs []*models.Transaction, month string) BudgetSummary {
	var summary BudgetSummary
	byCategory := make(map[string]*CategoryTotal)

	for _, tx := range txs {
		if month != "" && !inMonth(tx.Date, month) {
			continue
		}
		summary.Count++

		cat, exists := byCategory[tx.Category]
		if !exists {
			cat = &CategoryTotal{Category: tx.Category}
			byCategory[tx.Category] = cat
		}

		switch tx.Type {
		case models.Income:
			summary.Income += tx.Amount
			cat.Income += tx.Amount
		case models.Expense:
			summary.Expense += tx.Amount
			cat.Expense += tx.Amount
		}
	}
	summary.Balance = summary.Income - summary.Expense

	for _, cat := range byCategory {
		cat.Net = cat.Income - cat.Expense
		summary.Categories = append(summary.Categories, *cat)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := abs(summary.Categories[i].Net), abs(summary.Categories[j].Net)
		if a != b {
			return a > b
		}
		return summary.Categories[i].Category < summary.Categories[j].Category
	})

	return summary
}

func inMonth(d models.Date, month string) bool {
	return len(d) >= len(month) && string(d[:len(month)]) == month
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
