package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brainbox-app/brainbox/internal/calculator"
)

var monthFlag string

var budgetCmd = &cobra.Command{
	Use:     "budget",
	GroupID: "study",
	Short:   "Total your income and expenses by category",
	Example: `  brainbox budget
  brainbox budget --month 2025-03`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var month string
		if monthFlag != "" {
			m, err := parseMonth(monthFlag)
			if err != nil {
				return err
			}
			month = m
		}
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		summary, err := eng.BudgetSummary(cmd.Context(), month)
		if err != nil {
			return err
		}
		return renderBudget(cmd.OutOrStdout(), summary)
	},
}

var workloadCmd = &cobra.Command{
	Use:     "workload",
	GroupID: "study",
	Short:   "Spread open task estimates over the days until their deadlines",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		w, err := eng.Workload(cmd.Context())
		if err != nil {
			return err
		}
		return renderWorkload(cmd.OutOrStdout(), w)
	},
}

func init() {
	budgetCmd.Flags().StringVarP(&monthFlag, "month", "m", "", "only this month (YYYY-MM, or a phrase like \"last month\")")
	rootCmd.AddCommand(budgetCmd, workloadCmd)
}

// parseMonth accepts YYYY-MM or any date phrase and returns YYYY-MM.
func parseMonth(s string) (string, error) {
	if len(s) == len("2006-01") {
		if _, err := parseDate(s+"-01", timeNow()); err == nil {
			return s, nil
		}
	}
	d, err := parseDate(s, timeNow())
	if err != nil {
		return "", fmt.Errorf("invalid month %q", s)
	}
	return string(d)[:len("2006-01")], nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func renderBudget(w io.Writer, s calculator.BudgetSummary) error {
	rows := make([]any, len(s.Categories))
	for i, c := range s.Categories {
		rows[i] = map[string]any{
			"category": c.Category,
			"income":   round2(c.Income),
			"expense":  round2(c.Expense),
			"net":      round2(c.Net),
		}
	}

	if !isTable() {
		return render(w, nil, []any{map[string]any{
			"income":     round2(s.Income),
			"expense":    round2(s.Expense),
			"balance":    round2(s.Balance),
			"count":      s.Count,
			"categories": rows,
		}})
	}

	balance := goodStyle
	if s.Balance < 0 {
		balance = badStyle
	}
	fmt.Fprintf(w, "%s %d transactions\n", titleStyle.Render("Budget"), s.Count)
	fmt.Fprintf(w, "Income   %10.2f\nExpense  %10.2f\nBalance  %s\n",
		s.Income, s.Expense, balance.Render(fmt.Sprintf("%10.2f", s.Balance)))
	if len(rows) == 0 {
		return nil
	}
	return render(w, []string{"category", "income", "expense", "net"}, rows)
}

func renderWorkload(w io.Writer, wl calculator.Workload) error {
	loads := func(ls []calculator.TaskLoad) []any {
		out := make([]any, len(ls))
		for i, l := range ls {
			out[i] = map[string]any{
				"id":       l.TaskID,
				"subject":  l.Subject,
				"deadline": string(l.Deadline),
				"daysLeft": l.DaysLeft,
				"hours":    round2(l.Hours),
				"perDay":   round2(l.PerDay),
			}
		}
		return out
	}
	cols := []string{"id", "subject", "deadline", "daysLeft", "hours", "perDay"}

	if !isTable() {
		return render(w, nil, []any{map[string]any{
			"today":   round2(wl.Today),
			"tasks":   loads(wl.Tasks),
			"overdue": loads(wl.Overdue),
		}})
	}

	fmt.Fprintf(w, "%s %.1f hours today\n", titleStyle.Render("Workload"), wl.Today)
	if len(wl.Tasks) > 0 {
		if err := render(w, cols, loads(wl.Tasks)); err != nil {
			return err
		}
	}
	if len(wl.Overdue) > 0 {
		fmt.Fprintln(w, badStyle.Render(fmt.Sprintf("%d overdue", len(wl.Overdue))))
		return render(w, cols, loads(wl.Overdue))
	}
	return nil
}

func isTable() bool {
	f := strings.ToLower(outputFmt)
	return f == "table" || f == ""
}
