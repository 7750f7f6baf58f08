package models

import "time"

// TransactionType separates money in from money out.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Transaction is a budget tracker entry.
type Transaction struct {
	ID       string          `json:"id"`
	OwnerID  string          `json:"ownerId"`
	Type     TransactionType `json:"kind"`
	Category string          `json:"category"`
	// Amount is always non-negative; Type carries the sign.
	Amount float64 `json:"amount"`
	Date   Date    `json:"date"`
}

func (t *Transaction) Kind() Kind { return KindTransaction }
func (t *Transaction) EntityID() string { return t.ID }
func (t *Transaction) OwnerKey() string { return t.OwnerID }

func (t *Transaction) Assign(id, owner string, _ time.Time) {
	t.ID = id
	t.OwnerID = owner
}

func (t *Transaction) Validate() error {
	if err := oneOf("kind", t.Type, Income, Expense); err != nil {
		return err
	}
	if err := required("category", t.Category); err != nil {
		return err
	}
	if t.Amount < 0 {
		return invalid("amount must be non-negative, got %v", t.Amount)
	}
	return t.Date.check("date", false)
}

// Signed returns the amount with expenses negative.
func (t *Transaction) Signed() float64 {
	if t.Type == Expense {
		return -t.Amount
	}
	return t.Amount
}
