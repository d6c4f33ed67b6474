package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account row
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Data returns the full-row change payload
func (u *User) Data() map[string]any {
	return map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"password_hash": u.PasswordHash,
		"is_admin":      u.IsAdmin,
		"created_at":    FormatTimestamp(u.CreatedAt),
		"updated_at":    FormatTimestamp(u.UpdatedAt),
	}
}

// Transaction is a single booked income or expense
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Usage       string          `json:"usage"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        bool            `json:"paid"`
	RecurringID *int64          `json:"recurring_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Data returns the full-row change payload
func (t *Transaction) Data() map[string]any {
	var recurring any
	if t.RecurringID != nil {
		recurring = *t.RecurringID
	}
	return map[string]any{
		"id":           t.ID,
		"user_id":      t.UserID,
		"date":         FormatTimestamp(t.Date),
		"description":  t.Description,
		"usage":        t.Usage,
		"amount":       t.Amount.String(),
		"paid":         t.Paid,
		"recurring_id": recurring,
		"created_at":   FormatTimestamp(t.CreatedAt),
		"updated_at":   FormatTimestamp(t.UpdatedAt),
	}
}

// RecurringEntry is a fixed cost booked every month for Duration months
type RecurringEntry struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Description string          `json:"description"`
	Usage       string          `json:"usage"`
	Amount      decimal.Decimal `json:"amount"`
	Duration    int             `json:"duration"`
	StartDate   time.Time       `json:"start_date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Data returns the full-row change payload
func (r *RecurringEntry) Data() map[string]any {
	return map[string]any{
		"id":          r.ID,
		"user_id":     r.UserID,
		"description": r.Description,
		"usage":       r.Usage,
		"amount":      r.Amount.String(),
		"duration":    r.Duration,
		"start_date":  FormatTimestamp(r.StartDate),
		"created_at":  FormatTimestamp(r.CreatedAt),
		"updated_at":  FormatTimestamp(r.UpdatedAt),
	}
}
