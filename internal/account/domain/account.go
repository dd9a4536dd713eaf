package domain

import "time"

// Account is one watched Gmail mailbox: its OAuth credentials plus the
// inbox history cursor the sync loop has advanced to. A row is created on
// the first successful authorization and is never deleted by this system.
type Account struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	Email         string    `json:"email" gorm:"uniqueIndex"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
	TokenType     string    `json:"token_type"`
	TokenExpiry   time.Time `json:"token_expiry"`
	LastHistoryID string    `json:"last_history_id"` // empty until the bootstrap pass
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
