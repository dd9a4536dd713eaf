package repository

import (
	"golang.org/x/oauth2"

	accountdomain "jobtrail-backend/internal/account/domain"
)

// AccountRepository is the checkpoint store: it owns Account rows, keyed by
// mailbox identity.
type AccountRepository interface {
	// FindByEmail returns (nil, nil) when no account exists for the address.
	FindByEmail(email string) (*accountdomain.Account, error)

	// Upsert inserts or updates an account keyed on its email. An update
	// keeps the previously stored refresh token when the incoming account
	// carries none.
	Upsert(acc *accountdomain.Account) error

	// AdvanceCursor stores the last-seen inbox history cursor.
	AdvanceCursor(email, cursor string) error

	// RefreshCredentials applies a rotated token to the stored account. An
	// empty refresh token in the payload never clobbers a stored one.
	RefreshCredentials(email string, token *oauth2.Token) error
}
