package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	accountdomain "jobtrail-backend/internal/account/domain"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new instance of accountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (r *accountRepository) FindByEmail(email string) (*accountdomain.Account, error) {
	var acc accountdomain.Account
	err := r.db.Where("email = ?", email).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}

func (r *accountRepository) Upsert(acc *accountdomain.Account) error {
	existing, err := r.FindByEmail(acc.Email)
	if err != nil {
		return err
	}

	if existing == nil {
		acc.ID = uuid.New().String()
		acc.CreatedAt = time.Now()
		acc.UpdatedAt = time.Now()
		return r.db.Create(acc).Error
	}

	existing.AccessToken = acc.AccessToken
	existing.TokenType = acc.TokenType
	existing.TokenExpiry = acc.TokenExpiry
	// A re-consent without offline access omits the refresh token; keep the
	// one we already have in that case.
	if acc.RefreshToken != "" {
		existing.RefreshToken = acc.RefreshToken
	}
	existing.UpdatedAt = time.Now()
	return r.db.Save(existing).Error
}

func (r *accountRepository) AdvanceCursor(email, cursor string) error {
	return r.db.Model(&accountdomain.Account{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"last_history_id": cursor,
			"updated_at":      time.Now(),
		}).Error
}

func (r *accountRepository) RefreshCredentials(email string, token *oauth2.Token) error {
	existing, err := r.FindByEmail(email)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("account not found: %s", email)
	}

	existing.AccessToken = token.AccessToken
	existing.TokenExpiry = token.Expiry
	if token.TokenType != "" {
		existing.TokenType = token.TokenType
	}
	if token.RefreshToken != "" {
		existing.RefreshToken = token.RefreshToken
	}
	existing.UpdatedAt = time.Now()
	return r.db.Save(existing).Error
}
