package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	accountdomain "jobtrail-backend/internal/account/domain"
	"jobtrail-backend/internal/account/repository"
	"jobtrail-backend/pkg/config"
	"jobtrail-backend/pkg/gmail"
	"jobtrail-backend/pkg/logger"
)

// AuthUsecase drives the Google authorization flow that provisions an
// Account row for a mailbox.
type AuthUsecase interface {
	// AuthURL returns the Google consent screen URL.
	AuthURL() string

	// HandleCallback exchanges the authorization code, resolves the Gmail
	// address it belongs to and upserts the account credentials. It returns
	// the mailbox address on success; on failure nothing is persisted.
	HandleCallback(ctx context.Context, code string) (string, error)
}

type authUsecase struct {
	accountRepo  repository.AccountRepository
	gmailService *gmail.Service
	oauthConfig  *oauth2.Config
	pubsubTopic  string
	log          *zap.Logger
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(accountRepo repository.AccountRepository, gmailService *gmail.Service, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		accountRepo:  accountRepo,
		gmailService: gmailService,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{gmailapi.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		pubsubTopic: cfg.GooglePubSubTopic,
		log:         logger.Named("auth"),
	}
}

func (u *authUsecase) AuthURL() string {
	return u.oauthConfig.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

func (u *authUsecase) HandleCallback(ctx context.Context, code string) (string, error) {
	token, err := u.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %v", err)
	}

	email, err := u.gmailService.Profile(ctx, token.AccessToken, token.RefreshToken, nil)
	if err != nil {
		return "", fmt.Errorf("profile lookup failed: %v", err)
	}

	acc := &accountdomain.Account{
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		TokenExpiry:  token.Expiry,
	}
	if err := u.accountRepo.Upsert(acc); err != nil {
		return "", fmt.Errorf("failed to store account: %v", err)
	}

	u.log.Info("gmail access granted", zap.String("email", email))

	// With push configured, new mail triggers a sync pass without waiting
	// for the next manual poll.
	if u.pubsubTopic != "" {
		onTokenRefresh := func(t *oauth2.Token) error {
			return u.accountRepo.RefreshCredentials(email, t)
		}
		if err := u.gmailService.Watch(ctx, token.AccessToken, token.RefreshToken, u.pubsubTopic, onTokenRefresh); err != nil {
			u.log.Warn("failed to start mailbox watch", zap.String("email", email), zap.Error(err))
		}
	}

	return email, nil
}
