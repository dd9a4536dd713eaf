package usecase

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	accountdomain "jobtrail-backend/internal/account/domain"
	accountrepo "jobtrail-backend/internal/account/repository"
	"jobtrail-backend/internal/tracker/classifier"
	trackerdomain "jobtrail-backend/internal/tracker/domain"
	"jobtrail-backend/pkg/logger"
)

// SyncUsecase schedules and runs sync passes over a mailbox.
type SyncUsecase interface {
	// Schedule enqueues a sync pass for the account and returns
	// immediately. It returns false when a pass for the account is already
	// in flight; such triggers are dropped, not deferred.
	Schedule(email string) bool
}

// syncUsecase implements SyncUsecase interface
type syncUsecase struct {
	accountRepo  accountrepo.AccountRepository
	mailProvider trackerdomain.MailProvider
	extractor    trackerdomain.Extractor
	sink         trackerdomain.Sink
	guard        *RunGuard
	queue        chan string
	log          *zap.Logger
}

// NewSyncUsecase creates a new instance of syncUsecase and starts its
// worker goroutine.
func NewSyncUsecase(accountRepo accountrepo.AccountRepository, mailProvider trackerdomain.MailProvider, extractor trackerdomain.Extractor, sink trackerdomain.Sink, guard *RunGuard) SyncUsecase {
	uc := &syncUsecase{
		accountRepo:  accountRepo,
		mailProvider: mailProvider,
		extractor:    extractor,
		sink:         sink,
		guard:        guard,
		queue:        make(chan string, 16),
		log:          logger.Named("sync"),
	}
	go uc.worker()
	return uc
}

func (u *syncUsecase) Schedule(email string) bool {
	if !u.guard.TryAcquire(email) {
		u.log.Info("sync already in flight, trigger dropped", zap.String("email", email))
		return false
	}
	u.queue <- email
	return true
}

// worker dequeues accounts and runs one pass per entry. The guard bounds
// outstanding queue entries to one per account, so the buffered channel
// cannot grow without bound.
func (u *syncUsecase) worker() {
	for email := range u.queue {
		u.runPass(context.Background(), email)
	}
}

// runPass executes one full sync pass. All failures are terminal for the
// pass only, never for the process, and the guard is released on every exit
// path.
func (u *syncUsecase) runPass(ctx context.Context, email string) {
	defer u.guard.Release(email)

	log := u.log.With(zap.String("email", email))
	defer func() {
		if r := recover(); r != nil {
			log.Error("sync pass panicked", zap.Any("panic", r))
		}
	}()

	acc, err := u.accountRepo.FindByEmail(email)
	if err != nil {
		log.Error("failed to load account", zap.Error(err))
		return
	}
	if acc == nil {
		log.Warn("account not found")
		return
	}

	onTokenRefresh := func(t *oauth2.Token) error {
		return u.accountRepo.RefreshCredentials(email, t)
	}

	if acc.LastHistoryID == "" {
		u.bootstrap(ctx, acc, onTokenRefresh, log)
		return
	}
	u.sync(ctx, acc, onTokenRefresh, log)
}

// bootstrap establishes the starting cursor from the newest inbox message
// without importing any mailbox history.
func (u *syncUsecase) bootstrap(ctx context.Context, acc *accountdomain.Account, onTokenRefresh trackerdomain.TokenUpdateFunc, log *zap.Logger) {
	historyID, err := u.mailProvider.LatestInboxHistoryID(ctx, acc.AccessToken, acc.RefreshToken, onTokenRefresh)
	if err != nil {
		log.Error("bootstrap failed", zap.Error(err))
		return
	}
	if historyID == "" {
		log.Info("inbox is empty, nothing to track yet")
		return
	}

	if err := u.accountRepo.AdvanceCursor(acc.Email, historyID); err != nil {
		log.Error("failed to store initial cursor", zap.Error(err))
		return
	}
	log.Info("history tracking initialized", zap.String("historyId", historyID))
}

func (u *syncUsecase) sync(ctx context.Context, acc *accountdomain.Account, onTokenRefresh trackerdomain.TokenUpdateFunc, log *zap.Logger) {
	ids, maxID, err := u.mailProvider.HistorySince(ctx, acc.AccessToken, acc.RefreshToken, acc.LastHistoryID, onTokenRefresh)
	if err != nil {
		log.Error("failed to list history", zap.Error(err))
		return
	}

	// The new cursor is fixed before any per-message work so that a
	// mid-loop failure still lets the pass advance past this batch.
	newCursor := trackerdomain.MaxCursor(acc.LastHistoryID, maxID)

	processed := 0
	recorded := 0
	for _, id := range ids {
		msg, err := u.mailProvider.GetMessage(ctx, acc.AccessToken, acc.RefreshToken, id, onTokenRefresh)
		if err != nil {
			log.Warn("failed to fetch message", zap.String("messageId", id), zap.Error(err))
			continue
		}
		processed++

		if !classifier.IsConfirmation(msg.Subject, msg.Snippet) {
			continue
		}

		company := trackerdomain.DefaultCompany
		extracted, err := u.extractor.ExtractCompany(ctx, msg.Snippet, msg.Subject, msg.From)
		if err != nil {
			log.Warn("extraction failed, using default company",
				zap.String("messageId", id), zap.Error(err))
		} else if extracted != "" {
			company = extracted
		}

		rec := &trackerdomain.Record{
			Company:    company,
			Subject:    msg.Subject,
			ReceivedAt: msg.ReceivedAt,
			Referral:   trackerdomain.ReferralNo,
			Body:       msg.Snippet,
			Status:     trackerdomain.StatusApplied,
			MessageID:  msg.ID,
		}
		if err := u.sink.AddRecord(ctx, rec); err != nil {
			log.Warn("failed to record application",
				zap.String("messageId", id), zap.Error(err))
			continue
		}
		recorded++
	}

	// The cursor advances exactly once per pass, even when nothing
	// qualified, so already-seen messages are never re-evaluated.
	if err := u.accountRepo.AdvanceCursor(acc.Email, newCursor); err != nil {
		log.Error("failed to advance cursor", zap.Error(err))
		return
	}

	log.Info("sync pass complete",
		zap.Int("processed", processed),
		zap.Int("recorded", recorded),
		zap.String("cursor", newCursor))
}
