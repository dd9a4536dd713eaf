package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	accountrepo "jobtrail-backend/internal/account/repository"
	"jobtrail-backend/internal/tracker/usecase"
	"jobtrail-backend/pkg/logger"
)

// GmailNotification is the payload Gmail publishes on the watch topic.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service listens for Gmail push notifications and schedules sync passes.
// It is a second trigger source next to the HTTP endpoint; the sync guard
// serializes the two.
type Service struct {
	pubsubClient *pubsub.Client
	accountRepo  accountrepo.AccountRepository
	syncUsecase  usecase.SyncUsecase
	topicName    string
	subName      string
	log          *zap.Logger

	// Track the last historyId per mailbox so redelivered or stale
	// notifications do not schedule redundant passes.
	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(projectID, topicName string, accountRepo accountrepo.AccountRepository, syncUsecase usecase.SyncUsecase, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient:  client,
		accountRepo:   accountRepo,
		syncUsecase:   syncUsecase,
		topicName:     topicName,
		subName:       topicName + "-sub", // Convention: topic-sub
		log:           logger.Named("pubsub"),
		lastHistoryID: make(map[string]uint64),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("starting push trigger",
		zap.String("topic", s.topicName),
		zap.String("subscription", s.subName))

	// Ensure subscription exists
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		s.log.Error("failed to check subscription", zap.Error(err))
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			s.log.Error("failed to check topic", zap.Error(err))
			return
		}
		if !topicExists {
			s.log.Error("topic does not exist, cannot create subscription",
				zap.String("topic", s.topicName))
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			s.log.Error("failed to create subscription", zap.Error(err))
			return
		}
		s.log.Info("created subscription", zap.String("subscription", s.subName))
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(msg)
		msg.Ack()
	})
	if err != nil {
		s.log.Error("receive loop ended", zap.Error(err))
	}
}

func (s *Service) handleMessage(msg *pubsub.Message) {
	var notification GmailNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		s.log.Warn("failed to unmarshal notification", zap.Error(err))
		return
	}

	acc, err := s.accountRepo.FindByEmail(notification.EmailAddress)
	if err != nil {
		s.log.Error("failed to look up account",
			zap.String("email", notification.EmailAddress), zap.Error(err))
		return
	}
	if acc == nil {
		s.log.Warn("notification for unknown mailbox",
			zap.String("email", notification.EmailAddress))
		return
	}

	if !s.advance(notification.EmailAddress, notification.HistoryID) {
		return
	}

	scheduled := s.syncUsecase.Schedule(notification.EmailAddress)
	s.log.Info("push notification handled",
		zap.String("email", notification.EmailAddress),
		zap.Uint64("historyId", notification.HistoryID),
		zap.Bool("scheduled", scheduled))
}

// advance reports whether the notification moves the mailbox beyond the
// last history id seen on this channel.
func (s *Service) advance(email string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastHistoryID[email]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[email] = historyID
	return true
}
