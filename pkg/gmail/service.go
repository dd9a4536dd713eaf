package gmail

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	trackerdomain "jobtrail-backend/internal/tracker/domain"
	"jobtrail-backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = trackerdomain.TokenUpdateFunc

type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			logger.Named("gmail").Warn("failed to persist rotated token", zap.Error(err))
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// gmailService creates a Gmail client with the user's credentials. Every
// call runs through a token source that reports silent access-token
// rotations to onTokenRefresh.
func (s *Service) gmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := config.TokenSource(ctx, token)

	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// Profile returns the Gmail address the credentials belong to.
func (s *Service) Profile(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	profile, err := srv.Users.GetProfile("me").Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve profile: %v", err)
	}

	return profile.EmailAddress, nil
}

// LatestInboxHistoryID returns the history id of the most recent inbox
// message not sent by the account itself. It returns "" when the inbox has
// no such message.
func (s *Service) LatestInboxHistoryID(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	user := "me"
	listResp, err := srv.Users.Messages.List(user).
		LabelIds("INBOX").
		Q("-from:me").
		MaxResults(1).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to list inbox messages: %v", err)
	}

	if len(listResp.Messages) == 0 {
		return "", nil
	}

	// Metadata format is enough here; only the history id is needed.
	msg, err := srv.Users.Messages.Get(user, listResp.Messages[0].Id).Format("metadata").Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve latest message: %v", err)
	}

	return strconv.FormatUint(msg.HistoryId, 10), nil
}

// HistorySince lists the ids of messages added to the inbox after the given
// cursor, in the order Gmail reports them, together with the maximum history
// id observed across the returned entries.
func (s *Service) HistorySince(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh TokenUpdateFunc) ([]string, string, error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, "", err
	}

	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid start history id %q: %v", startHistoryID, err)
	}

	user := "me"
	var messageIDs []string
	maxHistoryID := ""

	pageToken := ""
	for {
		call := srv.Users.History.List(user).
			StartHistoryId(start).
			LabelId("INBOX").
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, "", fmt.Errorf("unable to list history: %v", err)
		}

		for _, h := range resp.History {
			if h.Id != 0 {
				maxHistoryID = trackerdomain.MaxCursor(maxHistoryID, strconv.FormatUint(h.Id, 10))
			}
			for _, added := range h.MessagesAdded {
				if added.Message != nil && added.Message.Id != "" {
					messageIDs = append(messageIDs, added.Message.Id)
				}
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return messageIDs, maxHistoryID, nil
}

// GetMessage fetches one message in full and flattens it to the fields the
// pipeline cares about.
func (s *Service) GetMessage(ctx context.Context, accessToken, refreshToken, id string, onTokenRefresh TokenUpdateFunc) (*trackerdomain.Message, error) {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %v", err)
	}

	return &trackerdomain.Message{
		ID:         msg.Id,
		Subject:    getHeader(msg.Payload, "Subject"),
		From:       getHeader(msg.Payload, "From"),
		Snippet:    msg.Snippet,
		ReceivedAt: time.Unix(msg.InternalDate/1000, (msg.InternalDate%1000)*int64(time.Millisecond)),
	}, nil
}

// Watch sets up push notifications for the user's mailbox
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken string, topicName string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	// Stop any existing watch first to avoid the "only one user push
	// notification client allowed" error.
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Do()
	if err != nil {
		return fmt.Errorf("unable to watch mailbox: %v", err)
	}
	logger.Named("gmail").Info("watch started",
		zap.Int64("expiration", resp.Expiration),
		zap.Uint64("historyId", resp.HistoryId))

	return nil
}

// Stop stops push notifications for the user's mailbox
func (s *Service) Stop(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.gmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %v", err)
	}

	return nil
}

func getHeader(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, header := range payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}
