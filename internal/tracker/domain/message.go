package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultCompany is recorded when the extractor cannot name the employer.
	DefaultCompany = "Unknown Company"

	StatusApplied = "Applied"
	ReferralNo    = "No"
)

// Message is a single fetched Gmail message. It lives only for the duration
// of a sync pass and is never persisted.
type Message struct {
	ID         string
	Subject    string
	From       string
	Snippet    string
	ReceivedAt time.Time
}

// Record is the durable output of the pipeline, one row per confirmation.
type Record struct {
	Company    string
	Subject    string
	ReceivedAt time.Time
	Referral   string
	Body       string
	Status     string
	MessageID  string
}

// TokenUpdateFunc is invoked whenever the mail provider silently rotates the
// access token, so the new credentials can be persisted.
type TokenUpdateFunc func(*oauth2.Token) error

// MailProvider is the slice of the Gmail API this job depends on.
type MailProvider interface {
	// LatestInboxHistoryID returns the history id of the most recent inbox
	// message not sent by the account itself, or "" when the inbox is empty.
	LatestInboxHistoryID(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error)

	// HistorySince lists message ids added to the inbox after the given
	// cursor, in listing order, plus the maximum history id observed across
	// the returned entries ("" when there were none).
	HistorySince(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh TokenUpdateFunc) ([]string, string, error)

	// GetMessage fetches one message in full.
	GetMessage(ctx context.Context, accessToken, refreshToken, id string, onTokenRefresh TokenUpdateFunc) (*Message, error)
}

// Extractor names the employer a confirmation email refers to.
// An empty company with a nil error means the service could not tell.
type Extractor interface {
	ExtractCompany(ctx context.Context, snippet, subject, from string) (string, error)
}

// Sink stores records, deduplicated by Gmail message id.
type Sink interface {
	AddRecord(ctx context.Context, rec *Record) error
}
