package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	accountdomain "jobtrail-backend/internal/account/domain"
	trackerdomain "jobtrail-backend/internal/tracker/domain"
	"jobtrail-backend/pkg/logger"
)

type fakeAccountRepo struct {
	mu           sync.Mutex
	accounts     map[string]*accountdomain.Account
	cursorWrites []string
}

func newFakeAccountRepo(accounts ...*accountdomain.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[string]*accountdomain.Account)}
	for _, a := range accounts {
		r.accounts[a.Email] = a
	}
	return r
}

func (r *fakeAccountRepo) FindByEmail(email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[email]
	if !ok {
		return nil, nil
	}
	copied := *acc
	return &copied, nil
}

func (r *fakeAccountRepo) Upsert(acc *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acc.Email] = acc
	return nil
}

func (r *fakeAccountRepo) AdvanceCursor(email, cursor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[email]; ok {
		acc.LastHistoryID = cursor
	}
	r.cursorWrites = append(r.cursorWrites, cursor)
	return nil
}

func (r *fakeAccountRepo) RefreshCredentials(email string, token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[email]; ok {
		acc.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			acc.RefreshToken = token.RefreshToken
		}
	}
	return nil
}

func (r *fakeAccountRepo) writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cursorWrites...)
}

func (r *fakeAccountRepo) cursor(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[email].LastHistoryID
}

type fakeProvider struct {
	mu sync.Mutex

	latestHistoryID string
	latestErr       error

	historyIDs   []string
	maxHistoryID string
	historyErr   error
	historyGate  chan struct{} // when set, HistorySince blocks until closed

	messages map[string]*trackerdomain.Message
	getErrs  map[string]error

	latestCalls  int
	historyCalls int
	getCalls     int
}

func (p *fakeProvider) LatestInboxHistoryID(ctx context.Context, accessToken, refreshToken string, onTokenRefresh trackerdomain.TokenUpdateFunc) (string, error) {
	p.mu.Lock()
	p.latestCalls++
	p.mu.Unlock()
	return p.latestHistoryID, p.latestErr
}

func (p *fakeProvider) HistorySince(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh trackerdomain.TokenUpdateFunc) ([]string, string, error) {
	p.mu.Lock()
	p.historyCalls++
	gate := p.historyGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return p.historyIDs, p.maxHistoryID, p.historyErr
}

func (p *fakeProvider) GetMessage(ctx context.Context, accessToken, refreshToken, id string, onTokenRefresh trackerdomain.TokenUpdateFunc) (*trackerdomain.Message, error) {
	p.mu.Lock()
	p.getCalls++
	p.mu.Unlock()
	if err, ok := p.getErrs[id]; ok {
		return nil, err
	}
	msg, ok := p.messages[id]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (p *fakeProvider) calls() (latest, history, get int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latestCalls, p.historyCalls, p.getCalls
}

type fakeExtractor struct {
	mu      sync.Mutex
	company string
	err     error
	calls   int
}

func (e *fakeExtractor) ExtractCompany(ctx context.Context, snippet, subject, from string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.company, e.err
}

type fakeSink struct {
	mu      sync.Mutex
	records []*trackerdomain.Record
	errFor  map[string]error
}

func (s *fakeSink) AddRecord(ctx context.Context, rec *trackerdomain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errFor[rec.MessageID]; ok {
		return err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeSink) all() []*trackerdomain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*trackerdomain.Record(nil), s.records...)
}

func newTestSync(repo *fakeAccountRepo, p trackerdomain.MailProvider, e trackerdomain.Extractor, s trackerdomain.Sink) *syncUsecase {
	return &syncUsecase{
		accountRepo:  repo,
		mailProvider: p,
		extractor:    e,
		sink:         s,
		guard:        NewRunGuard(),
		queue:        make(chan string, 16),
		log:          logger.Named("sync"),
	}
}

const testEmail = "me@example.com"

func testAccount(cursor string) *accountdomain.Account {
	return &accountdomain.Account{
		ID:            "acc-1",
		Email:         testEmail,
		AccessToken:   "access",
		RefreshToken:  "refresh",
		LastHistoryID: cursor,
	}
}

func confirmationMessage(id string) *trackerdomain.Message {
	return &trackerdomain.Message{
		ID:         id,
		Subject:    "Thank you for applying to AppLovin",
		From:       "jobs@applovin.com",
		Snippet:    "We received your application...",
		ReceivedAt: time.Unix(1700000000, 0),
	}
}

func TestBootstrapWritesInitialCursorOnly(t *testing.T) {
	repo := newFakeAccountRepo(testAccount(""))
	provider := &fakeProvider{latestHistoryID: "12345"}
	extractor := &fakeExtractor{company: "AppLovin"}
	sink := &fakeSink{}

	uc := newTestSync(repo, provider, extractor, sink)
	uc.runPass(context.Background(), testEmail)

	assert.Equal(t, "12345", repo.cursor(testEmail))
	assert.Equal(t, []string{"12345"}, repo.writes())

	latest, history, get := provider.calls()
	assert.Equal(t, 1, latest)
	assert.Zero(t, history, "bootstrap must not list history")
	assert.Zero(t, get, "bootstrap must not fetch messages")
	assert.Zero(t, extractor.calls, "bootstrap must not call the extractor")
	assert.Empty(t, sink.all(), "bootstrap must not write records")
}

func TestBootstrapEmptyInboxWritesNothing(t *testing.T) {
	repo := newFakeAccountRepo(testAccount(""))
	provider := &fakeProvider{latestHistoryID: ""}

	uc := newTestSync(repo, provider, &fakeExtractor{}, &fakeSink{})
	uc.runPass(context.Background(), testEmail)

	assert.Empty(t, repo.writes())
	assert.Equal(t, "", repo.cursor(testEmail))
}

func TestSyncRecordsConfirmation(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{
		historyIDs:   []string{"m1"},
		maxHistoryID: "150",
		messages:     map[string]*trackerdomain.Message{"m1": confirmationMessage("m1")},
	}
	extractor := &fakeExtractor{company: "AppLovin"}
	sink := &fakeSink{}

	uc := newTestSync(repo, provider, extractor, sink)
	uc.runPass(context.Background(), testEmail)

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, "AppLovin", records[0].Company)
	assert.Equal(t, "Thank you for applying to AppLovin", records[0].Subject)
	assert.Equal(t, "Applied", records[0].Status)
	assert.Equal(t, "No", records[0].Referral)
	assert.Equal(t, "m1", records[0].MessageID)

	assert.Equal(t, "150", repo.cursor(testEmail))
}

func TestSyncSkipsRejectedMessages(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{
		historyIDs:   []string{"m1"},
		maxHistoryID: "150",
		messages: map[string]*trackerdomain.Message{
			"m1": {
				ID:      "m1",
				Subject: "Job alerts for you: 5 new Software Engineer roles",
				From:    "alerts@jobs.example.com",
				Snippet: "Fresh openings this week",
			},
		},
	}
	extractor := &fakeExtractor{company: "ShouldNotBeCalled"}
	sink := &fakeSink{}

	uc := newTestSync(repo, provider, extractor, sink)
	uc.runPass(context.Background(), testEmail)

	assert.Zero(t, extractor.calls)
	assert.Empty(t, sink.all())

	// The cursor still advances past the rejected message.
	assert.Equal(t, "150", repo.cursor(testEmail))
	assert.Equal(t, []string{"150"}, repo.writes())
}

func TestSyncExtractorFailureFallsBackToDefaultCompany(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{
		historyIDs:   []string{"m1"},
		maxHistoryID: "150",
		messages:     map[string]*trackerdomain.Message{"m1": confirmationMessage("m1")},
	}
	extractor := &fakeExtractor{err: errors.New("model unavailable")}
	sink := &fakeSink{}

	uc := newTestSync(repo, provider, extractor, sink)
	uc.runPass(context.Background(), testEmail)

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, "Unknown Company", records[0].Company)
}

func TestSyncExtractorNullFallsBackToDefaultCompany(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{
		historyIDs:   []string{"m1"},
		maxHistoryID: "150",
		messages:     map[string]*trackerdomain.Message{"m1": confirmationMessage("m1")},
	}
	sink := &fakeSink{}

	uc := newTestSync(repo, provider, &fakeExtractor{company: ""}, sink)
	uc.runPass(context.Background(), testEmail)

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, "Unknown Company", records[0].Company)
}

func TestSyncSinkFailureDoesNotBlockRemainingMessages(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{
		historyIDs:   []string{"m1", "m2"},
		maxHistoryID: "150",
		messages: map[string]*trackerdomain.Message{
			"m1": confirmationMessage("m1"),
			"m2": confirmationMessage("m2"),
		},
	}
	sink := &fakeSink{errFor: map[string]error{"m1": errors.New("sink down")}}

	uc := newTestSync(repo, provider, &fakeExtractor{company: "AppLovin"}, sink)
	uc.runPass(context.Background(), testEmail)

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, "m2", records[0].MessageID)
	assert.Equal(t, "150", repo.cursor(testEmail))
}

func TestSyncFetchFailureSkipsMessage(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{
		historyIDs:   []string{"m1", "m2"},
		maxHistoryID: "150",
		messages:     map[string]*trackerdomain.Message{"m2": confirmationMessage("m2")},
		getErrs:      map[string]error{"m1": errors.New("timeout")},
	}
	sink := &fakeSink{}

	uc := newTestSync(repo, provider, &fakeExtractor{company: "AppLovin"}, sink)
	uc.runPass(context.Background(), testEmail)

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, "m2", records[0].MessageID)
	assert.Equal(t, "150", repo.cursor(testEmail))
}

func TestSyncNoHistoryStillWritesCursorOnce(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{historyIDs: nil, maxHistoryID: ""}

	uc := newTestSync(repo, provider, &fakeExtractor{}, &fakeSink{})
	uc.runPass(context.Background(), testEmail)

	assert.Equal(t, []string{"100"}, repo.writes())
	assert.Equal(t, "100", repo.cursor(testEmail))
}

func TestSyncCursorNeverMovesBackward(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("200"))
	// Provider reports a stale maximum below the stored cursor.
	provider := &fakeProvider{historyIDs: nil, maxHistoryID: "120"}

	uc := newTestSync(repo, provider, &fakeExtractor{}, &fakeSink{})
	uc.runPass(context.Background(), testEmail)

	assert.Equal(t, "200", repo.cursor(testEmail))
}

func TestSyncHistoryErrorLeavesCursorUntouched(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &fakeProvider{historyErr: errors.New("history unavailable")}

	uc := newTestSync(repo, provider, &fakeExtractor{}, &fakeSink{})
	uc.runPass(context.Background(), testEmail)

	assert.Empty(t, repo.writes())
	assert.Equal(t, "100", repo.cursor(testEmail))
}

func TestRunPassUnknownAccountIsNoOp(t *testing.T) {
	repo := newFakeAccountRepo()
	provider := &fakeProvider{}

	uc := newTestSync(repo, provider, &fakeExtractor{}, &fakeSink{})
	uc.runPass(context.Background(), "nobody@example.com")

	latest, history, _ := provider.calls()
	assert.Zero(t, latest)
	assert.Zero(t, history)
}

func TestScheduleDropsOverlappingTrigger(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	gate := make(chan struct{})
	provider := &fakeProvider{historyGate: gate, maxHistoryID: "150"}

	uc := NewSyncUsecase(repo, provider, &fakeExtractor{}, &fakeSink{}, NewRunGuard()).(*syncUsecase)

	require.True(t, uc.Schedule(testEmail))

	// Wait for the worker to enter the pass, then trigger again.
	require.Eventually(t, func() bool {
		_, history, _ := provider.calls()
		return history == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, uc.Schedule(testEmail), "overlapping trigger must be dropped")

	close(gate)

	require.Eventually(t, func() bool {
		return len(repo.writes()) == 1
	}, time.Second, 5*time.Millisecond)

	// The dropped trigger performed no additional provider calls and the
	// guard was released exactly once: a fresh trigger is accepted again.
	_, history, _ := provider.calls()
	assert.Equal(t, 1, history)
	provider.historyGate = nil
	assert.True(t, uc.Schedule(testEmail))
}

func TestPanickingPassReleasesGuard(t *testing.T) {
	repo := newFakeAccountRepo(testAccount("100"))
	provider := &panickyProvider{}

	uc := NewSyncUsecase(repo, provider, &fakeExtractor{}, &fakeSink{}, NewRunGuard()).(*syncUsecase)

	require.True(t, uc.Schedule(testEmail))

	require.Eventually(t, func() bool {
		return uc.guard.TryAcquire(testEmail)
	}, time.Second, 5*time.Millisecond)
	uc.guard.Release(testEmail)
}

type panickyProvider struct{ fakeProvider }

func (p *panickyProvider) HistorySince(ctx context.Context, accessToken, refreshToken, startHistoryID string, onTokenRefresh trackerdomain.TokenUpdateFunc) ([]string, string, error) {
	panic("boom")
}
