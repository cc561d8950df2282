package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
	"waveline.io/courier/internal/pkg/worker"
	"waveline.io/courier/internal/strategy"
)

func init() {
	_ = logger.Init("error", "console")
}

type fakeStore struct {
	mu        sync.Mutex
	processed []string
	skipped   map[string]domain.SkipReason
	attempts  map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		skipped:  make(map[string]domain.SkipReason),
		attempts: make(map[string]int),
	}
}

func (s *fakeStore) FetchUnprocessed(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	return nil, nil
}

func (s *fakeStore) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, id)
	return nil
}

func (s *fakeStore) MarkSkipped(ctx context.Context, id string, reason domain.SkipReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped[id] = reason
	return nil
}

func (s *fakeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[id]++
	return s.attempts[id], nil
}

type fakeRenderer struct {
	result *strategy.Result
	err    error
}

func (r *fakeRenderer) Resolve(rec *domain.NotificationRecord, entities *domain.EntitySet, settings map[int64]*domain.RecipientSettings) (*strategy.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type fakeChannel struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (c *fakeChannel) record(userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, userID)
	return c.err
}

func (c *fakeChannel) Dispatch(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, msg domain.RenderedMessage) error {
	return c.record(s.UserID)
}

func (c *fakeChannel) DispatchLive(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, toName string, view domain.EmailViewModel) error {
	return c.record(s.UserID)
}

func (c *fakeChannel) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func testPools(t *testing.T) *worker.Pools {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("NewPools: %v", err)
	}
	t.Cleanup(pools.Shutdown)
	return pools
}

type harness struct {
	store   *fakeStore
	push    *fakeChannel
	browser *fakeChannel
	email   *fakeChannel
	orch    *Orchestrator
}

func newHarness(t *testing.T, renderer Renderer) *harness {
	t.Helper()
	h := &harness{
		store:   newFakeStore(),
		push:    &fakeChannel{},
		browser: &fakeChannel{},
		email:   &fakeChannel{},
	}
	h.orch = New(
		h.store, nil, nil, renderer,
		h.push, h.browser, h.email,
		nil, nil, testPools(t),
		Config{BatchSize: 100, MaxAttempts: 3},
	)
	return h
}

func followRecord() *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:               "rec-1",
		Type:             domain.TypeFollow,
		GroupID:          "follow:2",
		CreatedAt:        time.Now().UTC(),
		RecipientUserIDs: []int64{2},
		Payload:          domain.Payload{UserIDs: []int64{1}},
	}
}

func followResult() *strategy.Result {
	return &strategy.Result{
		Messages: map[int64]domain.RenderedMessage{
			2: {Title: "New Follower", Body: "Bob followed you", DeepLink: map[string]string{"id": "follow:2"}},
		},
		Emails: map[int64]domain.EmailViewModel{
			2: {Type: domain.TypeFollow, Summary: "Bob followed you"},
		},
	}
}

func followEntities() *domain.EntitySet {
	set := domain.NewEntitySet()
	set.Users[1] = domain.UserSummary{ID: 1, Name: "Bob"}
	set.Users[2] = domain.UserSummary{ID: 2, Name: "Alice"}
	return set
}

func followSettings() map[int64]*domain.RecipientSettings {
	return map[int64]*domain.RecipientSettings{
		2: {
			UserID:           2,
			EnabledPushTypes: map[domain.NotificationType]bool{domain.TypeFollow: true},
			EmailFrequency:   domain.EmailLive,
			EmailAddress:     "alice@example.com",
		},
	}
}

func TestProcessRecord_SuccessMarksProcessed(t *testing.T) {
	h := newHarness(t, &fakeRenderer{result: followResult()})

	h.orch.processRecord(context.Background(), followRecord(), followEntities(), followSettings())

	if got := len(h.store.processed); got != 1 {
		t.Fatalf("processed records = %d, want 1", got)
	}
	if h.push.callCount() != 1 || h.browser.callCount() != 1 || h.email.callCount() != 1 {
		t.Errorf("channel calls push=%d browser=%d email=%d, want 1 each",
			h.push.callCount(), h.browser.callCount(), h.email.callCount())
	}
	if len(h.store.skipped) != 0 || len(h.store.attempts) != 0 {
		t.Errorf("unexpected skips %v or retries %v", h.store.skipped, h.store.attempts)
	}
}

func TestProcessRecord_NoRecipientsSkipped(t *testing.T) {
	h := newHarness(t, &fakeRenderer{result: followResult()})
	rec := followRecord()
	rec.RecipientUserIDs = nil

	h.orch.processRecord(context.Background(), rec, followEntities(), followSettings())

	if got := h.store.skipped[rec.ID]; got != domain.SkipNoRecipients {
		t.Fatalf("skip reason = %q, want %q", got, domain.SkipNoRecipients)
	}
	if h.push.callCount() != 0 {
		t.Error("no channel should run for an unroutable record")
	}
}

func TestProcessRecord_RetryBudgetExhausted(t *testing.T) {
	h := newHarness(t, &fakeRenderer{result: followResult()})
	rec := followRecord()
	rec.Attempts = 3

	h.orch.processRecord(context.Background(), rec, followEntities(), followSettings())

	if got := h.store.skipped[rec.ID]; got != domain.SkipRetryBudget {
		t.Fatalf("skip reason = %q, want %q", got, domain.SkipRetryBudget)
	}
}

func TestProcessRecord_RenderErrorsMapToSkips(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.SkipReason
	}{
		{"unknown type", apperrors.BadRequest(apperrors.CodeUnknownType, "no handler"), domain.SkipUnknownType},
		{"missing entity", apperrors.NotFound(apperrors.CodeMissingEntity, "track 99 not found"), domain.SkipMissingEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, &fakeRenderer{err: tc.err})
			rec := followRecord()

			h.orch.processRecord(context.Background(), rec, followEntities(), followSettings())

			if got := h.store.skipped[rec.ID]; got != tc.want {
				t.Fatalf("skip reason = %q, want %q", got, tc.want)
			}
			if len(h.store.processed) != 0 {
				t.Error("skipped record must not be marked processed")
			}
		})
	}
}

func TestProcessRecord_TransientFailureLeavesUnprocessed(t *testing.T) {
	h := newHarness(t, &fakeRenderer{result: followResult()})
	h.push.err = apperrors.ErrTransient
	rec := followRecord()

	h.orch.processRecord(context.Background(), rec, followEntities(), followSettings())

	if len(h.store.processed) != 0 {
		t.Error("record with a transient channel failure must stay unprocessed")
	}
	if got := h.store.attempts[rec.ID]; got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
	if len(h.store.skipped) != 0 {
		t.Errorf("transient failure must not skip, got %v", h.store.skipped)
	}
}

func TestProcessRecord_RepostThroughRegistry(t *testing.T) {
	registry, err := strategy.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	h := newHarness(t, registry)

	rec := &domain.NotificationRecord{
		ID:               "rec-repost",
		Type:             domain.TypeRepost,
		GroupID:          "repost:track:10",
		CreatedAt:        time.Now().UTC(),
		RecipientUserIDs: []int64{2},
		Payload: domain.Payload{
			UserIDs:    []int64{1},
			EntityType: domain.EntityTrack,
			EntityID:   10,
		},
	}
	entities := followEntities()
	entities.Entities[domain.EntityRef{Type: domain.EntityTrack, ID: 10}] = domain.EntitySummary{
		ID: 10, Type: domain.EntityTrack, Name: "Sunset Drive", OwnerID: 2,
	}
	settings := map[int64]*domain.RecipientSettings{
		2: {
			UserID:              2,
			EnabledPushTypes:    map[domain.NotificationType]bool{domain.TypeRepost: true},
			EnabledBrowserTypes: map[domain.NotificationType]bool{domain.TypeRepost: true},
			EmailFrequency:      domain.EmailLive,
			EmailAddress:        "alice@example.com",
		},
	}

	h.orch.processRecord(context.Background(), rec, entities, settings)

	if len(h.store.processed) != 1 {
		t.Fatalf("processed records = %d, want 1", len(h.store.processed))
	}
	if h.push.callCount() != 1 || h.browser.callCount() != 1 || h.email.callCount() != 1 {
		t.Errorf("channel calls push=%d browser=%d email=%d, want 1 each",
			h.push.callCount(), h.browser.callCount(), h.email.callCount())
	}
}

func TestProcessRecord_TerminalChannelErrorStillProcesses(t *testing.T) {
	h := newHarness(t, &fakeRenderer{result: followResult()})
	h.email.err = apperrors.Internal(apperrors.CodeRecordNotFound, "rejected")
	rec := followRecord()

	h.orch.processRecord(context.Background(), rec, followEntities(), followSettings())

	if len(h.store.processed) != 1 {
		t.Error("terminal channel error must not hold the record for retry")
	}
	if len(h.store.attempts) != 0 {
		t.Errorf("unexpected retries %v", h.store.attempts)
	}
}
