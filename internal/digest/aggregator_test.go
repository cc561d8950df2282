package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/pkg/logger"
	"waveline.io/courier/internal/strategy"
)

func init() {
	_ = logger.Init("error", "console")
}

type fakeRecords struct {
	byUser map[int64][]*domain.NotificationRecord
}

func (f *fakeRecords) FetchForRecipientSince(ctx context.Context, userID int64, since time.Time, limit int) ([]*domain.NotificationRecord, error) {
	var out []*domain.NotificationRecord
	for _, rec := range f.byUser[userID] {
		if rec.CreatedAt.After(since) {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRecipients struct{ ids []int64 }

func (f *fakeRecipients) ListByEmailFrequency(ctx context.Context, freq domain.EmailFrequency) ([]int64, error) {
	return f.ids, nil
}

type fakeSendLog struct {
	last map[int64]time.Time
	sent []int64
}

func newFakeSendLog() *fakeSendLog {
	return &fakeSendLog{last: make(map[int64]time.Time)}
}

func (f *fakeSendLog) LastSentAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	t, ok := f.last[userID]
	return t, ok, nil
}

func (f *fakeSendLog) LogSent(ctx context.Context, userID int64, freq domain.EmailFrequency, sentAt time.Time) error {
	f.last[userID] = sentAt
	f.sent = append(f.sent, userID)
	return nil
}

type fakeEntities struct{ set *domain.EntitySet }

func (f *fakeEntities) Resolve(ctx context.Context, records []*domain.NotificationRecord) (*domain.EntitySet, error) {
	return f.set, nil
}

type fakeSettings struct{ byUser map[int64]*domain.RecipientSettings }

func (f *fakeSettings) ResolveBatch(ctx context.Context, userIDs []int64) (map[int64]*domain.RecipientSettings, error) {
	out := make(map[int64]*domain.RecipientSettings)
	for _, id := range userIDs {
		if s, ok := f.byUser[id]; ok {
			out[id] = s
		} else {
			disabled := domain.DisabledSettings(id)
			out[id] = &disabled
		}
	}
	return out, nil
}

type sentDigest struct {
	userID int64
	views  []domain.EmailViewModel
}

type fakeDigestSender struct {
	sent []sentDigest
	err  error
}

func (f *fakeDigestSender) DispatchDigest(ctx context.Context, s *domain.RecipientSettings, toName string, views []domain.EmailViewModel) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentDigest{userID: s.UserID, views: views})
	return nil
}

func favoriteRecord(id string, actorID int64, createdAt time.Time) *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:               id,
		Type:             domain.TypeFavorite,
		GroupID:          "favorite:track:10:" + id,
		CreatedAt:        createdAt,
		RecipientUserIDs: []int64{5},
		Payload: domain.Payload{
			UserIDs:    []int64{actorID},
			EntityType: domain.EntityTrack,
			EntityID:   10,
		},
	}
}

func digestEntities() *domain.EntitySet {
	set := domain.NewEntitySet()
	set.Users[1] = domain.UserSummary{ID: 1, Name: "Bob"}
	set.Users[2] = domain.UserSummary{ID: 2, Name: "Carol"}
	set.Users[3] = domain.UserSummary{ID: 3, Name: "Dave"}
	set.Users[5] = domain.UserSummary{ID: 5, Name: "Eve"}
	set.Entities[domain.EntityRef{Type: domain.EntityTrack, ID: 10}] = domain.EntitySummary{
		Type: domain.EntityTrack, ID: 10, Name: "Song A", OwnerID: 5,
	}
	return set
}

func dailySettings(userID int64) *domain.RecipientSettings {
	return &domain.RecipientSettings{
		UserID:              userID,
		EnabledPushTypes:    map[domain.NotificationType]bool{},
		EnabledBrowserTypes: map[domain.NotificationType]bool{},
		EmailFrequency:      domain.EmailDaily,
		EmailAddress:        "eve@example.com",
	}
}

func newTestAggregator(t *testing.T, records *fakeRecords, sendLog *fakeSendLog, sender *fakeDigestSender) *Aggregator {
	t.Helper()
	registry, err := strategy.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return NewAggregator(
		records,
		&fakeRecipients{ids: []int64{5}},
		sendLog,
		&fakeEntities{set: digestEntities()},
		&fakeSettings{byUser: map[int64]*domain.RecipientSettings{5: dailySettings(5)}},
		registry,
		sender,
		50,
		15*time.Minute,
	)
}

func TestDigest_GroupsOneWindowIntoOneEmail(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	records := &fakeRecords{byUser: map[int64][]*domain.NotificationRecord{
		5: {
			favoriteRecord("a", 1, now.Add(-6*time.Hour)),
			favoriteRecord("b", 2, now.Add(-4*time.Hour)),
			favoriteRecord("c", 3, now.Add(-2*time.Hour)),
		},
	}}
	sendLog := newFakeSendLog()
	sender := &fakeDigestSender{}
	a := newTestAggregator(t, records, sendLog, sender)

	if err := a.Run(context.Background(), domain.EmailDaily, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("digest emails = %d, want exactly 1", len(sender.sent))
	}
	views := sender.sent[0].views
	if len(views) != 3 {
		t.Fatalf("views in digest = %d, want 3", len(views))
	}
	wantOrder := []string{
		"Bob favorited your track Song A",
		"Carol favorited your track Song A",
		"Dave favorited your track Song A",
	}
	for i, want := range wantOrder {
		if views[i].Summary != want {
			t.Errorf("views[%d] = %q, want %q (created_at ascending)", i, views[i].Summary, want)
		}
	}
}

func TestDigest_WindowAdvancesOnlyOnSend(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	records := &fakeRecords{byUser: map[int64][]*domain.NotificationRecord{
		5: {favoriteRecord("a", 1, now.Add(-2*time.Hour))},
	}}
	sendLog := newFakeSendLog()
	sender := &fakeDigestSender{err: errors.New("sendgrid down")}
	a := newTestAggregator(t, records, sendLog, sender)

	if err := a.Run(context.Background(), domain.EmailDaily, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sendLog.sent) != 0 {
		t.Error("send log advanced despite failed send")
	}

	// Next pass with a healthy sender delivers the same batch once.
	sender.err = nil
	if err := a.Run(context.Background(), domain.EmailDaily, now.Add(time.Hour)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("digest emails = %d, want 1 after retry", len(sender.sent))
	}
	if len(sendLog.sent) != 1 {
		t.Error("send log did not advance after successful send")
	}
}

func TestDigest_AlreadyDigestedWindowNotRepeated(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	records := &fakeRecords{byUser: map[int64][]*domain.NotificationRecord{
		5: {favoriteRecord("a", 1, now.Add(-2*time.Hour))},
	}}
	sendLog := newFakeSendLog()
	sender := &fakeDigestSender{}
	a := newTestAggregator(t, records, sendLog, sender)

	if err := a.Run(context.Background(), domain.EmailDaily, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := a.Run(context.Background(), domain.EmailDaily, now.Add(time.Minute)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("digest emails = %d, want 1; a batch must never be aggregated twice", len(sender.sent))
	}
}

func TestDigest_FreshRecordsHeldForNextWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	records := &fakeRecords{byUser: map[int64][]*domain.NotificationRecord{
		5: {favoriteRecord("a", 1, now.Add(-time.Minute))}, // younger than min age
	}}
	sendLog := newFakeSendLog()
	sender := &fakeDigestSender{}
	a := newTestAggregator(t, records, sendLog, sender)

	if err := a.Run(context.Background(), domain.EmailDaily, now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("record younger than min unread age was digested")
	}
}
