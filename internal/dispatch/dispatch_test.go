package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"waveline.io/courier/internal/domain"
	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
	"waveline.io/courier/internal/pkg/worker"
)

func init() {
	_ = logger.Init("error", "console")
}

type pushCall struct {
	dev   domain.DeviceRegistration
	msg   domain.RenderedMessage
	badge int
}

type fakePushSender struct {
	mu    sync.Mutex
	calls []pushCall
	// errByToken injects a failure for a specific device token.
	errByToken map[string]error
}

func (f *fakePushSender) SendPush(ctx context.Context, dev domain.DeviceRegistration, msg domain.RenderedMessage, badge int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{dev: dev, msg: msg, badge: badge})
	if err, ok := f.errByToken[dev.Token]; ok {
		return err
	}
	return nil
}

type fakeBrowserSender struct {
	mu    sync.Mutex
	calls []domain.DeviceRegistration
	err   error
}

func (f *fakeBrowserSender) SendBrowserPush(ctx context.Context, dev domain.DeviceRegistration, msg domain.RenderedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dev)
	return f.err
}

type emailCall struct {
	to      string
	subject string
	plain   string
}

type fakeEmailSender struct {
	mu    sync.Mutex
	calls []emailCall
	err   error
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, toName, toAddress, subject, plainBody, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, emailCall{to: toAddress, subject: subject, plain: plainBody})
	return f.err
}

// fakeBadge mimics the guard-table semantics: the count bumps only on the
// first Increment per (user, group).
type fakeBadge struct {
	mu      sync.Mutex
	applied map[string]bool
	counts  map[int64]int
}

func newFakeBadge() *fakeBadge {
	return &fakeBadge{applied: make(map[string]bool), counts: make(map[int64]int)}
}

func (f *fakeBadge) Increment(ctx context.Context, userID int64, groupID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d:%s", userID, groupID)
	if f.applied[key] {
		return f.counts[userID], false, nil
	}
	f.applied[key] = true
	f.counts[userID]++
	return f.counts[userID], true, nil
}

type fakeSink struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeSink) ReportDeadTokens(ctx context.Context, tokens []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, tokens...)
}

func testPools(t *testing.T) *worker.Pools {
	t.Helper()
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{
		GeneralPoolSize:  4,
		DeliveryPoolSize: 4,
	})
	if err != nil {
		t.Fatalf("NewPools() error = %v", err)
	}
	t.Cleanup(pools.Shutdown)
	return pools
}

func pushSettings(userID int64, devices ...domain.DeviceRegistration) *domain.RecipientSettings {
	return &domain.RecipientSettings{
		UserID:              userID,
		EnabledPushTypes:    map[domain.NotificationType]bool{domain.TypeRepost: true},
		EnabledBrowserTypes: map[domain.NotificationType]bool{domain.TypeRepost: true},
		EmailFrequency:      domain.EmailLive,
		EmailAddress:        "alice@example.com",
		Devices:             devices,
	}
}

func testRecord() *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:               "rec-1",
		Type:             domain.TypeRepost,
		GroupID:          "repost:track:10",
		RecipientUserIDs: []int64{2},
		Payload:          domain.Payload{UserIDs: []int64{1}},
	}
}

func testMessage() domain.RenderedMessage {
	return domain.RenderedMessage{
		Title:    "New Repost",
		Body:     "Bob reposted your track Song A",
		DeepLink: map[string]string{"id": "repost:track:10"},
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()
	views := func(summaries ...string) []domain.EmailViewModel {
		out := make([]domain.EmailViewModel, len(summaries))
		for i, s := range summaries {
			out[i] = domain.EmailViewModel{Summary: s}
		}
		return out
	}

	tests := []struct {
		name  string
		views []domain.EmailViewModel
		want  string
	}{
		{
			name:  "single short summary unchanged",
			views: views("Bob reposted your track Song A"),
			want:  "Bob reposted your track Song A",
		},
		{
			name:  "joins with comma space",
			views: views("Bob followed you", "Alice followed you"),
			want:  "Bob followed you, Alice followed you",
		},
		{
			name:  "only first three summaries",
			views: views("one", "two", "three", "four"),
			want:  "one, two, three",
		},
		{
			name: "truncates at word boundary with ellipsis",
			views: views(
				"Bob reposted your track Song A",
				"Carol favorited your playlist Summer Jams Volume Two",
				"Dave followed you",
			),
			want: "Bob reposted your track Song A, Carol favorited your playlist Summer Jams Volume Two ...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snippet(tt.views)
			if got != tt.want {
				t.Errorf("snippet() = %q, want %q", got, tt.want)
			}
			if len(got) > snippetMaxLen+len(snippetEllipsis) {
				t.Errorf("snippet length %d exceeds limit", len(got))
			}
		})
	}
}

func TestPushDispatch_FanOutWithSingleBadgeIncrement(t *testing.T) {
	sender := &fakePushSender{}
	badges := newFakeBadge()
	sink := &fakeSink{}
	d := NewPushDispatcher(sender, badges, sink, testPools(t), time.Second)

	s := pushSettings(2,
		domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-1"},
		domain.DeviceRegistration{Platform: domain.PlatformAndroid, Token: "and-1"},
		domain.DeviceRegistration{Platform: domain.PlatformSafari, Token: "saf-1"},
	)

	if err := d.Dispatch(context.Background(), testRecord(), s, testMessage()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(sender.calls) != 2 {
		t.Fatalf("sends = %d, want 2 (safari excluded)", len(sender.calls))
	}
	for _, call := range sender.calls {
		if call.badge != 1 {
			t.Errorf("badge in payload = %d, want 1", call.badge)
		}
	}
	if badges.counts[2] != 1 {
		t.Errorf("badge count = %d, want 1", badges.counts[2])
	}
}

func TestPushDispatch_ReprocessingDoesNotDoubleIncrement(t *testing.T) {
	sender := &fakePushSender{}
	badges := newFakeBadge()
	d := NewPushDispatcher(sender, badges, &fakeSink{}, testPools(t), time.Second)

	s := pushSettings(2, domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-1"})
	rec := testRecord()

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), rec, s, testMessage()); err != nil {
			t.Fatalf("Dispatch() #%d error = %v", i, err)
		}
	}
	if badges.counts[2] != 1 {
		t.Errorf("badge count after reprocessing = %d, want 1", badges.counts[2])
	}
}

func TestPushDispatch_TypeDisabled(t *testing.T) {
	sender := &fakePushSender{}
	d := NewPushDispatcher(sender, newFakeBadge(), &fakeSink{}, testPools(t), time.Second)

	s := pushSettings(2, domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-1"})
	s.EnabledPushTypes = map[domain.NotificationType]bool{}

	if err := d.Dispatch(context.Background(), testRecord(), s, testMessage()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(sender.calls) != 0 {
		t.Errorf("sends = %d, want 0 for disabled type", len(sender.calls))
	}
}

func TestPushDispatch_InvalidTokenReported(t *testing.T) {
	sender := &fakePushSender{errByToken: map[string]error{
		"ios-dead": fmt.Errorf("%w: endpoint disabled", apperrors.ErrInvalidToken),
	}}
	sink := &fakeSink{}
	d := NewPushDispatcher(sender, newFakeBadge(), sink, testPools(t), time.Second)

	s := pushSettings(2,
		domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-dead"},
		domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-ok"},
	)

	if err := d.Dispatch(context.Background(), testRecord(), s, testMessage()); err != nil {
		t.Fatalf("Dispatch() error = %v; invalid tokens must not fail the send", err)
	}
	if len(sink.tokens) != 1 || sink.tokens[0] != "ios-dead" {
		t.Errorf("dead tokens = %v, want [ios-dead]", sink.tokens)
	}
}

func TestPushDispatch_TransientFailure(t *testing.T) {
	sender := &fakePushSender{errByToken: map[string]error{
		"ios-1": fmt.Errorf("%w: throttled", apperrors.ErrTransient),
	}}
	d := NewPushDispatcher(sender, newFakeBadge(), &fakeSink{}, testPools(t), time.Second)

	s := pushSettings(2, domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-1"})

	err := d.Dispatch(context.Background(), testRecord(), s, testMessage())
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Errorf("Dispatch() error = %v, want transient", err)
	}
}

func TestBrowserDispatch_UsesNewestSubscription(t *testing.T) {
	sender := &fakeBrowserSender{}
	d := NewBrowserDispatcher(sender, &fakeSink{}, time.Second)

	s := pushSettings(2,
		domain.DeviceRegistration{Platform: domain.PlatformSafari, Token: "sub-old"},
		domain.DeviceRegistration{Platform: domain.PlatformIOS, Token: "ios-1"},
		domain.DeviceRegistration{Platform: domain.PlatformSafari, Token: "sub-new"},
	)

	if err := d.Dispatch(context.Background(), testRecord(), s, testMessage()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("browser sends = %d, want 1", len(sender.calls))
	}
	if sender.calls[0].Token != "sub-new" {
		t.Errorf("sent to %q, want newest subscription", sender.calls[0].Token)
	}
}

func TestBrowserDispatch_GoneSubscriptionReported(t *testing.T) {
	sender := &fakeBrowserSender{err: fmt.Errorf("%w: gone", apperrors.ErrInvalidToken)}
	sink := &fakeSink{}
	d := NewBrowserDispatcher(sender, sink, time.Second)

	s := pushSettings(2, domain.DeviceRegistration{Platform: domain.PlatformSafari, Token: "sub-1"})

	if err := d.Dispatch(context.Background(), testRecord(), s, testMessage()); err != nil {
		t.Fatalf("Dispatch() error = %v; gone subscriptions must not fail", err)
	}
	if len(sink.tokens) != 1 {
		t.Errorf("dead tokens = %v, want the gone subscription", sink.tokens)
	}
}

func TestEmailDispatch_LiveFrequencyOnly(t *testing.T) {
	sender := &fakeEmailSender{}
	d := NewEmailDispatcher(sender, time.Second)

	view := domain.EmailViewModel{Type: domain.TypeRepost, Summary: "Bob reposted your track Song A"}

	s := pushSettings(2)
	if err := d.DispatchLive(context.Background(), testRecord(), s, "Alice", view); err != nil {
		t.Fatalf("DispatchLive() error = %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("emails = %d, want 1", len(sender.calls))
	}
	if want := "1 unread notification on Waveline"; sender.calls[0].subject != want {
		t.Errorf("subject = %q, want %q", sender.calls[0].subject, want)
	}

	s.EmailFrequency = domain.EmailDaily
	if err := d.DispatchLive(context.Background(), testRecord(), s, "Alice", view); err != nil {
		t.Fatalf("DispatchLive() error = %v", err)
	}
	if len(sender.calls) != 1 {
		t.Error("daily-frequency recipient got a live email")
	}
}

func TestEmailDispatch_DigestSubjectPluralizes(t *testing.T) {
	sender := &fakeEmailSender{}
	d := NewEmailDispatcher(sender, time.Second)

	s := pushSettings(5)
	s.EmailFrequency = domain.EmailDaily
	views := []domain.EmailViewModel{
		{Type: domain.TypeFavorite, Summary: "Bob favorited your track Song A"},
		{Type: domain.TypeFavorite, Summary: "Carol favorited your track Song A"},
		{Type: domain.TypeFavorite, Summary: "Dave favorited your track Song A"},
	}

	if err := d.DispatchDigest(context.Background(), s, "Eve", views); err != nil {
		t.Fatalf("DispatchDigest() error = %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("emails = %d, want 1", len(sender.calls))
	}
	if want := "3 unread notifications on Waveline"; sender.calls[0].subject != want {
		t.Errorf("subject = %q, want %q", sender.calls[0].subject, want)
	}
	// Oldest first, as the aggregator ordered them.
	if !strings.HasPrefix(sender.calls[0].plain, "Bob favorited") {
		t.Errorf("body starts with %q, want oldest summary first", sender.calls[0].plain)
	}
}
