package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fpt/klein-bot/pkg/logger"
)

type fakeSession struct {
	events chan Batch
	closed int
}

func newFakeSession(batches ...Batch) *fakeSession {
	s := &fakeSession{events: make(chan Batch, len(batches)+1)}
	for _, b := range batches {
		s.events <- b
	}
	return s
}

func (s *fakeSession) Events() <-chan Batch { return s.events }
func (s *fakeSession) SendMessage(ctx context.Context, to string, c Content, o SendOptions) (string, error) {
	return "id", nil
}
func (s *fakeSession) GroupMetadata(ctx context.Context, id string) (GroupMetadata, error) {
	return GroupMetadata{ID: id}, nil
}
func (s *fakeSession) MarkRead(ctx context.Context, keys []MessageKey) error { return nil }
func (s *fakeSession) DownloadMedia(ctx context.Context, m *Media) ([]byte, error) {
	return nil, nil
}
func (s *fakeSession) Self() string { return "bot" }
func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// fakeTransport hands out the queued results in order, then fails.
type fakeTransport struct {
	results []any // *fakeSession or error
	calls   int
}

func (t *fakeTransport) Establish(ctx context.Context, creds Credentials) (Session, error) {
	t.calls++
	if len(t.results) == 0 {
		return nil, errors.New("unreachable")
	}
	r := t.results[0]
	t.results = t.results[1:]
	if err, ok := r.(error); ok {
		return nil, err
	}
	return r.(*fakeSession), nil
}

type memStore struct {
	mu    sync.Mutex
	creds Credentials
	saves int
}

func (m *memStore) Load(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *memStore) Save(ctx context.Context, c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = c
	m.saves++
	return nil
}

// fakeClock fires immediately and cancels the run after limit waits.
type fakeClock struct {
	delays []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.delays = append(c.delays, d)
	if len(c.delays) >= c.limit {
		c.cancel()
	}
	ch := make(chan time.Time, 1)
	ch <- time.Unix(0, 0)
	return ch
}

type countingMaintenance struct {
	starts, stops int
}

func (m *countingMaintenance) Start(ctx context.Context) { m.starts++ }
func (m *countingMaintenance) Stop()                     { m.stops++ }

func runLifecycle(t *testing.T, cfg LifecycleConfig, limit int) (*Lifecycle, *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &fakeClock{limit: limit, cancel: cancel}
	cfg.Clock = clock
	cfg.Logger = logger.Discard()
	lc := NewLifecycle(cfg)

	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	return lc, clock
}

func TestLifecycleBacksOffOnTransportFailure(t *testing.T) {
	tr := &fakeTransport{}
	lc, clock := runLifecycle(t, LifecycleConfig{Transport: tr, Store: &memStore{}}, 6)

	want := []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second}
	if len(clock.delays) != len(want) {
		t.Fatalf("expected %d waits, got %d", len(want), len(clock.delays))
	}
	for i := range want {
		if clock.delays[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], clock.delays[i])
		}
	}
	if lc.Attempts() != 6 {
		t.Errorf("expected 6 attempts, got %d", lc.Attempts())
	}
	if lc.State() != StateIdle {
		t.Errorf("expected idle after Run, got %s", lc.State())
	}
}

func TestLifecycleResetsAttemptsOnOpen(t *testing.T) {
	sess := newFakeSession(
		Batch{ConnectionUpdate{State: ConnectionOpen}},
		Batch{ConnectionUpdate{State: ConnectionOpen}},
		Batch{ConnectionUpdate{State: ConnectionClose, Err: errors.New("lost")}},
	)
	tr := &fakeTransport{results: []any{errors.New("down"), errors.New("down"), sess}}
	maint := &countingMaintenance{}

	var opens int
	var attemptsAtOpen = -1
	var lc *Lifecycle
	cfg := LifecycleConfig{
		Transport:   tr,
		Store:       &memStore{},
		Maintenance: maint,
		OnOpen: func(ctx context.Context, s Session) {
			opens++
			attemptsAtOpen = lc.Attempts()
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &fakeClock{limit: 3, cancel: cancel}
	cfg.Clock = clock
	cfg.Logger = logger.Discard()
	lc = NewLifecycle(cfg)
	if err := lc.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if opens != 1 {
		t.Errorf("expected OnOpen once, got %d", opens)
	}
	if attemptsAtOpen != 0 {
		t.Errorf("expected attempts reset before OnOpen, got %d", attemptsAtOpen)
	}
	want := []time.Duration{4 * time.Second, 8 * time.Second, 4 * time.Second}
	for i := range want {
		if i >= len(clock.delays) || clock.delays[i] != want[i] {
			t.Fatalf("expected waits %v, got %v", want, clock.delays)
		}
	}
	if sess.closed != 1 {
		t.Errorf("expected session closed once, got %d", sess.closed)
	}
	if maint.starts != 1 {
		t.Errorf("expected maintenance started once, got %d", maint.starts)
	}
	if maint.stops != 2 {
		t.Errorf("expected maintenance stopped twice, got %d", maint.stops)
	}
}

func TestLifecyclePersistsCredentials(t *testing.T) {
	store := &memStore{}
	sess := newFakeSession(
		Batch{ConnectionUpdate{State: ConnectionOpen}, CredentialsUpdate{Credentials: Credentials{Account: "bot#1", Token: "t"}}},
		Batch{ConnectionUpdate{State: ConnectionClose}},
	)
	tr := &fakeTransport{results: []any{sess}}
	runLifecycle(t, LifecycleConfig{Transport: tr, Store: store}, 1)

	if store.saves != 1 {
		t.Fatalf("expected 1 save, got %d", store.saves)
	}
	if store.creds.Account != "bot#1" {
		t.Errorf("expected saved account bot#1, got %q", store.creds.Account)
	}
}

func TestLifecycleReconnectsWhenEventStreamEnds(t *testing.T) {
	sess := newFakeSession(Batch{ConnectionUpdate{State: ConnectionOpen}})
	close(sess.events)
	tr := &fakeTransport{results: []any{sess}}
	_, clock := runLifecycle(t, LifecycleConfig{Transport: tr, Store: &memStore{}}, 2)

	if tr.calls != 2 {
		t.Errorf("expected 2 establish calls, got %d", tr.calls)
	}
	if sess.closed != 1 {
		t.Errorf("expected session closed, got %d", sess.closed)
	}
	if clock.delays[0] != 4*time.Second {
		t.Errorf("expected first wait 4s, got %v", clock.delays[0])
	}
}

func TestLifecycleDispatchesAppHandlers(t *testing.T) {
	var got []Message
	sess := newFakeSession(
		Batch{ConnectionUpdate{State: ConnectionOpen}},
		Batch{MessagesUpsert{Messages: []Message{{Key: MessageKey{RemoteJID: "c1", ID: "m1"}}}}},
		Batch{ConnectionUpdate{State: ConnectionClose}},
	)
	tr := &fakeTransport{results: []any{sess}}
	runLifecycle(t, LifecycleConfig{
		Transport: tr,
		Store:     &memStore{},
		Handlers: func(s Session) Handlers {
			return Handlers{
				MessagesUpsert: func(ctx context.Context, ev MessagesUpsert) error {
					got = append(got, ev.Messages...)
					return nil
				},
			}
		},
	}, 1)

	if len(got) != 1 || got[0].Key.ID != "m1" {
		t.Errorf("expected message m1 to be dispatched, got %+v", got)
	}
}

func TestLifecycleIgnoresConnectingOnceOpen(t *testing.T) {
	sess := newFakeSession(
		Batch{ConnectionUpdate{State: ConnectionOpen}, ConnectionUpdate{State: ConnectionConnecting}},
		Batch{MessagesUpsert{Messages: []Message{{Key: MessageKey{RemoteJID: "c1", ID: "m1"}}}}},
		Batch{ConnectionUpdate{State: ConnectionClose}},
	)
	tr := &fakeTransport{results: []any{sess}}

	var lc *Lifecycle
	var stateAtMessage State = StateIdle
	cfg := LifecycleConfig{
		Transport: tr,
		Store:     &memStore{},
		Handlers: func(s Session) Handlers {
			return Handlers{
				MessagesUpsert: func(ctx context.Context, ev MessagesUpsert) error {
					stateAtMessage = lc.State()
					return nil
				},
			}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.Clock = &fakeClock{limit: 1, cancel: cancel}
	cfg.Logger = logger.Discard()
	lc = NewLifecycle(cfg)
	if err := lc.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if stateAtMessage != StateOpen {
		t.Errorf("expected state to stay open, got %s", stateAtMessage)
	}
}
