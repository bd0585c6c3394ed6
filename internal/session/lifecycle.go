package session

import (
	"context"
	"sync"
	"time"

	"github.com/fpt/klein-bot/pkg/logger"
)

// State is the lifecycle's view of the connection.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
)

// LifecycleConfig holds the collaborators of a Lifecycle. Transport and
// Store are required.
type LifecycleConfig struct {
	Transport Transport
	Store     CredentialStore
	Backoff   Backoff
	Logger    *logger.Logger
	Clock     Clock

	// Handlers returns the application handlers for a new session. The
	// lifecycle's own connection and credentials handlers take precedence.
	Handlers func(Session) Handlers
	// OnOpen runs once per transition to open.
	OnOpen func(ctx context.Context, sess Session)
	// Maintenance runs only while a session is open.
	Maintenance Maintenance
	// ErrorHook receives handler failures after they are logged.
	ErrorHook func(*HandlerError)
}

// Lifecycle owns the connection: it establishes sessions, routes their
// events, and reconnects with exponential backoff until its context ends.
type Lifecycle struct {
	cfg   LifecycleConfig
	log   *logger.Logger
	clock Clock

	mu        sync.Mutex
	state     State
	reconnect ReconnectState
	current   Session
}

func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewComponentLogger("lifecycle")
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	return &Lifecycle{
		cfg:       cfg,
		log:       cfg.Logger,
		clock:     cfg.Clock,
		state:     StateIdle,
		reconnect: ReconnectState{Backoff: cfg.Backoff},
	}
}

// State returns the current connection state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attempts returns the consecutive reconnect count.
func (l *Lifecycle) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reconnect.Attempts
}

// Session returns the live session, or nil between connections.
func (l *Lifecycle) Session() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run connects and keeps reconnecting until ctx is cancelled. It returns nil
// on cancellation; connection failures are never returned.
func (l *Lifecycle) Run(ctx context.Context) error {
	defer l.setState(StateIdle)
	for {
		if ctx.Err() != nil {
			return nil
		}

		sess, err := l.establish(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.Error("connection attempt failed", "error", err)
		} else {
			l.serve(ctx, sess)
		}

		if ctx.Err() != nil {
			return nil
		}
		if !l.waitReconnect(ctx) {
			return nil
		}
	}
}

func (l *Lifecycle) establish(ctx context.Context) (Session, error) {
	l.setState(StateConnecting)
	l.log.InfoWithIntention(logger.IntentionConnection, "Connecting")

	creds, err := l.cfg.Store.Load(ctx)
	if err != nil {
		return nil, &TransportError{Op: "load credentials", Err: err}
	}
	sess, err := l.cfg.Transport.Establish(ctx, creds)
	if err != nil {
		return nil, &TransportError{Op: "establish", Err: err}
	}

	l.mu.Lock()
	l.current = sess
	l.mu.Unlock()
	return sess, nil
}

// serve routes events until the session reports close, its event stream
// ends, or ctx is cancelled.
func (l *Lifecycle) serve(ctx context.Context, sess Session) {
	closed := false
	own := Handlers{
		ConnectionUpdate: func(ctx context.Context, ev ConnectionUpdate) error {
			switch ev.State {
			case ConnectionOpen:
				l.onOpen(ctx, sess)
			case ConnectionClose:
				closed = true
				if ev.Err != nil {
					l.log.Warn("connection closed", "error", ev.Err)
				} else {
					l.log.InfoWithIntention(logger.IntentionConnection, "Connection closed")
				}
			case ConnectionConnecting:
				// A late connecting update must not demote an open session.
				if l.State() != StateOpen {
					l.setState(StateConnecting)
				}
			}
			return nil
		},
		CredentialsUpdate: func(ctx context.Context, ev CredentialsUpdate) error {
			return l.cfg.Store.Save(ctx, ev.Credentials)
		},
	}

	var app Handlers
	if l.cfg.Handlers != nil {
		app = l.cfg.Handlers(sess)
	}
	var opts []RouterOption
	if l.cfg.ErrorHook != nil {
		opts = append(opts, WithErrorHook(l.cfg.ErrorHook))
	}
	router := NewRouter(own.Merge(app), l.log.WithComponent("router"), opts...)

	defer l.onClose(sess)

	events := sess.Events()
	for !closed {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				l.log.InfoWithIntention(logger.IntentionConnection, "Event stream ended")
				return
			}
			router.Dispatch(ctx, batch)
		}
	}
}

func (l *Lifecycle) onOpen(ctx context.Context, sess Session) {
	l.mu.Lock()
	already := l.state == StateOpen
	l.state = StateOpen
	l.reconnect.Reset()
	l.mu.Unlock()
	if already {
		return
	}

	l.log.InfoWithIntention(logger.IntentionSuccess, "Connection open", "account", sess.Self())
	if m := l.cfg.Maintenance; m != nil {
		m.Stop()
		m.Start(ctx)
	}
	if l.cfg.OnOpen != nil {
		l.cfg.OnOpen(ctx, sess)
	}
}

func (l *Lifecycle) onClose(sess Session) {
	l.setState(StateClosing)
	if m := l.cfg.Maintenance; m != nil {
		m.Stop()
	}
	if err := sess.Close(); err != nil {
		l.log.Warn("session close failed", "error", err)
	}
	l.mu.Lock()
	if l.current == sess {
		l.current = nil
	}
	l.mu.Unlock()
}

// waitReconnect sleeps for the next backoff delay. It reports false if ctx
// ended first.
func (l *Lifecycle) waitReconnect(ctx context.Context) bool {
	l.mu.Lock()
	delay := l.reconnect.Next()
	attempt := l.reconnect.Attempts
	l.mu.Unlock()

	l.log.InfoWithIntention(logger.IntentionConnection, "Reconnecting",
		"attempt", attempt, "delay", delay.Round(time.Millisecond).String())

	select {
	case <-ctx.Done():
		return false
	case <-l.clock.After(delay):
		return true
	}
}
