package session

import (
	"context"
	"time"
)

// Transport builds sessions to a messaging network.
type Transport interface {
	// Establish starts a new session. The session reports its own open and
	// close transitions as ConnectionUpdate events.
	Establish(ctx context.Context, creds Credentials) (Session, error)
}

// Session is one live connection.
type Session interface {
	// Events delivers batches until the session ends, then is closed.
	Events() <-chan Batch
	SendMessage(ctx context.Context, to string, content Content, opts SendOptions) (string, error)
	GroupMetadata(ctx context.Context, groupID string) (GroupMetadata, error)
	MarkRead(ctx context.Context, keys []MessageKey) error
	DownloadMedia(ctx context.Context, media *Media) ([]byte, error)
	// Self is the account id the session is logged in as.
	Self() string
	Close() error
}

// CredentialStore persists transport credentials between sessions.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
}

// Maintenance is periodic housekeeping that only runs while a session is open.
type Maintenance interface {
	Start(ctx context.Context)
	Stop()
}

// Clock lets tests drive the reconnect wait.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }
