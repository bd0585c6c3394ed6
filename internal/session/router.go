package session

import (
	"context"
	"fmt"

	"github.com/fpt/klein-bot/pkg/logger"
)

// Handlers is the table of event handlers. A nil field means the event is
// ignored.
type Handlers struct {
	ConnectionUpdate   func(ctx context.Context, ev ConnectionUpdate) error
	CredentialsUpdate  func(ctx context.Context, ev CredentialsUpdate) error
	MessagesUpsert     func(ctx context.Context, ev MessagesUpsert) error
	GroupsUpdate       func(ctx context.Context, ev GroupsUpdate) error
	ParticipantsUpdate func(ctx context.Context, ev ParticipantsUpdate) error
	ChatsUpsert        func(ctx context.Context, ev ChatsUpsert) error
	ContactsUpsert     func(ctx context.Context, ev ContactsUpsert) error
}

// Merge returns h with every nil field filled from other.
func (h Handlers) Merge(other Handlers) Handlers {
	if h.ConnectionUpdate == nil {
		h.ConnectionUpdate = other.ConnectionUpdate
	}
	if h.CredentialsUpdate == nil {
		h.CredentialsUpdate = other.CredentialsUpdate
	}
	if h.MessagesUpsert == nil {
		h.MessagesUpsert = other.MessagesUpsert
	}
	if h.GroupsUpdate == nil {
		h.GroupsUpdate = other.GroupsUpdate
	}
	if h.ParticipantsUpdate == nil {
		h.ParticipantsUpdate = other.ParticipantsUpdate
	}
	if h.ChatsUpsert == nil {
		h.ChatsUpsert = other.ChatsUpsert
	}
	if h.ContactsUpsert == nil {
		h.ContactsUpsert = other.ContactsUpsert
	}
	return h
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithErrorHook is called for every failed handler, after logging.
func WithErrorHook(hook func(*HandlerError)) RouterOption {
	return func(r *Router) { r.onError = hook }
}

// Router demultiplexes event batches to the handler table. One failing
// handler never stops the rest of its batch.
type Router struct {
	handlers Handlers
	logger   *logger.Logger
	onError  func(*HandlerError)
}

func NewRouter(h Handlers, log *logger.Logger, opts ...RouterOption) *Router {
	if log == nil {
		log = logger.NewComponentLogger("router")
	}
	r := &Router{handlers: h, logger: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch runs the handler for each event in order and returns how many
// handlers were invoked.
func (r *Router) Dispatch(ctx context.Context, batch Batch) int {
	invoked := 0
	for _, ev := range batch {
		if ev == nil {
			continue
		}
		ran, err := r.dispatchOne(ctx, ev)
		if ran {
			invoked++
		}
		if err != nil {
			herr := &HandlerError{Event: ev.Name(), Err: err}
			r.logger.Error("event handler failed", "event", string(ev.Name()), "error", err)
			if r.onError != nil {
				r.onError(herr)
			}
		}
	}
	return invoked
}

func (r *Router) dispatchOne(ctx context.Context, ev Event) (ran bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ran = true
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	switch e := ev.(type) {
	case ConnectionUpdate:
		if r.handlers.ConnectionUpdate != nil {
			return true, r.handlers.ConnectionUpdate(ctx, e)
		}
	case CredentialsUpdate:
		if r.handlers.CredentialsUpdate != nil {
			return true, r.handlers.CredentialsUpdate(ctx, e)
		}
	case MessagesUpsert:
		if r.handlers.MessagesUpsert != nil {
			return true, r.handlers.MessagesUpsert(ctx, e)
		}
	case GroupsUpdate:
		if r.handlers.GroupsUpdate != nil {
			return true, r.handlers.GroupsUpdate(ctx, e)
		}
	case ParticipantsUpdate:
		if r.handlers.ParticipantsUpdate != nil {
			return true, r.handlers.ParticipantsUpdate(ctx, e)
		}
	case ChatsUpsert:
		if r.handlers.ChatsUpsert != nil {
			return true, r.handlers.ChatsUpsert(ctx, e)
		}
	case ContactsUpsert:
		if r.handlers.ContactsUpsert != nil {
			return true, r.handlers.ContactsUpsert(ctx, e)
		}
	}
	return false, nil
}
