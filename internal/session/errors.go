package session

import (
	"fmt"
)

// TransportError wraps a failure to build or keep a session. It always leads
// to a backoff reconnect, never to process exit.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError reports that the handler for one event failed. The Router logs
// it and moves on to the next event in the batch.
type HandlerError struct {
	Event EventName
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s: %v", e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
