package session

import "time"

// maxBackoffExponent keeps 1<<n well inside int64 for any sane Base.
const maxBackoffExponent = 30

const (
	DefaultBackoffBase = 2 * time.Second
	DefaultBackoffMax  = 60 * time.Second
)

// Backoff computes exponential reconnect delays: Base * 2^n, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is 2s doubling up to 60s.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBackoffBase, Max: DefaultBackoffMax}
}

// Delay returns the wait before reconnect attempt n.
func (b Backoff) Delay(n int) time.Duration {
	if b.Base <= 0 {
		b.Base = DefaultBackoffBase
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoffMax
	}
	if n < 0 {
		n = 0
	}
	if n > maxBackoffExponent {
		n = maxBackoffExponent
	}
	factor := time.Duration(int64(1) << uint(n))
	if b.Base > b.Max/factor {
		return b.Max
	}
	d := b.Base * factor
	if d > b.Max {
		return b.Max
	}
	return d
}

// ReconnectState counts consecutive failed connects.
type ReconnectState struct {
	Attempts int
	Backoff  Backoff
}

// Next records another attempt and returns how long to wait before it.
func (s *ReconnectState) Next() time.Duration {
	s.Attempts++
	return s.Backoff.Delay(s.Attempts)
}

// Reset is called once a session reaches open.
func (s *ReconnectState) Reset() {
	s.Attempts = 0
}
