package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

// senderLimiter throttles commands per sender.
type senderLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newSenderLimiter(perSecond float64, burst int) *senderLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &senderLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *senderLimiter) Allow(sender string) bool {
	l.mu.Lock()
	rl, ok := l.limiters[sender]
	if !ok {
		rl = rate.NewLimiter(l.limit, l.burst)
		l.limiters[sender] = rl
	}
	l.mu.Unlock()
	return rl.Allow()
}

// Prune drops limiters whose bucket has refilled; a returning sender starts
// from a full burst either way.
func (l *senderLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for sender, rl := range l.limiters {
		if rl.Tokens() >= float64(l.burst) {
			delete(l.limiters, sender)
			n++
		}
	}
	return n
}

func (l *senderLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
