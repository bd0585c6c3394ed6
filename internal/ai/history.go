package ai

import (
	"sync"
	"time"
)

// Role is who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role
	Text string
}

// DefaultHistoryIdle is how long a user's history survives without new turns.
const DefaultHistoryIdle = 24 * time.Hour

// History keeps the most recent exchanges per user.
type History struct {
	mu       sync.Mutex
	max      int // exchanges, each a user turn plus a model turn
	turns    map[string][]Turn
	lastUsed map[string]time.Time
	now      func() time.Time
}

func NewHistory(maxExchanges int) *History {
	if maxExchanges <= 0 {
		maxExchanges = 10
	}
	return &History{
		max:      maxExchanges,
		turns:    make(map[string][]Turn),
		lastUsed: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Get returns a copy of the user's turns, oldest first.
func (h *History) Get(user string) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.turns[user]...)
}

// Append records turns and trims to the newest exchanges.
func (h *History) Append(user string, turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := append(h.turns[user], turns...)
	if limit := h.max * 2; len(all) > limit {
		all = append([]Turn(nil), all[len(all)-limit:]...)
	}
	h.turns[user] = all
	h.lastUsed[user] = h.now()
}

func (h *History) Reset(user string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, user)
	delete(h.lastUsed, user)
}

// Prune drops users with no turns for longer than idle and returns how many.
func (h *History) Prune(idle time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := h.now().Add(-idle)
	n := 0
	for user, at := range h.lastUsed {
		if at.Before(cutoff) {
			delete(h.turns, user)
			delete(h.lastUsed, user)
			n++
		}
	}
	return n
}

// Len is the number of users with history.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
