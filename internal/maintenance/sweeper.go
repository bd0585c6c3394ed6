// Package maintenance runs periodic housekeeping while a session is open.
package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/fpt/klein-bot/pkg/logger"
)

const (
	DefaultSchedule = "*/15 * * * *"
	DefaultMaxAge   = time.Hour
)

// Config controls the sweeper.
type Config struct {
	Schedule string        // cron expression
	TempDir  string        // directory of generated media
	MaxAge   time.Duration // files older than this are removed
}

// Purger drops expired cache entries.
type Purger interface {
	Purge() int
}

// Purgers runs several purgers as one.
type Purgers []Purger

func (ps Purgers) Purge() int {
	n := 0
	for _, p := range ps {
		if p != nil {
			n += p.Purge()
		}
	}
	return n
}

// Sweeper removes stale temp files and expired cache entries on a cron
// schedule. It implements session.Maintenance.
type Sweeper struct {
	cfg    Config
	cache  Purger
	logger *logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper validates the schedule, falling back to DefaultSchedule.
func NewSweeper(cfg Config, cache Purger, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewComponentLogger("maintenance")
	}
	if cfg.Schedule == "" || !gronx.New().IsValid(cfg.Schedule) {
		if cfg.Schedule != "" {
			log.Warn("invalid maintenance schedule, using default", "schedule", cfg.Schedule, "default", DefaultSchedule)
		}
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &Sweeper{cfg: cfg, cache: cache, logger: log, now: time.Now}
}

// Schedule is the effective cron expression.
func (s *Sweeper) Schedule() string { return s.cfg.Schedule }

// Start launches the sweep loop. Calling it while running is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.DebugWithIntention(logger.IntentionStatus, "Maintenance started", "schedule", s.cfg.Schedule)
}

// Stop ends the loop and waits for it. Safe to call when not running.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		next, err := gronx.NextTickAfter(s.cfg.Schedule, s.now(), false)
		if err != nil {
			s.logger.Error("failed to compute next maintenance tick", "error", err)
			return
		}
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass and returns the number of files removed.
func (s *Sweeper) Sweep() int {
	removed := 0
	if s.cfg.TempDir != "" {
		removed = s.sweepDir()
	}
	purged := 0
	if s.cache != nil {
		purged = s.cache.Purge()
	}
	if removed > 0 || purged > 0 {
		s.logger.InfoWithIntention(logger.IntentionStatus, "Maintenance sweep", "files", removed, "entries", purged)
	}
	return removed
}

func (s *Sweeper) sweepDir() int {
	entries, err := os.ReadDir(s.cfg.TempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read temp dir", "dir", s.cfg.TempDir, "error", err)
		}
		return 0
	}
	cutoff := s.now().Add(-s.cfg.MaxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.TempDir, e.Name())); err != nil {
			s.logger.Warn("failed to remove temp file", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
