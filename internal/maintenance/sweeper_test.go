package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fpt/klein-bot/pkg/logger"
)

type countingPurger struct{ calls int }

func (p *countingPurger) Purge() int {
	p.calls++
	return 0
}

func TestSweepRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.webp")
	fresh := filepath.Join(dir, "fresh.webp")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	purger := &countingPurger{}
	s := NewSweeper(Config{TempDir: dir, MaxAge: time.Hour}, purger, logger.Discard())
	if n := s.Sweep(); n != 1 {
		t.Errorf("expected 1 removed file, got %d", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expected old file to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("expected fresh file to remain")
	}
	if purger.calls != 1 {
		t.Errorf("expected cache purge, got %d calls", purger.calls)
	}
}

func TestSweepMissingDir(t *testing.T) {
	s := NewSweeper(Config{TempDir: filepath.Join(t.TempDir(), "missing")}, nil, logger.Discard())
	if n := s.Sweep(); n != 0 {
		t.Errorf("expected 0 removed, got %d", n)
	}
}

func TestInvalidScheduleFallsBack(t *testing.T) {
	s := NewSweeper(Config{Schedule: "every tuesday"}, nil, logger.Discard())
	if s.Schedule() != DefaultSchedule {
		t.Errorf("expected default schedule, got %q", s.Schedule())
	}
	s = NewSweeper(Config{Schedule: "0 * * * *"}, nil, logger.Discard())
	if s.Schedule() != "0 * * * *" {
		t.Errorf("expected custom schedule kept, got %q", s.Schedule())
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewSweeper(Config{}, nil, logger.Discard())
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	s.Stop()

	s.Start(ctx)
	s.Stop()
}

type fixedPurger int

func (p fixedPurger) Purge() int { return int(p) }

func TestPurgersSumsMembers(t *testing.T) {
	counting := &countingPurger{}
	ps := Purgers{fixedPurger(2), nil, counting, fixedPurger(3)}
	if n := ps.Purge(); n != 5 {
		t.Errorf("expected 5 purged, got %d", n)
	}
	if counting.calls != 1 {
		t.Errorf("expected each purger called once, got %d", counting.calls)
	}
}
