package groupcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fpt/klein-bot/internal/session"
)

func newTestCache(ttl time.Duration) (*Cache, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheExpires(t *testing.T) {
	c, now := newTestCache(time.Minute)
	c.Set("g1", session.GroupMetadata{ID: "g1", Subject: "Friends"})

	if meta, ok := c.Get("g1"); !ok || meta.Subject != "Friends" {
		t.Fatalf("expected cached metadata, got %+v ok=%v", meta, ok)
	}

	*now = now.Add(time.Minute)
	if _, ok := c.Get("g1"); ok {
		t.Error("expected entry to expire at ttl")
	}
	if n := c.Purge(); n != 1 {
		t.Errorf("expected 1 purged entry, got %d", n)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestGetOrFetch(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	calls := 0
	fetch := func(ctx context.Context, id string) (session.GroupMetadata, error) {
		calls++
		return session.GroupMetadata{ID: id}, nil
	}

	for i := 0; i < 3; i++ {
		meta, err := c.GetOrFetch(context.Background(), "g1", fetch)
		if err != nil {
			t.Fatalf("GetOrFetch failed: %v", err)
		}
		if meta.ID != "g1" {
			t.Errorf("expected g1, got %s", meta.ID)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch, got %d", calls)
	}
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	fail := func(ctx context.Context, id string) (session.GroupMetadata, error) {
		return session.GroupMetadata{}, errors.New("offline")
	}
	if _, err := c.GetOrFetch(context.Background(), "g1", fail); err == nil {
		t.Fatal("expected fetch error")
	}
	if c.Len() != 0 {
		t.Errorf("expected nothing cached, got %d entries", c.Len())
	}
}

func TestNewDefaultTTL(t *testing.T) {
	if c := New(0); c.ttl != DefaultTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultTTL, c.ttl)
	}
}
