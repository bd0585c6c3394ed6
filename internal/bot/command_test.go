package bot

import (
	"math"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		prefix string
		want   Command
		ok     bool
	}{
		{"plain", "!ping", "!", Command{Name: "ping", Args: []string{}}, true},
		{"args", "!gemini  tell me   a joke ", "!", Command{Name: "gemini", Args: []string{"tell", "me", "a", "joke"}, Text: "tell me   a joke"}, true},
		{"uppercase name", "!STICKER", "!", Command{Name: "sticker", Args: []string{}}, true},
		{"space after prefix", "! menu", "!", Command{Name: "menu", Args: []string{}}, true},
		{"multi-char prefix", "kb/play song", "kb/", Command{Name: "play", Args: []string{"song"}, Text: "song"}, true},
		{"no prefix", "hello", "!", Command{}, false},
		{"prefix only", "!", "!", Command{}, false},
		{"empty prefix", "ping", "", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.body, tt.prefix)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Name != tt.want.Name || got.Text != tt.want.Text {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if len(got.Args) != len(tt.want.Args) || (len(got.Args) > 0 && !reflect.DeepEqual(got.Args, tt.want.Args)) {
				t.Errorf("args = %q, want %q", got.Args, tt.want.Args)
			}
		})
	}
}

func TestSenderLimiter(t *testing.T) {
	l := newSenderLimiter(0.001, 2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if l.Allow("a") {
		t.Error("third call should be throttled")
	}
	if !l.Allow("b") {
		t.Error("other senders have their own bucket")
	}
}

func TestSenderLimiterPruneKeepsThrottledSenders(t *testing.T) {
	l := newSenderLimiter(0.001, 2)
	l.Allow("a")
	l.Allow("a")
	l.Allow("b")
	if n := l.Prune(); n != 0 {
		t.Errorf("expected drained buckets to be kept, pruned %d", n)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 limiters, got %d", l.Len())
	}
}

func TestSenderLimiterPruneDropsRefilledBuckets(t *testing.T) {
	l := newSenderLimiter(math.Inf(1), 2)
	for _, s := range []string{"a", "b", "c"} {
		l.Allow(s)
	}
	if n := l.Prune(); n != 3 {
		t.Errorf("expected 3 pruned, got %d", n)
	}
	if l.Len() != 0 {
		t.Errorf("expected no limiters left, got %d", l.Len())
	}
	if !l.Allow("a") {
		t.Error("a pruned sender starts again from a full bucket")
	}
}
