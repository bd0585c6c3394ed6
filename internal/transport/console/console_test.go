package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpt/klein-bot/internal/media"
	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/pkg/logger"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func collect(t *testing.T, sess session.Session) []session.Event {
	t.Helper()
	var events []session.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case batch, ok := <-sess.Events():
			if !ok {
				return events
			}
			events = append(events, batch...)
		case <-timeout:
			t.Fatal("events channel was not closed")
		}
	}
}

func TestConsoleSessionLines(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cat.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	quit := make(chan struct{})
	in := strings.NewReader("!ping\n\n/attach " + img + " !s\n/quote " + img + " !toimg\n/attach\n")
	tr := New(Config{
		In:     in,
		Out:    &syncBuffer{},
		OnQuit: func() { close(quit) },
		Logger: logger.Discard(),
	})
	sess, err := tr.Establish(context.Background(), session.Credentials{})
	if err != nil {
		t.Fatal(err)
	}

	events := collect(t, sess)
	<-quit

	var msgs []session.Message
	var states []session.ConnectionState
	for _, ev := range events {
		switch e := ev.(type) {
		case session.MessagesUpsert:
			msgs = append(msgs, e.Messages...)
		case session.ConnectionUpdate:
			states = append(states, e.State)
		}
	}
	if len(states) != 2 || states[0] != session.ConnectionOpen || states[1] != session.ConnectionClose {
		t.Errorf("states = %v", states)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Text != "!ping" || msgs[0].Sender() != UserID {
		t.Errorf("first = %+v", msgs[0])
	}
	if msgs[1].Text != "!s" || msgs[1].OwnMedia(session.KindImage) == nil {
		t.Errorf("attach = %+v", msgs[1])
	}
	if msgs[2].QuotedMedia(session.KindImage) == nil {
		t.Errorf("quote = %+v", msgs[2])
	}

	data, err := sess.DownloadMedia(context.Background(), msgs[1].Media)
	if err != nil || string(data) != "png" {
		t.Errorf("download = %q, %v", data, err)
	}
}

func TestConsoleSendMessage(t *testing.T) {
	ws, err := media.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out := &syncBuffer{}
	tr := New(Config{In: strings.NewReader(""), Out: out, Workspace: ws, Logger: logger.Discard()})
	sess, err := tr.Establish(context.Background(), session.Credentials{})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	if _, err := sess.SendMessage(context.Background(), UserID, session.Content{Text: "hello"}, session.SendOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.SendMessage(context.Background(), "owner", session.Content{Sticker: []byte("webp")}, session.SendOptions{}); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	if !strings.Contains(got, "hello\n") {
		t.Errorf("output missing text: %q", got)
	}
	if !strings.Contains(got, "→ owner") || !strings.Contains(got, "📎 sticker") {
		t.Errorf("output missing media line: %q", got)
	}
	files, _ := filepath.Glob(filepath.Join(ws.Dir(), "reply-sticker_*.webp"))
	if len(files) != 1 {
		t.Errorf("saved files = %v", files)
	}

	if _, err := sess.GroupMetadata(context.Background(), "g"); err != ErrNoGroups {
		t.Errorf("GroupMetadata err = %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]session.MessageKind{
		"image/jpeg": session.KindImage,
		"image/webp": session.KindSticker,
		"video/mp4":  session.KindVideo,
		"audio/mpeg": session.KindAudio,
		"":           session.KindDocument,
	}
	for mt, want := range tests {
		if got := kindOf(mt); got != want {
			t.Errorf("kindOf(%q) = %q, want %q", mt, got, want)
		}
	}
}
