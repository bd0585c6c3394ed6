// Package console runs a bot session against the local terminal, for trying
// commands without a network account.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/fpt/klein-bot/internal/media"
	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/internal/transport"
	"github.com/fpt/klein-bot/pkg/logger"
)

const (
	// UserID is the chat and sender of every typed line.
	UserID = "console-user"
	// BotID is the session's own account.
	BotID = "console-bot"
)

// ErrNoGroups is returned by GroupMetadata; the console is a direct chat.
var ErrNoGroups = errors.New("console sessions have no groups")

// Config wires a console Transport.
type Config struct {
	In          io.Reader // defaults to os.Stdin
	Out         io.Writer // defaults to os.Stdout
	Workspace   *media.Workspace
	Completions []string // offered by tab completion on a terminal
	// OnQuit runs when input ends or /quit is typed.
	OnQuit func()
	Logger *logger.Logger
}

type Transport struct {
	cfg Config
}

func New(cfg Config) *Transport {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewComponentLogger("console")
	}
	return &Transport{cfg: cfg}
}

// lineReader is satisfied by readline on a terminal and by a scanner otherwise.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

type scanReader struct {
	sc *bufio.Scanner
	c  io.Closer
}

func (r *scanReader) Readline() (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

func (t *Transport) newReader() (lineReader, error) {
	if f, ok := t.cfg.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		items := make([]readline.PrefixCompleterInterface, 0, len(t.cfg.Completions)+3)
		for _, c := range t.cfg.Completions {
			items = append(items, readline.PcItem(c))
		}
		items = append(items, readline.PcItem("/attach"), readline.PcItem("/quote"), readline.PcItem("/quit"))
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            "> ",
			AutoComplete:      readline.NewPrefixCompleter(items...),
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
			HistoryLimit:      500,
			Stdout:            t.cfg.Out,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize readline")
		}
		return rl, nil
	}
	return &scanReader{sc: bufio.NewScanner(t.cfg.In)}, nil
}

func (t *Transport) Establish(ctx context.Context, creds session.Credentials) (session.Session, error) {
	r, err := t.newReader()
	if err != nil {
		return nil, &session.TransportError{Op: "establish", Err: err}
	}
	s := &Session{
		cfg:    t.cfg,
		bus:    transport.NewBus(transport.DefaultBufferSize),
		reader: r,
		logger: t.cfg.Logger.WithComponent("console"),
	}
	s.bus.Publish(
		session.ConnectionUpdate{State: session.ConnectionOpen},
		session.CredentialsUpdate{Credentials: session.Credentials{Account: BotID, UpdatedAt: time.Now()}},
	)
	go s.readLoop()
	return s, nil
}

// Session reads lines from the terminal and prints replies.
type Session struct {
	cfg    Config
	bus    *transport.Bus
	reader lineReader
	logger *logger.Logger

	outMu sync.Mutex
	seq   atomic.Int64
	once  sync.Once
}

func (s *Session) Events() <-chan session.Batch { return s.bus.Events() }
func (s *Session) Self() string                 { return BotID }

func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.bus.Close()
		err = s.reader.Close()
	})
	return err
}

func (s *Session) readLoop() {
	for {
		line, err := s.reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				s.quit()
				return
			}
			continue
		}
		if err != nil {
			s.quit()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" {
			s.quit()
			return
		}
		msg, err := s.parseLine(line)
		if err != nil {
			s.printf("⚠️ %v\n", err)
			continue
		}
		if !s.bus.Publish(session.MessagesUpsert{Messages: []session.Message{msg}}) {
			return
		}
	}
}

func (s *Session) quit() {
	s.bus.Publish(session.ConnectionUpdate{State: session.ConnectionClose})
	s.bus.Close()
	if s.cfg.OnQuit != nil {
		s.cfg.OnQuit()
	}
}

// parseLine builds a message from a typed line.
//
//	/attach <file> [text]  the message carries the file
//	/quote <file> [text]   the message replies to a message carrying the file
func (s *Session) parseLine(line string) (session.Message, error) {
	msg := session.Message{
		Key:       session.MessageKey{RemoteJID: UserID, ID: "c" + strconv.FormatInt(s.seq.Add(1), 10)},
		PushName:  "Console",
		Timestamp: time.Now(),
		Kind:      session.KindConversation,
		Text:      line,
	}

	verb, rest, _ := strings.Cut(line, " ")
	if verb != "/attach" && verb != "/quote" {
		return msg, nil
	}
	path, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if path == "" {
		return msg, errors.Errorf("usage: %s <file> [text]", verb)
	}
	m, err := localMedia(path)
	if err != nil {
		return msg, err
	}
	msg.Text = strings.TrimSpace(text)
	if verb == "/attach" {
		msg.Media = m
		msg.Kind = m.Kind
	} else {
		msg.Quoted = &session.Quoted{ID: "q" + msg.Key.ID, Kind: m.Kind, Media: m}
		msg.Kind = session.KindExtendedText
	}
	return msg, nil
}

func localMedia(path string) (*session.Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot attach file")
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	return &session.Media{
		Kind:      kindOf(mt),
		Mimetype:  mt,
		FileName:  filepath.Base(path),
		Size:      info.Size(),
		LocalPath: path,
	}, nil
}

func kindOf(mt string) session.MessageKind {
	switch {
	case mt == "image/webp":
		return session.KindSticker
	case strings.HasPrefix(mt, "image/"):
		return session.KindImage
	case strings.HasPrefix(mt, "video/"):
		return session.KindVideo
	case strings.HasPrefix(mt, "audio/"):
		return session.KindAudio
	}
	return session.KindDocument
}

func (s *Session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.cfg.Out, format, args...)
}

// SendMessage prints text and saves media under the workspace.
func (s *Session) SendMessage(ctx context.Context, to string, c session.Content, opts session.SendOptions) (string, error) {
	id := "b" + strconv.FormatInt(s.seq.Add(1), 10)

	var b strings.Builder
	if to != UserID {
		fmt.Fprintf(&b, "→ %s\n", to)
	}
	if c.Text != "" {
		b.WriteString(c.Text + "\n")
	}
	if c.Caption != "" {
		b.WriteString(c.Caption + "\n")
	}
	for _, part := range []struct {
		kind string
		ext  string
		data []byte
	}{
		{"sticker", ".webp", c.Sticker},
		{"image", ".jpg", c.Image},
		{"video", ".mp4", c.Video},
		{"audio", ".m4a", c.Audio},
	} {
		if len(part.data) == 0 {
			continue
		}
		path := "(not saved)"
		if s.cfg.Workspace != nil {
			p, err := s.cfg.Workspace.Write("reply-"+part.kind, part.ext, part.data)
			if err != nil {
				return "", &session.TransportError{Op: "send", Err: err}
			}
			path = p
		}
		fmt.Fprintf(&b, "📎 %s %s → %s\n", part.kind, humanize.Bytes(uint64(len(part.data))), path)
	}
	s.printf("%s", b.String())
	return id, nil
}

func (s *Session) GroupMetadata(ctx context.Context, groupID string) (session.GroupMetadata, error) {
	return session.GroupMetadata{}, ErrNoGroups
}

func (s *Session) MarkRead(ctx context.Context, keys []session.MessageKey) error { return nil }

func (s *Session) DownloadMedia(ctx context.Context, m *session.Media) ([]byte, error) {
	switch {
	case m == nil:
		return nil, errors.New("no media to download")
	case m.LocalPath != "":
		data, err := os.ReadFile(m.LocalPath)
		return data, errors.Wrap(err, "failed to read attachment")
	default:
		return media.Fetch(ctx, nil, m.URL, 0)
	}
}
