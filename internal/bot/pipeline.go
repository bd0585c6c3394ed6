// Package bot turns inbound messages into command executions and replies.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fpt/klein-bot/internal/ai"
	"github.com/fpt/klein-bot/internal/config"
	"github.com/fpt/klein-bot/internal/groupcache"
	"github.com/fpt/klein-bot/internal/media"
	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/pkg/logger"
	"github.com/fpt/klein-bot/pkg/retry"
)

// GenericFailure is what users see when a command fails unexpectedly.
const GenericFailure = "An error occurred while processing your command."

// Transcoder is the media conversion the sticker commands need.
type Transcoder interface {
	ToWebP(ctx context.Context, src []byte, video bool) ([]byte, error)
	ToJPEG(ctx context.Context, webp []byte) ([]byte, error)
	EmbedExif(ctx context.Context, webp, exif []byte) ([]byte, error)
}

// VideoSource finds and downloads videos.
type VideoSource interface {
	Search(ctx context.Context, query string) (media.Video, error)
	Info(ctx context.Context, url string) (media.Video, error)
	DownloadAudio(ctx context.Context, url string) (string, error)
	DownloadVideo(ctx context.Context, url string) (string, error)
}

// Options are the collaborators of a Pipeline. Config is required; a nil
// Generator, Transcoder or Videos disables the commands that need them.
type Options struct {
	Config     *config.Config
	Generator  ai.Generator
	Transcoder Transcoder
	Videos     VideoSource
	Groups     *groupcache.Cache
	HTTPClient *http.Client
	Logger     *logger.Logger
	Now        func() time.Time
}

type job struct {
	sess session.Session
	msg  session.Message
}

// Pipeline executes commands on a bounded pool of workers.
type Pipeline struct {
	cfg        *config.Config
	generator  ai.Generator
	transcoder Transcoder
	videos     VideoSource
	groups     *groupcache.Cache
	http       *http.Client
	logger     *logger.Logger
	now        func() time.Time
	started    time.Time

	sendPolicy retry.Policy
	limiter    *senderLimiter
	commands   map[string]*commandSpec
	jobs       chan job
	workers    int
}

func NewPipeline(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewComponentLogger("pipeline")
	}
	groups := opts.Groups
	if groups == nil {
		groups = groupcache.New(cfg.GroupCacheTTL())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	workers := cfg.MaxConcurrency
	if workers <= 0 {
		workers = 4
	}

	p := &Pipeline{
		cfg:        cfg,
		generator:  opts.Generator,
		transcoder: opts.Transcoder,
		videos:     opts.Videos,
		groups:     groups,
		http:       opts.HTTPClient,
		logger:     log,
		now:        now,
		started:    now(),
		sendPolicy: retry.SendPolicy,
		limiter: newSenderLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		jobs:    make(chan job, workers*16),
		workers: workers,
	}
	p.commands = p.commandTable()
	return p
}

// Run processes queued messages until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case j := <-p.jobs:
					p.HandleMessage(gctx, j.sess, j.msg)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Pipeline) enqueue(ctx context.Context, j job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- j:
		return nil
	}
}

// Handlers returns the application handlers for sess.
func (p *Pipeline) Handlers(sess session.Session) session.Handlers {
	return session.Handlers{
		MessagesUpsert: func(ctx context.Context, ev session.MessagesUpsert) error {
			for _, msg := range ev.Messages {
				if err := p.enqueue(ctx, job{sess: sess, msg: msg}); err != nil {
					return errors.Wrap(err, "failed to queue message")
				}
			}
			return nil
		},
		GroupsUpdate: func(ctx context.Context, ev session.GroupsUpdate) error {
			return p.handleGroupsUpdate(ctx, sess, ev)
		},
		ParticipantsUpdate: func(ctx context.Context, ev session.ParticipantsUpdate) error {
			return p.handleParticipantsUpdate(ctx, sess, ev)
		},
	}
}

// OnOpen tells the operator the bot is online.
func (p *Pipeline) OnOpen(ctx context.Context, sess session.Session) {
	p.reportOwner(ctx, sess, fmt.Sprintf("✅ %s connected as %s", p.cfg.Owner.Name, sess.Self()))
}

// HandleMessage runs the full per-message flow synchronously.
func (p *Pipeline) HandleMessage(ctx context.Context, sess session.Session, msg session.Message) {
	if msg.Key.RemoteJID == "" || !msg.HasContent() {
		return
	}
	if msg.Key.FromMe || (sess.Self() != "" && msg.Sender() == sess.Self()) {
		return
	}

	if err := sess.MarkRead(ctx, []session.MessageKey{msg.Key}); err != nil {
		p.logger.Warn("failed to mark message as read", "sender", msg.Sender(), "error", err)
	}
	p.logInbound(msg)

	cmd, ok := ParseCommand(msg.Text, p.cfg.Prefix)
	if !ok {
		return
	}
	entry, ok := p.commands[cmd.Name]
	if !ok {
		p.logger.Debug("unknown command", "command", cmd.Name, "sender", msg.Sender())
		return
	}
	if !p.limiter.Allow(msg.Sender()) {
		p.logger.Debug("rate limited", "command", cmd.Name, "sender", msg.Sender())
		return
	}

	req := &Request{
		Message:  msg,
		Command:  cmd,
		IsOwner:  p.cfg.Owner.Number != "" && msg.Sender() == p.cfg.Owner.Number,
		session:  sess,
		pipeline: p,
		logger:   p.logger.WithChat(msg.Chat()),
	}
	if msg.Group {
		meta, err := p.groups.GetOrFetch(ctx, msg.Chat(), sess.GroupMetadata)
		if err != nil {
			p.logger.Warn("failed to load group metadata", "group", msg.Chat(), "error", err)
		} else {
			req.Group = &meta
			req.IsGroupAdmin = meta.IsAdmin(msg.Sender())
		}
	}

	req.logger.InfoWithIntention(logger.IntentionCommand, "Command", "command", cmd.Name, "sender", msg.Sender())
	if err := p.invoke(ctx, entry, req); err != nil {
		req.logger.Error("command failed", "command", cmd.Name, "error", err)
		req.Reply(ctx, GenericFailure)
		req.ReportOwner(ctx, fmt.Sprintf("⚠️ Command %s%s failed for %s:\n\n%v", p.cfg.Prefix, cmd.Name, msg.Sender(), err))
	}
}

// invoke runs a handler, turning a panic into an error.
func (p *Pipeline) invoke(ctx context.Context, entry *commandSpec, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("command panic", "stack", string(debug.Stack()))
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return entry.run(ctx, req)
}

func (p *Pipeline) logInbound(msg session.Message) {
	args := []any{
		"kind", string(msg.Kind),
		"sender", msg.Sender(),
		"name", msg.PushName,
	}
	if msg.Group {
		if meta, ok := p.groups.Get(msg.Chat()); ok {
			args = append(args, "group", meta.Subject)
		} else {
			args = append(args, "group", msg.Chat())
		}
	}
	p.logger.Debug("inbound message", args...)
}

// Purge drops idle per-sender limiters. It is run by the maintenance sweep.
func (p *Pipeline) Purge() int {
	return p.limiter.Prune()
}
