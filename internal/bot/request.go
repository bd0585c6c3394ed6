package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/pkg/logger"
	"github.com/fpt/klein-bot/pkg/retry"
)

// Request is one command invocation.
type Request struct {
	Message      session.Message
	Command      Command
	Group        *session.GroupMetadata // nil outside groups
	IsGroupAdmin bool
	IsOwner      bool

	session  session.Session
	pipeline *Pipeline
	logger   *logger.Logger
}

// Sender is the author of the command.
func (r *Request) Sender() string { return r.Message.Sender() }

// DisplayName prefers the push name over the raw id.
func (r *Request) DisplayName() string {
	if n := strings.TrimSpace(r.Message.PushName); n != "" {
		return n
	}
	return r.Sender()
}

// Reply sends text to the chat, quoting the command and expiring after the
// configured ephemeral duration. Failures are logged, never returned.
func (r *Request) Reply(ctx context.Context, text string) {
	r.pipeline.sendText(ctx, r.session, r.Message.Chat(), text, session.SendOptions{
		Quoted:    &r.Message,
		Ephemeral: r.pipeline.cfg.Ephemeral(),
	})
}

// ReplyContent sends media to the chat, quoting the command.
func (r *Request) ReplyContent(ctx context.Context, content session.Content) {
	r.pipeline.send(ctx, r.session, r.Message.Chat(), content, session.SendOptions{
		Quoted:    &r.Message,
		Ephemeral: r.Message.Expiration,
	})
}

// ReportOwner sends a diagnostic to the operator.
func (r *Request) ReportOwner(ctx context.Context, text string) {
	r.pipeline.reportOwner(ctx, r.session, text)
}

// sanitize mirrors how replies are cleaned before sending.
func sanitize(v any) string {
	return strings.TrimSpace(fmt.Sprint(v))
}

func (p *Pipeline) sendText(ctx context.Context, sess session.Session, to, text string, opts session.SendOptions) {
	text = sanitize(text)
	if text == "" {
		p.logger.Warn("empty text after sanitizing, not sending", "target", to)
		return
	}
	p.send(ctx, sess, to, session.Content{Text: text}, opts)
}

// send delivers content with the send policy. It never fails the caller.
func (p *Pipeline) send(ctx context.Context, sess session.Session, to string, content session.Content, opts session.SendOptions) {
	if content.IsEmpty() {
		p.logger.Warn("empty content, not sending", "target", to)
		return
	}
	err := retry.Run(ctx, p.sendPolicy, func(ctx context.Context) error {
		_, err := sess.SendMessage(ctx, to, content, opts)
		return err
	})
	if err != nil {
		p.logger.Error("all send attempts failed", "target", to, "error", err)
	}
}

func (p *Pipeline) reportOwner(ctx context.Context, sess session.Session, text string) {
	owner := p.cfg.Owner.Number
	if owner == "" {
		p.logger.Debug("no owner configured, dropping report")
		return
	}
	text = sanitize(text)
	if text == "" {
		p.logger.Warn("empty text after sanitizing, not sending", "target", owner)
		return
	}
	quoted, err := json.Marshal(text)
	if err != nil {
		quoted = []byte(text)
	}
	p.send(ctx, sess, owner, session.Content{Text: string(quoted)}, session.SendOptions{
		Ephemeral: p.cfg.Ephemeral(),
	})
}
