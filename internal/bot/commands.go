package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/pkg/exif"
	"github.com/fpt/klein-bot/pkg/logger"
)

type commandSpec struct {
	name        string
	aliases     []string
	usage       string
	description string
	run         func(ctx context.Context, req *Request) error
}

func (p *Pipeline) commandTable() map[string]*commandSpec {
	specs := []*commandSpec{
		{name: "gemini", aliases: []string{"cat"}, usage: "<prompt>", description: "ask the AI", run: p.cmdAI},
		{name: "sticker", aliases: []string{"s"}, description: "turn an image or short video into a sticker", run: p.cmdSticker},
		{name: "toimg", description: "turn a quoted sticker into an image", run: p.cmdToImage},
		{name: "ytbuscar", usage: "<query|link>", description: "show video details", run: p.cmdVideoInfo},
		{name: "play", usage: "<query|link>", description: "send a video's audio", run: p.cmdPlayAudio},
		{name: "playvid", usage: "<query|link>", description: "send a video", run: p.cmdPlayVideo},
		{name: "ping", description: "latency and uptime", run: p.cmdPing},
		{name: "menu", aliases: []string{"help"}, description: "list commands", run: p.cmdMenu},
	}
	table := make(map[string]*commandSpec, len(specs)*2)
	for _, s := range specs {
		table[s.name] = s
		for _, a := range s.aliases {
			table[a] = s
		}
	}
	return table
}

func (p *Pipeline) cmdAI(ctx context.Context, req *Request) error {
	if req.Command.Text == "" {
		req.Reply(ctx, fmt.Sprintf("Usage: %s%s <prompt>", p.cfg.Prefix, req.Command.Name))
		return nil
	}
	if p.generator == nil {
		req.Reply(ctx, "AI is not configured.")
		return nil
	}

	reply, err := p.generator.Generate(ctx, req.Sender(), req.Command.Text)
	if err != nil {
		req.logger.Error("content generation failed", "error", err)
		req.Reply(ctx, fmt.Sprintf("⚠️ Could not generate content. Please try again. If the problem persists, contact the developer: %s 📞", p.cfg.Owner.Phone))
		req.ReportOwner(ctx, fmt.Sprintf("⚠️ An error occurred while generating content:\n\n%v\n\n📩 Please check it.", err))
		return nil
	}
	req.logger.DebugWithIntention(logger.IntentionAI, "Generated reply", "chars", len(reply))
	p.send(ctx, req.session, req.Message.Chat(), session.Content{Text: reply}, session.SendOptions{
		Quoted:    &req.Message,
		Ephemeral: req.Message.Expiration,
	})
	return nil
}

// stickerSource picks the message's own media first, then the quoted one.
func (p *Pipeline) stickerSource(msg session.Message) (src *session.Media, video bool, limit time.Duration) {
	if m := msg.OwnMedia(session.KindVideo); m != nil {
		return m, true, p.cfg.MaxVideoSticker()
	}
	if m := msg.QuotedMedia(session.KindVideo); m != nil {
		return m, true, p.cfg.MaxQuotedVideoSticker()
	}
	if m := msg.OwnMedia(session.KindImage); m != nil {
		return m, false, 0
	}
	if m := msg.QuotedMedia(session.KindImage); m != nil {
		return m, false, 0
	}
	return nil, false, 0
}

func (p *Pipeline) cmdSticker(ctx context.Context, req *Request) error {
	src, video, limit := p.stickerSource(req.Message)
	if src == nil {
		req.Reply(ctx, "Send or quote an image or video to create a sticker.")
		return nil
	}
	if video && time.Duration(src.Seconds)*time.Second >= limit {
		req.Reply(ctx, "Video too long for an animated sticker.")
		return nil
	}
	if p.transcoder == nil {
		req.Reply(ctx, "Media tools are not available.")
		return nil
	}

	data, err := req.session.DownloadMedia(ctx, src)
	if err != nil {
		return err
	}
	webp, err := p.transcoder.ToWebP(ctx, data, video)
	if err != nil {
		return err
	}
	blob, err := exif.StickerAttributes{
		PackID:    uuid.NewString(),
		PackName:  "User: " + req.DisplayName(),
		Publisher: "Owner: " + p.cfg.Owner.Name,
		Emojis:    p.cfg.Sticker.Emojis,
	}.Package()
	if err != nil {
		return err
	}
	tagged, err := p.transcoder.EmbedExif(ctx, webp, blob)
	if err != nil {
		return err
	}

	req.logger.InfoWithIntention(logger.IntentionMedia, "Sticker created", "video", video, "size", humanize.Bytes(uint64(len(tagged))))
	req.ReplyContent(ctx, session.Content{Sticker: tagged, Mimetype: "image/webp"})
	return nil
}

func (p *Pipeline) cmdToImage(ctx context.Context, req *Request) error {
	src := req.Message.QuotedMedia(session.KindSticker)
	if src == nil {
		req.Reply(ctx, "Quote a sticker to convert it to an image!")
		return nil
	}
	if p.transcoder == nil {
		req.Reply(ctx, "Media tools are not available.")
		return nil
	}
	data, err := req.session.DownloadMedia(ctx, src)
	if err != nil {
		return err
	}
	jpg, err := p.transcoder.ToJPEG(ctx, data)
	if err != nil {
		return err
	}
	req.ReplyContent(ctx, session.Content{Image: jpg, Mimetype: "image/jpeg"})
	return nil
}

func (p *Pipeline) cmdPing(ctx context.Context, req *Request) error {
	now := p.now()
	latency := time.Duration(0)
	if !req.Message.Timestamp.IsZero() {
		latency = now.Sub(req.Message.Timestamp)
	}
	uptime := now.Sub(p.started).Round(time.Second)
	req.Reply(ctx, fmt.Sprintf("🏓 Pong!\nLatency: %dms\nUptime: %s", latency.Milliseconds(), uptime))
	return nil
}

func (p *Pipeline) cmdMenu(ctx context.Context, req *Request) error {
	seen := make(map[*commandSpec]bool)
	var lines []string
	for _, s := range p.commands {
		if seen[s] {
			continue
		}
		seen[s] = true
		line := p.cfg.Prefix + s.name
		if s.usage != "" {
			line += " " + s.usage
		}
		if len(s.aliases) > 0 {
			line += " (" + p.cfg.Prefix + strings.Join(s.aliases, ", "+p.cfg.Prefix) + ")"
		}
		lines = append(lines, line+" - "+s.description)
	}
	sort.Strings(lines)
	req.Reply(ctx, "📋 Commands\n\n"+strings.Join(lines, "\n"))
	return nil
}

// CommandNames lists every command and alias with the prefix, sorted.
func (p *Pipeline) CommandNames() []string {
	names := make([]string, 0, len(p.commands))
	for name := range p.commands {
		names = append(names, p.cfg.Prefix+name)
	}
	sort.Strings(names)
	return names
}
