package discord

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/fpt/klein-bot/internal/session"
)

// MaxMessageLength is Discord's limit on message content.
const MaxMessageLength = 2000

// filter decides which Discord messages reach the bot.
type filter struct {
	allowGuilds map[string]bool
	allowChans  map[string]bool
	allowUsers  map[string]bool
	mentionOnly bool
}

func (f filter) accept(m *discordgo.Message, botID string) bool {
	if m.Author == nil || m.Author.Bot || m.Author.ID == botID {
		return false
	}
	if len(f.allowUsers) > 0 && !f.allowUsers[m.Author.ID] {
		return false
	}
	if m.GuildID != "" && len(f.allowGuilds) > 0 && !f.allowGuilds[m.GuildID] {
		return false
	}
	if len(f.allowChans) > 0 && !f.allowChans[m.ChannelID] {
		return false
	}
	if m.GuildID != "" && f.mentionOnly && !isBotMentioned(m.Mentions, botID) {
		return false
	}
	return true
}

// stripMention removes the bot's own mention so commands parse normally.
func stripMention(text, botID string) string {
	if botID == "" {
		return strings.TrimSpace(text)
	}
	text = strings.ReplaceAll(text, "<@"+botID+">", "")
	text = strings.ReplaceAll(text, "<@!"+botID+">", "")
	return strings.TrimSpace(text)
}

// kindOf maps an attachment content type to a message kind.
func kindOf(contentType string) session.MessageKind {
	switch {
	case contentType == "image/webp":
		return session.KindSticker
	case strings.HasPrefix(contentType, "image/"):
		return session.KindImage
	case strings.HasPrefix(contentType, "video/"):
		return session.KindVideo
	case strings.HasPrefix(contentType, "audio/"):
		return session.KindAudio
	case contentType == "":
		return session.KindUnknown
	default:
		return session.KindDocument
	}
}

func stickerURL(id string) string {
	return fmt.Sprintf("https://media.discordapp.net/stickers/%s.webp", id)
}

// mediaOf returns the first attachment or sticker of m.
func mediaOf(m *discordgo.Message) *session.Media {
	if len(m.Attachments) > 0 {
		att := m.Attachments[0]
		return &session.Media{
			Kind:     kindOf(att.ContentType),
			URL:      att.URL,
			Mimetype: att.ContentType,
			FileName: att.Filename,
			Width:    att.Width,
			Height:   att.Height,
			Size:     int64(att.Size),
		}
	}
	if len(m.StickerItems) > 0 {
		st := m.StickerItems[0]
		return &session.Media{
			Kind:     session.KindSticker,
			URL:      stickerURL(st.ID),
			Mimetype: "image/webp",
			FileName: st.Name + ".webp",
		}
	}
	return nil
}

func kindFor(text string, media *session.Media, quoted bool) session.MessageKind {
	switch {
	case media != nil:
		return media.Kind
	case quoted:
		return session.KindExtendedText
	case text != "":
		return session.KindConversation
	default:
		return session.KindUnknown
	}
}

// convertMessage maps a Discord message to a session message. Chats are
// channels; in guild channels the author is the participant.
func convertMessage(m *discordgo.Message, botID string) session.Message {
	text := stripMention(m.Content, botID)
	media := mediaOf(m)

	msg := session.Message{
		Key: session.MessageKey{
			RemoteJID: m.ChannelID,
			ID:        m.ID,
		},
		Group:     m.GuildID != "",
		Timestamp: m.Timestamp,
		Text:      text,
		Media:     media,
	}
	if msg.Group {
		msg.Key.Participant = m.Author.ID
	}
	msg.PushName = displayName(m.Author, m.Member)

	if ref := m.ReferencedMessage; ref != nil {
		q := &session.Quoted{
			ID:    ref.ID,
			Text:  ref.Content,
			Media: mediaOf(ref),
		}
		q.Kind = kindFor(q.Text, q.Media, false)
		msg.Quoted = q
	}
	msg.Kind = kindFor(text, media, msg.Quoted != nil)
	return msg
}

func displayName(u *discordgo.User, member *discordgo.Member) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// groupMetadata describes a guild channel. The guild owner is the super
// admin; members holding an administrator role are admins.
func groupMetadata(ch *discordgo.Channel, g *discordgo.Guild) session.GroupMetadata {
	meta := session.GroupMetadata{ID: ch.ID, Subject: g.Name}
	if ch.Name != "" {
		meta.Subject = g.Name + " #" + ch.Name
	}

	adminRoles := make(map[string]bool)
	for _, r := range g.Roles {
		if r.Permissions&discordgo.PermissionAdministrator != 0 {
			adminRoles[r.ID] = true
		}
	}
	for _, mem := range g.Members {
		if mem.User == nil {
			continue
		}
		p := session.Participant{ID: mem.User.ID, Admin: session.AdminNone}
		switch {
		case mem.User.ID == g.OwnerID:
			p.Admin = session.AdminSuper
		case hasAnyRole(mem.Roles, adminRoles):
			p.Admin = session.AdminAdmin
		}
		meta.Participants = append(meta.Participants, p)
	}
	return meta
}

func hasAnyRole(roles []string, set map[string]bool) bool {
	for _, r := range roles {
		if set[r] {
			return true
		}
	}
	return false
}

// buildSends turns content into one or more Discord messages. Files and the
// reply reference ride on the first one.
func buildSends(to string, c session.Content, opts session.SendOptions) []*discordgo.MessageSend {
	text := c.Text
	if text == "" {
		text = c.Caption
	}
	chunks := splitMessage(text, MaxMessageLength)

	sends := make([]*discordgo.MessageSend, 0, len(chunks))
	for i, chunk := range chunks {
		ms := &discordgo.MessageSend{Content: chunk}
		if i == 0 {
			ms.Files = filesOf(c)
			if opts.Quoted != nil && opts.Quoted.Key.ID != "" {
				ms.Reference = &discordgo.MessageReference{MessageID: opts.Quoted.Key.ID, ChannelID: to}
			}
		}
		sends = append(sends, ms)
	}
	return sends
}

func filesOf(c session.Content) []*discordgo.File {
	add := func(data []byte, name, mime string) []*discordgo.File {
		if c.FileName != "" {
			name = c.FileName
		}
		if c.Mimetype != "" {
			mime = c.Mimetype
		}
		return []*discordgo.File{{Name: name, ContentType: mime, Reader: bytes.NewReader(data)}}
	}
	switch {
	case len(c.Sticker) > 0:
		return add(c.Sticker, "sticker.webp", "image/webp")
	case len(c.Image) > 0:
		return add(c.Image, "image.jpg", "image/jpeg")
	case len(c.Video) > 0:
		return add(c.Video, "video.mp4", "video/mp4")
	case len(c.Audio) > 0:
		return add(c.Audio, "audio.m4a", "audio/mp4")
	}
	return nil
}

// splitMessage splits text into chunks at newline boundaries, respecting maxLen.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

func isBotMentioned(mentions []*discordgo.User, botID string) bool {
	for _, u := range mentions {
		if u.ID == botID {
			return true
		}
	}
	return false
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
