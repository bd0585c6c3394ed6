// Package discord runs bot sessions over a Discord bot account.
package discord

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/fpt/klein-bot/internal/config"
	"github.com/fpt/klein-bot/internal/media"
	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/internal/transport"
	"github.com/fpt/klein-bot/pkg/logger"
)

// ErrNoToken is returned when neither the config nor stored credentials hold a token.
var ErrNoToken = errors.New("discord bot token is not configured")

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

// Transport opens Discord gateway sessions.
type Transport struct {
	cfg        config.DiscordConfig
	logger     *logger.Logger
	http       *http.Client
	fetchLimit int64
}

type Option func(*Transport)

// WithHTTPClient sets the client attachments are downloaded with.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.http = c }
}

func WithFetchLimit(n int64) Option {
	return func(t *Transport) { t.fetchLimit = n }
}

func New(cfg config.DiscordConfig, log *logger.Logger, opts ...Option) *Transport {
	if log == nil {
		log = logger.NewComponentLogger("discord")
	}
	t := &Transport{cfg: cfg, logger: log.WithComponent("discord")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Establish connects to the gateway. discordgo's own reconnect is disabled;
// a dropped connection ends the session and the lifecycle reconnects.
func (t *Transport) Establish(ctx context.Context, creds session.Credentials) (session.Session, error) {
	token := t.cfg.Token
	if token == "" {
		token = creds.Token
	}
	if token == "" {
		return nil, &session.TransportError{Op: "establish", Err: ErrNoToken}
	}

	dg, err := newGateway(token)
	if err != nil {
		return nil, &session.TransportError{Op: "establish", Err: errors.Wrap(err, "failed to create discord session")}
	}

	s := &Session{
		dg:     dg,
		bus:    transport.NewBus(transport.DefaultBufferSize),
		token:  token,
		logger: t.logger,
		http:   t.http,
		limit:  t.fetchLimit,
		filter: filter{
			allowGuilds: toSet(t.cfg.AllowedGuildIDs),
			allowChans:  toSet(t.cfg.AllowedChannelIDs),
			allowUsers:  toSet(t.cfg.AllowedUserIDs),
			mentionOnly: t.cfg.MentionOnly,
		},
	}
	dg.AddHandler(s.onConnect)
	dg.AddHandler(s.onReady)
	dg.AddHandler(s.onDisconnect)
	dg.AddHandler(s.onMessage)
	dg.AddHandler(s.onMemberAdd)
	dg.AddHandler(s.onMemberRemove)
	dg.AddHandler(s.onMemberUpdate)
	dg.AddHandler(s.onGuildUpdate)

	if err := dg.Open(); err != nil {
		s.bus.Close()
		return nil, &session.TransportError{Op: "open", Err: errors.Wrap(err, "failed to open discord connection")}
	}
	return s, nil
}

// newGateway configures a discordgo session. Handlers run in gateway order
// so a connect is never published after the ready that follows it.
func newGateway(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = intents
	dg.ShouldReconnectOnError = false
	dg.SyncEvents = true
	return dg, nil
}

// Session is one Discord gateway connection.
type Session struct {
	dg     *discordgo.Session
	bus    *transport.Bus
	token  string
	self   atomic.Value // string
	filter filter
	logger *logger.Logger
	http   *http.Client
	limit  int64
}

func (s *Session) Events() <-chan session.Batch { return s.bus.Events() }

func (s *Session) Self() string {
	id, _ := s.self.Load().(string)
	return id
}

func (s *Session) Close() error {
	s.bus.Close()
	return s.dg.Close()
}

func (s *Session) onConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	s.bus.Publish(session.ConnectionUpdate{State: session.ConnectionConnecting})
}

func (s *Session) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.self.Store(r.User.ID)
	s.logger.InfoWithIntention(logger.IntentionConnection, "Discord bot connected", "user", r.User.Username, "guilds", len(r.Guilds))
	s.bus.Publish(
		session.ConnectionUpdate{State: session.ConnectionOpen},
		session.CredentialsUpdate{Credentials: session.Credentials{
			Account:   r.User.ID,
			Token:     s.token,
			Keys:      map[string]string{"session_id": r.SessionID},
			UpdatedAt: time.Now(),
		}},
	)
}

func (s *Session) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	s.bus.Publish(session.ConnectionUpdate{
		State: session.ConnectionClose,
		Err:   errors.New("discord gateway disconnected"),
	})
	s.bus.Close()
}

func (s *Session) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if !s.filter.accept(m.Message, s.Self()) {
		return
	}
	msg := convertMessage(m.Message, s.Self())
	if !msg.HasContent() {
		return
	}
	s.bus.Publish(session.MessagesUpsert{Messages: []session.Message{msg}})
}

func (s *Session) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	s.participants(m.Member, session.ParticipantAdd)
}

func (s *Session) onMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	s.participants(m.Member, session.ParticipantRemove)
}

// onMemberUpdate refreshes the guild's channels, since roles decide admins.
func (s *Session) onMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	s.groupsUpdate(m.GuildID)
}

func (s *Session) onGuildUpdate(_ *discordgo.Session, g *discordgo.GuildUpdate) {
	s.groupsUpdate(g.ID)
}

// participants reports joins and leaves in the guild's system channel, the
// only place Discord itself announces them.
func (s *Session) participants(m *discordgo.Member, action session.ParticipantAction) {
	if m == nil || m.User == nil || !s.guildAllowed(m.GuildID) {
		return
	}
	g, err := s.dg.State.Guild(m.GuildID)
	if err != nil || g.SystemChannelID == "" {
		return
	}
	s.bus.Publish(session.ParticipantsUpdate{
		GroupID:      g.SystemChannelID,
		Participants: []string{m.User.ID},
		Action:       action,
	})
}

func (s *Session) groupsUpdate(guildID string) {
	if !s.guildAllowed(guildID) {
		return
	}
	g, err := s.dg.State.Guild(guildID)
	if err != nil {
		return
	}
	var ids []string
	for _, ch := range g.Channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			ids = append(ids, ch.ID)
		}
	}
	if len(ids) > 0 {
		s.bus.Publish(session.GroupsUpdate{GroupIDs: ids})
	}
}

func (s *Session) guildAllowed(id string) bool {
	return len(s.filter.allowGuilds) == 0 || s.filter.allowGuilds[id]
}

// SendMessage posts content to a channel, splitting text over 2000 chars.
// Discord has no disappearing messages, so opts.Ephemeral is ignored.
func (s *Session) SendMessage(ctx context.Context, to string, c session.Content, opts session.SendOptions) (string, error) {
	var first string
	for i, ms := range buildSends(to, c, opts) {
		sent, err := s.dg.ChannelMessageSendComplex(to, ms, discordgo.WithContext(ctx))
		if err != nil {
			return first, &session.TransportError{Op: "send", Err: errors.Wrap(err, "failed to send discord message")}
		}
		if i == 0 {
			first = sent.ID
		}
	}
	return first, nil
}

func (s *Session) GroupMetadata(ctx context.Context, groupID string) (session.GroupMetadata, error) {
	ch, err := s.dg.State.Channel(groupID)
	if err != nil {
		ch, err = s.dg.Channel(groupID, discordgo.WithContext(ctx))
		if err != nil {
			return session.GroupMetadata{}, errors.Wrapf(err, "failed to load channel %s", groupID)
		}
	}
	if ch.GuildID == "" {
		return session.GroupMetadata{}, errors.Errorf("channel %s is not in a guild", groupID)
	}
	g, err := s.dg.State.Guild(ch.GuildID)
	if err != nil {
		g, err = s.dg.Guild(ch.GuildID, discordgo.WithContext(ctx))
		if err != nil {
			return session.GroupMetadata{}, errors.Wrapf(err, "failed to load guild %s", ch.GuildID)
		}
	}
	return groupMetadata(ch, g), nil
}

// MarkRead is a no-op: bot accounts have no read state.
func (s *Session) MarkRead(ctx context.Context, keys []session.MessageKey) error {
	return nil
}

func (s *Session) DownloadMedia(ctx context.Context, m *session.Media) ([]byte, error) {
	if m == nil || m.URL == "" {
		return nil, errors.New("no media to download")
	}
	return media.Fetch(ctx, s.http, m.URL, s.limit)
}
