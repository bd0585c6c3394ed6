package session

import (
	"slices"
	"time"
)

// MessageKey identifies a message within a chat.
type MessageKey struct {
	RemoteJID   string // chat the message belongs to
	ID          string
	Participant string // author inside a group; empty in direct chats
	FromMe      bool
}

// MessageKind is the content type of a message.
type MessageKind string

const (
	KindConversation MessageKind = "conversation"
	KindExtendedText MessageKind = "extendedText"
	KindImage        MessageKind = "image"
	KindVideo        MessageKind = "video"
	KindAudio        MessageKind = "audio"
	KindSticker      MessageKind = "sticker"
	KindDocument     MessageKind = "document"
	KindContact      MessageKind = "contact"
	KindLocation     MessageKind = "location"
	KindReaction     MessageKind = "reaction"
	KindUnknown      MessageKind = "unknown"
)

// Media describes downloadable content attached to a message.
type Media struct {
	Kind     MessageKind
	URL      string
	Mimetype string
	FileName string
	Width    int
	Height   int
	Seconds  int
	Size     int64
	// LocalPath is set by transports that already hold the bytes on disk.
	LocalPath string
}

// Quoted is the message a reply refers to.
type Quoted struct {
	ID    string
	Kind  MessageKind
	Text  string
	Media *Media
}

// Message is an inbound chat message.
type Message struct {
	Key        MessageKey
	Group      bool
	PushName   string
	Timestamp  time.Time
	Kind       MessageKind
	Text       string // body, caption, or extended text
	Media      *Media
	Quoted     *Quoted
	Expiration time.Duration
	Broadcast  bool
}

// Chat returns where replies should go.
func (m Message) Chat() string { return m.Key.RemoteJID }

// Sender returns the author of the message.
func (m Message) Sender() string {
	if m.Group && m.Key.Participant != "" {
		return m.Key.Participant
	}
	return m.Key.RemoteJID
}

// HasContent reports whether there is anything to process.
func (m Message) HasContent() bool {
	return m.Text != "" || m.Media != nil || m.Quoted != nil
}

// QuotedMedia returns the quoted message's media if it is of kind k.
func (m Message) QuotedMedia(k MessageKind) *Media {
	if m.Quoted == nil || m.Quoted.Media == nil || m.Quoted.Kind != k {
		return nil
	}
	return m.Quoted.Media
}

// OwnMedia returns the message's own media if it is of kind k.
func (m Message) OwnMedia(k MessageKind) *Media {
	if m.Media == nil || m.Kind != k {
		return nil
	}
	return m.Media
}

// Content is an outbound message body. Exactly one of the payload fields is
// expected to be set; Caption applies to Image and Video.
type Content struct {
	Text     string
	Image    []byte
	Video    []byte
	Audio    []byte
	Sticker  []byte
	Caption  string
	Mimetype string
	FileName string
}

// IsEmpty reports whether c carries no payload.
func (c Content) IsEmpty() bool {
	return c.Text == "" && len(c.Image) == 0 && len(c.Video) == 0 && len(c.Audio) == 0 && len(c.Sticker) == 0
}

// SendOptions modify how a message is delivered.
type SendOptions struct {
	Quoted    *Message
	Ephemeral time.Duration
}

// Participant admin levels.
const (
	AdminNone  = ""
	AdminAdmin = "admin"
	AdminSuper = "superadmin"
)

type Participant struct {
	ID    string
	Admin string
}

// GroupMetadata describes a group chat.
type GroupMetadata struct {
	ID           string
	Subject      string
	Participants []Participant
}

// Admins lists participants with admin or superadmin rights.
func (g GroupMetadata) Admins() []string {
	var admins []string
	for _, p := range g.Participants {
		if p.Admin == AdminAdmin || p.Admin == AdminSuper {
			admins = append(admins, p.ID)
		}
	}
	return admins
}

// IsAdmin reports whether id is a group admin.
func (g GroupMetadata) IsAdmin(id string) bool {
	return slices.Contains(g.Admins(), id)
}

// Credentials is the persisted login state of a transport.
type Credentials struct {
	Account   string            `cbor:"account"`
	Token     string            `cbor:"token"`
	Keys      map[string]string `cbor:"keys,omitempty"`
	UpdatedAt time.Time         `cbor:"updated_at"`
}

// IsZero reports whether no credentials have been stored yet.
func (c Credentials) IsZero() bool {
	return c.Account == "" && c.Token == "" && len(c.Keys) == 0
}
