package session

// EventName identifies an event kind on the session.
type EventName string

const (
	EventConnectionUpdate   EventName = "connection.update"
	EventCredentialsUpdate  EventName = "creds.update"
	EventMessagesUpsert     EventName = "messages.upsert"
	EventGroupsUpdate       EventName = "groups.update"
	EventParticipantsUpdate EventName = "group-participants.update"
	EventChatsUpsert        EventName = "chats.upsert"
	EventContactsUpsert     EventName = "contacts.upsert"
)

// Event is implemented only by the event types in this package.
type Event interface {
	Name() EventName
	isEvent()
}

// Batch is one delivery from a Session. Order is preserved by the Router.
type Batch []Event

// ConnectionState is carried by ConnectionUpdate.
type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClose      ConnectionState = "close"
)

type ConnectionUpdate struct {
	State ConnectionState
	// Err explains a close, when the transport knows why.
	Err error
}

type CredentialsUpdate struct {
	Credentials Credentials
}

type MessagesUpsert struct {
	Messages []Message
}

type GroupsUpdate struct {
	GroupIDs []string
}

// ParticipantAction is what happened to the participants of a group.
type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

type ParticipantsUpdate struct {
	GroupID      string
	Participants []string
	Action       ParticipantAction
}

// ChatsUpsert and ContactsUpsert are accepted and ignored by the bot.
type ChatsUpsert struct {
	ChatIDs []string
}

type ContactsUpsert struct {
	ContactIDs []string
}

func (ConnectionUpdate) Name() EventName   { return EventConnectionUpdate }
func (CredentialsUpdate) Name() EventName  { return EventCredentialsUpdate }
func (MessagesUpsert) Name() EventName     { return EventMessagesUpsert }
func (GroupsUpdate) Name() EventName       { return EventGroupsUpdate }
func (ParticipantsUpdate) Name() EventName { return EventParticipantsUpdate }
func (ChatsUpsert) Name() EventName        { return EventChatsUpsert }
func (ContactsUpsert) Name() EventName     { return EventContactsUpsert }

func (ConnectionUpdate) isEvent()   {}
func (CredentialsUpdate) isEvent()  {}
func (MessagesUpsert) isEvent()     {}
func (GroupsUpdate) isEvent()       {}
func (ParticipantsUpdate) isEvent() {}
func (ChatsUpsert) isEvent()        {}
func (ContactsUpsert) isEvent()     {}
