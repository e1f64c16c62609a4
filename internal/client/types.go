package client

// Chat is a conversation summary as the session reports it. Rebuilt per
// request, never cached beyond the request.
type Chat struct {
	ID              string
	Name            string
	IsGroup         bool
	UnreadCount     int
	UnreadMentions  int
	Timestamp       int64 // unix seconds of the last activity
	LastMessageBody string
	Participants    []Participant // groups only
}

// Participant is one group member with its admin flags.
type Participant struct {
	ID           string
	IsAdmin      bool
	IsSuperAdmin bool
}

// Group is the detailed view of a group chat.
type Group struct {
	ID             string
	Name           string
	Description    string
	OwnerID        string
	CreatedAt      int64
	Participants   []Participant
	UnreadCount    int
	IsReadOnly     bool
	IsMuted        bool
	MuteExpiration int64
}

// Message is a single chat message as the session reports it.
type Message struct {
	ID           string
	ChatID       string
	AuthorID     string // sender within a group; empty for direct chats
	Body         string
	FromMe       bool
	Timestamp    int64 // unix seconds
	Kind         string
	HasMedia     bool
	MentionedIDs []string
	NotifyName   string // name the sender declared on this message, if any
	QuotedID     string // id of the replied-to message, empty if none
}

// Contact is the identity the session holds for a participant. Any of
// the names may be empty.
type Contact struct {
	PushName  string
	FullName  string
	ShortName string
}

// Media is an inline payload for sending or the result of a download.
type Media struct {
	Data     []byte
	Mimetype string
	Filename string
}

// ParticipantChange selects a group membership mutation.
type ParticipantChange string

const (
	ParticipantAdd     ParticipantChange = "add"
	ParticipantRemove  ParticipantChange = "remove"
	ParticipantPromote ParticipantChange = "promote"
	ParticipantDemote  ParticipantChange = "demote"
)
