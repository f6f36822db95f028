package realtime

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/zfogg/nearby/cli/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventType is the "type" field of a server frame.
type EventType string

const (
	TypeMessageAdded       EventType = "message.added"
	TypeMessageUpdated     EventType = "message.updated"
	TypeMessageRemoved     EventType = "message.removed"
	TypeParticipantChanged EventType = "participant.changed"
	TypeHeartbeat          EventType = "heartbeat"
	TypePong               EventType = "pong"
)

// Event is a conversation change pushed by the server. The concrete types
// below are the only implementations; switch on them.
type Event interface {
	Conversation() string
	event()
}

// MessageAdded carries a new message.
type MessageAdded struct {
	ConversationID string
	Message        api.Message
}

// MessageUpdated carries an edited message.
type MessageUpdated struct {
	ConversationID string
	Message        api.Message
}

// MessageRemoved names a deleted message.
type MessageRemoved struct {
	ConversationID string
	MessageID      string
}

// ParticipantChanged reports a user joining or leaving.
type ParticipantChanged struct {
	ConversationID string
	User           api.User
	Joined         bool
}

func (e MessageAdded) Conversation() string       { return e.ConversationID }
func (e MessageUpdated) Conversation() string     { return e.ConversationID }
func (e MessageRemoved) Conversation() string     { return e.ConversationID }
func (e ParticipantChanged) Conversation() string { return e.ConversationID }

func (MessageAdded) event()       {}
func (MessageUpdated) event()     {}
func (MessageRemoved) event()     {}
func (ParticipantChanged) event() {}

// frame is the wire form of every server message.
type frame struct {
	Type           EventType    `json:"type"`
	ConversationID string       `json:"conversationId,omitempty"`
	Message        *api.Message `json:"message,omitempty"`
	MessageID      string       `json:"messageId,omitempty"`
	Participant    *api.User    `json:"participant,omitempty"`
	Joined         bool         `json:"joined,omitempty"`
}

// errIgnored marks frames that carry no event, such as pongs.
var errIgnored = fmt.Errorf("realtime: frame carries no event")

// Decode parses one frame.
func Decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	switch f.Type {
	case TypeMessageAdded, TypeMessageUpdated:
		if f.Message == nil {
			return nil, fmt.Errorf("%s frame without message", f.Type)
		}
		conv := f.ConversationID
		if conv == "" {
			conv = f.Message.ConversationID
		}
		if f.Type == TypeMessageAdded {
			return MessageAdded{ConversationID: conv, Message: *f.Message}, nil
		}
		return MessageUpdated{ConversationID: conv, Message: *f.Message}, nil
	case TypeMessageRemoved:
		if f.MessageID == "" {
			return nil, fmt.Errorf("%s frame without messageId", f.Type)
		}
		return MessageRemoved{ConversationID: f.ConversationID, MessageID: f.MessageID}, nil
	case TypeParticipantChanged:
		if f.Participant == nil {
			return nil, fmt.Errorf("%s frame without participant", f.Type)
		}
		return ParticipantChanged{ConversationID: f.ConversationID, User: *f.Participant, Joined: f.Joined}, nil
	case TypeHeartbeat, TypePong:
		return nil, errIgnored
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
