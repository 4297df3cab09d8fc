package wire

import (
	"encoding/base64"
	"encoding/json"
)

// Message is the closed set of inbound message variants. Parse classifies
// every channel frame into exactly one of these, so the session router can
// be a total switch instead of a chain of optional-field probes.
type Message interface {
	isMessage()
}

// Init acknowledges conversation initiation and assigns the conversation ID.
type Init struct {
	ConversationID string
}

// Audio carries one decoded (base64-stripped) audio chunk for playback.
type Audio struct {
	Data    []byte
	EventID int
}

// AgentTranscript is a final utterance spoken by the agent.
type AgentTranscript struct {
	Text string
}

// UserTranscript is an interim or final recognition of the user's speech.
type UserTranscript struct {
	Text    string
	IsFinal bool
}

// Ping is a keepalive probe that must be answered immediately.
type Ping struct {
	EventID int
}

// Interruption signals that the user spoke over the agent; queued playback
// must be discarded.
type Interruption struct{}

// ServerError is a remote-reported error. It does not end the session.
type ServerError struct {
	Message string
}

// SessionEnd signals that the remote agent closed the conversation.
type SessionEnd struct{}

// Unknown is any unrecognized or malformed message. Ignored, never fatal.
type Unknown struct {
	Type string
}

func (Init) isMessage()            {}
func (Audio) isMessage()           {}
func (AgentTranscript) isMessage() {}
func (UserTranscript) isMessage()  {}
func (Ping) isMessage()            {}
func (Interruption) isMessage()    {}
func (ServerError) isMessage()     {}
func (SessionEnd) isMessage()      {}
func (Unknown) isMessage()         {}

// rawMessage covers every field any known variant may carry. Both the flat
// and the event-nested layouts are recognized; servers differ in which one
// they emit.
type rawMessage struct {
	Type string `json:"type"`

	ConversationID string `json:"conversation_id"`
	InitMetadata   *struct {
		ConversationID string `json:"conversation_id"`
	} `json:"conversation_initiation_metadata_event"`

	AudioBase64 string `json:"audio_base_64"`
	AudioField  string `json:"audio"`
	AudioEvent  *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event"`

	AgentResponse      string `json:"agent_response"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`

	UserTranscript      string `json:"user_transcript"`
	IsFinal             *bool  `json:"is_final"`
	UserTranscriptEvent *struct {
		UserTranscript string `json:"user_transcript"`
		IsFinal        *bool  `json:"is_final"`
	} `json:"user_transcription_event"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event"`
	EventID int `json:"event_id"`

	Error   string `json:"error"`
	Message string `json:"message"`
}

// Parse classifies an inbound channel frame. Malformed JSON and unknown
// types both map to Unknown; forward compatibility wins over strictness.
func Parse(data []byte) Message {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Unknown{}
	}

	switch raw.Type {
	case "conversation_initiation_metadata":
		id := raw.ConversationID
		if id == "" && raw.InitMetadata != nil {
			id = raw.InitMetadata.ConversationID
		}
		return Init{ConversationID: id}

	case "audio":
		payload := raw.AudioBase64
		eventID := raw.EventID
		if payload == "" && raw.AudioEvent != nil {
			payload = raw.AudioEvent.AudioBase64
			eventID = raw.AudioEvent.EventID
		}
		if payload == "" {
			payload = raw.AudioField
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil || len(decoded) == 0 {
			return Unknown{Type: raw.Type}
		}
		return Audio{Data: decoded, EventID: eventID}

	case "agent_response":
		text := raw.AgentResponse
		if text == "" && raw.AgentResponseEvent != nil {
			text = raw.AgentResponseEvent.AgentResponse
		}
		return AgentTranscript{Text: text}

	case "user_transcript":
		text := raw.UserTranscript
		isFinal := true
		if raw.IsFinal != nil {
			isFinal = *raw.IsFinal
		}
		if text == "" && raw.UserTranscriptEvent != nil {
			text = raw.UserTranscriptEvent.UserTranscript
			if raw.UserTranscriptEvent.IsFinal != nil {
				isFinal = *raw.UserTranscriptEvent.IsFinal
			}
		}
		return UserTranscript{Text: text, IsFinal: isFinal}

	case "ping":
		eventID := raw.EventID
		if raw.PingEvent != nil {
			eventID = raw.PingEvent.EventID
		}
		return Ping{EventID: eventID}

	case "interruption":
		return Interruption{}

	case "error":
		msg := raw.Error
		if msg == "" {
			msg = raw.Message
		}
		return ServerError{Message: msg}

	case "conversation_ended":
		return SessionEnd{}

	default:
		return Unknown{Type: raw.Type}
	}
}
