// Package wire defines the JSON envelopes exchanged over the conversation
// channel: outbound frame/control encoding and inbound message parsing.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/voicebridge/voice-client/internal/audio"
)

// audioChunkEnvelope carries one captured frame to the agent.
type audioChunkEnvelope struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// initiationEnvelope opens the conversation with caller-supplied variables.
type initiationEnvelope struct {
	Type string         `json:"type"`
	Data initiationData `json:"conversation_initiation_client_data"`
}

type initiationData struct {
	DynamicVariables map[string]string `json:"dynamic_variables"`
}

// userInputEnvelope carries typed text on the accessibility path.
type userInputEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// pongEnvelope answers a keepalive ping.
type pongEnvelope struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id,omitempty"`
}

// EncodeAudioFrame converts one captured frame to its wire form: PCM16
// little-endian, base64, wrapped in a user-audio envelope. One frame in,
// one envelope out; no state is kept across frames.
func EncodeAudioFrame(frame []float32) ([]byte, error) {
	pcm := audio.FloatToPCM16(frame)
	payload := base64.StdEncoding.EncodeToString(audio.SamplesToBytes(pcm))
	data, err := json.Marshal(audioChunkEnvelope{UserAudioChunk: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audio envelope: %w", err)
	}
	return data, nil
}

// InitiationEnvelope builds the one-time conversation initiation message.
func InitiationEnvelope(dynamicVariables map[string]string) ([]byte, error) {
	data, err := json.Marshal(initiationEnvelope{
		Type: "conversation_initiation_client_data",
		Data: initiationData{DynamicVariables: dynamicVariables},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiation envelope: %w", err)
	}
	return data, nil
}

// UserInputEnvelope builds a text input message.
func UserInputEnvelope(text string) ([]byte, error) {
	data, err := json.Marshal(userInputEnvelope{Type: "user_input", Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user input envelope: %w", err)
	}
	return data, nil
}

// PongEnvelope builds a keepalive reply. eventID echoes the ping's event
// identifier when the server supplied one; zero omits the field.
func PongEnvelope(eventID int) ([]byte, error) {
	data, err := json.Marshal(pongEnvelope{Type: "pong", EventID: eventID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pong envelope: %w", err)
	}
	return data, nil
}
