// Package protocol defines the JSON event envelope exchanged over live
// connections. Inbound payloads are decoded into fixed per-kind structs at
// the boundary; dispatch never sees loose maps.
package protocol

import (
	"encoding/json"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

// Inbound event kinds.
const (
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventMarkRead    = "mark_read"
)

// Outbound event kinds.
const (
	EventNewMessage  = "new_message"
	EventMarkedRead  = "marked_read"
	EventOnlineUsers = "online_users"
	EventAck         = "ack"
)

// Envelope is the frame for every event in both directions. Inbound frames
// may carry an ID which the point-to-point ack echoes back in Ref, making
// the request/response correlation explicit.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	ConversationID string              `json:"conversationId"`
	Text           string              `json:"text"`
	Attachments    []models.Attachment `json:"attachments"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversationId"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MarkedReadEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

const (
	AckOK    = "ok"
	AckError = "error"
)

// Ack mirrors the original wire shape: Message holds the populated message
// on success and the human-readable reason on error.
type Ack struct {
	Status  string `json:"status"`
	Message any    `json:"message,omitempty"`
}

// Marshal frames an outbound event. Marshaling our own payload types
// cannot fail; errors would indicate a programming bug, so the frame is
// built with the payload omitted in that case.
func Marshal(eventType, ref string, payload any) []byte {
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	b, _ := json.Marshal(Envelope{Type: eventType, Ref: ref, Payload: raw})
	return b
}

func OkAck(ref string, msg *models.PopulatedMessage) []byte {
	return Marshal(EventAck, ref, Ack{Status: AckOK, Message: msg})
}

func ErrorAck(ref, reason string) []byte {
	return Marshal(EventAck, ref, Ack{Status: AckError, Message: reason})
}
