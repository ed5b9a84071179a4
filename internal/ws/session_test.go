package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/auth"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/presence"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/protocol"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/repository"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/service"
)

type stubConvStore struct {
	convs   map[string]*models.Conversation
	listErr error
}

func (s *stubConvStore) FindOrCreateDirect(ctx context.Context, a, b string) (*models.Conversation, error) {
	panic("not used")
}

func (s *stubConvStore) CreateGroup(ctx context.Context, creatorID, title string, memberIDs []string) (*models.Conversation, error) {
	panic("not used")
}

func (s *stubConvStore) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Conversation
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubConvStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, apperrors.ErrValidation
	}
	if c, ok := s.convs[id]; ok {
		return c, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubConvStore) UpdateTitle(ctx context.Context, id, requesterID, title string) (*models.Conversation, error) {
	panic("not used")
}

func (s *stubConvStore) AddMember(ctx context.Context, id, requesterID, userID string) (*models.Conversation, error) {
	panic("not used")
}

func (s *stubConvStore) RemoveMember(ctx context.Context, id, requesterID, userID string) (*models.Conversation, bool, error) {
	panic("not used")
}

func (s *stubConvStore) TouchLastMessageAt(ctx context.Context, id string, at time.Time) error {
	return nil
}

type stubMsgStore struct {
	msgs []*models.Message
}

func (s *stubMsgStore) Append(ctx context.Context, conversationID, senderID, text string, attachments []models.Attachment) (*models.Message, error) {
	m := &models.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Attachments:    attachments,
		CreatedAt:      time.Now().UTC(),
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *stubMsgStore) Page(ctx context.Context, conversationID string, limit int64, before string) ([]*models.Message, error) {
	panic("not used")
}

func (s *stubMsgStore) MarkRead(ctx context.Context, conversationID, readerID string) error {
	return nil
}

func (s *stubMsgStore) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	return 0, nil
}

func (s *stubMsgStore) Latest(ctx context.Context, conversationID string) (*models.Message, error) {
	return nil, nil
}

type stubUserStore struct {
	users map[string]*models.User
}

func (s *stubUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubUserStore) FindByCredential(ctx context.Context, emailOrUsername, password string) (*models.User, error) {
	panic("not used")
}

func (s *stubUserStore) Create(ctx context.Context, username, email, password string) (*models.User, error) {
	panic("not used")
}

func (s *stubUserStore) Search(ctx context.Context, query string, limit int64) ([]*models.User, error) {
	panic("not used")
}

func (s *stubUserStore) Update(ctx context.Context, id string, upd repository.UserUpdate) (*models.User, error) {
	panic("not used")
}

func (s *stubUserStore) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return nil
}

type sessionFixture struct {
	h     *Handler
	hub   *Hub
	convs *stubConvStore
	msgs  *stubMsgStore
	conv  *models.Conversation
	alice *Client
	bob   *Client
}

// two live clients sharing one conversation, both joined to its room the
// way a real connection is at handshake time
func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	conv := &models.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []string{"alice", "bob"},
	}
	convs := &stubConvStore{convs: map[string]*models.Conversation{conv.ID.Hex(): conv}}
	msgs := &stubMsgStore{}
	aliceID := primitive.NewObjectID()
	users := &stubUserStore{users: map[string]*models.User{
		"alice": {ID: aliceID, Username: "alice"},
	}}

	hub := NewHub()
	registry := presence.NewRegistry()
	log := zap.NewNop().Sugar()
	svc := service.NewMessaging(convs, msgs, users, hub, nil, nil, log)
	tokens := auth.NewTokenManager("session-test-secret", time.Hour)
	h := NewHandler(hub, registry, convs, users, svc, tokens, nil, nil, log, Config{})

	alice := testClient("conn-a", "alice")
	bob := testClient("conn-b", "bob")
	hub.Add(alice)
	hub.Add(bob)
	h.joinRooms("alice", "conn-a")
	h.joinRooms("bob", "conn-b")

	return &sessionFixture{h: h, hub: hub, convs: convs, msgs: msgs, conv: conv, alice: alice, bob: bob}
}

func decodeFrame(t *testing.T, b []byte) protocol.Envelope {
	t.Helper()
	var env protocol.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("bad frame %s: %v", b, err)
	}
	return env
}

func decodeAck(t *testing.T, env protocol.Envelope) (status string, message any) {
	t.Helper()
	if env.Type != protocol.EventAck {
		t.Fatalf("expected ack frame, got %q", env.Type)
	}
	var ack struct {
		Status  string `json:"status"`
		Message any    `json:"message"`
	}
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("bad ack payload: %v", err)
	}
	return ack.Status, ack.Message
}

func sendEnvelope(id, conversationID, text string) protocol.Envelope {
	payload, _ := json.Marshal(protocol.SendMessagePayload{ConversationID: conversationID, Text: text})
	return protocol.Envelope{Type: protocol.EventSendMessage, ID: id, Payload: payload}
}

func TestJoinRoomsSubscribesUserConversations(t *testing.T) {
	f := newSessionFixture(t)

	f.hub.Broadcast(f.conv.ID.Hex(), []byte("ping"))
	if got := drain(f.alice); len(got) != 1 {
		t.Fatalf("alice not joined to her conversation room, got %v", got)
	}
	if got := drain(f.bob); len(got) != 1 {
		t.Fatalf("bob not joined to the conversation room, got %v", got)
	}

	// a listing failure leaves the connection roomless but alive
	f.convs.listErr = errors.New("store down")
	carol := testClient("conn-c", "carol")
	f.hub.Add(carol)
	f.h.joinRooms("carol", "conn-c")
	f.hub.Broadcast(f.conv.ID.Hex(), []byte("ping"))
	if got := drain(carol); len(got) != 0 {
		t.Fatalf("carol should have no rooms after listing failure, got %v", got)
	}
}

func TestSendAcksSenderAndReachesRoom(t *testing.T) {
	f := newSessionFixture(t)

	f.h.handleSend(f.alice, sendEnvelope("req-7", f.conv.ID.Hex(), "hello"))

	// the room broadcast lands first, then the point-to-point ack
	aliceFrames := drain(f.alice)
	if len(aliceFrames) != 2 {
		t.Fatalf("alice expected new_message + ack, got %d frames", len(aliceFrames))
	}
	if env := decodeFrame(t, aliceFrames[0]); env.Type != protocol.EventNewMessage {
		t.Fatalf("first frame to sender should be new_message, got %q", env.Type)
	}
	ackEnv := decodeFrame(t, aliceFrames[1])
	if ackEnv.Ref != "req-7" {
		t.Fatalf("ack ref = %q, want the envelope id req-7", ackEnv.Ref)
	}
	status, message := decodeAck(t, ackEnv)
	if status != protocol.AckOK {
		t.Fatalf("ack status = %q, want ok", status)
	}
	msg, ok := message.(map[string]any)
	if !ok || msg["text"] != "hello" {
		t.Fatalf("ack message wrong: %v", message)
	}
	from, ok := msg["from"].(map[string]any)
	if !ok || from["username"] != "alice" {
		t.Fatalf("ack message not populated with sender: %v", msg["from"])
	}

	// the other participant gets the room event only, no ack
	bobFrames := drain(f.bob)
	if len(bobFrames) != 1 {
		t.Fatalf("bob expected one frame, got %d", len(bobFrames))
	}
	env := decodeFrame(t, bobFrames[0])
	if env.Type != protocol.EventNewMessage {
		t.Fatalf("bob frame type = %q", env.Type)
	}
	var delivered models.PopulatedMessage
	if err := json.Unmarshal(env.Payload, &delivered); err != nil {
		t.Fatalf("bad new_message payload: %v", err)
	}
	if delivered.Text != "hello" || delivered.From.Username != "alice" {
		t.Fatalf("delivered message wrong: %+v", delivered)
	}

	if len(f.msgs.msgs) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(f.msgs.msgs))
	}
}

func TestSendErrorAcks(t *testing.T) {
	f := newSessionFixture(t)

	cases := []struct {
		name   string
		env    protocol.Envelope
		reason string
	}{
		{"missing conversation id", sendEnvelope("r1", "", "x"), "invalid conversationId"},
		{"malformed conversation id", sendEnvelope("r2", "not-hex", "x"), "invalid conversationId"},
		{"unknown conversation", sendEnvelope("r3", primitive.NewObjectID().Hex(), "x"), "conversation not found"},
	}
	for _, tc := range cases {
		f.h.handleSend(f.alice, tc.env)
		frames := drain(f.alice)
		if len(frames) != 1 {
			t.Fatalf("%s: expected one ack frame, got %d", tc.name, len(frames))
		}
		env := decodeFrame(t, frames[0])
		if env.Ref != tc.env.ID {
			t.Fatalf("%s: ack ref = %q, want %q", tc.name, env.Ref, tc.env.ID)
		}
		status, message := decodeAck(t, env)
		if status != protocol.AckError || message != tc.reason {
			t.Fatalf("%s: got %q/%v, want error/%q", tc.name, status, message, tc.reason)
		}
	}

	// an outsider's send is refused without persisting or fanning out
	mallory := testClient("conn-m", "mallory")
	f.hub.Add(mallory)
	f.h.handleSend(mallory, sendEnvelope("r4", f.conv.ID.Hex(), "sneak"))
	frames := drain(mallory)
	if len(frames) != 1 {
		t.Fatalf("outsider expected one ack, got %d", len(frames))
	}
	status, message := decodeAck(t, decodeFrame(t, frames[0]))
	if status != protocol.AckError || message != "forbidden" {
		t.Fatalf("outsider ack = %q/%v", status, message)
	}
	if len(f.msgs.msgs) != 0 {
		t.Fatal("outsider send must not persist")
	}
	if got := drain(f.bob); len(got) != 0 {
		t.Fatalf("outsider send must not reach the room, got %v", got)
	}
}

func TestTypingFansOutExceptSender(t *testing.T) {
	f := newSessionFixture(t)

	payload, _ := json.Marshal(protocol.TypingPayload{ConversationID: f.conv.ID.Hex(), IsTyping: true})
	f.h.handleTyping(f.alice, protocol.Envelope{Type: protocol.EventTyping, Payload: payload})

	if got := drain(f.alice); len(got) != 0 {
		t.Fatalf("typing must not echo to its sender, got %v", got)
	}
	frames := drain(f.bob)
	if len(frames) != 1 {
		t.Fatalf("bob expected one typing frame, got %d", len(frames))
	}
	env := decodeFrame(t, frames[0])
	if env.Type != protocol.EventTyping {
		t.Fatalf("frame type = %q", env.Type)
	}
	var ev protocol.TypingEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		t.Fatalf("bad typing payload: %v", err)
	}
	if ev.UserID != "alice" || ev.ConversationID != f.conv.ID.Hex() {
		t.Fatalf("typing event wrong: %+v", ev)
	}

	// malformed payloads are dropped silently
	f.h.handleTyping(f.alice, protocol.Envelope{Type: protocol.EventTyping, Payload: []byte(`{`)})
	if got := drain(f.bob); len(got) != 0 {
		t.Fatalf("malformed typing should be ignored, got %v", got)
	}
}

func TestMarkReadBroadcastsToWholeRoom(t *testing.T) {
	f := newSessionFixture(t)

	payload, _ := json.Marshal(protocol.MarkReadPayload{ConversationID: f.conv.ID.Hex()})
	f.h.handleMarkRead(f.bob, protocol.Envelope{Type: protocol.EventMarkRead, Payload: payload})

	for name, c := range map[string]*Client{"alice": f.alice, "bob": f.bob} {
		frames := drain(c)
		if len(frames) != 1 {
			t.Fatalf("%s expected one marked_read frame, got %d", name, len(frames))
		}
		env := decodeFrame(t, frames[0])
		if env.Type != protocol.EventMarkedRead {
			t.Fatalf("%s frame type = %q", name, env.Type)
		}
		var ev protocol.MarkedReadEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			t.Fatalf("bad marked_read payload: %v", err)
		}
		if ev.UserID != "bob" || ev.ConversationID != f.conv.ID.Hex() {
			t.Fatalf("%s marked_read event wrong: %+v", name, ev)
		}
	}
}
