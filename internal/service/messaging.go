// Package service holds the send and read-receipt pipelines shared by the
// websocket session handler and the REST gateway, so both surfaces persist
// and fan out identically.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/metrics"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/protocol"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/repository"
)

// Broadcaster delivers an already-framed event to every connection in a
// conversation's room. *ws.Hub implements it.
type Broadcaster interface {
	Broadcast(conversationID string, event []byte)
}

// EventPublisher emits domain events after persistence. *events.Producer
// implements it; nil disables publishing.
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, msg *models.PopulatedMessage) error
}

type Messaging struct {
	convs     repository.ConversationStore
	msgs      repository.MessageStore
	users     repository.UserStore
	rooms     Broadcaster
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
}

func NewMessaging(convs repository.ConversationStore, msgs repository.MessageStore, users repository.UserStore,
	rooms Broadcaster, publisher EventPublisher, m *metrics.Metrics, log *zap.SugaredLogger) *Messaging {
	return &Messaging{
		convs:     convs,
		msgs:      msgs,
		users:     users,
		rooms:     rooms,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// Send runs the full authorize -> persist -> fan-out sequence for one
// logical send. The room broadcast happens strictly after the append
// returns, so no connection ever sees a message that is not durable. The
// returned populated message is what the caller acknowledges with.
func (s *Messaging) Send(ctx context.Context, senderID, conversationID, text string, attachments []models.Attachment) (*models.PopulatedMessage, error) {
	for _, a := range attachments {
		if !a.ValidKind() || a.URL == "" {
			return nil, apperrors.ErrValidation
		}
	}

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperrors.ErrForbidden
	}

	msg, err := s.msgs.Append(ctx, conv.ID.Hex(), senderID, text, attachments)
	if err != nil {
		return nil, err
	}
	if err := s.convs.TouchLastMessageAt(ctx, conv.ID.Hex(), msg.CreatedAt); err != nil {
		s.log.Warnw("touch last_message_at failed", "conversation", conv.ID.Hex(), "err", err)
	}

	populated := s.populate(ctx, msg)

	s.rooms.Broadcast(conv.ID.Hex(), protocol.Marshal(protocol.EventNewMessage, "", populated))
	if s.metrics != nil {
		s.metrics.MessagesSent.Inc()
		s.metrics.EventsBroadcast.Inc()
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMessageSent(ctx, populated); err != nil {
			s.log.Warnw("publish message_sent failed", "message", populated.ID.Hex(), "err", err)
		}
	}
	return populated, nil
}

// MarkRead records the reader on every unread message from other senders
// and tells the whole room, reader included. Both the socket and REST
// paths go through here.
func (s *Messaging) MarkRead(ctx context.Context, readerID, conversationID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return apperrors.ErrForbidden
	}

	if err := s.msgs.MarkRead(ctx, conv.ID.Hex(), readerID); err != nil {
		return err
	}
	s.rooms.Broadcast(conv.ID.Hex(), protocol.Marshal(protocol.EventMarkedRead, "",
		protocol.MarkedReadEvent{ConversationID: conv.ID.Hex(), UserID: readerID}))
	if s.metrics != nil {
		s.metrics.EventsBroadcast.Inc()
	}
	return nil
}

// populate resolves the sender's display profile. A directory miss is not
// fatal: the message still carries the sender id.
func (s *Messaging) populate(ctx context.Context, msg *models.Message) *models.PopulatedMessage {
	out := &models.PopulatedMessage{Message: *msg, From: models.SenderProfile{ID: msg.SenderID}}
	u, err := s.users.FindByID(ctx, msg.SenderID)
	if err != nil {
		s.log.Warnw("populate sender failed", "sender", msg.SenderID, "err", err)
		return out
	}
	out.From = u.Profile()
	return out
}
