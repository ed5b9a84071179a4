// Package repository provides the durable stores backing conversations,
// messages and users. The interfaces exist so the service and transport
// layers can be exercised against in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

type ConversationStore interface {
	// FindOrCreateDirect returns the unique 1:1 conversation between the two
	// users, creating it when absent. Participant order is irrelevant and
	// concurrent identical calls yield the same conversation.
	FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID, title string, memberIDs []string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	UpdateTitle(ctx context.Context, id, requesterID, title string) (*models.Conversation, error)
	AddMember(ctx context.Context, id, requesterID, userID string) (*models.Conversation, error)
	// RemoveMember deletes the conversation when membership would drop below
	// two; the returned bool reports that deletion.
	RemoveMember(ctx context.Context, id, requesterID, userID string) (*models.Conversation, bool, error)
	TouchLastMessageAt(ctx context.Context, id string, at time.Time) error
}

type MessageStore interface {
	Append(ctx context.Context, conversationID, senderID, text string, attachments []models.Attachment) (*models.Message, error)
	// Page returns up to limit messages older than the cursor, in
	// chronological order. before may be a message id or a timestamp;
	// invalid cursors are ignored.
	Page(ctx context.Context, conversationID string, limit int64, before string) ([]*models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
	UnreadCount(ctx context.Context, conversationID, userID string) (int64, error)
	Latest(ctx context.Context, conversationID string) (*models.Message, error)
}

type UserUpdate struct {
	Username   string
	StatusText string
	AvatarURL  string
	Password   string
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByCredential(ctx context.Context, emailOrUsername, password string) (*models.User, error)
	Create(ctx context.Context, username, email, password string) (*models.User, error)
	Search(ctx context.Context, query string, limit int64) ([]*models.User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*models.User, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}
