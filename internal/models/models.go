package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AttachmentImage = "image"
	AttachmentAudio = "audio"
	AttachmentVideo = "video"
	AttachmentFile  = "file"
)

type Attachment struct {
	Kind     string `bson:"type" json:"type"`
	URL      string `bson:"url" json:"url"`
	FileName string `bson:"file_name,omitempty" json:"fileName,omitempty"`
	Size     int64  `bson:"size,omitempty" json:"size,omitempty"`
	Mime     string `bson:"mime,omitempty" json:"mime,omitempty"`
}

func (a Attachment) ValidKind() bool {
	switch a.Kind {
	case AttachmentImage, AttachmentAudio, AttachmentVideo, AttachmentFile:
		return true
	}
	return false
}

type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Participants []string           `bson:"participants" json:"participants"`
	IsGroup      bool               `bson:"is_group" json:"isGroup"`
	Title        string             `bson:"title,omitempty" json:"title,omitempty"`
	// DirectKey is the normalized "lowID:highID" pair for 1:1 conversations,
	// unset for groups. A unique sparse index on it makes concurrent
	// identical create requests converge on one document.
	DirectKey     string    `bson:"direct_key,omitempty" json:"-"`
	LastMessageAt time.Time `bson:"last_message_at" json:"lastMessageAt"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversationId"`
	SenderID       string             `bson:"sender_id" json:"senderId"`
	Text           string             `bson:"text" json:"text"`
	Attachments    []Attachment       `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReadBy         []string           `bson:"read_by,omitempty" json:"readBy,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

// SenderProfile is the display-safe subset of a user attached to outbound
// messages.
type SenderProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// PopulatedMessage is a Message with its sender resolved for delivery.
type PopulatedMessage struct {
	Message
	From SenderProfile `json:"from"`
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	AvatarURL    string             `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	StatusText   string             `bson:"status_text,omitempty" json:"statusText,omitempty"`
	LastSeen     time.Time          `bson:"last_seen,omitempty" json:"lastSeen,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (u *User) Profile() SenderProfile {
	return SenderProfile{ID: u.ID.Hex(), Username: u.Username, AvatarURL: u.AvatarURL}
}
