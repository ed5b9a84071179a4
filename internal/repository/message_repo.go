package repository

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

const DefaultPageLimit = 50

const (
	// maxClampEntries bounds the created_at clamp map in long-lived
	// processes. Entries older than clampHorizon are past any realistic
	// clock step and safe to forget.
	maxClampEntries = 4096
	clampHorizon    = time.Minute
)

type MongoMessageStore struct {
	coll *mongo.Collection

	// lastAt guards created_at against clock regression so concurrent
	// appends to the same conversation stay monotonically non-decreasing.
	mu     sync.Mutex
	lastAt map[string]time.Time
}

func NewMongoMessageStore(coll *mongo.Collection) *MongoMessageStore {
	return &MongoMessageStore{coll: coll, lastAt: make(map[string]time.Time)}
}

func (s *MongoMessageStore) assignCreatedAt(conversationID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if last, ok := s.lastAt[conversationID]; ok && now.Before(last) {
		now = last
	}
	if len(s.lastAt) >= maxClampEntries {
		s.evictClampEntries(now)
	}
	s.lastAt[conversationID] = now
	return now
}

// evictClampEntries drops clamp entries, stale ones first, until the map
// is back under the cap. Called with mu held.
func (s *MongoMessageStore) evictClampEntries(now time.Time) {
	for id, at := range s.lastAt {
		if now.Sub(at) > clampHorizon {
			delete(s.lastAt, id)
		}
	}
	for id := range s.lastAt {
		if len(s.lastAt) < maxClampEntries {
			break
		}
		delete(s.lastAt, id)
	}
}

func (s *MongoMessageStore) Append(ctx context.Context, conversationID, senderID, text string, attachments []models.Attachment) (*models.Message, error) {
	m := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Attachments:    attachments,
		CreatedAt:      s.assignCreatedAt(conversationID),
	}
	res, err := s.coll.InsertOne(ctx, m)
	if err != nil {
		return nil, err
	}
	m.ID = res.InsertedID.(primitive.ObjectID)
	return m, nil
}

func (s *MongoMessageStore) Page(ctx context.Context, conversationID string, limit int64, before string) ([]*models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	filter := bson.M{"conversation_id": conversationID}
	if oid, at, isID := parseBeforeCursor(before); isID {
		var anchor models.Message
		if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&anchor); err == nil {
			filter["created_at"] = bson.M{"$lt": anchor.CreatedAt}
		}
		// unknown message id: ignore the cursor
	} else if !at.IsZero() {
		filter["created_at"] = bson.M{"$lt": at}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	// chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MongoMessageStore) MarkRead(ctx context.Context, conversationID, readerID string) error {
	_, err := s.coll.UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": readerID},
			"read_by":         bson.M{"$ne": readerID},
		},
		bson.M{"$addToSet": bson.M{"read_by": readerID}},
	)
	return err
}

func (s *MongoMessageStore) UnreadCount(ctx context.Context, conversationID, userID string) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": userID},
		"read_by":         bson.M{"$ne": userID},
	})
}

func (s *MongoMessageStore) Latest(ctx context.Context, conversationID string) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var m models.Message
	err := s.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
