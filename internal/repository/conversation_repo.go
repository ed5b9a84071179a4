package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

type MongoConversationStore struct {
	coll *mongo.Collection
}

func NewMongoConversationStore(coll *mongo.Collection) *MongoConversationStore {
	return &MongoConversationStore{coll: coll}
}

// DirectKey normalizes a participant pair into the order-independent key
// stored on 1:1 conversations.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

func (s *MongoConversationStore) FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	if !primitive.IsValidObjectID(userA) || !primitive.IsValidObjectID(userB) || userA == userB {
		return nil, apperrors.ErrValidation
	}
	key := DirectKey(userA, userB)

	var existing models.Conversation
	err := s.coll.FindOne(ctx, bson.M{"direct_key": key}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		Participants:  []string{userA, userB},
		IsGroup:       false,
		DirectKey:     key,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := s.coll.InsertOne(ctx, conv)
	if err != nil {
		// Lost the race against an identical request: the unique index on
		// direct_key rejected the insert, so the winner's document exists.
		if mongo.IsDuplicateKeyError(err) {
			var won models.Conversation
			if ferr := s.coll.FindOne(ctx, bson.M{"direct_key": key}).Decode(&won); ferr == nil {
				return &won, nil
			}
		}
		return nil, err
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

func (s *MongoConversationStore) CreateGroup(ctx context.Context, creatorID, title string, memberIDs []string) (*models.Conversation, error) {
	if title == "" {
		return nil, apperrors.ErrValidation
	}
	seen := make(map[string]struct{}, len(memberIDs)+1)
	uniq := make([]string, 0, len(memberIDs)+1)
	for _, id := range append(memberIDs, creatorID) {
		if !primitive.IsValidObjectID(id) {
			return nil, apperrors.ErrValidation
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) < 3 {
		return nil, apperrors.ErrValidation
	}

	now := time.Now().UTC()
	conv := &models.Conversation{
		Participants:  uniq,
		IsGroup:       true,
		Title:         title,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := s.coll.InsertOne(ctx, conv)
	if err != nil {
		return nil, err
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

func (s *MongoConversationStore) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (s *MongoConversationStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.ErrValidation
	}
	var c models.Conversation
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// group fetches a group conversation and checks the requester is a member.
func (s *MongoConversationStore) group(ctx context.Context, id, requesterID string) (*models.Conversation, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup {
		return nil, apperrors.ErrNotFound
	}
	if !conv.HasParticipant(requesterID) {
		return nil, apperrors.ErrForbidden
	}
	return conv, nil
}

func (s *MongoConversationStore) UpdateTitle(ctx context.Context, id, requesterID, title string) (*models.Conversation, error) {
	conv, err := s.group(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = s.coll.UpdateByID(ctx, conv.ID, bson.M{"$set": bson.M{"title": title, "updated_at": now}})
	if err != nil {
		return nil, err
	}
	conv.Title = title
	conv.UpdatedAt = now
	return conv, nil
}

func (s *MongoConversationStore) AddMember(ctx context.Context, id, requesterID, userID string) (*models.Conversation, error) {
	if !primitive.IsValidObjectID(userID) {
		return nil, apperrors.ErrValidation
	}
	conv, err := s.group(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	_, err = s.coll.UpdateByID(ctx, conv.ID, bson.M{
		"$addToSet": bson.M{"participants": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *MongoConversationStore) RemoveMember(ctx context.Context, id, requesterID, userID string) (*models.Conversation, bool, error) {
	if !primitive.IsValidObjectID(userID) {
		return nil, false, apperrors.ErrValidation
	}
	conv, err := s.group(ctx, id, requesterID)
	if err != nil {
		return nil, false, err
	}
	_, err = s.coll.UpdateByID(ctx, conv.ID, bson.M{
		"$pull": bson.M{"participants": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, false, err
	}
	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	// A group must not linger with fewer than two members.
	if len(updated.Participants) < 2 {
		if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": updated.ID}); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	return updated, false, nil
}

func (s *MongoConversationStore) TouchLastMessageAt(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.ErrValidation
	}
	_, err = s.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"last_message_at": at.UTC()}})
	return err
}
