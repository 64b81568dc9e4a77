package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Rayan1605/MainChatApplication/internal/models"
)

const messagesCollection = "messages"

// MongoStore keeps messages in the "messages" collection keyed by ObjectID.
type MongoStore struct {
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, collection: db.Collection(messagesCollection)}
}

func (s *MongoStore) UpdateMessageReaction(ctx context.Context, messageID string, senderName string, kind models.ReactionKind, action models.ReactionAction) error {
	id, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, reactionPipeline(senderName, kind, action))
	if err != nil {
		return fmt.Errorf("update reaction on %s: %w", messageID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	return nil
}

func (s *MongoStore) MarkMessageAsDeleted(ctx context.Context, messageID primitive.ObjectID, kind models.DeletionKind) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": messageID}, deletionUpdate(kind))
	if err != nil {
		return fmt.Errorf("mark %s deleted: %w", messageID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID.Hex())
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// reactionPipeline drops senderName's current reaction and, for an add,
// appends the new one, in a single update.
func reactionPipeline(senderName string, kind models.ReactionKind, action models.ReactionAction) mongo.Pipeline {
	others := bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$reaction", bson.A{}}},
		"as":    "r",
		"cond":  bson.M{"$ne": bson.A{"$$r.senderName", senderName}},
	}}

	reactions := interface{}(others)
	if action == models.ReactionAdd {
		reactions = bson.M{"$concatArrays": bson.A{
			others,
			bson.A{bson.M{"senderName": senderName, "type": string(kind)}},
		}}
	}
	return mongo.Pipeline{{{Key: "$set", Value: bson.M{"reaction": reactions}}}}
}

func deletionUpdate(kind models.DeletionKind) bson.M {
	if kind == models.DeleteForEveryone {
		return bson.M{"$set": bson.M{"deleteForEveryone": true, "deleteForMe": true}}
	}
	return bson.M{"$set": bson.M{"deleteForMe": true}}
}
