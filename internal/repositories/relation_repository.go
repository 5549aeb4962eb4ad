package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/relations"
)

type relationLayout struct {
	collection  string
	actorField  string
	targetField string
}

var relationLayouts = map[relations.Kind]relationLayout{
	relations.KindVideo:   {collection: likesCollection, actorField: "likedBy", targetField: "video"},
	relations.KindComment: {collection: likesCollection, actorField: "likedBy", targetField: "comment"},
	relations.KindTweet:   {collection: likesCollection, actorField: "likedBy", targetField: "tweet"},
	relations.KindChannel: {collection: subscriptionsCollection, actorField: "subscriber", targetField: "channel"},
}

// MongoRelationStore implements relations.Store over the likes and subscriptions
// collections.
type MongoRelationStore struct {
	db *mongo.Database
}

// NewMongoRelationStore constructs a relation store backed by MongoDB.
func NewMongoRelationStore(db *mongo.Database) *MongoRelationStore {
	return &MongoRelationStore{db: db}
}

// Find retrieves the record for the pair.
func (s *MongoRelationStore) Find(ctx context.Context, actor string, kind relations.Kind, target string) (relations.Record, error) {
	layout, filter, err := s.pairFilter(kind, actor, target)
	if err != nil {
		return relations.Record{}, err
	}

	var doc struct {
		ID        primitive.ObjectID `bson:"_id"`
		CreatedAt time.Time          `bson:"createdAt"`
	}
	if err := s.db.Collection(layout.collection).FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return relations.Record{}, relations.ErrRecordNotFound
		}
		return relations.Record{}, fmt.Errorf("find %s relation: %w", kind, err)
	}

	return relations.Record{
		ID:        doc.ID.Hex(),
		Actor:     actor,
		Kind:      kind,
		Target:    target,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Create inserts the record. The unique pair index turns a concurrent insert into
// relations.ErrDuplicateRecord.
func (s *MongoRelationStore) Create(ctx context.Context, record relations.Record) error {
	layout, ok := relationLayouts[record.Kind]
	if !ok {
		return relations.ErrUnknownKind
	}
	ids, err := mustParseIDs(record.ID, record.Actor, record.Target)
	if err != nil {
		return fmt.Errorf("%w: %v", relations.ErrInvalidIdentifier, err)
	}

	doc := bson.D{
		{Key: "_id", Value: ids[0]},
		{Key: layout.actorField, Value: ids[1]},
		{Key: layout.targetField, Value: ids[2]},
		{Key: "createdAt", Value: record.CreatedAt},
		{Key: "updatedAt", Value: record.CreatedAt},
	}
	if _, err := s.db.Collection(layout.collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return relations.ErrDuplicateRecord
		}
		return fmt.Errorf("insert %s relation: %w", record.Kind, err)
	}
	return nil
}

// Delete removes the record.
func (s *MongoRelationStore) Delete(ctx context.Context, record relations.Record) error {
	layout, ok := relationLayouts[record.Kind]
	if !ok {
		return relations.ErrUnknownKind
	}
	oid, ok := parseID(record.ID)
	if !ok {
		return relations.ErrRecordNotFound
	}

	result, err := s.db.Collection(layout.collection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s relation: %w", record.Kind, err)
	}
	if result.DeletedCount == 0 {
		return relations.ErrRecordNotFound
	}
	return nil
}

// LikedVideos returns the videos the user liked, most recent like first, with owners.
func (s *MongoRelationStore) LikedVideos(ctx context.Context, userID string) ([]models.VideoWithOwner, error) {
	user, ok := parseID(userID)
	if !ok {
		return nil, ErrNotFound
	}

	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"likedBy": user, "video": bson.M{"$exists": true}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: videosCollection},
			{Key: "localField", Value: "video"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "likedVideo"},
		}}},
		{{Key: "$unwind", Value: "$likedVideo"}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$likedVideo"}}},
	}, ownerLookup()...)

	cursor, err := s.db.Collection(likesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate liked videos: %w", err)
	}
	var docs []videoWithOwnerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode liked videos: %w", err)
	}

	videos := make([]models.VideoWithOwner, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, doc.model())
	}
	return videos, nil
}

// Subscribers lists the users subscribed to channelID.
func (s *MongoRelationStore) Subscribers(ctx context.Context, channelID string) ([]models.UserSummary, error) {
	return s.subscriptionUsers(ctx, "channel", channelID, "subscriber")
}

// SubscribedChannels lists the channels subscriberID is subscribed to.
func (s *MongoRelationStore) SubscribedChannels(ctx context.Context, subscriberID string) ([]models.UserSummary, error) {
	return s.subscriptionUsers(ctx, "subscriber", subscriberID, "channel")
}

func (s *MongoRelationStore) subscriptionUsers(ctx context.Context, matchField, id, joinField string) ([]models.UserSummary, error) {
	oid, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{matchField: oid}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: joinField},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$user"}}},
	}

	cursor, err := s.db.Collection(subscriptionsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate subscriptions: %w", err)
	}
	var docs []summaryDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	users := make([]models.UserSummary, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].model())
	}
	return users, nil
}

func (s *MongoRelationStore) pairFilter(kind relations.Kind, actor, target string) (relationLayout, bson.M, error) {
	layout, ok := relationLayouts[kind]
	if !ok {
		return relationLayout{}, nil, relations.ErrUnknownKind
	}
	ids, err := mustParseIDs(actor, target)
	if err != nil {
		return relationLayout{}, nil, fmt.Errorf("%w: %v", relations.ErrInvalidIdentifier, err)
	}
	return layout, bson.M{layout.actorField: ids[0], layout.targetField: ids[1]}, nil
}
