package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/models"
)

// MongoTweetRepository persists tweets in the tweets collection.
type MongoTweetRepository struct {
	tweets *mongo.Collection
	likes  *mongo.Collection
}

// NewMongoTweetRepository constructs a tweet repository backed by MongoDB.
func NewMongoTweetRepository(db *mongo.Database) *MongoTweetRepository {
	return &MongoTweetRepository{
		tweets: db.Collection(tweetsCollection),
		likes:  db.Collection(likesCollection),
	}
}

// Create persists a new tweet.
func (r *MongoTweetRepository) Create(ctx context.Context, tweet models.Tweet) error {
	ids, err := mustParseIDs(tweet.ID, tweet.OwnerID)
	if err != nil {
		return err
	}

	doc := tweetDocument{
		ID:        ids[0],
		Owner:     ids[1],
		Content:   tweet.Content,
		CreatedAt: tweet.CreatedAt,
		UpdatedAt: tweet.UpdatedAt,
	}
	if _, err := r.tweets.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err, "insert tweet")
	}
	return nil
}

// FindByID fetches a tweet.
func (r *MongoTweetRepository) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Tweet{}, ErrNotFound
	}

	var doc tweetDocument
	if err := r.tweets.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Tweet{}, ErrNotFound
		}
		return models.Tweet{}, fmt.Errorf("find tweet: %w", err)
	}
	return doc.model(), nil
}

// ListByOwner returns the owner's tweets, newest first.
func (r *MongoTweetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	owner, ok := parseID(ownerID)
	if !ok {
		return nil, ErrNotFound
	}

	cursor, err := r.tweets.Find(ctx, bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find tweets: %w", err)
	}
	var docs []tweetDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tweets: %w", err)
	}

	tweets := make([]models.Tweet, 0, len(docs))
	for _, doc := range docs {
		tweets = append(tweets, doc.model())
	}
	return tweets, nil
}

// Update replaces the tweet content.
func (r *MongoTweetRepository) Update(ctx context.Context, id, content string) (models.Tweet, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Tweet{}, ErrNotFound
	}

	var doc tweetDocument
	err := r.tweets.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"content": content, "updatedAt": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.Tweet{}, translateWriteError(err, "update tweet")
	}
	return doc.model(), nil
}

// Delete removes the tweet and its likes.
func (r *MongoTweetRepository) Delete(ctx context.Context, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	result, err := r.tweets.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete tweet: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := r.likes.DeleteMany(ctx, bson.M{"tweet": oid}); err != nil {
		return fmt.Errorf("delete tweet likes: %w", err)
	}
	return nil
}
