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

// MongoCommentRepository persists video comments in the comments collection.
type MongoCommentRepository struct {
	comments *mongo.Collection
	likes    *mongo.Collection
}

// NewMongoCommentRepository constructs a comment repository backed by MongoDB.
func NewMongoCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{
		comments: db.Collection(commentsCollection),
		likes:    db.Collection(likesCollection),
	}
}

// Create persists a new comment.
func (r *MongoCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	ids, err := mustParseIDs(comment.ID, comment.VideoID, comment.OwnerID)
	if err != nil {
		return err
	}

	doc := commentDocument{
		ID:        ids[0],
		Video:     ids[1],
		Owner:     ids[2],
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
	if _, err := r.comments.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err, "insert comment")
	}
	return nil
}

// FindByID fetches a comment.
func (r *MongoCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Comment{}, ErrNotFound
	}

	var doc commentDocument
	if err := r.comments.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("find comment: %w", err)
	}
	return doc.model(), nil
}

// ListByVideo returns one page of the video's comments, newest first.
func (r *MongoCommentRepository) ListByVideo(ctx context.Context, videoID string, page, limit int) (models.CommentPage, error) {
	video, ok := parseID(videoID)
	if !ok {
		return models.CommentPage{}, ErrNotFound
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	filter := bson.M{"video": video}
	total, err := r.comments.CountDocuments(ctx, filter)
	if err != nil {
		return models.CommentPage{}, fmt.Errorf("count comments: %w", err)
	}

	cursor, err := r.comments.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page-1)*limit)).
		SetLimit(int64(limit)))
	if err != nil {
		return models.CommentPage{}, fmt.Errorf("find comments: %w", err)
	}
	var docs []commentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return models.CommentPage{}, fmt.Errorf("decode comments: %w", err)
	}

	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		comments = append(comments, doc.model())
	}
	return models.CommentPage{Comments: comments, TotalDocs: total, Page: page, Limit: limit}, nil
}

// Update replaces the comment content.
func (r *MongoCommentRepository) Update(ctx context.Context, id, content string) (models.Comment, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Comment{}, ErrNotFound
	}

	var doc commentDocument
	err := r.comments.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"content": content, "updatedAt": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.Comment{}, translateWriteError(err, "update comment")
	}
	return doc.model(), nil
}

// Delete removes the comment and its likes.
func (r *MongoCommentRepository) Delete(ctx context.Context, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	result, err := r.comments.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := r.likes.DeleteMany(ctx, bson.M{"comment": oid}); err != nil {
		return fmt.Errorf("delete comment likes: %w", err)
	}
	return nil
}
