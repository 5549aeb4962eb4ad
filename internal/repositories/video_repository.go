package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/models"
)

var videoSortFields = map[string]bool{
	"createdAt": true,
	"views":     true,
	"duration":  true,
	"title":     true,
}

// MongoVideoRepository persists videos in the videos collection.
type MongoVideoRepository struct {
	videos   *mongo.Collection
	comments *mongo.Collection
	likes    *mongo.Collection
}

// NewMongoVideoRepository constructs a video repository backed by MongoDB.
func NewMongoVideoRepository(db *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{
		videos:   db.Collection(videosCollection),
		comments: db.Collection(commentsCollection),
		likes:    db.Collection(likesCollection),
	}
}

// Create persists a new video.
func (r *MongoVideoRepository) Create(ctx context.Context, video models.Video) error {
	ids, err := mustParseIDs(video.ID, video.OwnerID)
	if err != nil {
		return err
	}

	doc := videoDocument{
		ID:          ids[0],
		Owner:       ids[1],
		VideoFile:   video.VideoFile,
		Thumbnail:   video.Thumbnail,
		Title:       video.Title,
		Description: video.Description,
		Duration:    video.Duration,
		Views:       video.Views,
		IsPublished: video.IsPublished,
		CreatedAt:   video.CreatedAt,
		UpdatedAt:   video.UpdatedAt,
	}
	if _, err := r.videos.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err, "insert video")
	}
	return nil
}

// FindByID fetches a video without its owner.
func (r *MongoVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Video{}, ErrNotFound
	}

	var doc videoDocument
	if err := r.videos.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find video: %w", err)
	}
	return doc.model(), nil
}

// FindWithOwner fetches a video with its owner's summary joined in.
func (r *MongoVideoRepository) FindWithOwner(ctx context.Context, id string) (models.VideoWithOwner, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.VideoWithOwner{}, ErrNotFound
	}

	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": oid}}},
	}, ownerLookup()...)

	docs, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return models.VideoWithOwner{}, err
	}
	if len(docs) == 0 {
		return models.VideoWithOwner{}, ErrNotFound
	}
	return docs[0], nil
}

// List returns one page of videos matching query. Unpublished videos are only listed
// when the viewer is filtering on their own channel.
func (r *MongoVideoRepository) List(ctx context.Context, query models.VideoQuery) (models.VideoPage, error) {
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	match := bson.M{}
	ownListing := false
	if query.OwnerID != "" {
		owner, ok := parseID(query.OwnerID)
		if !ok {
			return models.VideoPage{}, ErrNotFound
		}
		match["owner"] = owner
		ownListing = query.OwnerID == query.ViewerID
	}
	if !ownListing {
		match["isPublished"] = true
	}
	if query.Search != "" {
		pattern := containsPattern(query.Search)
		match["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}

	sortField := query.SortBy
	if !videoSortFields[sortField] {
		sortField = "createdAt"
	}
	order := 1
	if query.SortDesc {
		order = -1
	}

	total, err := r.videos.CountDocuments(ctx, match)
	if err != nil {
		return models.VideoPage{}, fmt.Errorf("count videos: %w", err)
	}

	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: sortField, Value: order}, {Key: "_id", Value: order}}}},
		{{Key: "$skip", Value: int64((page - 1) * limit)}},
		{{Key: "$limit", Value: int64(limit)}},
	}, ownerLookup()...)

	videos, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return models.VideoPage{}, err
	}

	return models.VideoPage{
		Videos:     videos,
		TotalDocs:  total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}

// Update applies the non-nil fields of update.
func (r *MongoVideoRepository) Update(ctx context.Context, id string, update models.VideoUpdate) (models.Video, error) {
	fields := bson.M{"updatedAt": now()}
	if update.Title != nil {
		fields["title"] = *update.Title
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.Thumbnail != nil {
		fields["thumbnail"] = *update.Thumbnail
	}
	return r.findOneAndUpdate(ctx, id, bson.M{"$set": fields})
}

// TogglePublished flips isPublished in a single update.
func (r *MongoVideoRepository) TogglePublished(ctx context.Context, id string) (models.Video, error) {
	return r.findOneAndUpdate(ctx, id, mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "isPublished", Value: bson.M{"$not": bson.A{"$isPublished"}}},
			{Key: "updatedAt", Value: now()},
		}}},
	})
}

// IncrementViews adds one view to the video.
func (r *MongoVideoRepository) IncrementViews(ctx context.Context, id string) (models.Video, error) {
	return r.findOneAndUpdate(ctx, id, bson.M{"$inc": bson.M{"views": 1}})
}

// Delete removes the video together with its comments and likes.
func (r *MongoVideoRepository) Delete(ctx context.Context, id string) error {
	oid, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	result, err := r.videos.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	if _, err := r.comments.DeleteMany(ctx, bson.M{"video": oid}); err != nil {
		return fmt.Errorf("delete video comments: %w", err)
	}
	if _, err := r.likes.DeleteMany(ctx, bson.M{"video": oid}); err != nil {
		return fmt.Errorf("delete video likes: %w", err)
	}
	return nil
}

func (r *MongoVideoRepository) findOneAndUpdate(ctx context.Context, id string, update any) (models.Video, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.Video{}, ErrNotFound
	}

	var doc videoDocument
	err := r.videos.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.Video{}, translateWriteError(err, "update video")
	}
	return doc.model(), nil
}

func (r *MongoVideoRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.VideoWithOwner, error) {
	cursor, err := r.videos.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate videos: %w", err)
	}
	var docs []videoWithOwnerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}

	videos := make([]models.VideoWithOwner, 0, len(docs))
	for _, doc := range docs {
		videos = append(videos, doc.model())
	}
	return videos, nil
}

func containsPattern(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}
