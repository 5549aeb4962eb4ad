package repositories

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/models"
)

const (
	usersCollection         = "users"
	videosCollection        = "videos"
	tweetsCollection        = "tweets"
	commentsCollection      = "comments"
	likesCollection         = "likes"
	subscriptionsCollection = "subscriptions"
)

type userDocument struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Username     string               `bson:"username"`
	Email        string               `bson:"email"`
	FullName     string               `bson:"fullname"`
	Avatar       string               `bson:"avatar"`
	CoverImage   string               `bson:"coverimage,omitempty"`
	Password     string               `bson:"password"`
	RefreshToken string               `bson:"refreshToken,omitempty"`
	WatchHistory []primitive.ObjectID `bson:"watchHistory"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func (d userDocument) model() models.User {
	history := make([]string, 0, len(d.WatchHistory))
	for _, id := range d.WatchHistory {
		history = append(history, id.Hex())
	}
	return models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		Password:     d.Password,
		RefreshToken: d.RefreshToken,
		WatchHistory: history,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// summaryDocument decodes only the public owner fields of a joined user.
type summaryDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	Username string             `bson:"username"`
	FullName string             `bson:"fullname"`
	Avatar   string             `bson:"avatar"`
}

func (d *summaryDocument) model() models.UserSummary {
	if d == nil {
		return models.UserSummary{}
	}
	return models.UserSummary{ID: d.ID.Hex(), Username: d.Username, FullName: d.FullName, Avatar: d.Avatar}
}

type videoDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Owner       primitive.ObjectID `bson:"owner"`
	VideoFile   string             `bson:"videoFile"`
	Thumbnail   string             `bson:"thumbnail"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Duration    float64            `bson:"duration"`
	Views       int64              `bson:"views"`
	IsPublished bool               `bson:"isPublished"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d videoDocument) model() models.Video {
	return models.Video{
		ID:          d.ID.Hex(),
		OwnerID:     d.Owner.Hex(),
		VideoFile:   d.VideoFile,
		Thumbnail:   d.Thumbnail,
		Title:       d.Title,
		Description: d.Description,
		Duration:    d.Duration,
		Views:       d.Views,
		IsPublished: d.IsPublished,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type videoWithOwnerDocument struct {
	Video    videoDocument    `bson:",inline"`
	OwnerDoc *summaryDocument `bson:"ownerDoc"`
}

func (d videoWithOwnerDocument) model() models.VideoWithOwner {
	return models.VideoWithOwner{Video: d.Video.model(), Owner: d.OwnerDoc.model()}
}

type tweetDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Owner     primitive.ObjectID `bson:"owner"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d tweetDocument) model() models.Tweet {
	return models.Tweet{
		ID:        d.ID.Hex(),
		OwnerID:   d.Owner.Hex(),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type commentDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Video     primitive.ObjectID `bson:"video"`
	Owner     primitive.ObjectID `bson:"owner"`
	Content   string             `bson:"content"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d commentDocument) model() models.Comment {
	return models.Comment{
		ID:        d.ID.Hex(),
		VideoID:   d.Video.Hex(),
		OwnerID:   d.Owner.Hex(),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func parseID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

func mustParseIDs(ids ...string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, ok := parseID(id)
		if !ok {
			return nil, fmt.Errorf("invalid object id %q", id)
		}
		out = append(out, oid)
	}
	return out, nil
}

// ownerLookup joins the owner's public fields onto each document as ownerDoc.
func ownerLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "owner"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "ownerDoc"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$ownerDoc"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
