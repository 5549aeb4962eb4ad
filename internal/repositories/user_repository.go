package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

// MongoUserRepository persists users and their session state in the users collection.
type MongoUserRepository struct {
	users *mongo.Collection
	db    *mongo.Database
}

// NewMongoUserRepository constructs a user repository backed by MongoDB.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: db.Collection(usersCollection), db: db}
}

// Create persists a new user record. Username and email are stored lower-cased.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	oid, ok := parseID(user.ID)
	if !ok {
		return fmt.Errorf("invalid user id %q", user.ID)
	}

	doc := userDocument{
		ID:           oid,
		Username:     strings.ToLower(user.Username),
		Email:        strings.ToLower(user.Email),
		FullName:     user.FullName,
		Avatar:       user.Avatar,
		CoverImage:   user.CoverImage,
		Password:     user.Password,
		WatchHistory: []primitive.ObjectID{},
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err, "insert user")
	}
	return nil
}

// FindByID fetches a user by id.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByLogin fetches the user matching either username or email. Empty values are ignored.
func (r *MongoUserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	var or bson.A
	if username = strings.ToLower(strings.TrimSpace(username)); username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

// UpdateAccount changes the full name and email of a user.
func (r *MongoUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (models.User, error) {
	return r.updateFields(ctx, id, bson.M{"fullname": fullName, "email": strings.ToLower(email)})
}

// UpdatePassword replaces the stored password hash.
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	_, err := r.updateFields(ctx, id, bson.M{"password": hash})
	return err
}

// UpdateAvatar replaces the avatar location.
func (r *MongoUserRepository) UpdateAvatar(ctx context.Context, id, location string) (models.User, error) {
	return r.updateFields(ctx, id, bson.M{"avatar": location})
}

// UpdateCoverImage replaces the cover image location.
func (r *MongoUserRepository) UpdateCoverImage(ctx context.Context, id, location string) (models.User, error) {
	return r.updateFields(ctx, id, bson.M{"coverimage": location})
}

// FindIdentity implements auth.IdentityStore.
func (r *MongoUserRepository) FindIdentity(ctx context.Context, userID string) (models.User, error) {
	user, err := r.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, auth.ErrIdentityNotFound
	}
	return user, err
}

// SetRefreshToken implements auth.IdentityStore. An empty token removes the field.
func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	oid, ok := parseID(userID)
	if !ok {
		return auth.ErrIdentityNotFound
	}

	update := bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": now()}}
	if token == "" {
		update = bson.M{"$unset": bson.M{"refreshToken": ""}, "$set": bson.M{"updatedAt": now()}}
	}

	result, err := r.users.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if result.MatchedCount == 0 {
		return auth.ErrIdentityNotFound
	}
	return nil
}

// SwapRefreshToken implements auth.IdentityStore. The filter on the current token makes
// the swap a compare-and-set: only one of two concurrent rotations can match.
func (r *MongoUserRepository) SwapRefreshToken(ctx context.Context, userID, current, next string) error {
	oid, ok := parseID(userID)
	if !ok || current == "" {
		return auth.ErrRefreshTokenReused
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": oid, "refreshToken": current},
		bson.M{"$set": bson.M{"refreshToken": next, "updatedAt": now()}},
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if result.MatchedCount == 0 {
		return auth.ErrRefreshTokenReused
	}
	return nil
}

// ChannelProfile loads the public channel view of username, with subscription counters
// and whether viewerID is subscribed.
func (r *MongoUserRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, ErrNotFound
	}
	viewer, _ := parseID(viewerID)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"username": username}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribedTo"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscribersCount", Value: bson.M{"$size": "$subscribers"}},
			{Key: "channelsSubscribedToCount", Value: bson.M{"$size": "$subscribedTo"}},
			{Key: "isSubscribed", Value: bson.M{"$in": bson.A{viewer, "$subscribers.subscriber"}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "username", Value: 1},
			{Key: "email", Value: 1},
			{Key: "fullname", Value: 1},
			{Key: "avatar", Value: 1},
			{Key: "coverimage", Value: 1},
			{Key: "subscribersCount", Value: 1},
			{Key: "channelsSubscribedToCount", Value: 1},
			{Key: "isSubscribed", Value: 1},
		}}},
	}

	cursor, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("aggregate channel profile: %w", err)
	}

	var docs []struct {
		ID                        primitive.ObjectID `bson:"_id"`
		Username                  string             `bson:"username"`
		Email                     string             `bson:"email"`
		FullName                  string             `bson:"fullname"`
		Avatar                    string             `bson:"avatar"`
		CoverImage                string             `bson:"coverimage"`
		SubscribersCount          int                `bson:"subscribersCount"`
		ChannelsSubscribedToCount int                `bson:"channelsSubscribedToCount"`
		IsSubscribed              bool               `bson:"isSubscribed"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return models.ChannelProfile{}, fmt.Errorf("decode channel profile: %w", err)
	}
	if len(docs) == 0 {
		return models.ChannelProfile{}, ErrNotFound
	}

	doc := docs[0]
	return models.ChannelProfile{
		ID:                        doc.ID.Hex(),
		Username:                  doc.Username,
		Email:                     doc.Email,
		FullName:                  doc.FullName,
		Avatar:                    doc.Avatar,
		CoverImage:                doc.CoverImage,
		SubscribersCount:          doc.SubscribersCount,
		ChannelsSubscribedToCount: doc.ChannelsSubscribedToCount,
		IsSubscribed:              doc.IsSubscribed,
	}, nil
}

// WatchHistory returns the videos in the user's watch history, oldest first, with owners.
func (r *MongoUserRepository) WatchHistory(ctx context.Context, userID string) ([]models.VideoWithOwner, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.WatchHistory) == 0 {
		return []models.VideoWithOwner{}, nil
	}

	ids, err := mustParseIDs(user.WatchHistory...)
	if err != nil {
		return nil, err
	}

	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$in": ids}}}},
	}, ownerLookup()...)

	cursor, err := r.db.Collection(videosCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate watch history: %w", err)
	}
	var docs []videoWithOwnerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode watch history: %w", err)
	}

	byID := make(map[string]models.VideoWithOwner, len(docs))
	for _, doc := range docs {
		byID[doc.Video.ID.Hex()] = doc.model()
	}

	// $in does not preserve order; replay the stored history.
	history := make([]models.VideoWithOwner, 0, len(docs))
	for _, id := range user.WatchHistory {
		if video, ok := byID[id]; ok {
			history = append(history, video)
		}
	}
	return history, nil
}

// AddToWatchHistory moves videoID to the end of the user's watch history.
func (r *MongoUserRepository) AddToWatchHistory(ctx context.Context, userID, videoID string) error {
	ids, err := mustParseIDs(userID, videoID)
	if err != nil {
		return ErrNotFound
	}
	user, video := ids[0], ids[1]

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "watchHistory", Value: bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$watchHistory", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this", video}},
				}},
				bson.A{video},
			}}},
			{Key: "updatedAt", Value: now()},
		}}},
	}

	result, err := r.users.UpdateOne(ctx, bson.M{"_id": user}, update)
	if err != nil {
		return fmt.Errorf("update watch history: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.model(), nil
}

func (r *MongoUserRepository) updateFields(ctx context.Context, id string, fields bson.M) (models.User, error) {
	oid, ok := parseID(id)
	if !ok {
		return models.User{}, ErrNotFound
	}
	fields["updatedAt"] = now()

	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.User{}, translateWriteError(err, "update user")
	}
	return doc.model(), nil
}
