package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"animebot/pkg/domain"
)

const settingsDocID = "settings"

// MongoStore persists all collections in a single MongoDB database.
// Catalog writes use dotted-path partial updates so a whole title document
// never has to be rewritten to add one quality variant.
type MongoStore struct {
	users    *mongo.Collection
	catalog  *mongo.Collection
	settings *mongo.Collection
}

// NewMongoStore wires the store onto an already connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		users:    db.Collection("users"),
		catalog:  db.Collection("catalog"),
		settings: db.Collection("config"),
	}
}

// EnsureUser upserts the user record, refreshing the denormalized name on
// every call and defaulting subscription fields only on first insert.
func (s *MongoStore) EnsureUser(ctx context.Context, id int64, firstName, username string) (domain.User, error) {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{"first_name": firstName, "username": username},
		"$setOnInsert": bson.M{
			"subscribed": false,
			"created_at": time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var u domain.User
	if err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		return domain.User{}, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return u, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *MongoStore) ListPendingUsers(ctx context.Context) ([]domain.User, error) {
	filter := bson.M{"pending": bson.M{"$ne": nil}}
	opts := options.Find().SetSort(bson.D{{Key: "pending.submitted_at", Value: 1}})
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	var out []domain.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending users: %w", err)
	}
	return out, nil
}

// SetPending records a payment proof, but only when no proof is already on
// file. The pending-is-nil condition lives in the filter so the check and
// the write are one atomic call.
func (s *MongoStore) SetPending(ctx context.Context, id int64, p domain.PendingPayment) error {
	filter := bson.M{"_id": id, "pending": nil}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"pending": p}})
	if err != nil {
		return fmt.Errorf("set pending for user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u.Pending != nil {
			return ErrPaymentPending
		}
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ClearPending(ctx context.Context, id int64) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": bson.M{"pending": ""}})
	if err != nil {
		return fmt.Errorf("clear pending for user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Activate grants access until the given time and clears the pending proof
// in the same document update.
func (s *MongoStore) Activate(ctx context.Context, id int64, until time.Time) error {
	update := bson.M{
		"$set":   bson.M{"subscribed": true, "expires_at": until.UTC()},
		"$unset": bson.M{"pending": ""},
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("activate user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Deactivate(ctx context.Context, id int64) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"subscribed": false}})
	if err != nil {
		return fmt.Errorf("deactivate user %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) GetTitle(ctx context.Context, id string) (domain.Title, error) {
	var t domain.Title
	err := s.catalog.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Title{}, ErrNotFound
	}
	if err != nil {
		return domain.Title{}, fmt.Errorf("get title %q: %w", id, err)
	}
	return t, nil
}

func (s *MongoStore) ListTitles(ctx context.Context) ([]domain.TitleRef, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "name": 1}).
		SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.catalog.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	var out []domain.TitleRef
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode titles: %w", err)
	}
	return out, nil
}

// UpsertEpisode writes one episode's quality map in a single upsert.
// Title metadata is applied only on insert, so extending an existing title
// never clobbers its poster or synopsis. Quality leaves overwrite
// (last write wins) to allow re-uploads.
func (s *MongoStore) UpsertEpisode(ctx context.Context, titleID string, meta TitleMeta, seasonKey, episodeKey string, qualities map[string]domain.MediaHandle) error {
	if len(qualities) == 0 {
		return errors.New("upsert episode: no qualities")
	}
	set := bson.M{}
	for q, h := range qualities {
		path := fmt.Sprintf("seasons.%s.episodes.%s.qualities.%s", seasonKey, episodeKey, q)
		set[path] = h
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"name":      meta.Name,
			"poster_id": meta.PosterID,
			"synopsis":  meta.Synopsis,
			"kind":      meta.Kind,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.catalog.UpdateOne(ctx, bson.M{"_id": titleID}, update, opts); err != nil {
		return fmt.Errorf("upsert episode %s/%s/%s: %w", titleID, seasonKey, episodeKey, err)
	}
	return nil
}

// GetSettings reads the singleton settings document, default-initializing
// it on first read.
func (s *MongoStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	filter := bson.M{"_id": settingsDocID}
	update := bson.M{"$setOnInsert": bson.M{"links": bson.M{}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var cfg domain.Settings
	if err := s.settings.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return cfg, nil
}

func (s *MongoStore) SetSettingsField(ctx context.Context, field SettingsField, value string) error {
	update := bson.M{"$set": bson.M{string(field): value}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.settings.UpdateOne(ctx, bson.M{"_id": settingsDocID}, update, opts); err != nil {
		return fmt.Errorf("set settings field %s: %w", field, err)
	}
	return nil
}

func (s *MongoStore) SetLink(ctx context.Context, name, url string) error {
	update := bson.M{"$set": bson.M{"links." + name: url}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.settings.UpdateOne(ctx, bson.M{"_id": settingsDocID}, update, opts); err != nil {
		return fmt.Errorf("set link %s: %w", name, err)
	}
	return nil
}
