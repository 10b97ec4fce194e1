package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vmorozov/droplink/internal/models"
)

// MongoLinks is the MongoDB-backed LinkStore. The compare-and-swap in
// Transition rides on a single UpdateOne filtered by both link_id and the
// expected status, so the check and the write are one atomic document update.
type MongoLinks struct {
	col *mongo.Collection
}

func NewMongoLinks(db *mongo.Database) (*MongoLinks, error) {
	col := db.Collection("links")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "link_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating link indexes: %w", err)
	}
	return &MongoLinks{col: col}, nil
}

func (m *MongoLinks) Insert(ctx context.Context, link *models.Link) error {
	_, err := m.col.InsertOne(ctx, link)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting link: %w", err)
	}
	return nil
}

func (m *MongoLinks) Get(ctx context.Context, linkID string) (models.Link, error) {
	var link models.Link
	err := m.col.FindOne(ctx, bson.M{"link_id": linkID}).Decode(&link)
	if err == mongo.ErrNoDocuments {
		return models.Link{}, ErrNotFound
	}
	if err != nil {
		return models.Link{}, fmt.Errorf("fetching link: %w", err)
	}
	return link, nil
}

func (m *MongoLinks) Transition(ctx context.Context, linkID string, from models.LinkStatus, change StateChange) error {
	set := bson.M{"status": change.To}
	if change.To == models.StatusUploaded {
		set["storage_key"] = change.StorageKey
		set["display_name"] = change.DisplayName
		set["mime_type"] = change.MimeType
		set["byte_size"] = change.ByteSize
	}

	res, err := m.col.UpdateOne(ctx,
		bson.M{"link_id": linkID, "status": from},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("updating link state: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the link is gone or its status moved on.
	err = m.col.FindOne(ctx, bson.M{"link_id": linkID}).Err()
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking link after failed transition: %w", err)
	}
	return ErrConflict
}

func (m *MongoLinks) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer cursor.Close(ctx)

	var links []models.Link
	if err := cursor.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("decoding links: %w", err)
	}
	return links, nil
}

func (m *MongoLinks) ListExpiredCandidates(ctx context.Context, before time.Time) ([]models.Link, error) {
	cursor, err := m.col.Find(ctx, bson.M{
		"expires_at": bson.M{"$lte": before},
		"status":     bson.M{"$ne": models.StatusExpired},
	})
	if err != nil {
		return nil, fmt.Errorf("listing expired candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var links []models.Link
	if err := cursor.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("decoding expired candidates: %w", err)
	}
	return links, nil
}

// MongoUsers is the MongoDB-backed UserStore.
type MongoUsers struct {
	col *mongo.Collection
}

func NewMongoUsers(db *mongo.Database) (*MongoUsers, error) {
	col := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("creating user indexes: %w", err)
	}
	return &MongoUsers{col: col}, nil
}

func (m *MongoUsers) Insert(ctx context.Context, user *models.User) error {
	_, err := m.col.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (m *MongoUsers) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := m.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("fetching user: %w", err)
	}
	return user, nil
}
