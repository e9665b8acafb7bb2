package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sessionkit/sessionkit/core/session"
)

// Database implements session.Database on a MongoDB database. Each session is
// one document keyed by _id with the serialized payload and a numeric expiry
// field used for range-based expiry deletes.
type Database struct {
	db *mongo.Database
}

var _ session.Database = (*Database)(nil)

// New creates a MongoDB session backend over an existing database handle.
func New(db *mongo.Database) *Database {
	return &Database{db: db}
}

// sessionDoc is the stored document shape.
type sessionDoc struct {
	ID      string `bson:"_id"`
	Data    string `bson:"data"`
	Expires int64  `bson:"expires"`
}

// Initiate creates the expiry index on the session collection. Creating an
// index that already exists is a no-op server-side, so this is idempotent.
func (d *Database) Initiate(ctx context.Context, table string) error {
	_, err := d.db.Collection(table).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires", Value: 1}},
	})
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// Load returns the payload for id, skipping documents already past their expiry.
func (d *Database) Load(ctx context.Context, id, table string) (string, bool, error) {
	var doc sessionDoc
	err := d.db.Collection(table).FindOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "expires", Value: bson.D{{Key: "$gt", Value: time.Now().Unix()}}},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(session.ErrDatabase, err)
	}
	return doc.Data, true, nil
}

// Store upserts the session document keyed by id.
func (d *Database) Store(ctx context.Context, id, payload string, expires int64, table string) error {
	_, err := d.db.Collection(table).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		sessionDoc{ID: id, Data: payload, Expires: expires},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteByExpiry removes all documents past their expiry.
func (d *Database) DeleteByExpiry(ctx context.Context, table string) error {
	_, err := d.db.Collection(table).DeleteMany(ctx, bson.D{
		{Key: "expires", Value: bson.D{{Key: "$lte", Value: time.Now().Unix()}}},
	})
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteOneByID removes the document for id.
func (d *Database) DeleteOneByID(ctx context.Context, id, table string) error {
	_, err := d.db.Collection(table).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// DeleteAll removes every document in the session collection.
func (d *Database) DeleteAll(ctx context.Context, table string) error {
	_, err := d.db.Collection(table).DeleteMany(ctx, bson.D{})
	if err != nil {
		return errors.Join(session.ErrDatabase, err)
	}
	return nil
}

// Count returns the number of stored session documents.
func (d *Database) Count(ctx context.Context, table string) (int64, error) {
	n, err := d.db.Collection(table).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Join(session.ErrDatabase, err)
	}
	return n, nil
}
