// Package mongodb implements the repositories, the document store and the cron lock
// backend on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	AccountCollection = "auth_user"
	LogCollection     = "log"
	LockCollection    = "cron_lock"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*DB, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &DB{Client: client, Database: client.Database(database)}, nil
}

// Ping satisfies health.Pinger.
func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, readpref.Primary())
}

func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes every query in this package relies on. The identity
// index is partial so soft-deleted accounts, which have no identity, never collide.
func EnsureIndexes(ctx context.Context, db *mongo.Database, collections map[string][]mongo.IndexModel) error {
	for name, models := range collections {
		if len(models) == 0 {
			continue
		}
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Indexes lists the indexes for the account, log and application collections.
func Indexes(applicationCollection string) map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		AccountCollection: {
			{
				Keys: bson.D{{Key: "identity", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"identity": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "auth_token.token", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "password_reset_token.token", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "email_update_request.token.token", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "activation_token", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "last_login", Value: 1}}},
			{Keys: bson.D{{Key: "created", Value: 1}}},
		},
		LogCollection: {
			{Keys: bson.D{{Key: "identity_hash", Value: 1}, {Key: "loggedAt", Value: -1}}},
		},
		applicationCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}}},
		},
	}
}

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func notFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
