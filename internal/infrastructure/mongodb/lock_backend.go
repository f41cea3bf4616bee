package mongodb

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LockBackend stores cron locks keyed by name. The upsert filter only matches an
// expired record; when a live record exists the upsert tries to insert a second
// document with the same _id and fails with a duplicate key, which means "held".
type LockBackend struct {
	coll *mongo.Collection
}

func NewLockBackend(db *mongo.Database) *LockBackend {
	return &LockBackend{coll: db.Collection(LockCollection)}
}

func (b *LockBackend) TryAcquire(ctx context.Context, rec domain.LockRecord) (bool, error) {
	filter := bson.D{
		{Key: "_id", Value: rec.Name},
		{Key: "expires_at", Value: bson.M{"$lte": rec.AcquiredAt.UTC()}},
	}
	update := bson.M{"$set": bson.M{
		"owner":       rec.Owner,
		"acquired_at": rec.AcquiredAt.UTC(),
		"expires_at":  rec.ExpiresAt.UTC(),
	}}

	_, err := b.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert lock: %w", err)
	}
	return true, nil
}
