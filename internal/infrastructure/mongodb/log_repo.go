package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type logDoc struct {
	IdentityHash string    `bson:"identity_hash"`
	Type         string    `bson:"type"`
	Reason       string    `bson:"reason"`
	LoggedAt     time.Time `bson:"loggedAt"`
}

type LogRepository struct {
	coll *mongo.Collection
}

var _ repository.LogRepository = (*LogRepository)(nil)

func NewLogRepository(db *mongo.Database) *LogRepository {
	return &LogRepository{coll: db.Collection(LogCollection)}
}

func (r *LogRepository) AddDeletion(ctx context.Context, entry domain.DeletionLog) error {
	_, err := r.coll.InsertOne(ctx, logDoc{
		IdentityHash: entry.IdentityHash,
		Type:         entry.Type,
		Reason:       string(entry.Reason),
		LoggedAt:     entry.LoggedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (r *LogRepository) FindByIdentityHash(ctx context.Context, identityHash string) (*domain.DeletionLog, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "loggedAt", Value: -1}})

	var d logDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "identity_hash", Value: identityHash}}, opts).Decode(&d)
	if notFound(err) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find log: %w", err)
	}
	return &domain.DeletionLog{
		IdentityHash: d.IdentityHash,
		Type:         d.Type,
		Reason:       domain.DeletionReason(d.Reason),
		LoggedAt:     d.LoggedAt,
	}, nil
}
