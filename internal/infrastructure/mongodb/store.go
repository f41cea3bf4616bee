package mongodb

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/account-lifecycle/internal/docstore"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the docstore.Store over one database.
type Store struct {
	db *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) FindOne(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(out)
	if notFound(err) {
		return domain.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) FindIDs(ctx context.Context, collection string, pred docstore.Predicate) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := s.db.Collection(collection).Find(ctx, filterFor("", pred), opts)
	if err != nil {
		return nil, fmt.Errorf("find ids in %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var d struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode id: %w", err)
		}
		ids = append(ids, d.ID)
	}
	return ids, cur.Err()
}

func (s *Store) Insert(ctx context.Context, collection, id string, doc any) error {
	raw, err := docstore.WithID(id, doc)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, raw); err != nil {
		if isDuplicateKey(err) {
			return domain.ErrDuplicateDocument
		}
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) ReplaceWhere(ctx context.Context, collection, id string, pred docstore.Predicate, doc any) (int64, error) {
	raw, err := docstore.WithID(id, doc)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Collection(collection).ReplaceOne(ctx, filterFor(id, pred), raw)
	if err != nil {
		return 0, fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return res.MatchedCount, nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection, id string, pred docstore.Predicate) (int64, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, filterFor(id, pred))
	if err != nil {
		return 0, fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return res.DeletedCount, nil
}

func filterFor(id string, pred docstore.Predicate) bson.D {
	f := bson.D{}
	if id != "" {
		f = append(f, bson.E{Key: "_id", Value: id})
	}
	for k, v := range pred {
		f = append(f, bson.E{Key: k, Value: v})
	}
	return f
}
