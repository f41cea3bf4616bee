package docstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore keeps BSON-encoded documents in process. Encoding through BSON keeps
// predicate comparison identical to the database (times compare at millisecond precision).
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]bson.Raw
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]bson.Raw)}
}

func (s *MemoryStore) FindOne(_ context.Context, collection, id string, out any) error {
	s.mu.Lock()
	raw, ok := s.collections[collection][id]
	s.mu.Unlock()
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MemoryStore) FindIDs(_ context.Context, collection string, pred Predicate) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, raw := range s.collections[collection] {
		ok, err := matches(raw, pred)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Insert(_ context.Context, collection, id string, doc any) error {
	raw, err := WithID(id, doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]bson.Raw)
		s.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return domain.ErrDuplicateDocument
	}
	coll[id] = raw
	return nil
}

func (s *MemoryStore) ReplaceWhere(_ context.Context, collection, id string, pred Predicate, doc any) (int64, error) {
	raw, err := WithID(id, doc)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.collections[collection][id]
	if !ok {
		return 0, nil
	}
	if ok, err := matches(current, pred); err != nil || !ok {
		return 0, err
	}
	s.collections[collection][id] = raw
	return 1, nil
}

func (s *MemoryStore) DeleteWhere(_ context.Context, collection, id string, pred Predicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.collections[collection][id]
	if !ok {
		return 0, nil
	}
	if ok, err := matches(current, pred); err != nil || !ok {
		return 0, err
	}
	delete(s.collections[collection], id)
	return 1, nil
}

// WithID marshals doc with its _id forced to id, so the stored key always matches the
// key the caller addressed.
func WithID(id string, doc any) (bson.Raw, error) {
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m bson.D
	if err := bson.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := bson.D{{Key: "_id", Value: id}}
	for _, e := range m {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return bson.Marshal(out)
}

func matches(raw bson.Raw, pred Predicate) (bool, error) {
	for field, want := range pred {
		got, err := raw.LookupErr(field)
		if err != nil {
			return false, nil
		}
		t, b, err := bson.MarshalValue(want)
		if err != nil {
			return false, fmt.Errorf("encode predicate %s: %w", field, err)
		}
		if got.Type != t || !bytes.Equal(got.Value, b) {
			return false, nil
		}
	}
	return true, nil
}
