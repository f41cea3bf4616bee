package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/docstore"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
)

type doc struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func TestMemoryStore_InsertDuplicate(t *testing.T) {
	s := docstore.NewMemoryStore()
	ctx := context.Background()

	if err := s.Insert(ctx, "c", "1", doc{Owner: "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, "c", "1", doc{Owner: "b"}); !errors.Is(err, domain.ErrDuplicateDocument) {
		t.Fatalf("want ErrDuplicateDocument, got %v", err)
	}
}

func TestMemoryStore_FindOneMissing(t *testing.T) {
	s := docstore.NewMemoryStore()
	var d doc
	if err := s.FindOne(context.Background(), "c", "nope", &d); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("want ErrDocumentNotFound, got %v", err)
	}
}

func TestMemoryStore_ReplaceWhere_TimePredicateAtMillisecondPrecision(t *testing.T) {
	s := docstore.NewMemoryStore()
	ctx := context.Background()
	v1 := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

	if err := s.Insert(ctx, "c", "1", doc{Owner: "a", UpdatedAt: v1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := s.ReplaceWhere(ctx, "c", "1", docstore.Predicate{"updatedAt": v1.Add(time.Millisecond)}, doc{Owner: "x"})
	if err != nil || n != 0 {
		t.Fatalf("stale predicate: n=%d err=%v", n, err)
	}

	n, err = s.ReplaceWhere(ctx, "c", "1", docstore.Predicate{"updatedAt": v1}, doc{Owner: "b", UpdatedAt: v1.Add(time.Second)})
	if err != nil || n != 1 {
		t.Fatalf("matching predicate: n=%d err=%v", n, err)
	}

	var got doc
	if err := s.FindOne(ctx, "c", "1", &got); err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "1" || got.Owner != "b" {
		t.Errorf("got %+v", got)
	}
}

func TestMemoryStore_FindIDsAndDelete(t *testing.T) {
	s := docstore.NewMemoryStore()
	ctx := context.Background()
	_ = s.Insert(ctx, "c", "1", doc{Owner: "a"})
	_ = s.Insert(ctx, "c", "2", doc{Owner: "b"})
	_ = s.Insert(ctx, "c", "3", doc{Owner: "a"})

	ids, err := s.FindIDs(ctx, "c", docstore.Predicate{"owner": "a"})
	if err != nil {
		t.Fatalf("find ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
		t.Fatalf("ids = %v", ids)
	}

	if n, _ := s.DeleteWhere(ctx, "c", "2", docstore.Predicate{"owner": "a"}); n != 0 {
		t.Errorf("delete with wrong owner removed %d docs", n)
	}
	if n, _ := s.DeleteWhere(ctx, "c", "2", nil); n != 1 {
		t.Errorf("delete by id removed %d docs", n)
	}
}
