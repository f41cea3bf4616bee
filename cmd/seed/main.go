// seed inserts accounts spread across the inactivity windows into the local database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/mongodb"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "Seed1234pass"

type accountSpec struct {
	identity  string
	lastLogin time.Duration // before now; 0 = never logged in
	created   time.Duration // before now
	active    bool
	legacy    bool // stored with active "Y" and integer last_login
}

const day = 24 * time.Hour

var accounts = []accountSpec{
	// Fresh, left alone
	{"fresh-1@seed.local", 2 * day, 30 * day, true, false},
	{"fresh-2@seed.local", 100 * day, 200 * day, true, true},

	// One-month warning: last login between 8 months and 9 months minus a week
	{"month-1@seed.local", 250 * day, 400 * day, true, false},
	{"month-2@seed.local", 255 * day, 400 * day, true, true},

	// One-week warning: within a week of the 9 month cutoff
	{"week-1@seed.local", 270 * day, 400 * day, true, false},

	// Expired: past 9 months
	{"expired-1@seed.local", 300 * day, 500 * day, true, false},
	{"expired-2@seed.local", 400 * day, 500 * day, true, true},

	// Never activated
	{"pending-1@seed.local", 0, 30 * time.Hour, false, false},
	{"pending-2@seed.local", 0, 2 * time.Hour, false, false},
}

func main() {
	ctx := context.Background()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		log.Fatal("MONGODB_URI is not set")
	}
	database := os.Getenv("MONGODB_DATABASE")
	if database == "" {
		database = "opg-api"
	}

	db, err := mongodb.Connect(ctx, uri, database)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer func() { _ = db.Close(ctx) }()

	if err := mongodb.EnsureIndexes(ctx, db.Database, mongodb.Indexes("lpa")); err != nil {
		log.Fatalf("indexes: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	repo := mongodb.NewAccountRepository(db.Database)
	now := time.Now().UTC()

	var inserted, skipped int
	for _, spec := range accounts {
		var err error
		if spec.legacy {
			err = insertLegacy(ctx, db, spec, string(hash), now)
		} else {
			err = repo.Create(ctx, newAccount(spec, string(hash), now))
		}
		switch {
		case errors.Is(err, domain.ErrUsernameTaken):
			skipped++
		case err != nil:
			log.Fatalf("insert %s: %v", spec.identity, err)
		default:
			inserted++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Accounts created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Printf("  Password:         %s\n", seedPassword)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  LOCK_BACKEND=memory go run ./cmd/scheduler -once")
	fmt.Println()
	fmt.Println("  What to expect:")
	fmt.Println("    fresh-*    →  untouched")
	fmt.Println("    month-*    →  1-month notice, flagged")
	fmt.Println("    week-1     →  1-week notice, flagged")
	fmt.Println("    expired-*  →  deleted, reason expired")
	fmt.Println("    pending-1  →  deleted, reason unactivated (pending-2 is too young)")
}

func newAccount(spec accountSpec, hash string, now time.Time) *domain.Account {
	a := &domain.Account{
		ID:           uuid.NewString(),
		Identity:     spec.identity,
		PasswordHash: hash,
		CreatedAt:    now.Add(-spec.created),
		LastUpdated:  now,
	}
	if spec.active {
		a.State = domain.ActivationActive
		activated := a.CreatedAt
		a.ActivatedAt = &activated
	} else {
		a.ActivationToken = uuid.NewString()
	}
	if spec.lastLogin > 0 {
		login := now.Add(-spec.lastLogin)
		a.LastLogin = &login
	}
	return a
}

// insertLegacy writes the account the way older releases stored it.
func insertLegacy(ctx context.Context, db *mongodb.DB, spec accountSpec, hash string, now time.Time) error {
	active := "N"
	if spec.active {
		active = "Y"
	}
	doc := bson.D{
		{Key: "_id", Value: uuid.NewString()},
		{Key: "identity", Value: spec.identity},
		{Key: "password_hash", Value: hash},
		{Key: "active", Value: active},
		{Key: "created", Value: now.Add(-spec.created)},
		{Key: "last_updated", Value: now},
	}
	if spec.lastLogin > 0 {
		doc = append(doc, bson.E{Key: "last_login", Value: now.Add(-spec.lastLogin).Unix()})
	}
	_, err := db.Database.Collection(mongodb.AccountCollection).InsertOne(ctx, doc)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return domain.ErrUsernameTaken
	}
	return err
}
