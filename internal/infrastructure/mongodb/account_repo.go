package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	"github.com/ErlanBelekov/account-lifecycle/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// live matches accounts that have not been soft-deleted.
var live = bson.E{Key: "identity", Value: bson.M{"$exists": true}}

// activeValues are the stored forms of an activated account.
var activeValues = bson.A{true, "Y"}

type AccountRepository struct {
	coll *mongo.Collection
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(AccountCollection)}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	if _, err := r.coll.InsertOne(ctx, newAccountDocument(a)); err != nil {
		if isDuplicateKey(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}, live})
}

func (r *AccountRepository) FindByIdentity(ctx context.Context, identity string) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "identity", Value: domain.NormalizeIdentity(identity)}})
}

func (r *AccountRepository) FindByAuthToken(ctx context.Context, token string) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "auth_token.token", Value: token}, live})
}

func (r *AccountRepository) IdentityTaken(ctx context.Context, identity, exceptID string) (bool, error) {
	filter := bson.D{{Key: "identity", Value: domain.NormalizeIdentity(identity)}}
	if exceptID != "" {
		filter = append(filter, bson.E{Key: "_id", Value: bson.M{"$ne": exceptID}})
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count identity: %w", err)
	}
	return n > 0, nil
}

func (r *AccountRepository) Activate(ctx context.Context, activationToken string, at time.Time) error {
	filter := bson.D{
		{Key: "activation_token", Value: activationToken},
		{Key: "active", Value: bson.M{"$nin": activeValues}},
		live,
	}
	update := versioned(at, bson.M{"active": true, "activated": at.UTC()}, "activation_token")
	return r.updateOne(ctx, filter, update, domain.ErrInvalidToken)
}

// RecordLogin restarts the inactivity clock: flags from earlier warnings are dropped.
func (r *AccountRepository) RecordLogin(ctx context.Context, id string, expected, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"last_login":            at.UTC(),
			"failed_login_attempts": 0,
			"last_updated":          optimistic.NextVersion(at, expected),
		},
		"$unset": bson.M{"inactivity_flags": "", "last_failed_login": ""},
	}
	return r.updateAt(ctx, id, expected, update)
}

func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id string, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{"failed_login_attempts": 1},
		"$set": bson.M{"last_failed_login": at.UTC()},
	}
	return r.updateOne(ctx, byID(id), update, domain.ErrUserNotFound)
}

func (r *AccountRepository) SetPassword(ctx context.Context, id, passwordHash string, expected, at time.Time) error {
	update := bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "last_updated": optimistic.NextVersion(at, expected)},
		"$unset": bson.M{"auth_token": ""},
	}
	return r.updateAt(ctx, id, expected, update)
}

func (r *AccountRepository) SetAuthToken(ctx context.Context, id string, token domain.AuthToken) error {
	update := versioned(token.UpdatedAt, bson.M{"auth_token": newAuthTokenDoc(token)})
	return r.updateOne(ctx, byID(id), update, domain.ErrUserNotFound)
}

func (r *AccountRepository) ExtendAuthToken(ctx context.Context, token string, expiresAt, at time.Time) error {
	filter := bson.D{{Key: "auth_token.token", Value: token}, live}
	update := bson.M{"$set": bson.M{
		"auth_token.expiresAt": expiresAt.UTC(),
		"auth_token.updatedAt": at.UTC(),
	}}
	return r.updateOne(ctx, filter, update, domain.ErrInvalidToken)
}

func (r *AccountRepository) RemoveAuthToken(ctx context.Context, token string) error {
	filter := bson.D{{Key: "auth_token.token", Value: token}, live}
	return r.updateOne(ctx, filter, bson.M{"$unset": bson.M{"auth_token": ""}}, domain.ErrInvalidToken)
}

func (r *AccountRepository) SetPasswordResetToken(ctx context.Context, id string, token domain.Token) error {
	update := bson.M{"$set": bson.M{"password_reset_token": newTokenDoc(token)}}
	return r.updateOne(ctx, byID(id), update, domain.ErrUserNotFound)
}

// ResetPassword matches token and expiry in the same write that swaps the hash.
func (r *AccountRepository) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) (string, error) {
	filter := bson.D{
		{Key: "password_reset_token.token", Value: token},
		{Key: "password_reset_token.expiresAt", Value: bson.M{"$gte": now.UTC()}},
		live,
	}
	update := versioned(now, bson.M{
		"password_hash":         passwordHash,
		"failed_login_attempts": 0,
	}, "password_reset_token", "auth_token", "last_failed_login")
	opts := options.FindOneAndUpdate().SetProjection(bson.M{"_id": 1})

	var res struct {
		ID string `bson:"_id"`
	}
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if notFound(err) {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	return res.ID, nil
}

func (r *AccountRepository) SetEmailUpdateRequest(ctx context.Context, id string, req domain.EmailUpdateRequest) error {
	update := bson.M{"$set": bson.M{"email_update_request": emailUpdateDoc{
		Token: newTokenDoc(req.Token),
		Email: req.Email,
	}}}
	return r.updateOne(ctx, byID(id), update, domain.ErrUserNotFound)
}

func (r *AccountRepository) FindByEmailUpdateToken(ctx context.Context, token string, now time.Time) (*domain.Account, error) {
	a, err := r.findOne(ctx, bson.D{
		{Key: "email_update_request.token.token", Value: token},
		{Key: "email_update_request.token.expiresAt", Value: bson.M{"$gte": now.UTC()}},
		live,
	})
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	return a, err
}

func (r *AccountRepository) ChangeIdentity(ctx context.Context, id, token, identity string, now time.Time) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "email_update_request.token.token", Value: token},
		{Key: "email_update_request.token.expiresAt", Value: bson.M{"$gte": now.UTC()}},
	}
	update := versioned(now, bson.M{"identity": identity}, "email_update_request")
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("change identity: %w", err)
	}
	if res.MatchedCount != 1 {
		return domain.ErrInvalidToken
	}
	return nil
}

// SoftDelete replaces the account with {_id, deletedAt}; the id is never reused.
func (r *AccountRepository) SoftDelete(ctx context.Context, id string, expected, at time.Time) error {
	res, err := r.coll.ReplaceOne(ctx, append(byID(id), atVersion(expected)), bson.D{
		{Key: "_id", Value: id},
		{Key: "deletedAt", Value: at.UTC()},
	})
	if err != nil {
		return fmt.Errorf("soft delete account: %w", err)
	}
	if res.MatchedCount != 1 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// ScanInactive compares dates and legacy integer seconds separately; BSON never orders
// the two types against each other.
func (r *AccountRepository) ScanInactive(ctx context.Context, q repository.InactiveQuery, fn func(*domain.Account) error) error {
	dateRange := bson.M{"$lt": q.LastLoginBefore.UTC()}
	secondsRange := bson.M{"$lt": q.LastLoginBefore.Unix()}
	if q.LastLoginFrom != nil {
		dateRange["$gte"] = q.LastLoginFrom.UTC()
		secondsRange["$gte"] = q.LastLoginFrom.Unix()
	}

	filter := bson.D{
		live,
		{Key: "$or", Value: bson.A{
			bson.M{"last_login": dateRange},
			bson.M{"last_login": secondsRange},
		}},
	}
	if q.ExcludeFlag != "" {
		filter = append(filter, bson.E{Key: "inactivity_flags", Value: bson.M{"$nin": bson.A{string(q.ExcludeFlag)}}})
	}
	return r.scan(ctx, filter, fn)
}

func (r *AccountRepository) ScanUnactivated(ctx context.Context, createdBefore time.Time, fn func(*domain.Account) error) error {
	filter := bson.D{
		live,
		{Key: "active", Value: bson.M{"$nin": activeValues}},
		{Key: "created", Value: bson.M{"$lt": createdBefore.UTC()}},
	}
	return r.scan(ctx, filter, fn)
}

func (r *AccountRepository) AddInactivityFlag(ctx context.Context, id string, flag domain.InactivityFlag) error {
	update := bson.M{"$addToSet": bson.M{"inactivity_flags": string(flag)}}
	return r.updateOne(ctx, byID(id), update, domain.ErrUserNotFound)
}

func (r *AccountRepository) scan(ctx context.Context, filter bson.D, fn func(*domain.Account) error) error {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return fmt.Errorf("scan accounts: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d accountDoc
		if err := cur.Decode(&d); err != nil {
			return fmt.Errorf("decode account: %w", err)
		}
		if err := fn(d.toDomain()); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.D) (*domain.Account, error) {
	var d accountDoc
	err := r.coll.FindOne(ctx, filter).Decode(&d)
	if notFound(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return d.toDomain(), nil
}

// updateOne reports missing unless exactly one live document matched.
func (r *AccountRepository) updateOne(ctx context.Context, filter bson.D, update any, missing error) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount != 1 {
		return missing
	}
	return nil
}

// updateAt writes to the live account id only while last_updated still equals expected.
func (r *AccountRepository) updateAt(ctx context.Context, id string, expected time.Time, update any) error {
	res, err := r.coll.UpdateOne(ctx, append(byID(id), atVersion(expected)), update)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount != 1 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict tells a vanished account from one whose marker moved.
func (r *AccountRepository) missOrConflict(ctx context.Context, id string) error {
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}, live}
}

// atVersion matches the stored marker. Accounts written before the marker existed hold
// none, which a zero expected matches.
func atVersion(expected time.Time) bson.E {
	if expected.IsZero() {
		return bson.E{Key: "last_updated", Value: nil}
	}
	return bson.E{Key: "last_updated", Value: optimistic.Truncate(expected)}
}

// versioned is a pipeline update that sets fields, drops unset and moves last_updated to
// at or, when at would not advance it, one millisecond past the stored marker. Values go
// through $literal so a bcrypt hash is not read as a field path.
func versioned(at time.Time, set bson.M, unset ...string) mongo.Pipeline {
	fields := bson.M{"last_updated": bson.M{"$max": bson.A{
		optimistic.Truncate(at),
		bson.M{"$add": bson.A{"$last_updated", 1}},
	}}}
	for k, v := range set {
		fields[k] = bson.M{"$literal": v}
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: fields}}}
	if len(unset) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$unset", Value: unset}})
	}
	return pipeline
}
