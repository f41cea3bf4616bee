package mongodb

import (
	"time"

	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type tokenDoc struct {
	Token     string     `bson:"token"`
	CreatedAt time.Time  `bson:"createdAt"`
	UpdatedAt *time.Time `bson:"updatedAt,omitempty"`
	ExpiresIn int64      `bson:"expiresIn,omitempty"` // seconds
	ExpiresAt time.Time  `bson:"expiresAt"`
}

type emailUpdateDoc struct {
	Token tokenDoc `bson:"token"`
	Email string   `bson:"email"`
}

// accountDoc is the stored account. active and last_login keep their raw BSON so both
// legacy encodings can be read; they are always written back in the current form.
type accountDoc struct {
	ID                  string          `bson:"_id"`
	Identity            string          `bson:"identity,omitempty"`
	PasswordHash        string          `bson:"password_hash,omitempty"`
	Active              bson.RawValue   `bson:"active,omitempty"`
	ActivationToken     string          `bson:"activation_token,omitempty"`
	Created             time.Time       `bson:"created,omitempty"`
	Activated           *time.Time      `bson:"activated,omitempty"`
	LastLogin           bson.RawValue   `bson:"last_login,omitempty"`
	LastUpdated         time.Time       `bson:"last_updated,omitempty"`
	FailedLoginAttempts int             `bson:"failed_login_attempts,omitempty"`
	LastFailedLogin     *time.Time      `bson:"last_failed_login,omitempty"`
	InactivityFlags     []string        `bson:"inactivity_flags,omitempty"`
	AuthToken           *tokenDoc       `bson:"auth_token,omitempty"`
	PasswordResetToken  *tokenDoc       `bson:"password_reset_token,omitempty"`
	EmailUpdateRequest  *emailUpdateDoc `bson:"email_update_request,omitempty"`
	DeletedAt           *time.Time      `bson:"deletedAt,omitempty"`
}

// decodeActive accepts true and the legacy "Y".
func decodeActive(v bson.RawValue) domain.ActivationState {
	switch v.Type {
	case bsontype.Boolean:
		if v.Boolean() {
			return domain.ActivationActive
		}
	case bsontype.String:
		if v.StringValue() == "Y" {
			return domain.ActivationActive
		}
	}
	return domain.ActivationPending
}

// decodeTimestamp accepts a BSON date or legacy integer Unix seconds.
func decodeTimestamp(v bson.RawValue) *time.Time {
	var t time.Time
	switch v.Type {
	case bsontype.DateTime:
		t = v.Time()
	case bsontype.Int32:
		t = time.Unix(int64(v.Int32()), 0)
	case bsontype.Int64:
		t = time.Unix(v.Int64(), 0)
	case bsontype.Double:
		t = time.Unix(int64(v.Double()), 0)
	default:
		return nil
	}
	t = t.UTC()
	return &t
}

func (d *accountDoc) toDomain() *domain.Account {
	a := &domain.Account{
		ID:                  d.ID,
		Identity:            d.Identity,
		PasswordHash:        d.PasswordHash,
		State:               decodeActive(d.Active),
		ActivationToken:     d.ActivationToken,
		CreatedAt:           d.Created,
		ActivatedAt:         d.Activated,
		LastLogin:           decodeTimestamp(d.LastLogin),
		LastUpdated:         d.LastUpdated,
		FailedLoginAttempts: d.FailedLoginAttempts,
		LastFailedLogin:     d.LastFailedLogin,
		DeletedAt:           d.DeletedAt,
	}
	for _, f := range d.InactivityFlags {
		a.InactivityFlags = append(a.InactivityFlags, domain.InactivityFlag(f))
	}
	if d.AuthToken != nil {
		t := d.AuthToken.toToken()
		at := domain.AuthToken{Token: t, UpdatedAt: t.CreatedAt}
		if d.AuthToken.UpdatedAt != nil {
			at.UpdatedAt = *d.AuthToken.UpdatedAt
		}
		a.AuthToken = &at
	}
	if d.PasswordResetToken != nil {
		t := d.PasswordResetToken.toToken()
		a.PasswordResetToken = &t
	}
	if d.EmailUpdateRequest != nil {
		a.EmailUpdateRequest = &domain.EmailUpdateRequest{
			Token: d.EmailUpdateRequest.Token.toToken(),
			Email: d.EmailUpdateRequest.Email,
		}
	}
	return a
}

func (d tokenDoc) toToken() domain.Token {
	t := domain.Token{
		Value:     d.Token,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
		ExpiresIn: time.Duration(d.ExpiresIn) * time.Second,
	}
	if t.ExpiresIn == 0 {
		t.ExpiresIn = d.ExpiresAt.Sub(d.CreatedAt)
	}
	return t
}

func newTokenDoc(t domain.Token) tokenDoc {
	return tokenDoc{
		Token:     t.Value,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresIn: int64(t.ExpiresIn / time.Second),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
}

func newAuthTokenDoc(t domain.AuthToken) tokenDoc {
	updated := t.UpdatedAt.UTC()
	return tokenDoc{
		Token:     t.Value,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: &updated,
		ExpiresAt: t.ExpiresAt.UTC(),
	}
}

// newAccountDocument is the insert form of a fresh account.
func newAccountDocument(a *domain.Account) bson.D {
	doc := bson.D{
		{Key: "_id", Value: a.ID},
		{Key: "identity", Value: a.Identity},
		{Key: "password_hash", Value: a.PasswordHash},
		{Key: "active", Value: a.IsActive()},
		{Key: "created", Value: a.CreatedAt.UTC()},
		{Key: "last_updated", Value: a.LastUpdated.UTC()},
		{Key: "failed_login_attempts", Value: a.FailedLoginAttempts},
	}
	if a.ActivationToken != "" {
		doc = append(doc, bson.E{Key: "activation_token", Value: a.ActivationToken})
	}
	if a.ActivatedAt != nil {
		doc = append(doc, bson.E{Key: "activated", Value: a.ActivatedAt.UTC()})
	}
	if a.LastLogin != nil {
		doc = append(doc, bson.E{Key: "last_login", Value: a.LastLogin.UTC()})
	}
	if len(a.InactivityFlags) > 0 {
		flags := make([]string, 0, len(a.InactivityFlags))
		for _, f := range a.InactivityFlags {
			flags = append(flags, string(f))
		}
		doc = append(doc, bson.E{Key: "inactivity_flags", Value: flags})
	}
	return doc
}
