package domain

import "time"

// Application is the managed legal document. Only the fields needed for ownership,
// locking and versioning are modelled; the rest of the document is carried opaquely.
type Application struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user"`
	StartedAt time.Time  `bson:"startedAt"`
	UpdatedAt time.Time  `bson:"updatedAt"`
	Locked    bool       `bson:"locked"`
	LockedAt  *time.Time `bson:"lockedAt,omitempty"`

	Document         map[string]any `bson:"document,omitempty"`
	Metadata         map[string]any `bson:"metadata,omitempty"`
	Payment          map[string]any `bson:"payment,omitempty"`
	RepeatCaseNumber *int64         `bson:"repeatCaseNumber,omitempty"`
}

func (a *Application) Version() time.Time     { return a.UpdatedAt }
func (a *Application) SetVersion(t time.Time) { a.UpdatedAt = t }

// Profile is the API-side user record, scaffolded on first read.
type Profile struct {
	ID        string         `bson:"_id"`
	CreatedAt time.Time      `bson:"createdAt"`
	UpdatedAt time.Time      `bson:"updatedAt"`
	Name      map[string]any `bson:"name,omitempty"`
	Address   map[string]any `bson:"address,omitempty"`
	DOB       map[string]any `bson:"dob,omitempty"`
	Email     string         `bson:"email,omitempty"`
}

func (p *Profile) Version() time.Time     { return p.UpdatedAt }
func (p *Profile) SetVersion(t time.Time) { p.UpdatedAt = t }
