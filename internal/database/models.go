package database

import (
	"database/sql"
	"time"

	"github.com/edgard/matchbot/internal/domain"
)

// profileRow mirrors the profiles table. Timestamps are unix seconds.
type profileRow struct {
	UserID       int64           `db:"user_id"`
	Handle       string          `db:"handle"`
	DisplayName  string          `db:"display_name"`
	Age          int             `db:"age"`
	Gender       string          `db:"gender"`
	Preference   string          `db:"preference"`
	Country      string          `db:"country"`
	City         string          `db:"city"`
	Bio          string          `db:"bio"`
	PhotoRef     string          `db:"photo_ref"`
	Latitude     sql.NullFloat64 `db:"latitude"`
	Longitude    sql.NullFloat64 `db:"longitude"`
	Language     string          `db:"language"`
	RegisteredAt int64           `db:"registered_at"`
	UpdatedAt    int64           `db:"updated_at"`
}

const profileColumns = `user_id, handle, display_name, age, gender, preference, country, city,
	bio, photo_ref, latitude, longitude, language, registered_at, updated_at`

func newProfileRow(p *domain.Profile, now time.Time) profileRow {
	row := profileRow{
		UserID:       int64(p.UserID),
		Handle:       p.Handle,
		DisplayName:  p.DisplayName,
		Age:          p.Age,
		Gender:       string(p.Gender),
		Preference:   string(p.Preference),
		Country:      p.Country,
		City:         p.City,
		Bio:          p.Bio,
		PhotoRef:     p.PhotoRef,
		Language:     string(p.Language),
		RegisteredAt: p.RegisteredAt.Unix(),
		UpdatedAt:    now.Unix(),
	}
	if p.RegisteredAt.IsZero() {
		row.RegisteredAt = now.Unix()
	}
	if p.Latitude != nil {
		row.Latitude = sql.NullFloat64{Float64: *p.Latitude, Valid: true}
	}
	if p.Longitude != nil {
		row.Longitude = sql.NullFloat64{Float64: *p.Longitude, Valid: true}
	}
	return row
}

func (r profileRow) toDomain() *domain.Profile {
	p := &domain.Profile{
		UserID:       domain.UserID(r.UserID),
		Handle:       r.Handle,
		DisplayName:  r.DisplayName,
		Age:          r.Age,
		Gender:       domain.Gender(r.Gender),
		Preference:   domain.Preference(r.Preference),
		Country:      r.Country,
		City:         r.City,
		Bio:          r.Bio,
		PhotoRef:     r.PhotoRef,
		Language:     domain.Language(r.Language),
		RegisteredAt: time.Unix(r.RegisteredAt, 0).UTC(),
	}
	if r.Latitude.Valid {
		lat := r.Latitude.Float64
		p.Latitude = &lat
	}
	if r.Longitude.Valid {
		lon := r.Longitude.Float64
		p.Longitude = &lon
	}
	return p
}

// Interaction is one ledger entry.
type Interaction struct {
	ActorID   domain.UserID
	TargetID  domain.UserID
	Decision  domain.Decision
	DecidedAt time.Time
}

type interactionRow struct {
	ActorID   int64  `db:"actor_id"`
	TargetID  int64  `db:"target_id"`
	Decision  string `db:"decision"`
	DecidedAt int64  `db:"decided_at"`
}

// Stats summarises the whole service for the admin report.
type Stats struct {
	TotalUsers   int `db:"total_users"`
	NewToday     int `db:"new_today"`
	TotalAccepts int `db:"total_accepts"`
	Accepts24h   int `db:"accepts_24h"`
	Matches      int `db:"matches"`
}

// ProfileField names a column that can be changed after registration.
type ProfileField string

const (
	FieldBio      ProfileField = "bio"
	FieldPhoto    ProfileField = "photo_ref"
	FieldLanguage ProfileField = "language"
	FieldHandle   ProfileField = "handle"
)

// CandidateQuery describes the eligibility predicate for one selection tier.
type CandidateQuery struct {
	RequesterID domain.UserID
	// Genders restricts the candidate gender; empty means any.
	Genders []domain.Gender
	// WindowStart excludes targets the requester decided on at or after it.
	WindowStart time.Time
	// City matches case-insensitively when set.
	City string
	// Country matches exactly when set.
	Country string
	Exclude []domain.UserID
}
