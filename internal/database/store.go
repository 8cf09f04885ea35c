package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/matchbot/internal/domain"
)

var (
	// ErrDuplicateInteraction is returned when the actor already decided on the target.
	ErrDuplicateInteraction = errors.New("interaction already recorded")
	// ErrNotFound is returned by updates addressed to a missing profile.
	ErrNotFound = errors.New("profile not found")
)

// ProfileStore persists complete profiles.
type ProfileStore interface {
	ProfileExists(ctx context.Context, userID domain.UserID) (bool, error)

	// GetProfile returns nil, nil when the user has no profile.
	GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error)

	// UpsertProfile validates and writes the whole profile in one statement.
	UpsertProfile(ctx context.Context, profile *domain.Profile) error

	UpdateProfileField(ctx context.Context, userID domain.UserID, field ProfileField, value string) error

	// DeleteProfile removes the profile and every ledger row the user appears in.
	DeleteProfile(ctx context.Context, userID domain.UserID) error

	// RandomCandidate returns one uniformly random profile matching q, or nil, nil.
	RandomCandidate(ctx context.Context, q CandidateQuery) (*domain.Profile, error)
}

// Ledger records decisions. (actor, target) is unique.
type Ledger interface {
	// InsertInteraction returns ErrDuplicateInteraction when the pair exists.
	InsertInteraction(ctx context.Context, in Interaction) error
	CountInteractionsSince(ctx context.Context, actorID domain.UserID, since time.Time) (int, error)
	HasInteraction(ctx context.Context, actorID, targetID domain.UserID, decision domain.Decision) (bool, error)
	DeleteInteractionsFor(ctx context.Context, userID domain.UserID) error
}

// Store is the full data access layer.
type Store interface {
	ProfileStore
	Ledger

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// Stats computes the admin report as of now.
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) ProfileExists(ctx context.Context, userID domain.UserID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = ?)`, int64(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error checking profile existence", "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to check profile for user %d: %w", userID, err)
	}
	return exists, nil
}

func (s *sqlxStore) GetProfile(ctx context.Context, userID domain.UserID) (*domain.Profile, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	var row profileRow
	err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, int64(userID))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No profile found", "user_id", userID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching profile", "user_id", userID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
	}

	return row.toDomain(), nil
}

func (s *sqlxStore) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	row := newProfileRow(profile, s.now())
	query := `
        INSERT INTO profiles (` + profileColumns + `)
        VALUES (:user_id, :handle, :display_name, :age, :gender, :preference, :country, :city,
                :bio, :photo_ref, :latitude, :longitude, :language, :registered_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            handle = excluded.handle,
            display_name = excluded.display_name,
            age = excluded.age,
            gender = excluded.gender,
            preference = excluded.preference,
            country = excluded.country,
            city = excluded.city,
            bio = excluded.bio,
            photo_ref = excluded.photo_ref,
            latitude = excluded.latitude,
            longitude = excluded.longitude,
            language = excluded.language,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting profile", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to save profile for user %d: %w", profile.UserID, err)
	}

	profile.RegisteredAt = time.Unix(row.RegisteredAt, 0).UTC()
	s.logger.DebugContext(ctx, "Profile saved", "user_id", profile.UserID)
	return nil
}

// updatableColumns whitelists the columns UpdateProfileField may touch.
var updatableColumns = map[ProfileField]string{
	FieldBio:      "bio",
	FieldPhoto:    "photo_ref",
	FieldLanguage: "language",
	FieldHandle:   "handle",
}

func (s *sqlxStore) UpdateProfileField(ctx context.Context, userID domain.UserID, field ProfileField, value string) error {
	column, ok := updatableColumns[field]
	if !ok {
		return fmt.Errorf("field %q cannot be updated", field)
	}
	if field == FieldPhoto && value == "" {
		return fmt.Errorf("photo reference cannot be empty")
	}

	query := `UPDATE profiles SET ` + column + ` = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, value, s.now().Unix(), int64(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating profile field", "user_id", userID, "field", field, "error", err)
		return fmt.Errorf("failed to update %s for user %d: %w", field, userID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlxStore) DeleteProfile(ctx context.Context, userID domain.UserID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for profile deletion", "user_id", userID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM interactions WHERE actor_id = ? OR target_id = ?`, int64(userID), int64(userID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete interactions", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete interactions for user %d: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, int64(userID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete profile", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete profile for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit profile deletion", "user_id", userID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Profile deleted", "user_id", userID)
	return nil
}

func (s *sqlxStore) RandomCandidate(ctx context.Context, q CandidateQuery) (*domain.Profile, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + profileColumns + ` FROM profiles
        WHERE user_id != ? AND handle != ''
        AND user_id NOT IN (SELECT target_id FROM interactions WHERE actor_id = ? AND decided_at >= ?)`)
	args := []any{int64(q.RequesterID), int64(q.RequesterID), q.WindowStart.Unix()}

	if len(q.Genders) > 0 {
		genders := make([]string, len(q.Genders))
		for i, g := range q.Genders {
			genders[i] = string(g)
		}
		b.WriteString(` AND gender IN (?)`)
		args = append(args, genders)
	}
	if q.City != "" {
		b.WriteString(` AND LOWER(city) = LOWER(?)`)
		args = append(args, q.City)
	}
	if q.Country != "" {
		b.WriteString(` AND country = ?`)
		args = append(args, q.Country)
	}
	if len(q.Exclude) > 0 {
		exclude := make([]int64, len(q.Exclude))
		for i, id := range q.Exclude {
			exclude[i] = int64(id)
		}
		b.WriteString(` AND user_id NOT IN (?)`)
		args = append(args, exclude)
	}
	b.WriteString(` ORDER BY RANDOM() LIMIT 1`)

	query, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}

	var row profileRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(query), args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error selecting candidate", "user_id", q.RequesterID, "error", err)
		return nil, fmt.Errorf("failed to select candidate for user %d: %w", q.RequesterID, err)
	}
	return row.toDomain(), nil
}

func (s *sqlxStore) InsertInteraction(ctx context.Context, in Interaction) error {
	if in.ActorID == in.TargetID {
		return fmt.Errorf("user %d cannot decide on themselves", in.ActorID)
	}
	if in.DecidedAt.IsZero() {
		in.DecidedAt = s.now()
	}

	row := interactionRow{
		ActorID:   int64(in.ActorID),
		TargetID:  int64(in.TargetID),
		Decision:  string(in.Decision),
		DecidedAt: in.DecidedAt.Unix(),
	}
	query := `
        INSERT INTO interactions (actor_id, target_id, decision, decided_at)
        VALUES (:actor_id, :target_id, :decision, :decided_at)
        ON CONFLICT (actor_id, target_id) DO NOTHING;
    `

	result, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording interaction",
			"actor_id", in.ActorID, "target_id", in.TargetID, "error", err)
		return fmt.Errorf("failed to record interaction %d->%d: %w", in.ActorID, in.TargetID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateInteraction
	}
	return nil
}

func (s *sqlxStore) CountInteractionsSince(ctx context.Context, actorID domain.UserID, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM interactions WHERE actor_id = ? AND decided_at >= ?`, int64(actorID), since.Unix())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error counting interactions", "actor_id", actorID, "error", err)
		return 0, fmt.Errorf("failed to count interactions for user %d: %w", actorID, err)
	}
	return count, nil
}

func (s *sqlxStore) HasInteraction(ctx context.Context, actorID, targetID domain.UserID, decision domain.Decision) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM interactions WHERE actor_id = ? AND target_id = ? AND decision = ?)`,
		int64(actorID), int64(targetID), string(decision))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error looking up interaction",
			"actor_id", actorID, "target_id", targetID, "error", err)
		return false, fmt.Errorf("failed to look up interaction %d->%d: %w", actorID, targetID, err)
	}
	return exists, nil
}

func (s *sqlxStore) DeleteInteractionsFor(ctx context.Context, userID domain.UserID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE actor_id = ? OR target_id = ?`, int64(userID), int64(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting interactions", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete interactions for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	query := `
        SELECT
            (SELECT COUNT(*) FROM profiles) AS total_users,
            (SELECT COUNT(*) FROM profiles WHERE registered_at >= ?) AS new_today,
            (SELECT COUNT(*) FROM interactions WHERE decision = 'accept') AS total_accepts,
            (SELECT COUNT(*) FROM interactions WHERE decision = 'accept' AND decided_at >= ?) AS accepts_24h,
            (SELECT COUNT(*) FROM interactions a
                JOIN interactions b ON a.actor_id = b.target_id AND a.target_id = b.actor_id
                WHERE a.decision = 'accept' AND b.decision = 'accept' AND a.actor_id < a.target_id) AS matches;
    `

	var stats Stats
	if err := s.db.GetContext(ctx, &stats, query, dayStart.Unix(), now.Add(-24*time.Hour).Unix()); err != nil {
		s.logger.ErrorContext(ctx, "Error computing stats", "error", err)
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &stats, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
