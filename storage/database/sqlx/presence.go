package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

const presenceColumns = `id, room_id, user_id, name, email, registrant_id, join_url, status,
joined_at, left_at, duration, created_at, updated_at`

type presenceRow struct {
	ID           string    `db:"id"`
	RoomID       string    `db:"room_id"`
	UserID       string    `db:"user_id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	RegistrantID string    `db:"registrant_id"`
	JoinURL      string    `db:"join_url"`
	Status       string    `db:"status"`
	JoinedAt     null.Time `db:"joined_at"`
	LeftAt       null.Time `db:"left_at"`
	Duration     int       `db:"duration"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r presenceRow) presence() room.Presence {
	return room.Presence{
		ID:           r.ID,
		RoomID:       r.RoomID,
		UserID:       r.UserID,
		Name:         r.Name,
		Email:        r.Email,
		RegistrantID: r.RegistrantID,
		JoinURL:      r.JoinURL,
		Status:       r.Status,
		JoinedAt:     r.JoinedAt,
		LeftAt:       r.LeftAt,
		Duration:     r.Duration,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type presenceRepository struct {
	db *sqlx.DB
}

var _ room.PresenceRepository = (*presenceRepository)(nil) // interface compliance check

func NewPresenceRepository(db *sqlx.DB) *presenceRepository {
	return &presenceRepository{db: db}
}

func (repo presenceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return room.ErrPresenceNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo presenceRepository) GetPresence(ctx context.Context, roomID, email string, exec ...core.DBExecutor) (room.Presence, error) {
	q := fmt.Sprintf(`SELECT %s FROM presence WHERE room_id = $1 AND email = $2`, presenceColumns)

	var row presenceRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, roomID, email); err != nil {
		return room.Presence{}, repo.trapNoRowsErr(err, "finding presence")
	}
	return row.presence(), nil
}

func (repo presenceRepository) UpsertPresence(ctx context.Context, pr room.Presence, exec ...core.DBExecutor) (room.Presence, error) {
	now := time.Now().UTC()
	pr.UpdatedAt = now
	if pr.ID == "" {
		pr.ID = uuid.New().String()
		pr.CreatedAt = now
	}

	q := fmt.Sprintf(`INSERT INTO presence (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (room_id, email) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name,
registrant_id = EXCLUDED.registrant_id, join_url = EXCLUDED.join_url, status = EXCLUDED.status,
joined_at = EXCLUDED.joined_at, left_at = EXCLUDED.left_at, duration = EXCLUDED.duration,
updated_at = EXCLUDED.updated_at`, presenceColumns)
	_, err := getExec(repo.db, exec).ExecContext(ctx, q,
		pr.ID, pr.RoomID, pr.UserID, pr.Name, pr.Email, pr.RegistrantID, pr.JoinURL, pr.Status,
		pr.JoinedAt, pr.LeftAt, pr.Duration, pr.CreatedAt, pr.UpdatedAt,
	)
	if err != nil {
		return room.Presence{}, errors.Wrap(err, "upserting presence")
	}
	return repo.GetPresence(ctx, pr.RoomID, pr.Email, exec...)
}

func (repo presenceRepository) QueryRoomPresences(ctx context.Context, roomID string, exec ...core.DBExecutor) ([]room.Presence, error) {
	q := fmt.Sprintf(`SELECT %s FROM presence WHERE room_id = $1 ORDER BY created_at ASC`, presenceColumns)

	var rows []presenceRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, roomID); err != nil {
		return nil, errors.Wrap(err, "querying presences")
	}

	presences := make([]room.Presence, 0, len(rows))
	for _, row := range rows {
		presences = append(presences, row.presence())
	}
	return presences, nil
}

func (repo presenceRepository) CountJoined(ctx context.Context, roomID string, exec ...core.DBExecutor) (int, error) {
	q := `SELECT COUNT(DISTINCT email) FROM presence WHERE room_id = $1 AND status = $2`

	var count int
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &count, q, roomID, room.PresenceJoined); err != nil {
		return 0, errors.Wrap(err, "counting joined presences")
	}
	return count, nil
}
