package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
)

const sessionColumns = `id, course_id, name, kind, instructor_id, begin_at, end_at, access_code,
room_status, recordings, created_at, updated_at`

type sessionRow struct {
	ID           string          `db:"id"`
	CourseID     string          `db:"course_id"`
	Name         string          `db:"name"`
	Kind         string          `db:"kind"`
	InstructorID string          `db:"instructor_id"`
	BeginAt      time.Time       `db:"begin_at"`
	EndAt        time.Time       `db:"end_at"`
	AccessCode   string          `db:"access_code"`
	RoomStatus   string          `db:"room_status"`
	Recordings   json.RawMessage `db:"recordings"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r sessionRow) session() (session.Session, error) {
	sess := session.Session{
		ID:           r.ID,
		CourseID:     r.CourseID,
		Name:         r.Name,
		Kind:         r.Kind,
		InstructorID: r.InstructorID,
		Begin:        r.BeginAt,
		End:          r.EndAt,
		AccessCode:   r.AccessCode,
		RoomStatus:   r.RoomStatus,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Recordings) > 0 {
		if err := json.Unmarshal(r.Recordings, &sess.Recordings); err != nil {
			return session.Session{}, errors.Wrap(err, "decoding session recordings")
		}
	}
	return sess, nil
}

const registrationColumns = `id, session_id, course_id, user_id, user_name, user_email, role, is_active, created_at`

type registrationRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	CourseID  string    `db:"course_id"`
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	UserEmail string    `db:"user_email"`
	Role      string    `db:"role"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

func (r registrationRow) registration() session.Registration {
	return session.Registration{
		ID:        r.ID,
		SessionID: r.SessionID,
		CourseID:  r.CourseID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		UserEmail: r.UserEmail,
		Role:      r.Role,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (session.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return session.Session{}, session.ErrNotFound
	}

	q := fmt.Sprintf(`SELECT %s FROM session WHERE id = $1`, sessionColumns)

	var row sessionRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding session")
	}
	return row.session()
}

func (repo sessionRepository) SetSessionRoomStatus(ctx context.Context, id, roomStatus string, exec ...core.DBExecutor) error {
	q := `UPDATE session SET room_status = $2, updated_at = $3 WHERE id = $1`
	res, err := getExec(repo.db, exec).ExecContext(ctx, q, id, roomStatus, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "updating session room status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (repo sessionRepository) AppendSessionRecording(ctx context.Context, id string, rec session.Recording, exec ...core.DBExecutor) (bool, error) {
	recJSON, err := json.Marshal([]session.Recording{rec})
	if err != nil {
		return false, errors.Wrap(err, "encoding recording")
	}
	// containment probe on the provider recording id only
	probe, err := json.Marshal([]map[string]string{{"id": rec.ID}})
	if err != nil {
		return false, errors.Wrap(err, "encoding recording probe")
	}

	// single-statement append keeps concurrent duplicate webhooks from double-appending
	q := `UPDATE session SET recordings = recordings || $2::jsonb, updated_at = $4
WHERE id = $1 AND NOT recordings @> $3::jsonb`
	res, err := getExec(repo.db, exec).ExecContext(ctx, q, id, recJSON, probe, time.Now().UTC())
	if err != nil {
		return false, errors.Wrap(err, "appending session recording")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// either a duplicate or a missing session; disambiguate
		if _, err = repo.GetSession(ctx, id, exec...); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (repo sessionRepository) GetRegistration(ctx context.Context, sessionID, userID string, exec ...core.DBExecutor) (session.Registration, error) {
	q := fmt.Sprintf(`SELECT %s FROM registration WHERE session_id = $1 AND user_id = $2 AND is_active`, registrationColumns)

	var row registrationRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, sessionID, userID); err != nil {
		if err == sql.ErrNoRows {
			return session.Registration{}, session.ErrRegistrationNotFound
		}
		return session.Registration{}, errors.Wrap(err, "finding registration")
	}
	return row.registration(), nil
}

func (repo sessionRepository) QueryRoster(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]session.Registration, error) {
	q := fmt.Sprintf(`SELECT %s FROM registration WHERE session_id = $1 AND is_active ORDER BY created_at ASC`, registrationColumns)

	var rows []registrationRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}

	regs := make([]session.Registration, 0, len(rows))
	for _, row := range rows {
		regs = append(regs, row.registration())
	}
	return regs, nil
}
