package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

const roomColumns = `id, session_id, account_id, account_email, meeting_id, meeting_uuid, topic,
start_url, join_url, status, start_time, end_time, notified_at, lock_token, created_at, updated_at`

type roomRow struct {
	ID           string    `db:"id"`
	SessionID    string    `db:"session_id"`
	AccountID    string    `db:"account_id"`
	AccountEmail string    `db:"account_email"`
	MeetingID    string    `db:"meeting_id"`
	MeetingUUID  string    `db:"meeting_uuid"`
	Topic        string    `db:"topic"`
	StartURL     string    `db:"start_url"`
	JoinURL      string    `db:"join_url"`
	Status       string    `db:"status"`
	StartTime    null.Time `db:"start_time"`
	EndTime      null.Time `db:"end_time"`
	NotifiedAt   null.Time `db:"notified_at"`
	LockToken    string    `db:"lock_token"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r roomRow) room() room.Room {
	return room.Room{
		ID:           r.ID,
		SessionID:    r.SessionID,
		AccountID:    r.AccountID,
		AccountEmail: r.AccountEmail,
		MeetingID:    r.MeetingID,
		MeetingUUID:  r.MeetingUUID,
		Topic:        r.Topic,
		StartURL:     r.StartURL,
		JoinURL:      r.JoinURL,
		Status:       r.Status,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		NotifiedAt:   r.NotifiedAt,
		LockToken:    r.LockToken,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type roomRepository struct {
	db *sqlx.DB
}

var _ room.Repository = (*roomRepository)(nil) // interface compliance check

func NewRoomRepository(db *sqlx.DB) *roomRepository {
	return &roomRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to room.ErrNotFound
func (repo roomRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return room.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo roomRepository) CreateRoom(ctx context.Context, rm room.Room, exec ...core.DBExecutor) (room.Room, error) {
	rm.ID = uuid.New().String()
	now := time.Now().UTC()
	rm.CreatedAt, rm.UpdatedAt = now, now

	q := fmt.Sprintf(`INSERT INTO room (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, roomColumns)
	_, err := getExec(repo.db, exec).ExecContext(ctx, q,
		rm.ID, rm.SessionID, rm.AccountID, rm.AccountEmail, rm.MeetingID, rm.MeetingUUID, rm.Topic,
		rm.StartURL, rm.JoinURL, rm.Status, rm.StartTime, rm.EndTime, rm.NotifiedAt, rm.LockToken, rm.CreatedAt, rm.UpdatedAt,
	)
	if err != nil {
		return room.Room{}, errors.Wrap(err, "inserting room")
	}
	return rm, nil
}

func (repo roomRepository) GetRoom(ctx context.Context, filter room.GetFilter, exec ...core.DBExecutor) (room.Room, error) {
	var conds []string
	var args []interface{}

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return room.Room{}, room.ErrNotFound
		}
		conds, args = appendCond(conds, args, "id", filter.ID)
	}
	if filter.SessionID != "" {
		conds, args = appendCond(conds, args, "session_id", filter.SessionID)
	}
	if filter.MeetingID != "" {
		conds, args = appendCond(conds, args, "meeting_id", filter.MeetingID)
	}
	if filter.Status != "" {
		conds, args = appendCond(conds, args, "status", filter.Status)
	}
	if len(conds) == 0 {
		return room.Room{}, room.ErrNotFound
	}

	// newest matching room wins
	q := fmt.Sprintf(`SELECT %s FROM room WHERE %s ORDER BY created_at DESC LIMIT 1`,
		roomColumns, strings.Join(conds, " AND "))

	var row roomRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, args...); err != nil {
		return room.Room{}, repo.trapNoRowsErr(err, "finding room")
	}
	return row.room(), nil
}

func (repo roomRepository) QueryRooms(ctx context.Context, filter *room.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]room.Room, error) {
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.SessionID != "" {
			conds, args = appendCond(conds, args, "session_id", filter.SessionID)
		}
		if filter.MeetingID != "" {
			conds, args = appendCond(conds, args, "meeting_id", filter.MeetingID)
		}
		if filter.Status != "" {
			conds, args = appendCond(conds, args, "status", filter.Status)
		}
	}

	q := fmt.Sprintf(`SELECT %s FROM room`, roomColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	}

	var rows []roomRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}

	rooms := make([]room.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.room())
	}
	return rooms, nil
}

func (repo roomRepository) UpdateRoom(ctx context.Context, rm room.Room, exec ...core.DBExecutor) (room.Room, error) {
	rm.UpdatedAt = time.Now().UTC()

	q := `UPDATE room SET meeting_uuid = $2, topic = $3, start_url = $4, join_url = $5, status = $6,
start_time = $7, end_time = $8, notified_at = $9, lock_token = $10, updated_at = $11 WHERE id = $1`
	res, err := getExec(repo.db, exec).ExecContext(ctx, q,
		rm.ID, rm.MeetingUUID, rm.Topic, rm.StartURL, rm.JoinURL, rm.Status,
		rm.StartTime, rm.EndTime, rm.NotifiedAt, rm.LockToken, rm.UpdatedAt,
	)
	if err != nil {
		return room.Room{}, errors.Wrap(err, "updating room")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return room.Room{}, room.ErrNotFound
	}
	return rm, nil
}

func appendCond(conds []string, args []interface{}, col string, val interface{}) ([]string, []interface{}) {
	args = append(args, val)
	return append(conds, fmt.Sprintf("%s = $%d", col, len(args))), args
}
