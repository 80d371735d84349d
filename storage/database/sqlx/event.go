package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

const eventColumns = `id, event, event_ts, meeting_id, payload, received_at`

type eventRow struct {
	ID         string          `db:"id"`
	Event      string          `db:"event"`
	EventTS    time.Time       `db:"event_ts"`
	MeetingID  string          `db:"meeting_id"`
	Payload    json.RawMessage `db:"payload"`
	ReceivedAt time.Time       `db:"received_at"`
}

func (r eventRow) event() room.WebhookEvent {
	return room.WebhookEvent{
		ID:         r.ID,
		Event:      r.Event,
		EventTS:    r.EventTS,
		MeetingID:  r.MeetingID,
		Payload:    r.Payload,
		ReceivedAt: r.ReceivedAt,
	}
}

type eventRepository struct {
	db *sqlx.DB
}

var _ room.EventRepository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

func (repo eventRepository) CreateEvent(ctx context.Context, evt room.WebhookEvent, exec ...core.DBExecutor) (room.WebhookEvent, error) {
	evt.ID = uuid.New().String()
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	if evt.Payload == nil {
		evt.Payload = json.RawMessage("{}")
	}

	q := fmt.Sprintf(`INSERT INTO webhook_event (%s) VALUES ($1, $2, $3, $4, $5, $6)`, eventColumns)
	_, err := getExec(repo.db, exec).ExecContext(ctx, q,
		evt.ID, evt.Event, evt.EventTS, evt.MeetingID, []byte(evt.Payload), evt.ReceivedAt,
	)
	if err != nil {
		return room.WebhookEvent{}, errors.Wrap(err, "inserting webhook event")
	}
	return evt, nil
}

func (repo eventRepository) QueryEvents(ctx context.Context, filter *room.EventQueryFilter, exec ...core.DBExecutor) ([]room.WebhookEvent, error) {
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.MeetingID != "" {
			conds, args = appendCond(conds, args, "meeting_id", filter.MeetingID)
		}
		if filter.Event != "" {
			conds, args = appendCond(conds, args, "event", filter.Event)
		}
	}

	q := fmt.Sprintf(`SELECT %s FROM webhook_event`, eventColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY received_at ASC"

	var rows []eventRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying webhook events")
	}

	events := make([]room.WebhookEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.event())
	}
	return events, nil
}
