package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

type eventRepository struct {
	db *eventTable
}

var _ room.EventRepository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) *eventRepository {
	return &eventRepository{db: db.event}
}

func (repo *eventRepository) CreateEvent(ctx context.Context, evt room.WebhookEvent, exec ...core.DBExecutor) (room.WebhookEvent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	evt.ID = uuid.New().String()
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	repo.db.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter *room.EventQueryFilter, exec ...core.DBExecutor) ([]room.WebhookEvent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var events []room.WebhookEvent
	for _, evt := range repo.db.table {
		if filter != nil {
			if filter.MeetingID != "" && evt.MeetingID != filter.MeetingID {
				continue
			}
			if filter.Event != "" && evt.Event != filter.Event {
				continue
			}
		}
		events = append(events, *evt)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ReceivedAt.Before(events[j].ReceivedAt) })
	return events, nil
}
