package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

type roomRepository struct {
	db *roomTable
}

var _ room.Repository = (*roomRepository)(nil) // interface compliance check

func NewRoomRepository(db *DB) *roomRepository {
	return &roomRepository{db: db.room}
}

func (repo *roomRepository) query() []room.Room {
	rooms := make([]room.Room, 0, len(repo.db.table))
	for _, rm := range repo.db.table {
		rooms = append(rooms, *rm)
	}
	return rooms
}

func matchRoom(rm room.Room, sessionID, meetingID, status string) bool {
	if sessionID != "" && rm.SessionID != sessionID {
		return false
	}
	if meetingID != "" && rm.MeetingID != meetingID {
		return false
	}
	if status != "" && rm.Status != status {
		return false
	}
	return true
}

func (repo *roomRepository) CreateRoom(ctx context.Context, rm room.Room, exec ...core.DBExecutor) (room.Room, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rm.ID = uuid.New().String()
	now := time.Now().UTC()
	rm.CreatedAt, rm.UpdatedAt = now, now
	repo.db.table[rm.ID] = &rm
	return rm, nil
}

func (repo *roomRepository) GetRoom(ctx context.Context, filter room.GetFilter, exec ...core.DBExecutor) (room.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if rm, ok := repo.db.table[filter.ID]; ok && matchRoom(*rm, filter.SessionID, filter.MeetingID, filter.Status) {
			return *rm, nil
		}
		return room.Room{}, room.ErrNotFound
	}

	var found *room.Room
	for _, rm := range repo.db.table {
		if !matchRoom(*rm, filter.SessionID, filter.MeetingID, filter.Status) {
			continue
		}
		// newest matching room wins
		if found == nil || rm.CreatedAt.After(found.CreatedAt) {
			found = rm
		}
	}
	if found == nil {
		return room.Room{}, room.ErrNotFound
	}
	return *found, nil
}

func (repo *roomRepository) QueryRooms(ctx context.Context, filter *room.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]room.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rooms []room.Room
	for _, rm := range repo.query() {
		if filter == nil || matchRoom(rm, filter.SessionID, filter.MeetingID, filter.Status) {
			rooms = append(rooms, rm)
		}
	}

	asc := true
	if len(ordering) > 0 {
		asc = ordering[0].Ascending
	}
	sort.Slice(rooms, func(i, j int) bool {
		if asc {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (repo *roomRepository) UpdateRoom(ctx context.Context, rm room.Room, exec ...core.DBExecutor) (room.Room, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[rm.ID]; !ok {
		return room.Room{}, room.ErrNotFound
	}
	rm.UpdatedAt = time.Now().UTC()
	repo.db.table[rm.ID] = &rm
	return rm, nil
}
