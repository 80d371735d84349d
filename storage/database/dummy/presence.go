package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

type presenceRepository struct {
	db *presenceTable
}

var _ room.PresenceRepository = (*presenceRepository)(nil) // interface compliance check

func NewPresenceRepository(db *DB) *presenceRepository {
	return &presenceRepository{db: db.presence}
}

func (repo *presenceRepository) GetPresence(ctx context.Context, roomID, email string, exec ...core.DBExecutor) (room.Presence, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, pr := range repo.db.table {
		if pr.RoomID == roomID && pr.Email == email {
			return *pr, nil
		}
	}
	return room.Presence{}, room.ErrPresenceNotFound
}

func (repo *presenceRepository) UpsertPresence(ctx context.Context, pr room.Presence, exec ...core.DBExecutor) (room.Presence, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	pr.UpdatedAt = now

	for id, existing := range repo.db.table {
		if existing.RoomID == pr.RoomID && existing.Email == pr.Email {
			pr.ID = id
			pr.CreatedAt = existing.CreatedAt
			repo.db.table[id] = &pr
			return pr, nil
		}
	}

	pr.ID = uuid.New().String()
	pr.CreatedAt = now
	repo.db.table[pr.ID] = &pr
	return pr, nil
}

func (repo *presenceRepository) QueryRoomPresences(ctx context.Context, roomID string, exec ...core.DBExecutor) ([]room.Presence, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var presences []room.Presence
	for _, pr := range repo.db.table {
		if pr.RoomID == roomID {
			presences = append(presences, *pr)
		}
	}
	sort.Slice(presences, func(i, j int) bool { return presences[i].CreatedAt.Before(presences[j].CreatedAt) })
	return presences, nil
}

func (repo *presenceRepository) CountJoined(ctx context.Context, roomID string, exec ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	for _, pr := range repo.db.table {
		if pr.RoomID == roomID && pr.Status == room.PresenceJoined {
			seen[pr.Email] = true
		}
	}
	return len(seen), nil
}
