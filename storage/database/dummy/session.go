package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
)

type sessionRepository struct {
	db   *sessionTable
	regs *registrationTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session, regs: db.registration}
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) SetSessionRoomStatus(ctx context.Context, id, roomStatus string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.RoomStatus = roomStatus
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *sessionRepository) AppendSessionRecording(ctx context.Context, id string, rec session.Recording, exec ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[id]
	if !ok {
		return false, session.ErrNotFound
	}
	if sess.HasRecording(rec.ID) {
		return false, nil
	}
	sess.Recordings = append(sess.Recordings, rec)
	sess.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (repo *sessionRepository) GetRegistration(ctx context.Context, sessionID, userID string, exec ...core.DBExecutor) (session.Registration, error) {
	repo.regs.RLock()
	defer repo.regs.RUnlock()

	for _, reg := range repo.regs.table {
		if reg.SessionID == sessionID && reg.UserID == userID && reg.IsActive {
			return *reg, nil
		}
	}
	return session.Registration{}, session.ErrRegistrationNotFound
}

func (repo *sessionRepository) QueryRoster(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]session.Registration, error) {
	repo.regs.RLock()
	defer repo.regs.RUnlock()

	var regs []session.Registration
	for _, reg := range repo.regs.table {
		if reg.SessionID == sessionID && reg.IsActive {
			regs = append(regs, *reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].CreatedAt.Before(regs[j].CreatedAt) })
	return regs, nil
}
