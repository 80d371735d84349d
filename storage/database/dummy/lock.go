package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/room"
)

type locker struct {
	db *lockTable

	// Now lets tests control lease expiry.
	Now func() time.Time
}

var _ room.Locker = (*locker)(nil) // interface compliance check

func NewLocker(db *DB) *locker {
	return &locker{db: db.lock, Now: time.Now}
}

func (l *locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.db.Lock()
	defer l.db.Unlock()

	now := l.Now()
	if held, ok := l.db.table[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}
	token := uuid.New().String()
	l.db.table[key] = lease{holder: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *locker) Unlock(ctx context.Context, key, token string) error {
	l.db.Lock()
	defer l.db.Unlock()

	if held, ok := l.db.table[key]; ok && held.holder == token {
		delete(l.db.table, key)
	}
	return nil
}

// IsLocked reports whether key currently has a live lease.
func (l *locker) IsLocked(key string) bool {
	l.db.Lock()
	defer l.db.Unlock()

	held, ok := l.db.table[key]
	return ok && l.Now().Before(held.expiresAt)
}
