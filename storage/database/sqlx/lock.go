package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/room"
)

// pgLocker is a TTL lock on a plain table, shared by every server instance.
// The upsert only succeeds when the key is free or its previous holder's
// lease has expired, so acquisition is a single atomic statement.
type pgLocker struct {
	db *sqlx.DB
}

var _ room.Locker = (*pgLocker)(nil) // interface compliance check

func NewLocker(db *sqlx.DB) *pgLocker {
	return &pgLocker{db: db}
}

func (l pgLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	now := time.Now().UTC()

	q := `INSERT INTO account_lock (key, holder, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
WHERE account_lock.expires_at <= $4`
	res, err := l.db.ExecContext(ctx, q, key, token, now.Add(ttl), now)
	if err != nil {
		return "", false, errors.Wrap(err, "acquiring lock")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, errors.Wrap(err, "acquiring lock")
	}
	if n == 0 {
		return "", false, nil // held by a live lease
	}
	return token, true, nil
}

func (l pgLocker) Unlock(ctx context.Context, key, token string) error {
	// a stale token deletes nothing; the lease either expired or was stolen
	q := `DELETE FROM account_lock WHERE key = $1 AND holder = $2`
	if _, err := l.db.ExecContext(ctx, q, key, token); err != nil {
		return errors.Wrap(err, "releasing lock")
	}
	return nil
}
