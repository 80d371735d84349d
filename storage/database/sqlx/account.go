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

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

const accountColumns = `id, name, email, api_key, api_secret, host_user_id, online_status, is_active, created_at, updated_at`

type accountRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	APIKey       string    `db:"api_key"`
	APISecret    string    `db:"api_secret"`
	HostUserID   string    `db:"host_user_id"`
	OnlineStatus string    `db:"online_status"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r accountRow) account() room.Account {
	return room.Account{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		APIKey:       r.APIKey,
		APISecret:    r.APISecret,
		HostUserID:   r.HostUserID,
		OnlineStatus: r.OnlineStatus,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type accountRepository struct {
	db *sqlx.DB
}

var _ room.AccountRepository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return room.ErrAccountNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo accountRepository) GetAccount(ctx context.Context, filter room.AccountGetFilter, exec ...core.DBExecutor) (room.Account, error) {
	var conds []string
	var args []interface{}

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return room.Account{}, room.ErrAccountNotFound
		}
		conds, args = appendCond(conds, args, "id", filter.ID)
	}
	if filter.Email != "" {
		conds, args = appendCond(conds, args, "email", filter.Email)
	}
	if len(conds) == 0 {
		return room.Account{}, room.ErrAccountNotFound
	}

	q := fmt.Sprintf(`SELECT %s FROM host_account WHERE %s LIMIT 1`, accountColumns, strings.Join(conds, " AND "))

	var row accountRow
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, args...); err != nil {
		return room.Account{}, repo.trapNoRowsErr(err, "finding host account")
	}
	return row.account(), nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, filter *room.AccountQueryFilter, exec ...core.DBExecutor) ([]room.Account, error) {
	q := fmt.Sprintf(`SELECT %s FROM host_account`, accountColumns)
	var args []interface{}

	if filter != nil && filter.IsActive != nil {
		q += " WHERE is_active = $1"
		args = append(args, *filter.IsActive)
	}
	q += " ORDER BY created_at ASC"

	var rows []accountRow
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying host accounts")
	}

	accts := make([]room.Account, 0, len(rows))
	for _, row := range rows {
		accts = append(accts, row.account())
	}
	return accts, nil
}

func (repo accountRepository) UpdateOrCreateAccount(ctx context.Context, acct room.Account, exec ...core.DBExecutor) (room.Account, error) {
	now := time.Now().UTC()
	acct.UpdatedAt = now
	if acct.ID == "" {
		acct.ID = uuid.New().String()
		acct.CreatedAt = now
	}
	if acct.OnlineStatus == "" {
		acct.OnlineStatus = room.AccountOffline
	}

	// email identifies the account on the provider side; re-adding one updates it
	q := fmt.Sprintf(`INSERT INTO host_account (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, api_key = EXCLUDED.api_key,
api_secret = EXCLUDED.api_secret, host_user_id = EXCLUDED.host_user_id,
is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`, accountColumns)
	_, err := getExec(repo.db, exec).ExecContext(ctx, q,
		acct.ID, acct.Name, acct.Email, acct.APIKey, acct.APISecret, acct.HostUserID,
		acct.OnlineStatus, acct.IsActive, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return room.Account{}, errors.Wrap(err, "upserting host account")
	}
	return repo.GetAccount(ctx, room.AccountGetFilter{Email: acct.Email}, exec...)
}

func (repo accountRepository) SetAccountOnline(ctx context.Context, id string, online bool, exec ...core.DBExecutor) error {
	status := room.AccountOffline
	if online {
		status = room.AccountOnline
	}

	q := `UPDATE host_account SET online_status = $2, updated_at = $3 WHERE id = $1`
	res, err := getExec(repo.db, exec).ExecContext(ctx, q, id, status, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "updating host account status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return room.ErrAccountNotFound
	}
	return nil
}
