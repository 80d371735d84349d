package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

type accountRepository struct {
	db *accountTable
}

var _ room.AccountRepository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter room.AccountGetFilter, exec ...core.DBExecutor) (room.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if acct, ok := repo.db.table[filter.ID]; ok {
			return *acct, nil
		}
		return room.Account{}, room.ErrAccountNotFound
	}
	if filter.Email != "" {
		for _, acct := range repo.db.table {
			if acct.Email == filter.Email {
				return *acct, nil
			}
		}
	}
	return room.Account{}, room.ErrAccountNotFound
}

func (repo *accountRepository) QueryAccounts(ctx context.Context, filter *room.AccountQueryFilter, exec ...core.DBExecutor) ([]room.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	accts := make([]room.Account, 0, len(repo.db.table))
	for _, acct := range repo.db.table {
		if filter != nil && filter.IsActive != nil && acct.IsActive != *filter.IsActive {
			continue
		}
		accts = append(accts, *acct)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].CreatedAt.Before(accts[j].CreatedAt) })
	return accts, nil
}

func (repo *accountRepository) UpdateOrCreateAccount(ctx context.Context, acct room.Account, exec ...core.DBExecutor) (room.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	acct.UpdatedAt = now
	if acct.OnlineStatus == "" {
		acct.OnlineStatus = room.AccountOffline
	}

	for id, existing := range repo.db.table {
		if existing.Email == acct.Email {
			acct.ID = id
			acct.CreatedAt = existing.CreatedAt
			repo.db.table[id] = &acct
			return acct, nil
		}
	}

	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	acct.CreatedAt = now
	repo.db.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) SetAccountOnline(ctx context.Context, id string, online bool, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	acct, ok := repo.db.table[id]
	if !ok {
		return room.ErrAccountNotFound
	}
	if online {
		acct.OnlineStatus = room.AccountOnline
	} else {
		acct.OnlineStatus = room.AccountOffline
	}
	acct.UpdatedAt = time.Now().UTC()
	return nil
}
