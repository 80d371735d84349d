package room

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// AcquireAccount picks a free host account from the pool and returns it with
// its distributed lock still held. The lock is released by the `started`
// webhook once the room is confirmed live, or unilaterally by the TTL when the
// allocation attempt crashed mid-flight.
//
// Candidates are tried in randomized order so no single account becomes a hot
// spot. An account whose lock is already held is simply skipped: another
// request is busy with it. A duplicate concurrent call for the same session is
// a safe race; room creation downstream is idempotent per session+account.
func (svc *Service) AcquireAccount(ctx context.Context) (Account, string, error) {
	active := true
	accounts, err := svc.accounts.QueryAccounts(ctx, &AccountQueryFilter{IsActive: &active})
	if err != nil {
		return Account{}, "", errors.Wrap(err, "querying pool accounts")
	}
	if len(accounts) == 0 {
		return Account{}, "", ErrPoolExhausted
	}

	svc.shuffle(len(accounts), func(i, j int) { accounts[i], accounts[j] = accounts[j], accounts[i] })

	for _, acct := range accounts {
		token, ok, err := svc.locker.TryLock(ctx, accountLockKey(acct.ID), svc.conf.Provider.AccountLockTTL)
		if err != nil {
			return Account{}, "", errors.Wrap(err, "locking account")
		}
		if !ok {
			continue // another allocator is on it
		}

		pctx, cancel := svc.providerCtx(ctx)
		liveCount, err := svc.meetings.CountLiveMeetings(pctx, acct)
		cancel()
		if err != nil {
			// availability cannot be verified; free the account and move on
			svc.unlockAccount(ctx, acct.ID, token)
			svc.logger.Warn(fmt.Sprintf("room: counting live meetings on account %s: %v", acct.ID, err), err)
			continue
		}
		if liveCount == 0 {
			return acct, token, nil
		}
		svc.unlockAccount(ctx, acct.ID, token)
	}
	return Account{}, "", ErrPoolExhausted
}

func accountLockKey(accountID string) string { return "account:" + accountID }

// unlockAccount releases a pool reservation; a stale or expired token is a no-op.
func (svc *Service) unlockAccount(ctx context.Context, accountID, token string) {
	if err := svc.locker.Unlock(ctx, accountLockKey(accountID), token); err != nil {
		svc.logger.Warn(fmt.Sprintf("room: unlocking account %s: %v", accountID, err), err)
	}
}
