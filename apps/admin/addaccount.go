package main

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

// addAccount updates or creates a pool host account.
func (cli *commandLine) addAccount(name, email, key, secret, hostID string) error {
	acct := room.Account{
		Name:       name,
		Email:      core.CleanString(email, true /* lower */),
		APIKey:     key,
		APISecret:  secret,
		HostUserID: core.CleanString(hostID, true /* lower */),
		IsActive:   true,
	}
	if _, err := cli.acctRepo.UpdateOrCreateAccount(context.Background(), acct); err != nil {
		return err
	}
	return nil
}
