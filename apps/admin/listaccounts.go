package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

func (cli *commandLine) listAccounts() error {
	accts, err := cli.acctRepo.QueryAccounts(context.Background(), nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEMAIL\tHOST ID\tSTATUS\tACTIVE")
	for _, acct := range accts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", acct.Name, acct.Email, acct.HostID(), acct.OnlineStatus, acct.IsActive)
	}
	return w.Flush()
}
