package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/room"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	acctRepo room.AccountRepository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  addaccount -name NAME -email EMAIL -key API_KEY [-hostid HOST_USER_ID] - add or update a pool host account")
	fmt.Println("  listaccounts - list the pool host accounts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAccountCmd := flag.NewFlagSet("addaccount", flag.ExitOnError)
	addAccountName := addAccountCmd.String("name", "", "The account's display name.")
	addAccountEmail := addAccountCmd.String("email", "", "The account's host email on the provider.")
	addAccountKey := addAccountCmd.String("key", "", "The account's API key. The API secret will be prompted next.")
	addAccountHostID := addAccountCmd.String("hostid", "", "The provider user ID; defaults to the email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addaccount":
		if err := addAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAccountName == "" || *addAccountEmail == "" || *addAccountKey == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter API secret:")
		secret, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(secret) == 0 {
			addAccountCmd.Usage()
			return errHelp
		}
		return cli.addAccount(*addAccountName, *addAccountEmail, *addAccountKey, string(secret), *addAccountHostID)
	case "listaccounts":
		return cli.listAccounts()
	default:
		cli.printUsage()
		return errHelp
	}
}
