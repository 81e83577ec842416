package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/ui"

	"github.com/spf13/cobra"
)

var flagAs string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the users allowed to download",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user (owner only, see --as)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		st, err := a.openStore(ctx)
		if err != nil {
			return err
		}

		svc := a.authService(st)
		if err := svc.CheckOwner(ctx, flagAs); err != nil {
			return err
		}

		p := ui.Prompter{}
		pass, err := p.Password()
		if err != nil {
			return err
		}
		again, err := p.Password()
		if err != nil {
			return err
		}
		if pass != again {
			return errors.New("passwords do not match")
		}

		if err := svc.AddUser(ctx, args[0], pass, flagAs); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User '%s' added successfully!\n", args[0])
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered usernames",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		st, err := a.openStore(ctx)
		if err != nil {
			return err
		}

		users, err := st.ListUsers(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, "No authorized users found. Add one with `mangapdf users add <name> --as <owner_id>`.")
			return nil
		}

		names := make([]string, 0, len(users))
		for u := range users {
			names = append(names, u)
		}
		sort.Strings(names)

		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&flagAs, "as", "", "identity of the requester, compared with telegram.owner_id")

	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
