package admin

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/spf13/cobra"
)

// validUsername rejects names that would break the pipe-delimited protocol.
func validUsername(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("username must not be empty")
	case strings.ContainsAny(name, "|\r\n \t"):
		return fmt.Errorf("username %q must not contain spaces or '|'", name)
	case name == common.AutoAISender:
		return fmt.Errorf("username %q is reserved", name)
	}
	return nil
}

func (a *app) createUserCmd() *cobra.Command {
	var (
		email      string
		department string
		prompt     bool
	)

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create an account with a temporary password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := validUsername(name); err != nil {
				return err
			}

			pw, err := a.tempPassword(prompt)
			if err != nil {
				return err
			}

			err = a.service().CreateUser(cmd.Context(), credentials.NewUser{
				Username:   name,
				Email:      email,
				Department: department,
			}, pw)
			if errors.Is(err, common.ErrAlreadyExists) {
				return fmt.Errorf("user %s already exists", name)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Created user %s\n", name)
			if !prompt {
				fmt.Fprintf(a.out, "Temporary password: %s\n", pw)
			}
			fmt.Fprintln(a.out, "The user must change it on first login.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&department, "department", "", "department")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "type the temporary password instead of generating one")
	return cmd
}

func (a *app) resetCmd() *cobra.Command {
	var prompt bool

	cmd := &cobra.Command{
		Use:   "reset <username>",
		Short: "Issue a new temporary password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			pw, err := a.tempPassword(prompt)
			if err != nil {
				return err
			}

			err = a.service().ResetTempPassword(cmd.Context(), name, pw)
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("no such user %s", name)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Reset password for %s\n", name)
			if !prompt {
				fmt.Fprintf(a.out, "Temporary password: %s\n", pw)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&prompt, "prompt", false, "type the temporary password instead of generating one")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.service().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(a.out, "No users.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tEMAIL\tDEPARTMENT\tCREATED\tSTATUS")
			for _, acc := range accounts {
				status := "active"
				if acc.PendingChange {
					status = "must change password"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", acc.Username, dash(acc.Email), dash(acc.Department), dash(acc.CreatedAt), status)
			}
			return tw.Flush()
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
