package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	doclient "github.com/goliatone/go-doclient"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := clientFrom(cmd)

			if password == "" {
				p, err := readPassword(cmd)
				if err != nil {
					return err
				}
				password = p
			}

			if err := dc.Session.Login(cmd.Context(), username, password); err != nil {
				return failure(dc.Session.LastError(), err)
			}
			return render(cmd, dc.Session.User())
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password, prompted when empty")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientFrom(cmd).Session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Show the profile of the current session",
		Args:        cobra.NoArgs,
		Annotations: requiresAuth,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := clientFrom(cmd)
			profile, err := dc.Session.FetchIdentity(cmd.Context())
			if err != nil {
				return failure(doclient.FailureMessage(err), err)
			}
			return render(cmd, profile)
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var r doclient.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := clientFrom(cmd)

			if r.Password == "" {
				p, err := readPassword(cmd)
				if err != nil {
					return err
				}
				r.Password = p
			}

			if err := dc.Session.Register(cmd.Context(), r); err != nil {
				return failure(dc.Session.LastError(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s, run `doclient login` to start a session\n", r.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&r.Username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&r.Password, "password", "p", "", "account password, prompted when empty")
	cmd.Flags().StringVar(&r.Email, "email", "", "contact email")
	return cmd
}

func newPasswdCmd() *cobra.Command {
	var change doclient.PasswordChange

	cmd := &cobra.Command{
		Use:         "passwd",
		Short:       "Change the password of the current account",
		Args:        cobra.NoArgs,
		Annotations: requiresAuth,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := clientFrom(cmd)

			var prompts []string
			if change.OldPassword == "" {
				prompts = append(prompts, "Current password: ")
			}
			if change.NewPassword == "" {
				prompts = append(prompts, "New password: ")
			}
			answers, err := readSecrets(cmd, prompts...)
			if err != nil {
				return err
			}
			if change.OldPassword == "" {
				change.OldPassword, answers = answers[0], answers[1:]
			}
			if change.NewPassword == "" {
				change.NewPassword = answers[0]
			}

			if err := dc.Session.ChangePassword(cmd.Context(), change); err != nil {
				return failure(dc.Session.LastError(), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}

	cmd.Flags().StringVar(&change.OldPassword, "old", "", "current password, prompted when empty")
	cmd.Flags().StringVar(&change.NewPassword, "new", "", "new password, prompted when empty")
	return cmd
}

func newProfileCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:         "profile",
		Short:       "Update the profile of the current account",
		Args:        cobra.NoArgs,
		Annotations: requiresAuth,
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := clientFrom(cmd)
			ctx := cmd.Context()

			if _, err := dc.Session.EnsureIdentity(ctx); err != nil {
				return failure(doclient.FailureMessage(err), err)
			}

			var update doclient.ProfileUpdate
			if cmd.Flags().Changed("email") {
				update.Email = &email
			}
			if err := dc.Session.UpdateProfile(ctx, update); err != nil {
				return failure(dc.Session.LastError(), err)
			}
			return render(cmd, dc.Session.User())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "contact email")
	return cmd
}

// readPassword prompts without echo on a terminal and reads a single line
// from the command input otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	answers, err := readSecrets(cmd, "Password: ")
	if err != nil {
		return "", err
	}
	return answers[0], nil
}

// readSecrets reads one answer per prompt, one line each when the input is
// not a terminal.
func readSecrets(cmd *cobra.Command, prompts ...string) ([]string, error) {
	answers := make([]string, 0, len(prompts))

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		for _, prompt := range prompts {
			fmt.Fprint(cmd.ErrOrStderr(), prompt)
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return nil, err
			}
			answers = append(answers, string(b))
		}
		return answers, nil
	}

	r := bufio.NewReader(cmd.InOrStdin())
	for range prompts {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		answers = append(answers, strings.TrimRight(line, "\r\n"))
	}
	return answers, nil
}

func render(cmd *cobra.Command, v any) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(v))
	return err
}

// failure prefers the display message recorded by a store over the raw error.
func failure(message string, err error) error {
	if message == "" {
		return err
	}
	return errors.New(message)
}
