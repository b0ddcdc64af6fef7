package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bongocloud/bongo-go/internal/api"
	"github.com/bongocloud/bongo-go/internal/session"
)

func newLoginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Bongo Cloud",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if username == "" {
				username, err = promptLine("Username: ")
				if err != nil {
					return err
				}
			}

			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			user, resp, err := a.session.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			if user == nil {
				return fieldErrors("login failed", resp)
			}

			statusf("Logged in as %s\n", user.Username)

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted if omitted)")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var params api.RegisterParams

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a Bongo Cloud account and log into it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if params.Username == "" {
				params.Username, err = promptLine("Username: ")
				if err != nil {
					return err
				}
			}

			if params.Email == "" {
				params.Email, err = promptLine("Email: ")
				if err != nil {
					return err
				}
			}

			params.Password, err = promptPassword("Password: ")
			if err != nil {
				return err
			}

			user, resp, err := a.session.Register(cmd.Context(), params)
			if err != nil {
				return err
			}

			if user == nil {
				return fieldErrors("registration failed", resp)
			}

			statusf("Registered and logged in as %s\n", user.Username)

			return nil
		},
	}

	cmd.Flags().StringVarP(&params.Username, "username", "u", "", "username (prompted if omitted)")
	cmd.Flags().StringVar(&params.Email, "email", "", "email address (prompted if omitted)")
	cmd.Flags().StringVar(&params.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&params.LastName, "last-name", "", "last name")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			if err := a.session.Logout(); err != nil {
				return err
			}

			statusf("Logged out\n")

			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			user, err := a.session.CurrentUser(cmd.Context())
			if err != nil {
				if errors.Is(err, session.ErrNotLoggedIn) {
					return fmt.Errorf("not logged in (run \"bongo login\")")
				}

				if errors.Is(err, session.ErrServiceUnavailable) {
					return fmt.Errorf("bongo cloud is unreachable; your session is unchanged")
				}

				return err
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(user)
			}

			fmt.Printf("%s", user.Username)

			if user.Email != "" {
				fmt.Printf(" <%s>", user.Email)
			}

			fmt.Println()

			return nil
		},
	}
}

// fieldErrors renders a rejected auth envelope, surfacing the per-field
// validation messages the server returns.
func fieldErrors(prefix string, resp *api.Response) error {
	var fields map[string]json.RawMessage

	if resp != nil && json.Unmarshal(resp.Data, &fields) == nil && len(fields) > 0 {
		parts := make([]string, 0, len(fields))

		for field, raw := range fields {
			var messages []string
			if json.Unmarshal(raw, &messages) == nil {
				parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(messages, "; ")))

				continue
			}

			var message string
			if json.Unmarshal(raw, &message) == nil {
				parts = append(parts, fmt.Sprintf("%s: %s", field, message))
			}
		}

		if len(parts) > 0 {
			return fmt.Errorf("%s: %s", prefix, strings.Join(parts, ", "))
		}
	}

	return errors.New(prefix)
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	return string(password), nil
}
