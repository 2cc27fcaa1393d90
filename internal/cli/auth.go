package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func (a *app) signupCommand() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s session
			body := map[string]string{"email": email, "password": password, "name": name}
			if err := a.client.Post("/auth/signup", body, &s); err != nil {
				return fmt.Errorf("signing up: %w", err)
			}
			return a.saveSession(cmd, s, "Signed up")
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to your familyhub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var s session
			body := map[string]string{"email": email, "password": password}
			if err := a.client.Post("/auth/login", body, &s); err != nil {
				return fmt.Errorf("signing in: %w", err)
			}
			return a.saveSession(cmd, s, "Signed in")
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) saveSession(cmd *cobra.Command, s session, verb string) error {
	a.cfg.Token = s.Token
	a.cfg.Email = s.Email
	if err := SaveConfig(a.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	if a.flagJSON {
		return printJSON(cmd.OutOrStdout(), s)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s as %s\n", verb, s.Email)
	return nil
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.HasToken() {
				err := a.client.Post("/auth/logout", nil, nil)
				// An expired session is already over; forget it anyway.
				var apiErr *APIError
				if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
					return fmt.Errorf("signing out: %w", err)
				}
			}
			a.cfg.Token = ""
			a.cfg.Email = ""
			if err := SaveConfig(a.cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			var u user
			if err := a.client.Get("/users/me", nil, &u); err != nil {
				return fmt.Errorf("fetching user: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), u)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:   %s\n", u.DisplayName)
			fmt.Fprintf(out, "Email:  %s\n", u.Email)
			fmt.Fprintf(out, "UID:    %s\n", u.UID)
			if u.FamilyID != nil {
				fmt.Fprintf(out, "Family: %s\n", *u.FamilyID)
			} else {
				fmt.Fprintln(out, "Family: -")
			}
			return nil
		},
	}
}
