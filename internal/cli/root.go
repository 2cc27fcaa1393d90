// Package cli is the famctl command line client.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// app is the state shared by every command in one invocation.
type app struct {
	flagJSON   bool
	flagServer string

	cfg    *Config
	client *Client
}

// NewRootCommand builds the famctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "famctl",
		Short: "famctl manages your family from the terminal",
		Long: `famctl signs you in to a familyhub server and manages your family
membership and chores.

Get started:
  famctl signup --email you@example.com --password secret1
  famctl family create --name "The Smiths"
  famctl family join ABC123`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if env := os.Getenv("FAMCTL_SERVER"); env != "" {
				cfg.ServerURL = env
			}
			if a.flagServer != "" {
				cfg.ServerURL = a.flagServer
			}
			a.cfg = cfg
			a.client = NewClient(cfg.ServerURL, cfg.Token)
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&a.flagJSON, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&a.flagServer, "server", "", "Server URL (default: $FAMCTL_SERVER, the saved config, or "+DefaultURL+")")

	root.AddCommand(
		a.signupCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.familyCommand(),
		a.tasksCommand(),
		a.overviewCommand(),
	)
	return root
}

// Execute runs famctl with the process arguments.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) requireAuth() error {
	if a.cfg == nil || !a.cfg.HasToken() {
		return errors.New(`not signed in, run "famctl login" first`)
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
