package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) familyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "family",
		Short: "Create, join and manage your family",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return a.requireAuth()
		},
	}
	cmd.AddCommand(
		a.familyCreateCommand(),
		a.familyJoinCommand(),
		a.familyLeaveCommand(),
		a.familyShowCommand(),
		a.familyMembersCommand(),
		a.familyRemoveCommand(),
	)
	return cmd
}

func (a *app) familyCreateCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a family and become its head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if name != "" {
				body = map[string]string{"name": name}
			}
			var resp createdFamily
			if err := a.client.Post("/families", body, &resp); err != nil {
				return fmt.Errorf("creating family: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %q. Share invite code %s to add members.\n", resp.Family.Name, resp.InviteCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Family name (default: named after you)")
	return cmd
}

func (a *app) familyJoinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "join <invite-code>",
		Short: "Join a family with its invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f family
			if err := a.client.Post("/families/join", map[string]string{"invite_code": args[0]}, &f); err != nil {
				return fmt.Errorf("joining family: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %q.\n", f.Name)
			return nil
		},
	}
}

func (a *app) familyLeaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave your family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Post("/families/leave", nil, nil); err != nil {
				return fmt.Errorf("leaving family: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "You left your family.")
			return nil
		},
	}
}

func (a *app) familyShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your family and its invite code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f family
			if err := a.client.Get("/families/me", nil, &f); err != nil {
				return fmt.Errorf("fetching family: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), f)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", f.Name)
			fmt.Fprintf(out, "ID:          %s\n", f.ID)
			fmt.Fprintf(out, "Invite code: %s\n", f.InviteCode)
			fmt.Fprintf(out, "Members:     %d\n", len(f.Members))
			return nil
		},
	}
}

func (a *app) familyMembersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List the members of your family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var members []member
			if err := a.client.Get("/families/me/members", nil, &members); err != nil {
				return fmt.Errorf("listing members: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), members)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEMAIL\tROLE\tUID")
			for _, m := range members {
				role := "member"
				if m.IsHead {
					role = "head"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.DisplayName, m.Email, role, m.UID)
			}
			return w.Flush()
		},
	}
}

func (a *app) familyRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <uid>",
		Short: "Remove a member from your family (head only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f family
			if err := a.client.Get("/families/me", nil, &f); err != nil {
				return fmt.Errorf("fetching family: %w", err)
			}
			if err := a.client.Delete(fmt.Sprintf("/families/%s/members/%s", f.ID, args[0])); err != nil {
				return fmt.Errorf("removing member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %q.\n", args[0], f.Name)
			return nil
		},
	}
}
