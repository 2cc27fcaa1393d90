package cli

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) tasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and manage your family's tasks",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return a.requireAuth()
		},
	}
	cmd.AddCommand(a.tasksListCommand(), a.tasksAddCommand(), a.tasksDoneCommand(), a.tasksRemoveCommand())
	return cmd
}

func (a *app) tasksListCommand() *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if pending {
				params.Set("completed", "false")
			}
			var tasks []task
			if err := a.client.Get("/tasks", params, &tasks); err != nil {
				return fmt.Errorf("listing tasks: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDUE\tASSIGNEE\tPRIORITY\tDONE")
			for _, t := range tasks {
				done := "-"
				if t.Completed {
					done = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.DueDate, t.Assignee, t.Priority, done)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Only show tasks that are not done")
	return cmd
}

func (a *app) tasksAddCommand() *cobra.Command {
	var due, assignee, priority string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"title":    args[0],
				"dueDate":  due,
				"assignee": assignee,
				"priority": priority,
			}
			var t task
			if err := a.client.Post("/tasks", body, &t); err != nil {
				return fmt.Errorf("adding task: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added task %s (%s).\n", t.Title, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "Due date, e.g. 2026-03-01")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Who should do it")
	cmd.Flags().StringVar(&priority, "priority", "", "high, medium or low (default medium)")
	_ = cmd.MarkFlagRequired("due")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func (a *app) tasksDoneCommand() *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t task
			if err := a.client.Patch("/tasks/"+args[0], map[string]bool{"completed": !undo}, &t); err != nil {
				return fmt.Errorf("updating task: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), t)
			}
			state := "done"
			if undo {
				state = "pending"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is %s.\n", t.Title, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Move the task back to pending")
	return cmd
}

func (a *app) tasksRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Delete("/tasks/" + args[0]); err != nil {
				return fmt.Errorf("deleting task: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
}

func (a *app) overviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Summarize pending tasks, low stock and the shopping list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			var o overview
			if err := a.client.Get("/overview", nil, &o); err != nil {
				return fmt.Errorf("fetching overview: %w", err)
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), o)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pending tasks:   %d\n", o.PendingTasks)
			fmt.Fprintf(out, "Low stock items: %d\n", o.LowStockItems)
			fmt.Fprintf(out, "Shopping list:   %d\n", o.ShoppingItems)
			return nil
		},
	}
}
