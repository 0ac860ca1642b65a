package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskpad/backend"
	"taskpad/internal/app"
	"taskpad/internal/dashboard"
)

type itemJSON struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority,omitempty"`
	Category    string `json:"category,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func toItemJSON(it backend.Item) itemJSON {
	return itemJSON{
		ID:          it.ID,
		Title:       it.Title,
		Description: it.Description,
		Status:      string(it.Status),
		Priority:    string(it.Priority),
		Category:    string(it.Category),
		CreatedAt:   it.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func newItemsCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Manage the signed-in user's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	itemsCmd.AddCommand(newItemsListCmd(stdout, cfg))
	itemsCmd.AddCommand(newItemsAddCmd(stdout, cfg))
	itemsCmd.AddCommand(newItemsUpdateCmd(stdout, cfg))
	itemsCmd.AddCommand(newItemsToggleCmd(stdout, cfg))
	itemsCmd.AddCommand(newItemsDeleteCmd(stdout, cfg))
	return itemsCmd
}

func newItemsListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			tab, err := dashboard.ParseTab(filter)
			if err != nil {
				return err
			}
			query, _ := cmd.Flags().GetString("search")

			return withApp(cmd, cfg, func(a *app.App) error {
				items, err := a.ListItems(cmd.Context())
				if err != nil {
					return err
				}
				return doItemsList(stdout, isJSON(cmd), items, tab, query)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("filter", "f", "all", "Show all, active or completed tasks")
	cmd.Flags().StringP("search", "s", "", "Only tasks whose title or category contains this text")
	return cmd
}

func doItemsList(stdout io.Writer, jsonOutput bool, items []backend.Item, tab dashboard.Tab, query string) error {
	stats := dashboard.Summarize(items)
	shown := dashboard.Filter(items, tab, query)

	if jsonOutput {
		out := struct {
			Items []itemJSON      `json:"items"`
			Stats dashboard.Stats `json:"stats"`
		}{Items: make([]itemJSON, 0, len(shown)), Stats: stats}
		for _, it := range shown {
			out.Items = append(out.Items, toItemJSON(it))
		}
		return writeJSON(stdout, out)
	}

	_, _ = fmt.Fprintf(stdout, "Total %d   Active %d   Completed %d   (%d%% done)\n\n",
		stats.Total, stats.Active, stats.Completed, stats.CompletionRate)
	if len(shown) == 0 {
		_, _ = fmt.Fprintln(stdout, "No tasks")
		return nil
	}
	for _, it := range shown {
		_, _ = fmt.Fprintln(stdout, formatItem(it))
	}
	return nil
}

func formatItem(it backend.Item) string {
	check := "[ ]"
	switch it.Status {
	case backend.StatusCompleted:
		check = "[✓]"
	case backend.StatusArchived:
		check = "[-]"
	}
	line := fmt.Sprintf("%s %s  %s", check, it.ID, it.Title)

	var tags []string
	if it.Category != backend.CategoryNone {
		tags = append(tags, string(it.Category))
	}
	if it.Priority != backend.PriorityNone {
		tags = append(tags, string(it.Priority))
	}
	if len(tags) > 0 {
		line += " (" + strings.Join(tags, ", ") + ")"
	}
	return line
}

func printItem(cmd *cobra.Command, stdout io.Writer, verb string, it *backend.Item) error {
	if isJSON(cmd) {
		return writeJSON(stdout, map[string]any{"action": verb, "item": toItemJSON(*it)})
	}
	_, _ = fmt.Fprintf(stdout, "%s: %s\n", verb, formatItem(*it))
	return nil
}

func newItemsAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := backend.Draft{Title: args[0]}
			draft.Description, _ = cmd.Flags().GetString("description")

			var err error
			p, _ := cmd.Flags().GetString("priority")
			if draft.Priority, err = backend.ParsePriority(p); err != nil {
				return err
			}
			c, _ := cmd.Flags().GetString("category")
			if draft.Category, err = backend.ParseCategory(c); err != nil {
				return err
			}

			return withApp(cmd, cfg, func(a *app.App) error {
				item, err := a.AddItem(cmd.Context(), draft)
				if err != nil {
					return err
				}
				return printItem(cmd, stdout, "Added", item)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("description", "d", "", "Task description")
	cmd.Flags().StringP("priority", "p", "", "Priority: low, medium or high")
	cmd.Flags().StringP("category", "c", "", "Category: Work, Personal, Shopping, Health, Education or Other")
	return cmd
}

// patchFromFlags builds a patch holding only the flags that were given
func patchFromFlags(cmd *cobra.Command) (backend.Patch, error) {
	var p backend.Patch
	flags := cmd.Flags()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		p.Description = &v
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		st, err := backend.ParseStatus(v)
		if err != nil {
			return p, err
		}
		p.Status = &st
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		pr, err := backend.ParsePriority(v)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	if flags.Changed("category") {
		v, _ := flags.GetString("category")
		c, err := backend.ParseCategory(v)
		if err != nil {
			return p, err
		}
		p.Category = &c
	}
	return p, nil
}

func newItemsUpdateCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Change fields of a task",
		Long:  "Change fields of a task. Only the given flags are changed; pass an empty value to clear priority or category.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one of --title, --description, --status, --priority, --category")
			}

			return withApp(cmd, cfg, func(a *app.App) error {
				item, err := a.UpdateItem(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return printItem(cmd, stdout, "Updated", item)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("title", "t", "", "New title")
	cmd.Flags().StringP("description", "d", "", "New description")
	cmd.Flags().String("status", "", "Status: active, completed or archived")
	cmd.Flags().StringP("priority", "p", "", "Priority: low, medium or high")
	cmd.Flags().StringP("category", "c", "", "Category")
	return cmd
}

func newItemsToggleCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [id]",
		Short: "Mark a task completed, or active again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				item, err := a.ToggleItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printItem(cmd, stdout, "Toggled", item)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newItemsDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a task permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, cfg, func(a *app.App) error {
				if err := a.DeleteItem(cmd.Context(), args[0]); err != nil {
					return err
				}
				if isJSON(cmd) {
					return writeJSON(stdout, map[string]string{"action": "Deleted", "id": args[0]})
				}
				_, _ = fmt.Fprintf(stdout, "Deleted: %s\n", args[0])
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
