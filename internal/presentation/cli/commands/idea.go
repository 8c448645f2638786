package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// NewIdeaCmd creates the idea command group.
func NewIdeaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idea",
		Short: "Capture and manage ideas",
		Long: `Manage the idea backlog.

Ideas are the entry point of the tracker: capture them any time, refine
them with the AI brainstorm, and promote the good ones into projects.
All subcommands work offline; mutations made without connectivity queue
for later sync and show a provisional id until the server assigns a
real one.`,
	}

	cmd.AddCommand(newIdeaListCmd())
	cmd.AddCommand(newIdeaAddCmd())
	cmd.AddCommand(newIdeaShowCmd())
	cmd.AddCommand(newIdeaUpdateCmd())
	cmd.AddCommand(newIdeaRemoveCmd())
	cmd.AddCommand(newIdeaPromoteCmd())

	return cmd
}

func newIdeaListCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			if refresh {
				if err := container.Facade().FetchIdeas(cmd.Context()); err != nil {
					return fmt.Errorf("failed to fetch ideas: %w", err)
				}
			}

			ideas := container.Facade().Ideas()
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(ideas)
			}
			if len(ideas) == 0 {
				formatter.Info("No ideas yet, add one with 'viberater idea add'")
				return nil
			}

			table := output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID"}, {Header: "TITLE"}, {Header: "STATUS"}, {Header: "TAGS"},
				},
			}
			for _, idea := range ideas {
				table.Rows = append(table.Rows, []string{
					displayID(idea.ID),
					idea.Title,
					idea.Status,
					strings.Join(idea.Tags, ","),
				})
			}
			return formatter.Table(table)
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "fetch from the server before listing")

	return cmd
}

func newIdeaAddCmd() *cobra.Command {
	var summary string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Capture a new idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			fields := map[string]any{"title": args[0]}
			if summary != "" {
				fields["summary"] = summary
			}
			if len(tags) > 0 {
				fields["tags"] = tags
			}
			payload, err := encodeFields(fields)
			if err != nil {
				return err
			}

			idea, err := container.Facade().CreateIdea(cmd.Context(), payload)
			if err != nil {
				return fmt.Errorf("failed to create idea: %w", err)
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(idea)
			}
			if entity.IsProvisional(idea.ID) {
				formatter.Success("Captured %q offline, will sync as %s", idea.Title, displayID(idea.ID))
			} else {
				formatter.Success("Captured %q as %s", idea.Title, idea.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&summary, "summary", "s", "", "one-line summary of the idea")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag the idea (repeatable)")

	return cmd
}

func newIdeaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			idea, ok := findIdea(container.Facade().Ideas(), args[0])
			if !ok {
				return fmt.Errorf("idea %s not found", args[0])
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(idea)
			}

			formatter.Header(idea.Title)
			formatter.Item("ID", displayID(idea.ID))
			if idea.Status != "" {
				formatter.Item("Status", idea.Status)
			}
			if idea.Summary != "" {
				formatter.Item("Summary", idea.Summary)
			}
			if len(idea.Tags) > 0 {
				formatter.Item("Tags", strings.Join(idea.Tags, ", "))
			}
			if idea.ProjectID != "" {
				formatter.Item("Project", idea.ProjectID)
			}
			if idea.Refinement != "" {
				formatter.Println("")
				formatter.Println("%s", idea.Refinement)
			}
			return nil
		},
	}
}

func newIdeaUpdateCmd() *cobra.Command {
	var title, summary string
	var tags []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			fields := map[string]any{}
			if title != "" {
				fields["title"] = title
			}
			if summary != "" {
				fields["summary"] = summary
			}
			if len(tags) > 0 {
				fields["tags"] = tags
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to update, pass --title, --summary, or --tag")
			}

			payload, err := encodeFields(fields)
			if err != nil {
				return err
			}

			idea, err := container.Facade().UpdateIdea(cmd.Context(), args[0], payload)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return fmt.Errorf("idea %s not found", args[0])
				}
				return fmt.Errorf("failed to update idea: %w", err)
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(idea)
			}
			formatter.Success("Updated %s", displayID(idea.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&summary, "summary", "s", "", "new summary")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "replace tags (repeatable)")

	return cmd
}

func newIdeaRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete an idea",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			if err := container.Facade().DeleteIdea(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete idea: %w", err)
			}
			formatter.Success("Deleted %s", args[0])
			return nil
		},
	}
}

func newIdeaPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <id>",
		Short: "Promote an idea to a project",
		Long: `Turn an idea into a project with the idea's title and summary as the
plan. For a richer plan with phases and starter tasks, use
'viberater refine <id>' and accept the generated plan there.

Promotion requires connectivity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			idea, ok := findIdea(container.Facade().Ideas(), args[0])
			if !ok {
				return fmt.Errorf("idea %s not found", args[0])
			}

			plan := ports.ProjectPlan{Name: idea.Title, Description: idea.Summary}
			project, err := container.Facade().PromoteIdea(cmd.Context(), idea.ID, plan)
			if err != nil {
				if errors.Is(err, errors.ErrRequiresConnectivity) {
					return fmt.Errorf("promotion requires connectivity")
				}
				return fmt.Errorf("failed to promote idea: %w", err)
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(project)
			}
			formatter.Success("Promoted %q to project %s", idea.Title, project.ID)
			return nil
		},
	}
}

// findIdea resolves an id, accepting unique id prefixes for convenience.
func findIdea(ideas []entity.Idea, id string) (entity.Idea, bool) {
	for _, idea := range ideas {
		if idea.ID == id {
			return idea, true
		}
	}
	var match entity.Idea
	var count int
	for _, idea := range ideas {
		if strings.HasPrefix(idea.ID, id) {
			match = idea
			count++
		}
	}
	if count == 1 {
		return match, true
	}
	return entity.Idea{}, false
}

// displayID marks provisional ids so the user can tell an entity has not
// synced yet.
func displayID(id string) string {
	if entity.IsProvisional(id) {
		return id + " (unsynced)"
	}
	return id
}

// encodeFields marshals a flag-built payload.
func encodeFields(fields map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
