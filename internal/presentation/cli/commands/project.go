package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// NewProjectCmd creates the project command group.
func NewProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long: `Manage projects created by promoting ideas.

Projects hold phases and tasks. Demoting a project turns it back into
an idea and discards its tasks on the server.`,
	}

	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectRemoveCmd())
	cmd.AddCommand(newProjectDemoteCmd())

	return cmd
}

func newProjectListCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			if refresh {
				if err := container.Facade().FetchProjects(cmd.Context()); err != nil {
					return fmt.Errorf("failed to fetch projects: %w", err)
				}
			}

			projects := container.Facade().Projects()
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(projects)
			}
			if len(projects) == 0 {
				formatter.Info("No projects yet, promote an idea with 'viberater idea promote'")
				return nil
			}

			table := output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID"}, {Header: "NAME"}, {Header: "STATUS"}, {Header: "TASKS"},
				},
			}
			for _, project := range projects {
				tasks := container.Facade().ProjectTasks(project.ID)
				table.Rows = append(table.Rows, []string{
					displayID(project.ID),
					project.Name,
					project.Status,
					strconv.Itoa(len(tasks)),
				})
			}
			return formatter.Table(table)
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "fetch from the server before listing")

	return cmd
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one project with its phases and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			var found bool
			for _, project := range container.Facade().Projects() {
				if project.ID != args[0] {
					continue
				}
				found = true
				tasks := container.Facade().ProjectTasks(project.ID)

				if formatter.Format() == output.FormatJSON {
					return formatter.JSON(map[string]any{
						"project": project,
						"tasks":   tasks,
					})
				}

				formatter.Header(project.Name)
				formatter.Item("ID", displayID(project.ID))
				if project.Status != "" {
					formatter.Item("Status", project.Status)
				}
				if project.Description != "" {
					formatter.Item("Description", project.Description)
				}
				for _, phase := range project.Phases {
					formatter.Item(fmt.Sprintf("Phase %d", phase.Order), phase.Name)
				}
				if len(tasks) > 0 {
					formatter.Println("")
					for _, task := range tasks {
						mark := " "
						if task.CompletedAt != nil {
							mark = "x"
						}
						formatter.Println("  [%s] %s %s", mark, displayID(task.ID), task.Title)
					}
				}
				break
			}
			if !found {
				return fmt.Errorf("project %s not found", args[0])
			}
			return nil
		},
	}
}

func newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			if err := container.Facade().DeleteProject(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}
			formatter.Success("Deleted %s", args[0])
			return nil
		},
	}
}

func newProjectDemoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demote <id>",
		Short: "Demote a project back to an idea",
		Long: `Turn a project back into an idea. The project's tasks are discarded
on the server. Requires connectivity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			idea, err := container.Facade().DemoteProject(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, errors.ErrRequiresConnectivity) {
					return fmt.Errorf("demotion requires connectivity")
				}
				return fmt.Errorf("failed to demote project: %w", err)
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(idea)
			}
			formatter.Success("Demoted project back to idea %s", idea.ID)
			return nil
		},
	}
}
