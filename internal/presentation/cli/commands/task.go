package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// NewTaskCmd creates the task command group.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage a project's tasks",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskDoneCmd())
	cmd.AddCommand(newTaskRemoveCmd())

	return cmd
}

func newTaskListCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			if refresh {
				if err := container.Facade().FetchProjectTasks(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to fetch tasks: %w", err)
				}
			}

			tasks := container.Facade().ProjectTasks(args[0])
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(tasks)
			}
			if len(tasks) == 0 {
				formatter.Info("No tasks for project %s", args[0])
				return nil
			}

			table := output.TableData{
				Columns: []output.TableColumn{
					{Header: "ID"}, {Header: "TITLE"}, {Header: "PHASE"}, {Header: "STATUS"},
				},
			}
			for _, task := range tasks {
				table.Rows = append(table.Rows, []string{
					displayID(task.ID),
					task.Title,
					task.Phase,
					task.Status,
				})
			}
			return formatter.Table(table)
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "fetch from the server before listing")

	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var description, phase string

	cmd := &cobra.Command{
		Use:   "add <project-id> <title>",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			fields := map[string]any{"title": args[1]}
			if description != "" {
				fields["description"] = description
			}
			if phase != "" {
				fields["phase"] = phase
			}
			payload, err := encodeFields(fields)
			if err != nil {
				return err
			}

			task, err := container.Facade().CreateTask(cmd.Context(), args[0], payload)
			if err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(task)
			}
			formatter.Success("Added %q as %s", task.Title, displayID(task.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&phase, "phase", "p", "", "project phase the task belongs to")

	return cmd
}

func newTaskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <project-id> <task-id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			task, err := container.Facade().CompleteTask(cmd.Context(), args[0], args[1])
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return fmt.Errorf("task %s not found in project %s", args[1], args[0])
				}
				return fmt.Errorf("failed to complete task: %w", err)
			}

			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(task)
			}
			formatter.Success("Completed %q", task.Title)
			return nil
		},
	}
}

func newTaskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <project-id> <task-id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := GetFormatter()
			container, err := requireContainer()
			if err != nil {
				return err
			}

			if err := container.Facade().DeleteTask(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			formatter.Success("Deleted %s", args[1])
			return nil
		},
	}
}
