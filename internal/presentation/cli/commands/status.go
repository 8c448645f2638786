package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, sync queue, and cache state",
		RunE:  runStatus,
	}
}

// statusView mirrors state.Status with JSON tags for machine output.
type statusView struct {
	Online       bool   `json:"online"`
	Syncing      bool   `json:"syncing"`
	Pending      int    `json:"pending"`
	DeadLettered int    `json:"dead_lettered"`
	Ideas        int    `json:"ideas"`
	Projects     int    `json:"projects"`
	Tasks        int    `json:"tasks"`
	LastError    string `json:"last_error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}

	status, err := container.Facade().Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	view := statusView(status)
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(view)
	}

	formatter.Header("Viberater Status")

	connectivity := formatter.Colorize("online", output.ColorGreen)
	if !view.Online {
		connectivity = formatter.Colorize("offline", output.ColorYellow)
	}
	formatter.Item("Connectivity", connectivity)
	if view.Syncing {
		formatter.Item("Sync", "in progress")
	} else {
		formatter.Item("Sync", "idle")
	}
	formatter.Item("Pending changes", strconv.Itoa(view.Pending))
	if view.DeadLettered > 0 {
		formatter.Item("Rejected changes", formatter.Colorize(strconv.Itoa(view.DeadLettered), output.ColorRed))
	}
	formatter.Item("Ideas", strconv.Itoa(view.Ideas))
	formatter.Item("Projects", strconv.Itoa(view.Projects))
	formatter.Item("Tasks", strconv.Itoa(view.Tasks))
	if view.LastError != "" {
		formatter.Item("Last error", formatter.Colorize(view.LastError, output.ColorRed))
	}

	return nil
}
