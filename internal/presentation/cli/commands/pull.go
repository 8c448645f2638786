package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/domain/errors"
)

// NewPullCmd creates the pull command.
func NewPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Refresh the local cache from the server",
		Long: `Fetch all ideas, projects, and tasks from the server into the local
cache. Requires connectivity.`,
		RunE: runPull,
	}
}

func runPull(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}

	if err := container.Facade().Bootstrap(cmd.Context()); err != nil {
		if errors.Is(err, errors.ErrRequiresConnectivity) {
			return fmt.Errorf("pull requires connectivity")
		}
		return fmt.Errorf("pull failed: %w", err)
	}

	status, err := container.Facade().Status(cmd.Context())
	if err != nil {
		return err
	}
	formatter.Success("Pulled %d ideas, %d projects, %d tasks", status.Ideas, status.Projects, status.Tasks)
	return nil
}
