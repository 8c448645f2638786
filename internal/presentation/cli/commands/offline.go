package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewOfflineCmd creates the offline command.
func NewOfflineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline [on|off]",
		Short: "Pin the client offline or release it",
		Long: `Control the manual offline switch.

'offline on' writes a marker file that pins the client offline across
invocations; mutations queue locally instead of hitting the server.
'offline off' removes the marker, and the next health probe restores
connectivity and replays the queue. With no argument the current switch
state is shown.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE:      runOffline,
	}
}

func runOffline(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}

	marker := container.Monitor().OfflineMarker()
	if marker == "" {
		return fmt.Errorf("no offline marker path configured")
	}

	if len(args) == 0 {
		if _, err := os.Stat(marker); err == nil {
			formatter.Info("Offline switch is on (%s)", marker)
		} else {
			formatter.Info("Offline switch is off")
		}
		return nil
	}

	switch args[0] {
	case "on":
		if err := os.MkdirAll(filepath.Dir(marker), 0750); err != nil {
			return fmt.Errorf("failed to create marker directory: %w", err)
		}
		if err := os.WriteFile(marker, nil, 0600); err != nil {
			return fmt.Errorf("failed to write offline marker: %w", err)
		}
		container.Monitor().SetOnline(false)
		formatter.Success("Offline switch on, changes will queue locally")
	case "off":
		if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove offline marker: %w", err)
		}
		formatter.Success("Offline switch off, connectivity resumes on the next probe")
	default:
		return fmt.Errorf("unknown argument %q, expected on or off", args[0])
	}
	return nil
}
