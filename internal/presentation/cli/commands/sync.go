package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/application/syncengine"
	"github.com/viberater/viberater/internal/domain/syncop"
	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// NewSyncCmd creates the sync command group.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued changes to the server",
		Long: `Drain the durable sync queue against the server.

Queued mutations replay in the order they were made. Operations the
server rejects as invalid are set aside and reported; connectivity
failures leave the operation queued for the next attempt.`,
		RunE: runSync,
	}

	cmd.AddCommand(newSyncQueueCmd())

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}

	if !container.Monitor().IsOnline() {
		formatter.Warning("Offline, queued changes will replay when connectivity returns")
		return nil
	}

	pending, err := container.Store().PendingOps(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read sync queue: %w", err)
	}
	if len(pending) == 0 {
		formatter.Success("Nothing to sync")
		return nil
	}

	// Subscribe before kicking the drain so the completion event is not
	// missed.
	done := make(chan syncengine.SyncCompleted, 1)
	container.Engine().Bus().Subscribe(func(ev syncengine.Event) {
		if completed, ok := ev.(syncengine.SyncCompleted); ok {
			select {
			case done <- completed:
			default:
			}
		}
	})

	var spinner *output.Spinner
	if formatter.Format() == output.FormatText {
		spinner = output.NewSpinner(fmt.Sprintf("Syncing %d queued changes", len(pending)),
			output.WithSpinnerColor(output.IsColorSupported()))
		spinner.Start()
	}

	container.Engine().Sync(cmd.Context())

	wait := container.Config().API.Timeout * time.Duration(len(pending)+1)
	if wait <= 0 {
		wait = time.Minute
	}

	var completed syncengine.SyncCompleted
	select {
	case completed = <-done:
	case <-time.After(wait):
		if spinner != nil {
			spinner.StopWithError("Sync did not complete in time")
		}
		return fmt.Errorf("sync did not complete in time")
	}

	if spinner != nil {
		if completed.Failed == 0 && completed.DeadLettered == 0 {
			spinner.StopWithSuccess(fmt.Sprintf("Synced %d changes", completed.Synced))
		} else {
			spinner.Stop()
		}
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(map[string]int{
			"synced":        completed.Synced,
			"failed":        completed.Failed,
			"dead_lettered": completed.DeadLettered,
		})
	}

	if completed.Failed > 0 {
		formatter.Warning("%d changes failed and remain queued", completed.Failed)
	}
	if completed.DeadLettered > 0 {
		formatter.Error("%d changes were rejected by the server (see 'sync queue --rejected')", completed.DeadLettered)
	}
	if completed.Failed > 0 || completed.DeadLettered > 0 {
		formatter.Info("%d changes synced", completed.Synced)
	}

	return nil
}

func newSyncQueueCmd() *cobra.Command {
	var rejected bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List queued changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncQueue(cmd, rejected)
		},
	}

	cmd.Flags().BoolVar(&rejected, "rejected", false, "list server-rejected changes instead of pending ones")

	return cmd
}

func runSyncQueue(cmd *cobra.Command, rejected bool) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}

	var ops []syncop.Operation
	if rejected {
		ops, err = container.Store().DeadLetteredOps(cmd.Context())
	} else {
		ops, err = container.Store().PendingOps(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to read sync queue: %w", err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(ops)
	}

	if len(ops) == 0 {
		if rejected {
			formatter.Success("No rejected changes")
		} else {
			formatter.Success("Queue is empty")
		}
		return nil
	}

	table := output.TableData{
		Columns: []output.TableColumn{
			{Header: "SEQ"}, {Header: "RESOURCE"}, {Header: "METHOD"},
			{Header: "ENTITY"}, {Header: "ATTEMPTS"}, {Header: "LAST ERROR"},
		},
	}
	for _, op := range ops {
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(op.ID, 10),
			string(op.Resource),
			string(op.Method),
			op.EntityID,
			strconv.Itoa(op.Attempts),
			op.LastError,
		})
	}
	return formatter.Table(table)
}
