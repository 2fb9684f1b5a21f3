package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/project"
	"github.com/relaycivic/filament/internal/workzone"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	View string // "workzone" | "unit"
	At   uint64
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <entity-id>",
		Short: "Project an entity's current state from its log",
		Long: `Fold an entity's commit history into its materialized view.

The view is a pure function of the log: re-running this command against
the same history always prints the same state. --at folds only the
prefix up to the given index, reconstructing the state as of that commit.

Exit codes:
  0 - Success
  2 - Command error (unknown entity, database not found, etc.)

Examples:
  filament state zone.acme.eng.relay
  filament state zone.acme.eng.relay --at 2
  filament state unit-7 --view unit`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "workzone", "projection view (workzone|unit)")
	cmd.Flags().Uint64Var(&opts.At, "at", 0, "fold only commits up to this index (default: all)")

	return cmd
}

func runState(opts *StateOptions, cmd *cobra.Command, entityID string) error {
	ctx := context.Background()

	l, st, err := openLog(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := l.Range(entityID, 0, 0)
	if err != nil {
		if log.IsNotFound(err) {
			return WrapExitError(ExitCommandError, "unknown entity", err)
		}
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	w := cmd.OutOrStdout()
	switch opts.View {
	case "workzone":
		state := workzone.ProjectTo(history, opts.At)
		if opts.Format == "json" {
			return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: map[string]string{
				"zoneId":         state.ZoneID,
				"commitState":    state.CommitState,
				"boundaryReason": state.BoundaryReason,
				"title":          state.Title,
				"currentTask":    state.CurrentTask,
			}})
		}
		fmt.Fprintf(w, "zone:     %s\n", state.ZoneID)
		fmt.Fprintf(w, "state:    %s\n", state.CommitState)
		fmt.Fprintf(w, "boundary: %s\n", state.BoundaryReason)
		if state.Title != "" {
			fmt.Fprintf(w, "title:    %s\n", state.Title)
		}
		if state.CurrentTask != "" {
			fmt.Fprintf(w, "task:     %s\n", state.CurrentTask)
		}
		return nil
	case "unit":
		state := project.ReduceUnitTo(history, opts.At)
		if opts.Format == "json" {
			return json.NewEncoder(w).Encode(CLIResponse{Status: "ok", Data: map[string]string{
				"status":           string(state.Status),
				"attachedFilament": state.AttachedFilament,
				"currentTask":      state.CurrentTask,
				"destination":      state.Destination,
			}})
		}
		fmt.Fprintf(w, "status:   %s\n", state.Status)
		if state.AttachedFilament != "" {
			fmt.Fprintf(w, "filament: %s\n", state.AttachedFilament)
		}
		if state.CurrentTask != "" {
			fmt.Fprintf(w, "task:     %s\n", state.CurrentTask)
		}
		if state.Destination != "" {
			fmt.Fprintf(w, "dest:     %s\n", state.Destination)
		}
		return nil
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown view %q: must be workzone or unit", opts.View))
	}
}
