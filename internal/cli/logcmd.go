package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaycivic/filament/internal/log"
	"github.com/relaycivic/filament/internal/registry"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	From uint64
	To   uint64
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log [entity-id]",
		Short: "Show an entity's commit history, or list entities",
		Long: `Show an entity's commits in index order, or list registered
entities when no entity id is given.

Exit codes:
  0 - Success
  2 - Command error (unknown entity, database not found, etc.)

Examples:
  filament log
  filament log zone.acme.eng.relay
  filament log zone.acme.eng.relay --from 2 --to 5
  filament log zone.acme.eng.relay --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListEntities(opts, cmd)
			}
			return runLog(opts, cmd, args[0])
		},
	}

	cmd.Flags().Uint64Var(&opts.From, "from", 0, "first commit index (default 1)")
	cmd.Flags().Uint64Var(&opts.To, "to", 0, "last commit index (default head)")

	return cmd
}

func runListEntities(opts *LogOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	l, st, err := openLog(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	entities := l.Entities(registry.Filter{})

	if opts.Format == "json" {
		views := make([]map[string]any, len(entities))
		for i, e := range entities {
			views[i] = map[string]any{
				"id":         e.ID,
				"type":       e.Type,
				"scope":      e.Scope,
				"head_index": e.HeadIndex,
				"head_ref":   e.HeadRef,
			}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{Status: "ok", Data: views})
	}

	if len(entities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entities registered.")
		return nil
	}
	for _, e := range entities {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  type=%s head=%d\n", e.ID, e.Type, e.HeadIndex)
	}
	return nil
}

func runLog(opts *LogOptions, cmd *cobra.Command, entityID string) error {
	ctx := context.Background()

	l, st, err := openLog(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	commits, err := l.Range(entityID, opts.From, opts.To)
	if err != nil {
		if log.IsNotFound(err) {
			return WrapExitError(ExitCommandError, "unknown entity", err)
		}
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	if opts.Format == "json" {
		views := make([]commitView, len(commits))
		for i, c := range commits {
			view, err := viewOf(c)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to render commit", err)
			}
			views[i] = view
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{Status: "ok", Data: views})
	}

	w := cmd.OutOrStdout()
	for _, c := range commits {
		fmt.Fprintf(w, "#%d %s %s\n", c.Index, c.Type, c.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
		fmt.Fprintf(w, "  ref: %s\n", c.Ref)
		fmt.Fprintf(w, "  author: %s\n", c.AuthorRef)
		if opts.Verbose {
			payload, err := json.Marshal(c.Payload)
			if err == nil {
				fmt.Fprintf(w, "  payload: %s\n", payload)
			}
			for _, ref := range c.CausalRefs {
				fmt.Fprintf(w, "  causal: %s\n", ref)
			}
		}
	}
	fmt.Fprintf(w, "%d commit(s)\n", len(commits))
	return nil
}
