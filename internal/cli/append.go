package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	CommitType string
	Author     string
	Payload    string
	CausalRefs []string
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append <entity-id>",
		Short: "Propose a commit for an entity",
		Long: `Propose a commit against an entity's log.

The proposed commit runs through the validator gate before it is appended.
A refused proposal leaves the log untouched and reports the structured
refusal reason.

The payload is a JSON object, inline or @file. Floats are rejected;
amounts and quantities use integers.

Exit codes:
  0 - Commit appended
  1 - Proposal refused by the validator
  2 - Command error (unknown entity, database not found, etc.)

Examples:
  filament append zone.acme.eng.relay --type WORKZONE_DEFINE --author author:alice \
    --payload '{"zoneId":"zone.acme.eng.relay","title":"Relay pilot"}'
  filament append zone.acme.eng.relay --type COMMIT_STATE_SET --author author:alice \
    --payload '{"state":"COMMIT","boundaryReason":"risk"}'
  filament append po-1 --type MATCH_EVALUATED --author author:proj --payload @eval.json \
    --causal-ref <ref1> --causal-ref <ref2>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.CommitType, "type", "", "commit type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.Author, "author", "", "author ref (required)")
	_ = cmd.MarkFlagRequired("author")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "payload JSON object (inline or @file)")
	cmd.Flags().StringArrayVar(&opts.CausalRefs, "causal-ref", nil, "causal commit ref (repeatable)")

	return cmd
}

func runAppend(opts *AppendOptions, cmd *cobra.Command, entityID string) error {
	ctx := context.Background()

	payload, err := parsePayload(opts.Payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}

	l, st, err := openLog(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	appended, err := l.Append(ctx, entityID, commit.Proposed{
		Type:       commit.Type(opts.CommitType),
		AuthorRef:  opts.Author,
		Payload:    payload,
		CausalRefs: opts.CausalRefs,
	})
	if err != nil {
		if refusal, ok := log.RefusalFrom(err); ok {
			_ = out.Error(refusal.Reason, refusal.Message, refusal.Context)
			return NewExitError(ExitFailure, "proposal refused")
		}
		if log.IsNotFound(err) {
			return WrapExitError(ExitCommandError, "unknown entity", err)
		}
		return WrapExitError(ExitCommandError, "failed to append", err)
	}

	if opts.Format == "json" {
		view, err := viewOf(appended)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render commit", err)
		}
		return out.Success(view)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Appended %s #%d (%s)\n", entityID, appended.Index, appended.Type)
	fmt.Fprintf(cmd.OutOrStdout(), "  ref: %s\n", appended.Ref)
	return nil
}
