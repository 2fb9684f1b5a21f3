package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/workzone"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Check   string
	Payload string
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "List payload schemas or check a payload against one",
		Long: `List the schema-backed commit types, or validate a payload
against one type's schema without touching any log.

Exit codes:
  0 - Payload valid (or listing succeeded)
  1 - Payload failed schema validation
  2 - Command error (unknown type, malformed JSON, etc.)

Examples:
  filament schema
  filament schema --check WORKZONE_DEFINE --payload '{"zoneId":"zone.acme.eng.relay"}'
  filament schema --check COMMIT_STATE_SET --payload @payload.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Check, "check", "", "commit type to validate against")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "payload JSON object (inline or @file)")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	schemas, err := workzone.LoadSchemas()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile schemas", err)
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Check == "" {
		types := schemas.Types()
		if opts.Format == "json" {
			names := make([]string, len(types))
			for i, t := range types {
				names[i] = string(t)
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{Status: "ok", Data: names})
		}
		for _, t := range types {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	}

	commitType := commit.Type(opts.Check)
	if !schemas.Known(commitType) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown commit type %q", opts.Check))
	}

	payload, err := parsePayload(opts.Payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}

	if err := schemas.Check(commitType, payload); err != nil {
		_ = out.Error("SCHEMA_VIOLATION", fmt.Sprintf("payload does not satisfy %s", commitType), err.Error())
		return NewExitError(ExitFailure, "payload failed schema validation")
	}

	return out.Success(fmt.Sprintf("payload satisfies %s", commitType))
}
