package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaycivic/filament/internal/log"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	EntityType string
	Scope      string
	Author     string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <entity-id>",
		Short: "Register a new entity with an empty commit log",
		Long: `Register a new entity in the registry.

Registration is permanent: entities cannot be deleted, only appended to.
Registering an id that already exists fails.

Exit codes:
  0 - Entity registered
  1 - Entity id already exists
  2 - Command error (database not found, etc.)

Examples:
  filament register zone.acme.eng.relay --type workzone --scope org.acme --author author:ops
  filament register unit-7 --type unit --author author:dispatch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.EntityType, "type", "", "entity type (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "hierarchical scope path")
	cmd.Flags().StringVar(&opts.Author, "author", "", "registering author ref (required)")
	_ = cmd.MarkFlagRequired("author")

	return cmd
}

func runRegister(opts *RegisterOptions, cmd *cobra.Command, entityID string) error {
	ctx := context.Background()

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

	entity, err := l.Register(ctx, entityID, opts.EntityType, opts.Scope, opts.Author)
	if err != nil {
		if log.IsAlreadyExists(err) {
			_ = out.Error("ALREADY_EXISTS", fmt.Sprintf("entity %q is already registered", entityID), nil)
			return NewExitError(ExitFailure, "entity already exists")
		}
		return WrapExitError(ExitCommandError, "failed to register entity", err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"id":         entity.ID,
			"type":       entity.Type,
			"scope":      entity.Scope,
			"head_index": entity.HeadIndex,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (type=%s", entity.ID, entity.Type)
	if entity.Scope != "" {
		fmt.Fprintf(cmd.OutOrStdout(), ", scope=%s", entity.Scope)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ")")
	return nil
}
