package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaycivic/filament/internal/commit"
	"github.com/relaycivic/filament/internal/log/sqlite"
	"github.com/relaycivic/filament/internal/registry"
	"github.com/relaycivic/filament/internal/workzone"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	EntityID string // optional - specific entity only
}

// ReplayEntityResult holds the replay result for a single entity.
type ReplayEntityResult struct {
	EntityID      string `json:"entity_id"`
	Commits       int    `json:"commits"`
	HeadIndex     uint64 `json:"head_index"`
	Deterministic bool   `json:"deterministic"`
	Problem       string `json:"problem,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Entities         []ReplayEntityResult `json:"entities"`
	TotalEntities    int                  `json:"total_entities"`
	AllDeterministic bool                 `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the commit log and verify determinism",
		Long: `Replay every entity's log and verify deterministic reconstruction.

For each entity this command reads the stored commits twice, compares the
canonical serialization of the two readings byte for byte, re-derives
every commit ref from (entity id, index), verifies gapless indexing from
1 to the head, and folds work-zone state twice to confirm the projection
is a pure function of the log.

Exit codes:
  0 - All entities replay deterministically
  1 - Divergence detected (refs, ordering, or projected state differ)
  2 - Command error (database not found, etc.)

Examples:
  filament replay --db ./filament.db
  filament replay --db ./filament.db --entity zone.acme.eng.relay
  filament replay --db ./filament.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EntityID, "entity", "", "replay specific entity only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	l, st, err := openLog(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var entities []registry.Entity
	if opts.EntityID != "" {
		entity, err := l.Entity(opts.EntityID)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown entity", err)
		}
		entities = []registry.Entity{entity}
	} else {
		entities = l.Entities(registry.Filter{})
	}

	if len(entities) == 0 {
		if opts.Format == "json" {
			result := ReplayResult{
				Entities:         []ReplayEntityResult{},
				TotalEntities:    0,
				AllDeterministic: true,
			}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No entities found in database.")
		return nil
	}

	result := ReplayResult{
		Entities:         make([]ReplayEntityResult, 0, len(entities)),
		TotalEntities:    len(entities),
		AllDeterministic: true,
	}

	for _, entity := range entities {
		entityResult, err := replayAndVerifyEntity(ctx, st, entity)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay entity %s", entity.ID), err)
		}

		result.Entities = append(result.Entities, entityResult)
		if !entityResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerifyEntity reads one entity's log twice and verifies that
// reconstruction is deterministic and internally consistent.
func replayAndVerifyEntity(ctx context.Context, st *sqlite.Store, entity registry.Entity) (ReplayEntityResult, error) {
	first, err := st.LoadCommits(ctx, entity.ID)
	if err != nil {
		return ReplayEntityResult{}, fmt.Errorf("first read failed: %w", err)
	}
	second, err := st.LoadCommits(ctx, entity.ID)
	if err != nil {
		return ReplayEntityResult{}, fmt.Errorf("second read failed: %w", err)
	}

	result := ReplayEntityResult{
		EntityID:      entity.ID,
		Commits:       len(first),
		HeadIndex:     entity.HeadIndex,
		Deterministic: true,
	}

	if problem := verifySequence(entity, first); problem != "" {
		result.Deterministic = false
		result.Problem = problem
		return result, nil
	}

	if problem := compareReadings(first, second); problem != "" {
		result.Deterministic = false
		result.Problem = problem
		return result, nil
	}

	if entity.Type == workzone.EntityType {
		if problem := compareProjections(first, second); problem != "" {
			result.Deterministic = false
			result.Problem = problem
		}
	}

	return result, nil
}

// verifySequence checks gapless indexing from 1 to head and re-derives
// every commit ref.
func verifySequence(entity registry.Entity, commits []commit.Commit) string {
	if uint64(len(commits)) != entity.HeadIndex {
		return fmt.Sprintf("head index %d but %d commits stored", entity.HeadIndex, len(commits))
	}
	for i, c := range commits {
		want := uint64(i) + 1
		if c.Index != want {
			return fmt.Sprintf("expected index %d at position %d, got %d", want, i, c.Index)
		}
		if derived := commit.Ref(entity.ID, c.Index); derived != c.Ref {
			return fmt.Sprintf("ref mismatch at index %d: stored %s, derived %s", c.Index, c.Ref, derived)
		}
	}
	return ""
}

// compareReadings compares two readings of the same log via canonical
// serialization.
func compareReadings(first, second []commit.Commit) string {
	if len(first) != len(second) {
		return fmt.Sprintf("readings differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, err := first[i].CanonicalBytes()
		if err != nil {
			return fmt.Sprintf("serialize first reading at index %d: %v", first[i].Index, err)
		}
		b, err := second[i].CanonicalBytes()
		if err != nil {
			return fmt.Sprintf("serialize second reading at index %d: %v", second[i].Index, err)
		}
		if !bytes.Equal(a, b) {
			return fmt.Sprintf("readings diverge at index %d", first[i].Index)
		}
	}
	return ""
}

// compareProjections folds work-zone state from both readings and
// compares the results.
func compareProjections(first, second []commit.Commit) string {
	a := workzone.Project(first)
	b := workzone.Project(second)
	if a != b {
		return "projected state diverges between replays"
	}
	return ""
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d entity(ies)\n", result.TotalEntities)
	fmt.Fprintln(w)

	for _, entity := range result.Entities {
		status := "✓"
		if !entity.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Entity: %s\n", status, entity.EntityID)

		if verbose {
			fmt.Fprintf(w, "  Commits: %d\n", entity.Commits)
			fmt.Fprintf(w, "  Head: %d\n", entity.HeadIndex)
		}

		if !entity.Deterministic {
			fmt.Fprintf(w, "  Problem: %s\n", entity.Problem)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All entities verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
