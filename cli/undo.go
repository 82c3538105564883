package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/sokinpui/changegate/internal/state"
	"github.com/sokinpui/changegate/internal/ui"
)

func newUndoCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last recorded apply",
		Long: "Revert the last run applied with --record. Nothing is reverted if any of its files " +
			"changed since the run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := opts.engine(os.Stderr, nil)
			if err != nil {
				return err
			}
			entry, err := engine.Undo()
			if errors.Is(err, state.ErrNothingToUndo) {
				ui.Info("No operation to undo.")
				return nil
			}
			if err != nil {
				return err
			}
			if opts.JSON {
				return ui.JSON(entry)
			}
			ui.PrintUndo(entry)
			return nil
		},
	}
}
