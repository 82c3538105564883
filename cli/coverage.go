package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sokinpui/changegate/internal/ui"
	"github.com/sokinpui/changegate/internal/watch"
	"github.com/sokinpui/changegate/model"
)

func newCoverageCmd(opts *Options) *cobra.Command {
	var watchTree bool

	cmd := &cobra.Command{
		Use:   "coverage PLAN",
		Short: "Check the working tree against a plan",
		Long: "Check that every function, selector and file the plan promises exists in the working tree. " +
			"With --watch, re-check on every change until coverage is complete.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, logger, err := opts.engine(os.Stderr, nil)
			if err != nil {
				return err
			}
			planPath := args[0]
			checker := engine.Checker()
			check := func() (model.CoverageReport, error) {
				return checker.CheckPlan(planPath)
			}
			show := func(report model.CoverageReport) {
				if opts.JSON {
					_ = ui.JSON(report)
				} else {
					ui.PrintCoverage(report)
				}
			}

			var report model.CoverageReport
			if watchTree {
				w, err := watch.New(watch.Config{
					Root:        engine.Root(),
					ExcludeDirs: append(append([]string(nil), engine.Config().Allowlist.ExcludeDirs...), filepath.Base(engine.Config().State.Dir)),
					Logger:      logger,
				})
				if err != nil {
					return err
				}
				defer w.Close()
				report, err = watch.Coverage(cmd.Context(), w, check, show)
				if err != nil && cmd.Context().Err() == nil {
					return err
				}
			} else {
				report, err = check()
				if err != nil {
					return err
				}
				show(report)
			}

			if !report.IsComplete {
				return ErrGateFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watchTree, "watch", "w", false, "Re-check whenever files under the root change.")
	return cmd
}
