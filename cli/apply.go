package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sokinpui/changegate/internal/config"
	"github.com/sokinpui/changegate/internal/nvim"
	"github.com/sokinpui/changegate/internal/parser"
	"github.com/sokinpui/changegate/internal/ui"
	"github.com/sokinpui/changegate/model"
)

type applyResult struct {
	model.ApplyResult
	RunID            string                  `json:"run_id,omitempty"`
	ValidationErrors []model.ValidationError `json:"validation_errors,omitempty"`
	Reloaded         []string                `json:"reloaded,omitempty"`
}

func newApplyCmd(opts *Options) *cobra.Command {
	var (
		input      string
		record     bool
		nvimReload bool
		nvimAddr   string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Validate a change set and apply it to the working tree",
		Long: "Validate a change set and, only when every change is valid, apply it in order. " +
			"Nothing is written when validation fails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, logger, err := opts.engine(os.Stderr, func(ov *config.Overrides) {
				if cmd.Flags().Changed("record") {
					ov.RecordHistory = &record
				}
			})
			if err != nil {
				return err
			}
			text, err := readInput(input)
			if err != nil {
				return err
			}

			result, verrs, runID, err := engine.ValidateAndApply(parser.ParseChangeSet(text))
			if err != nil {
				return err
			}
			out := applyResult{ApplyResult: result, RunID: runID, ValidationErrors: verrs}

			if result.Success && nvimReload && len(result.ChangedFiles) > 0 {
				reloaded, err := nvim.ReloadChanged(cmd.Context(), nvimAddr, engine.Root(), result.ChangedFiles)
				if err != nil {
					logger.Warn("neovim reload skipped", "error", err)
					out.Warnings = append(out.Warnings, "Neovim reload failed: "+err.Error())
				} else {
					out.Reloaded = reloaded
				}
			}

			if opts.JSON {
				if err := ui.JSON(out); err != nil {
					return err
				}
			} else {
				if verrs != nil {
					ui.PrintValidation(false, verrs)
				} else {
					ui.PrintApplyResult(out.ApplyResult)
				}
				if runID != "" {
					ui.Info("Recorded run %s (undo with 'changegate undo').", runID)
				}
			}
			if !result.Success {
				return ErrGateFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "File holding the change set, or - for stdin (default: piped stdin, else clipboard).")
	cmd.Flags().BoolVar(&record, "record", false, "Back up touched files and record the run so it can be undone.")
	cmd.Flags().BoolVar(&nvimReload, "nvim-reload", false, "Ask a running Neovim to reload changed buffers.")
	cmd.Flags().StringVar(&nvimAddr, "nvim", "", "Neovim listen address (default $"+nvim.AddressEnv+").")
	return cmd
}
