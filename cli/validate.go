package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sokinpui/changegate/internal/parser"
	"github.com/sokinpui/changegate/internal/ui"
	"github.com/sokinpui/changegate/model"
)

type validateResult struct {
	Valid  bool                    `json:"valid"`
	Errors []model.ValidationError `json:"errors"`
}

func newValidateCmd(opts *Options) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a change set without applying it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := opts.engine(os.Stderr, nil)
			if err != nil {
				return err
			}
			text, err := readInput(input)
			if err != nil {
				return err
			}

			ok, errs, err := engine.Validate(parser.ParseChangeSet(text))
			if err != nil {
				return err
			}
			if opts.JSON {
				if errs == nil {
					errs = []model.ValidationError{}
				}
				if err := ui.JSON(validateResult{Valid: ok, Errors: errs}); err != nil {
					return err
				}
			} else {
				ui.PrintValidation(ok, errs)
			}
			if !ok {
				return ErrGateFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "File holding the change set, or - for stdin (default: piped stdin, else clipboard).")
	return cmd
}
