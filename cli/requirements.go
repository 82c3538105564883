package cli

import (
	"github.com/spf13/cobra"

	"github.com/sokinpui/changegate/gate"
	"github.com/sokinpui/changegate/internal/ui"
)

func newRequirementsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "requirements PLAN",
		Short: "List the functions, selectors and files a plan promises",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := gate.ExtractRequirements(args[0])
			if err != nil {
				return err
			}
			if opts.JSON {
				return ui.JSON(reqs)
			}
			ui.PrintRequirements(reqs)
			return nil
		},
	}
}
