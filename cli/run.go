package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sokinpui/changegate/gate"
	"github.com/sokinpui/changegate/internal/config"
	"github.com/sokinpui/changegate/internal/tui"
	"github.com/sokinpui/changegate/internal/ui"
	"github.com/sokinpui/changegate/model"
)

func newRunCmd(opts *Options) *cobra.Command {
	var (
		input     string
		planPath  string
		issuePath string
		record    bool
		noTUI     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate, apply, then gate the result on plan coverage and acceptance criteria",
		Long: "Run the full pipeline: parse the change set, validate it, apply it, check the tree against " +
			"the plan and the plan against the issue's acceptance criteria. Exits non-zero unless every gate passed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !opts.JSON && !noTUI && stdoutIsTerminal()

			var logOut io.Writer = os.Stderr
			if interactive {
				logOut = io.Discard
			}
			engine, _, err := opts.engine(logOut, func(ov *config.Overrides) {
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
			runOpts := gate.RunOptions{Text: text, PlanPath: planPath}
			if issuePath != "" {
				data, err := os.ReadFile(issuePath)
				if err != nil {
					return fmt.Errorf("failed to read issue: %w", err)
				}
				runOpts.Issue = string(data)
			}

			var st model.RunState
			if interactive {
				m := tui.New(func() model.RunState { return engine.Run(cmd.Context(), runOpts) })
				final, err := tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
				if err != nil {
					return fmt.Errorf("error running program: %w", err)
				}
				res, ok := final.(tui.Model).Result()
				if !ok {
					return ErrGateFailed
				}
				st = res
			} else {
				st = engine.Run(cmd.Context(), runOpts)
				if opts.JSON {
					if err := ui.JSON(st); err != nil {
						return err
					}
				} else {
					ui.PrintRunState(st)
				}
			}

			if !st.CanCommit() {
				return ErrGateFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "File holding the change set, or - for stdin (default: piped stdin, else clipboard).")
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Implementation plan to check coverage against (required).")
	cmd.Flags().StringVar(&issuePath, "issue", "", "Issue markdown whose acceptance criteria the plan must address.")
	cmd.Flags().BoolVar(&record, "record", false, "Back up touched files and record the run so it can be undone.")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Print a plain report even when stdout is a terminal.")
	cmd.MarkFlagRequired("plan")
	return cmd
}
