// Package cli defines the changegate command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sokinpui/changegate/gate"
	"github.com/sokinpui/changegate/internal/config"
	"github.com/sokinpui/changegate/internal/logging"
	"github.com/sokinpui/changegate/internal/source"
)

// ErrGateFailed is returned when a command ran but its verdict is negative:
// an invalid change set, failed apply, incomplete coverage. The report has
// already been printed.
var ErrGateFailed = errors.New("gate failed")

// Options holds the flags shared by every command.
type Options struct {
	Root         string
	ConfigPath   string
	LogLevel     string
	BraceScanner bool
	FuzzyEdits   bool
	JSON         bool

	flags *pflag.FlagSet
}

// BindFlags registers the shared flags on fs.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Root, "root", ".", "Working directory the change set applies to.")
	fs.StringVar(&o.ConfigPath, "config", "", "Config file (default <root>/"+config.FileName+" when present).")
	fs.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn or error.")
	fs.BoolVar(&o.BraceScanner, "brace-scanner", false, "Match nested braces when upserting functions and selectors.")
	fs.BoolVar(&o.FuzzyEdits, "fuzzy-edits", false, "Allow whitespace-tolerant matching of edit find texts.")
	fs.BoolVar(&o.JSON, "json", false, "Print results as JSON.")
	o.flags = fs
}

func (o *Options) changed(name string) bool {
	return o.flags != nil && o.flags.Changed(name)
}

// overrides returns the config overrides for flags given explicitly.
func (o *Options) overrides() config.Overrides {
	var ov config.Overrides
	ov.LogLevel = o.LogLevel
	if o.changed("brace-scanner") {
		v := o.BraceScanner
		ov.BraceScanner = &v
	}
	if o.changed("fuzzy-edits") {
		v := o.FuzzyEdits
		ov.FuzzyEdits = &v
	}
	return ov
}

// load resolves the root and builds the config with flag overrides applied.
func (o *Options) load(extra func(*config.Overrides)) (string, *config.Config, error) {
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return "", nil, fmt.Errorf("invalid root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", nil, fmt.Errorf("cannot access root: %w", err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("root is not a directory: %s", root)
	}

	cfg, err := config.Load(root, o.ConfigPath)
	if err != nil {
		return "", nil, err
	}
	ov := o.overrides()
	if extra != nil {
		extra(&ov)
	}
	cfg.Merge(ov)
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// engine builds a gate.Engine logging to w.
func (o *Options) engine(w io.Writer, extra func(*config.Overrides)) (*gate.Engine, *slog.Logger, error) {
	root, cfg, err := o.load(extra)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, w)
	return gate.New(root, cfg, logger), logger, nil
}

// readInput resolves --input, piped stdin or the clipboard.
func readInput(input string) (string, error) {
	content, _, err := source.New(input).GetContent()
	return content, err
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NewRootCmd creates the top-level changegate command with every subcommand.
func NewRootCmd(version string) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "changegate",
		Short: "Apply structured change sets and gate them on an implementation plan",
		Long: "changegate validates and applies AI-proposed structured file changes to a working tree, " +
			"then checks the tree against the plan it was meant to implement.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Version = version
	opts.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newValidateCmd(opts),
		newApplyCmd(opts),
		newRequirementsCmd(opts),
		newCoverageCmd(opts),
		newRunCmd(opts),
		newUndoCmd(opts),
	)
	return cmd
}
