// Package cli implements the larder command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/logging"
	"github.com/mesh-intelligence/larder/internal/paths"
	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the state resolved from them before a
// subcommand runs.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	settings settings
	log      zerolog.Logger

	in  io.Reader
	out io.Writer
	err io.Writer
}

// NewRootCmd creates the top-level "larder" command with global flags and
// all subcommands registered. in, out and errOut replace stdin, stdout and
// stderr.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, err: errOut, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:     "larder",
		Short:   "Track food items and their expiry dates",
		Long:    "Larder keeps a catalog of food items with expiry dates and\noptional photos, and captures photos from a camera source.",
		Version: larder.Version,
		// Errors are printed by Execute with a user-facing notice.
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usagef("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usagef("%v", err)
	})
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/.larder-db)")
	pf.BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(a),
		newInitCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newCaptureCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// load resolves directories, reads config.yaml and builds the logger.
func (a *app) load() error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	s, err := loadSettings(configDir)
	if err != nil {
		return err
	}
	if s.DataDir, err = paths.ResolveDataDir(a.dataDir, s.DataDir); err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if s.ImageDir, err = paths.ResolveImageDir(s.ImageDir, s.DataDir); err != nil {
		return fmt.Errorf("resolve image dir: %w", err)
	}
	a.settings = s
	a.log = logging.New(logging.Config{Level: s.LogLevel, Format: s.LogFormat, Out: a.err})
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Run executes the command line args and returns the process exit code.
// Failures are reported on errOut.
func Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	root := NewRootCmd(in, out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(errOut, "Error: %s\n  %v\n", noticeFor(err), err)
	return exitCode(err)
}

// usageError marks a bad flag or argument.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func noticeFor(err error) string {
	var u *usageError
	if errors.As(err, &u) {
		return "Invalid command line"
	}
	return types.Notice(err)
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	var u *usageError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &u), types.IsUserError(err), errors.Is(err, context.Canceled):
		return exitUserError
	default:
		return exitSysError
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
