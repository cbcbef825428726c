package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wsrdata",
	Short: "Build roost datasets from NEXRAD Level II scans",
	Long: `wsrdata downloads Level II volumes from the public archive, renders them
into arrays through an external renderer, and assembles versioned roost
datasets with their annotations.

Runtime settings come from the environment (DATA_ROOT, WORKERS,
RENDER_COMMAND, ...); dataset contents come from a YAML definition file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_ = cmd.Help()
		return errNoCommand
	},
}

var errNoCommand = errors.New("no command given")

// usageError marks invalid or missing arguments; main prints the command's
// usage after the error.
type usageError struct {
	cmd *cobra.Command
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usagef(cmd *cobra.Command, format string, args ...any) error {
	return &usageError{cmd: cmd, err: fmt.Errorf(format, args...)}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{cmd: cmd, err: err}
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, errNoCommand) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprint(os.Stderr, uerr.cmd.UsageString())
	}
	os.Exit(1)
}
