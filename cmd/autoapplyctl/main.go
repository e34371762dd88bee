// Command autoapplyctl is the operator CLI for the application automation
// orchestrator: schema and seed management, manual enqueue and inspection,
// one-shot maintenance, and a foreground worker.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/bootstrap"
)

// cli carries what every command needs. Fields are filled by the root
// command's PersistentPreRunE so tests can swap them.
type cli struct {
	loadConfig func(envFiles ...string) (config.AppConfig, error)
	open       runtimeOpener

	cfg    config.AppConfig
	logger *slog.Logger
	out    io.Writer
	in     io.Reader
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{
		loadConfig: bootstrap.LoadConfig,
		open:       openRuntime,
		out:        os.Stdout,
		in:         os.Stdin,
	}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must signal failure to shell scripts
	}
}

func newRootCmd(c *cli) *cobra.Command {
	var (
		verbose  bool
		envFiles []string
	)
	root := &cobra.Command{
		Use:           "autoapplyctl",
		Short:         "Operate the application automation orchestrator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig(envFiles...)
			if err != nil {
				return err
			}
			c.cfg = cfg
			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(level)}))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv file(s) to load before reading the environment (default .env)")
	root.SetOut(c.out)

	root.AddCommand(
		migrateCmd(c),
		seedCmd(c),
		submittersCmd(c),
		applyCmd(c),
		listCmd(c),
		cancelCmd(c),
		logsCmd(c),
		reapCmd(c),
		workerCmd(c),
	)
	return root
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
