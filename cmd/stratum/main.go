// Command stratum inspects, verifies and generates stratum columnar files.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/23skdu/stratum/internal/colfile"
	"github.com/23skdu/stratum/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "stratum:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root has loaded config.
type app struct {
	cfg    Config
	logger zerolog.Logger
	logOut io.Writer
}

func (a *app) options() []colfile.Option {
	return []colfile.Option{
		colfile.WithLogger(a.logger),
		colfile.WithMaxBlockSize(a.cfg.MaxBlockBytes),
	}
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut}
	root := &cobra.Command{
		Use:           "stratum",
		Short:         "Inspect and verify stratum columnar files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(logging.Config{
				Format: cfg.LogFormat,
				Level:  cfg.LogLevel,
				Output: a.logOut,
			})
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger.With().Str("command", cmd.Name()).Logger()
			return nil
		},
	}
	root.SetErr(logOut)
	addCommands(root, a)
	return root
}
