package command

import (
	"github.com/shinygold/unitengine/internal/config"
	"github.com/shinygold/unitengine/internal/log"

	"github.com/spf13/cobra"
)

var (
	cfg            *config.Settings
	userMode       bool
	verbose        bool
	configFilePath string
)

// RootCommand is the unitengine daemon's root cobra command.
type RootCommand struct{}

// NewRootCommand creates the root command tree.
func NewRootCommand() *RootCommand {
	return &RootCommand{}
}

// GetCobraCommand returns the cobra root command.
func (c *RootCommand) GetCobraCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unitengine",
		Short: "unitengine runs the unit dependency graph, lifecycle state machine, and queue scheduler",
		Long: `unitengine models units, their typed dependency graph, and the per-unit
lifecycle state machine, draining a fixed set of named queues every tick
and garbage-collecting units nothing still needs.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if configFilePath != "" {
				config.SetConfigFilePath(configFilePath)
			}
			cfg = config.InitConfig()
			log.Init(verbose)

			if userMode {
				cfg.UserMode = true
			}
			if verbose {
				cfg.Verbose = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&userMode, "user", "u", false, "Connect to the user D-Bus session instead of the system bus")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "Path to the configuration file")

	rootCmd.AddCommand(
		(&DaemonCommand{}).GetCobraCommand(),
		(&LoadCommand{}).GetCobraCommand(),
	)

	return rootCmd
}
