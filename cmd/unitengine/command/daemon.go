package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
)

var stateFilePath string

// DaemonCommand runs the unit engine's event loop: draining queues,
// sweeping the garbage collector, and notifying systemd of readiness and
// liveness when supervised.
type DaemonCommand struct{}

// GetCobraCommand returns the cobra command for the daemon's run loop.
func (c *DaemonCommand) GetCobraCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the unit engine event loop",
		Long: `Run starts the unit engine's event loop: every GC interval it ticks the
queue scheduler to a fixpoint, sweeps the garbage collector, and (when
running under systemd supervision) sends watchdog keepalives.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context())
		},
	}

	daemonCmd.Flags().StringVar(&stateFilePath, "state-file", "", "Path to the serialized state file restored on startup and written on shutdown")

	return daemonCmd
}

func (c *DaemonCommand) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(ctx, cfg, nil)
	defer app.Close()

	path := stateFilePath
	if path == "" {
		path = cfg.SerializeStatePath
	}
	if err := app.Manager.Deserialize(path); err != nil {
		app.Logger.Warn("failed to restore serialized state", "error", err)
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		app.Logger.Warn("failed to notify systemd of readiness", "error", err)
	} else if sent {
		app.Logger.Info("notified systemd that the engine is ready")
	}

	ticker := time.NewTicker(cfg.GCInterval)
	defer ticker.Stop()

	watchdogTicker := time.NewTicker(30 * time.Second)
	defer watchdogTicker.Stop()

	app.Logger.Info("unit engine running", "gc-interval", cfg.GCInterval)

	for {
		select {
		case <-ctx.Done():
			app.Logger.Info("shutting down, serializing state", "path", path)
			if err := app.Manager.Serialize(path); err != nil {
				app.Logger.Error("failed to serialize state on shutdown", "error", err)
			}
			return nil
		case <-ticker.C:
			app.Manager.Tick()
		case <-watchdogTicker.C:
			if sent, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				app.Logger.Debug("failed to send watchdog notification", "error", err)
			} else if sent {
				app.Logger.Debug("sent watchdog notification to systemd")
			}
		}
	}
}
