package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/shinygold/unitengine/internal/depgraph"
	"github.com/shinygold/unitengine/internal/unit"
	"github.com/spf13/cobra"
)

// LoadCommand parses a single unit fragment and reports the dependencies
// it resolved, useful for validating a fragment file outside the daemon.
type LoadCommand struct{}

// GetCobraCommand returns the cobra command for one-shot fragment loading.
func (c *LoadCommand) GetCobraCommand() *cobra.Command {
	loadCmd := &cobra.Command{
		Use:   "load NAME PATH",
		Short: "Load a unit fragment and print its resolved dependencies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), args[0], args[1])
		},
	}
	return loadCmd
}

func (c *LoadCommand) run(ctx context.Context, name, path string) error {
	app := NewApp(ctx, cfg, nil)
	defer app.Close()

	typ, ok := unit.TypeFromName(name)
	if !ok {
		typ = unit.TypeService
	}
	if _, err := app.Manager.NewUnit(typ, name); err != nil {
		return fmt.Errorf("creating unit %s: %w", name, err)
	}
	app.Manager.Tick()

	if err := app.Manager.LoadFragment(name, path); err != nil {
		return fmt.Errorf("loading fragment for %s: %w", name, err)
	}

	u, _ := app.Manager.Lookup(name)
	fmt.Printf("%s: description=%q conditions=%d asserts=%d\n", u.ID, u.Description, len(u.Conditions), len(u.Asserts))
	for k := depgraph.Requires; k <= depgraph.ReferencedBy; k++ {
		if peers := u.Dependencies(k); len(peers) > 0 {
			fmt.Printf("  %s: %s\n", k, strings.Join(peers, " "))
		}
	}
	return nil
}
