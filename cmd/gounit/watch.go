package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/gounit/pkgs/config"
	"github.com/aledsdavies/gounit/pkgs/engine"
	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
	"github.com/aledsdavies/gounit/pkgs/watch"
)

func (a *app) watchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Regenerate tests whenever a specification changes",
		Long: `Watch generates every specification under the given directories, then
regenerates them when a .gounit file or gounit.yaml changes, until
interrupted. Errors are reported and watching continues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				dirs = []string{"."}
			}
			for _, d := range dirs {
				info, err := os.Stat(d)
				if err != nil || !info.IsDir() {
					return gerrors.New(gerrors.ErrInvalidArguments, d+" is not a directory")
				}
			}

			rebuild := func(ctx context.Context, changed []string) error {
				if len(changed) > 0 {
					a.logger.Debug("rebuilding", "changed", changed)
				}
				if err := a.regenerate(ctx, cmd, dirs); err != nil {
					a.display.Error(err)
				}
				return nil
			}

			_ = rebuild(cmd.Context(), nil)

			w := watch.New(dirs,
				watch.WithDebounce(debounce),
				watch.WithLogger(a.logger),
				watch.WithMatch(isWatched),
			)
			a.display.Summary("watching " + strings.Join(dirs, ", ") + " (ctrl-c to stop)")
			return w.Run(cmd.Context(), rebuild)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Wait this long for further changes before regenerating")
	return cmd
}

// regenerate rediscovers and regenerates everything under dirs. The config is
// reloaded each time so edits to gounit.yaml take effect.
func (a *app) regenerate(ctx context.Context, cmd *cobra.Command, dirs []string) error {
	files, err := engine.Discover(dirs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	cfg, err := a.loadConfig(cmd, files)
	if err != nil {
		return err
	}

	run, err := a.newEngine(cfg).Generate(ctx, files)
	if err != nil {
		return err
	}
	for _, w := range run.Warnings() {
		a.display.Warning(w)
	}
	for _, path := range run.Written {
		a.display.Wrote(path)
	}
	return nil
}

func isWatched(path string) bool {
	return filepath.Ext(path) == engine.SpecExt || slices.Contains(config.FileNames, filepath.Base(path))
}
