package main

import (
	"github.com/spf13/cobra"
)

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file.gounit|dir|-]...",
		Short: "Parse specifications and report every error",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.inputs(args)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(cmd, files)
			if err != nil {
				return err
			}
			if err := a.newEngine(cfg).Check(cmd.Context(), files); err != nil {
				return err
			}
			for _, f := range files {
				a.display.OK(f)
			}
			return nil
		},
	}
}
