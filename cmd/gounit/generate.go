package main

import (
	"github.com/spf13/cobra"

	"github.com/aledsdavies/gounit/pkgs/engine"
	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
)

func (a *app) generateCommand() *cobra.Command {
	var (
		output   string
		toStdout bool
		verify   bool
	)

	cmd := &cobra.Command{
		Use:   "generate [file.gounit|dir|-]...",
		Short: "Generate _test.go files from specifications",
		Long: `Generate writes <name>_gounit_test.go next to each specification.
Directories are searched recursively for .gounit files; - reads stdin and
prints the result. Nothing is written unless every specification compiles.`,
		Example: `  gounit generate calc.gounit
  gounit generate --layout subtests ./...
  //go:generate gounit generate calc.gounit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == "./..." {
				args = []string{"."}
			}
			files, err := a.inputs(args)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(cmd, files)
			if err != nil {
				return err
			}
			e := a.newEngine(cfg)
			ctx := cmd.Context()

			if verify {
				if _, err := e.Stale(ctx, files); err != nil {
					return err
				}
				a.display.Summary("generated files are up to date")
				return nil
			}

			if output != "" || toStdout {
				return a.generateTo(cmd, e, files, output)
			}

			run, err := e.Generate(ctx, files)
			if err != nil {
				return err
			}
			for _, w := range run.Warnings() {
				a.display.Warning(w)
			}
			for _, res := range run.Results {
				if res.IsStdin() {
					if _, err := cmd.OutOrStdout().Write(res.Code); err != nil {
						return gerrors.NewOutputError("<stdout>", err)
					}
				}
			}
			for _, path := range run.Written {
				a.display.Wrote(path)
			}
			a.display.Summary(run.Summary())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the generated file to this path (single input only)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print generated code instead of writing files")
	cmd.Flags().BoolVar(&verify, "verify", false, "Fail if generated files are missing or out of date, write nothing")
	cmd.MarkFlagsMutuallyExclusive("output", "stdout", "verify")
	return cmd
}

// generateTo compiles files and writes the code to one path or to stdout
func (a *app) generateTo(cmd *cobra.Command, e *engine.Engine, files []string, output string) error {
	if output != "" && len(files) != 1 {
		return gerrors.New(gerrors.ErrInvalidArguments, "-o needs exactly one input")
	}

	results, err := e.CompileAll(cmd.Context(), files)
	if err != nil {
		return err
	}
	for _, res := range results {
		for _, w := range res.Warnings {
			a.display.Warning(res.Input + ": " + w)
		}
	}

	if output != "" {
		changed, err := results[0].WriteFile(output)
		if err != nil {
			return gerrors.NewOutputError(output, err)
		}
		if changed {
			a.display.Wrote(output)
		}
		return nil
	}

	for _, res := range results {
		if _, err := cmd.OutOrStdout().Write(res.Code); err != nil {
			return gerrors.NewOutputError("<stdout>", err)
		}
	}
	return nil
}
