// Command gounit compiles BDD-style .gounit specifications into Go tests.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/gounit/pkgs/config"
	"github.com/aledsdavies/gounit/pkgs/engine"
	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app holds the streams and global flags of one invocation
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	pkg        string
	layout     string
	naming     string
	prefix     string
	teardown   string
	parallel   bool
	jobs       int
	debug      bool
	noColor    bool

	logger  *slog.Logger
	display *Display
}

// run executes the command line and returns the exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	rootCmd := a.rootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if a.display == nil {
			a.display = NewDisplay(stderr, ShouldUseColor(a.noColor, stderr))
		}
		a.logError(err)
		a.display.Error(err)
		return gerrors.ExitCode(err)
	}
	return gerrors.ExitSuccess
}

// logError records the type and context of a failed command at debug level
func (a *app) logError(err error) {
	if a.logger == nil {
		return
	}
	args := []any{"err", err}
	var gErr *gerrors.GounitError
	if errors.As(err, &gErr) {
		args = append(args, "type", gErr.Type)
		for _, key := range gErr.ContextKeys() {
			value, _ := gErr.GetContext(key)
			args = append(args, key, value)
		}
	}
	a.logger.Debug("command failed", args...)
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gounit",
		Short:         "Compile BDD-style test specifications into Go tests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to gounit.yaml (default: discovered next to the first input)")
	flags.StringVar(&a.pkg, "package", "", "Package for specifications without a package clause")
	flags.StringVar(&a.layout, "layout", "", "Output layout: functions or subtests")
	flags.StringVar(&a.naming, "naming", "", "Outer scope naming: fixed, sequence or content")
	flags.StringVar(&a.prefix, "prefix", "", "Prefix of generated test identifiers")
	flags.StringVar(&a.teardown, "teardown", "", "Teardown placement: inline or cleanup")
	flags.BoolVar(&a.parallel, "parallel", false, "Emit t.Parallel() in every test")
	flags.IntVarP(&a.jobs, "jobs", "j", 0, "Files compiled concurrently (default: GOMAXPROCS)")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug output")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		a.generateCommand(),
		a.checkCommand(),
		a.astCommand(),
		a.watchCommand(),
		a.versionCommand(),
	)
	return rootCmd
}

// setup builds the logger and display once flags are parsed
func (a *app) setup() {
	level := slog.LevelError
	if a.debug || os.Getenv("GOUNIT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 && attr.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return attr
		},
	}))
	a.display = NewDisplay(a.stderr, ShouldUseColor(a.noColor, a.stderr))
}

// loadConfig resolves the configuration: --config, else a config file next
// to the first input, else defaults; flags set on the command line win.
func (a *app) loadConfig(cmd *cobra.Command, inputs []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.Discover(configDir(inputs))
	}
	if err != nil {
		return nil, gerrors.NewConfigError("", err)
	}

	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("package") {
		o.Package = &a.pkg
	}
	if flags.Changed("layout") {
		o.Layout = &a.layout
	}
	if flags.Changed("naming") {
		o.Naming = &a.naming
	}
	if flags.Changed("prefix") {
		o.Prefix = &a.prefix
	}
	if flags.Changed("parallel") {
		o.Parallel = &a.parallel
	}
	if flags.Changed("teardown") {
		o.Teardown = &a.teardown
	}

	cfg, err = cfg.Apply(o)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrInvalidArguments, "invalid flags", err)
	}
	if cfg.Path != "" {
		a.logger.Debug("config", "file", cfg.Path)
	}
	return cfg, nil
}

func configDir(inputs []string) string {
	for _, in := range inputs {
		if in == engine.StdinName {
			continue
		}
		if info, err := os.Stat(in); err == nil && info.IsDir() {
			return in
		}
		return filepath.Dir(in)
	}
	return "."
}

func (a *app) newEngine(cfg *config.Config) *engine.Engine {
	return engine.New(cfg,
		engine.WithLogger(a.logger),
		engine.WithJobs(a.jobs),
		engine.WithStdin(a.stdin, "."),
	)
}

// inputs returns the files to process. Without arguments, piped stdin is
// read, otherwise the current directory is searched.
func (a *app) inputs(args []string) ([]string, error) {
	if len(args) == 0 {
		if hasPipedInput(a.stdin) {
			args = []string{engine.StdinName}
		} else {
			args = []string{"."}
		}
	}
	files, err := engine.Discover(args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, gerrors.New(gerrors.ErrInvalidArguments, "no "+engine.SpecExt+" files found")
	}
	return files, nil
}

// hasPipedInput detects if there's data piped to stdin
func hasPipedInput(stdin io.Reader) bool {
	f, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	// Pipes may not report a size, so only the mode is checked.
	return (stat.Mode() & os.ModeCharDevice) == 0
}
