package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sourcegraph/conc"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	httpapi "github.com/Paintersrp/acpwrap/internal/api/http"
	"github.com/Paintersrp/acpwrap/internal/config"
	"github.com/Paintersrp/acpwrap/internal/logsink"
	"github.com/Paintersrp/acpwrap/internal/metrics"
	"github.com/Paintersrp/acpwrap/internal/resolve"
	"github.com/Paintersrp/acpwrap/internal/supervisor"
)

// context carries the process environment the root command runs against.
type context struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	fs          afero.Fs
	homeDir     func() (string, error)
	newResolver func(*slog.Logger) supervisor.Resolver

	exitCode int
}

func newContext(stdin io.Reader, stdout, stderr io.Writer) *context {
	return &context{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		fs:      afero.NewOsFs(),
		homeDir: os.UserHomeDir,
		newResolver: func(logger *slog.Logger) supervisor.Resolver {
			return resolve.New(logger)
		},
	}
}

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand(newContext(os.Stdin, os.Stdout, os.Stderr))
	return root
}

func newRootCommand(ctx *context) (*cobra.Command, *context) {
	root := &cobra.Command{
		Use:   "acpwrap [--log-level dev|serve|info|warn|error] [child args...]",
		Short: "Supervise an ACP child process over standard I/O",
		// Every token except --log-level belongs to the child, so cobra must
		// not interpret flags.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.ParseArgs(args)
			if err != nil {
				return err
			}
			ctx.exitCode = ctx.run(cmd.Context(), opts)
			return nil
		},
	}

	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetIn(ctx.stdin)
	root.SetOut(ctx.stdout)
	root.SetErr(ctx.stderr)

	return root, ctx
}

// Execute runs the CLI entrypoint and returns the process exit code.
func Execute() int {
	return execute(newContext(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
}

func execute(ctx *context, args []string) int {
	root, _ := newRootCommand(ctx)
	root.SetArgs(args)
	if err := root.ExecuteContext(stdcontext.Background()); err != nil {
		fmt.Fprintln(ctx.stderr, err)
		return 1
	}
	return ctx.exitCode
}

func (c *context) run(parent stdcontext.Context, opts config.Options) int {
	settings, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(c.stderr, "[ERROR] %v\n", err)
		return 1
	}

	home, err := c.homeDir()
	if err != nil {
		home = ""
	}
	sink := logsink.Open(c.fs, settings.LogCandidates(home), c.stderr)
	logger := logsink.New(sink, logsink.Options{
		Name:      settings.Name,
		Echo:      c.stderr,
		EchoLevel: opts.LogLevel.EchoThreshold(),
	})
	if path := logger.Path(); path != "" {
		logger.Info(fmt.Sprintf("Logging to: %s", path))
	} else {
		logger.Warn("No log file could be opened, continuing without a durable log")
	}
	logger.Debug(fmt.Sprintf("Log level: %s", opts.LogLevel))

	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		logger.Warn("STDIN is a terminal; expected an ACP client on a pipe")
	}

	sup := supervisor.New(supervisor.Config{
		Name:     settings.Name,
		Binary:   settings.Binary,
		ModeFlag: settings.ModeFlag,
		Args:     opts.ChildArgs,
		Resolver: c.newResolver(logger.Logger),
		Logger:   logger,
		Stdin:    c.stdin,
		Stdout:   c.stdout,
		Stderr:   c.stderr,
	})

	ctx, cancel := stdcontext.WithCancel(parent)
	defer cancel()

	var wg conc.WaitGroup
	if settings.MetricsAddr != "" {
		server, err := httpapi.NewServer(httpapi.Config{
			Addr:     settings.MetricsAddr,
			Source:   sup,
			Gatherer: metrics.Registry(),
		})
		if err != nil {
			logger.Error(fmt.Sprintf("Status server disabled: %v", err))
		} else {
			logger.Info(fmt.Sprintf("Serving metrics and status on %s", server.Addr()))
			wg.Go(func() {
				if err := server.Run(ctx); err != nil {
					logger.Error(fmt.Sprintf("Status server stopped: %v", err))
				}
			})
		}
	}

	code := sup.Run(ctx)
	cancel()
	wg.Wait()
	return code
}
