package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/kanban/internal/auth"
	"github.com/idilsaglam/kanban/internal/config"
	"github.com/idilsaglam/kanban/internal/gateway"
	"github.com/idilsaglam/kanban/internal/logging"
	"github.com/idilsaglam/kanban/internal/notify"
	"github.com/idilsaglam/kanban/internal/reconcile"
	"github.com/idilsaglam/kanban/internal/ui"
)

// Options wire the CLI to its environment. The zero value uses the process
// streams, the real config files and ~/.kanban.
type Options struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer
	Loader         config.Loader
	// AuthDir overrides the credentials directory.
	AuthDir string
}

// exitError carries the process exit code: 1 for failures, 2 for usage
// errors.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func usagef(format string, a ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, a...)}
}

func failf(format string, a ...any) error {
	return &exitError{code: 1, err: fmt.Errorf(format, a...)}
}

// usageArgs turns cobra's argument validation errors into usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usagef("%v\nusage: %s", err, cmd.UseLine())
		}
		return nil
	}
}

// app is the state shared by every command of one invocation.
type app struct {
	opt      Options
	cfg      *config.Config
	logger   *log.Logger
	closeLog func() error
	noColor  bool
	// interactive marks commands that own the terminal; their logs go to a
	// file.
	interactive bool
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if opt.Stdin == nil {
		opt.Stdin = os.Stdin
	}
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}
	if opt.Stderr == nil {
		opt.Stderr = os.Stderr
	}
	ui.SetOutput(opt.Stdout, opt.Stderr)
	defer func() {
		ui.SetOutput(nil, nil)
		ui.SetColorForcing(false, false)
		ui.SetTheme("")
	}()

	a := &app{opt: opt, closeLog: func() error { return nil }}
	defer func() { _ = a.closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(opt.Stdin)
	root.SetOut(opt.Stdout)
	root.SetErr(opt.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		ui.Fail(ee.Error())
		return ee.code
	}
	// Anything else comes from cobra's own flag and command parsing.
	ui.Fail(err.Error())
	ui.Hint("Run `board --help` for usage.")
	return 2
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "board",
		Short: "A three-lane kanban board for your todos",
		Long: `board shows your todos in Pending, In Progress and Completed lanes.

Without a subcommand it opens the interactive board: grab a todo with space,
carry it across lanes with h/l, drop it with enter.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: a.runBoard,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colour output")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usagef("%v\nusage: %s", err, cmd.UseLine())
	})

	root.AddCommand(
		a.lsCmd(),
		a.addCmd(),
		a.editCmd(),
		a.rmCmd(),
		a.mvCmd(),
		a.serveCmd(),
		a.authCmd(),
	)
	return root
}

// setup loads configuration and logging before any command runs.
func (a *app) setup(cmd *cobra.Command) error {
	a.interactive = !cmd.HasParent()
	cfg, err := a.opt.Loader.Load(cmd.Flags())
	if err != nil {
		return usagef("config: %v", err)
	}
	a.cfg = cfg

	ui.SetTheme(cfg.Theme)
	if a.noColor {
		ui.SetColorForcing(false, true)
	}

	logFile := cfg.Log.File
	if logFile == "" && a.interactive {
		if logFile, err = logging.DefaultFile(); err != nil {
			return failf("log file: %v", err)
		}
	}
	logger, closeFn, err := logging.New(logging.Options{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		File:     logFile,
		Fallback: a.opt.Stderr,
	})
	if err != nil {
		return usagef("logging: %v", err)
	}
	a.logger, a.closeLog = logger, closeFn
	return nil
}

func (a *app) authStore() (auth.Store, error) {
	if a.opt.AuthDir != "" {
		return auth.Store{Dir: a.opt.AuthDir}, nil
	}
	return auth.DefaultStore()
}

func (a *app) gateway() (*gateway.HTTPClient, error) {
	token := a.cfg.Token
	if token == "" {
		store, err := a.authStore()
		if err != nil {
			return nil, err
		}
		ti, err := store.Token()
		if err != nil {
			return nil, err
		}
		if ti != nil {
			token = ti.Token
		}
	}
	opts := []gateway.Option{
		gateway.WithLimit(a.cfg.Limit),
		gateway.WithLogger(a.logger),
	}
	if token != "" {
		opts = append(opts, gateway.WithToken(token))
	}
	if a.cfg.Timeout > 0 {
		opts = append(opts, gateway.WithTimeout(a.cfg.Timeout))
	}
	return gateway.NewHTTPClient(a.cfg.APIURL, opts...), nil
}

// controller builds a controller whose notifications are recorded, and
// logged as well when the board owns the terminal.
func (a *app) controller(ctx context.Context) (*reconcile.Controller, *notify.Recorder, error) {
	gw, err := a.gateway()
	if err != nil {
		return nil, nil, failf("auth: %v", err)
	}
	rec := notify.NewRecorder(50)
	var sink notify.Sink = rec
	if a.interactive {
		sink = notify.Multi{rec, notify.LogSink{Logger: a.logger}}
	}
	ctrl := reconcile.New(ctx, gw, reconcile.Options{
		OwnerID: a.cfg.OwnerID,
		Sink:    sink,
		Logger:  a.logger,
	})
	return ctrl, rec, nil
}
