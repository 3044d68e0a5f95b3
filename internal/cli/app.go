// Package cli implements the consultadm command tree.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/maidige/consultation-admin/internal/config"
	"github.com/maidige/consultation-admin/internal/infra/consultapi"
	"github.com/maidige/consultation-admin/internal/infra/session"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

// App holds the state shared by every command of one invocation.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
	format     string
	verbose    bool

	cfg     *config.Config
	log     *logger.Logger
	tracer  trace.Tracer
	session *session.Store
	client  *consultapi.Client

	// readPassword prompts for a secret without echo.
	readPassword func(prompt string) (string, error)
	lines        *bufio.Reader
}

// Option configures an App.
type Option func(*App)

// WithIO replaces the standard streams.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in, a.out, a.errOut = in, out, errOut
	}
}

// WithPasswordReader replaces the terminal password prompt.
func WithPasswordReader(fn func(prompt string) (string, error)) Option {
	return func(a *App) { a.readPassword = fn }
}

// NewRootCommand builds the consultadm command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &App{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	a.readPassword = a.terminalPassword
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:           "consultadm",
		Short:         "Administer pre-consultation records, reports and staff accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML config file")
	pf.StringVarP(&a.format, "output", "o", formatTable, "output format: table, json or yaml")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")
	pf.String("api.base_url", "", "consultation backend base url")
	pf.String("api.org_base_url", "", "organization directory base url")
	pf.String("session.path", "", "session file location")
	pf.Duration("polling.interval", 0, "report status polling interval")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.passwordCommand(),
		a.consultationsCommand(),
		a.reportsCommand(),
		a.analysisCommand(),
		a.doctorsCommand(),
		a.counselorsCommand(),
		a.orgsCommand(),
	)
	return root
}

// setup loads configuration, the stored session and the API client.
func (a *App) setup(cmd *cobra.Command) error {
	if err := validateFormat(a.format); err != nil {
		return err
	}

	level := logger.LevelWarn
	if a.verbose {
		level = logger.LevelDebug
	}
	a.log = logger.NewTextWithLevel(a.errOut, level)
	a.tracer = otel.Tracer("consultadm")

	// Flags left unset fall back to the configured value.
	cfg, err := (&config.ViperLoader{File: a.configFile, EnvFile: ".env", Flags: cmd.Flags()}).Load(ctxOf(cmd))
	if err != nil {
		return err
	}
	a.cfg = cfg

	store, err := session.NewStore(cfg.Session.Path, a.log)
	if err != nil {
		return err
	}
	a.session = store

	client, err := consultapi.New(cfg.API.Client(), store, a.log, a.tracer,
		consultapi.WithOnUnauthorized(store.ClearOnUnauthorized))
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

// require checks the stored session before a command talks to the backend.
// An empty action only requires a signed-in user.
func (a *App) require(action, subject string) error {
	if err := a.session.Require(action, subject); err != nil {
		return fmt.Errorf("%w (run \"consultadm login\")", err)
	}
	return nil
}

func (a *App) requireAdmin() error {
	if err := a.session.RequireAdmin(); err != nil {
		return fmt.Errorf("%w (run \"consultadm login\")", err)
	}
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
