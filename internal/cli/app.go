// Package cli wires configuration, storage and services into the
// expense-matcher command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/eshaffer321/expense-matcher/internal/api"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/config"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/filestore"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/logging"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	stdout io.Writer
	stderr io.Writer
	global GlobalFlags

	cfg    *config.Config
	logger *slog.Logger
}

// Run parses args (without the program name) and executes the selected
// subcommand. Logs go to stderr, reports to stdout.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.command()

	if err := root.Parse(args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		return err
	}

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		}
		return err
	}
	return nil
}

func (a *app) command() *ff.Command {
	rootFlags := ff.NewFlagSet("expense-matcher")
	a.global.Register(rootFlags)

	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	port := serveFlags.IntLong("port", 0, "Port to listen on (overrides server.port)")

	importFlags := ff.NewFlagSet("import").SetParent(rootFlags)
	source := importFlags.StringLong("source", "", "Source name recorded on the import run (default: file name)")

	autoFlags := ff.NewFlagSet("auto-match").SetParent(rootFlags)
	threshold := autoFlags.Float64Long("threshold", -1, "Minimum confidence 0-100 (default: matching.auto_match_threshold)")

	statsFlags := ff.NewFlagSet("stats").SetParent(rootFlags)

	return &ff.Command{
		Name:      "expense-matcher",
		Usage:     "expense-matcher [FLAGS] <SUBCOMMAND>",
		ShortHelp: "match card transactions to receipts",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			{
				Name:      "serve",
				Usage:     "expense-matcher serve [--port N]",
				ShortHelp: "run the HTTP API",
				Flags:     serveFlags,
				Exec: func(ctx context.Context, _ []string) error {
					return a.runServe(ctx, *port)
				},
			},
			{
				Name:      "import",
				Usage:     "expense-matcher import [--source NAME] FILE.csv...",
				ShortHelp: "import card statement CSV files",
				Flags:     importFlags,
				Exec: func(ctx context.Context, args []string) error {
					return a.runImport(ctx, *source, args)
				},
			},
			{
				Name:      "auto-match",
				Usage:     "expense-matcher auto-match [--threshold N]",
				ShortHelp: "propose matches for every unmatched receipt",
				Flags:     autoFlags,
				Exec: func(ctx context.Context, _ []string) error {
					return a.runAutoMatch(ctx, *threshold)
				},
			},
			{
				Name:      "stats",
				Usage:     "expense-matcher stats",
				ShortHelp: "print match statistics",
				Flags:     statsFlags,
				Exec: func(ctx context.Context, _ []string) error {
					return a.runStats(ctx)
				},
			},
		},
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(component string) error {
	cfg, err := config.LoadPath(a.global.ConfigPath)
	if err != nil {
		return err
	}
	a.global.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.logger = logging.NewLoggerTo(a.stderr, cfg.Observability.Logging).With(logging.ComponentKey, component)
	return nil
}

// openServices opens storage and builds the application services. The
// returned func closes the database.
func (a *app) openServices() (api.Services, func(), error) {
	m, err := matcher.NewMatcher(a.cfg.Matching.MatcherConfig())
	if err != nil {
		return api.Services{}, nil, fmt.Errorf("matcher config: %w", err)
	}

	files, err := filestore.NewLocalStorage(a.cfg.Storage.ReceiptsDir)
	if err != nil {
		return api.Services{}, nil, err
	}

	store, err := storage.NewStorage(a.cfg.Storage.DatabasePath, storage.WithLogger(a.logger))
	if err != nil {
		return api.Services{}, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("closing database", slog.Any("error", err))
		}
	}

	services := api.NewServices(store, files, m, a.logger, service.WithSweepConcurrency(a.cfg.Matching.SweepConcurrency))
	return services, closeFn, nil
}
