package cli

import (
	"github.com/peterbourgon/ff/v4"

	"github.com/eshaffer321/expense-matcher/internal/infrastructure/config"
)

// EnvPrefix is the environment variable prefix for every flag,
// e.g. --db is also read from EXPENSE_MATCHER_DB.
const EnvPrefix = "EXPENSE_MATCHER"

// GlobalFlags are shared by all subcommands. Empty values leave the
// config file or environment setting in place.
type GlobalFlags struct {
	ConfigPath  string
	DBPath      string
	ReceiptsDir string
	LogLevel    string
	LogFormat   string
	Verbose     bool
}

// Register adds the global flags to fs.
func (f *GlobalFlags) Register(fs *ff.FlagSet) {
	fs.StringVar(&f.ConfigPath, 'c', "config", "config.yaml", "Path to the YAML config file")
	fs.StringVar(&f.DBPath, 0, "db", "", "SQLite database path (overrides storage.database_path)")
	fs.StringVar(&f.ReceiptsDir, 0, "receipts-dir", "", "Receipt upload directory (overrides storage.receipts_dir)")
	fs.StringVar(&f.LogLevel, 0, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.LogFormat, 0, "log-format", "", "Log format: maven, json, text")
	fs.BoolVar(&f.Verbose, 'v', "verbose", "Verbose output (same as --log-level=debug)")
}

// Apply overrides cfg with every flag that was given.
func (f *GlobalFlags) Apply(cfg *config.Config) {
	if f.DBPath != "" {
		cfg.Storage.DatabasePath = f.DBPath
	}
	if f.ReceiptsDir != "" {
		cfg.Storage.ReceiptsDir = f.ReceiptsDir
	}
	if f.LogLevel != "" {
		cfg.Observability.Logging.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Observability.Logging.Format = f.LogFormat
	}
	if f.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
}
