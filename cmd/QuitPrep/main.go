package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/QuitPrep/internal/api"
	"github.com/BTreeMap/QuitPrep/internal/email"
	"github.com/BTreeMap/QuitPrep/internal/store"
	"github.com/BTreeMap/QuitPrep/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for QuitPrep state data
	DefaultStateDir = "/var/lib/quitprep"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "quitprep.db"
	// DefaultCatalogFileName is the default activity catalog filename
	DefaultCatalogFileName = "Activities.csv"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	storeOpts := buildStoreOptions(flags)
	mailOpts := buildMailOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping QuitPrep with configured modules")
	slog.Debug("Final configuration", "catalog", *flags.catalogPath, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "smtp_set", *flags.smtpHost != "")
	if err := api.Run(storeOpts, mailOpts, apiOpts); err != nil {
		slog.Error("QuitPrep failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("QuitPrep exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	StateDir     string
	CatalogPath  string
	APIAddr      string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN       *string
	catalogPath *string
	apiAddr     *string
	smtpHost    *string
	smtpPort    *int
	smtpUser    *string
	smtpPass    *string
	smtpFrom    *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("QUITPREP_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("QUITPREP_STATE_DIR"),
		CatalogPath:  os.Getenv("ACTIVITIES_FILE"),
		APIAddr:      os.Getenv("API_ADDR"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     util.ParseIntEnv("SMTP_PORT", email.DefaultSMTPPort),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No QUITPREP_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.CatalogPath == "" {
		config.CatalogPath = DefaultCatalogFileName
		slog.Debug("No ACTIVITIES_FILE set, using default", "catalog", config.CatalogPath)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"QUITPREP_STATE_DIR", config.StateDir,
		"ACTIVITIES_FILE", config.CatalogPath,
		"API_ADDR", config.APIAddr,
		"SMTP_HOST", config.SMTPHost,
		"SMTP_FROM_SET", config.SMTPFrom != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		catalogPath: flag.String("activities", config.CatalogPath, "activity catalog CSV path (overrides $ACTIVITIES_FILE)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		smtpHost:    flag.String("smtp-host", config.SMTPHost, "SMTP server for reminder emails (overrides $SMTP_HOST)"),
		smtpPort:    flag.Int("smtp-port", config.SMTPPort, "SMTP submission port (overrides $SMTP_PORT)"),
		smtpUser:    flag.String("smtp-user", config.SMTPUsername, "SMTP username (overrides $SMTP_USERNAME)"),
		smtpPass:    flag.String("smtp-pass", config.SMTPPassword, "SMTP password (overrides $SMTP_PASSWORD)"),
		smtpFrom:    flag.String("smtp-from", config.SMTPFrom, "reminder sender address (overrides $SMTP_FROM)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"catalog", *flags.catalogPath,
		"apiAddr", *flags.apiAddr,
		"smtpHost", *flags.smtpHost)

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildMailOptions constructs reminder email configuration options
func buildMailOptions(flags Flags) []email.Option {
	if *flags.smtpHost == "" {
		slog.Debug("No SMTP host provided, reminder emails disabled")
		return nil
	}
	mailOpts := []email.Option{
		email.WithHost(*flags.smtpHost),
		email.WithPort(*flags.smtpPort),
		email.WithFrom(*flags.smtpFrom),
	}
	if *flags.smtpUser != "" || *flags.smtpPass != "" {
		mailOpts = append(mailOpts, email.WithCredentials(*flags.smtpUser, *flags.smtpPass))
	}
	return mailOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{api.WithCatalogPath(*flags.catalogPath)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
