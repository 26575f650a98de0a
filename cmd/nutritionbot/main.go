package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/lampapompa/line-nutrition-bot/internal/api"
	"github.com/lampapompa/line-nutrition-bot/internal/genai"
	"github.com/lampapompa/line-nutrition-bot/internal/line"
	"github.com/lampapompa/line-nutrition-bot/internal/lockfile"
	"github.com/lampapompa/line-nutrition-bot/internal/store"
	"github.com/lampapompa/line-nutrition-bot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for bot state data
	DefaultStateDir = "/var/lib/nutritionbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "sessions.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A second instance sharing the state directory would race over the
	// session database.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build module options
	lineOpts := buildLineOptions(flags)
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping nutrition bot with configured modules")
	slog.Debug("Module options counts", "line", len(lineOpts), "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "backend", *flags.backend, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(lineOpts, storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("Nutrition bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Nutrition bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	ChannelSecret   string
	ChannelToken    string
	OpenAIKey       string
	OpenAIModel     string
	DatabaseURL     string
	StateDir        string
	APIAddr         string
	Backend         string
	Segmentation    string
	CleanupSchedule string
	PendingImageTTL time.Duration
	ReplyDelayCap   time.Duration
	KeywordGate     bool
	DebugLogging    bool
}

// Flags holds command line flag values
type Flags struct {
	backend       *string
	stateDir      *string
	dbDSN         *string
	channelSecret *string
	channelToken  *string
	openaiKey     *string
	openaiModel   *string
	apiAddr       *string
	segmentation  *string
	cleanupSched  *string
	pendingTTL    *time.Duration
	delayCap      *time.Duration
	keywordGate   *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	level := slog.LevelDebug
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
		ChannelSecret:   os.Getenv("LINE_CHANNEL_SECRET"),
		ChannelToken:    os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("BOT_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		Backend:         os.Getenv("MESSAGING_BACKEND"),
		Segmentation:    os.Getenv("REPLY_SEGMENTATION"),
		CleanupSchedule: os.Getenv("CLEANUP_SCHEDULE"),
		PendingImageTTL: util.ParseDurationEnv("PENDING_IMAGE_TTL", 0),
		ReplyDelayCap:   util.ParseDurationEnv("REPLY_DELAY_CAP", 0),
		KeywordGate:     util.ParseBoolEnv("INTENT_KEYWORD_GATE", false),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("BOT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// Alternate DSN variable for the session store
	if config.DatabaseURL == "" {
		config.DatabaseURL = os.Getenv("SESSION_DB_DSN")
	}

	return config
}

// parseCommandLineFlags parses command line flags, using environment values
// as defaults so flags override env.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		backend:       flag.String("backend", config.Backend, "messaging backend: line or twilio (env MESSAGING_BACKEND)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory (env BOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "session store DSN, Postgres URL or SQLite path (env DATABASE_URL / SESSION_DB_DSN)"),
		channelSecret: flag.String("channel-secret", config.ChannelSecret, "LINE channel secret (env LINE_CHANNEL_SECRET)"),
		channelToken:  flag.String("channel-token", config.ChannelToken, "LINE channel access token (env LINE_CHANNEL_ACCESS_TOKEN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (env OPENAI_API_KEY)"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI model (env OPENAI_MODEL)"),
		apiAddr:       flag.String("addr", config.APIAddr, "API listen address (env API_ADDR)"),
		segmentation:  flag.String("segmentation", config.Segmentation, "reply segmentation: single or punctuation (env REPLY_SEGMENTATION)"),
		cleanupSched:  flag.String("cleanup-schedule", config.CleanupSchedule, "cron expression for the expired-session sweep (env CLEANUP_SCHEDULE)"),
		pendingTTL:    flag.Duration("pending-image-ttl", config.PendingImageTTL, "pending image TTL (env PENDING_IMAGE_TTL)"),
		delayCap:      flag.Duration("reply-delay-cap", config.ReplyDelayCap, "humanization delay cap (env REPLY_DELAY_CAP)"),
		keywordGate:   flag.Bool("keyword-gate", config.KeywordGate, "use keyword intent gate instead of classifier (env INTENT_KEYWORD_GATE)"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when an SQLite session
// store will live inside it. External Postgres DSNs need no directories.
func ensureDirectoriesExist(flags Flags) error {
	dsn := sessionDSN(flags)
	if dsn == "" || store.DetectDSNType(dsn) == "postgres" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// sessionDSN resolves the session store DSN: an explicit DSN wins, otherwise
// an SQLite file in the state directory. The API layer degrades to the
// in-memory store when the file cannot be opened.
func sessionDSN(flags Flags) string {
	if *flags.dbDSN != "" {
		return *flags.dbDSN
	}
	if *flags.stateDir != "" {
		return filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	return ""
}

// buildLineOptions creates LINE client options from flags
func buildLineOptions(flags Flags) []line.Option {
	var opts []line.Option
	if *flags.channelSecret != "" {
		opts = append(opts, line.WithChannelSecret(*flags.channelSecret))
	}
	if *flags.channelToken != "" {
		opts = append(opts, line.WithChannelToken(*flags.channelToken))
	}
	return opts
}

// buildStoreOptions creates store options from flags
func buildStoreOptions(flags Flags) []store.Option {
	var opts []store.Option
	if dsn := sessionDSN(flags); dsn != "" {
		if store.DetectDSNType(dsn) == "postgres" {
			opts = append(opts, store.WithPostgresDSN(dsn))
		} else {
			opts = append(opts, store.WithSQLiteDSN(dsn))
		}
	}
	return opts
}

// buildGenAIOptions creates GenAI options from flags
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	return opts
}

// buildAPIOptions creates API options from flags
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.backend != "" {
		opts = append(opts, api.WithBackend(*flags.backend))
	}
	if *flags.segmentation != "" {
		opts = append(opts, api.WithSegmentation(*flags.segmentation))
	}
	if *flags.cleanupSched != "" {
		opts = append(opts, api.WithCleanupSchedule(*flags.cleanupSched))
	}
	if *flags.pendingTTL > 0 {
		opts = append(opts, api.WithPendingImageTTL(*flags.pendingTTL))
	}
	if *flags.delayCap > 0 {
		opts = append(opts, api.WithDelayCap(*flags.delayCap))
	}
	if *flags.keywordGate {
		opts = append(opts, api.WithKeywordGate())
	}
	return opts
}
