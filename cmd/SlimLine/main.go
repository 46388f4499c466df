package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/SlimLine/internal/api"
	"github.com/BTreeMap/SlimLine/internal/flow"
	"github.com/BTreeMap/SlimLine/internal/genai"
	"github.com/BTreeMap/SlimLine/internal/lockfile"
	"github.com/BTreeMap/SlimLine/internal/messaging"
	"github.com/BTreeMap/SlimLine/internal/scheduler"
	"github.com/BTreeMap/SlimLine/internal/store"
	"github.com/BTreeMap/SlimLine/internal/twiliosms"
	"github.com/BTreeMap/SlimLine/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SlimLine state data
	DefaultStateDir = "/var/lib/slimline"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "slimline.db"
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

	if *flags.channelSecret == "" || *flags.channelToken == "" {
		slog.Error("LINE channel secret and access token are required")
		os.Exit(1)
	}

	// Guard the state directory against concurrent instances when using
	// file-based storage.
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	gaClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create GenAI client", "error", err)
		os.Exit(1)
	}

	lineService, err := messaging.NewLineService(*flags.channelToken)
	if err != nil {
		slog.Error("Failed to create LINE messaging service", "error", err)
		os.Exit(1)
	}

	// Assemble the conversational flows and router
	advisor := flow.NewCalorieAdvisor(gaClient)
	quiz := flow.NewQuizFlow(st, gaClient)
	articles := flow.NewArticleFlow(flow.DefaultArticles())
	summary := flow.NewSummaryFlow(st, nil)
	adminIDs := splitList(*flags.adminIDs)
	router := flow.NewRouter(st, advisor, quiz, articles, summary, adminIDs)

	server := api.NewServer(st, router, summary, lineService, lineService, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Nightly summary push over SMS when Twilio is configured
	sched := scheduler.NewScheduler(summary.Location())
	defer sched.Stop()
	if err := scheduleSummaryPush(ctx, sched, summary, flags); err != nil {
		slog.Error("Failed to schedule summary push", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping SlimLine", "api_addr", *flags.apiAddr, "admins", len(adminIDs))
	if err := server.Run(ctx); err != nil {
		slog.Error("SlimLine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("SlimLine exited successfully")
}

// Config holds environment configuration
type Config struct {
	ChannelSecret   string
	ChannelToken    string
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	AdminUserIDs    string
	SummaryPushTime string
	OperatorPhone   string
}

// Flags holds command line flag values
type Flags struct {
	channelSecret   *string
	channelToken    *string
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	apiAddr         *string
	adminIDs        *string
	summaryPushTime *string
	operatorPhone   *string
}

// initializeLogger sets up structured logging. SLIMLINE_VERBOSE=false
// raises the level from debug to info.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SLIMLINE_VERBOSE", true) {
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
		ChannelSecret:   os.Getenv("LINE_CHANNEL_SECRET"),
		ChannelToken:    os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("SLIMLINE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		AdminUserIDs:    os.Getenv("ADMIN_USER_IDS"),
		SummaryPushTime: os.Getenv("SUMMARY_PUSH_TIME"),
		OperatorPhone:   os.Getenv("OPERATOR_PHONE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SLIMLINE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"LINE_CHANNEL_SECRET_SET", config.ChannelSecret != "",
		"LINE_CHANNEL_ACCESS_TOKEN_SET", config.ChannelToken != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SLIMLINE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"ADMIN_USER_IDS_SET", config.AdminUserIDs != "",
		"SUMMARY_PUSH_TIME", config.SummaryPushTime,
		"OPERATOR_PHONE_SET", config.OperatorPhone != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		channelSecret:   flag.String("line-channel-secret", config.ChannelSecret, "LINE channel secret (overrides $LINE_CHANNEL_SECRET)"),
		channelToken:    flag.String("line-channel-token", config.ChannelToken, "LINE channel access token (overrides $LINE_CHANNEL_ACCESS_TOKEN)"),
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for SlimLine data (overrides $SLIMLINE_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN for the usage log and quiz store (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		adminIDs:        flag.String("admin-ids", config.AdminUserIDs, "comma-separated LINE user IDs allowed to request summaries (overrides $ADMIN_USER_IDS)"),
		summaryPushTime: flag.String("summary-push-time", config.SummaryPushTime, "daily HH:MM time to push the usage summary over SMS (overrides $SUMMARY_PUSH_TIME)"),
		operatorPhone:   flag.String("operator-phone", config.OperatorPhone, "operator phone number for the summary SMS (overrides $OPERATOR_PHONE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"channelSecretSet", *flags.channelSecret != "",
		"channelTokenSet", *flags.channelToken != "",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"summaryPushTime", *flags.summaryPushTime)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStore opens the SQLite or Postgres store depending on the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{api.WithChannelSecret(*flags.channelSecret)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

// scheduleSummaryPush wires the nightly summary SMS when both a push time
// and an operator phone number are configured. Twilio credentials come
// from the environment.
func scheduleSummaryPush(ctx context.Context, sched *scheduler.Scheduler, summary *flow.SummaryFlow, flags Flags) error {
	pushTime := *flags.summaryPushTime
	phone := *flags.operatorPhone
	if pushTime == "" || phone == "" {
		slog.Debug("Summary push not configured, skipping", "push_time_set", pushTime != "", "operator_phone_set", phone != "")
		return nil
	}

	smsClient, err := twiliosms.NewClient()
	if err != nil {
		return err
	}
	smsService := messaging.NewTwilioService(smsClient)
	to, err := smsService.ValidateAndCanonicalizeRecipient(phone)
	if err != nil {
		return err
	}

	return sched.AddDailyJob(pushTime, func() {
		report, err := summary.RespondToday(ctx)
		if err != nil {
			slog.Error("Summary push: failed to build report", "error", err)
			return
		}
		if err := smsService.SendMessage(ctx, to, report); err != nil {
			slog.Error("Summary push: failed to send SMS", "error", err)
			return
		}
		slog.Info("Summary push: daily report sent", "to", to)
	})
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
