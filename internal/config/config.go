package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DB
	Env         string // "dev" | "prod"
	DBDriver    string // "sqlite" | "postgres"
	DBPath      string // e.g. "./data/budgetbot.db"
	PostgresDSN string

	// Telegram
	TelegramToken   string
	TelegramAPIURL  string
	UpdateMode      string // "polling" | "webhook"
	WebhookSecret   string
	DeveloperChatID int64

	RosterPath string

	// Export
	ExportSink       string // "csv" | "sheets"
	ExportPath       string
	ExportTimezone   string
	SheetsID         string
	SheetsName       string
	SheetsCredential string // service account key file; empty = default credentials

	// Logging
	LogLevel string
	LogFile  string

	// Transition event retention
	EventRetentionDays int // 0 = keep forever
	PruneIntervalHours int // how often the pruner runs (default 6)

	SeedDev bool
}

func FromEnv() Config {
	addr := getenvDefault("BUDGETBOT_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("BUDGETBOT_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	driver := strings.ToLower(getenvDefault("BUDGETBOT_DB_DRIVER", "sqlite"))
	sink := strings.ToLower(getenvDefault("BUDGETBOT_EXPORT_SINK", "csv"))
	if sink != "csv" && sink != "sheets" {
		sink = "csv"
	}

	mode := strings.ToLower(getenvDefault("BUDGETBOT_UPDATE_MODE", "polling"))
	if mode != "polling" && mode != "webhook" {
		mode = "polling"
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,

		DBDriver:    driver,
		DBPath:      getenvDefault("BUDGETBOT_DB_PATH", "./data/budgetbot.db"),
		PostgresDSN: os.Getenv("BUDGETBOT_POSTGRES_DSN"),

		TelegramToken:   os.Getenv("BUDGETBOT_TELEGRAM_TOKEN"),
		TelegramAPIURL:  getenvDefault("BUDGETBOT_TELEGRAM_API_URL", "https://api.telegram.org"),
		UpdateMode:      mode,
		WebhookSecret:   os.Getenv("BUDGETBOT_WEBHOOK_SECRET"),
		DeveloperChatID: getenvInt64("BUDGETBOT_DEVELOPER_CHAT_ID", 0),

		RosterPath: getenvDefault("BUDGETBOT_ROSTER_PATH", "./roster.yaml"),

		ExportSink:       sink,
		ExportPath:       getenvDefault("BUDGETBOT_EXPORT_PATH", "./data/export.csv"),
		ExportTimezone:   getenvDefault("BUDGETBOT_EXPORT_TIMEZONE", "Europe/Moscow"),
		SheetsID:         os.Getenv("BUDGETBOT_SHEETS_SPREADSHEET_ID"),
		SheetsName:       getenvDefault("BUDGETBOT_SHEETS_NAME", "Sheet1"),
		SheetsCredential: os.Getenv("BUDGETBOT_SHEETS_CREDENTIALS"),

		LogLevel: getenvDefault("BUDGETBOT_LOG_LEVEL", "info"),
		LogFile:  os.Getenv("BUDGETBOT_LOG_FILE"),

		EventRetentionDays: getenvInt("BUDGETBOT_EVENT_RETENTION_DAYS", 365),
		PruneIntervalHours: getenvInt("BUDGETBOT_PRUNE_INTERVAL_HOURS", 6),

		SeedDev: getenvBool("BUDGETBOT_SEED_DEV"),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Chat ids may be negative (groups), so only parse failures fall back.
func getenvInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string) bool {
	v := os.Getenv(key)
	return strings.EqualFold(v, "true") || v == "1"
}
