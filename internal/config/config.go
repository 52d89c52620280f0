package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              string
	Env               string
	BotURL            string
	LogLevel          string
	DefaultLocale     string
	MongoURI          string
	MongoDB           string
	HistoryEnabled    bool
	MattermostURL     string
	LeaveBotToken     string
	CategoriesFile    string
	OverseerIDs       []string
	NotifyTimeout     time.Duration
	NotifyConcurrency int
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("ENV", "development"),
		BotURL:            strings.TrimRight(getEnv("BOT_URL", "http://bot-service:3000"), "/"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "id"),
		MongoURI:          getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:           getEnv("MONGODB_DATABASE", "izin"),
		HistoryEnabled:    getEnvBool("HISTORY_ENABLED", true),
		MattermostURL:     strings.TrimRight(getEnv("MATTERMOST_URL", "http://localhost:8065"), "/"),
		LeaveBotToken:     getEnv("LEAVE_BOT_TOKEN", ""),
		CategoriesFile:    getEnv("CATEGORIES_FILE", ""),
		OverseerIDs:       splitList(getEnv("OVERSEER_IDS", "")),
		NotifyTimeout:     getEnvDuration("NOTIFY_TIMEOUT", 30*time.Second),
		NotifyConcurrency: getEnvInt("NOTIFY_CONCURRENCY", 4),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
