package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DropPort      int
	HTTPPort      int
	SpoolDir      string
	JournalPath   string
	AuthSecret    string
	UsersPath     string
	LoginMaxFails int
	LoginLockout  time.Duration
}

func Load() Config {
	return Config{
		DropPort:      getEnvInt("DROP_PORT", 4025),
		HTTPPort:      getEnvInt("HTTP_PORT", 4080),
		SpoolDir:      getEnvString("SPOOL_DIR", "spool"),
		JournalPath:   getEnvString("JOURNAL_PATH", ""),
		AuthSecret:    getEnvString("AUTH_SECRET", ""),
		UsersPath:     getEnvString("USERS_PATH", "users.txt"),
		LoginMaxFails: getEnvInt("LOGIN_MAX_FAILS", 3),
		LoginLockout:  getEnvDuration("LOGIN_LOCKOUT", time.Minute),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
