package support

import (
	"os"
	"path/filepath"
	"strconv"
)

func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// DataDir returns the directory holding settings, the database and the log file.
// PROXYFINDER_HOME wins over the platform config directory.
func DataDir() string {
	if dir := GetEnv("PROXYFINDER_HOME", ""); dir != "" {
		return dir
	}

	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "data"
		}
		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, "proxyfinder")
}

func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
