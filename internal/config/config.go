package config

import (
	"os"
	"path/filepath"
	"sync"

	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/validation"

	"github.com/joho/godotenv"
)

var once sync.Once

// LoadEnv loads a .env file from the working directory or its parent, once per process.
// It returns the file that was loaded, or "" when none was found.
func LoadEnv() string {
	var loaded string
	once.Do(func() {
		loaded = loadDotEnv(".env", filepath.Join("..", ".env"))
	})
	return loaded
}

func loadDotEnv(candidates ...string) string {
	log := logging.GetLogger()
	for _, envFile := range candidates {
		info, err := os.Stat(envFile)
		if err != nil {
			continue
		}
		if err := validation.IsValidFilePermissions(info.Mode()); err != nil {
			log.Warnf("%s holds API keys: %v", envFile, err)
		}
		if err := godotenv.Load(envFile); err != nil {
			log.Warnf("Error loading %s: %v", envFile, err)
			return ""
		}
		log.Debugf("Loaded environment variables from %s", envFile)
		return envFile
	}
	return ""
}

// GetEnv retrieves an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}
