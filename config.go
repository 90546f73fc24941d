package main

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	BENCHSUITE_ENV_FILE            = os.Getenv("BENCHSUITE_ENV_FILE")
	BENCHSUITE_BIN_DIR             = StringEnv("BENCHSUITE_BIN_DIR", "bin")
	BENCHSUITE_DB_URL              = StringEnv("BENCHSUITE_DB_URL", "")
	BENCHSUITE_DB_NAME             = StringEnv("BENCHSUITE_DB_NAME", "")
	BENCHSUITE_CAPTURE_STDERR      = BoolEnv("BENCHSUITE_CAPTURE_STDERR", true)
	BENCHSUITE_CONTINUE_ON_FAILURE = BoolEnv("BENCHSUITE_CONTINUE_ON_FAILURE", false)
	BENCHSUITE_TIMEOUT             = DurationEnv("BENCHSUITE_TIMEOUT", 0)
	TURSO_ORG_NAME                 = StringEnv("TURSO_ORG_NAME", "")
	TURSO_GROUP_NAME               = StringEnv("TURSO_GROUP_NAME", "default")
	TURSO_API_TOKEN                = StringEnv("TURSO_API_TOKEN", "")
	TURSO_AUTH_TOKEN               = StringEnv("TURSO_AUTH_TOKEN", "")
)

var dotenvOnce sync.Once

// loadDotEnv populates the environment from the .env file once; variables
// already present in the environment win.
func loadDotEnv() {
	filename := BENCHSUITE_ENV_FILE
	if filename == "" {
		filename = ".env"
	}
	err := godotenv.Load(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load env file %v: %v", filename, err)
	}
}

func lookupEnv(key string) (string, bool) {
	dotenvOnce.Do(loadDotEnv)
	return os.LookupEnv(key)
}

func StringEnv(key string, def string) string {
	value, ok := lookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func IntEnv(key string, def int) int {
	value, ok := lookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func BoolEnv(key string, def bool) bool {
	value, ok := lookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

// DurationEnv accepts both Go durations ("90s") and plain seconds ("90").
func DurationEnv(key string, def time.Duration) time.Duration {
	value, ok := lookupEnv(key)
	if !ok {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
