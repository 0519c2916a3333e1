package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const defaultMaxUpload = 10 << 20

// Config holds the runtime settings. Command line flags override it.
type Config struct {
	Addr       string
	RedisAddr  string
	BadgerPath string
	UploadDir  string
	MaxUpload  int64
	JWTSecret  string
	Env        string
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Error loading .env file:", err)
	}

	cfg := Config{
		Addr:       getEnv("INKPRESS_ADDR", ":8080"),
		RedisAddr:  getEnv("INKPRESS_REDIS", "localhost:6379"),
		BadgerPath: getEnv("INKPRESS_BADGER", "./badger-data"),
		UploadDir:  getEnv("INKPRESS_UPLOAD_DIR", "./public/uploads"),
		MaxUpload:  defaultMaxUpload,
		JWTSecret:  os.Getenv("INKPRESS_JWT_SECRET"),
		Env:        getEnv("INKPRESS_ENV", "development"),
	}

	if v := os.Getenv("INKPRESS_MAX_UPLOAD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUpload = n
		}
	}
	return cfg
}

// Production reports whether production logging should be used.
func (c Config) Production() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
