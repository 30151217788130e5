// Package config loads the portal's settings from the environment.
//
// Values come from real environment variables first; a ".env" or
// ".env.local" file in the working directory fills in anything unset, which
// is convenient for local development. Missing values fall back to defaults
// that work against a remote API on localhost.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server needs.
type Config struct {
	Port           int
	APIBaseURL     string
	DBPath         string
	StaticDir      string
	RequestTimeout time.Duration
	SessionTTL     time.Duration
	CookieSecure   bool
	LogLevel       slog.Level
}

// Load reads the environment. Missing .env files are not an error.
func Load() (Config, error) {
	_ = godotenv.Load(".env", ".env.local")
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, so tests can supply a map.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	var (
		c   Config
		err error
	)

	if c.Port, err = strconv.Atoi(get("PORT", "8080")); err != nil || c.Port <= 0 || c.Port > 65535 {
		return Config{}, fmt.Errorf("config: invalid PORT %q", getenv("PORT"))
	}

	c.APIBaseURL = strings.TrimRight(get("API_BASE_URL", "http://localhost:5000/api"), "/")
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, fmt.Errorf("config: invalid API_BASE_URL %q", c.APIBaseURL)
	}

	c.DBPath = get("DB_PATH", "data/portal.db")
	c.StaticDir = get("STATIC_DIR", "web/static")

	if c.RequestTimeout, err = time.ParseDuration(get("REQUEST_TIMEOUT", "10s")); err != nil || c.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("config: invalid REQUEST_TIMEOUT %q", getenv("REQUEST_TIMEOUT"))
	}
	if c.SessionTTL, err = time.ParseDuration(get("SESSION_TTL", "168h")); err != nil || c.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("config: invalid SESSION_TTL %q", getenv("SESSION_TTL"))
	}
	if c.CookieSecure, err = strconv.ParseBool(get("COOKIE_SECURE", "false")); err != nil {
		return Config{}, fmt.Errorf("config: invalid COOKIE_SECURE %q", getenv("COOKIE_SECURE"))
	}
	if err := c.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q", getenv("LOG_LEVEL"))
	}

	return c, nil
}
