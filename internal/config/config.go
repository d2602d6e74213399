package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultBackendURL is the assistant backend used when nothing is configured.
const DefaultBackendURL = "http://localhost:5000"

// Config aggregates the process configuration.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Log     LogConfig
	CORS    CORSConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Backend: backend,
		Log:     logCfg,
		CORS:    loadCORSConfig(),
	}, nil
}

// ServerConfig describes the web front end listener.
type ServerConfig struct {
	Addr         string
	SecureCookie bool
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	secure, err := parseBoolEnv("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return ServerConfig{}, err
	}

	if strings.Contains(port, ":") {
		// Accept ":3000" or "127.0.0.1:3000" as-is.
		return ServerConfig{Addr: port, SecureCookie: secure}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, SecureCookie: secure}, nil
}

// BackendConfig locates the assistant API.
type BackendConfig struct {
	BaseURL string
}

func loadBackendConfig() (BackendConfig, error) {
	// NEXT_PUBLIC_API_URL is honoured so existing frontend .env files keep working.
	raw := getEnvOrDefault("NEXT_PUBLIC_API_URL", getEnvOrDefault("API_BASE_URL", DefaultBackendURL))

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return BackendConfig{}, fmt.Errorf("invalid backend URL %q", raw)
	}
	return BackendConfig{BaseURL: strings.TrimRight(raw, "/")}, nil
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
	// Output is a file path; empty means stderr.
	Output string
}

func loadLogConfig() (LogConfig, error) {
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %q", level)
	}

	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
	if format != "json" && format != "console" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value: %q", format)
	}

	return LogConfig{Level: level, Format: format, Output: getEnvOrDefault("LOG_FILE", "")}, nil
}

// CORSConfig lists browser origins allowed to call the JSON API.
type CORSConfig struct {
	AllowedOrigins []string
}

func loadCORSConfig() CORSConfig {
	raw := getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return CORSConfig{AllowedOrigins: origins}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
