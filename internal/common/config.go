package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Watcher     WatcherConfig `toml:"watcher"`
	Gemini      GeminiConfig  `toml:"gemini"`
	YouTube     YouTubeConfig `toml:"youtube"`
	OAuth       OAuthConfig   `toml:"oauth"`
	Email       EmailConfig   `toml:"email"`
	Scheduler   SchedConfig   `toml:"scheduler"`
	Logging     LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	// Type selects the object store backend: "local" or "gcs"
	Type   string       `toml:"type" validate:"oneof=local gcs"`
	Badger BadgerConfig `toml:"badger"`
	Local  LocalConfig  `toml:"local"`
	GCS    GCSConfig    `toml:"gcs"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// LocalConfig configures the filesystem-backed object store
type LocalConfig struct {
	BasePath  string `toml:"base_path"`  // Root directory for stored objects
	PublicURL string `toml:"public_url"` // Base URL prepended to storage keys
}

// GCSConfig configures the Google Cloud Storage backend
type GCSConfig struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`           // Key prefix inside the bucket
	CredentialsFile string `toml:"credentials_file"` // Service account JSON; empty uses ADC
}

// WatcherConfig configures the inbox folder watcher
type WatcherConfig struct {
	Dir           string   `toml:"dir"`             // Directory watched for new video files
	SettleDelay   string   `toml:"settle_delay"`    // Quiescence window before a new file is emitted (e.g. "3s")
	Extensions    []string `toml:"extensions"`      // File extensions treated as videos (default: .mp4 .mov .mkv .webm)
	KnownFilesKey string   `toml:"known_files_key"` // KV key holding the already-processed filename list
}

type GeminiConfig struct {
	APIKey     string `toml:"api_key"`
	ChatModel  string `toml:"chat_model"`  // Text model for prompts/titles (default: gemini-2.0-flash)
	ImageModel string `toml:"image_model"` // Image model for thumbnails (default: gemini-2.0-flash-exp-image-generation)
	Timeout    string `toml:"timeout"`     // Per-request timeout (default: "60s")
}

type YouTubeConfig struct {
	Privacy           string   `toml:"privacy" validate:"omitempty,oneof=public unlisted private"`
	CategoryID        string   `toml:"category_id"`
	AutoGenerateTitle bool     `toml:"auto_generate_title"` // Seed value for metadata.autoGenerateTitle
	DefaultTitle      string   `toml:"default_title"`       // Used when auto_generate_title is false
	DefaultTags       []string `toml:"default_tags"`
}

type OAuthConfig struct {
	ClientID      string   `toml:"client_id"`
	ClientSecret  string   `toml:"client_secret"`
	RedirectURL   string   `toml:"redirect_url"`
	AllowedOrigin string   `toml:"allowed_origin"` // Target origin for the callback postMessage page
	Scopes        []string `toml:"scopes"`
}

type EmailConfig struct {
	NotifyTo string `toml:"notify_to"` // Recipient of upload confirmations
}

type SchedConfig struct {
	WatcherEnsure   string `toml:"watcher_ensure"`    // Cron spec for the watcher liveness job
	StaleTraceSweep string `toml:"stale_trace_sweep"` // Cron spec for the stale trace sweep
	StaleAfter      string `toml:"stale_after"`       // Age after which a non-terminal trace is failed (e.g. "6h")
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig returns a config populated with defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type: "local",
			Badger: BadgerConfig{
				Path: "./data/tubecast",
			},
			Local: LocalConfig{
				BasePath:  "./data/objects",
				PublicURL: "http://localhost:8085/objects",
			},
		},
		Watcher: WatcherConfig{
			Dir:           "./inbox",
			SettleDelay:   "3s",
			Extensions:    []string{".mp4", ".mov", ".mkv", ".webm"},
			KnownFilesKey: "watcher_known_files",
		},
		Gemini: GeminiConfig{
			ChatModel:  "gemini-2.0-flash",
			ImageModel: "gemini-2.0-flash-exp-image-generation",
			Timeout:    "60s",
		},
		YouTube: YouTubeConfig{
			Privacy:           "private",
			CategoryID:        "22",
			AutoGenerateTitle: true,
		},
		OAuth: OAuthConfig{
			RedirectURL:   "http://localhost:8085/auth/google/callback",
			AllowedOrigin: "http://localhost:8085",
			Scopes: []string{
				"https://www.googleapis.com/auth/youtube.upload",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		Scheduler: SchedConfig{
			WatcherEnsure:   "*/1 * * * *",
			StaleTraceSweep: "0 * * * *",
			StaleAfter:      "6h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for structural errors
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := time.ParseDuration(c.Watcher.SettleDelay); err != nil {
		return fmt.Errorf("invalid watcher.settle_delay %q: %w", c.Watcher.SettleDelay, err)
	}
	if _, err := time.ParseDuration(c.Scheduler.StaleAfter); err != nil {
		return fmt.Errorf("invalid scheduler.stale_after %q: %w", c.Scheduler.StaleAfter, err)
	}
	if c.Storage.Type == "gcs" && c.Storage.GCS.Bucket == "" {
		return fmt.Errorf("storage.gcs.bucket is required when storage.type is gcs")
	}

	return nil
}

// SettleDelay returns the parsed watcher quiescence window
func (c *Config) SettleDelay() time.Duration {
	d, err := time.ParseDuration(c.Watcher.SettleDelay)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// StaleAfter returns the parsed stale-trace threshold
func (c *Config) StaleAfter() time.Duration {
	d, err := time.ParseDuration(c.Scheduler.StaleAfter)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TUBECAST_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("TUBECAST_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TUBECAST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if storageType := os.Getenv("TUBECAST_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("TUBECAST_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if basePath := os.Getenv("TUBECAST_LOCAL_BASE_PATH"); basePath != "" {
		config.Storage.Local.BasePath = basePath
	}
	if publicURL := os.Getenv("TUBECAST_LOCAL_PUBLIC_URL"); publicURL != "" {
		config.Storage.Local.PublicURL = publicURL
	}
	if bucket := os.Getenv("TUBECAST_GCS_BUCKET"); bucket != "" {
		config.Storage.GCS.Bucket = bucket
	}

	if dir := os.Getenv("TUBECAST_WATCHER_DIR"); dir != "" {
		config.Watcher.Dir = dir
	}

	if apiKey := os.Getenv("TUBECAST_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("TUBECAST_GEMINI_CHAT_MODEL"); model != "" {
		config.Gemini.ChatModel = model
	}

	if clientID := os.Getenv("TUBECAST_OAUTH_CLIENT_ID"); clientID != "" {
		config.OAuth.ClientID = clientID
	}
	if clientSecret := os.Getenv("TUBECAST_OAUTH_CLIENT_SECRET"); clientSecret != "" {
		config.OAuth.ClientSecret = clientSecret
	}
	if redirectURL := os.Getenv("TUBECAST_OAUTH_REDIRECT_URL"); redirectURL != "" {
		config.OAuth.RedirectURL = redirectURL
	}

	if notifyTo := os.Getenv("TUBECAST_EMAIL_NOTIFY_TO"); notifyTo != "" {
		config.Email.NotifyTo = notifyTo
	}

	if level := os.Getenv("TUBECAST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TUBECAST_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
