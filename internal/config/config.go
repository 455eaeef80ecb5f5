// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyBotToken       = "BOT_TOKEN"
	KeyYouTubeAPIKey  = "YOUTUBE_API_KEY"
	KeyGeniusAPIToken = "GENIUS_API_TOKEN"
	KeyAdminUserIDs   = "ADMIN_USER_IDS"
	KeyDatabasePath   = "DATABASE_PATH"
	KeyDownloadsDir   = "DOWNLOADS_DIR"
	KeyTempDir        = "TEMP_DIR"
	KeyYtdlpPath      = "YTDLP_PATH"
	KeyMaxFileMB      = "MAX_FILE_MB"
	KeyAppEnv         = "APP_ENV"
	KeyLogLevel       = "LOG_LEVEL"
	KeyHTTPPort       = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv       = EnvProduction
	DefaultLogLevel     = "info"
	DefaultHTTPPort     = 8080
	DefaultDatabasePath = "bot_database.db"
	DefaultDownloadsDir = "downloads"
	DefaultTempDir      = "temp"
	DefaultYtdlpPath    = "yt-dlp"

	// DefaultMaxFileMB stays just under the Telegram bot upload cap.
	DefaultMaxFileMB = 49
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must
// rely on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyBotToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyYouTubeAPIKey,
		Example:     "AIza...",
		Required:    true,
		Description: "YouTube Data API key; reserved for Data API lookups, search currently runs through yt-dlp.",
	},
	{
		Key:         KeyGeniusAPIToken,
		Example:     "genius-token",
		Required:    true,
		Description: "Genius API token used by the lyrics provider.",
	},
	{
		Key:         KeyAdminUserIDs,
		Example:     "7176592290,123456789",
		Required:    true,
		Description: "Comma-separated admin user ids; the first id is the immutable primary admin, the rest seed the secondary roster.",
	},
	{
		Key:         KeyDatabasePath,
		Example:     DefaultDatabasePath,
		Default:     DefaultDatabasePath,
		Description: "Path to the SQLite database file.",
	},
	{
		Key:         KeyDownloadsDir,
		Example:     DefaultDownloadsDir,
		Default:     DefaultDownloadsDir,
		Description: "Directory for completed downloads.",
	},
	{
		Key:         KeyTempDir,
		Example:     DefaultTempDir,
		Default:     DefaultTempDir,
		Description: "Scratch directory for in-flight downloads.",
	},
	{
		Key:         KeyYtdlpPath,
		Example:     DefaultYtdlpPath,
		Default:     DefaultYtdlpPath,
		Description: "Path to the yt-dlp executable.",
	},
	{
		Key:         KeyMaxFileMB,
		Example:     strconv.Itoa(DefaultMaxFileMB),
		Default:     strconv.Itoa(DefaultMaxFileMB),
		Description: "Maximum media file size in megabytes.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	BotToken       string
	YouTubeAPIKey  string
	GeniusAPIToken string

	// PrimaryAdminID is the first entry of ADMIN_USER_IDS. It is fixed for
	// the lifetime of the process and cannot be changed at runtime.
	PrimaryAdminID int64

	// SecondaryAdminIDs are the remaining entries of ADMIN_USER_IDS; they
	// seed the secondary roster on startup.
	SecondaryAdminIDs []int64

	DatabasePath string
	DownloadsDir string
	TempDir      string
	YtdlpPath    string
	MaxFileMB    int64

	AppEnv   string
	LogLevel string
	HTTPPort int
}

// MaxFileBytes converts the configured megabyte cap to bytes.
func (c Config) MaxFileBytes() int64 {
	return c.MaxFileMB * 1024 * 1024
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Load resolves configuration from the environment (with optional dotenv in
// development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		BotToken:       strings.TrimSpace(os.Getenv(KeyBotToken)),
		YouTubeAPIKey:  strings.TrimSpace(os.Getenv(KeyYouTubeAPIKey)),
		GeniusAPIToken: strings.TrimSpace(os.Getenv(KeyGeniusAPIToken)),
		DatabasePath:   firstNonEmpty(strings.TrimSpace(os.Getenv(KeyDatabasePath)), DefaultDatabasePath),
		DownloadsDir:   firstNonEmpty(strings.TrimSpace(os.Getenv(KeyDownloadsDir)), DefaultDownloadsDir),
		TempDir:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyTempDir)), DefaultTempDir),
		YtdlpPath:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyYtdlpPath)), DefaultYtdlpPath),
		MaxFileMB:      DefaultMaxFileMB,
		LogLevel:       firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:       DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.BotToken == "" {
		missing = append(missing, KeyBotToken)
	}
	if cfg.YouTubeAPIKey == "" {
		missing = append(missing, KeyYouTubeAPIKey)
	}
	if cfg.GeniusAPIToken == "" {
		missing = append(missing, KeyGeniusAPIToken)
	}

	adminRaw := strings.TrimSpace(os.Getenv(KeyAdminUserIDs))
	if adminRaw == "" {
		missing = append(missing, KeyAdminUserIDs)
	} else {
		primary, secondaries, parseErr := parseAdminIDs(adminRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAdminUserIDs, parseErr)
		}
		cfg.PrimaryAdminID = primary
		cfg.SecondaryAdminIDs = secondaries
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	maxFileRaw := strings.TrimSpace(os.Getenv(KeyMaxFileMB))
	if maxFileRaw != "" {
		maxFile, parseErr := strconv.ParseInt(maxFileRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyMaxFileMB, parseErr)
		}
		if maxFile <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyMaxFileMB)
		}
		cfg.MaxFileMB = maxFile
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// parseAdminIDs splits the comma-separated admin list. The first id is the
// primary admin; later duplicates are ignored.
func parseAdminIDs(raw string) (int64, []int64, error) {
	parts := strings.Split(raw, ",")

	var primary int64
	secondaries := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("parse admin id %q: %w", part, err)
		}
		if id == 0 {
			return 0, nil, errors.New("admin id must be non-zero")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if primary == 0 {
			primary = id
			continue
		}
		secondaries = append(secondaries, id)
	}

	if primary == 0 {
		return 0, nil, errors.New("at least one admin id is required")
	}

	return primary, secondaries, nil
}

// FormatRedacted renders a config summary safe for logs; secrets keep a
// short prefix so operators can tell which credential is loaded.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"bot_token: " + maskSecret(cfg.BotToken),
		"youtube_api_key: " + maskSecret(cfg.YouTubeAPIKey),
		"genius_api_token: " + maskSecret(cfg.GeniusAPIToken),
		fmt.Sprintf("primary_admin_id: %d", cfg.PrimaryAdminID),
		fmt.Sprintf("secondary_admin_ids: %d configured", len(cfg.SecondaryAdminIDs)),
		"database_path: " + cfg.DatabasePath,
		"downloads_dir: " + cfg.DownloadsDir,
		"temp_dir: " + cfg.TempDir,
		"ytdlp_path: " + cfg.YtdlpPath,
		fmt.Sprintf("max_file_mb: %d", cfg.MaxFileMB),
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		fmt.Sprintf("http_port: %d", cfg.HTTPPort),
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return "redacted"
	}

	return value[:4] + "...redacted"
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
