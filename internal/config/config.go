package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the web app and the services it talks to.
// It is built once at process start and handed to every component that needs it.
type Config struct {
	ListenAddr      string
	PublicBaseURL   string
	LogLevel        string
	MySQLDSN        string
	SessionSecret   string
	SessionTTL      time.Duration
	CookieSecure    bool
	FreeCredits     int
	UnlimitedUsers  []string
	UnlimitedEmails []string

	SupabaseURL      string
	SupabaseAnonKey  string
	SupabaseProvider string

	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModelVersion string
	ModelTimeout          time.Duration
	ModelPollInterval     time.Duration

	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    int64
	NotifyTimeout     time.Duration

	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string

	GenerateRatePerMinute int
	GenerateBurst         int
	MaxUploadBytes        int64

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// Load reads configuration from environment variables, applying sane defaults.
// Only the database DSN and the session secret are mandatory; every other
// integration degrades when its credentials are absent.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultReplicateBaseURL = "https://api.replicate.com"

	cfg := Config{
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SessionTTL:            time.Hour * time.Duration(getInt("SESSION_TTL_HOURS", 24*7)),
		CookieSecure:          getBool("COOKIE_SECURE", false),
		FreeCredits:           getInt("FREE_CREDITS", 3),
		UnlimitedUsers:        getList("UNLIMITED_USER_IDS"),
		UnlimitedEmails:       lower(getList("UNLIMITED_EMAILS")),
		SupabaseURL:           strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseAnonKey:       os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseProvider:      getEnv("SUPABASE_OAUTH_PROVIDER", "google"),
		ReplicateAPIToken:     os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:      normalizeBaseURL(getEnv("REPLICATE_BASE_URL", defaultReplicateBaseURL), defaultReplicateBaseURL),
		ReplicateModelVersion: getEnv("REPLICATE_MODEL_VERSION", "adirik/interior-design:76604baddc85b1b4616e1c6475eca080da339c8875bd4996705440484a6eac38"),
		ModelTimeout:          time.Second * time.Duration(getInt("MODEL_TIMEOUT_SECONDS", 120)),
		ModelPollInterval:     time.Millisecond * time.Duration(getInt("MODEL_POLL_INTERVAL_MS", 1500)),
		DiscordWebhookURL:     strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:        getInt64("TELEGRAM_CHAT_ID", 0),
		NotifyTimeout:         time.Second * time.Duration(getInt("NOTIFY_TIMEOUT_SECONDS", 10)),
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash:     os.Getenv("ADMIN_PASSWORD_HASH"),
		GenerateRatePerMinute: getInt("GENERATE_RATE_PER_MINUTE", 6),
		GenerateBurst:         getInt("GENERATE_BURST", 2),
		MaxUploadBytes:        getInt64("MAX_UPLOAD_BYTES", 10<<20),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Region:              os.Getenv("S3_REGION"),
		S3AccessKey:           os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("S3_SECRET_KEY"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:       os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:        getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:              getEnv("S3_PREFIX", "rooms"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing mandatory settings.
func (c Config) Validate() error {
	var missing []string
	if c.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.FreeCredits < 0 {
		return fmt.Errorf("FREE_CREDITS must not be negative")
	}
	return nil
}

// SupabaseConfigured reports whether the hosted auth provider can be used.
func (c Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// ModelConfigured reports whether the image model API token is present.
func (c Config) ModelConfigured() bool {
	return c.ReplicateAPIToken != ""
}

// StorageConfigured reports whether object storage credentials are complete.
func (c Config) StorageConfigured() bool {
	return c.S3Bucket != "" && c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3PublicBaseURL != ""
}

// TelegramConfigured reports whether the Telegram ops sink can be used.
func (c Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// IsUnlimited reports whether the account is on the static unlimited allowlist.
func (c Config) IsUnlimited(userID, email string) bool {
	for _, id := range c.UnlimitedUsers {
		if id == userID {
			return true
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.UnlimitedEmails {
		if e == email {
			return true
		}
	}
	return false
}

// normalizeBaseURL makes sure the base URL carries a scheme and no trailing slash.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lower(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToLower(v)
	}
	return values
}

// loadEnvFile loads the first .env file found. Deployments that inject the
// environment directly have none, which is fine.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
