package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"

	EnvMpesaBaseURL        = "MPESA_BASE_URL"
	EnvMpesaConsumerKey    = "MPESA_CONSUMER_KEY"
	EnvMpesaConsumerSecret = "MPESA_CONSUMER_SECRET"
	EnvMpesaShortcode      = "MPESA_SHORTCODE"
	EnvMpesaPasskey        = "MPESA_PASSKEY"
	EnvMpesaCallbackURL    = "MPESA_CALLBACK_URL"

	EnvMailUsername       = "MAIL_USERNAME"
	EnvMailPassword       = "MAIL_PASSWORD"
	EnvMailProvider       = "MAIL_PROVIDER"
	EnvMailSendGridAPIKey = "SENDGRID_API_KEY"

	EnvLogLevel = "LOG_LEVEL"
	EnvPort     = "PORT"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// readConfigFile unmarshals the YAML config into out. A missing file leaves out untouched.
func readConfigFile(configPath string, out any) error {
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, out); errUnmarshal != nil {
		return fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return nil
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// DefaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const DefaultJWTExpiry = 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: DefaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = DefaultJWTExpiry
	}
	return result, nil
}

// MpesaConfig holds Daraja STK push credentials and endpoints.
type MpesaConfig struct {
	BaseURL          string        `yaml:"base-url"`
	ConsumerKey      string        `yaml:"consumer-key"`
	ConsumerSecret   string        `yaml:"consumer-secret"`
	Shortcode        string        `yaml:"shortcode"`
	Passkey          string        `yaml:"passkey"`
	CallbackURL      string        `yaml:"callback-url"`
	AccountReference string        `yaml:"account-reference"`
	Description      string        `yaml:"description"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Mpesa defaults.
const (
	DefaultMpesaBaseURL          = "https://sandbox.safaricom.co.ke"
	DefaultMpesaAccountReference = "FitFlow Subscription"
	DefaultMpesaDescription      = "Subscription Payment"
	DefaultMpesaTimeout          = 30 * time.Second
)

// LoadMpesaConfig loads gateway settings, letting MPESA_* env vars win over the file.
func LoadMpesaConfig(configPath string) (MpesaConfig, error) {
	// fileConfig maps the YAML fields needed for gateway settings.
	type fileConfig struct {
		Mpesa MpesaConfig `yaml:"mpesa"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return MpesaConfig{}, errRead
	}
	result := cfg.Mpesa

	overrideString(&result.BaseURL, EnvMpesaBaseURL)
	overrideString(&result.ConsumerKey, EnvMpesaConsumerKey)
	overrideString(&result.ConsumerSecret, EnvMpesaConsumerSecret)
	overrideString(&result.Shortcode, EnvMpesaShortcode)
	overrideString(&result.Passkey, EnvMpesaPasskey)
	overrideString(&result.CallbackURL, EnvMpesaCallbackURL)

	if strings.TrimSpace(result.BaseURL) == "" {
		result.BaseURL = DefaultMpesaBaseURL
	}
	result.BaseURL = strings.TrimRight(strings.TrimSpace(result.BaseURL), "/")
	if strings.TrimSpace(result.AccountReference) == "" {
		result.AccountReference = DefaultMpesaAccountReference
	}
	if strings.TrimSpace(result.Description) == "" {
		result.Description = DefaultMpesaDescription
	}
	if result.Timeout <= 0 {
		result.Timeout = DefaultMpesaTimeout
	}
	return result, nil
}

// Enabled reports whether every credential needed for STK push is present.
func (c MpesaConfig) Enabled() bool {
	for _, v := range []string{c.ConsumerKey, c.ConsumerSecret, c.Shortcode, c.Passkey, c.CallbackURL} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Mail providers.
const (
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
)

// MailConfig holds settings for outbound notifications.
type MailConfig struct {
	Provider string `yaml:"provider"` // smtp (default) or sendgrid.

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from-name"`

	SendGridAPIKey  string `yaml:"sendgrid-api-key"`
	SendGridBaseURL string `yaml:"sendgrid-base-url"`
}

// Enabled reports whether the selected provider has credentials.
func (c MailConfig) Enabled() bool {
	if c.Provider == MailProviderSendGrid {
		return strings.TrimSpace(c.SendGridAPIKey) != "" && strings.TrimSpace(c.From) != ""
	}
	return strings.TrimSpace(c.Username) != "" && strings.TrimSpace(c.Password) != ""
}

// LoadMailConfig loads mail settings; MAIL_PROVIDER, MAIL_USERNAME, MAIL_PASSWORD and
// SENDGRID_API_KEY override the file.
func LoadMailConfig(configPath string) (MailConfig, error) {
	// fileConfig maps the YAML fields needed for mail settings.
	type fileConfig struct {
		Mail MailConfig `yaml:"mail"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return MailConfig{}, errRead
	}
	result := cfg.Mail

	overrideString(&result.Provider, EnvMailProvider)
	overrideString(&result.Username, EnvMailUsername)
	overrideString(&result.Password, EnvMailPassword)
	overrideString(&result.SendGridAPIKey, EnvMailSendGridAPIKey)

	result.Provider = strings.ToLower(strings.TrimSpace(result.Provider))
	switch result.Provider {
	case "":
		result.Provider = MailProviderSMTP
	case MailProviderSMTP, MailProviderSendGrid:
	default:
		return MailConfig{}, fmt.Errorf("invalid mail provider %q (want %s or %s)", result.Provider, MailProviderSMTP, MailProviderSendGrid)
	}

	if strings.TrimSpace(result.Host) == "" {
		result.Host = "smtp.gmail.com"
	}
	if result.Port <= 0 {
		result.Port = 587
	}
	if strings.TrimSpace(result.From) == "" {
		result.From = result.Username
	}
	if strings.TrimSpace(result.FromName) == "" {
		result.FromName = "FitFlow"
	}
	return result, nil
}

// SchedulerConfig holds cron specs for the periodic jobs.
type SchedulerConfig struct {
	Timezone      string `yaml:"timezone"`
	ExpirySweep   string `yaml:"expiry-sweep"`
	MonthlyReport string `yaml:"monthly-report"`
}

// Scheduler defaults: daily at midnight, first of the month at 06:00.
const (
	DefaultExpirySweepSpec   = "0 0 * * *"
	DefaultMonthlyReportSpec = "0 6 1 * *"
)

// LoadSchedulerConfig loads cron specs for periodic jobs.
func LoadSchedulerConfig(configPath string) (SchedulerConfig, error) {
	// fileConfig maps the YAML fields needed for scheduler settings.
	type fileConfig struct {
		Scheduler SchedulerConfig `yaml:"scheduler"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return SchedulerConfig{}, errRead
	}
	result := cfg.Scheduler
	if strings.TrimSpace(result.Timezone) == "" {
		result.Timezone = "UTC"
	}
	if strings.TrimSpace(result.ExpirySweep) == "" {
		result.ExpirySweep = DefaultExpirySweepSpec
	}
	if strings.TrimSpace(result.MonthlyReport) == "" {
		result.MonthlyReport = DefaultMonthlyReportSpec
	}
	return result, nil
}

// RateLimitConfig controls throttling of mobile-money initiations.
type RateLimitConfig struct {
	Initiations int           `yaml:"initiations"`
	Window      time.Duration `yaml:"window"`
	Redis       struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

// Rate limit defaults.
const (
	DefaultInitiationLimit  = 3
	DefaultInitiationWindow = time.Minute
	DefaultRedisPrefix      = "fitflow:rl"
)

// LoadRateLimitConfig loads initiation throttling settings.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	// fileConfig maps the YAML fields needed for rate limit settings.
	type fileConfig struct {
		RateLimit RateLimitConfig `yaml:"rate-limit"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return RateLimitConfig{}, errRead
	}
	result := cfg.RateLimit
	if result.Initiations < 0 {
		result.Initiations = 0
	}
	if result.Initiations == 0 {
		result.Initiations = DefaultInitiationLimit
	}
	if result.Window <= 0 {
		result.Window = DefaultInitiationWindow
	}
	result.Redis.Addr = strings.TrimSpace(result.Redis.Addr)
	result.Redis.Password = strings.TrimSpace(result.Redis.Password)
	if strings.TrimSpace(result.Redis.Prefix) == "" {
		result.Redis.Prefix = DefaultRedisPrefix
	}
	if result.Redis.DB < 0 {
		result.Redis.DB = 0
	}
	return result, nil
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LoadLoggingConfig loads log settings; LOG_LEVEL overrides the file.
func LoadLoggingConfig(configPath string) (LoggingConfig, error) {
	// fileConfig maps the YAML fields needed for logging settings.
	type fileConfig struct {
		Logging LoggingConfig `yaml:"logging"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return LoggingConfig{}, errRead
	}
	result := cfg.Logging
	overrideString(&result.Level, EnvLogLevel)
	if strings.TrimSpace(result.Level) == "" {
		result.Level = "info"
	}
	return result, nil
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// LoadServerConfig loads listener settings; PORT overrides the file and defaultPort fills
// an unset port.
func LoadServerConfig(configPath string, defaultPort int) (ServerConfig, error) {
	// fileConfig maps the YAML fields needed for listener settings.
	type fileConfig struct {
		Server ServerConfig `yaml:"server"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return ServerConfig{}, errRead
	}
	result := cfg.Server
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, errPort := ParsePort(raw)
		if errPort != nil {
			return ServerConfig{}, errPort
		}
		result.Port = port
	}
	if result.Port <= 0 {
		result.Port = defaultPort
	}
	if result.Port <= 0 || result.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid port: %d", result.Port)
	}
	if result.ShutdownTimeout <= 0 {
		result.ShutdownTimeout = DefaultShutdownTimeout
	}
	return result, nil
}

// overrideString replaces *dst with the trimmed env value when it is set.
func overrideString(dst *string, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = v
	}
}

// ParsePort validates a TCP port string.
func ParsePort(raw string) (int, error) {
	port, errParse := strconv.Atoi(strings.TrimSpace(raw))
	if errParse != nil {
		return 0, fmt.Errorf("invalid port %q: %w", raw, errParse)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port: %d", port)
	}
	return port, nil
}
