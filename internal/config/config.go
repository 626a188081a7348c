package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "DELPHI"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabaseDriver   = DriverSQLite
	defaultDatabaseDSN      = "delphi-council.db"
	defaultLogLevel         = "info"
	defaultCookieName       = "dcis_session"
	defaultSessionTTL       = 8 * 60
	defaultBaseURL          = "http://localhost:8080"
	defaultLocale           = "en"
	defaultPageSize         = 25
	defaultMailFromName     = "Registration Clerk"
	defaultMailFromAddress  = "clerk@delphi-council.org"
	defaultTokenTTLHours    = 72
	defaultCleanupSchedule  = "0 3 * * *"
	defaultHeartbeatSeconds = 30
	defaultApplicationName  = "delphi-council"
	defaultApplicationBuild = "dev"
	apiVersion              = "v1"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the information system.
type AppConfig struct {
	HTTPAddress          string
	AllowedOrigins       []string
	SecureCookies        bool
	HeartbeatInterval    time.Duration
	DatabaseDriver       string
	DatabaseDSN          string
	LogLevel             string
	SessionSigningSecret string
	SessionCookieName    string
	SessionTTL           time.Duration
	BaseURL              string
	DefaultLocale        string
	PageSize             int
	Mail                 MailConfig
	TokenTTL             time.Duration
	CleanupSchedule      string
	OTLPEndpoint         string
	Version              VersionInfo
}

// MailConfig holds the outgoing mail settings.
type MailConfig struct {
	FromName       string
	FromAddress    string
	SendGridAPIKey string
}

// VersionInfo is reported by the meta endpoints.
type VersionInfo struct {
	Application string
	API         string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.secure_cookies", false)
	configViper.SetDefault("events.heartbeat_seconds", defaultHeartbeatSeconds)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTL)
	configViper.SetDefault("app.base_url", defaultBaseURL)
	configViper.SetDefault("app.default_locale", defaultLocale)
	configViper.SetDefault("app.page_size", defaultPageSize)
	configViper.SetDefault("app.version", defaultApplicationBuild)
	configViper.SetDefault("mail.from_name", defaultMailFromName)
	configViper.SetDefault("mail.from_address", defaultMailFromAddress)
	configViper.SetDefault("tokens.ttl_hours", defaultTokenTTLHours)
	configViper.SetDefault("tokens.cleanup_schedule", defaultCleanupSchedule)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		AllowedOrigins:       configViper.GetStringSlice("http.allowed_origins"),
		SecureCookies:        configViper.GetBool("http.secure_cookies"),
		HeartbeatInterval:    time.Duration(configViper.GetInt("events.heartbeat_seconds")) * time.Second,
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:          configViper.GetString("database.dsn"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionTTL:           time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		BaseURL:              strings.TrimRight(configViper.GetString("app.base_url"), "/"),
		DefaultLocale:        configViper.GetString("app.default_locale"),
		PageSize:             configViper.GetInt("app.page_size"),
		Mail: MailConfig{
			FromName:       configViper.GetString("mail.from_name"),
			FromAddress:    configViper.GetString("mail.from_address"),
			SendGridAPIKey: configViper.GetString("mail.sendgrid_api_key"),
		},
		TokenTTL:        time.Duration(configViper.GetInt("tokens.ttl_hours")) * time.Hour,
		CleanupSchedule: configViper.GetString("tokens.cleanup_schedule"),
		OTLPEndpoint:    configViper.GetString("telemetry.otlp_endpoint"),
		Version: VersionInfo{
			Application: configViper.GetString("app.version"),
			API:         apiVersion,
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// ApplicationName is used for the tracer resource and token issuer.
func (c AppConfig) ApplicationName() string {
	return defaultApplicationName
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("app.page_size must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("events.heartbeat_seconds must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("tokens.ttl_hours must be positive")
	}
	if strings.TrimSpace(c.Mail.FromAddress) == "" {
		return fmt.Errorf("mail.from_address is required")
	}
	return nil
}
