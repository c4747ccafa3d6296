package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "HOMEVIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "HOMEVIA_APP_ENV"
	EnvPort         = "HOMEVIA_APP_PORT"
	EnvDBDSN        = "HOMEVIA_DB_DSN"
	EnvDBHost       = "HOMEVIA_DB_HOST"
	EnvDBUser       = "HOMEVIA_DB_USER"
	EnvDBName       = "HOMEVIA_DB_NAME"
	EnvRedisURL     = "HOMEVIA_REDIS_URL"
	EnvJWTSecret    = "HOMEVIA_JWT_SECRET"
	EnvJWTIssuer    = "HOMEVIA_JWT_ISSUER"
	EnvGCPProjectID = "HOMEVIA_GCP_PROJECT_ID"
	EnvDocumentsURL = "HOMEVIA_DOCUMENTS_BASE_URL"
	EnvPubSubTopic  = "HOMEVIA_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubSub    = "HOMEVIA_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Commission   CommissionConfig
	Visits       VisitsConfig
	Scheduler    SchedulerConfig
	Documents    DocumentsConfig
	SMTP         SMTPConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Visits.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HOMEVIA_APP_ENV" required:"true"`
	Port         string `envconfig:"HOMEVIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HOMEVIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HOMEVIA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HOMEVIA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HOMEVIA_DB_DSN"`
	Driver string `envconfig:"HOMEVIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOMEVIA_DB_HOST"`
	LegacyPort     int    `envconfig:"HOMEVIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOMEVIA_DB_USER"`
	LegacyPassword string `envconfig:"HOMEVIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOMEVIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOMEVIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOMEVIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOMEVIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOMEVIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOMEVIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOMEVIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOMEVIA_REDIS_ADDR"`
	Password     string        `envconfig:"HOMEVIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOMEVIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOMEVIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOMEVIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOMEVIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOMEVIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOMEVIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig carries what the API needs to verify bearer tokens minted by the
// external identity service.
type JWTConfig struct {
	Secret string `envconfig:"HOMEVIA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"HOMEVIA_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOMEVIA_AUTO_MIGRATE" default:"false"`
}

// CommissionConfig holds the payout split applied on deal completion. Rates
// are configuration so they can vary by deal later.
type CommissionConfig struct {
	PlatformRate string `envconfig:"HOMEVIA_COMMISSION_PLATFORM_RATE" default:"0.01"`
	AgentRate    string `envconfig:"HOMEVIA_COMMISSION_AGENT_RATE" default:"0.02"`
}

// VisitsConfig tunes visit expiry and the reminder window around the
// approved slot.
type VisitsConfig struct {
	RequestTTL        time.Duration `envconfig:"HOMEVIA_VISIT_REQUEST_TTL" default:"72h"`
	ReminderWindowMin time.Duration `envconfig:"HOMEVIA_VISIT_REMINDER_WINDOW_MIN" default:"23h"`
	ReminderWindowMax time.Duration `envconfig:"HOMEVIA_VISIT_REMINDER_WINDOW_MAX" default:"25h"`
}

func (v VisitsConfig) validate() error {
	if v.ReminderWindowMin <= 0 || v.ReminderWindowMax <= v.ReminderWindowMin {
		return fmt.Errorf("visit reminder window must satisfy 0 < min < max")
	}
	return nil
}

// SchedulerConfig sets the cadence of the two background jobs. Expiry runs
// on a long interval, reminders on a short one; the tickers are independent.
type SchedulerConfig struct {
	VisitExpiryInterval   time.Duration `envconfig:"HOMEVIA_SCHEDULER_VISIT_EXPIRY_INTERVAL" default:"24h"`
	VisitReminderInterval time.Duration `envconfig:"HOMEVIA_SCHEDULER_VISIT_REMINDER_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"HOMEVIA_SCHEDULER_LOCK_TTL" default:"30m"`
}

// DocumentsConfig points at the external receipt/deed render service.
type DocumentsConfig struct {
	BaseURL string        `envconfig:"HOMEVIA_DOCUMENTS_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"HOMEVIA_DOCUMENTS_API_KEY"`
	Timeout time.Duration `envconfig:"HOMEVIA_DOCUMENTS_TIMEOUT" default:"10s"`
}

// SMTPConfig configures the outbound email relay. Leaving the host empty
// disables delivery; notifications then stay in-app only.
type SMTPConfig struct {
	Host        string `envconfig:"HOMEVIA_SMTP_HOST"`
	Port        string `envconfig:"HOMEVIA_SMTP_PORT" default:"587"`
	User        string `envconfig:"HOMEVIA_SMTP_USER"`
	Password    string `envconfig:"HOMEVIA_SMTP_PASSWORD"`
	DefaultFrom string `envconfig:"HOMEVIA_SMTP_FROM_EMAIL" default:"no-reply@homevia.io"`
}

// IsConfigured reports whether outbound email can be attempted at all.
func (s SMTPConfig) IsConfigured() bool {
	return s.Host != "" && s.DefaultFrom != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HOMEVIA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"HOMEVIA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HOMEVIA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"HOMEVIA_PUBSUB_NOTIFICATION_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"HOMEVIA_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOMEVIA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOMEVIA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOMEVIA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
