package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// Key storage modes.
const (
	KeyModeEphemeral  = "ephemeral"
	KeyModePersistent = "persistent"
	KeyModeFile       = "file"
)

// Nonce store backends.
const (
	NonceStoreMemory = "memory"
	NonceStoreSQLite = "sqlite"
	NonceStoreRedis  = "redis"
)

// User directory adapters.
const (
	DirectoryHTTP = "http"
	DirectoryFile = "file"
)

type Config struct {
	Issuer   string   `env:"AUTH_ISSUER" envDefault:"twostep-auth"`
	Audience []string `env:"AUTH_AUDIENCE" envSeparator:","`

	// Signing keys.
	Algorithm      string        `env:"AUTH_ALGORITHM" envDefault:"EdDSA"`
	RSABits        int           `env:"AUTH_RSA_BITS"`
	NumKeys        int           `env:"AUTH_NUM_KEYS"`
	KeyStorageMode string        `env:"AUTH_KEY_STORAGE_MODE" envDefault:"ephemeral"`
	PrivateKeyPath string        `env:"AUTH_PRIVATE_KEY_PATH"`
	KeyID          string        `env:"AUTH_KEY_ID"`
	MasterKeyPath  string        `env:"AUTH_MASTER_KEY_PATH"`
	MasterKey      string        `env:"AUTH_MASTER_KEY"`
	KeyGracePeriod time.Duration `env:"AUTH_KEY_GRACE_PERIOD" envDefault:"720h"`
	TokenTTL       time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"15m"`

	// Pending verifications.
	CodeTTL      time.Duration `env:"AUTH_CODE_TTL" envDefault:"5m"`
	CodeDigits   int           `env:"AUTH_CODE_DIGITS" envDefault:"6"`
	MaxAttempts  int           `env:"AUTH_MAX_ATTEMPTS" envDefault:"5"`
	NonceStore   string        `env:"AUTH_NONCE_STORE" envDefault:"sqlite"`
	DatabaseFile string        `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	RedisURL     string        `env:"AUTH_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix  string        `env:"AUTH_REDIS_PREFIX" envDefault:"twostep"`

	// User directory.
	Directory        string        `env:"AUTH_DIRECTORY" envDefault:"http"`
	DirectoryURL     string        `env:"AUTH_DIRECTORY_URL" envDefault:"http://localhost:3030"`
	DirectoryPath    string        `env:"AUTH_DIRECTORY_PATH" envDefault:"/verifyUser"`
	DirectoryAPIKey  string        `env:"AUTH_DIRECTORY_API_KEY"`
	DirectoryFile    string        `env:"AUTH_DIRECTORY_FILE" envDefault:"users.yaml"`
	DirectoryTimeout time.Duration `env:"AUTH_DIRECTORY_TIMEOUT" envDefault:"5s"`

	// Code delivery.
	NotifyTimeout  time.Duration `env:"AUTH_NOTIFY_TIMEOUT" envDefault:"10s"`
	NotifyDryRun   bool          `env:"AUTH_NOTIFY_DRY_RUN"`
	SMSGatewayURL  string        `env:"AUTH_SMS_GATEWAY_URL"`
	SMSAPIKey      string        `env:"AUTH_SMS_API_KEY"`
	SMSSender      string        `env:"AUTH_SMS_SENDER" envDefault:"TwoStep"`
	SMTP           SMTPConfig    `envPrefix:"AUTH_SMTP_"`
	DeliveryPolicy string        `env:"AUTH_DELIVERY_FAILURE_POLICY" envDefault:"fail"`

	Env                  string        `env:"ENV" envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1m"`

	OTELEndpoint    string  `env:"OTEL_EXPORTER_ENDPOINT"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`

	// Rate limit profiles start from the httpx defaults; set e.g.
	// RATELIMIT_STRICT_REQUESTS to override a single field.
	StrictLimit  httpx.RateLimitConfig `envPrefix:"RATELIMIT_STRICT_"`
	LenientLimit httpx.RateLimitConfig `envPrefix:"RATELIMIT_LENIENT_"`
	PublicLimit  httpx.RateLimitConfig `envPrefix:"RATELIMIT_PUBLIC_"`
}

// SMTPConfig configures the email channel. An empty Host disables it.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
}

// LoadConfig reads the environment into a Config and checks it.
func LoadConfig() (Config, error) {
	cfg := Config{
		StrictLimit:  httpx.StrictLimit,
		LenientLimit: httpx.LenientLimit,
		PublicLimit:  httpx.PublicLimit,
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() error {
	var errs []error

	switch c.Algorithm {
	case jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM: unsupported %q", c.Algorithm))
	}

	switch c.KeyStorageMode {
	case KeyModeEphemeral, KeyModePersistent:
	case KeyModeFile:
		if c.PrivateKeyPath == "" {
			errs = append(errs, errors.New("AUTH_PRIVATE_KEY_PATH is required in file key mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_KEY_STORAGE_MODE: unknown %q", c.KeyStorageMode))
	}

	switch c.NonceStore {
	case NonceStoreMemory, NonceStoreSQLite, NonceStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("AUTH_NONCE_STORE: unknown %q", c.NonceStore))
	}
	if c.KeyStorageMode == KeyModePersistent && c.NonceStore == NonceStoreMemory {
		errs = append(errs, errors.New("persistent keys need a durable AUTH_NONCE_STORE"))
	}

	switch c.Directory {
	case DirectoryHTTP, DirectoryFile:
	default:
		errs = append(errs, fmt.Errorf("AUTH_DIRECTORY: unknown %q", c.Directory))
	}

	if _, err := service.ParseDeliveryPolicy(c.DeliveryPolicy); err != nil {
		errs = append(errs, fmt.Errorf("AUTH_DELIVERY_FAILURE_POLICY: %w", err))
	}

	if c.CodeDigits != 8 {
		c.CodeDigits = 6
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = service.DefaultMaxAttempts
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = service.DefaultCodeTTL
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = jwtx.DefaultAccessTokenTTL
	}
	if c.HousekeepingInterval <= 0 {
		c.HousekeepingInterval = service.DefaultReapInterval
	}
	for _, l := range []*httpx.RateLimitConfig{&c.StrictLimit, &c.LenientLimit, &c.PublicLimit} {
		if l.RequestsPerWindow < 1 || l.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %+v: requests and window must be positive", *l))
		}
		if l.Burst < 1 {
			l.Burst = l.RequestsPerWindow
		}
	}

	return errors.Join(errs...)
}
