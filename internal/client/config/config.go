package config

import (
	"time"

	"github.com/dmitrijs2005/careercoach/internal/common"
)

// Config holds runtime settings for the careercoach client.
//
// Durations are time.Duration; JSON accepts "3s"-style strings, env vars and
// flags accept the same syntax.
type Config struct {
	ServerBaseURL string `env:"CAREERCOACH_SERVER_URL"`
	DatabasePath  string `env:"CAREERCOACH_DB_PATH"`
	DeviceKeyPath string `env:"CAREERCOACH_DEVICE_KEY_PATH"`
	StoragePrefix string `env:"CAREERCOACH_STORAGE_PREFIX"`
	// Passphrase, when set, replaces the device key as the root of the
	// storage key. Environment only.
	Passphrase string `env:"CAREERCOACH_PASSPHRASE"`

	RequestTimeout       time.Duration `env:"CAREERCOACH_REQUEST_TIMEOUT"`
	VerificationGrace    time.Duration `env:"CAREERCOACH_VERIFICATION_GRACE"`
	ResendInterval       time.Duration `env:"CAREERCOACH_RESEND_INTERVAL"`
	RestoreRetryInterval time.Duration `env:"CAREERCOACH_RESTORE_RETRY_INTERVAL"`

	VerifyPath      string `env:"CAREERCOACH_VERIFY_PATH"`
	MainRoute       string `env:"CAREERCOACH_MAIN_ROUTE"`
	OnboardingRoute string `env:"CAREERCOACH_ONBOARDING_ROUTE"`
	SignedOutRoute  string `env:"CAREERCOACH_SIGNED_OUT_ROUTE"`

	LogLevel string `env:"CAREERCOACH_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "careercoach.db"
	c.DeviceKeyPath = "careercoach.key"
	c.StoragePrefix = common.DefaultStoragePrefix

	c.RequestTimeout = 30 * time.Second
	c.VerificationGrace = time.Second
	c.ResendInterval = 30 * time.Second
	c.RestoreRetryInterval = 10 * time.Second

	c.VerifyPath = "auth/verify"
	c.MainRoute = "/home"
	c.OnboardingRoute = "/onboarding"
	c.SignedOutRoute = "/login"

	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
