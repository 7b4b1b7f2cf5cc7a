package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/flagx"
	"github.com/dmitrijs2005/careercoach/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they can be written as "3s" or integer nanoseconds.
// Absent fields keep the value they had before.
type JsonConfig struct {
	ServerBaseURL string `json:"server_base_url"`
	DatabasePath  string `json:"database_path"`
	DeviceKeyPath string `json:"device_key_path"`
	StoragePrefix string `json:"storage_prefix"`

	RequestTimeout       *timex.Duration `json:"request_timeout"`
	VerificationGrace    *timex.Duration `json:"verification_grace"`
	ResendInterval       *timex.Duration `json:"resend_interval"`
	RestoreRetryInterval *timex.Duration `json:"restore_retry_interval"`

	VerifyPath      string `json:"verify_path"`
	MainRoute       string `json:"main_route"`
	OnboardingRoute string `json:"onboarding_route"`
	SignedOutRoute  string `json:"signed_out_route"`

	LogLevel string `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerBaseURL, jc.ServerBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.DeviceKeyPath, jc.DeviceKeyPath)
	setString(&cfg.StoragePrefix, jc.StoragePrefix)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.VerificationGrace, jc.VerificationGrace)
	setDuration(&cfg.ResendInterval, jc.ResendInterval)
	setDuration(&cfg.RestoreRetryInterval, jc.RestoreRetryInterval)

	setString(&cfg.VerifyPath, jc.VerifyPath)
	setString(&cfg.MainRoute, jc.MainRoute)
	setString(&cfg.OnboardingRoute, jc.OnboardingRoute)
	setString(&cfg.SignedOutRoute, jc.SignedOutRoute)

	setString(&cfg.LogLevel, jc.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
