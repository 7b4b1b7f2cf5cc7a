// Package config loads runtime configuration for the careercoach client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. CAREERCOACH_* environment variables (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_base_url": "https://api.example.com",
//	  "database_path": "careercoach.db",
//	  "device_key_path": "careercoach.key",
//	  "storage_prefix": "careercoach",
//	  "request_timeout": "30s",
//	  "verification_grace": "1s",
//	  "resend_interval": "30s",
//	  "restore_retry_interval": "10s",
//	  "verify_path": "auth/verify",
//	  "main_route": "/home",
//	  "onboarding_route": "/onboarding",
//	  "signed_out_route": "/login",
//	  "log_level": "info"
//	}
//
// The storage passphrase is only read from CAREERCOACH_PASSPHRASE.
package config
