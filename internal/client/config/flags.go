package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/careercoach/internal/flagx"
)

// ValueFlags lists every flag that takes a value, including the JSON config
// flags. cmd/cli uses it to find the positional launch link.
var ValueFlags = []string{"-a", "-d", "-k", "-l", "-g", "-t", "-r", "-c", "-config"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     backend base URL
//	-d string     local database path
//	-k string     device key file path
//	-l string     log level (debug|info|warn|error)
//	-g duration   verification result grace period
//	-t duration   request timeout
//	-r duration   restore retry interval while offline
//
// os.Args is filtered with flagx.FilterArgs so positional links and the JSON
// config flags do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-k", "-l", "-g", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "backend base URL")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.DeviceKeyPath, "k", cfg.DeviceKeyPath, "device key file path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.VerificationGrace, "g", cfg.VerificationGrace, "verification result grace period")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.DurationVar(&cfg.RestoreRetryInterval, "r", cfg.RestoreRetryInterval, "restore retry interval")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
