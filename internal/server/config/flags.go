package config

import (
	"flag"

	"github.com/dmitrijs2005/gophtalk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   chat (TLS) bind address, e.g. ":5000"
//	-f string   file service bind address
//	-h string   health (gRPC) bind address
//	-u string   public base URL of the file service
//	-t string   tunnel base URL handed to FileMania
//	-d string   data directory
//	-s string   storage type: local or s3
//	-l string   log level
//
// Flags not listed here are ignored so that -c/-config can share the
// command line.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-f", "-h", "-u", "-t", "-d", "-s", "-l"})

	fs := flag.NewFlagSet("gophtalk", flag.ContinueOnError)

	fs.StringVar(&cfg.ChatAddr, "a", cfg.ChatAddr, "chat server address")
	fs.StringVar(&cfg.FileAddr, "f", cfg.FileAddr, "file server address")
	fs.StringVar(&cfg.HealthAddr, "h", cfg.HealthAddr, "health server address")
	fs.StringVar(&cfg.PublicFileURL, "u", cfg.PublicFileURL, "public file base URL")
	fs.StringVar(&cfg.TunnelBaseURL, "t", cfg.TunnelBaseURL, "tunnel base URL")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.StorageType, "s", cfg.StorageType, "file storage: local or s3")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
