package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable the server reads.
const EnvPrefix = "GOPHTALK_"

// envFile is loaded before the environment is read. Variables already set
// in the process environment win over the file.
var envFile = ".env"

func parseEnv(cfg *Config) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	strs := map[string]*string{
		"CHAT_ADDR":        &cfg.ChatAddr,
		"FILE_ADDR":        &cfg.FileAddr,
		"HEALTH_ADDR":      &cfg.HealthAddr,
		"PUBLIC_FILE_URL":  &cfg.PublicFileURL,
		"TUNNEL_BASE_URL":  &cfg.TunnelBaseURL,
		"TLS_CERT_FILE":    &cfg.TLSCertFile,
		"TLS_KEY_FILE":     &cfg.TLSKeyFile,
		"DATA_DIR":         &cfg.DataDir,
		"FILE_DIR":         &cfg.FileDir,
		"STORAGE_TYPE":     &cfg.StorageType,
		"S3_BUCKET":        &cfg.S3Bucket,
		"S3_REGION":        &cfg.S3Region,
		"S3_BASE_ENDPOINT": &cfg.S3BaseEndpoint,
		"S3_ROOT_USER":     &cfg.S3RootUser,
		"S3_ROOT_PASSWORD": &cfg.S3RootPassword,
		"S3_PREFIX":        &cfg.S3Prefix,
		"AUTOAI_URL":       &cfg.AutoAIURL,
		"SUMMARIZE_URL":    &cfg.SummarizeURL,
		"HELPER_URL":       &cfg.HelperURL,
		"PLAYBOOK_URL":     &cfg.PlaybookURL,
		"FILEMANIA_URL":    &cfg.FileManiaURL,
		"LOG_LEVEL":        &cfg.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"AUTOAI_TIMEOUT":    &cfg.AutoAITimeout,
		"SUMMARIZE_TIMEOUT": &cfg.SummarizeTimeout,
		"HELPER_TIMEOUT":    &cfg.HelperTimeout,
		"PLAYBOOK_TIMEOUT":  &cfg.PlaybookTimeout,
		"FILEMANIA_TIMEOUT": &cfg.FileManiaTimeout,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"AUTOAI_HISTORY": &cfg.AutoAIHistory,
		"ASSIST_HISTORY": &cfg.AssistHistory,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", EnvPrefix, err)
		}
		cfg.MaxUploadBytes = n
	}

	return nil
}
