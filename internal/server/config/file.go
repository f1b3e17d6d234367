package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophtalk/internal/flagx"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a config file. Zero values leave the
// current setting untouched.
type fileConfig struct {
	ChatAddr      string `json:"chat_addr" yaml:"chat_addr"`
	FileAddr      string `json:"file_addr" yaml:"file_addr"`
	HealthAddr    string `json:"health_addr" yaml:"health_addr"`
	PublicFileURL string `json:"public_file_url" yaml:"public_file_url"`
	TunnelBaseURL string `json:"tunnel_base_url" yaml:"tunnel_base_url"`

	TLSCertFile string `json:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file" yaml:"tls_key_file"`

	DataDir        string `json:"data_dir" yaml:"data_dir"`
	FileDir        string `json:"file_dir" yaml:"file_dir"`
	StorageType    string `json:"storage_type" yaml:"storage_type"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3RootUser     string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Prefix       string `json:"s3_prefix" yaml:"s3_prefix"`

	AutoAIURL        string   `json:"autoai_url" yaml:"autoai_url"`
	AutoAITimeout    Duration `json:"autoai_timeout" yaml:"autoai_timeout"`
	SummarizeURL     string   `json:"summarize_url" yaml:"summarize_url"`
	SummarizeTimeout Duration `json:"summarize_timeout" yaml:"summarize_timeout"`
	HelperURL        string   `json:"helper_url" yaml:"helper_url"`
	HelperTimeout    Duration `json:"helper_timeout" yaml:"helper_timeout"`
	PlaybookURL      string   `json:"playbook_url" yaml:"playbook_url"`
	PlaybookTimeout  Duration `json:"playbook_timeout" yaml:"playbook_timeout"`
	FileManiaURL     string   `json:"filemania_url" yaml:"filemania_url"`
	FileManiaTimeout Duration `json:"filemania_timeout" yaml:"filemania_timeout"`

	AutoAIHistory  int    `json:"autoai_history" yaml:"autoai_history"`
	AssistHistory  int    `json:"assist_history" yaml:"assist_history"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
}

// parseFile overlays the file named by -c/-config, if any. Files ending in
// .yaml or .yml are decoded as YAML, everything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := &fileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.ChatAddr, fc.ChatAddr)
	setString(&cfg.FileAddr, fc.FileAddr)
	setString(&cfg.HealthAddr, fc.HealthAddr)
	setString(&cfg.PublicFileURL, fc.PublicFileURL)
	setString(&cfg.TunnelBaseURL, fc.TunnelBaseURL)
	setString(&cfg.TLSCertFile, fc.TLSCertFile)
	setString(&cfg.TLSKeyFile, fc.TLSKeyFile)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.FileDir, fc.FileDir)
	setString(&cfg.StorageType, fc.StorageType)
	setString(&cfg.S3Bucket, fc.S3Bucket)
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.S3RootUser, fc.S3RootUser)
	setString(&cfg.S3RootPassword, fc.S3RootPassword)
	setString(&cfg.S3Prefix, fc.S3Prefix)
	setString(&cfg.AutoAIURL, fc.AutoAIURL)
	setString(&cfg.SummarizeURL, fc.SummarizeURL)
	setString(&cfg.HelperURL, fc.HelperURL)
	setString(&cfg.PlaybookURL, fc.PlaybookURL)
	setString(&cfg.FileManiaURL, fc.FileManiaURL)
	setString(&cfg.LogLevel, fc.LogLevel)

	if fc.AutoAITimeout.Duration > 0 {
		cfg.AutoAITimeout = fc.AutoAITimeout.Duration
	}
	if fc.SummarizeTimeout.Duration > 0 {
		cfg.SummarizeTimeout = fc.SummarizeTimeout.Duration
	}
	if fc.HelperTimeout.Duration > 0 {
		cfg.HelperTimeout = fc.HelperTimeout.Duration
	}
	if fc.PlaybookTimeout.Duration > 0 {
		cfg.PlaybookTimeout = fc.PlaybookTimeout.Duration
	}
	if fc.FileManiaTimeout.Duration > 0 {
		cfg.FileManiaTimeout = fc.FileManiaTimeout.Duration
	}
	if fc.AutoAIHistory > 0 {
		cfg.AutoAIHistory = fc.AutoAIHistory
	}
	if fc.AssistHistory > 0 {
		cfg.AssistHistory = fc.AssistHistory
	}
	if fc.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = fc.MaxUploadBytes
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
