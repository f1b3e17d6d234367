// Package config handles configuration for the chat server, including
// defaults, a JSON or YAML file overlay, environment variables and
// command-line flags, applied in that order.
package config

import (
	"path/filepath"
	"time"
)

// Storage backends for uploaded files.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds runtime settings for the gophtalk server.
//
// Fields:
//   - ChatAddr / FileAddr / HealthAddr: bind addresses of the three listeners.
//   - PublicFileURL: base URL put into upload responses.
//   - TunnelBaseURL: base URL that replaces PublicFileURL in links sent to FileMania.
//   - TLSCertFile / TLSKeyFile: PEM files for the chat listener.
//   - DataDir: directory holding users, temp passwords, friends and chat history.
//   - FileDir: directory for uploaded files when StorageType is "local".
//   - Webhook URLs and timeouts for the five external agents.
type Config struct {
	ChatAddr      string
	FileAddr      string
	HealthAddr    string
	PublicFileURL string
	TunnelBaseURL string

	TLSCertFile string
	TLSKeyFile  string

	DataDir        string
	FileDir        string
	StorageType    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3RootUser     string
	S3RootPassword string
	S3Prefix       string

	AutoAIURL        string
	AutoAITimeout    time.Duration
	SummarizeURL     string
	SummarizeTimeout time.Duration
	HelperURL        string
	HelperTimeout    time.Duration
	PlaybookURL      string
	PlaybookTimeout  time.Duration
	FileManiaURL     string
	FileManiaTimeout time.Duration

	AutoAIHistory  int
	AssistHistory  int
	MaxUploadBytes int64
	LogLevel       string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ChatAddr = ":5000"
	c.FileAddr = ":5001"
	c.HealthAddr = ":5002"
	c.PublicFileURL = "http://localhost:5001"
	c.TunnelBaseURL = ""

	c.TLSCertFile = "server.crt"
	c.TLSKeyFile = "server.key"

	c.DataDir = "."
	c.FileDir = "server_files"
	c.StorageType = StorageLocal
	c.S3Bucket = "gophtalk"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.S3RootUser = ""
	c.S3RootPassword = ""
	c.S3Prefix = "files/"

	c.AutoAITimeout = 60 * time.Second
	c.SummarizeTimeout = 90 * time.Second
	c.HelperTimeout = 90 * time.Second
	c.PlaybookTimeout = 120 * time.Second
	c.FileManiaTimeout = 180 * time.Second

	c.AutoAIHistory = 20
	c.AssistHistory = 50
	c.MaxUploadBytes = 50 << 20
	c.LogLevel = "info"
}

// Data files kept under DataDir.
func (c *Config) UsersFile() string {
	return filepath.Join(c.DataDir, "users_db.json")
}

func (c *Config) TempPasswordsFile() string {
	return filepath.Join(c.DataDir, "temporary_passwords.json")
}

func (c *Config) FriendsFile() string {
	return filepath.Join(c.DataDir, "friends_data.json")
}

func (c *Config) ChatFile() string {
	return filepath.Join(c.DataDir, "chat_history.json")
}

// LoadConfig builds a Config by applying defaults, then the optional config
// file named by -c/-config, then the environment and finally the flags in
// args (normally os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
