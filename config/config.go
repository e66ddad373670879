package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port              int `yaml:"port"`
	MaxUploadMB       int `yaml:"max_upload_mb"`
	RateLimit         int `yaml:"rate_limit"` // requests per window per client IP, 0 = off
	RateWindowSeconds int `yaml:"rate_window_seconds"`
}

type LLMConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ExtractionConfig struct {
	DocCharLimit  int    `yaml:"doc_char_limit"`
	MaxPageHints  int    `yaml:"max_page_hints"`
	PageHintChars int    `yaml:"page_hint_chars"`
	PromptPath    string `yaml:"prompt_path"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) * 1024 * 1024
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.APIURL, "OPENAI_API_URL")
	setString(&c.LLM.Model, "OPENAI_MODEL")
	setInt(&c.Extraction.DocCharLimit, "DOC_CHAR_LIMIT")
	setInt(&c.Server.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Archive.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Archive.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Archive.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Archive.Bucket, "MINIO_BUCKET")
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 20
	}
	if c.Server.RateWindowSeconds <= 0 {
		c.Server.RateWindowSeconds = 60
	}
	if c.LLM.APIURL == "" {
		c.LLM.APIURL = "https://api.openai.com/v1/chat/completions"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Extraction.DocCharLimit <= 0 {
		c.Extraction.DocCharLimit = 12000
	}
	if c.Extraction.MaxPageHints <= 0 {
		c.Extraction.MaxPageHints = 8
	}
	if c.Extraction.PageHintChars <= 0 {
		c.Extraction.PageHintChars = 800
	}
	if c.Archive.Bucket == "" {
		c.Archive.Bucket = "keydates"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
