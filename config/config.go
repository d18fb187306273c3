package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the digest pipeline service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig configures the language model provider used for
// classification, synthesis, critique and embeddings. An empty APIKey
// selects the deterministic mock provider (degraded mode).
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// Normalize applies defaults for unset LLM values.
func (l LLMConfig) Normalize() LLMConfig {
	if l.CompletionModel == "" {
		l.CompletionModel = "gpt-4o-mini"
	}
	if l.EmbeddingModel == "" {
		l.EmbeddingModel = "text-embedding-3-small"
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	if l.MaxRetries <= 0 {
		l.MaxRetries = 3
	}
	return l
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is used only
// for the pipeline run lock; when Host is empty the service falls back
// to an in-process lock.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// PipelineConfig contains stage batch sizes and scheduling.
type PipelineConfig struct {
	ScheduleCron   string `mapstructure:"schedule_cron"`
	RelevanceBatch int    `mapstructure:"relevance_batch"`
	EnrichBatch    int    `mapstructure:"enrich_batch"`
	SynthesisLimit int    `mapstructure:"synthesis_limit"`
	Workers        int    `mapstructure:"workers"`
}

// Normalize applies the stage batch defaults.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.ScheduleCron == "" {
		p.ScheduleCron = "0 9 * * *"
	}
	if p.RelevanceBatch <= 0 {
		p.RelevanceBatch = 10
	}
	if p.EnrichBatch <= 0 {
		p.EnrichBatch = 20
	}
	if p.SynthesisLimit <= 0 {
		p.SynthesisLimit = 5
	}
	if p.Workers <= 0 {
		p.Workers = 4
	}
	return p
}

// IngestConfig configures the arXiv acquisition source.
type IngestConfig struct {
	Categories []string `mapstructure:"categories"`
	MaxResults int      `mapstructure:"max_results"`
}

// Normalize applies acquisition defaults.
func (i IngestConfig) Normalize() IngestConfig {
	if len(i.Categories) == 0 {
		i.Categories = []string{"cs.AI", "cs.CL", "cs.LG", "stat.ML"}
	}
	if i.MaxResults <= 0 {
		i.MaxResults = 20
	}
	return i
}

// DeliveryConfig configures the WhatsApp transport. DryRun logs digests
// instead of dispatching them.
type DeliveryConfig struct {
	DryRun     bool   `mapstructure:"dry_run"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

func (d DeliveryConfig) Validate() error {
	if d.DryRun {
		return nil
	}
	if d.AccountSID == "" && d.AuthToken == "" {
		// no transport configured; delivery falls back to dry-run with a warning
		return nil
	}
	if d.AccountSID == "" || d.AuthToken == "" || d.FromNumber == "" {
		return fmt.Errorf("delivery.account_sid, auth_token and from_number must all be set")
	}
	return nil
}

// Configured reports whether real transport credentials are present.
func (d DeliveryConfig) Configured() bool {
	return d.AccountSID != "" && d.AuthToken != "" && d.FromNumber != ""
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":10011")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("pipeline.schedule_cron", "0 9 * * *")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.LLM = config.LLM.Normalize()
	config.Pipeline = config.Pipeline.Normalize()
	config.Ingest = config.Ingest.Normalize()

	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Delivery.Validate(); err != nil {
		panic(err)
	}
	return &config
}
