package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. AUDITOR_DATABASE_HOST.
const EnvPrefix = "AUDITOR"

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
		CORSOrigins     []string      `yaml:"corsOrigins" envconfig:"CORS_ORIGINS"`
	} `yaml:"server"`

	Database struct {
		Driver       string `yaml:"driver" validate:"oneof=mysql postgres sqlite"`
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		User         string `yaml:"user"`
		Password     string `yaml:"password"`
		Name         string `yaml:"name"`
		SSLMode      string `yaml:"sslMode" split_words:"true"`
		Path         string `yaml:"path"`
		MaxOpenConns int    `yaml:"maxOpenConns" split_words:"true"`
		AutoMigrate  bool   `yaml:"autoMigrate" split_words:"true"`
	} `yaml:"database"`

	Minio struct {
		Endpoint      string        `yaml:"endpoint"`
		AccessKey     string        `yaml:"accessKey" split_words:"true"`
		SecretKey     string        `yaml:"secretKey" split_words:"true"`
		BucketName    string        `yaml:"bucketName" split_words:"true"`
		Region        string        `yaml:"region"`
		UseSSL        bool          `yaml:"useSSL" envconfig:"USE_SSL"`
		PresignExpiry time.Duration `yaml:"presignExpiry" split_words:"true"`
	} `yaml:"minio"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Queue struct {
		Backend string        `yaml:"backend" validate:"oneof=sql redis river"`
		Lease   time.Duration `yaml:"lease"`
		Prefix  string        `yaml:"prefix"`
	} `yaml:"queue"`

	Worker struct {
		Concurrency     int           `yaml:"concurrency" validate:"min=1"`
		PollInterval    time.Duration `yaml:"pollInterval" split_words:"true"`
		MaxAttempts     int           `yaml:"maxAttempts" split_words:"true" validate:"min=1"`
		InitialBackoff  time.Duration `yaml:"initialBackoff" split_words:"true"`
		MaxBackoff      time.Duration `yaml:"maxBackoff" split_words:"true"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	} `yaml:"worker"`

	Analysis struct {
		BaseURL string        `yaml:"baseURL" envconfig:"BASE_URL" validate:"required,url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"analysis"`

	AI struct {
		APIKey  string        `yaml:"apiKey" envconfig:"API_KEY"`
		BaseURL string        `yaml:"baseURL" envconfig:"BASE_URL"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"ai"`

	Render struct {
		Mode    string        `yaml:"mode" validate:"oneof=remote html"`
		BaseURL string        `yaml:"baseURL" envconfig:"BASE_URL"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"render"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	Webhook struct {
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"webhook"`

	Auth struct {
		// APIKeys maps an API key to the tenant it authenticates.
		APIKeys map[string]string `yaml:"apiKeys" envconfig:"API_KEYS"`
	} `yaml:"auth"`

	RateLimit struct {
		Requests int           `yaml:"requests"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"rateLimit" split_words:"true"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format" validate:"oneof=json text"`
	} `yaml:"log"`

	Sweep struct {
		Interval   time.Duration `yaml:"interval"`
		StuckAfter time.Duration `yaml:"stuckAfter" split_words:"true"`
		Batch      int           `yaml:"batch"`
	} `yaml:"sweep"`
}

// Default returns a config that runs a single node on SQLite.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Server.CORSOrigins = []string{"*"}

	c.Database.Driver = "sqlite"
	c.Database.Path = "auditor.db"
	c.Database.SSLMode = "disable"
	c.Database.MaxOpenConns = 25
	c.Database.AutoMigrate = true

	c.Minio.Region = "us-east-1"
	c.Minio.BucketName = "audits"

	c.Queue.Backend = "sql"
	c.Queue.Lease = 5 * time.Minute
	c.Queue.Prefix = "auditor:jobs"

	c.Worker.Concurrency = 5
	c.Worker.PollInterval = time.Second
	c.Worker.MaxAttempts = 3
	c.Worker.InitialBackoff = 5 * time.Second
	c.Worker.MaxBackoff = 10 * time.Minute
	c.Worker.ShutdownTimeout = 2 * time.Minute

	c.Analysis.BaseURL = "http://localhost:8000"
	c.Analysis.Timeout = 60 * time.Second

	c.AI.Model = "gpt-4o-mini"
	c.AI.Timeout = 20 * time.Second

	c.Render.Mode = "html"
	c.Render.Timeout = 60 * time.Second

	c.SMTP.Port = 587

	c.Webhook.Timeout = 10 * time.Second

	c.RateLimit.Requests = 30
	c.RateLimit.Window = time.Minute

	c.Log.Level = "info"
	c.Log.Format = "json"

	c.Sweep.Interval = 5 * time.Minute
	c.Sweep.StuckAfter = 15 * time.Minute
	c.Sweep.Batch = 100
	return &c
}

// Load baca file config.yaml di atas Default, lalu override dari env AUDITOR_*.
// File yang tidak ada tidak dianggap error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Render.Mode == "remote" && c.Render.BaseURL == "" {
		return errors.New("invalid config: render.baseURL is required in remote mode")
	}
	if c.Queue.Backend == "river" && c.Database.Driver != "postgres" {
		return errors.New("invalid config: the river queue needs database.driver postgres")
	}
	if c.Queue.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("invalid config: redis.addr is required for the redis queue")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// AIEnabled reports whether the summarize stage has a provider.
func (c *Config) AIEnabled() bool { return c.AI.APIKey != "" }

// SMTPEnabled reports whether completion emails can be sent.
func (c *Config) SMTPEnabled() bool { return c.SMTP.Host != "" && c.SMTP.From != "" }

// StorageEnabled reports whether an object store is configured.
func (c *Config) StorageEnabled() bool { return c.Minio.Endpoint != "" }
