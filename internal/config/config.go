package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Remote     RemoteConfig     `yaml:"remote"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Backup     BackupConfig     `yaml:"backup"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// RemoteConfig points at the hosted table store. BaseURL and AccessToken
// are required; the service refuses to start without them rather than run
// half-functional on cache alone.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccessToken    string `yaml:"access_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type TelegramConfig struct {
	BotToken     string `yaml:"bot_token"`
	FamilyChatID int64  `yaml:"family_chat_id"`
	ReminderHour int    `yaml:"reminder_hour"`
	Timezone     string `yaml:"timezone"`
}

type SheetsConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	CalendarSpreadsheetID string `yaml:"calendar_spreadsheet_id"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(path string) (*Config, error) {
	// .env is optional; environment may be set by the host instead.
	_ = godotenv.Load(".env")

	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is required")
	}
	if cfg.Remote.AccessToken == "" {
		return nil, fmt.Errorf("remote.access_token is required")
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "data/stuga_cache.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// RemoteTimeout returns the bounded timeout for remote store calls.
func (c *Config) RemoteTimeout() time.Duration {
	if c.Remote.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// RefreshInterval returns how often cached snapshots are reconciled against
// the remote store.
func (c *Config) RefreshInterval() time.Duration {
	return 30 * time.Second
}

// ServerPort returns the API listen port.
func (c *Config) ServerPort() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

// RedisChannel returns the pub/sub channel used for cross-instance change
// notifications.
func (c *Config) RedisChannel() string {
	if c.Redis.Channel == "" {
		return "stuga:changes"
	}
	return c.Redis.Channel
}
