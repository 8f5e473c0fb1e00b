package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Logging struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"logging"`

	HTTP struct {
		Port            int     `yaml:"port"`
		RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
		// TrustedProxies lists peers (IPs or CIDRs) whose X-Forwarded-For is honoured.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"http"`

	Storage struct {
		// Backend is one of "sqlite", "sheets", "opensheet".
		Backend  string `yaml:"backend"`
		Failover bool   `yaml:"failover"`
	} `yaml:"storage"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Google struct {
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		PollsSheet      string `yaml:"polls_sheet"`
		ResponsesSheet  string `yaml:"responses_sheet"`
	} `yaml:"google"`

	OpenSheet struct {
		BaseURL                string `yaml:"base_url"`
		PollsSpreadsheetID     string `yaml:"polls_spreadsheet_id"`
		PollsSheet             string `yaml:"polls_sheet"`
		ResponsesSpreadsheetID string `yaml:"responses_spreadsheet_id"`
		ResponsesSheet         string `yaml:"responses_sheet"`
		CacheTTLSeconds        int    `yaml:"cache_ttl_seconds"`

		PollsForm struct {
			URL       string `yaml:"url"`
			FieldID   string `yaml:"field_id"`
			FieldJSON string `yaml:"field_json"`
		} `yaml:"polls_form"`

		VotesForm struct {
			URL         string `yaml:"url"`
			FieldName   string `yaml:"field_name"`
			FieldJSON   string `yaml:"field_json"`
			FieldPollID string `yaml:"field_poll_id"`
		} `yaml:"votes_form"`
	} `yaml:"opensheet"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Results struct {
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"results"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Refresh struct {
		Enabled         bool `yaml:"enabled"`
		IntervalSeconds int  `yaml:"interval_seconds"`
		Workers         int  `yaml:"workers"`
	} `yaml:"refresh"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
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

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/meetslot.db"
	}
	if cfg.Google.PollsSheet == "" {
		cfg.Google.PollsSheet = "polls"
	}
	if cfg.Google.ResponsesSheet == "" {
		cfg.Google.ResponsesSheet = "responses"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LogLevel parses logging.level, falling back to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Logging.Level)
	if err != nil || c.Logging.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) HTTPPort() int {
	if c.HTTP.Port <= 0 {
		return 8080
	}
	return c.HTTP.Port
}

func (c *Config) RateLimit() (perSec float64, burst int) {
	perSec, burst = c.HTTP.RateLimitPerSec, c.HTTP.RateLimitBurst
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return perSec, burst
}

func (c *Config) ResultsTTL() time.Duration {
	if c.Results.CacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Results.CacheTTLSeconds) * time.Second
}

func (c *Config) OpenSheetTTL() time.Duration {
	if c.OpenSheet.CacheTTLSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.OpenSheet.CacheTTLSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	if c.Refresh.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

func (c *Config) RefreshWorkers() int {
	if c.Refresh.Workers <= 0 {
		return 4
	}
	return c.Refresh.Workers
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) HealthCheckPort() int {
	if c.Monitoring.HealthCheckPort <= 0 {
		return 8090
	}
	return c.Monitoring.HealthCheckPort
}

func (c *Config) PrometheusPort() int {
	if c.Monitoring.PrometheusPort <= 0 {
		return 9090
	}
	return c.Monitoring.PrometheusPort
}
