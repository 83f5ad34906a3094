package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Listing struct {
		URL      string   `yaml:"url"`
		TTLHours int      `yaml:"ttl_hours"`
		Segments []string `yaml:"segments"`
	} `yaml:"listing"`
	Scan struct {
		Workers         int     `yaml:"workers"`
		Attempts        int     `yaml:"attempts"`
		BackoffMS       int     `yaml:"backoff_ms"`
		JitterMinMS     int     `yaml:"jitter_min_ms"`
		JitterMaxMS     int     `yaml:"jitter_max_ms"`
		ApproachPolicy  string  `yaml:"approach_policy"` // "deviation" or "ratio"
		ApproachBandPct float64 `yaml:"approach_band_pct"`
		ApproachRatio   float64 `yaml:"approach_ratio"`
		ChartMonths     int     `yaml:"chart_months"`
	} `yaml:"scan"`
	Store struct {
		CSVPath string `yaml:"csv_path"`
	} `yaml:"store"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ScanCron    string `yaml:"scan_cron"`
		ListingCron string `yaml:"listing_cron"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// defaultConfig returns the baseline the YAML file is overlaid on.
// Unmarshalling over a pre-populated struct keeps defaults for absent
// keys while honoring explicitly configured zeros.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Listing.TTLHours = 24
	cfg.Scan.Workers = 5
	cfg.Scan.Attempts = 3
	cfg.Scan.BackoffMS = 1000
	cfg.Scan.JitterMinMS = 100
	cfg.Scan.JitterMaxMS = 200
	cfg.Scan.ApproachPolicy = "deviation"
	cfg.Scan.ApproachBandPct = 5.0
	cfg.Scan.ApproachRatio = 0.96
	cfg.Scan.ChartMonths = 6
	cfg.Store.CSVPath = "data/master.csv"
	cfg.Server.Port = "8080"
	// Every 30 minutes during TSE hours, weekdays; listing refresh
	// before the open.
	cfg.Schedule.ScanCron = "0 */30 9-15 * * 1-5"
	cfg.Schedule.ListingCron = "0 30 7 * * 1-5"
	return cfg
}

// Load overlays the YAML file on the defaults, then applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTING_URL"); v != "" {
		cfg.Listing.URL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("STORE_CSV_PATH"); v != "" {
		cfg.Store.CSVPath = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scan.Workers = n
		}
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Listing.URL == "" {
		return fmt.Errorf("listing.url is required")
	}
	if c.Scan.ApproachPolicy != "deviation" && c.Scan.ApproachPolicy != "ratio" {
		return fmt.Errorf("scan.approach_policy must be \"deviation\" or \"ratio\", got %q", c.Scan.ApproachPolicy)
	}
	if c.Scan.ApproachBandPct < 0 {
		return fmt.Errorf("scan.approach_band_pct must not be negative")
	}
	if c.Scan.ApproachRatio <= 0 || c.Scan.ApproachRatio > 1 {
		return fmt.Errorf("scan.approach_ratio must be in (0, 1]")
	}
	if c.Scan.JitterMaxMS < c.Scan.JitterMinMS {
		return fmt.Errorf("scan.jitter_max_ms must be >= scan.jitter_min_ms")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
