package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Sandy01030103/gold-price-etl/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Chart     ChartConfig     `mapstructure:"chart"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig describes the page being scraped and how its table is laid out.
type SourceConfig struct {
	URL           string        `mapstructure:"url"`
	Shape         string        `mapstructure:"shape"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	DebugDumpPath string        `mapstructure:"debug_dump_path"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	Layout        LayoutConfig  `mapstructure:"layout"`
}

// LayoutConfig holds the markup labels the extractor keys on.
type LayoutConfig struct {
	TableTitle   string `mapstructure:"table_title"`
	TableLabel   string `mapstructure:"table_label"`
	PriceClass   string `mapstructure:"price_class"`
	ProductLabel string `mapstructure:"product_label"`
	SellingLabel string `mapstructure:"selling_label"`
	BuyingLabel  string `mapstructure:"buying_label"`
}

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the cadence of the watch command.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Cron          string        `mapstructure:"cron"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines operator notifications for failed runs.
type AlertingConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	OnWarning bool           `mapstructure:"on_warning"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ChartConfig sets trend chart rendering.
type ChartConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Limit     int    `mapstructure:"limit"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

const (
	ShapeSingle = "single"
	ShapeDual   = "dual"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLDPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goldprice")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "logs/etl_monitor.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("source.url", "https://rate.bot.com.tw/gold/")
	v.SetDefault("source.shape", ShapeDual)
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("source.debug_dump_path", "")
	v.SetDefault("source.max_body_bytes", 8<<20)
	v.SetDefault("source.layout.table_title", "新臺幣黃金牌價")
	v.SetDefault("source.layout.table_label", "")
	v.SetDefault("source.layout.price_class", "text-right")
	v.SetDefault("source.layout.product_label", "黃金存摺")
	v.SetDefault("source.layout.selling_label", "本行賣出")
	v.SetDefault("source.layout.buying_label", "本行買進")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/gold_prices.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.on_warning", false)
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("chart.output_dir", "charts")
	v.SetDefault("chart.limit", 10)
	v.SetDefault("chart.width", 1200)
	v.SetDefault("chart.height", 600)

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return fmt.Errorf("source.url must be configured")
	}
	if c.Source.Shape != ShapeSingle && c.Source.Shape != ShapeDual {
		return fmt.Errorf("source.shape must be %q or %q, got %q", ShapeSingle, ShapeDual, c.Source.Shape)
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be greater than zero")
	}
	if c.Source.Layout.TableTitle == "" && c.Source.Layout.TableLabel == "" {
		return fmt.Errorf("one of source.layout.table_title or source.layout.table_label is required")
	}
	if c.Source.Shape == ShapeSingle && c.Source.Layout.ProductLabel == "" {
		return fmt.Errorf("source.layout.product_label is required for the single shape")
	}
	if c.Source.Shape == ShapeDual && (c.Source.Layout.SellingLabel == "" || c.Source.Layout.BuyingLabel == "") {
		return fmt.Errorf("source.layout.selling_label and buying_label are required for the dual shape")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}

	if c.Scheduler.Interval <= 0 && c.Scheduler.Cron == "" {
		return fmt.Errorf("scheduler.interval must be greater than zero when scheduler.cron is empty")
	}
	if c.Chart.Limit <= 0 {
		return fmt.Errorf("chart.limit must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ResolveChartLimit returns either the CLI override or config default.
func (c *Config) ResolveChartLimit(override int) int {
	if override > 0 {
		return override
	}
	return c.Chart.Limit
}
