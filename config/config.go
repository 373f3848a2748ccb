// Package config loads ecomdash settings from defaults, an optional YAML
// file, a .env file and ECOMDASH_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spektr-org/ecomdash/dashboard"
	"github.com/spektr-org/ecomdash/orders"
	"github.com/spektr-org/ecomdash/rfm"
)

// EnvPrefix prefixes every environment override, e.g. ECOMDASH_SERVER_ADDR.
const EnvPrefix = "ECOMDASH"

// Config is the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	RFM       RFMConfig       `yaml:"rfm" mapstructure:"rfm"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Render    RenderConfig    `yaml:"render" mapstructure:"render"`
}

// DataConfig locates the cleaned orders CSV.
type DataConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LogConfig selects the zap level and encoder ("json" or "console").
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RFMConfig configures the customer report.
type RFMConfig struct {
	// ReferenceDate is YYYY-MM-DD; empty means the latest purchase.
	ReferenceDate  string `yaml:"reference_date" mapstructure:"reference_date"`
	DistinctOrders bool   `yaml:"distinct_orders" mapstructure:"distinct_orders"`
}

// DashboardConfig holds the page tunables.
type DashboardConfig struct {
	TopCategories int    `yaml:"top_categories" mapstructure:"top_categories"`
	HourBins      int    `yaml:"hour_bins" mapstructure:"hour_bins"`
	DeliveryBins  int    `yaml:"delivery_bins" mapstructure:"delivery_bins"`
	Currency      string `yaml:"currency" mapstructure:"currency"`
	RFMRows       int    `yaml:"rfm_rows" mapstructure:"rfm_rows"`
}

// RenderConfig sizes PNG output.
type RenderConfig struct {
	Width  int `yaml:"width" mapstructure:"width"`
	Height int `yaml:"height" mapstructure:"height"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{Path: "cleaned_main_data.csv"},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Dashboard: DashboardConfig{
			TopCategories: 10,
			HourBins:      24,
			DeliveryBins:  20,
			Currency:      "BRL",
			RFMRows:       100,
		},
		Render: RenderConfig{Width: 800, Height: 450},
	}
}

// defaults registers every key with viper so AutomaticEnv can see it even
// when no config file sets it.
func defaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("data.path", d.Data.Path)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("rfm.reference_date", d.RFM.ReferenceDate)
	v.SetDefault("rfm.distinct_orders", d.RFM.DistinctOrders)
	v.SetDefault("dashboard.top_categories", d.Dashboard.TopCategories)
	v.SetDefault("dashboard.hour_bins", d.Dashboard.HourBins)
	v.SetDefault("dashboard.delivery_bins", d.Dashboard.DeliveryBins)
	v.SetDefault("dashboard.currency", d.Dashboard.Currency)
	v.SetDefault("dashboard.rfm_rows", d.Dashboard.RFMRows)
	v.SetDefault("render.width", d.Render.Width)
	v.SetDefault("render.height", d.Render.Height)
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment apply. A missing .env is not an error; a missing
// explicit config file is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Data.Path) == "" {
		errs = append(errs, errors.New("data.path is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Dashboard.TopCategories <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.top_categories must be > 0, got %d", c.Dashboard.TopCategories))
	}
	if c.Dashboard.HourBins <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.hour_bins must be > 0, got %d", c.Dashboard.HourBins))
	}
	if c.Dashboard.DeliveryBins <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.delivery_bins must be > 0, got %d", c.Dashboard.DeliveryBins))
	}
	if c.Dashboard.RFMRows < 0 {
		errs = append(errs, fmt.Errorf("dashboard.rfm_rows must be >= 0, got %d", c.Dashboard.RFMRows))
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, fmt.Errorf("render size must be positive, got %dx%d", c.Render.Width, c.Render.Height))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if _, err := c.Reference(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Reference parses rfm.reference_date. The reference is the end of that day
// so purchases made on it have recency 0.
func (c *Config) Reference() (time.Time, error) {
	if c.RFM.ReferenceDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(orders.DateLayout, c.RFM.ReferenceDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("rfm.reference_date %q: want YYYY-MM-DD", c.RFM.ReferenceDate)
	}
	return t.Add(24*time.Hour - time.Second), nil
}

// ServiceConfig converts to the dashboard service configuration. Call after
// Validate.
func (c *Config) ServiceConfig() dashboard.Config {
	ref, _ := c.Reference()
	return dashboard.Config{
		TopCategories: c.Dashboard.TopCategories,
		HourBins:      c.Dashboard.HourBins,
		DeliveryBins:  c.Dashboard.DeliveryBins,
		Currency:      c.Dashboard.Currency,
		RFMRows:       c.Dashboard.RFMRows,
		RFM: rfm.Options{
			Reference:      ref,
			DistinctOrders: c.RFM.DistinctOrders,
		},
	}
}
