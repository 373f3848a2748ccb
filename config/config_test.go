package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "cleaned_main_data.csv", cfg.Data.Path)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 100, cfg.Dashboard.RFMRows)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "ecomdash.yaml", `
data:
  path: /data/orders.csv
server:
  addr: ":9090"
  write_timeout: 1m
dashboard:
  top_categories: 5
  currency: USD
rfm:
  reference_date: "2018-10-01"
  distinct_orders: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/orders.csv", cfg.Data.Path)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, 5, cfg.Dashboard.TopCategories)
	assert.Equal(t, 24, cfg.Dashboard.HourBins)

	svc := cfg.ServiceConfig()
	assert.Equal(t, "USD", svc.Currency)
	assert.True(t, svc.RFM.DistinctOrders)
	assert.Equal(t, time.Date(2018, 10, 1, 23, 59, 59, 0, time.UTC), svc.RFM.Reference)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "ecomdash.yaml", "server:\n  addr: \":9090\"\n")
	t.Setenv("ECOMDASH_SERVER_ADDR", ":7070")
	t.Setenv("ECOMDASH_DASHBOARD_HOUR_BINS", "12")
	t.Setenv("ECOMDASH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 12, cfg.Dashboard.HourBins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("ECOMDASH_DASHBOARD_DELIVERY_BINS", "0")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard.delivery_bins")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty path", func(c *Config) { c.Data.Path = " " }, "data.path"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"top categories", func(c *Config) { c.Dashboard.TopCategories = 0 }, "top_categories"},
		{"hour bins", func(c *Config) { c.Dashboard.HourBins = -1 }, "hour_bins"},
		{"rfm rows", func(c *Config) { c.Dashboard.RFMRows = -5 }, "rfm_rows"},
		{"render size", func(c *Config) { c.Render.Width = 0 }, "render size"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"reference", func(c *Config) { c.RFM.ReferenceDate = "01/10/2018" }, "reference_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestServiceConfigWithoutReference(t *testing.T) {
	svc := DefaultConfig().ServiceConfig()
	assert.True(t, svc.RFM.Reference.IsZero())
	assert.Equal(t, 10, svc.TopCategories)
	assert.Equal(t, 100, svc.RFMRows)
	assert.Equal(t, "BRL", svc.Currency)
}
