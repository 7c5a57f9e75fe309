package sample

import (
	"github.com/pingcap/errors"
)

// Config carries the knobs of the demonstration run. The defaults are the
// reference values; every field can be overridden by flag or toml file
// without changing the pipeline's semantics.
type Config struct {
	MasterAddr       string `toml:"master-addr"`
	TableName        string `toml:"table-name"`
	Tablets          int    `toml:"tablets"`
	Rows             int    `toml:"rows"`
	ScanLowerBound   uint32 `toml:"scan-lower-bound"`
	ScanUpperBound   uint32 `toml:"scan-upper-bound"`
	SessionTimeoutMs int    `toml:"session-timeout-ms"`
	ConnectTimeoutMs int    `toml:"connect-timeout-ms"`
	LogLevel         string `toml:"log-level"`
}

// NewDefaultConfig returns the reference configuration.
func NewDefaultConfig() *Config {
	return &Config{
		MasterAddr:       "127.0.0.1",
		TableName:        "test_table",
		Tablets:          10,
		Rows:             1000,
		ScanLowerBound:   5,
		ScanUpperBound:   600,
		SessionTimeoutMs: 5000,
		ConnectTimeoutMs: 10000,
		LogLevel:         "info",
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.MasterAddr == "" {
		return errors.New("master address must not be empty")
	}
	if c.TableName == "" {
		return errors.New("table name must not be empty")
	}
	if c.Tablets < 1 {
		return errors.Errorf("tablet count %d must be at least 1", c.Tablets)
	}
	if c.Rows < 0 {
		return errors.Errorf("row count %d must not be negative", c.Rows)
	}
	if c.ScanLowerBound > c.ScanUpperBound {
		return errors.Errorf("scan bounds [%d, %d] are inverted", c.ScanLowerBound, c.ScanUpperBound)
	}
	if c.SessionTimeoutMs <= 0 {
		return errors.Errorf("session timeout %d ms must be positive", c.SessionTimeoutMs)
	}
	return nil
}
