package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/newthinker/bandrev/internal/core"
	"github.com/spf13/viper"
)

// DateLayout is the format of data.from and data.to
const DateLayout = "2006-01-02"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Export   ExportConfig   `mapstructure:"export"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DataConfig selects the price history source
type DataConfig struct {
	Source   string `mapstructure:"source"` // "csv" or "yahoo"
	Path     string `mapstructure:"path"`   // file or directory for csv
	Symbol   string `mapstructure:"symbol"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
	Interval string `mapstructure:"interval"`
	BaseURL  string `mapstructure:"base_url"`
}

type StrategyConfig struct {
	Name    string  `mapstructure:"name"`
	Window  int     `mapstructure:"window"`
	NumStd  float64 `mapstructure:"num_std"`
	StdMode string  `mapstructure:"std_mode"` // "sample" or "population"
}

// Params returns the strategy parameters in registry form
func (s StrategyConfig) Params() map[string]any {
	return map[string]any{
		"window":   s.Window,
		"num_std":  s.NumStd,
		"std_mode": s.StdMode,
	}
}

type BacktestConfig struct {
	Fee           float64 `mapstructure:"fee"`
	RollingWindow int     `mapstructure:"rolling_window"`
}

type ExportConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Format     string `mapstructure:"format"` // "csv" or "parquet"
	SQLitePath string `mapstructure:"sqlite_path"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // node-exporter textfile output, empty disables
}

// SweepConfig is the parameter grid of the sweep command
type SweepConfig struct {
	Windows []int     `mapstructure:"windows"`
	NumStds []float64 `mapstructure:"num_stds"`
	Workers int       `mapstructure:"workers"`
}

// Load reads configuration from file on top of Defaults. An empty path
// loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix("BANDREV")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.path", d.Data.Path)
	v.SetDefault("data.symbol", d.Data.Symbol)
	v.SetDefault("data.from", d.Data.From)
	v.SetDefault("data.to", d.Data.To)
	v.SetDefault("data.interval", d.Data.Interval)
	v.SetDefault("data.base_url", d.Data.BaseURL)
	v.SetDefault("strategy.name", d.Strategy.Name)
	v.SetDefault("strategy.window", d.Strategy.Window)
	v.SetDefault("strategy.num_std", d.Strategy.NumStd)
	v.SetDefault("strategy.std_mode", d.Strategy.StdMode)
	v.SetDefault("backtest.fee", d.Backtest.Fee)
	v.SetDefault("backtest.rolling_window", d.Backtest.RollingWindow)
	v.SetDefault("export.enabled", d.Export.Enabled)
	v.SetDefault("export.format", d.Export.Format)
	v.SetDefault("export.sqlite_path", d.Export.SQLitePath)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.access_key", d.Storage.S3.AccessKey)
	v.SetDefault("storage.s3.secret_key", d.Storage.S3.SecretKey)
	v.SetDefault("storage.s3.prefix", d.Storage.S3.Prefix)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("sweep.windows", d.Sweep.Windows)
	v.SetDefault("sweep.num_stds", d.Sweep.NumStds)
	v.SetDefault("sweep.workers", d.Sweep.Workers)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			Source:   "csv",
			Interval: "1d",
		},
		Strategy: StrategyConfig{
			Name:    "bollinger",
			Window:  20,
			NumStd:  2.0,
			StdMode: "sample",
		},
		Backtest: BacktestConfig{
			Fee:           0.001,
			RollingWindow: 252,
		},
		Export: ExportConfig{
			Enabled: true,
			Format:  "csv",
		},
		Storage: StorageConfig{
			Type: "localfs",
			Path: "./runs",
		},
		Sweep: SweepConfig{
			Windows: []int{10, 20, 30, 50},
			NumStds: []float64{1.0, 1.5, 2.0, 2.5},
			Workers: 4,
		},
	}
}

// DateRange parses data.from and data.to. Empty values are unbounded and
// the end date is inclusive of the whole day.
func (d DataConfig) DateRange() (start, end time.Time, err error) {
	if d.From != "" {
		if start, err = time.Parse(DateLayout, d.From); err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("data.from must be YYYY-MM-DD, got %q", d.From))
		}
	}
	if d.To != "" {
		if end, err = time.Parse(DateLayout, d.To); err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("data.to must be YYYY-MM-DD, got %q", d.To))
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.to %s is before data.from %s", d.To, d.From))
	}
	return start, end, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Data validation
	switch c.Data.Source {
	case "csv":
		if c.Data.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.path required when source is csv"))
		}
	case "yahoo":
		if c.Data.Symbol == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.symbol required when source is yahoo"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be csv or yahoo, got %q", c.Data.Source))
	}
	if _, _, err := c.Data.DateRange(); err != nil {
		return err
	}

	// Strategy validation
	if c.Strategy.Name == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategy.name required"))
	}
	if c.Strategy.Window < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("strategy.window must be >= 1, got %d", c.Strategy.Window))
	}
	if !(c.Strategy.NumStd > 0) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("strategy.num_std must be > 0, got %v", c.Strategy.NumStd))
	}
	if c.Strategy.StdMode != "sample" && c.Strategy.StdMode != "population" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("strategy.std_mode must be sample or population, got %q", c.Strategy.StdMode))
	}

	// Backtest validation
	if math.IsNaN(c.Backtest.Fee) || c.Backtest.Fee < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.fee cannot be negative, got %v", c.Backtest.Fee))
	}
	if c.Backtest.RollingWindow < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.rolling_window must be >= 1, got %d", c.Backtest.RollingWindow))
	}

	// Export validation - storage only matters when exporting
	if c.Export.Enabled {
		if c.Export.Format != "csv" && c.Export.Format != "parquet" {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("export.format must be csv or parquet, got %q", c.Export.Format))
		}
		switch c.Storage.Type {
		case "localfs":
			if c.Storage.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.path required when type is localfs"))
			}
		case "s3":
			if c.Storage.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.s3.bucket required when type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("storage.type must be localfs or s3, got %q", c.Storage.Type))
		}
	}

	// Sweep validation
	for _, w := range c.Sweep.Windows {
		if w < 1 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("sweep.windows must all be >= 1, got %d", w))
		}
	}
	for _, k := range c.Sweep.NumStds {
		if !(k > 0) {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("sweep.num_stds must all be > 0, got %v", k))
		}
	}
	if c.Sweep.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sweep.workers cannot be negative, got %d", c.Sweep.Workers))
	}

	return nil
}
