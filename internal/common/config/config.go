package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int
	LogLevel     string

	// Persistence
	StorageDriver string // sqlite | file
	DBPath        string
	DataDir       string

	// Editor
	SymbolCatalog   string
	DragThreshold   float64
	AutosaveDelayMS int
	HistoryLimit    int

	// Gateway
	GatewayPort string
	PlannerURL  string
}

const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Load reads configuration from the environment and, when PLANNER_CONFIG
// names a file, from that YAML file. Environment wins over the file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("planner_config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		Environment:     v.GetString("env"),
		ReadTimeout:     v.GetInt("read_timeout"),
		WriteTimeout:    v.GetInt("write_timeout"),
		LogLevel:        v.GetString("log_level"),
		StorageDriver:   strings.ToLower(v.GetString("storage_driver")),
		DBPath:          v.GetString("db_path"),
		DataDir:         v.GetString("data_dir"),
		SymbolCatalog:   v.GetString("symbol_catalog"),
		DragThreshold:   v.GetFloat64("drag_threshold"),
		AutosaveDelayMS: v.GetInt("autosave_delay_ms"),
		HistoryLimit:    v.GetInt("history_limit"),
		GatewayPort:     v.GetString("gateway_port"),
		PlannerURL:      v.GetString("planner_url"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load for main packages that cannot continue without config.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.DragThreshold < 0 {
		return fmt.Errorf("drag threshold must be >= 0, got %v", c.DragThreshold)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit must be >= 0, got %d", c.HistoryLimit)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3003")
	v.SetDefault("env", "development")
	v.SetDefault("read_timeout", 10)
	v.SetDefault("write_timeout", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage_driver", DriverSQLite)
	v.SetDefault("db_path", "data/db/planner.db")
	v.SetDefault("data_dir", "data/documents")
	v.SetDefault("symbol_catalog", "")
	v.SetDefault("drag_threshold", 3.0)
	v.SetDefault("autosave_delay_ms", 500)
	v.SetDefault("history_limit", 100)
	v.SetDefault("gateway_port", "3000")
	v.SetDefault("planner_url", "http://localhost:3003")
	v.SetDefault("planner_config", "")
}
