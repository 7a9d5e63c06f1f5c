// Package config loads the JSON configuration file and exposes typed
// accessors over viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/apexrush/simulation/internal/race"
)

// MemoryConfig holds in-memory/JSON archive backend settings.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the local SQLite archive backend settings.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the race archive backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN renders the connection string for the gorm postgres driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds telemetry export settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// GraylogConfig holds the optional GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// APIConfig holds the results upload endpoint settings.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// Load reads configuration from the JSON file in configDir and sets
// default values.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("track.file", "./tracks/harbor_loop.json")

	viper.SetDefault("race.laps", 3)
	viper.SetDefault("race.rivals", 5)
	viper.SetDefault("race.seed", 1)
	viper.SetDefault("race.killPlaneY", -25.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./races")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./races/apexrush.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "apexrush")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "apexrush-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetConfigName("apexrush.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetRaceConfig returns the race staging configuration. Tunables the
// file does not mention keep their defaults.
func GetRaceConfig() race.Config {
	cfg := race.DefaultConfig()
	_ = viper.UnmarshalKey("race", &cfg)
	_ = viper.UnmarshalKey("vehicle", &cfg.Vehicle)
	_ = viper.UnmarshalKey("rival", &cfg.Rival)
	return cfg
}

// GetStorageConfig returns the archive backend configuration.
func GetStorageConfig() StorageConfig {
	var cfg StorageConfig
	_ = viper.UnmarshalKey("storage", &cfg)
	return cfg
}

// GetDBConfig returns the PostgreSQL configuration.
func GetDBConfig() DBConfig {
	var cfg DBConfig
	_ = viper.UnmarshalKey("db", &cfg)
	return cfg
}

// GetInfluxConfig returns the telemetry export configuration.
func GetInfluxConfig() InfluxConfig {
	var cfg InfluxConfig
	_ = viper.UnmarshalKey("influx", &cfg)
	return cfg
}

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	var cfg GraylogConfig
	_ = viper.UnmarshalKey("graylog", &cfg)
	return cfg
}

// GetAPIConfig returns the results upload configuration.
func GetAPIConfig() APIConfig {
	var cfg APIConfig
	_ = viper.UnmarshalKey("api", &cfg)
	return cfg
}
