package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apexrush.cfg.json"), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"race": { "laps": 5, "rivals": 9 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 5, viper.GetInt("race.laps"))
	assert.Equal(t, 9, viper.GetInt("race.rivals"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "./tracks/harbor_loop.json", viper.GetString("track.file"))
	assert.Equal(t, 3, viper.GetInt("race.laps"))
	assert.Equal(t, 5, viper.GetInt("race.rivals"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./races", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "apexrush-metrics", viper.GetString("influx.org"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetRaceConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	cfg := GetRaceConfig()
	assert.Equal(t, 3, cfg.Laps)
	assert.Equal(t, 5, cfg.Rivals)
	assert.Equal(t, -25.0, cfg.KillPlaneY)
	assert.Equal(t, 55.0, cfg.Vehicle.MaxSpeed)
	assert.Equal(t, 100.0, cfg.Vehicle.NitroCapacity)
	assert.Equal(t, 0.05, cfg.Rival.RubberBandMargin)
}

func TestGetRaceConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"race": { "laps": 7, "killPlaneY": -40 },
		"vehicle": { "maxSpeed": 72.5, "nitroCapacity": 150 },
		"rival": { "rubberBandMargin": 0.1, "laneWidth": 12 }
	}`)
	require.NoError(t, Load(dir))

	cfg := GetRaceConfig()
	assert.Equal(t, 7, cfg.Laps)
	assert.Equal(t, -40.0, cfg.KillPlaneY)
	assert.Equal(t, 72.5, cfg.Vehicle.MaxSpeed)
	assert.Equal(t, 150.0, cfg.Vehicle.NitroCapacity)
	// untouched tunables keep their defaults
	assert.Equal(t, 28.0, cfg.Vehicle.Acceleration)
	assert.Equal(t, 0.1, cfg.Rival.RubberBandMargin)
	assert.Equal(t, 12.0, cfg.Rival.LaneWidth)
}

func TestGetStorageConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/races.db", "dumpInterval": "10m" }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/races.db", sc.SQLite.Path)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
}

func TestGetDBConfig_DSN(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"db": { "host": "10.0.0.1", "port": "5433", "username": "racer", "password": "pw", "database": "races" }
	}`)
	require.NoError(t, Load(dir))

	dc := GetDBConfig()
	assert.Equal(t, "10.0.0.1", dc.Host)
	assert.Equal(t,
		"host=10.0.0.1 port=5433 user=racer password=pw dbname=races sslmode=disable",
		dc.DSN())
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"influx": { "enabled": true, "host": "db.example.com", "token": "tok" }
	}`)
	require.NoError(t, Load(dir))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "db.example.com", ic.Host)
	assert.Equal(t, "tok", ic.Token)
	assert.Equal(t, "8086", ic.Port)
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{"api": {"serverUrl": "https://results.example.com", "apiKey": "k"}}`)
	require.NoError(t, Load(dir))

	ac := GetAPIConfig()
	assert.Equal(t, "https://results.example.com", ac.ServerURL)
	assert.Equal(t, "k", ac.APIKey)
}
