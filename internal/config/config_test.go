package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultServerPort, cfg.Server.Port)
	assert.Equal(t, defaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, defaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, Defaults(), cfg.Broadcast)
	assert.Equal(t, 20, cfg.Broadcast.WindowSize)
	assert.Equal(t, 20*time.Second, cfg.Broadcast.StarvationCooldown)
	assert.Equal(t, 5*time.Minute, cfg.Inactivity.WaitingForCurator)
	assert.Equal(t, defaultFFmpegPath, cfg.Segmenter.FFmpegPath)
	assert.Equal(t, defaultFFprobePath, cfg.Segmenter.FFprobePath)
	assert.Empty(t, cfg.Events.RedisAddr)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BROADCASTER_SERVER_PORT", "9090")
	t.Setenv("BROADCASTER_BROADCAST_WINDOWSIZE", "6")
	t.Setenv("BROADCASTER_BROADCAST_SWEEPLOWWATER", "6")
	t.Setenv("BROADCASTER_BROADCAST_STARVATIONCOOLDOWN", "45s")
	t.Setenv("BROADCASTER_EVENTS_REDISADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Broadcast.WindowSize)
	assert.Equal(t, 45*time.Second, cfg.Broadcast.StarvationCooldown)
	assert.Equal(t, "localhost:6379", cfg.Events.RedisAddr)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "broadcaster.yaml")
	content := []byte("broadcast:\n  regularcapacity: 6\n  saturationthreshold: 3\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Broadcast.RegularCapacity)
	assert.Equal(t, 3, cfg.Broadcast.SaturationThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
			Database: DatabaseConfig{ConnectionTimeout: time.Second},
			Logging:  LoggingConfig{Level: "info"},
			Broadcast: Defaults(),
			Inactivity: InactivityConfig{
				Interval:          time.Minute,
				WaitingForCurator: 5 * time.Minute,
				Idle:              8 * time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"safety buffer below two", func(c *Config) { c.Broadcast.SafetyBuffer = 1 }, true},
		{"zero window", func(c *Config) { c.Broadcast.WindowSize = 0 }, true},
		{"low water below window", func(c *Config) { c.Broadcast.SweepLowWater = 5 }, true},
		{"high water below low water", func(c *Config) { c.Broadcast.SweepHighWater = 10 }, true},
		{"inverted inactivity thresholds", func(c *Config) { c.Inactivity.Idle = time.Minute }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
