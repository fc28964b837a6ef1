package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverBolt, cfg.Store.Driver)
	assert.True(t, cfg.Store.Degrade)
	assert.Equal(t, int64(25<<20), cfg.Intake.MaxFileSize)
	assert.Contains(t, cfg.Intake.AllowedTypes, "application/pdf")
	assert.Equal(t, 2, cfg.Intake.Workers)
	assert.Equal(t, 7*24*time.Hour, cfg.Share.TTL)
	assert.Len(t, cfg.Share.Secret, 32)
	assert.False(t, cfg.S3.Enabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SIGNDESK_STORE_DRIVER", "sqlite")
	t.Setenv("SIGNDESK_STORE_PATH", "/tmp/docs.sqlite")
	t.Setenv("SIGNDESK_SHARE_SECRET", "topsecret")
	t.Setenv("SIGNDESK_INTAKE_ALLOWED_TYPES", "application/pdf, text/plain ,")
	t.Setenv("SIGNDESK_SERVER_PUBLIC_ORIGIN", "https://docs.example.com/")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/docs.sqlite", cfg.Store.Path)
	assert.Equal(t, []byte("topsecret"), cfg.Share.Secret)
	assert.Equal(t, []string{"application/pdf", "text/plain"}, cfg.Intake.AllowedTypes)
	assert.Equal(t, "https://docs.example.com", cfg.Server.PublicOrigin)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("SIGNDESK_STORE_DRIVER", "sqlite")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--store.driver=memory", "--server.address=:9999"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ":9999", cfg.Server.Address)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signdesk.yaml")
	content := "store:\n  driver: memory\nmail:\n  api_key: re_test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config=" + path}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "re_test", cfg.Mail.APIKey)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			LogLevel: "info",
			Server:   ServerConfig{Address: ":8080"},
			Store:    StoreConfig{Driver: DriverMemory},
			Intake:   IntakeConfig{MaxFileSize: 1},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid memory", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: true},
		{name: "bolt without path", mutate: func(c *Config) { c.Store.Driver = DriverBolt }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = DriverPostgres }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "empty address", mutate: func(c *Config) { c.Server.Address = "" }, wantErr: true},
		{name: "zero file size", mutate: func(c *Config) { c.Intake.MaxFileSize = 0 }, wantErr: true},
		{name: "async without shared state", mutate: func(c *Config) { c.Intake.Async = true }, wantErr: true},
		{name: "async with postgres and s3", mutate: func(c *Config) {
			c.Intake.Async = true
			c.Store = StoreConfig{Driver: DriverPostgres, DatabaseURL: "postgres://localhost/signdesk"}
			c.S3.Endpoint = "localhost:9000"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultWorkerCount, cfg.Intake.Workers)
			assert.Equal(t, defaultShareTTL, cfg.Share.TTL)
		})
	}
}
