// Package config centralizes how SignDesk reads its settings. Values come from
// (lowest to highest priority) built-in defaults, an optional config file,
// SIGNDESK_* environment variables, and command-line flags.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

const (
	envPrefix = "SIGNDESK"

	defaultAddress      = ":8080"
	defaultMaxFileSize  = 25 << 20 // 25 MiB
	defaultAllowedTypes = "application/pdf,text/plain,application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	defaultShareTTL     = 7 * 24 * time.Hour
	defaultPresignTTL   = 15 * time.Minute
	defaultWorkerCount  = 2
	defaultAgentURL     = "https://agent-prod.studio.lyzr.ai/v3/inference/chat/"
	defaultMailURL      = "https://api.resend.com/"
)

// Config represents runtime configuration for every SignDesk binary.
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Store       StoreConfig
	Redis       RedisConfig
	S3          S3Config
	Agent       AgentConfig
	Mail        MailConfig
	Share       ShareConfig
	Intake      IntakeConfig
	Search      SearchConfig
}

type ServerConfig struct {
	Address      string
	PublicOrigin string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StoreConfig struct {
	Driver      string
	Path        string
	DatabaseURL string
	// Degrade switches to the no-op store when the medium cannot be opened.
	Degrade bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config is optional; with an empty Endpoint artifacts stay in memory.
type S3Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	RawBucket      string
	ArtifactBucket string
	AssetBucket    string
	PresignTTL     time.Duration
}

// AgentConfig points at the AI agent platform. Each role has its own agent id;
// a role without an id cannot be called.
type AgentConfig struct {
	BaseURL            string
	APIKey             string
	UserID             string
	Timeout            time.Duration
	ContentGenerator   string
	ToneAdjuster       string
	LegalClauses       string
	SectionRegenerator string
	Validator          string
}

type MailConfig struct {
	Endpoint string
	APIKey   string
	From     string
	ReplyTo  string
	LogoURL  string
	SiteURL  string
}

type ShareConfig struct {
	Secret []byte
	TTL    time.Duration
}

type IntakeConfig struct {
	MaxFileSize  int64
	AllowedTypes []string
	Workers      int
	// Async hands uploads to the asynq worker instead of the in-process pool.
	Async bool
}

type SearchConfig struct {
	IndexPath string
}

// Enabled reports whether object storage is configured.
func (c S3Config) Enabled() bool {
	return c.Endpoint != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("server.address", defaultAddress)
	v.SetDefault("server.public_origin", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("store.driver", DriverBolt)
	v.SetDefault("store.path", "signdesk.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.degrade", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.raw_bucket", "signdesk-uploads")
	v.SetDefault("s3.artifact_bucket", "signdesk-artifacts")
	v.SetDefault("s3.asset_bucket", "signdesk-assets")
	v.SetDefault("s3.presign_ttl", defaultPresignTTL)

	v.SetDefault("agent.base_url", defaultAgentURL)
	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.user_id", "")
	v.SetDefault("agent.timeout", time.Duration(0))
	v.SetDefault("agent.content_generator", "")
	v.SetDefault("agent.tone_adjuster", "")
	v.SetDefault("agent.legal_clauses", "")
	v.SetDefault("agent.section_regenerator", "")
	v.SetDefault("agent.validator", "")

	v.SetDefault("mail.endpoint", defaultMailURL)
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.from", "SignDesk <noreply@signdesk.local>")
	v.SetDefault("mail.reply_to", "")
	v.SetDefault("mail.logo_url", "")
	v.SetDefault("mail.site_url", "")

	v.SetDefault("share.secret", "")
	v.SetDefault("share.ttl", defaultShareTTL)

	v.SetDefault("intake.max_file_size", defaultMaxFileSize)
	v.SetDefault("intake.allowed_types", defaultAllowedTypes)
	v.SetDefault("intake.workers", defaultWorkerCount)
	v.SetDefault("intake.async", false)

	v.SetDefault("search.index_path", "")
}

// BindFlags registers the flags the server binaries understand. Flag names use
// the same dotted keys as the config file so viper can bind them one to one.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file (yaml, json, or toml)")
	fs.String("server.address", defaultAddress, "HTTP listen address")
	fs.String("store.driver", DriverBolt, "Document store: memory, bolt, sqlite, postgres, none")
	fs.String("store.path", "signdesk.db", "Store file for bolt/sqlite")
	fs.String("store.database_url", "", "Postgres DSN for the postgres store")
	fs.String("log.level", "info", "Log level (debug, info, warn, error)")
	fs.String("environment", "development", "Runtime environment (development, production)")
}

// Load reads configuration. fs may be nil when no flags were parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if len(cfg.Share.Secret) == 0 {
		// Without a configured secret share links only survive one process lifetime.
		cfg.Share.Secret = randomSecret()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("log.level"),
		Server: ServerConfig{
			Address:      v.GetString("server.address"),
			PublicOrigin: strings.TrimRight(v.GetString("server.public_origin"), "/"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			Path:        v.GetString("store.path"),
			DatabaseURL: v.GetString("store.database_url"),
			Degrade:     v.GetBool("store.degrade"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		S3: S3Config{
			Endpoint:       v.GetString("s3.endpoint"),
			AccessKey:      v.GetString("s3.access_key"),
			SecretKey:      v.GetString("s3.secret_key"),
			Region:         v.GetString("s3.region"),
			UseSSL:         v.GetBool("s3.use_ssl"),
			RawBucket:      v.GetString("s3.raw_bucket"),
			ArtifactBucket: v.GetString("s3.artifact_bucket"),
			AssetBucket:    v.GetString("s3.asset_bucket"),
			PresignTTL:     v.GetDuration("s3.presign_ttl"),
		},
		Agent: AgentConfig{
			BaseURL: v.GetString("agent.base_url"),
			APIKey:  v.GetString("agent.api_key"),
			UserID:  v.GetString("agent.user_id"),
			Timeout: v.GetDuration("agent.timeout"),

			ContentGenerator:   v.GetString("agent.content_generator"),
			ToneAdjuster:       v.GetString("agent.tone_adjuster"),
			LegalClauses:       v.GetString("agent.legal_clauses"),
			SectionRegenerator: v.GetString("agent.section_regenerator"),
			Validator:          v.GetString("agent.validator"),
		},
		Mail: MailConfig{
			Endpoint: v.GetString("mail.endpoint"),
			APIKey:   v.GetString("mail.api_key"),
			From:     v.GetString("mail.from"),
			ReplyTo:  v.GetString("mail.reply_to"),
			LogoURL:  v.GetString("mail.logo_url"),
			SiteURL:  v.GetString("mail.site_url"),
		},
		Share: ShareConfig{
			Secret: []byte(v.GetString("share.secret")),
			TTL:    v.GetDuration("share.ttl"),
		},
		Intake: IntakeConfig{
			MaxFileSize:  v.GetInt64("intake.max_file_size"),
			AllowedTypes: parseList(v.GetString("intake.allowed_types")),
			Workers:      v.GetInt("intake.workers"),
			Async:        v.GetBool("intake.async"),
		},
		Search: SearchConfig{
			IndexPath: v.GetString("search.index_path"),
		},
	}
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverNone:
	case DriverBolt, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.Server.Address == "" {
		return errors.New("server.address cannot be empty")
	}
	if c.Intake.MaxFileSize <= 0 {
		return errors.New("intake.max_file_size must be positive")
	}
	if c.Intake.Async && (c.Store.Driver != DriverPostgres || !c.S3.Enabled()) {
		return errors.New("intake.async needs the postgres store and s3 so the worker shares upload state")
	}
	if c.Intake.Workers <= 0 {
		c.Intake.Workers = defaultWorkerCount
	}
	if c.Share.TTL <= 0 {
		c.Share.TTL = defaultShareTTL
	}
	if c.S3.PresignTTL <= 0 {
		c.S3.PresignTTL = defaultPresignTTL
	}
	return nil
}

// IsProduction reports whether production logging and defaults apply.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseList(val string) []string {
	out := strings.Split(val, ",")
	kept := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return kept
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte("signdesk-fallback-share-secret")
	}
	return buf
}
