package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Quota     QuotaConfig
	Detection DetectionConfig
	ML        MLConfig
	Extractor ExtractorConfig
	Reader    ReaderConfig
	NATS      NATSConfig
	XMPP      XMPPConfig
	Admin     AdminConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// AdminConfig lists accounts allowed to call the administrative endpoints.
type AdminConfig struct {
	Emails []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// RateLimitConfig drives the ephemeral Redis throttle windows. The Auth
// pair is the per-IP limit on the unauthenticated auth endpoints.
type RateLimitConfig struct {
	Enabled       bool
	PerMinute     int64
	PerHour       int64
	AuthRequests  int
	AuthWindowSec int
}

// QuotaConfig drives the durable daily/monthly quotas stored in Postgres.
type QuotaConfig struct {
	DailyDefault   int64
	MonthlyDefault int64
}

type DetectionConfig struct {
	MaxFileSizeMB     int64
	AllowedExtensions []string
}

func (c DetectionConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// MLConfig points at the inference microservice.
type MLConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ExtractorConfig points at the document text-extraction service.
type ExtractorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ReaderConfig points at the URL-to-markdown reader service.
type ReaderConfig struct {
	BaseURL string
	Timeout time.Duration
}

type NATSConfig struct {
	URL string
}

type XMPPConfig struct {
	Address   string
	Domain    string
	Secret    string
	BotDomain string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        k.String("server.host"),
			Port:        k.Int("server.port"),
			CORSOrigins: k.Strings("cors.allowed.origins"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			PerMinute:     k.Int64("rate.limit.per.minute"),
			PerHour:       k.Int64("rate.limit.per.hour"),
			AuthRequests:  k.Int("rate.limit.auth.requests"),
			AuthWindowSec: k.Int("rate.limit.auth.window.sec"),
		},
		Quota: QuotaConfig{
			DailyDefault:   k.Int64("quota.daily.default"),
			MonthlyDefault: k.Int64("quota.monthly.default"),
		},
		Detection: DetectionConfig{
			MaxFileSizeMB:     k.Int64("detection.max.file.size.mb"),
			AllowedExtensions: k.Strings("detection.allowed.extensions"),
		},
		ML: MLConfig{
			BaseURL: k.String("ml.base.url"),
		},
		Extractor: ExtractorConfig{
			BaseURL: k.String("extractor.base.url"),
		},
		Reader: ReaderConfig{
			BaseURL: k.String("reader.base.url"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		XMPP: XMPPConfig{
			Address:   k.String("xmpp.address"),
			Domain:    k.String("xmpp.domain"),
			Secret:    k.String("xmpp.secret"),
			BotDomain: k.String("xmpp.bot.domain"),
		},
		Admin: AdminConfig{
			Emails: k.Strings("admin.emails"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if k.Exists("rate.limit.enabled") {
		cfg.RateLimit.Enabled = k.Bool("rate.limit.enabled")
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "textra"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "textra"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = 10
	}
	if cfg.RateLimit.PerHour == 0 {
		cfg.RateLimit.PerHour = 100
	}
	if cfg.RateLimit.AuthRequests == 0 {
		cfg.RateLimit.AuthRequests = 20
	}
	if cfg.RateLimit.AuthWindowSec == 0 {
		cfg.RateLimit.AuthWindowSec = 60
	}
	if cfg.Quota.DailyDefault == 0 {
		cfg.Quota.DailyDefault = 100
	}
	if cfg.Quota.MonthlyDefault == 0 {
		cfg.Quota.MonthlyDefault = 1000
	}
	if cfg.Detection.MaxFileSizeMB == 0 {
		cfg.Detection.MaxFileSizeMB = 10
	}
	if len(cfg.Detection.AllowedExtensions) == 0 {
		cfg.Detection.AllowedExtensions = []string{".txt", ".pdf", ".doc", ".docx", ".rtf"}
	}
	if cfg.ML.BaseURL == "" {
		cfg.ML.BaseURL = "http://localhost:8500"
	}
	if cfg.Extractor.BaseURL == "" {
		cfg.Extractor.BaseURL = "http://localhost:8600"
	}
	if cfg.Reader.BaseURL == "" {
		cfg.Reader.BaseURL = "https://r.jina.ai"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.XMPP.Address == "" {
		cfg.XMPP.Address = "localhost:5347"
	}
	if cfg.XMPP.Domain == "" {
		cfg.XMPP.Domain = "textra.local"
	}
	if cfg.XMPP.BotDomain == "" {
		cfg.XMPP.BotDomain = "bot." + cfg.XMPP.Domain
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.JWT.AccessExpiry, err = parseDuration(k.String("jwt.access.expiry"), "15m", "jwt access expiry")
	if err != nil {
		return nil, err
	}
	cfg.JWT.RefreshExpiry, err = parseDuration(k.String("jwt.refresh.expiry"), "168h", "jwt refresh expiry")
	if err != nil {
		return nil, err
	}
	cfg.ML.Timeout, err = parseDuration(k.String("ml.timeout"), "30s", "ml timeout")
	if err != nil {
		return nil, err
	}
	cfg.Extractor.Timeout, err = parseDuration(k.String("extractor.timeout"), "60s", "extractor timeout")
	if err != nil {
		return nil, err
	}
	cfg.Reader.Timeout, err = parseDuration(k.String("reader.timeout"), "30s", "reader timeout")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(raw, fallback, what string) (time.Duration, error) {
	if raw == "" {
		raw = fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", what, err)
	}
	return d, nil
}
