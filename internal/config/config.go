package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

type OTPConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts"`
	// ExposeCode: отдавать код в ответе /send. По умолчанию включено вне production.
	ExposeCode *bool         `yaml:"expose_code"`
	SendLimit  int           `yaml:"send_limit"` // 0 = без ограничения
	SendWindow time.Duration `yaml:"send_window"`
	HashCost   int           `yaml:"hash_cost"`
}

type SMSConfig struct {
	Provider    string        `yaml:"provider"` // fast2sms | mobizon
	APIKey      string        `yaml:"api_key"`
	SenderID    string        `yaml:"sender_id"`
	BaseURL     string        `yaml:"base_url"`
	CountryCode string        `yaml:"country_code"`
	Timeout     time.Duration `yaml:"timeout"`
	Fallback    string        `yaml:"fallback"` // log | none
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	JWT      JWTConfig `yaml:"jwt"`
	OTP      OTPConfig `yaml:"otp"`
	SMS      SMSConfig `yaml:"sms"`
	Sessions struct {
		Driver string `yaml:"driver"` // memory | redis
	} `yaml:"sessions"`
	Users struct {
		Driver      string `yaml:"driver"` // memory | postgres | mongo
		EmailDomain string `yaml:"email_domain"`
	} `yaml:"users"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Events struct {
		AMQPURL  string `yaml:"amqp_url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"events"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.App.Env = "development"
	cfg.JWT.Issuer = "farmmarket"
	cfg.JWT.TTL = 7 * 24 * time.Hour
	cfg.OTP.TTL = 10 * time.Minute
	cfg.OTP.MaxAttempts = 3
	cfg.OTP.SendLimit = 5
	cfg.OTP.SendWindow = 10 * time.Minute
	cfg.SMS.Provider = "fast2sms"
	cfg.SMS.CountryCode = "91"
	cfg.SMS.Timeout = 10 * time.Second
	cfg.SMS.Fallback = "log"
	cfg.Sessions.Driver = "memory"
	cfg.Users.Driver = "memory"
	cfg.Users.EmailDomain = "mobile.farmmarket.in"
	cfg.Mongo.Database = "farmmarket"
	cfg.Events.Exchange = "farmmarket.auth"
	return cfg
}

// envBindings: ключ конфигурации и переменная окружения, которая его перекрывает.
var envBindings = map[string]string{
	"app.env":         "APP_ENV",
	"server.port":     "PORT",
	"jwt.secret":      "JWT_SECRET",
	"otp.expose_code": "OTP_EXPOSE_CODE",
	"sms.provider":    "SMS_PROVIDER",
	"sms.api_key":     "SMS_API_KEY",
	"sms.sender_id":   "SMS_SENDER_ID",
	"sms.fallback":    "SMS_FALLBACK",
	"sessions.driver": "SESSIONS_DRIVER",
	"users.driver":    "USERS_DRIVER",
	"redis.url":       "REDIS_URL",
	"database.url":    "DATABASE_URL",
	"mongo.uri":       "MONGO_URI",
	"events.amqp_url": "AMQP_URL",
}

// Load читает .env (если есть), YAML-файл (если есть) и переменные окружения. Каждый следующий источник перекрывает предыдущий.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}
	v := viper.New()
	if err := mergeFile(v, path); err != nil {
		return nil, err
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := defaults()
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var raw map[string]any
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return v.MergeConfigMap(raw)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// ExposeCode: возвращать ли код клиенту (только для разработки и тестов).
func (c *Config) ExposeCode() bool {
	if c.OTP.ExposeCode != nil {
		return *c.OTP.ExposeCode
	}
	return !c.IsProduction()
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port (PORT) out of range: %d", c.Server.Port)
	}
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret (JWT_SECRET) must be set")
	}
	if c.IsProduction() && c.OTP.ExposeCode != nil && *c.OTP.ExposeCode {
		return errors.New("config: otp.expose_code must not be true when app.env=production")
	}
	if c.OTP.TTL <= 0 || c.OTP.MaxAttempts <= 0 {
		return errors.New("config: otp.ttl and otp.max_attempts must be positive")
	}
	if c.OTP.SendLimit < 0 {
		return errors.New("config: otp.send_limit must not be negative")
	}
	if c.OTP.SendLimit > 0 && c.OTP.SendWindow <= 0 {
		return errors.New("config: otp.send_window must be positive when send_limit is set")
	}
	switch c.SMS.Provider {
	case "fast2sms", "mobizon":
	default:
		return fmt.Errorf("config: unknown sms.provider %q", c.SMS.Provider)
	}
	switch c.SMS.Fallback {
	case "log", "none":
	default:
		return fmt.Errorf("config: unknown sms.fallback %q", c.SMS.Fallback)
	}
	switch c.Sessions.Driver {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("config: redis.url (REDIS_URL) is required for sessions.driver=redis")
		}
	default:
		return fmt.Errorf("config: unknown sessions.driver %q", c.Sessions.Driver)
	}
	switch c.Users.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("config: database.url (DATABASE_URL) is required for users.driver=postgres")
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("config: mongo.uri (MONGO_URI) is required for users.driver=mongo")
		}
	default:
		return fmt.Errorf("config: unknown users.driver %q", c.Users.Driver)
	}
	return nil
}
