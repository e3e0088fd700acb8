package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

// ConfigFileEnv names an optional YAML file applied before environment overrides.
const ConfigFileEnv = "VIBECART_CONFIG"

type Config struct {
	HTTPPort           string        `yaml:"http_port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	CORSOrigins        []string      `yaml:"cors_origins"`

	CartStore     string `yaml:"cart_store"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDBName   string `yaml:"mongo_db_name"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	MongoPool MongoPool `yaml:"mongo_pool"`

	CatalogDriver string `yaml:"catalog_driver"`
	CatalogDSN    string `yaml:"catalog_dsn"`

	Currency string `yaml:"currency"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	ReceiptTopic string   `yaml:"receipt_topic"`

	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	MailFrom       string `yaml:"mail_from"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	currency currency.Unit
}

// MongoPool sizes the cart store's driver pool. One cart request holds at most
// one connection, so MaxSize caps concurrent cart operations per instance.
type MongoPool struct {
	MaxSize        uint64        `yaml:"max_size"`
	MinSize        uint64        `yaml:"min_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:           "4000",
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
		CORSOrigins:        []string{"http://localhost:5173", "https://cart-three-red.vercel.app"},
		CartStore:          StoreMemory,
		MongoURI:           "mongodb://localhost:27017",
		MongoDBName:        "vibecart",
		MongoPool: MongoPool{
			MaxSize:        50,
			MinSize:        0,
			ConnectTimeout: 10 * time.Second,
		},
		RedisAddr:          "localhost:6379",
		CatalogDriver:      "sqlite",
		CatalogDSN:         "./products.db",
		Currency:           "INR",
		ReceiptTopic:       "checkout-receipts",
		MailFrom:           "receipts@vibecart.local",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load reads defaults, then the optional YAML file, then the environment.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	env := &envReader{}
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.RequestTimeout = env.duration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ShutdownTimeout = env.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxRequestBodySize = env.int64("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.CORSOrigins = getList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.CartStore = getEnv("CART_STORE", cfg.CartStore)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDBName = getEnv("MONGO_DB_NAME", cfg.MongoDBName)
	cfg.MongoPool.MaxSize = env.uint64("MONGO_MAX_POOL_SIZE", cfg.MongoPool.MaxSize)
	cfg.MongoPool.MinSize = env.uint64("MONGO_MIN_POOL_SIZE", cfg.MongoPool.MinSize)
	cfg.MongoPool.ConnectTimeout = env.duration("MONGO_CONNECT_TIMEOUT", cfg.MongoPool.ConnectTimeout)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.CatalogDriver = getEnv("CATALOG_DRIVER", cfg.CatalogDriver)
	cfg.CatalogDSN = getEnv("CATALOG_DSN", cfg.CatalogDSN)
	cfg.Currency = getEnv("CURRENCY", cfg.Currency)
	cfg.KafkaBrokers = getList("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ReceiptTopic = getEnv("RECEIPT_TOPIC", cfg.ReceiptTopic)
	cfg.SendGridAPIKey = getEnv("SENDGRID_API_KEY", cfg.SendGridAPIKey)
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.MailFrom)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	if env.err != nil {
		return nil, env.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.CartStore {
	case StoreMemory, StoreMongo, StoreRedis:
	default:
		return fmt.Errorf("unknown CART_STORE %q", c.CartStore)
	}

	switch c.CatalogDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown CATALOG_DRIVER %q", c.CatalogDriver)
	}

	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return fmt.Errorf("invalid CURRENCY %q: %w", c.Currency, err)
	}
	c.currency = unit

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be positive")
	}
	if c.MongoPool.MaxSize == 0 {
		return fmt.Errorf("MONGO_MAX_POOL_SIZE must be positive")
	}
	if c.MongoPool.MinSize > c.MongoPool.MaxSize {
		return fmt.Errorf("MONGO_MIN_POOL_SIZE %d exceeds MONGO_MAX_POOL_SIZE %d", c.MongoPool.MinSize, c.MongoPool.MaxSize)
	}
	if c.MongoPool.ConnectTimeout <= 0 {
		return fmt.Errorf("MONGO_CONNECT_TIMEOUT must be positive")
	}
	return nil
}

// CurrencyUnit is the parsed Currency; valid after Validate.
func (c *Config) CurrencyUnit() currency.Unit {
	return c.currency
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables, collecting every malformed value instead
// of falling back to the default.
type envReader struct {
	err error
}

func (r *envReader) fail(key, value string, err error) {
	r.err = errors.Join(r.err, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (r *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (r *envReader) int64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (r *envReader) uint64(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
