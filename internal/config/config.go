package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"`
	LogLevel      string `yaml:"log_level"`

	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	SeedFile    string `yaml:"seed_file"`

	RedisAddr           string `yaml:"redis_addr"`
	RedisPassword       string `yaml:"redis_password"`
	RedisDB             int    `yaml:"redis_db"`
	SaleCacheTTLSeconds int    `yaml:"sale_cache_ttl_seconds"`

	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaTopicSales string   `yaml:"kafka_topic_sales"`
	KafkaTopicStock string   `yaml:"kafka_topic_stock"`

	AuthSecret            string `yaml:"auth_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`

	TransactionPrefix   string `yaml:"transaction_prefix"`
	Timezone            string `yaml:"timezone"`
	EnforceCatalogPrice bool   `yaml:"enforce_catalog_price"`
}

func defaults() Config {
	return Config{
		Port:                  "8080",
		AllowedOrigin:         "http://127.0.0.1:3000",
		LogLevel:              "info",
		SaleCacheTTLSeconds:   300,
		KafkaTopicSales:       "apotek.sales",
		KafkaTopicStock:       "apotek.stock",
		AccessTokenTTLMinutes: 480,
		TransactionPrefix:     "TRX",
		Timezone:              "Asia/Jakarta",
	}
}

// Load layers defaults, the optional YAML file named by CONFIG_FILE, a .env
// file (ENV_FILE, default ".env") and the process environment, later layers
// winning. Variables already set in the environment are not overridden by .env.
func Load() (Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.TransactionPrefix = strings.TrimSpace(cfg.TransactionPrefix)

	if cfg.SaleCacheTTLSeconds < 1 {
		cfg.SaleCacheTTLSeconds = 300
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	lookupString(&c.Port, "PORT")
	lookupString(&c.AllowedOrigin, "ALLOWED_ORIGIN")
	lookupString(&c.LogLevel, "LOG_LEVEL")
	lookupString(&c.DatabaseURL, "DATABASE_URL")
	lookupString(&c.SQLitePath, "SQLITE_PATH")
	lookupString(&c.SeedFile, "SEED_FILE")
	lookupString(&c.RedisAddr, "REDIS_ADDR")
	lookupString(&c.RedisPassword, "REDIS_PASSWORD")
	lookupString(&c.KafkaTopicSales, "KAFKA_TOPIC_SALES")
	lookupString(&c.KafkaTopicStock, "KAFKA_TOPIC_STOCK")
	lookupString(&c.AuthSecret, "AUTH_SECRET")
	lookupString(&c.TransactionPrefix, "TRANSACTION_PREFIX")
	lookupString(&c.Timezone, "TIMEZONE")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	for key, dst := range map[string]*int{
		"REDIS_DB":                 &c.RedisDB,
		"SALE_CACHE_TTL_SECONDS":   &c.SaleCacheTTLSeconds,
		"ACCESS_TOKEN_TTL_MINUTES": &c.AccessTokenTTLMinutes,
	} {
		if err := lookupInt(dst, key); err != nil {
			return err
		}
	}

	if v := os.Getenv("ENFORCE_CATALOG_PRICE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENFORCE_CATALOG_PRICE: %w", err)
		}
		c.EnforceCatalogPrice = enabled
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) SaleCacheTTL() time.Duration {
	return time.Duration(c.SaleCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func lookupString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func lookupInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
