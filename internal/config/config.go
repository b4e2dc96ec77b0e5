package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Firebase FirebaseConfig `yaml:"firebase"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"` // gin mode: debug, release, test
	CORSOrigins []string `yaml:"cors_origins"`
	Timezone    string   `yaml:"timezone"`
}

type DatabaseConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Name         string        `yaml:"name"`
	SSLMode      string        `yaml:"sslmode"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// DSN renders the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type RedisConfig struct {
	URL string `yaml:"url"` // empty disables Redis-backed features
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"` // empty keeps domain events in-process
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	NonceTTL       time.Duration `yaml:"nonce_ttl"`
	NoncesPerMin   int           `yaml:"nonces_per_minute"`
	AdminAddresses []string      `yaml:"admin_addresses"`
}

type StorageConfig struct {
	AWSRegion    string `yaml:"aws_region"`
	AWSAccessKey string `yaml:"aws_access_key_id"`
	AWSSecretKey string `yaml:"aws_secret_access_key"`
	Bucket       string `yaml:"bucket"`
	UploadDir    string `yaml:"upload_dir"`
	BaseURL      string `yaml:"base_url"`
}

// UseS3 reports whether enough AWS settings are present to talk to S3.
func (s StorageConfig) UseS3() bool {
	return s.AWSRegion != "" && s.AWSAccessKey != "" && s.AWSSecretKey != "" && s.Bucket != ""
}

type FirebaseConfig struct {
	ServiceAccountPath string `yaml:"service_account_path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Mode:        "release",
			CORSOrigins: []string{"*"},
			Timezone:    "Local",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			Name:         "ridepool",
			SSLMode:      "disable",
			MaxIdleConns: 10,
			MaxOpenConns: 100,
			ConnLifetime: time.Hour,
		},
		RabbitMQ: RabbitMQConfig{
			Exchange: "ridepool.events",
			Queue:    "ridepool.push",
		},
		Auth: AuthConfig{
			TokenTTL:     7 * 24 * time.Hour,
			NonceTTL:     5 * time.Minute,
			NoncesPerMin: 10,
		},
		Storage: StorageConfig{
			UploadDir: "./uploads",
			BaseURL:   "http://localhost:8080",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then applies environment overrides on top.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()

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

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	setList(&c.Server.CORSOrigins, "CORS_ORIGINS")
	setString(&c.Server.Timezone, "SERVER_TIMEZONE")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setInt(&c.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS")
	setInt(&c.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS")

	setString(&c.Redis.URL, "REDIS_URL")

	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&c.RabbitMQ.Exchange, "RABBITMQ_EXCHANGE")
	setString(&c.RabbitMQ.Queue, "RABBITMQ_QUEUE")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setDuration(&c.Auth.TokenTTL, "JWT_TTL")
	setDuration(&c.Auth.NonceTTL, "AUTH_NONCE_TTL")
	setInt(&c.Auth.NoncesPerMin, "AUTH_NONCES_PER_MINUTE")
	setList(&c.Auth.AdminAddresses, "ADMIN_ADDRESSES")

	setString(&c.Storage.AWSRegion, "AWS_REGION")
	setString(&c.Storage.AWSAccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.AWSSecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Storage.Bucket, "AWS_S3_BUCKET")
	setString(&c.Storage.UploadDir, "UPLOAD_DIR")
	setString(&c.Storage.BaseURL, "BASE_URL")

	setString(&c.Firebase.ServiceAccountPath, "FIREBASE_SERVICE_ACCOUNT_PATH")

	setString(&c.Log.Level, "LOG_LEVEL")
	if v, ok := os.LookupEnv("LOG_DEVELOPMENT"); ok {
		c.Log.Development = v == "true" || v == "1"
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" && !c.Log.Development {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: token ttl must be positive")
	}
	if c.Auth.NonceTTL <= 0 {
		return errors.New("config: nonce ttl must be positive")
	}
	if c.Auth.NoncesPerMin <= 0 {
		return errors.New("config: nonces per minute must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Server.Timezone, err)
	}
	return nil
}

// Location is the server-local zone used for calendar-day ride filters.
func (c *Config) Location() (*time.Location, error) {
	if c.Server.Timezone == "" || c.Server.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Server.Timezone)
}

// IsAdmin reports whether the wallet address is configured as an administrator.
func (c *Config) IsAdmin(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return false
	}
	for _, a := range c.Auth.AdminAddresses {
		if strings.ToLower(strings.TrimSpace(a)) == address {
			return true
		}
	}
	return false
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
