package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Database struct {
		Driver  string `yaml:"driver"`
		URL     string `yaml:"url"`
		Migrate bool   `yaml:"migrate"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		SigningKey string `yaml:"signing_key"`
		TokenTTL   string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Events struct {
		Driver   string `yaml:"driver"`
		Brokers  string `yaml:"brokers"`
		Topic    string `yaml:"topic"`
		AMQPURL  string `yaml:"amqp_url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"events"`
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`
	Storage struct {
		Endpoint  string `yaml:"endpoint"`
		Region    string `yaml:"region"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"storage"`
	DGIS struct {
		APIKey   string `yaml:"api_key"`
		RegionID string `yaml:"region_id"`
	} `yaml:"dgis"`
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// LoadConfig reads the YAML file at CONFIG_PATH (or config/config.yaml) and applies
// environment overrides. A missing file is not an error: env vars alone are enough.
func LoadConfig() (Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("database url is required")
	}
	if cfg.Auth.SigningKey == "" {
		return Config{}, fmt.Errorf("auth signing key is required")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, name string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Address, "SERVER_ADDRESS")
	set(&cfg.Database.Driver, "DB_DRIVER")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	set(&cfg.Auth.SigningKey, "JWT_SIGNING_KEY")
	set(&cfg.Auth.TokenTTL, "JWT_TTL")
	set(&cfg.Events.Driver, "EVENTS_DRIVER")
	set(&cfg.Events.Brokers, "KAFKA_BROKERS")
	set(&cfg.Events.Topic, "KAFKA_TOPIC")
	set(&cfg.Events.AMQPURL, "AMQP_URL")
	set(&cfg.Events.Exchange, "AMQP_EXCHANGE")
	set(&cfg.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS")
	set(&cfg.Storage.Endpoint, "S3_ENDPOINT")
	set(&cfg.Storage.Region, "S3_REGION")
	set(&cfg.Storage.Bucket, "S3_BUCKET")
	set(&cfg.Storage.AccessKey, "S3_ACCESS_KEY")
	set(&cfg.Storage.SecretKey, "S3_SECRET_KEY")
	set(&cfg.Storage.PublicURL, "S3_PUBLIC_URL")
	set(&cfg.DGIS.APIKey, "DGIS_API_KEY")
	set(&cfg.DGIS.RegionID, "DGIS_REGION_ID")
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		cfg.Database.Migrate = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = strings.Split(v, ",")
	}
}
