// Package config handles loading and parsing application configuration.
//
// Values always come from the environment. A YAML file is optional and is
// located, in priority order, by:
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// A .env file in the working directory is loaded into the environment
// first, when present.
package config

import (
	"flag"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file and can be overridden by the
// environment variable named in its env tag.
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-default:"prod"`

	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr            string        `yaml:"address"          env:"HTTP_SERVER_ADDR"      env-default:"0.0.0.0:5000"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HTTP_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HTTP_WRITE_TIMEOUT"    env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"HTTP_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Database selects the storage backend and holds its connection settings.
//
// db_password and hostname keep the lowercase names the service has always
// been deployed with.
type Database struct {
	Driver     string `yaml:"driver"      env:"DB_DRIVER"    env-default:"postgres"`
	Password   string `yaml:"password"    env:"db_password"`
	Host       string `yaml:"host"        env:"hostname"`
	Port       int    `yaml:"port"        env:"DB_PORT"      env-default:"5432"`
	User       string `yaml:"user"        env:"DB_USER"      env-default:"postgres"`
	Name       string `yaml:"name"        env:"DB_NAME"      env-default:"app_1"`
	MaxConns   int32  `yaml:"max_conns"   env:"DB_MAX_CONNS" env-default:"10"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"  env-default:"storage/etudiants.db"`
}

// DSN builds the postgres connection URL. The password is percent-encoded
// under URL userinfo rules, so characters such as '@', ':' and '/' are safe.
func (d Database) DSN() string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	return u.String()
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return errors.New("db_password is required for the postgres driver")
		}
		if c.Database.Host == "" {
			return errors.New("hostname is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

// Load reads configuration from configPath (when non-empty) and the
// environment, then validates it.
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, errors.Wrapf(err, "config file %s", configPath)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "read env")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

// MustLoad resolves the config file path from CONFIG_PATH or --config,
// loads the configuration and exits the process if anything is wrong.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %s", err)
	}
	return cfg
}
