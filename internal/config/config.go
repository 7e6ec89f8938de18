// Package config assembles runtime settings from built-in defaults, an
// optional YAML file, the environment (including a .env file) and command
// line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/krillmap/dashboard/figure"
	"github.com/krillmap/dashboard/zones"
)

// Source kinds accepted in data.source.
const (
	SourceCSV      = "csv"
	SourceNetCDF   = "netcdf"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

type Config struct {
	Server  ServerConfig       `yaml:"server"`
	Data    DataConfig         `yaml:"data"`
	Map     MapConfig          `yaml:"map"`
	Zones   []zones.Descriptor `yaml:"zones"`
	Logging LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Domain         string        `yaml:"domain"`
	CertDir        string        `yaml:"cert_dir"`
	PublicURL      string        `yaml:"public_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DataConfig struct {
	Dir         string `yaml:"dir"`
	ZoneDir     string `yaml:"zone_dir"`
	Source      string `yaml:"source"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	CacheSize   int    `yaml:"cache_size"`
}

type MapConfig struct {
	AccessToken  string         `yaml:"access_token"`
	DefaultStyle string         `yaml:"default_style"`
	Years        []int          `yaml:"years"`
	Months       []int          `yaml:"months"`
	DefaultYear  int            `yaml:"default_year"`
	DefaultMonth int            `yaml:"default_month"`
	Basemap      figure.Basemap `yaml:"basemap"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8080,
			CertDir:        "certs",
			RequestTimeout: 60 * time.Second,
		},
		Data: DataConfig{
			Dir:       "data",
			Source:    SourceCSV,
			CacheSize: 24,
		},
		Map: MapConfig{
			DefaultStyle: string(figure.StyleSatellite),
			Years: []int{
				1993, 1995, 1996, 1997, 1998, 1999, 2001, 2002, 2003, 2005, 2006, 2007, 2009, 2011,
				2012, 2013, 2014, 2015, 2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023, 2024, 2025,
				2026, 2027, 2028, 2029, 2030,
			},
			Months:       []int{1, 2, 12},
			DefaultYear:  2024,
			DefaultMonth: 1,
			Basemap:      figure.USGSImagery,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load parses args (without the program name) and builds the configuration.
// getenv is usually os.Getenv; variables found in the .env file are used only
// when getenv has no value for them.
func Load(args []string, getenv func(string) string) (Config, error) {
	flags := pflag.NewFlagSet("krillmap", pflag.ContinueOnError)
	var (
		configFile   = flags.StringP("config", "c", "", "YAML configuration file")
		envFile      = flags.String("env-file", ".env", "dotenv file read for secrets")
		port         = flags.IntP("port", "p", 0, "HTTP listen port")
		domain       = flags.String("domain", "", "serve HTTPS for this domain with Let's Encrypt certificates")
		dataDir      = flags.StringP("data", "d", "", "directory holding measurement and zone files")
		source       = flags.String("source", "", "measurement source: csv, netcdf, postgres or sqlite")
		sqlitePath   = flags.String("sqlite", "", "SQLite database file (implies --source=sqlite)")
		defaultStyle = flags.String("style", "", "default map style: simple or satellite")
		logLevel     = flags.String("log-level", "", "log level: debug, info, warn or error")
		logFormat    = flags.String("log-format", "", "log format: console or json")
	)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *configFile != "" {
		if err := cfg.loadFile(*configFile); err != nil {
			return Config{}, err
		}
	}

	dotenv, err := readDotenv(*envFile, flags.Changed("env-file"))
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if flags.Changed("port") {
		cfg.Server.Port = *port
	}
	if flags.Changed("domain") {
		cfg.Server.Domain = *domain
	}
	if flags.Changed("data") {
		cfg.Data.Dir = *dataDir
	}
	if flags.Changed("source") {
		cfg.Data.Source = *source
	}
	if flags.Changed("sqlite") {
		cfg.Data.SQLitePath = *sqlitePath
		if !flags.Changed("source") {
			cfg.Data.Source = SourceSQLite
		}
	}
	if flags.Changed("style") {
		cfg.Map.DefaultStyle = *defaultStyle
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = *logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = *logFormat
	}

	if cfg.Data.ZoneDir == "" {
		cfg.Data.ZoneDir = cfg.Data.Dir
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// readDotenv loads the dotenv file. A missing file is only an error when the
// path was asked for explicitly.
func readDotenv(path string, required bool) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return values, nil
}

func (c *Config) applyEnv(lookup func(string) string) error {
	if v := lookup("MAPBOX_ACCESS_TOKEN"); v != "" {
		c.Map.AccessToken = v
	}
	if v := lookup("DATABASE_URL"); v != "" {
		c.Data.DatabaseURL = v
	}
	if v := lookup("KRILLMAP_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := lookup("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}

	c.Data.Source = strings.ToLower(strings.TrimSpace(c.Data.Source))
	switch c.Data.Source {
	case SourceCSV, SourceNetCDF:
		if c.Data.Dir == "" {
			return errors.New("data directory is required")
		}
	case SourcePostgres:
		if c.Data.DatabaseURL == "" {
			return errors.New("database_url (or DATABASE_URL) is required for the postgres source")
		}
	case SourceSQLite:
		if c.Data.SQLitePath == "" {
			return errors.New("sqlite_path is required for the sqlite source")
		}
	default:
		return fmt.Errorf("unsupported data source %q", c.Data.Source)
	}
	if c.Data.CacheSize <= 0 {
		return errors.New("cache_size must be positive")
	}

	switch figure.Style(c.Map.DefaultStyle) {
	case figure.StyleSimple, figure.StyleSatellite:
	default:
		return fmt.Errorf("unsupported default_style %q", c.Map.DefaultStyle)
	}
	if len(c.Map.Years) == 0 || len(c.Map.Months) == 0 {
		return errors.New("at least one year and one month must be offered")
	}
	for _, m := range c.Map.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("month %d out of range", m)
		}
	}
	if !contains(c.Map.Years, c.Map.DefaultYear) {
		return fmt.Errorf("default_year %d is not among the offered years", c.Map.DefaultYear)
	}
	if !contains(c.Map.Months, c.Map.DefaultMonth) {
		return fmt.Errorf("default_month %d is not among the offered months", c.Map.DefaultMonth)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	return nil
}

// Addr is the listen address for plain HTTP.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
