package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/xeptore/mpdq/redact"
	"github.com/xeptore/mpdq/unit"
)

const ProxyPasswordEnv = "MPDQ_PROXY_PASSWORD"

type Config struct {
	Log      Log      `yaml:"log"`
	Fetch    Fetch    `yaml:"fetch"`
	Refresh  Refresh  `yaml:"refresh"`
	Cache    Cache    `yaml:"cache"`
	Store    Store    `yaml:"store"`
	Download Download `yaml:"download"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("log", c.Log.ToDict()).
		Dict("fetch", c.Fetch.ToDict()).
		Dict("refresh", c.Refresh.ToDict()).
		Dict("cache", c.Cache.ToDict()).
		Dict("store", c.Store.ToDict()).
		Dict("download", c.Download.ToDict())
}

func (c *Config) setDefaults() {
	c.Log.setDefaults()
	c.Fetch.setDefaults()
	c.Refresh.setDefaults()
	c.Cache.setDefaults()
	c.Store.setDefaults()
	c.Download.setDefaults()
}

func (c *Config) validate() error {
	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	if err := c.Fetch.validate(); nil != err {
		return fmt.Errorf("fetch config validation failed: %v", err)
	}

	if err := c.Refresh.validate(); nil != err {
		return fmt.Errorf("refresh config validation failed: %v", err)
	}

	if err := c.Cache.validate(); nil != err {
		return fmt.Errorf("cache config validation failed: %v", err)
	}

	if err := c.Download.validate(); nil != err {
		return fmt.Errorf("download config validation failed: %v", err)
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "pretty"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: trace, debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'json' or 'pretty', got: %s", c.Format)
	}

	return nil
}

type Fetch struct {
	Timeout         Duration `yaml:"timeout"`
	MaxRetries      uint64   `yaml:"max_retries"`
	MaxManifestSize int64    `yaml:"max_manifest_size"`
	MaxConcurrent   int64    `yaml:"max_concurrent"`
	UserAgent       string   `yaml:"user_agent"`
	Proxy           Proxy    `yaml:"proxy"`
}

func (c *Fetch) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("timeout", c.Timeout.String()).
		Uint64("max_retries", c.MaxRetries).
		Int64("max_manifest_size", c.MaxManifestSize).
		Int64("max_concurrent", c.MaxConcurrent).
		Str("user_agent", c.UserAgent).
		Dict("proxy", c.Proxy.ToDict())
}

func (c *Fetch) setDefaults() {
	if c.Timeout.Duration == 0 {
		c.Timeout.Duration = 30 * time.Second
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}

	if c.MaxManifestSize == 0 {
		c.MaxManifestSize = 16 * unit.Mebibyte
	}

	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 8
	}

	if c.UserAgent == "" {
		c.UserAgent = "mpdq"
	}
}

func (c *Fetch) validate() error {
	if c.Timeout.Duration < 0 {
		return errors.New("timeout must be greater than 0")
	}

	if c.MaxManifestSize < 0 {
		return errors.New("max_manifest_size must be greater than 0")
	}

	if c.MaxConcurrent < 0 {
		return errors.New("max_concurrent must be greater than 0")
	}

	if err := c.Proxy.validate(); nil != err {
		return fmt.Errorf("proxy config validation failed: %v", err)
	}

	return nil
}

// Proxy is a SOCKS5 proxy. It is disabled while Host is empty.
type Proxy struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"-"`
}

func (c *Proxy) Enabled() bool {
	return len(c.Host) > 0 && c.Port > 0
}

func (c *Proxy) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("host", c.Host).
		Int("port", c.Port).
		Str("username", c.Username).
		Str("password", redact.String(c.Password))
}

func (c *Proxy) validate() error {
	if c.Host != "" && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Port)
	}

	return nil
}

type Refresh struct {
	MinInterval Duration `yaml:"min_interval"`
	MaxInterval Duration `yaml:"max_interval"`
	// Rate is the maximum number of manifest refreshes per second.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
	// MaxFailures is the number of consecutive failed refreshes tolerated.
	MaxFailures uint64 `yaml:"max_failures"`
}

func (c *Refresh) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("min_interval", c.MinInterval.String()).
		Str("max_interval", c.MaxInterval.String()).
		Float64("rate", c.Rate).
		Int("burst", c.Burst).
		Uint64("max_failures", c.MaxFailures)
}

func (c *Refresh) setDefaults() {
	if c.MinInterval.Duration == 0 {
		c.MinInterval.Duration = time.Second
	}

	if c.MaxInterval.Duration == 0 {
		c.MaxInterval.Duration = time.Minute
	}

	if c.Rate == 0 {
		c.Rate = 1
	}

	if c.Burst == 0 {
		c.Burst = 1
	}

	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
}

func (c *Refresh) validate() error {
	if c.MinInterval.Duration < 0 {
		return errors.New("min_interval must be greater than 0")
	}

	if c.MaxInterval.Duration < c.MinInterval.Duration {
		return errors.New("max_interval must not be less than min_interval")
	}

	if c.Rate < 0 {
		return errors.New("rate must be greater than 0")
	}

	if c.Burst < 0 {
		return errors.New("burst must be greater than 0")
	}

	return nil
}

type Cache struct {
	MaxSize int64    `yaml:"max_size"`
	TTL     Duration `yaml:"ttl"`
}

func (c *Cache) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int64("max_size", c.MaxSize).
		Str("ttl", c.TTL.String())
}

func (c *Cache) setDefaults() {
	if c.MaxSize == 0 {
		c.MaxSize = 100
	}

	if c.TTL.Duration == 0 {
		c.TTL.Duration = 10 * time.Second
	}
}

func (c *Cache) validate() error {
	if c.MaxSize < 0 {
		return errors.New("max_size must be greater than 0")
	}

	if c.TTL.Duration < 0 {
		return errors.New("ttl must be greater than 0")
	}

	return nil
}

type Store struct {
	Path string `yaml:"path"`
}

func (c *Store) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("path", c.Path)
}

func (c *Store) setDefaults() {
	if c.Path == "" {
		c.Path = "mpdq.db"
	}
}

type Download struct {
	Dir           string `yaml:"dir"`
	Workers       int    `yaml:"workers"`
	ChunkSegments int    `yaml:"chunk_segments"`
}

func (c *Download) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("dir", c.Dir).
		Int("workers", c.Workers).
		Int("chunk_segments", c.ChunkSegments)
}

func (c *Download) setDefaults() {
	if c.Dir == "" {
		c.Dir = "."
	}

	if c.Workers == 0 {
		c.Workers = 4
	}

	if c.ChunkSegments == 0 {
		c.ChunkSegments = 10
	}
}

func (c *Download) validate() error {
	if c.Workers < 0 {
		return errors.New("workers must be greater than 0")
	}

	if c.ChunkSegments < 0 {
		return errors.New("chunk_segments must be greater than 0")
	}

	if i, err := os.Stat(c.Dir); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("dir does not exist")
		}

		return fmt.Errorf("failed to stat dir: %v", err)
	} else if !i.IsDir() {
		return errors.New("dir must be a directory")
	}

	return nil
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

// Load reads filename, or config.yaml when it is empty. A missing file
// yields the defaults.
func Load(filename string) (*Config, error) {
	filename = lo.Ternary(len(filename) > 0, filename, "config.yaml")

	var conf Config

	data, err := os.ReadFile(filename)
	if nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
		}
	} else if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config file %s: %v", filename, err)
	}

	conf.Fetch.Proxy.Password = os.Getenv(ProxyPasswordEnv)
	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}
