// Package config loads and validates the result cache configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/AmirulAndalib/typeorm/internal/cachestore"
)

// Provider identifies the cache storage backend.
type Provider string

const (
	// ProviderTable persists entries in a table of the queried database.
	ProviderTable Provider = "table"
	// ProviderRedis persists entries in redis.
	ProviderRedis Provider = "redis"
	// ProviderMemory keeps entries in process memory.
	ProviderMemory Provider = "memory"
)

var validProviders = map[Provider]struct{}{
	ProviderTable:  {},
	ProviderRedis:  {},
	ProviderMemory: {},
}

// Drivers accepted for the table provider, mapped to their SQL dialect.
var driverDialects = map[string]cachestore.Dialect{
	"sqlite": cachestore.DialectSQLite,
	"pgx":    cachestore.DialectPostgres,
}

// defaultTTL applies when default_ttl_ms is omitted.
const defaultTTL = time.Second

// TableConfig captures the table provider settings.
type TableConfig struct {
	Name   string `toml:"name" yaml:"name"`
	Driver string `toml:"driver" yaml:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn"`
}

// RedisConfig captures the redis provider settings.
type RedisConfig struct {
	Addrs  []string `toml:"addrs" yaml:"addrs"`
	DB     int      `toml:"db" yaml:"db"`
	Prefix string   `toml:"prefix" yaml:"prefix"`
}

// Config mirrors the expected configuration file schema. TOML is the
// primary format; .yaml/.yml files are accepted with the same keys.
type Config struct {
	Provider     string      `toml:"provider" yaml:"provider"`
	DefaultTTLMS int64       `toml:"default_ttl_ms" yaml:"default_ttl_ms"`
	IgnoreErrors bool        `toml:"ignore_errors" yaml:"ignore_errors"`
	Coalesce     bool        `toml:"coalesce" yaml:"coalesce"`
	Table        TableConfig `toml:"table" yaml:"table"`
	Redis        RedisConfig `toml:"redis" yaml:"redis"`
}

// TablePlan is the resolved table provider configuration.
type TablePlan struct {
	Name    string
	Driver  string
	DSN     string
	Dialect cachestore.Dialect
}

// RedisPlan is the resolved redis provider configuration.
type RedisPlan struct {
	Addrs  []string
	DB     int
	Prefix string
}

// Plan is the fully-resolved configuration used to wire a controller.
type Plan struct {
	Provider     Provider
	DefaultTTL   time.Duration
	IgnoreErrors bool
	Coalesce     bool
	Table        TablePlan
	Redis        RedisPlan
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	// Strict treats unknown configuration keys as errors.
	Strict bool
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Load reads, validates, and resolves a cache configuration file.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	unmarshal := toml.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var cfg Config
	if err := unmarshal(data, &cfg); err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	unknownKeys, err := collectUnknownKeys(data, unmarshal)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	if len(unknownKeys) > 0 {
		slices.Sort(unknownKeys)
		message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknownKeys, ", "))
		if opts.Strict {
			return res, errors.New(message)
		}
		res.Warnings = append(res.Warnings, message)
	}

	provider, err := resolveProvider(path, cfg.Provider)
	if err != nil {
		return res, err
	}

	ttl, err := resolveTTL(path, cfg.DefaultTTLMS)
	if err != nil {
		return res, err
	}

	table, err := resolveTable(path, provider, cfg.Table)
	if err != nil {
		return res, err
	}

	redis, err := resolveRedis(path, provider, cfg.Redis)
	if err != nil {
		return res, err
	}

	res.Plan = Plan{
		Provider:     provider,
		DefaultTTL:   ttl,
		IgnoreErrors: cfg.IgnoreErrors,
		Coalesce:     cfg.Coalesce,
		Table:        table,
		Redis:        redis,
	}
	return res, nil
}

func collectUnknownKeys(data []byte, unmarshal func([]byte, any) error) ([]string, error) {
	var raw map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := map[string]struct{}{
		"provider":       {},
		"default_ttl_ms": {},
		"ignore_errors":  {},
		"coalesce":       {},
		"table":          {},
		"redis":          {},
	}

	unknown := make([]string, 0)
	for key := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown, nil
}

func resolveProvider(path, provider string) (Provider, error) {
	if provider == "" {
		return ProviderTable, nil
	}
	p := Provider(provider)
	if _, ok := validProviders[p]; !ok {
		return "", fmt.Errorf("%s: unsupported provider %q", path, provider)
	}
	return p, nil
}

func resolveTTL(path string, millis int64) (time.Duration, error) {
	if millis == 0 {
		return defaultTTL, nil
	}
	if millis < 0 {
		return 0, fmt.Errorf("%s: default_ttl_ms must be positive, got %d", path, millis)
	}
	return time.Duration(millis) * time.Millisecond, nil
}

func resolveTable(path string, provider Provider, cfg TableConfig) (TablePlan, error) {
	plan := TablePlan{
		Name:   cfg.Name,
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
	}
	if plan.Name == "" {
		plan.Name = cachestore.DefaultTableName
	}
	if plan.Driver == "" {
		plan.Driver = "sqlite"
	}

	dialect, ok := driverDialects[plan.Driver]
	if !ok {
		return TablePlan{}, fmt.Errorf("%s: unsupported table driver %q", path, plan.Driver)
	}
	plan.Dialect = dialect

	if provider == ProviderTable && plan.DSN == "" {
		return TablePlan{}, fmt.Errorf("%s: table provider requires a dsn", path)
	}
	return plan, nil
}

func resolveRedis(path string, provider Provider, cfg RedisConfig) (RedisPlan, error) {
	if provider == ProviderRedis && len(cfg.Addrs) == 0 {
		return RedisPlan{}, fmt.Errorf("%s: redis provider requires at least one address", path)
	}
	return RedisPlan{
		Addrs:  cfg.Addrs,
		DB:     cfg.DB,
		Prefix: cfg.Prefix,
	}, nil
}
