package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the global configuration. It starts out with development
// defaults; Load overlays a config file and the environment on top.
var Config = Default()

func Default() QuillConfig {
	return QuillConfig{
		Env:           Dev,
		Addr:          ":9001",
		PrivateAddr:   ":9002",
		BaseUrl:       "http://localhost:9001",
		LogLevel:      zerolog.InfoLevel,
		LogLevelName:  "info",
		ContentSource: SourceSanity,
		Site: SiteConfig{
			Title:       "Quill",
			AccentColor: "eab308",
		},
		Sanity: SanityConfig{
			Dataset:    "production",
			APIVersion: "2021-03-25",
		},
		Postgres: PostgresConfig{
			User:     "quill",
			Password: "password",
			Hostname: "localhost",
			Port:     5432,
			DbName:   "quill",
			LogLevel:     tracelog.LogLevelWarn,
			LogLevelName: "warn",
			MinConn:  2,
			MaxConn:  8,
		},
		Redis: RedisConfig{
			KeyPrefix: "quill:page:",
		},
		S3: S3Config{
			PresignTTL: time.Hour,
		},
		Generation: GenerationConfig{
			StaleWindowSeconds:       60,
			RegenerateTimeoutSeconds: 30,
			PrerenderConcurrency:     4,
			EvictOnNotFound:          true,
		},
	}
}

const envPrefix = "QUILL"

// Load reads the YAML file at path (if it exists) over the defaults, then
// lets QUILL_* environment variables override any key. .env.local and .env
// only fill in variables the OS environment does not already set.
//
// Every key can be set from the environment two ways: the snake_case form
// of its path (QUILL_GENERATION_STALE_WINDOW_SECONDS) or viper's flattened
// form (QUILL_GENERATION_STALEWINDOWSECONDS).
func Load(path string) (QuillConfig, error) {
	cfg := Default()

	var dotenvFiles []string
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			dotenvFiles = append(dotenvFiles, f)
		}
	}
	if len(dotenvFiles) > 0 {
		if err := godotenv.Load(dotenvFiles...); err != nil {
			return cfg, fmt.Errorf("failed to load %v: %w", dotenvFiles, err)
		}
	}

	v, err := newViper(cfg)
	if err != nil {
		return cfg, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	err = v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	})
	if err != nil {
		return cfg, fmt.Errorf("bad configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevelName))
	if err != nil {
		return cfg, fmt.Errorf("bad log level %q: %w", cfg.LogLevelName, err)
	}
	cfg.LogLevel = level

	pgLevel, err := tracelog.LogLevelFromString(strings.ToLower(cfg.Postgres.LogLevelName))
	if err != nil {
		return cfg, fmt.Errorf("bad postgres log level %q: %w", cfg.Postgres.LogLevelName, err)
	}
	cfg.Postgres.LogLevel = pgLevel

	if cfg.Generation.StaleWindowSeconds <= 0 {
		return cfg, fmt.Errorf("generation.staleWindowSeconds must be positive, got %d", cfg.Generation.StaleWindowSeconds)
	}
	switch cfg.ContentSource {
	case SourceSanity, SourcePostgres:
	default:
		return cfg, fmt.Errorf("unknown content source %q", cfg.ContentSource)
	}

	return cfg, nil
}

// newViper seeds viper with every key of defaults. Environment variables
// are only consulted for keys viper already knows about.
func newViper(defaults QuillConfig) (*viper.Viper, error) {
	defaultsYaml, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultsYaml)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var tree map[string]any
	if err := yaml.Unmarshal(defaultsYaml, &tree); err != nil {
		return nil, err
	}
	for _, key := range configKeys("", tree) {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// configKeys lists dotted leaf keys with their original casing, which viper
// itself forgets.
func configKeys(prefix string, tree map[string]any) []string {
	var keys []string
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			keys = append(keys, configKeys(key, sub)...)
		} else {
			keys = append(keys, key)
		}
	}
	return keys
}

// EnvName turns a config key like "s3.accessKeyId" into QUILL_S3_ACCESS_KEY_ID.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	b.WriteByte('_')
	prevLower := false
	for _, r := range key {
		switch {
		case r == '.':
			b.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			prevLower = false
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}
