package config

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type ContentSource string

const (
	SourceSanity   ContentSource = "sanity"
	SourcePostgres ContentSource = "postgres"
)

type QuillConfig struct {
	Env           Environment   `yaml:"env"`
	Addr          string        `yaml:"addr"`
	PrivateAddr   string        `yaml:"privateAddr"`
	BaseUrl       string        `yaml:"baseUrl"`
	LogLevel      zerolog.Level `yaml:"-"`
	LogLevelName  string        `yaml:"logLevel"`
	ContentSource ContentSource `yaml:"contentSource"`

	Site       SiteConfig       `yaml:"site"`
	Sanity     SanityConfig     `yaml:"sanity"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	S3         S3Config         `yaml:"s3"`
	Generation GenerationConfig `yaml:"generation"`
	Comments   CommentsConfig   `yaml:"comments"`
	DevConfig  DevConfig        `yaml:"dev"`
}

type SiteConfig struct {
	Title       string `yaml:"title"`
	AccentColor string `yaml:"accentColor"`
}

type SanityConfig struct {
	ProjectID  string `yaml:"projectId"`
	Dataset    string `yaml:"dataset"`
	APIVersion string `yaml:"apiVersion"`
	UseCdn     bool   `yaml:"useCdn"`
	// Only needed for private datasets and for writing comments.
	Token string `yaml:"token"`

	// Overrides the computed API host. Used by tests and local proxies.
	APIHost string `yaml:"apiHost"`
}

type PostgresConfig struct {
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Hostname string            `yaml:"hostname"`
	Port     int               `yaml:"port"`
	DbName   string            `yaml:"dbName"`
	MinConn  int32             `yaml:"minConn"`
	MaxConn  int32             `yaml:"maxConn"`

	LogLevel     tracelog.LogLevel `yaml:"-"`
	LogLevelName string            `yaml:"logLevel"`
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

type RedisConfig struct {
	// If empty, rendered pages are cached in process memory.
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type S3Config struct {
	Region          string        `yaml:"region"`
	Bucket          string        `yaml:"bucket"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"accessKeyId"`
	SecretAccessKey string        `yaml:"secretAccessKey"`
	UsePathStyle    bool          `yaml:"usePathStyle"`
	PresignTTL      time.Duration `yaml:"presignTTL"`
}

type GenerationConfig struct {
	StaleWindowSeconds       int    `yaml:"staleWindowSeconds"`
	RegenerateTimeoutSeconds int    `yaml:"regenerateTimeoutSeconds"`
	PrerenderConcurrency     int    `yaml:"prerenderConcurrency"`
	EvictOnNotFound          bool   `yaml:"evictOnNotFound"`
	RevalidateSecret         string `yaml:"revalidateSecret"`
}

func (g GenerationConfig) StaleWindow() time.Duration {
	return time.Duration(g.StaleWindowSeconds) * time.Second
}

func (g GenerationConfig) RegenerateTimeout() time.Duration {
	return time.Duration(g.RegenerateTimeoutSeconds) * time.Second
}

type CommentsConfig struct {
	// When set, comment forms submit to this URL instead of the local
	// comment store.
	SinkURL string `yaml:"sinkUrl"`
}

type DevConfig struct {
	LiveTemplates bool `yaml:"liveTemplates"`
}
