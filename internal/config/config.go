package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openprogramia/propuestas/internal/db"
	"github.com/openprogramia/propuestas/internal/domain/roster"
)

// Retrieval drivers.
const (
	DriverQdrant = "qdrant"
	DriverRedis  = "redis"
)

// Config holds the propuestas service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Search     SearchConfig     `yaml:"search"`
	Roster     []roster.Entity  `yaml:"roster"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RetrievalConfig selects and connects the vector store.
type RetrievalConfig struct {
	Driver           string   `yaml:"driver"` // qdrant (default), redis
	Addrs            []string `yaml:"addrs"`  // redis
	Password         string   `yaml:"password"`
	Host             string   `yaml:"host"` // qdrant
	Port             int      `yaml:"port"`
	APIKey           string   `yaml:"api_key"`
	UseTLS           bool     `yaml:"use_tls"`
	Collection       string   `yaml:"collection"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the query embedding provider settings.
type EmbeddingConfig struct {
	Provider         string   `yaml:"provider"`
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"`
	Model            string   `yaml:"model"`
	Dimensions       int      `yaml:"dimensions"`
	QueryInstruction string   `yaml:"query_instruction"`
	CacheTTLHours    int      `yaml:"cache_ttl_hours"`
	TimeoutSec       int      `yaml:"timeout_sec"`
	CacheAddrs       []string `yaml:"cache_addrs"`
}

// TaxonomyConfig points at the taxonomy document.
type TaxonomyConfig struct {
	Path string `yaml:"path"`
}

// ClassifierConfig sizes the classification cache.
type ClassifierConfig struct {
	CacheTTLSec     int `yaml:"cache_ttl_sec"`
	CacheMaxEntries int `yaml:"cache_max_entries"`
}

// SearchConfig tunes the retrieval pipeline.
type SearchConfig struct {
	RequestTimeoutSec   int `yaml:"request_timeout_sec"`
	EntityTimeoutSec    int `yaml:"entity_timeout_sec"`
	PerEntityLimit      int `yaml:"per_entity_limit"`
	FallbackLimit       int `yaml:"fallback_limit"`
	MaxDocuments        int `yaml:"max_documents"`
	MinEntitiesWithHits int `yaml:"min_entities_with_hits"`
	PoolSize            int `yaml:"pool_size"`
	HNSWEF              int `yaml:"hnsw_ef"`
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env + ".yaml")

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Retrieval.Driver == "" {
		c.Retrieval.Driver = DriverQdrant
	}
	if c.Retrieval.Port <= 0 {
		c.Retrieval.Port = 6334
	}
	if c.Retrieval.Collection == "" {
		c.Retrieval.Collection = "programas"
	}
	if c.Retrieval.ReadinessTimeout <= 0 {
		c.Retrieval.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 24 * 7
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Taxonomy.Path == "" {
		c.Taxonomy.Path = "config/taxonomy.yaml"
	}
	if c.Classifier.CacheTTLSec <= 0 {
		c.Classifier.CacheTTLSec = 300
	}
	if c.Classifier.CacheMaxEntries <= 0 {
		c.Classifier.CacheMaxEntries = 1000
	}
	c.Search.applyDefaults()
	if len(c.Roster) == 0 {
		c.Roster = roster.Default()
	}
}

func (s *SearchConfig) applyDefaults() {
	if s.RequestTimeoutSec <= 0 {
		s.RequestTimeoutSec = 30
	}
	if s.EntityTimeoutSec <= 0 {
		s.EntityTimeoutSec = 8
	}
	if s.PerEntityLimit <= 0 {
		s.PerEntityLimit = 5
	}
	if s.FallbackLimit <= 0 {
		s.FallbackLimit = 10
	}
	if s.MaxDocuments <= 0 {
		s.MaxDocuments = 20
	}
	if s.MinEntitiesWithHits <= 0 {
		s.MinEntitiesWithHits = 3
	}
	if s.PoolSize <= 0 {
		s.PoolSize = 8
	}
	if s.HNSWEF <= 0 {
		s.HNSWEF = 128
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Retrieval.Driver {
	case DriverQdrant:
		if c.Retrieval.Host == "" {
			return errors.New("retrieval.host is required for the qdrant driver")
		}
	case DriverRedis:
		if len(c.Retrieval.Addrs) == 0 {
			return errors.New("retrieval.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("retrieval.driver must be %q or %q, got %q", DriverQdrant, DriverRedis, c.Retrieval.Driver)
	}
	if !db.IsValidIdentifier(c.Retrieval.Collection) {
		return fmt.Errorf("retrieval.collection %q is not a valid identifier", c.Retrieval.Collection)
	}
	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Search.FallbackLimit < c.Search.PerEntityLimit {
		return fmt.Errorf("search.fallback_limit (%d) must not be below search.per_entity_limit (%d)",
			c.Search.FallbackLimit, c.Search.PerEntityLimit)
	}
	if _, err := roster.New(c.Roster); err != nil {
		return fmt.Errorf("roster: %w", err)
	}
	return nil
}

// RedisAddrs returns the addresses backing the embedding cache, if any:
// the retrieval Redis when that is the driver, else embedding.cache_addrs.
func (c *Config) RedisAddrs() []string {
	if c.Retrieval.Driver == DriverRedis {
		return c.Retrieval.Addrs
	}
	return c.Embedding.CacheAddrs
}

// ResolvePath finds a file named relative to the project root, checking the
// working directory first.
func ResolvePath(path string) string {
	if filepath.IsAbs(path) || fileExists(path) {
		return path
	}
	return findConfigPath(strings.TrimPrefix(filepath.ToSlash(path), "config/"))
}

// findConfigPath locates a file under config/.
func findConfigPath(filename string) string {
	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
