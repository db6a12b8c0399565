package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the recall service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Model   ModelConfig   `yaml:"model"`
	Cache   CacheConfig   `yaml:"cache"`
	Capture CaptureConfig `yaml:"capture"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys List `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int  `yaml:"port"`
	ReadTimeoutSec  int  `yaml:"read_timeout_sec"`
	WriteTimeoutSec int  `yaml:"write_timeout_sec"`
	ShutdownSec     int  `yaml:"shutdown_timeout_sec"`
	CORSOrigins     List `yaml:"cors_origins"`
}

// StorageConfig holds object storage settings for the corpus.
type StorageConfig struct {
	Bucket           string `yaml:"bucket"`
	Prefixes         List   `yaml:"prefixes"`
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"`
	UsePathStyle     bool   `yaml:"use_path_style"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
	TimeoutSec       int    `yaml:"timeout_sec"`
}

// IndexConfig holds chunking, n-gram and retrieval settings.
type IndexConfig struct {
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    *int     `yaml:"chunk_overlap"`
	NgramMin        int      `yaml:"ngram_min"`
	NgramMax        int      `yaml:"ngram_max"`
	MinScore        *float64 `yaml:"min_score"`
	DefaultTopK     int      `yaml:"default_top_k"`
	MaxTopK         int      `yaml:"max_top_k"`
	BuildTimeoutSec int      `yaml:"build_timeout_sec"`
}

// Overlap returns the configured chunk overlap. An explicit 0 is kept.
func (c IndexConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return 0
	}
	return *c.ChunkOverlap
}

// Threshold returns the similarity a passage must exceed. An explicit 0 is kept.
func (c IndexConfig) Threshold() float64 {
	if c.MinScore == nil {
		return 0
	}
	return *c.MinScore
}

// ModelConfig holds hosted model settings.
type ModelConfig struct {
	Provider        string       `yaml:"provider"` // bedrock (default), openai
	ModelID         string       `yaml:"model_id"`
	MaxTokens       int          `yaml:"max_tokens"`
	TimeoutSec      int          `yaml:"timeout_sec"`
	MaxPassages     int          `yaml:"max_passages"`
	MaxContextChars int          `yaml:"max_context_chars"`
	BaseURL         string       `yaml:"base_url"`
	APIKey          string       `yaml:"api_key"`
	RatePerSec      float64      `yaml:"rate_per_sec"` // 0 = unthrottled
	Burst           int          `yaml:"burst"`
	Budget          BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// CacheConfig holds the optional Redis-compatible answer cache. No addrs disables it.
type CacheConfig struct {
	Addrs            List   `yaml:"addrs"`
	Password         string `yaml:"password"`
	TTLSec           int    `yaml:"ttl_sec"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache address is configured.
func (c CacheConfig) Enabled() bool {
	return len(c.Addrs) > 0
}

// CaptureConfig describes the external capture program.
type CaptureConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	Workdir        string   `yaml:"workdir"`
	Artifact       string   `yaml:"artifact"`
	ProbeMS        int      `yaml:"probe_ms"`
	StopTimeoutSec int      `yaml:"stop_timeout_sec"`
}

// List is a string list that also accepts a comma-separated scalar,
// so values like ${TXT_PREFIXES} expand naturally.
type List []string

// UnmarshalYAML decodes a sequence or a comma-separated scalar. Blank items are dropped.
func (l *List) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = splitCSV(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		out := make(List, 0, len(items))
		for _, it := range items {
			out = append(out, splitCSV(it)...)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or comma-separated string", node.Line)
	}
}

func splitCSV(s string) List {
	var out List
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded into the environment first.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, decodes it and applies defaults and validation.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "text-description"
	}
	if len(c.Storage.Prefixes) == 0 {
		c.Storage.Prefixes = List{"screenshots/"}
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.FetchConcurrency <= 0 {
		c.Storage.FetchConcurrency = 8
	}
	if c.Storage.TimeoutSec <= 0 {
		c.Storage.TimeoutSec = 30
	}

	if c.Index.ChunkSize == 0 {
		c.Index.ChunkSize = 800
	}
	if c.Index.ChunkOverlap == nil {
		overlap := 200
		c.Index.ChunkOverlap = &overlap
	}
	if c.Index.NgramMin == 0 {
		c.Index.NgramMin = 3
	}
	if c.Index.NgramMax == 0 {
		c.Index.NgramMax = 5
	}
	if c.Index.MinScore == nil {
		minScore := 0.01
		c.Index.MinScore = &minScore
	}
	if c.Index.DefaultTopK <= 0 {
		c.Index.DefaultTopK = 5
	}
	if c.Index.MaxTopK <= 0 {
		c.Index.MaxTopK = 20
	}
	if c.Index.BuildTimeoutSec <= 0 {
		c.Index.BuildTimeoutSec = 300
	}

	if c.Model.Provider == "" {
		c.Model.Provider = "bedrock"
	}
	if c.Model.ModelID == "" {
		c.Model.ModelID = "us.anthropic.claude-haiku-4-5-20251001-v1:0"
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = 600
	}
	if c.Model.TimeoutSec <= 0 {
		c.Model.TimeoutSec = 60
	}
	if c.Model.MaxPassages <= 0 {
		c.Model.MaxPassages = 3
	}
	if c.Model.MaxContextChars <= 0 {
		c.Model.MaxContextChars = 10000
	}
	if c.Model.Burst <= 0 {
		c.Model.Burst = 1
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Capture.Command == "" {
		c.Capture.Command = "python3"
		if len(c.Capture.Args) == 0 {
			c.Capture.Args = []string{"screenshot_upload.py"}
		}
		if c.Capture.Artifact == "" {
			c.Capture.Artifact = "screenshot_upload.py"
		}
	}
	if c.Capture.ProbeMS <= 0 {
		c.Capture.ProbeMS = 1000
	}
	if c.Capture.StopTimeoutSec <= 0 {
		c.Capture.StopTimeoutSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if c.Index.ChunkSize < 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.NgramMin < 1 || c.Index.NgramMax < c.Index.NgramMin {
		return fmt.Errorf("index.ngram range [%d, %d] is invalid", c.Index.NgramMin, c.Index.NgramMax)
	}
	if ms := c.Index.Threshold(); ms < 0 || ms >= 1 {
		return fmt.Errorf("index.min_score must be in [0, 1), got %v", ms)
	}
	switch c.Model.Provider {
	case "bedrock":
	case "openai":
		if c.Model.BaseURL == "" {
			return fmt.Errorf("model.base_url is required for the openai provider")
		}
	default:
		return fmt.Errorf("model.provider must be \"bedrock\" or \"openai\", got %q", c.Model.Provider)
	}
	switch c.Model.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"model.budget.action must be \"warn\" or \"reject\", got %q",
			c.Model.Budget.Action,
		)
	}
	if c.Model.RatePerSec < 0 {
		return fmt.Errorf("model.rate_per_sec must not be negative, got %v", c.Model.RatePerSec)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

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
