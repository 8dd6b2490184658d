package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the trustdesk service configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
	LLM           LLMConfig           `yaml:"llm"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	Workspace     WorkspaceConfig     `yaml:"workspace"`
	Documents     DocumentsConfig     `yaml:"documents"`
	CachedAnswers CachedAnswersConfig `yaml:"cached_answers"`
	Jobs          JobsConfig          `yaml:"jobs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
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

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// LLMConfig holds the answering model settings.
type LLMConfig struct {
	APIKey             string       `yaml:"api_key"`
	BaseURL            string       `yaml:"base_url"`
	Model              string       `yaml:"model"`
	MaxTokens          int          `yaml:"max_tokens"` // per completion
	MaxTurns           int          `yaml:"max_turns"`  // provider round-trips per question
	MaxToolResultChars int          `yaml:"max_tool_result_chars"`
	ParallelTools      bool         `yaml:"parallel_tools"`
	MaxParallelTools   int          `yaml:"max_parallel_tools"`
	RequestTimeoutSec  int          `yaml:"request_timeout_sec"`
	SystemPrompt       string       `yaml:"system_prompt"`
	Retry              RetryConfig  `yaml:"retry"`
	Budget             BudgetConfig `yaml:"budget"`
}

// RetryConfig holds provider retry settings.
type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries"`
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
	JitterPct   int `yaml:"jitter_percent"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"` // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"`
	Action               string  `yaml:"action"` // "reject" | "warn" (default)
}

// KnowledgeConfig locates the exported workspace snapshot.
type KnowledgeConfig struct {
	// SnapshotDirs are tried in order; the first holding a search index wins.
	SnapshotDirs []string `yaml:"snapshot_dirs"`
	Watch        bool     `yaml:"watch"`
}

// WorkspaceConfig holds live workspace API settings.
type WorkspaceConfig struct {
	Token          string            `yaml:"token"`
	RequestsPerSec float64           `yaml:"requests_per_sec"`
	SearchLimit    int               `yaml:"search_limit"`
	PreviewBlocks  int               `yaml:"preview_blocks"`
	Aliases        map[string]string `yaml:"aliases"`  // friendly name -> page id
	Controls       map[string]string `yaml:"controls"` // control id (CC6.1) -> page id
}

// DocumentsConfig holds the static documentation corpus settings.
type DocumentsConfig struct {
	Root    string `yaml:"root"`
	BaseURL string `yaml:"base_url"`
}

// CachedAnswersConfig holds the curated answer seed.
type CachedAnswersConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// JobsConfig holds batch job settings.
type JobsConfig struct {
	MaxQuestions       int    `yaml:"max_questions"`
	MaxConcurrent      int    `yaml:"max_concurrent"`
	QuestionTimeoutSec int    `yaml:"question_timeout_sec"`
	RetentionMinutes   int    `yaml:"retention_minutes"`
	StaleAfterMinutes  int    `yaml:"stale_after_minutes"`
	CleanupSchedule    string `yaml:"cleanup_schedule"`
}

// QuestionTimeout returns the per-question deadline.
func (j JobsConfig) QuestionTimeout() time.Duration {
	return time.Duration(j.QuestionTimeoutSec) * time.Second
}

// Retention returns how long finished jobs are kept.
func (j JobsConfig) Retention() time.Duration {
	return time.Duration(j.RetentionMinutes) * time.Minute
}

// StaleAfter returns how long an unfinished job may go without an update.
func (j JobsConfig) StaleAfter() time.Duration {
	return time.Duration(j.StaleAfterMinutes) * time.Minute
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in raw YAML, decodes it, applies defaults and validates.
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
		// single answers run several provider round-trips
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "trustdesk:"
	}
	c.LLM.applyDefaults()
	if len(c.Knowledge.SnapshotDirs) == 0 {
		c.Knowledge.SnapshotDirs = []string{"data/workspace", "/var/lib/trustdesk/workspace"}
	}
	if c.Workspace.RequestsPerSec <= 0 {
		c.Workspace.RequestsPerSec = 3
	}
	if c.Workspace.SearchLimit <= 0 {
		c.Workspace.SearchLimit = 5
	}
	if c.Workspace.PreviewBlocks <= 0 {
		c.Workspace.PreviewBlocks = 10
	}
	if c.Documents.Root == "" {
		c.Documents.Root = "data/docs"
	}
	if c.Jobs.MaxQuestions <= 0 {
		c.Jobs.MaxQuestions = 200
	}
	if c.Jobs.MaxConcurrent <= 0 {
		c.Jobs.MaxConcurrent = 2
	}
	if c.Jobs.QuestionTimeoutSec <= 0 {
		c.Jobs.QuestionTimeoutSec = 300
	}
	if c.Jobs.RetentionMinutes <= 0 {
		c.Jobs.RetentionMinutes = 60
	}
	if c.Jobs.StaleAfterMinutes <= 0 {
		c.Jobs.StaleAfterMinutes = 30
	}
	if c.Jobs.CleanupSchedule == "" {
		c.Jobs.CleanupSchedule = "*/5 * * * *"
	}
}

func (l *LLMConfig) applyDefaults() {
	if l.Model == "" {
		l.Model = "gpt-4o"
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 4096
	}
	if l.MaxTurns <= 0 {
		l.MaxTurns = 8
	}
	if l.MaxToolResultChars <= 0 {
		l.MaxToolResultChars = 10000
	}
	if l.MaxParallelTools <= 0 {
		l.MaxParallelTools = 4
	}
	if l.RequestTimeoutSec <= 0 {
		l.RequestTimeoutSec = 120
	}
	if l.Retry.MaxRetries < 0 {
		l.Retry.MaxRetries = 0
	}
	if l.Retry.BaseDelayMs <= 0 {
		l.Retry.BaseDelayMs = 500
	}
	if l.Retry.MaxDelayMs <= 0 {
		l.Retry.MaxDelayMs = 10000
	}
	if l.Retry.JitterPct <= 0 {
		l.Retry.JitterPct = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.LLM.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	if c.LLM.Retry.JitterPct > 100 {
		return fmt.Errorf("llm.retry.jitter_percent must be at most 100, got %d", c.LLM.Retry.JitterPct)
	}
	if _, err := cron.ParseStandard(c.Jobs.CleanupSchedule); err != nil {
		return fmt.Errorf("jobs.cleanup_schedule %q: %w", c.Jobs.CleanupSchedule, err)
	}
	if c.Jobs.StaleAfterMinutes > 0 && c.Jobs.QuestionTimeoutSec > c.Jobs.StaleAfterMinutes*60 {
		return fmt.Errorf(
			"jobs.stale_after_minutes (%d) must exceed jobs.question_timeout_sec (%d)",
			c.Jobs.StaleAfterMinutes, c.Jobs.QuestionTimeoutSec,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests run from package dirs
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
