package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "MARKET_RADAR_CONFIG"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	SinkCSV      = "csv"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

var (
	// ErrMissingAPIKey is returned when the selected provider has no secret.
	ErrMissingAPIKey = errors.New("classifier api key missing")
	// ErrUnknownProvider is returned for a provider other than openai or gemini.
	ErrUnknownProvider = errors.New("unknown classifier provider")
)

// Config holds high-level settings required across the application.
type Config struct {
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Feed          FeedConfig         `yaml:"feed"`
	Filter        FilterConfig       `yaml:"filter"`
	Scan          ScanConfig         `yaml:"scan"`
	Storage       StorageConfig      `yaml:"storage"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// ClassifierConfig selects and tunes the generative backend.
type ClassifierConfig struct {
	Provider        string `yaml:"provider"`
	APIKey          string `yaml:"apiKey"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"baseUrl"`
	BatchSize       int    `yaml:"batchSize"`
	MinScore        int    `yaml:"minScore"`
	CooldownSeconds int    `yaml:"cooldownSeconds"`
	MaxRetries      int    `yaml:"maxRetries"`
	BaseWaitSeconds int    `yaml:"baseWaitSeconds"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	MaxTextChars    int    `yaml:"maxTextChars"`

	// provider-specific keys, used when APIKey is empty
	openAIKey string
	geminiKey string
}

// FeedConfig describes where posts come from.
type FeedConfig struct {
	Source               string   `yaml:"source"`
	BaseURL              string   `yaml:"baseUrl"`
	Subjects             []string `yaml:"subjects"`
	PageSize             int      `yaml:"pageSize"`
	TimeoutSeconds       int      `yaml:"timeoutSeconds"`
	RateLimitWaitSeconds int      `yaml:"rateLimitWaitSeconds"`
	ErrorBackoffSeconds  int      `yaml:"errorBackoffSeconds"`
}

// FilterConfig drives the lexical pre-screen.
type FilterConfig struct {
	MinBodyLength  int      `yaml:"minBodyLength"`
	TriggerPhrases []string `yaml:"triggerPhrases"`
}

// ScanConfig controls the loop cadence and dedup bound.
type ScanConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
	DedupCapacity   int `yaml:"dedupCapacity"`
}

// StorageConfig selects the sink.
type StorageConfig struct {
	Sink       string `yaml:"sink"`
	OutputFile string `yaml:"outputFile"`
	DSN        string `yaml:"dsn"`
	LockFile   string `yaml:"lockFile"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig selects level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Options tells Load where optional files live.
type Options struct {
	ConfigPath string
	EnvFile    string
}

// Load applies defaults, the YAML file (if any), the .env file and environment
// overrides, in that order. Unreadable optional files are logged and skipped.
func Load(opts Options) Config {
	cfg := defaultConfig()

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && opts.EnvFile != "" {
		log.Printf("config: cannot load %s: %v", envFile, err)
	}

	cfg.applyEnvOverrides(os.Getenv)
	cfg.resolveProvider()
	return cfg
}

// Validate reports configuration errors that must stop the process.
func (c Config) Validate() error {
	switch c.Classifier.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Classifier.Provider)
	}
	if strings.TrimSpace(c.Classifier.APIKey) == "" {
		return fmt.Errorf("%w: set API_KEY or %s_API_KEY", ErrMissingAPIKey, strings.ToUpper(c.Classifier.Provider))
	}
	if c.Classifier.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.Classifier.BatchSize)
	}
	if len(c.Feed.Subjects) == 0 {
		return errors.New("no target subjects configured")
	}
	switch c.Storage.Sink {
	case SinkCSV:
		if c.Storage.OutputFile == "" {
			return errors.New("csv sink needs an output file")
		}
	case SinkSQLite, SinkPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%s sink needs DATABASE_DSN", c.Storage.Sink)
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Storage.Sink)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	out.Classifier.APIKey = redact(c.Classifier.APIKey)
	out.Notifications.Telegram.BotToken = redact(c.Notifications.Telegram.BotToken)
	if c.Storage.Sink == SinkPostgres {
		out.Storage.DSN = redact(c.Storage.DSN)
	}
	return out
}

// LockPath is where the single-instance lock lives.
func (c Config) LockPath() string {
	if c.Storage.LockFile != "" {
		return c.Storage.LockFile
	}
	if c.Storage.Sink == SinkCSV {
		return c.Storage.OutputFile + ".lock"
	}
	return "market-radar.lock"
}

// Seconds converts an integer seconds setting to a duration.
func Seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	setString(getenv, &c.Classifier.Provider, "PROVIDER", "AI_PROVIDER")
	setString(getenv, &c.Classifier.APIKey, "API_KEY")
	setString(getenv, &c.Classifier.openAIKey, "OPENAI_API_KEY")
	setString(getenv, &c.Classifier.geminiKey, "GEMINI_API_KEY")
	setString(getenv, &c.Classifier.Model, "MODEL_NAME")
	setString(getenv, &c.Classifier.BaseURL, "CLASSIFIER_BASE_URL")
	setInt(getenv, &c.Classifier.BatchSize, "BATCH_SIZE")
	setInt(getenv, &c.Classifier.MinScore, "MIN_SCORE")
	setInt(getenv, &c.Classifier.CooldownSeconds, "API_COOLDOWN_SECONDS", "API_COOLDOWN")
	setInt(getenv, &c.Classifier.MaxRetries, "CLASSIFIER_MAX_RETRIES")
	setInt(getenv, &c.Classifier.BaseWaitSeconds, "CLASSIFIER_BASE_WAIT_SECONDS")
	setInt(getenv, &c.Classifier.TimeoutSeconds, "CLASSIFIER_TIMEOUT_SECONDS")
	setInt(getenv, &c.Classifier.MaxTextChars, "MAX_TEXT_CHARS")

	setString(getenv, &c.Feed.Source, "FEED_SOURCE")
	setString(getenv, &c.Feed.BaseURL, "FEED_BASE_URL")
	setList(getenv, &c.Feed.Subjects, "TARGET_SUBJECTS", "TARGET_SUBREDDITS")
	setInt(getenv, &c.Feed.PageSize, "FEED_PAGE_SIZE")
	setInt(getenv, &c.Feed.TimeoutSeconds, "FEED_TIMEOUT_SECONDS")
	setInt(getenv, &c.Feed.RateLimitWaitSeconds, "FEED_RATE_LIMIT_SECONDS")
	setInt(getenv, &c.Feed.ErrorBackoffSeconds, "FEED_ERROR_BACKOFF_SECONDS")

	setInt(getenv, &c.Filter.MinBodyLength, "MIN_BODY_LENGTH")
	setList(getenv, &c.Filter.TriggerPhrases, "TRIGGER_PHRASES", "KEYWORDS")

	setInt(getenv, &c.Scan.IntervalSeconds, "SCAN_INTERVAL_SECONDS", "SCAN_INTERVAL")
	setInt(getenv, &c.Scan.DedupCapacity, "DEDUP_CAPACITY")

	setString(getenv, &c.Storage.Sink, "SINK")
	setString(getenv, &c.Storage.OutputFile, "OUTPUT_FILE")
	setString(getenv, &c.Storage.DSN, "DATABASE_DSN")
	setString(getenv, &c.Storage.LockFile, "LOCK_FILE")

	setString(getenv, &c.Notifications.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(getenv, &c.Notifications.Telegram.ChatID, "TELEGRAM_CHAT_ID")

	setString(getenv, &c.Logging.Level, "LOG_LEVEL")
	setString(getenv, &c.Logging.Format, "LOG_FORMAT")
}

// resolveProvider normalizes the provider and fills its key and default model.
func (c *Config) resolveProvider() {
	c.Classifier.Provider = strings.ToLower(strings.TrimSpace(c.Classifier.Provider))
	c.Storage.Sink = strings.ToLower(strings.TrimSpace(c.Storage.Sink))

	switch c.Classifier.Provider {
	case ProviderOpenAI:
		if c.Classifier.APIKey == "" {
			c.Classifier.APIKey = c.Classifier.openAIKey
		}
		if c.Classifier.Model == "" {
			c.Classifier.Model = "gpt-4o-mini"
		}
	case ProviderGemini:
		if c.Classifier.APIKey == "" {
			c.Classifier.APIKey = c.Classifier.geminiKey
		}
		if c.Classifier.Model == "" {
			c.Classifier.Model = "gemini-2.5-flash-lite"
		}
	}
}

func setString(getenv func(string) string, dst *string, keys ...string) {
	for _, key := range keys {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(getenv func(string) string, dst *int, keys ...string) {
	for _, key := range keys {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			log.Printf("config: %s=%q is not an integer, keeping %d", key, raw, *dst)
			return
		}
		*dst = v
		return
	}
}

func setList(getenv func(string) string, dst *[]string, keys ...string) {
	for _, key := range keys {
		raw := getenv(key)
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
		return
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Classifier.Provider, override.Classifier.Provider)
	mergeString(&base.Classifier.APIKey, override.Classifier.APIKey)
	mergeString(&base.Classifier.Model, override.Classifier.Model)
	mergeString(&base.Classifier.BaseURL, override.Classifier.BaseURL)
	mergeInt(&base.Classifier.BatchSize, override.Classifier.BatchSize)
	mergeInt(&base.Classifier.MinScore, override.Classifier.MinScore)
	mergeInt(&base.Classifier.CooldownSeconds, override.Classifier.CooldownSeconds)
	mergeInt(&base.Classifier.MaxRetries, override.Classifier.MaxRetries)
	mergeInt(&base.Classifier.BaseWaitSeconds, override.Classifier.BaseWaitSeconds)
	mergeInt(&base.Classifier.TimeoutSeconds, override.Classifier.TimeoutSeconds)
	mergeInt(&base.Classifier.MaxTextChars, override.Classifier.MaxTextChars)

	mergeString(&base.Feed.Source, override.Feed.Source)
	mergeString(&base.Feed.BaseURL, override.Feed.BaseURL)
	if len(override.Feed.Subjects) > 0 {
		base.Feed.Subjects = override.Feed.Subjects
	}
	mergeInt(&base.Feed.PageSize, override.Feed.PageSize)
	mergeInt(&base.Feed.TimeoutSeconds, override.Feed.TimeoutSeconds)
	mergeInt(&base.Feed.RateLimitWaitSeconds, override.Feed.RateLimitWaitSeconds)
	mergeInt(&base.Feed.ErrorBackoffSeconds, override.Feed.ErrorBackoffSeconds)

	mergeInt(&base.Filter.MinBodyLength, override.Filter.MinBodyLength)
	if len(override.Filter.TriggerPhrases) > 0 {
		base.Filter.TriggerPhrases = override.Filter.TriggerPhrases
	}

	mergeInt(&base.Scan.IntervalSeconds, override.Scan.IntervalSeconds)
	mergeInt(&base.Scan.DedupCapacity, override.Scan.DedupCapacity)

	mergeString(&base.Storage.Sink, override.Storage.Sink)
	mergeString(&base.Storage.OutputFile, override.Storage.OutputFile)
	mergeString(&base.Storage.DSN, override.Storage.DSN)
	mergeString(&base.Storage.LockFile, override.Storage.LockFile)

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)

	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Classifier: ClassifierConfig{
			Provider:        ProviderOpenAI,
			BatchSize:       5,
			MinScore:        7,
			CooldownSeconds: 5,
			MaxRetries:      3,
			BaseWaitSeconds: 20,
			TimeoutSeconds:  60,
			MaxTextChars:    1500,
		},
		Feed: FeedConfig{
			Source: "reddit",
			Subjects: []string{
				"SaaS", "Entrepreneur", "smallbusiness",
				"startups", "sideproject", "microsaas", "marketing",
			},
			PageSize:             25,
			TimeoutSeconds:       15,
			RateLimitWaitSeconds: 60,
			ErrorBackoffSeconds:  60,
		},
		Filter: FilterConfig{
			MinBodyLength: 30,
			TriggerPhrases: []string{
				"how do i", "alternative to", "pain", "hate", "manual",
				"expensive", "looking for", "wish", "help", "need tool",
				"idea", "frustrated", "recommend", "suggestion", "advice",
			},
		},
		Scan: ScanConfig{
			IntervalSeconds: 60,
			DedupCapacity:   100_000,
		},
		Storage: StorageConfig{
			Sink:       SinkCSV,
			OutputFile: "opportunities.csv",
		},
		Logging: LoggingConfig{Level: "info", Format: "auto"},
	}
}
