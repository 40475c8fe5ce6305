// Package config loads runtime configuration for every cine-match binary.
//
// Sources are layered, later ones win:
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_PATH, config.yaml or config.yml)
//  3. environment variables, including a .env file loaded at startup
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	RunModeOnce      = "once"
	RunModeScheduler = "scheduler"

	StrategySimilarity = "similarity"
	StrategyModel      = "model"
)

// ConfigPathEnvVar overrides the YAML file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	API        APIConfig        `koanf:"api"`
	Poll       PollConfig       `koanf:"poll"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Model      ModelConfig      `koanf:"model"`
	Storage    StorageConfig    `koanf:"storage"`
	Server     ServerConfig     `koanf:"server"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	LLM        LLMConfig        `koanf:"llm"`
	Email      EmailConfig      `koanf:"email"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled off"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// APIConfig points at the preference API the serve loop polls.
type APIConfig struct {
	BaseURL             string        `koanf:"base_url" validate:"required,url"`
	ResponsesPath       string        `koanf:"responses_path" validate:"required,startswith=/"`
	RecommendationsPath string        `koanf:"recommendations_path" validate:"required,startswith=/"`
	Timeout             time.Duration `koanf:"timeout" validate:"gt=0"`
}

type PollConfig struct {
	RunMode  string        `koanf:"run_mode" validate:"oneof=once scheduler"`
	Strategy string        `koanf:"strategy" validate:"oneof=similarity model"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	// MaxAttempts caps polling in once mode; 0 polls forever.
	MaxAttempts uint64 `koanf:"max_attempts"`
}

type CatalogConfig struct {
	// Path is a local file or an http(s) URL.
	Path string `koanf:"path" validate:"required"`
}

type SimilarityConfig struct {
	NumResults       int     `koanf:"num_results" validate:"gt=0"`
	RuntimeWindow    float64 `koanf:"runtime_window" validate:"gte=0"`
	SimilarityWeight float64 `koanf:"similarity_weight" validate:"gte=0"`
	PopularityWeight float64 `koanf:"popularity_weight" validate:"gte=0"`
}

type ModelConfig struct {
	Path            string  `koanf:"path" validate:"required"`
	EmbeddingDim    int     `koanf:"embedding_dim" validate:"gt=0"`
	Hidden1         int     `koanf:"hidden1" validate:"gt=0"`
	Hidden2         int     `koanf:"hidden2" validate:"gt=0"`
	Dropout         float64 `koanf:"dropout" validate:"gte=0,lt=1"`
	Epochs          int     `koanf:"epochs" validate:"gt=0"`
	BatchSize       int     `koanf:"batch_size" validate:"gt=0"`
	ValidationSplit float64 `koanf:"validation_split" validate:"gte=0,lt=1"`
	Patience        int     `koanf:"patience" validate:"gte=0"`
	LearningRate    float64 `koanf:"learning_rate" validate:"gt=0"`
	Seed            int64   `koanf:"seed"`
	TopK            int     `koanf:"top_k" validate:"gt=0"`
}

type StorageConfig struct {
	DataPath string `koanf:"data_path" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type MetricsConfig struct {
	// Addr exposes /metrics from the serve binary when set.
	Addr string `koanf:"addr"`
}

type LLMConfig struct {
	GeminiAPIKey string        `koanf:"gemini_api_key"`
	GeminiModel  string        `koanf:"gemini_model"`
	GeminiURL    string        `koanf:"gemini_url"`
	OpenAIAPIKey string        `koanf:"openai_api_key"`
	OpenAIModel  string        `koanf:"openai_model"`
	OpenAIURL    string        `koanf:"openai_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

type EmailConfig struct {
	SMTPHost       string `koanf:"smtp_host"`
	SMTPPort       int    `koanf:"smtp_port" validate:"gte=0,lte=65535"`
	SenderEmail    string `koanf:"sender" validate:"omitempty,email"`
	SenderPassword string `koanf:"password"`
	RecipientEmail string `koanf:"recipient" validate:"omitempty,email"`
}

// Enabled reports whether enough is configured to send mail.
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.RecipientEmail != ""
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		API: APIConfig{
			BaseURL:             "http://localhost:5000",
			ResponsesPath:       "/api/get-responses",
			RecommendationsPath: "/api/data",
			Timeout:             10 * time.Second,
		},
		Poll: PollConfig{
			RunMode:  RunModeOnce,
			Strategy: StrategySimilarity,
			Interval: 5 * time.Second,
		},
		Catalog: CatalogConfig{Path: "titles.csv"},
		Similarity: SimilarityConfig{
			NumResults:       10,
			RuntimeWindow:    30,
			SimilarityWeight: 0.7,
			PopularityWeight: 0.3,
		},
		Model: ModelConfig{
			Path:            "movie_recommender_model.json",
			EmbeddingDim:    50,
			Hidden1:         128,
			Hidden2:         64,
			Dropout:         0.2,
			Epochs:          30,
			BatchSize:       32,
			ValidationSplit: 0.2,
			Patience:        5,
			LearningRate:    0.001,
			Seed:            42,
			TopK:            5,
		},
		Storage: StorageConfig{DataPath: "./data"},
		Server:  ServerConfig{Addr: ":5000"},
		LLM: LLMConfig{
			GeminiModel: "gemini-1.5-flash",
			OpenAIModel: "gpt-4o",
			Timeout:     30 * time.Second,
		},
		Email: EmailConfig{SMTPPort: 587},
	}
}

// envMappings maps flat environment variable names to koanf paths.
var envMappings = map[string]string{
	"log_level":                "logging.level",
	"log_format":               "logging.format",
	"log_caller":               "logging.caller",
	"api_base_url":             "api.base_url",
	"api_responses_path":       "api.responses_path",
	"api_recommendations_path": "api.recommendations_path",
	"api_timeout":              "api.timeout",
	"run_mode":                 "poll.run_mode",
	"strategy":                 "poll.strategy",
	"poll_interval":            "poll.interval",
	"poll_max_attempts":        "poll.max_attempts",
	"catalog_path":             "catalog.path",
	"num_results":              "similarity.num_results",
	"runtime_window":           "similarity.runtime_window",
	"similarity_weight":        "similarity.similarity_weight",
	"popularity_weight":        "similarity.popularity_weight",
	"model_path":               "model.path",
	"model_embedding_dim":      "model.embedding_dim",
	"model_epochs":             "model.epochs",
	"model_batch_size":         "model.batch_size",
	"model_learning_rate":      "model.learning_rate",
	"model_patience":           "model.patience",
	"model_seed":               "model.seed",
	"model_top_k":              "model.top_k",
	"data_path":                "storage.data_path",
	"server_addr":              "server.addr",
	"metrics_addr":             "metrics.addr",
	"gemini_api_key":           "llm.gemini_api_key",
	"gemini_model":             "llm.gemini_model",
	"gemini_url":               "llm.gemini_url",
	"openai_api_key":           "llm.openai_api_key",
	"openai_model":             "llm.openai_model",
	"openai_url":               "llm.openai_url",
	"llm_timeout":              "llm.timeout",
	"email_smtp_host":          "email.smtp_host",
	"email_smtp_port":          "email.smtp_port",
	"email_sender":             "email.sender",
	"email_password":           "email.password",
	"email_recipient":          "email.recipient",
}

// envTransformFunc returns "" for variables that are not ours so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the effective configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Similarity.SimilarityWeight+c.Similarity.PopularityWeight == 0 {
		return errors.New("invalid configuration: similarity and popularity weights are both zero")
	}
	return nil
}
