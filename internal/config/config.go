package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

// Storage backends.
const (
	StorageMemory    = "memory"
	StorageMongo     = "mongo"
	StorageSQLite    = "sqlite"
	StorageFirestore = "firestore"
)

type Config struct {
	Mode Mode `yaml:"mode"`

	Port string `yaml:"port"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "json" or "text"

	StorageBackend string `yaml:"storage_backend"` // memory, mongo, sqlite or firestore
	MongoURL       string `yaml:"mongo_url"`
	MongoDatabase  string `yaml:"mongo_database"`
	SQLitePath     string `yaml:"sqlite_path"`

	GCPProjectID string `yaml:"gcp_project"`
	GCPLocation  string `yaml:"gcp_location"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	MistralAPIKey  string `yaml:"mistral_api_key"`
	MistralModel   string `yaml:"mistral_model"`
	MistralBaseURL string `yaml:"mistral_base_url"`

	UseMockLLM    bool   `yaml:"use_mock_llm"` // true = use mock even on GCP
	KnowledgeFile string `yaml:"knowledge_file"`

	PersistQueueSize    int           `yaml:"persist_queue_size"`
	PersistWorkers      int           `yaml:"persist_workers"`
	PersistWriteTimeout time.Duration `yaml:"persist_write_timeout"`

	// SerializeTurns makes turns on the same chat run one at a time.
	SerializeTurns      bool `yaml:"serialize_turns"`
	AnalysisConcurrency int  `yaml:"analysis_concurrency"`

	OTLPEndpoint    string        `yaml:"otlp_endpoint"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Mode:                ModeLocal,
		Port:                "8080",
		LogLevel:            "info",
		LogFormat:           "json",
		StorageBackend:      StorageMemory,
		MongoURL:            "mongodb://localhost:27017",
		MongoDatabase:       "hackaton_chat",
		SQLitePath:          "data/chatrelay.db",
		GCPLocation:         "us-central1",
		GeminiModel:         "gemini-2.5-flash",
		MistralModel:        "mistral-large-latest",
		MistralBaseURL:      "https://api.mistral.ai/v1",
		UseMockLLM:          true,
		PersistQueueSize:    256,
		PersistWorkers:      2,
		PersistWriteTimeout: 10 * time.Second,
		SerializeTurns:      true,
		AnalysisConcurrency: 1,
		ShutdownTimeout:     15 * time.Second,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load builds the config from defaults, the optional YAML file named by
// CHATRELAY_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CHATRELAY_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	switch getEnv("CHATRELAY_MODE", string(c.Mode)) {
	case "gcp":
		c.Mode = ModeGCP
	default:
		c.Mode = ModeLocal
	}

	c.Port = getEnv("CHATRELAY_PORT", getEnv("PORT", c.Port))
	c.LogLevel = getEnv("CHATRELAY_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("CHATRELAY_LOG_FORMAT", c.LogFormat)

	c.StorageBackend = strings.ToLower(getEnv("CHATRELAY_STORAGE_BACKEND", c.StorageBackend))
	c.MongoURL = getEnv("MONGO_URL", c.MongoURL)
	c.MongoDatabase = getEnv("CHATRELAY_MONGO_DATABASE", c.MongoDatabase)
	c.SQLitePath = getEnv("CHATRELAY_SQLITE_PATH", c.SQLitePath)

	c.GCPProjectID = getEnv("CHATRELAY_GCP_PROJECT", c.GCPProjectID)
	c.GCPLocation = getEnv("CHATRELAY_GCP_LOCATION", c.GCPLocation)

	c.GeminiAPIKey = getEnv("GEMINI_API", c.GeminiAPIKey)
	c.GeminiModel = getEnv("CHATRELAY_GEMINI_MODEL", c.GeminiModel)
	c.MistralAPIKey = getEnv("MISTRAL_API", c.MistralAPIKey)
	c.MistralModel = getEnv("CHATRELAY_MISTRAL_MODEL", c.MistralModel)
	c.MistralBaseURL = getEnv("CHATRELAY_MISTRAL_BASE_URL", c.MistralBaseURL)

	c.UseMockLLM = getBoolEnv("CHATRELAY_USE_MOCK_LLM", c.UseMockLLM)
	c.KnowledgeFile = getEnv("CHATRELAY_KNOWLEDGE_FILE", c.KnowledgeFile)
	c.SerializeTurns = getBoolEnv("CHATRELAY_SERIALIZE_TURNS", c.SerializeTurns)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	var err error
	if c.PersistQueueSize, err = getIntEnv("CHATRELAY_PERSIST_QUEUE_SIZE", c.PersistQueueSize); err != nil {
		return err
	}
	if c.PersistWorkers, err = getIntEnv("CHATRELAY_PERSIST_WORKERS", c.PersistWorkers); err != nil {
		return err
	}
	if c.AnalysisConcurrency, err = getIntEnv("CHATRELAY_ANALYSIS_CONCURRENCY", c.AnalysisConcurrency); err != nil {
		return err
	}
	if c.PersistWriteTimeout, err = getDurationEnv("CHATRELAY_PERSIST_WRITE_TIMEOUT", c.PersistWriteTimeout); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = getDurationEnv("CHATRELAY_SHUTDOWN_TIMEOUT", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageMemory, StorageMongo, StorageSQLite:
	case StorageFirestore:
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("CHATRELAY_GCP_PROJECT is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		errs = append(errs, errors.New("CHATRELAY_GCP_PROJECT must be set in gcp mode"))
	}

	if !c.UseMockLLM {
		if c.GeminiAPIKey == "" && c.GCPProjectID == "" {
			errs = append(errs, errors.New("GEMINI_API or CHATRELAY_GCP_PROJECT is required unless the mock LLM is used"))
		}
		// Vertex AI is used when no API key is set.
		if c.GeminiAPIKey == "" && c.GCPLocation == "" {
			errs = append(errs, errors.New("CHATRELAY_GCP_LOCATION is required for Vertex AI"))
		}
		if c.MistralAPIKey == "" {
			errs = append(errs, errors.New("MISTRAL_API is required unless the mock LLM is used"))
		}
	}

	if c.PersistQueueSize <= 0 {
		errs = append(errs, errors.New("persist queue size must be positive"))
	}
	if c.PersistWorkers <= 0 {
		errs = append(errs, errors.New("persist workers must be positive"))
	}
	if c.AnalysisConcurrency <= 0 {
		errs = append(errs, errors.New("analysis concurrency must be positive"))
	}
	if c.PersistWriteTimeout <= 0 {
		errs = append(errs, errors.New("persist write timeout must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
