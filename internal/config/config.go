package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MinIO    MinIOConfig    `yaml:"minio"`
	NATS     NATSConfig     `yaml:"nats"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Embedder EmbedderConfig `yaml:"embedder"`
	OCR      OCRConfig      `yaml:"ocr"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Search   SearchConfig   `yaml:"search"`
	Watch    WatchConfig    `yaml:"watch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// OllamaConfig points at the vision/LLM oracle endpoint.
type OllamaConfig struct {
	BaseURL     string        `yaml:"base_url"`
	VisionModel string        `yaml:"vision_model"`
	QAModel     string        `yaml:"qa_model"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EmbedderConfig points at the external CLIP embedding service.
type EmbedderConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Dim     int           `yaml:"dim"`
	Timeout time.Duration `yaml:"timeout"`
}

type OCRConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngestConfig holds per-stage defaults for the ingestion pipeline.
// Pointers distinguish "unset" from explicit false in YAML.
type IngestConfig struct {
	OCR            *bool `yaml:"ocr"`
	Preprocess     *bool `yaml:"preprocess"`
	Embed          *bool `yaml:"embed"`
	AutoTag        *bool `yaml:"auto_tag"`
	TargetLongEdge int   `yaml:"target_long_edge"`
}

type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	QATopK      int `yaml:"qa_top_k"`
}

type WatchConfig struct {
	Dirs            []string      `yaml:"dirs"`
	APIBase         string        `yaml:"api_base"`
	APIKey          string        `yaml:"api_key"`
	IndexDB         string        `yaml:"index_db"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ProcessedSubdir string        `yaml:"processed_subdir"`
	FailedSubdir    string        `yaml:"failed_subdir"`
	Extensions      []string      `yaml:"extensions"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func boolPtr(b bool) *bool { return &b }

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "photostack"
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.VisionModel == "" {
		cfg.Ollama.VisionModel = "llava"
	}
	if cfg.Ollama.QAModel == "" {
		cfg.Ollama.QAModel = "phi4:14b"
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = 120 * time.Second
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "http://localhost:8600"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "ViT-L-14"
	}
	if cfg.Embedder.Dim == 0 {
		cfg.Embedder.Dim = 768
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = 60 * time.Second
	}
	if cfg.OCR.BaseURL == "" {
		cfg.OCR.BaseURL = "http://localhost:8601"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 60 * time.Second
	}
	if cfg.Ingest.OCR == nil {
		cfg.Ingest.OCR = boolPtr(true)
	}
	if cfg.Ingest.Preprocess == nil {
		cfg.Ingest.Preprocess = boolPtr(true)
	}
	if cfg.Ingest.Embed == nil {
		cfg.Ingest.Embed = boolPtr(true)
	}
	if cfg.Ingest.AutoTag == nil {
		cfg.Ingest.AutoTag = boolPtr(true)
	}
	if cfg.Ingest.TargetLongEdge == 0 {
		cfg.Ingest.TargetLongEdge = 1600
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 12
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 50
	}
	if cfg.Search.QATopK == 0 {
		cfg.Search.QATopK = 8
	}
	if cfg.Watch.APIBase == "" {
		cfg.Watch.APIBase = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Watch.IndexDB == "" {
		home, _ := os.UserHomeDir()
		cfg.Watch.IndexDB = home + "/.photostack/index.db"
	}
	if cfg.Watch.PollInterval == 0 {
		cfg.Watch.PollInterval = 30 * time.Second
	}
	if cfg.Watch.ProcessedSubdir == "" {
		cfg.Watch.ProcessedSubdir = "processed"
	}
	if cfg.Watch.FailedSubdir == "" {
		cfg.Watch.FailedSubdir = "failed"
	}
	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = []string{".jpg", ".jpeg", ".png", ".webp", ".tif", ".tiff"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PS_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PS_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PS_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PS_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PS_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PS_OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("PS_OLLAMA_VISION_MODEL"); v != "" {
		cfg.Ollama.VisionModel = v
	}
	if v := os.Getenv("PS_OLLAMA_QA_MODEL"); v != "" {
		cfg.Ollama.QAModel = v
	}
	if v := os.Getenv("PS_EMBEDDER_BASE_URL"); v != "" {
		cfg.Embedder.BaseURL = v
	}
	if v := os.Getenv("PS_OCR_BASE_URL"); v != "" {
		cfg.OCR.BaseURL = v
	}
	if v := os.Getenv("PS_WATCH_DIRS"); v != "" {
		parts := strings.Split(v, string(os.PathListSeparator))
		dirs := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				dirs = append(dirs, p)
			}
		}
		if len(dirs) > 0 {
			cfg.Watch.Dirs = dirs
		}
	}
	if v := os.Getenv("PS_WATCH_API_BASE"); v != "" {
		cfg.Watch.APIBase = v
	}
	if v := os.Getenv("PS_WATCH_INDEX_DB"); v != "" {
		cfg.Watch.IndexDB = v
	}
}
