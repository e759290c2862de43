package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Valkey    ValkeyConfig
	Qdrant    QdrantConfig
	Ollama    OllamaConfig
	Indexing  IndexingConfig
	Worker    WorkerConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
}

type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
}

// IndexingConfig tunes chunking and the vector write path. VectorBackend is
// one of "qdrant", "pgvector" or "none"; with "none" the executor reports a
// configuration error instead of silently skipping writes.
type IndexingConfig struct {
	VectorBackend string
	ChunkLines    int
	ChunkOverlap  int
	BatchSize     int
}

type WorkerConfig struct {
	IndexConcurrency     int
	ReconcileConcurrency int
	GuardTTL             time.Duration
}

type ReconcileConfig struct {
	Interval time.Duration
}

func Load() (*Config, error) {
	// Best effort: env vars win over .env, absence of the file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "codecrow"),
			Password: getEnv("DB_PASSWORD", "codecrow"),
			Name:     getEnv("DB_NAME", "codecrow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		Qdrant: QdrantConfig{
			Host:       getEnv("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnv("QDRANT_COLLECTION", "codecrow_branches"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			UseTLS:     getEnvBool("QDRANT_USE_TLS", false),
		},
		Ollama: OllamaConfig{
			Host:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:      getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			Dimensions: getEnvInt("OLLAMA_EMBED_DIMENSIONS", 768),
		},
		Indexing: IndexingConfig{
			VectorBackend: getEnv("VECTOR_BACKEND", "qdrant"),
			ChunkLines:    getEnvInt("INDEX_CHUNK_LINES", 80),
			ChunkOverlap:  getEnvInt("INDEX_CHUNK_OVERLAP", 10),
			BatchSize:     getEnvInt("INDEX_BATCH_SIZE", 50),
		},
		Worker: WorkerConfig{
			IndexConcurrency:     getEnvInt("WORKER_INDEX_CONCURRENCY", 4),
			ReconcileConcurrency: getEnvInt("WORKER_RECONCILE_CONCURRENCY", 1),
			GuardTTL:             time.Duration(getEnvInt("WORKER_GUARD_TTL_SECS", 600)) * time.Second,
		},
		Reconcile: ReconcileConfig{
			Interval: time.Duration(getEnvInt("RECONCILE_INTERVAL_SECS", 3600)) * time.Second,
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
