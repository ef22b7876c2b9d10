package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config aggregates runtime configuration for the authstore tooling.
type Config struct {
	Environment string
	DataStore   string
	LogLevel    string
	LogFormat   string

	// postgres
	DatabaseURL string

	// neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from environment variables with sensible
// defaults for local development. Secrets accept a `_FILE` indirection
// for container secret mounts.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/authstore_database_url")
	if err != nil {
		return Config{}, err
	}
	neo4jPassword, err := getEnvOrFile("NEO4J_PASSWORD", "/run/secrets/authstore_neo4j_password")
	if err != nil {
		return Config{}, err
	}
	redisPassword, err := getEnvOrFile("REDIS_PASSWORD", "/run/secrets/authstore_redis_password")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:   getEnv("APP_ENV", "development"),
		DataStore:     strings.ToLower(getEnv("DATA_STORE", "memory")),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DatabaseURL:   databaseURL,
		Neo4jURI:      getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: neo4jPassword,
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: redisPassword,
	}

	redisDB := getEnv("REDIS_DB", "0")
	db, err := strconv.Atoi(redisDB)
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB %q: %w", redisDB, err)
	}
	cfg.RedisDB = db

	switch cfg.DataStore {
	case "memory", "postgres", "neo4j", "redis":
	default:
		return Config{}, fmt.Errorf("unknown DATA_STORE %q (want memory, postgres, neo4j, or redis)", cfg.DataStore)
	}
	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	return cfg, nil
}

// UseInMemoryStore returns true if the in-memory adapter should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
