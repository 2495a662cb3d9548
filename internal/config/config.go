package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds defaults for every command; command line flags override them.
type Config struct {
	CodesHeader   string
	Catalog       string
	Flags         int
	MSVC          bool
	ErrorMacros   string
	StampFile     string
	WorkerCount   int
	BatchSize     int
	DatabaseURL   string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		CodesHeader:   getEnv("CPPMUNGE_CODES_HEADER", "ErrCodes.h"),
		Catalog:       getEnv("CPPMUNGE_CATALOG", ""),
		Flags:         getEnvInt("CPPMUNGE_FLAGS", 0),
		MSVC:          getEnvBool("CPPMUNGE_MSVC", false),
		ErrorMacros:   getEnv("CPPMUNGE_ERROR_MACROS", ""),
		StampFile:     getEnv("CPPMUNGE_STAMP_FILE", "UpdateMunged.timestamp"),
		WorkerCount:   getEnvInt("WORKER_COUNT", 8),
		BatchSize:     getEnvInt("BATCH_SIZE", 500),
		DatabaseURL:   getEnv("DATABASE_URL", "postgres://localhost:5432/cppmunge?sslmode=disable"),
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
