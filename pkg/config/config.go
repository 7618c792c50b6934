package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Host string
	Port string
	Env  string
}

type DatabaseConfig struct {
	Type string // "sqlite" or "postgres"
	DSN  string
	Path string // For SQLite: file path
}

type SessionConfig struct {
	Secret string
}

// EngineConfig holds the tunable policy constants of the adaptive engine.
// Defaults match the values the selection algorithms were designed around;
// they are policy knobs, not values derived from data.
type EngineConfig struct {
	DifficultyWindow       int     // recent attempts sampled for difficulty estimation
	DefaultDifficulty      int     // target when a student has no history
	RaiseAccuracy          float64 // accuracy at or above which difficulty goes up
	LowerAccuracy          float64 // accuracy at or below which difficulty goes down
	WeakTopicWindowDays    int     // lookback window for weak-topic analysis
	MinTopicAttempts       int     // statistical floor for weak-topic eligibility
	RevisionMinAttempts    int     // attempts before a question can be a revision candidate
	RevisionAccuracyCutoff float64 // per-question accuracy below which revision is due
	RecencyExclusion       int     // most-recent attempted questions never re-served
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dbType := getEnv("DB_TYPE", "sqlite") // Default to SQLite for development
	dsn, dbPath := buildDSN(dbType)

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Type: dbType,
			DSN:  dsn,
			Path: dbPath,
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-prod"),
		},
		Engine: EngineConfig{
			DifficultyWindow:       getEnvInt("ENGINE_DIFFICULTY_WINDOW", 20),
			DefaultDifficulty:      getEnvInt("ENGINE_DEFAULT_DIFFICULTY", 2),
			RaiseAccuracy:          getEnvFloat("ENGINE_RAISE_ACCURACY", 0.8),
			LowerAccuracy:          getEnvFloat("ENGINE_LOWER_ACCURACY", 0.4),
			WeakTopicWindowDays:    getEnvInt("ENGINE_WEAK_TOPIC_WINDOW_DAYS", 30),
			MinTopicAttempts:       getEnvInt("ENGINE_MIN_TOPIC_ATTEMPTS", 3),
			RevisionMinAttempts:    getEnvInt("ENGINE_REVISION_MIN_ATTEMPTS", 2),
			RevisionAccuracyCutoff: getEnvFloat("ENGINE_REVISION_ACCURACY_CUTOFF", 0.6),
			RecencyExclusion:       getEnvInt("ENGINE_RECENCY_EXCLUSION", 30),
		},
	}, nil
}

func buildDSN(dbType string) (string, string) {
	if dbType == "postgres" {
		// PostgreSQL configuration
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "postgres")
		dbName := getEnv("DB_NAME", "practice_engine")
		sslMode := getEnv("DB_SSLMODE", "disable")

		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbHost, dbPort, dbUser, dbPassword, dbName, sslMode,
		)
		return dsn, ""
	}

	// SQLite configuration (default for development)
	dbPath := getEnv("SQLITE_PATH", "./data/practice_engine.db")
	dsn := dbPath + "?mode=rwc&cache=shared&timeout=5000"
	return dsn, dbPath
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
