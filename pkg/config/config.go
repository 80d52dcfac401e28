package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// System ceilings that no configuration value may exceed
const (
	MaxRetainedFiles = 500
	MaxUploadBytes   = 1024 * 1024 * 1024 // 1024 MiB
)

type Config struct {
	// Application
	AppName     string
	Debug       bool
	Port        string
	Environment string

	// Logging
	LogLevel string
	LogJSON  bool

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret string

	// Backups
	BackupDir          string // Directory holding <db>_<timestamp>.backup archives
	BackupDBName       string // Database dumped and restored
	BackupOSUser       string // OS account owning the database (sudo -u)
	SudoPath           string
	PgDumpPath         string
	PgRestorePath      string
	BackupTimeout      time.Duration // 0 = no limit
	BackupExposeStderr bool          // Return raw tool stderr to API clients
	BackupTimezone     string        // Location the cron schedule is evaluated in

	// Offsite replica (SFTP, e.g. Hetzner Storage Box)
	OffsiteEnabled  bool
	OffsiteHost     string
	OffsitePort     int
	OffsiteUser     string
	OffsitePassword string
	OffsitePath     string

	// InfluxDB (Time-Series Event Storage)
	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	// Error reporting
	SentryDSN string
}

var AppConfig *Config

// Load loads configuration from environment
func Load() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		AppName:     getEnv("APP_NAME", "ENP-ERP Backoffice"),
		Debug:       getEnvBool("DEBUG", false),
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("SENTRY_ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogJSON:     getEnvBool("LOG_JSON", false),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production-please-use-a-random-string"),

		BackupDir:          getEnv("BACKUP_DIR", "/var/backups/postgres"),
		BackupDBName:       getEnv("BACKUP_DB_NAME", "enplerp"),
		BackupOSUser:       getEnv("BACKUP_OS_USER", "postgres"),
		SudoPath:           getEnv("BACKUP_SUDO_PATH", "/usr/bin/sudo"),
		PgDumpPath:         getEnv("BACKUP_PG_DUMP_PATH", "/usr/bin/pg_dump"),
		PgRestorePath:      getEnv("BACKUP_PG_RESTORE_PATH", "/usr/bin/pg_restore"),
		BackupTimeout:      getEnvDuration("BACKUP_COMMAND_TIMEOUT", 0),
		BackupExposeStderr: getEnvBool("BACKUP_EXPOSE_STDERR", false),
		BackupTimezone:     getEnv("BACKUP_TIMEZONE", "Local"),

		OffsiteEnabled:  getEnvBool("BACKUP_OFFSITE_ENABLED", false),
		OffsiteHost:     getEnv("BACKUP_OFFSITE_HOST", ""),
		OffsitePort:     getEnvInt("BACKUP_OFFSITE_PORT", 23),
		OffsiteUser:     getEnv("BACKUP_OFFSITE_USER", ""),
		OffsitePassword: getEnv("BACKUP_OFFSITE_PASSWORD", ""),
		OffsitePath:     getEnv("BACKUP_OFFSITE_PATH", "/enplerp-backups"),

		InfluxDBURL:    getEnv("INFLUXDB_URL", ""),
		InfluxDBToken:  getEnv("INFLUXDB_TOKEN", ""),
		InfluxDBOrg:    getEnv("INFLUXDB_ORG", "enplerp"),
		InfluxDBBucket: getEnv("INFLUXDB_BUCKET", "events"),

		SentryDSN: getEnv("SENTRY_DSN", ""),
	}

	AppConfig = config
	return config
}

// Location resolves BackupTimezone, falling back to local time
func (c *Config) Location() *time.Location {
	if c.BackupTimezone == "" || c.BackupTimezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.BackupTimezone)
	if err != nil {
		log.Printf("Invalid BACKUP_TIMEZONE %q, using local time", c.BackupTimezone)
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Invalid boolean for %s, using default: %v", key, defaultValue)
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Invalid integer for %s, using default: %d", key, defaultValue)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			log.Printf("Invalid duration for %s, using default: %s", key, defaultValue)
			return defaultValue
		}
		return d
	}
	return defaultValue
}
