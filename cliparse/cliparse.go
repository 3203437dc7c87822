package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/DadGPT/halloween/db"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BlobBackendDB   = "db"
	BlobBackendDisk = "disk"

	DefaultMaxUploadBytes = 5 << 20
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	Environment    string
	AdminKey       string
	IPHashSalt     string
	UploadDir      string
	BlobBackend    string
	Timezone       string
	StoreTimeout   time.Duration
	MaxUploadBytes int64
}

// IsProduction reports whether degraded fallbacks must be disabled.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// ParseFlags reads flags, then environment variables (including a .env file
// when present) for anything not given on the command line.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var maxUpload string

	// Missing .env is fine; real env vars always win over it.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("halloween", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.Environment, "env", "", "Environment (development or production)")

	// Storage
	fs.StringVar(&cfg.UploadDir, "uploads", "", "Directory for locally stored images")
	fs.StringVar(&cfg.BlobBackend, "blob", "", "Primary image store (db or disk)")
	fs.StringVar(&maxUpload, "max-upload", "", "Maximum upload size, e.g. 5MB")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", 0, "Timeout for each store operation")

	// Contest
	fs.StringVar(&cfg.Timezone, "tz", "", "Display timezone for the contest schedule")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKey, "admin-key", "", "Admin key for management routes (prefer env)")
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", "", "Salt for hashing voter IPs (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3000 // default
		}
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
	}
	dialect, err := db.ParseDialect(cfg.DatabaseType)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_TYPE: %w", err)
	}
	cfg.DatabaseType = string(dialect)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		if dialect == db.Postgres {
			return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
		}
		cfg.DatabaseURL = "contest.db"
	}

	if cfg.Environment == "" {
		cfg.Environment = envOr("ENVIRONMENT", EnvDevelopment)
	}
	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		return Config{}, errors.New("ENVIRONMENT must be development or production")
	}

	if cfg.UploadDir == "" {
		cfg.UploadDir = envOr("UPLOAD_DIR", "uploads")
	}
	if cfg.BlobBackend == "" {
		cfg.BlobBackend = envOr("BLOB_BACKEND", BlobBackendDB)
	}
	if cfg.BlobBackend != BlobBackendDB && cfg.BlobBackend != BlobBackendDisk {
		return Config{}, errors.New("BLOB_BACKEND must be db or disk")
	}

	if cfg.Timezone == "" {
		cfg.Timezone = envOr("CONTEST_TIMEZONE", "UTC")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid CONTEST_TIMEZONE: %w", err)
	}

	if cfg.StoreTimeout == 0 {
		if v := os.Getenv("STORE_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, errors.New("invalid STORE_TIMEOUT env variable")
			}
			cfg.StoreTimeout = d
		} else {
			cfg.StoreTimeout = 5 * time.Second
		}
	}

	if maxUpload == "" {
		maxUpload = os.Getenv("MAX_UPLOAD_BYTES")
	}
	cfg.MaxUploadBytes = DefaultMaxUploadBytes
	if maxUpload != "" {
		n, err := humanize.ParseBytes(maxUpload)
		if err != nil || n == 0 {
			return Config{}, errors.New("invalid MAX_UPLOAD_BYTES")
		}
		cfg.MaxUploadBytes = int64(n)
	}

	// Secrets are optional: without an admin key management routes stay open
	if cfg.AdminKey == "" {
		cfg.AdminKey = os.Getenv("ADMIN_KEY")
	}
	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = os.Getenv("IP_HASH_SALT")
	}
	if cfg.IsProduction() && cfg.AdminKey == "" {
		return Config{}, errors.New("ADMIN_KEY required in production")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
