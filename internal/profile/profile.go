package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// VectorOpsArray stores features as REAL[] and ranks with the l2_distance function.
	VectorOpsArray = "array"
	// VectorOpsPgvector stores features as pgvector's vector type and ranks with <->.
	VectorOpsPgvector = "pgvector"
)

// Profile is configuration to start main server.
type Profile struct {
	// Recognition pipeline. When RecognizerURL is empty the pipeline is
	// invoked through the database function.
	RecognizerURL     string
	RecognizerTimeout int // seconds

	// Thumbnail generation
	ThumbnailSize        int
	ThumbnailConcurrency int

	// HTTP surface
	RateLimit      float64 // requests per second per client IP, 0 disables
	BodyLimit      string
	MetricsEnabled bool

	UNIXSock  string
	Mode      string
	DSN       string
	Driver    string
	VectorOps string
	Version   string
	Addr      string
	Data      string
	Port      int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// UsesDatabasePipeline reports whether recognition runs through the store.
func (p *Profile) UsesDatabasePipeline() bool {
	return p.RecognizerURL == ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := cast.ToFloat64E(strings.TrimSpace(value)); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads tuning configuration from environment variables.
func (p *Profile) FromEnv() {
	p.RecognizerTimeout = getEnvOrDefaultInt("ITEMSEARCH_RECOGNIZER_TIMEOUT_SECONDS", 60)

	p.ThumbnailSize = getEnvOrDefaultInt("ITEMSEARCH_THUMBNAIL_SIZE", 299)
	p.ThumbnailConcurrency = getEnvOrDefaultInt("ITEMSEARCH_THUMBNAIL_CONCURRENCY", 3)

	p.RateLimit = getEnvOrDefaultFloat("ITEMSEARCH_RATE_LIMIT", 0)
	p.BodyLimit = getEnvOrDefault("ITEMSEARCH_BODY_LIMIT", "20M")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = DriverPostgres
	}
	if p.Driver != DriverPostgres && p.Driver != DriverSQLite {
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.VectorOps == "" {
		p.VectorOps = VectorOpsArray
	}
	if p.VectorOps != VectorOpsArray && p.VectorOps != VectorOpsPgvector {
		return errors.Errorf("unsupported vector ops %q", p.VectorOps)
	}

	if p.ThumbnailSize <= 0 {
		p.ThumbnailSize = 299
	}
	if p.ThumbnailConcurrency <= 0 {
		p.ThumbnailConcurrency = 1
	}

	if p.Driver == DriverPostgres {
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
		return nil
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "itemsearch")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/itemsearch"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.DSN == "" {
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("itemsearch_%s.db", p.Mode))
	}
	return nil
}
