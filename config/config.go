package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort         string
	DatabaseURL        string
	SeedPath           string
	AdminToken         string
	LogLevel           string
	OracleSubmitURL    string
	DatasetURL         string
	RefreshInterval    string
	RefreshIssuerIDs   string
	FulfillmentTimeout string
	SubmitMaxRetries   string
}

// DefaultDatasetURL is the canonical issuer dataset published for oracle
// verification. Overridable via DATASET_URL.
const DefaultDatasetURL = "https://raw.githubusercontent.com/Sapient-Predictive-Analytics/hashirwa/tech/m2/data/hashirwa_oracle.json"

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		SeedPath:           getEnv("SEED_PATH", "data/issuers.json"),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		OracleSubmitURL:    getEnv("ORACLE_SUBMIT_URL", ""),
		DatasetURL:         getEnv("DATASET_URL", DefaultDatasetURL),
		RefreshInterval:    getEnv("REFRESH_INTERVAL_MINUTES", "30"),
		RefreshIssuerIDs:   getEnv("REFRESH_ISSUER_IDS", ""),
		FulfillmentTimeout: getEnv("FULFILLMENT_TIMEOUT_SECONDS", "9"),
		SubmitMaxRetries:   getEnv("SUBMIT_MAX_RETRIES", "3"),
	}
}

// GetRefreshInterval returns the minimum time between automatic refresh
// rounds per issuer.
func (c *Config) GetRefreshInterval() time.Duration {
	minutes, err := strconv.Atoi(c.RefreshInterval)
	if err != nil || minutes <= 0 {
		logrus.Warnf("Invalid REFRESH_INTERVAL_MINUTES value: %s, using default 30 minutes", c.RefreshInterval)
		return 30 * time.Minute
	}

	return time.Duration(minutes) * time.Minute
}

// GetFulfillmentTimeout returns how long a round may stay pending before
// the expiry sweep resolves it. Matches the off-chain compute timeout plus
// network slack.
func (c *Config) GetFulfillmentTimeout() time.Duration {
	seconds, err := strconv.Atoi(c.FulfillmentTimeout)
	if err != nil || seconds <= 0 {
		logrus.Warnf("Invalid FULFILLMENT_TIMEOUT_SECONDS value: %s, using default 9 seconds", c.FulfillmentTimeout)
		return 9 * time.Second
	}

	return time.Duration(seconds) * time.Second
}

// GetRefreshIssuerIDs parses the ordered, comma-separated issuer id list
// refreshed on each scheduler tick. Empty means every issuer in the catalog.
func (c *Config) GetRefreshIssuerIDs() []int {
	if strings.TrimSpace(c.RefreshIssuerIDs) == "" {
		return nil
	}

	var ids []int
	for _, part := range strings.Split(c.RefreshIssuerIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			logrus.Warnf("Ignoring invalid issuer id %q in REFRESH_ISSUER_IDS", part)
			continue
		}
		ids = append(ids, id)
	}

	return ids
}

// GetSubmitMaxRetries returns the retry budget for oracle submissions.
func (c *Config) GetSubmitMaxRetries() int {
	retries, err := strconv.Atoi(c.SubmitMaxRetries)
	if err != nil || retries < 0 {
		logrus.Warnf("Invalid SUBMIT_MAX_RETRIES value: %s, using default 3", c.SubmitMaxRetries)
		return 3
	}

	return retries
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
