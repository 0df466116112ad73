package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/era5-sounding/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all pipeline settings, populated from environment variables.
// Every default reproduces the original dataset build.
type Config struct {
	CatalogPath  string
	PointDir     string
	GridDir      string
	ProcessedDir string

	TornadoBasename string
	RandomBasename  string

	RandomPointsPerEvent int
	RandomSeed           *uint64
	RandomBox            domain.BoundingBox
	GridBox              domain.BoundingBox

	// CDS retrieval configuration.
	CDSURL               string
	CDSKey               string
	CDSRCPath            string
	CDSPollInterval      time.Duration
	CDSTimeout           time.Duration
	CDSRequestsPerSecond float64

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	PushgatewayURL  string
	ShutdownTimeout time.Duration

	// Optional Kafka sink for profile rows.
	KafkaBrokers      []string
	KafkaProfileTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("CDS_POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	cdsTimeout, err := parsePositiveDuration("CDS_TIMEOUT", "10m")
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("CDS_REQUESTS_PER_SECOND", "0"), 64)
	if err != nil || rps < 0 {
		return nil, errors.New("invalid CDS_REQUESTS_PER_SECOND")
	}

	perEvent, err := strconv.Atoi(sharedcfg.EnvOrDefault("RANDOM_POINTS_PER_EVENT", "10"))
	if err != nil || perEvent < 0 {
		return nil, errors.New("invalid RANDOM_POINTS_PER_EVENT")
	}

	seed, err := parseSeed()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		CatalogPath:     sharedcfg.EnvOrDefault("CATALOG_PATH", "data/ESWD_Tornado_FinalVersion_1995_2024.csv"),
		PointDir:        sharedcfg.EnvOrDefault("POINT_DIR", "data/ERA5_MitRandomPoints"),
		GridDir:         sharedcfg.EnvOrDefault("GRID_DIR", "data/ERA5_Germany_Gridded_EventBased"),
		ProcessedDir:    sharedcfg.EnvOrDefault("PROCESSED_DIR", "data/ERA5_ProcessedFiles"),
		TornadoBasename: sharedcfg.EnvOrDefault("TORNADO_BASENAME", "Processed_Tornado_ERA5_Concat_1995_2024"),
		RandomBasename:  sharedcfg.EnvOrDefault("RANDOM_BASENAME", "Processed_RandomPoints_ERA5_Concat_1995_2024"),

		RandomPointsPerEvent: perEvent,
		RandomSeed:           seed,
		RandomBox:            domain.Germany,
		GridBox:              domain.Germany,

		CDSURL:               os.Getenv("CDSAPI_URL"),
		CDSKey:               os.Getenv("CDSAPI_KEY"),
		CDSRCPath:            sharedcfg.EnvOrDefault("CDSAPI_RC", defaultRCPath()),
		CDSPollInterval:      pollInterval,
		CDSTimeout:           cdsTimeout,
		CDSRequestsPerSecond: rps,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:      brokers,
		KafkaProfileTopic: sharedcfg.EnvOrDefault("KAFKA_PROFILE_TOPIC", "era5-sounding-profiles"),
	}

	if cfg.CatalogPath == "" {
		return nil, errors.New("CATALOG_PATH is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaProfileTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_PROFILE_TOPIC is empty")
	}

	return cfg, nil
}

// KafkaEnabled reports whether profile rows are also published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// CheckpointPath returns the intermediate netCDF path for a collection basename.
func (c *Config) CheckpointPath(basename string) string {
	return filepath.Join(c.ProcessedDir, basename+".nc")
}

// TablePath returns the sounding CSV path for a collection basename.
func (c *Config) TablePath(basename string) string {
	return filepath.Join(c.ProcessedDir, basename+".csv")
}

// Basename returns the output basename for a collection name.
func (c *Config) Basename(collection string) string {
	if collection == "random" {
		return c.RandomBasename
	}
	return c.TornadoBasename
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseSeed() (*uint64, error) {
	s := os.Getenv("RANDOM_SEED")
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, errors.New("invalid RANDOM_SEED")
	}
	return &n, nil
}

func defaultRCPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cdsapirc"
	}
	return filepath.Join(home, ".cdsapirc")
}
