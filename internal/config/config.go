package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SimilarityWeights maps each scoring factor to its weight. Each factor
// contributes at most its weight to the total score. The engine does not
// require the weights to sum to 1; callers own that consistency.
type SimilarityWeights struct {
	LocationRadius      float64 `yaml:"location_radius" mapstructure:"location_radius"`
	LocationName        float64 `yaml:"location_name" mapstructure:"location_name"`
	DetailLocation      float64 `yaml:"detail_location" mapstructure:"detail_location"`
	LocationDescription float64 `yaml:"location_description" mapstructure:"location_description"`
	NonCompliance       float64 `yaml:"non_compliance" mapstructure:"non_compliance"`
	SubNonCompliance    float64 `yaml:"sub_non_compliance" mapstructure:"sub_non_compliance"`
	FindingDescription  float64 `yaml:"finding_description" mapstructure:"finding_description"`
}

// Sum returns the total of all factor weights.
func (w SimilarityWeights) Sum() float64 {
	return w.LocationRadius + w.LocationName + w.DetailLocation +
		w.LocationDescription + w.NonCompliance + w.SubNonCompliance +
		w.FindingDescription
}

// SimilarityConfig is the value object consumed by the scorer, ranker,
// and pain-point aggregator.
type SimilarityConfig struct {
	TimeWindowDays   int               `yaml:"time_window_days" mapstructure:"time_window_days"`
	LocationRadiusKm float64           `yaml:"location_radius_km" mapstructure:"location_radius_km"`
	Threshold        float64           `yaml:"threshold" mapstructure:"threshold"`
	TopN             int               `yaml:"top_n" mapstructure:"top_n"`
	MinClusterSize   int               `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
	Weights          SimilarityWeights `yaml:"weights" mapstructure:"weights"`
}

// RetrievalConfig configures knowledge-base context retrieval.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k" mapstructure:"default_top_k"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HAZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "hazard.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("similarity.time_window_days", 7)
	v.SetDefault("similarity.location_radius_km", 1.0)
	v.SetDefault("similarity.threshold", 0.75)
	v.SetDefault("similarity.top_n", 10)
	v.SetDefault("similarity.min_cluster_size", 3)
	v.SetDefault("similarity.weights.location_radius", 0.15)
	v.SetDefault("similarity.weights.location_name", 0.15)
	v.SetDefault("similarity.weights.detail_location", 0.05)
	v.SetDefault("similarity.weights.location_description", 0.10)
	v.SetDefault("similarity.weights.non_compliance", 0.15)
	v.SetDefault("similarity.weights.sub_non_compliance", 0.10)
	v.SetDefault("similarity.weights.finding_description", 0.30)
	v.SetDefault("retrieval.default_top_k", 5)
}

// Validate checks that the similarity configuration is internally
// consistent. A weight sum far from 1 is only warned about: the scoring
// contract says each factor contributes at most its weight, and callers
// own the normalization.
func (c *SimilarityConfig) Validate() error {
	var errs []string

	for name, w := range map[string]float64{
		"location_radius":      c.Weights.LocationRadius,
		"location_name":        c.Weights.LocationName,
		"detail_location":      c.Weights.DetailLocation,
		"location_description": c.Weights.LocationDescription,
		"non_compliance":       c.Weights.NonCompliance,
		"sub_non_compliance":   c.Weights.SubNonCompliance,
		"finding_description":  c.Weights.FindingDescription,
	} {
		if w < 0 {
			errs = append(errs, name+" weight must be >= 0")
		}
	}

	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, "threshold must be between 0 and 1")
	}
	if c.TimeWindowDays <= 0 {
		errs = append(errs, "time_window_days must be > 0")
	}
	if c.LocationRadiusKm < 0 {
		errs = append(errs, "location_radius_km must be >= 0")
	}
	if c.TopN <= 0 {
		errs = append(errs, "top_n must be > 0")
	}
	if c.MinClusterSize < 2 {
		errs = append(errs, "min_cluster_size must be >= 2")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: similarity validation failed: %s", strings.Join(errs, "; "))
	}

	if sum := c.Weights.Sum(); math.Abs(sum-1) > 0.05 {
		zap.L().Warn("config: similarity weights do not sum to 1",
			zap.Float64("sum", sum),
		)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
