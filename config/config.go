// Package config loads the command-line configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alDuncanson/manifold/layout"
	"github.com/alDuncanson/manifold/metric"
	"github.com/alDuncanson/manifold/umap"
)

// EngineConfig holds the embedding hyperparameters.
type EngineConfig struct {
	Components   int           `yaml:"components"`
	Neighbors    int           `yaml:"neighbors"`
	Metric       string        `yaml:"metric"`
	MetricParams metric.Params `yaml:"metric_params,omitempty"`
	// DeriveMetricParams fills Mahalanobis and standardised Euclidean
	// parameters from the dataset when they are not given.
	DeriveMetricParams bool    `yaml:"derive_metric_params"`
	MinDist            float64 `yaml:"min_dist"`
	Spread             float64 `yaml:"spread"`
	Threads            int     `yaml:"threads"`
	Seed               int64   `yaml:"seed"`
	Epochs             int     `yaml:"epochs"`
	NegativeSampleRate int     `yaml:"negative_sample_rate"`
	LearningRate       float64 `yaml:"learning_rate"`
	RepulsionStrength  float64 `yaml:"repulsion_strength"`
	Init               string  `yaml:"init"`
	ClampNeighbors     bool    `yaml:"clamp_neighbors"`
	ExactKNNThreshold  int     `yaml:"exact_knn_threshold"`
}

// QdrantConfig contains connection details for reading vectors from Qdrant.
type QdrantConfig struct {
	Address     string `yaml:"address"`
	Collection  string `yaml:"collection"`
	TextField   string `yaml:"text_field"`
	PageSize    uint32 `yaml:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OutputConfig controls where the embedding goes.
type OutputConfig struct {
	Path string `yaml:"path"`
	View bool   `yaml:"view"`
}

// LogConfig selects the log level and format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Engine EngineConfig `yaml:"engine"`
	Qdrant QdrantConfig `yaml:"qdrant"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// Load reads a config from a specified path. Fields missing from the file keep
// their defaults. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./manifold.yaml first, then ~/.config/manifold/config.yaml.
// If neither exists, it returns the defaults and an empty path.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "manifold.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return defaultConfig(), "", nil
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return defaultConfig(), "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "manifold", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	d := umap.DefaultConfig()
	return &AppConfig{
		Engine: EngineConfig{
			Components:         d.Components,
			Neighbors:          d.Neighbors,
			Metric:             d.Metric,
			MinDist:            d.MinDist,
			Spread:             d.Spread,
			Threads:            d.Threads,
			Seed:               d.Seed,
			NegativeSampleRate: d.NegativeSampleRate,
			LearningRate:       d.LearningRate,
			RepulsionStrength:  d.RepulsionStrength,
			Init:               d.Init.String(),
			ExactKNNThreshold:  d.ExactKNNThreshold,
		},
		Qdrant: QdrantConfig{Address: "localhost:6334", TextField: "text", PageSize: 256, TimeoutSecs: 30},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Engine.Metric == "" {
		cfg.Engine.Metric = "euclidean"
	}
	if cfg.Engine.Init == "" {
		cfg.Engine.Init = layout.Spectral.String()
	}
	if cfg.Qdrant.Address == "" {
		cfg.Qdrant.Address = "localhost:6334"
	}
	if cfg.Qdrant.TextField == "" {
		cfg.Qdrant.TextField = "text"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// ApplyEnv overrides fields from MANIFOLD_* environment variables.
func ApplyEnv(cfg *AppConfig) error {
	if v, ok := os.LookupEnv("MANIFOLD_THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MANIFOLD_THREADS: %w", err)
		}
		cfg.Engine.Threads = n
	}
	if v, ok := os.LookupEnv("MANIFOLD_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MANIFOLD_SEED: %w", err)
		}
		cfg.Engine.Seed = n
	}
	if v, ok := os.LookupEnv("MANIFOLD_METRIC"); ok && v != "" {
		cfg.Engine.Metric = v
	}
	if v, ok := os.LookupEnv("MANIFOLD_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("MANIFOLD_QDRANT_ADDRESS"); ok && v != "" {
		cfg.Qdrant.Address = v
	}
	return nil
}

// Umap converts the engine section into a umap.Config for data. When
// DeriveMetricParams is set, Mahalanobis and standardised Euclidean
// parameters missing from the file are estimated from data.
func (e EngineConfig) Umap(data [][]float64) (umap.Config, error) {
	init, err := layout.ParseStrategy(e.Init)
	if err != nil {
		return umap.Config{}, err
	}

	params := e.MetricParams
	if e.DeriveMetricParams {
		switch strings.ToLower(e.Metric) {
		case "mahalanobis":
			if params.InverseCovariance == nil {
				if params.InverseCovariance, err = metric.InverseCovariance(data); err != nil {
					return umap.Config{}, fmt.Errorf("derive inverse covariance: %w", err)
				}
			}
		case "seuclidean", "standardised_euclidean":
			if params.Variances == nil {
				if params.Variances, err = metric.Variances(data); err != nil {
					return umap.Config{}, fmt.Errorf("derive variances: %w", err)
				}
			}
		}
	}

	cfg := umap.DefaultConfig()
	cfg.Components = e.Components
	cfg.Neighbors = e.Neighbors
	cfg.Metric = e.Metric
	cfg.MetricParams = params
	cfg.MinDist = e.MinDist
	cfg.Spread = e.Spread
	cfg.Threads = e.Threads
	cfg.Seed = e.Seed
	cfg.Epochs = e.Epochs
	cfg.NegativeSampleRate = e.NegativeSampleRate
	cfg.LearningRate = e.LearningRate
	cfg.RepulsionStrength = e.RepulsionStrength
	cfg.Init = init
	cfg.ClampNeighbors = e.ClampNeighbors
	cfg.ExactKNNThreshold = e.ExactKNNThreshold
	return cfg, nil
}

// Logger builds the engine logger described by the log section.
func (l LogConfig) Logger() (*umap.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return umap.NewTextLogger(level), nil
	case "json":
		return umap.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("log format: unknown %q", l.Format)
	}
}
