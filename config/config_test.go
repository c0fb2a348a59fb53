package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alDuncanson/manifold/layout"
	"github.com/alDuncanson/manifold/umap"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, 15, cfg.Engine.Neighbors)
	assert.Equal(t, "spectral", cfg.Engine.Init)
	assert.Equal(t, "localhost:6334", cfg.Qdrant.Address)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifold.yaml")
	content := `
engine:
  neighbors: 30
  metric: cosine
  min_dist: 0.25
  init: pca
qdrant:
  collection: docs
  address: ""
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Engine.Neighbors)
	assert.Equal(t, "cosine", cfg.Engine.Metric)
	assert.Equal(t, 0.25, cfg.Engine.MinDist)
	assert.Equal(t, 2, cfg.Engine.Components)
	assert.Equal(t, 1.0, cfg.Engine.Spread)
	assert.Equal(t, "docs", cfg.Qdrant.Collection)
	assert.Equal(t, "localhost:6334", cfg.Qdrant.Address)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [1, 2"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Engine.Metric = "mahalanobis"
	cfg.Engine.MetricParams.InverseCovariance = [][]float64{{1, 0}, {0, 2}}
	cfg.Output.Path = "out.csv"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDefaultPrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, defaultConfig(), cfg)

	require.NoError(t, os.WriteFile("manifold.yaml", []byte("engine:\n  seed: 7\n"), 0o644))
	cfg, path, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "manifold.yaml", path)
	assert.Equal(t, int64(7), cfg.Engine.Seed)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MANIFOLD_THREADS", "8")
	t.Setenv("MANIFOLD_SEED", "99")
	t.Setenv("MANIFOLD_METRIC", "manhattan")
	t.Setenv("MANIFOLD_LOG_LEVEL", "debug")
	t.Setenv("MANIFOLD_QDRANT_ADDRESS", "qdrant:6334")

	cfg := defaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, 8, cfg.Engine.Threads)
	assert.Equal(t, int64(99), cfg.Engine.Seed)
	assert.Equal(t, "manhattan", cfg.Engine.Metric)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "qdrant:6334", cfg.Qdrant.Address)

	t.Setenv("MANIFOLD_THREADS", "many")
	assert.ErrorContains(t, ApplyEnv(cfg), "MANIFOLD_THREADS")
}

func TestEngineUmap(t *testing.T) {
	engine := defaultConfig().Engine
	engine.Init = "random"
	engine.Epochs = 10
	engine.ClampNeighbors = true

	cfg, err := engine.Umap(nil)
	require.NoError(t, err)
	want := umap.DefaultConfig()
	assert.Equal(t, layout.Random, cfg.Init)
	assert.Equal(t, 10, cfg.Epochs)
	assert.True(t, cfg.ClampNeighbors)
	assert.Equal(t, want.Neighbors, cfg.Neighbors)
	assert.Equal(t, want.Spread, cfg.Spread)

	engine.Init = "tsne"
	_, err = engine.Umap(nil)
	assert.ErrorIs(t, err, layout.ErrUnknownStrategy)
}

func TestEngineUmapDerivesMetricParams(t *testing.T) {
	data := [][]float64{{0, 1}, {2, 1}, {0, 3}, {2, 3}, {1, 2}}

	engine := defaultConfig().Engine
	engine.Metric = "seuclidean"
	engine.DeriveMetricParams = true
	cfg, err := engine.Umap(data)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, cfg.MetricParams.Variances, 1e-12)

	engine.Metric = "mahalanobis"
	cfg, err = engine.Umap(data)
	require.NoError(t, err)
	require.Len(t, cfg.MetricParams.InverseCovariance, 2)
	assert.InDelta(t, 1, cfg.MetricParams.InverseCovariance[0][0], 1e-12)
	assert.InDelta(t, 0, cfg.MetricParams.InverseCovariance[0][1], 1e-12)

	engine.DeriveMetricParams = false
	cfg, err = engine.Umap(data)
	require.NoError(t, err)
	assert.Nil(t, cfg.MetricParams.InverseCovariance)
}

func TestLogConfigLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Format: "json"}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LogConfig{Level: "loud"}.Logger()
	assert.ErrorContains(t, err, "log level")

	_, err = LogConfig{Level: "info", Format: "xml"}.Logger()
	assert.ErrorContains(t, err, "log format")
}
