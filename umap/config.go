package umap

import (
	"github.com/alDuncanson/manifold/layout"
	"github.com/alDuncanson/manifold/metric"
	"github.com/alDuncanson/manifold/optimize"
)

// Config holds the hyperparameters of one run.
type Config struct {
	Components   int           // Target dimensions (default: 2)
	Neighbors    int           // Number of nearest neighbors (default: 15)
	Metric       string        // Registered metric name (default: "euclidean")
	MetricParams metric.Params // Parameters for parametrised metrics

	MinDist float64 // Minimum distance in the embedding (default: 0.1)
	Spread  float64 // Effective scale of embedded points (default: 1.0)

	Threads int   // Worker count; 1 is the deterministic mode (default: 1)
	Seed    int64 // Seed for every random stream (default: 42)

	Epochs             int     // Optimization epochs; 0 derives it from the dataset size
	NegativeSampleRate int     // Negative samples per positive sample (default: 5)
	LearningRate       float64 // Initial learning rate (default: 1.0)
	RepulsionStrength  float64 // Weight of negative samples (default: 1.0)

	Init              layout.Strategy // Initial layout (default: spectral)
	ClampNeighbors    bool            // Lower Neighbors to n-1 instead of failing
	ExactKNNThreshold int             // Datasets below this size use exact neighbors (default: 4096)

	// Registry resolves Metric. Nil uses the built-in metrics.
	Registry *metric.Registry
	// Logger receives warnings and stage timings. Nil discards them.
	Logger *Logger
	// OnEpoch, if set, is called after every optimization epoch.
	OnEpoch optimize.EpochFunc
}

// DefaultConfig returns sensible default hyperparameters.
func DefaultConfig() Config {
	return Config{
		Components:         2,
		Neighbors:          15,
		Metric:             "euclidean",
		MinDist:            0.1,
		Spread:             1.0,
		Threads:            1,
		Seed:               42,
		NegativeSampleRate: 5,
		LearningRate:       1.0,
		RepulsionStrength:  1.0,
		Init:               layout.Spectral,
		ExactKNNThreshold:  4096,
	}
}
