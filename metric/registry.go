package metric

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a Metric from its parameters.
type Factory func(Params) (Metric, error)

// Registry maps metric names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding every built-in metric.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for name, fn := range stateless {
		r.Register(name, constant(New(canonical(name), fn, angular[canonical(name)])))
	}
	r.Register("haversine", constant(haversine{}))
	r.Register("minkowski", newMinkowski)
	r.Register("wminkowski", newWeightedMinkowski)
	r.Register("weighted_minkowski", newWeightedMinkowski)
	r.Register("mahalanobis", newMahalanobis)
	r.Register("seuclidean", newStandardisedEuclidean)
	r.Register("standardised_euclidean", newStandardisedEuclidean)
	return r
}

var defaultRegistry = NewRegistry()

// Get resolves name in the default registry.
func Get(name string, params Params) (Metric, error) {
	return defaultRegistry.Get(name, params)
}

// Register adds or replaces a metric. Names are case-insensitive.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// Get builds the named metric with params.
func (r *Registry) Get(name string, params Params) (Metric, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return factory(params)
}

// Names lists the registered metric names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func constant(m Metric) Factory {
	return func(Params) (Metric, error) { return m, nil }
}

var stateless = map[string]Func{
	"euclidean":         Euclidean,
	"l2":                Euclidean,
	"sqeuclidean":       SquaredEuclidean,
	"reduced_euclidean": SquaredEuclidean,
	"manhattan":         Manhattan,
	"l1":                Manhattan,
	"taxicab":           Manhattan,
	"chebyshev":         Chebyshev,
	"linfinity":         Chebyshev,
	"linf":              Chebyshev,
	"canberra":          Canberra,
	"braycurtis":        BrayCurtis,
	"cosine":            Cosine,
	"correlation":       Correlation,
	"hellinger":         Hellinger,
	"hamming":           Hamming,
	"jaccard":           Jaccard,
	"dice":              Dice,
	"kulsinski":         Kulsinski,
	"rogerstanimoto":    RogersTanimoto,
	"russellrao":        RussellRao,
	"sokalmichener":     SokalMichener,
	"sokalsneath":       SokalSneath,
	"yule":              Yule,
	"matching":          Matching,
}

var aliases = map[string]string{
	"l2":                "euclidean",
	"reduced_euclidean": "sqeuclidean",
	"l1":                "manhattan",
	"taxicab":           "manhattan",
	"linfinity":         "chebyshev",
	"linf":              "chebyshev",
}

var angular = map[string]bool{
	"cosine":      true,
	"correlation": true,
}

func canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}
