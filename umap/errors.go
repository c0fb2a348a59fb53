package umap

import (
	"context"
	"errors"
	"fmt"

	"github.com/alDuncanson/manifold/fuzzy"
	"github.com/alDuncanson/manifold/knn"
	"github.com/alDuncanson/manifold/layout"
	"github.com/alDuncanson/manifold/metric"
	"github.com/alDuncanson/manifold/optimize"
)

var (
	// ErrInvalidInput is returned for an unusable dataset or configuration.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownMetric is returned when the configured metric is not registered.
	ErrUnknownMetric = metric.ErrUnknownMetric

	// ErrMetricIncompatible is returned when the metric cannot be applied to
	// vectors of the dataset's dimension.
	ErrMetricIncompatible = metric.ErrIncompatible

	// ErrNumericInstability is returned when the optimizer produced NaN or Inf.
	ErrNumericInstability = optimize.ErrNumericInstability

	// ErrCancelled is returned when the context is done before the run finished.
	ErrCancelled = optimize.ErrCancelled
)

// ValidationError describes a rejected configuration field or dataset property.
//
// It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// translateError maps errors of the pipeline stages onto the engine's error kinds.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	switch {
	case errors.Is(err, knn.ErrInvalidK),
		errors.Is(err, knn.ErrEmptyDataset),
		errors.Is(err, knn.ErrRaggedDataset),
		errors.Is(err, fuzzy.ErrEmptyGraph),
		errors.Is(err, layout.ErrInvalidDims),
		errors.Is(err, layout.ErrEmptyGraph),
		errors.Is(err, layout.ErrUnknownStrategy),
		errors.Is(err, layout.ErrMissingData),
		errors.Is(err, optimize.ErrShapeMismatch),
		errors.Is(err, optimize.ErrInvalidCurve):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return err
}
