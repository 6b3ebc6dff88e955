// Package fallback runs ordered strategy lists where the first success wins.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/your-org/facesearch/internal/observability"
)

// Strategy is one named attempt in a chain.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result carries the value of the winning strategy and its name.
type Result[T any] struct {
	Value    T
	Strategy string
}

// FirstSuccess tries strategies in order and returns the first one that succeeds.
// When every strategy fails, the returned error joins each strategy's error.
// component labels the fallback metric.
func FirstSuccess[T any](ctx context.Context, component string, strategies ...Strategy[T]) (Result[T], error) {
	var errs []error
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := s.Run(ctx)
		if err == nil {
			if i > 0 {
				observability.FallbackTotal.WithLabelValues(component, s.Name).Inc()
			}
			return Result[T]{Value: v, Strategy: s.Name}, nil
		}
		slog.Debug("fallback strategy failed", "component", component, "strategy", s.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}

	var zero Result[T]
	if len(errs) == 0 {
		return zero, fmt.Errorf("%s: no strategies configured", component)
	}
	return zero, errors.Join(errs...)
}
