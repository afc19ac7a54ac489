package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/furrow/pkg/result"
)

// Call describes one service operation.
type Call struct {
	Entity    string
	Operation string
}

// Path is "<entity>/<operation>", the string Match patterns are applied to.
func (c Call) Path() string { return c.Entity + "/" + c.Operation }

// Interceptor wraps service operations. It must call next to run the operation.
type Interceptor interface {
	Intercept(ctx context.Context, call Call, next func(context.Context) error) error
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, call Call, next func(context.Context) error) error

func (f InterceptorFunc) Intercept(ctx context.Context, call Call, next func(context.Context) error) error {
	return f(ctx, call, next)
}

// chain applies interceptors so that the first one is the outermost.
func chain(ics []Interceptor, call Call, fn func(context.Context) error) func(context.Context) error {
	next := fn
	for i := len(ics) - 1; i >= 0; i-- {
		ic, inner := ics[i], next
		next = func(ctx context.Context) error {
			return ic.Intercept(ctx, call, inner)
		}
	}
	return next
}

// Logging logs every operation at Debug, and failures at Warn.
func Logging(logger *slog.Logger) Interceptor {
	return InterceptorFunc(func(ctx context.Context, call Call, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)
		attrs := []any{"entity", call.Entity, "op", call.Operation, "duration", time.Since(start)}
		if err != nil {
			logger.WarnContext(ctx, "service: operation failed", append(attrs, "kind", result.KindOf(err).String(), "error", err)...)
			return err
		}
		logger.DebugContext(ctx, "service: operation", attrs...)
		return nil
	})
}

// Match applies ic only to calls whose path matches the doublestar pattern,
// e.g. "Product/*" or "*/Delete*".
func Match(pattern string, ic Interceptor) (Interceptor, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid interceptor pattern %q", pattern)
	}
	return InterceptorFunc(func(ctx context.Context, call Call, next func(context.Context) error) error {
		if ok, _ := doublestar.Match(pattern, call.Path()); ok {
			return ic.Intercept(ctx, call, next)
		}
		return next(ctx)
	}), nil
}

// Metrics counts operations by entity, operation and outcome, and observes
// their duration. Collectors already registered on reg are reused.
func Metrics(reg prometheus.Registerer) (Interceptor, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "furrow",
		Subsystem: "service",
		Name:      "operations_total",
		Help:      "Data service operations by entity, operation and outcome.",
	}, []string{"entity", "operation", "outcome"})
	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "furrow",
		Subsystem: "service",
		Name:      "operation_duration_seconds",
		Help:      "Data service operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"entity", "operation"})

	if err := reg.Register(ops); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("metrics: %T already registered as furrow_service_operations_total", are.ExistingCollector)
		}
		ops = existing
	}
	if err := reg.Register(dur); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("metrics: %T already registered as furrow_service_operation_duration_seconds", are.ExistingCollector)
		}
		dur = existing
	}

	return InterceptorFunc(func(ctx context.Context, call Call, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)
		dur.WithLabelValues(call.Entity, call.Operation).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = result.KindOf(err).String()
		}
		ops.WithLabelValues(call.Entity, call.Operation, outcome).Inc()
		return err
	}), nil
}
