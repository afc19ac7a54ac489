package service_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/service"
)

func TestMetricsInterceptor(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := service.Metrics(reg)
	require.NoError(t, err)

	again, err := service.Metrics(reg)
	require.NoError(t, err, "collectors already registered are reused")

	f := newFixture()
	_, svc := f.scope(t, service.WithInterceptors(metrics, again))
	id := svc.Add(ctx, service.Direct(&customer{Name: "m"}), true, "").OrElse(0)
	require.NotZero(t, id)
	svc.Get(ctx, id+1)

	expected := `
# HELP furrow_service_operations_total Data service operations by entity, operation and outcome.
# TYPE furrow_service_operations_total counter
furrow_service_operations_total{entity="customer",operation="Add",outcome="ok"} 2
furrow_service_operations_total{entity="customer",operation="Get",outcome="not_found"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "furrow_service_operations_total"))

	n, err := testutil.GatherAndCount(reg, "furrow_service_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetricsRejectsForeignCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "furrow",
		Subsystem: "service",
		Name:      "operations_total",
		Help:      "Data service operations by entity, operation and outcome.",
	}, []string{"entity", "operation", "outcome"}))

	var (
		ic  service.Interceptor
		err error
	)
	require.NotPanics(t, func() { ic, err = service.Metrics(reg) })
	assert.ErrorContains(t, err, "already registered")
	assert.Nil(t, ic)
}

func TestLoggingInterceptor(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	f := newFixture()
	_, svc := f.scope(t, service.WithInterceptors(service.Logging(logger)))
	svc.GetAll(ctx)
	svc.Get(ctx, 42)

	out := buf.String()
	assert.Contains(t, out, `"op":"GetAll"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"kind":"not_found"`)
}
