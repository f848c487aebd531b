package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracerValidation(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{Exporter: "none"})
	require.Error(t, err)

	_, err = InitTracer(context.Background(), TracingConfig{ServiceName: "atelier-test", Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestInitTracerWithoutExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "atelier-test", Exporter: "none", Environment: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
