package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var noopLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func TestNewExporter(t *testing.T) {
	t.Run("no endpoint logs spans", func(t *testing.T) {
		exporter, err := NewExporter(context.Background(), Config{}, noopLogger)
		require.NoError(t, err)
		assert.IsType(t, &LogExporter{}, exporter)
	})

	t.Run("unsupported protocol", func(t *testing.T) {
		_, err := NewExporter(context.Background(), Config{Endpoint: "localhost:4317", Protocol: "udp"}, noopLogger)
		assert.ErrorContains(t, err, "unsupported OTLP protocol")
	})
}

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"x-api-key": "secret", "tenant": "t1"}, ParseHeaders("x-api-key=secret, tenant = t1,=dropped,"))
	assert.Empty(t, ParseHeaders(""))
}

func TestLogExporter(t *testing.T) {
	exporter := NewLogExporter(noopLogger)

	start := time.Now()
	spans := tracetest.SpanStubs{{
		Name:       "lineage.BuildAssetContext",
		StartTime:  start,
		EndTime:    start.Add(time.Millisecond),
		Attributes: []attribute.KeyValue{attribute.String("element.guid", "topic-1")},
	}}.Snapshots()

	require.NoError(t, exporter.ExportSpans(context.Background(), spans))
	assert.NoError(t, exporter.Shutdown(context.Background()))
}

func TestNewTracerProvider(t *testing.T) {
	provider, err := NewTracerProvider(context.Background(), Config{ServiceName: "willow-api", SampleRatio: 0.5}, noopLogger)
	require.NoError(t, err)
	_, span := provider.Tracer("test").Start(context.Background(), "lineage.Sync")
	span.End()
	assert.NoError(t, provider.Shutdown(context.Background()))
}
