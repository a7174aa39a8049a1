package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"
)

func TestSetWithDefaults(t *testing.T) {
	s := Set{}.WithDefaults()
	require.NotNil(t, s.Logger)
	require.NotNil(t, s.Metrics)
	require.NotNil(t, s.Tracer)

	ctx := context.Background()
	s.Logger.Warn(ctx, "warn", "k", "v")
	s.Metrics.IncCounter(MetricInvokeAttempts, 1, "agent", "price")
	s.Metrics.RecordTimer(MetricBranchDuration, time.Second)

	newCtx, span := s.Tracer.Start(ctx, "op")
	assert.Equal(t, ctx, newCtx)
	span.AddEvent("e", "k", 1)
	span.SetStatus(codes.Ok, "")
	span.RecordError(errors.New("boom"))
	span.End()
}

func TestSetWithDefaultsKeepsProvided(t *testing.T) {
	l := NoopLogger{}
	s := Set{Logger: l}.WithDefaults()
	assert.Equal(t, Logger(l), s.Logger)
}

func TestFielders(t *testing.T) {
	fs := fielders("hello", []any{"a", 1, 2, "skipped", "err", errors.New("bad"), "dangling"})
	require.Len(t, fs, 4)
	assert.Equal(t, log.KV{K: "msg", V: "hello"}, fs[0])
	assert.Equal(t, log.KV{K: "a", V: 1}, fs[1])
	assert.Equal(t, log.KV{K: "err", V: "bad"}, fs[2])
	assert.Equal(t, log.KV{K: "dangling", V: nil}, fs[3])
}

func TestKVToAttrs(t *testing.T) {
	attrs := kvToAttrs([]any{"s", "x", "i", 3, "b", true, "f", 1.5, "o", struct{ A int }{2}})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("s", "x"),
		attribute.Int("i", 3),
		attribute.Bool("b", true),
		attribute.Float64("f", 1.5),
		attribute.String("o", "{2}"),
	}, attrs)
}

func TestClueLoggerWritesToContext(t *testing.T) {
	var buf syncBuffer
	ctx := log.Context(context.Background(), log.WithOutput(&buf), log.WithFormat(log.FormatJSON), log.WithDebug())
	l := NewClueLogger()
	l.Info(ctx, "analysis started", "branch", "price")
	l.Error(ctx, "analysis failed", "err", errors.New("upstream"))
	out := buf.String()
	assert.Contains(t, out, `"msg":"analysis started"`)
	assert.Contains(t, out, `"branch":"price"`)
	assert.Contains(t, out, "upstream")
}
