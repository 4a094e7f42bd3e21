package dag

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/observability"
)

// recordSpans installs an in-memory tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestWithTracing(t *testing.T) {
	nodeErr := errors.New("script exited 2")
	tests := []struct {
		name    string
		node    Node
		wantErr error
	}{
		{"completed", newFuncNode("analyze:RES/a.csv", func(context.Context, *State) (any, error) { return "ok", nil }), nil},
		{"failed", newFuncNode("analyze:RES/b.csv", func(context.Context, *State) (any, error) { return nil, nodeErr }), nodeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := recordSpans(t)
			traced := WithTracing(tt.node, "recflow")
			if traced.Name() != tt.node.Name() {
				t.Fatalf("name = %q", traced.Name())
			}

			_, err := traced.Run(context.Background(), NewState())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name != "recflow."+tt.node.Name() {
				t.Errorf("span name = %q", span.Name)
			}
			var node string
			for _, kv := range span.Attributes {
				if kv.Key == attribute.Key(observability.AttrNode) {
					node = kv.Value.AsString()
				}
			}
			if node != tt.node.Name() {
				t.Errorf("%s attribute = %q", observability.AttrNode, node)
			}
			if hasErr := len(span.Events) > 0; hasErr != (tt.wantErr != nil) {
				t.Errorf("error recorded = %v, want %v", hasErr, tt.wantErr != nil)
			}
		})
	}
}

func TestWithLoggingWritesNodeFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "recflow", &buf)

	ok := WithLogging(newFuncNode("preprocess:PROC/a.csv", func(context.Context, *State) (any, error) {
		return nil, nil
	}), log)
	if _, err := ok.Run(context.Background(), NewState()); err != nil {
		t.Fatal(err)
	}

	nodeErr := errors.New("disk full")
	failing := WithLogging(newFuncNode("preprocess:PROC/b.csv", func(context.Context, *State) (any, error) {
		return nil, nodeErr
	}), log)
	if _, err := failing.Run(context.Background(), NewState()); !errors.Is(err, nodeErr) {
		t.Fatalf("expected node error, got %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"node":"preprocess:PROC/a.csv"`,
		`"message":"dag node completed"`,
		`"node":"preprocess:PROC/b.csv"`,
		`"message":"dag node failed"`,
		"disk full",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestWithMetricsRecordsOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := observability.NewMetrics(mp.Meter("dag-test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	nodes := []Node{
		WithMetrics(newFuncNode("a", func(context.Context, *State) (any, error) { return nil, nil }), "step", metrics),
		WithMetrics(newFuncNode("b", func(context.Context, *State) (any, error) { return nil, errors.New("x") }), "step", metrics),
		WithMetrics(Noop("c"), "join", metrics),
	}
	for _, n := range nodes {
		_, _ = n.Run(context.Background(), NewState())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	totals := map[string]int64{}
	var errorsByStage int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch m.Name {
				case "recflow.node.total":
					stage, _ := dp.Attributes.Value("stage")
					st, _ := dp.Attributes.Value("status")
					totals[stage.AsString()+"/"+st.AsString()] += dp.Value
				case "recflow.error.total":
					errorsByStage += dp.Value
				}
			}
		}
	}

	want := map[string]int64{"step/completed": 1, "step/failed": 1, "join/completed": 1}
	for k, v := range want {
		if totals[k] != v {
			t.Errorf("recflow.node.total{%s} = %d, want %d", k, totals[k], v)
		}
	}
	if errorsByStage != 1 {
		t.Errorf("recflow.error.total = %d, want 1", errorsByStage)
	}
}

func TestWithMetricsNilReturnsNode(t *testing.T) {
	inner := Noop("plain")
	if got := WithMetrics(inner, "step", nil); got != inner {
		t.Fatal("expected unwrapped node when metrics is nil")
	}
}

func TestWrappedNodesInGraph(t *testing.T) {
	exporter := recordSpans(t)

	a := WithTracing(WithLogging(newFuncNode("a", func(context.Context, *State) (any, error) {
		return "PROC/a.csv", nil
	}), logger.Nop()), "recflow")
	b := WithTracing(newFuncNode("b", func(_ context.Context, s *State) (any, error) {
		return Output[string](s, "a")
	}), "recflow")

	g := &Graph{
		Nodes: map[string]Node{"a": a, "b": b},
		Edges: []Edge{{From: "a", To: "b"}},
	}
	result, err := (&Engine{}).ExecuteBatch(context.Background(), g, NewState())
	if err != nil {
		t.Fatal(err)
	}
	if got := result.NodeResults["b"].Output; got != "PROC/a.csv" {
		t.Errorf("b output = %v", got)
	}
	if n := len(exporter.GetSpans()); n != 2 {
		t.Errorf("spans = %d, want 2", n)
	}
}
