package core

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"neurostore/pkg/domain"
)

func TestInstrumentRecordsMetricsAndTraces(t *testing.T) {
	metrics := NewExpvarMetricsRecorder("")
	var traceBuf bytes.Buffer
	tracer := NewJSONTracer(&traceBuf)
	svc := newTestService(t, WithMetricsRecorder(metrics), WithTracer(tracer))
	ctx := context.Background()

	if _, err := svc.CreateSubject(ctx, "subj-1", nil, false); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if _, err := svc.GetObject(ctx, domain.TypeSubject, "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	snap := metrics.Snapshot()
	if snap.Results["subject.create"]["success"] != 1 {
		t.Fatalf("expected one successful create, got %+v", snap.Results)
	}
	if snap.Results["object.get"]["error"] != 1 {
		t.Fatalf("expected one failed get, got %+v", snap.Results)
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "subject.create" || entries[0].Status != "success" {
		t.Fatalf("unexpected first span: %+v", entries[0])
	}
	if entries[1].Operation != "object.get" || entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("unexpected second span: %+v", entries[1])
	}
	if !strings.Contains(traceBuf.String(), `"operation":"object.get"`) {
		t.Fatalf("expected serialized span, got %q", traceBuf.String())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("build recorder: %v", err)
	}

	ctx := context.Background()
	rec.Observe(ctx, "run.start", true, 5*time.Millisecond)
	rec.Observe(ctx, "run.start", true, 7*time.Millisecond)
	rec.Observe(ctx, "run.start", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("run.start", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("run.start", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestPrometheusRecorderDrivesService(t *testing.T) {
	rec, err := NewPrometheusMetricsRecorder(nil)
	if err != nil {
		t.Fatalf("build recorder: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(rec))

	if _, err := svc.CreateSubject(context.Background(), "", nil, false); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("subject.create", "success")); got != 1 {
		t.Fatalf("expected 1 recorded create, got %v", got)
	}
}
