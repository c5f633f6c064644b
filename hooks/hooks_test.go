package hooks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/hooks"
)

func TestInMemoryMetricsSnapshot(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	h := hooks.NewMetricsHook(m)

	img := &core.ImageData{Meta: core.Metadata{SizeBytes: 100}}
	h.AfterStep(context.Background(), "encode", img, 20*time.Millisecond, nil)
	h.AfterStep(context.Background(), "decode", nil, time.Millisecond,
		apperrors.New(apperrors.CategoryDecode, "decode", errors.New("bad")))
	m.RecordBatchItem("success")
	m.RecordBatchItem("success")

	snap := m.Snapshot()
	if snap.StepCalls["encode"] != 1 || snap.StepDurationsMs["encode"] != 20 {
		t.Errorf("encode stats: calls=%d ms=%d", snap.StepCalls["encode"], snap.StepDurationsMs["encode"])
	}
	if snap.StepErrors["decode"] != 1 || snap.ErrorCategories["decode"] != 1 {
		t.Errorf("decode errors: %v / %v", snap.StepErrors, snap.ErrorCategories)
	}
	if _, ok := snap.StepErrors["encode"]; ok {
		t.Error("successful step listed in StepErrors")
	}
	if snap.BatchItems["success"] != 2 {
		t.Errorf("batch successes: want 2, got %d", snap.BatchItems["success"])
	}
	if snap.TotalThroughputB != 100 {
		t.Errorf("throughput: want 100, got %d", snap.TotalThroughputB)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	m := hooks.NewPrometheusMetrics()
	h := hooks.NewMetricsHook(m)

	h.AfterStep(context.Background(), "decode", nil, time.Millisecond,
		apperrors.New(apperrors.CategoryDecode, "decode", errors.New("bad")))
	m.RecordBatchItem("failure")

	n, err := testutil.GatherAndCount(m.Registry(), "imageprep_step_errors_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("step error series: want 1, got %d", n)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`imageprep_step_errors_total{category="decode",step="decode"} 1`,
		`imageprep_batch_items_total{outcome="failure"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	logger := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h := hooks.NewLoggingHook(logger)

	img := &core.ImageData{Format: core.FormatPNG, Meta: core.Metadata{Width: 4, Height: 2}}
	h.BeforeStep(context.Background(), "resize", img)
	h.AfterStep(context.Background(), "resize", img, time.Millisecond, nil)
	h.AfterStep(context.Background(), "encode", nil, time.Millisecond, errors.New("boom"))

	out := buf.String()
	for _, want := range []string{
		"step.begin",
		"step=resize",
		"step.end",
		"level=WARN msg=step.failed step=encode category=pipeline",
		"error=boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
