package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.RecordRun(OutcomeSuccess)
	r.RecordRun(OutcomeSuccess)
	r.RecordRun(OutcomeFailure)
	r.SetRows(10, 7)
	r.ObserveStep("query", 150*time.Millisecond)

	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful runs, got %v", got)
	}
	if got := testutil.ToFloat64(r.runs.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(r.rows); got != 10 {
		t.Fatalf("expected rows gauge 10, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess); got <= 0 {
		t.Fatalf("last success timestamp not set")
	}
	if n := testutil.CollectAndCount(r.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordRun(OutcomeSuccess)
	r.ObserveStep("query", time.Second)
	r.SetRows(1, 1)
	if err := r.Push(context.Background(), "http://unused", "job"); err != nil {
		t.Fatalf("nil push: %v", err)
	}
}

func TestPush(t *testing.T) {
	var (
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.RecordRun(OutcomeSuccess)
	if err := r.Push(context.Background(), srv.URL, "fxstreaks"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if path != "/metrics/job/fxstreaks" {
		t.Fatalf("unexpected push path %s", path)
	}
	if body == "" {
		t.Fatalf("push sent an empty body")
	}
	if err := r.Push(context.Background(), "", "fxstreaks"); err != nil {
		t.Fatalf("empty url should be a no-op: %v", err)
	}
}
