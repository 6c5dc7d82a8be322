package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/recorder"
	"github.com/GriffinCanCode/cliprelay/internal/resilience"
)

func TestRecorderObserver(t *testing.T) {
	m := New()

	m.StateChanged(2, recorder.Capturing)
	m.ClipSaved(recorder.Saved{Worker: 2, Frames: 132096, Took: 3 * time.Second})
	m.ClipSaved(recorder.Saved{Worker: 2, Frames: 132096, Took: 3 * time.Second})
	m.CycleFailed(1, apperrors.New(apperrors.CodeReadFailure, "underrun"))
	m.CycleFailed(1, errors.New("plain"))

	if got := testutil.ToFloat64(m.clipsSaved.WithLabelValues("2")); got != 2 {
		t.Errorf("clips saved = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.activeWorker); got != 2 {
		t.Errorf("active worker = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.workerState.WithLabelValues("2")); got != float64(recorder.Capturing) {
		t.Errorf("worker state = %v, want %d", got, recorder.Capturing)
	}
	if got := testutil.ToFloat64(m.clipFrames); got != 132096 {
		t.Errorf("clip frames = %v, want 132096", got)
	}
	if got := testutil.ToFloat64(m.cycleFailures.WithLabelValues("1", "READ_FAILURE")); got != 1 {
		t.Errorf("read failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cycleFailures.WithLabelValues("1", "UNKNOWN")); got != 1 {
		t.Errorf("unknown failures = %v, want 1", got)
	}
}

func TestStageAndBreaker(t *testing.T) {
	m := New()

	m.StageDone(StageTranscribe, time.Second, nil)
	m.StageDone(StageTranscribe, 0, errors.New("boom"))
	m.BreakerChanged("groq", resilience.Closed, resilience.Open)

	if got := testutil.ToFloat64(m.stageResults.WithLabelValues(StageTranscribe, "ok")); got != 1 {
		t.Errorf("ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.stageResults.WithLabelValues(StageTranscribe, "error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("groq")); got != float64(resilience.Open) {
		t.Errorf("breaker state = %v, want open", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ClipSaved(recorder.Saved{Worker: 1, Took: time.Second})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{"cliprelay_clips_saved_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
