package telemetry

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordAction(t *testing.T) {
	Convey("Given a fresh metrics registry", t, func() {
		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)

		Convey("RecordAction increments the labeled counter", func() {
			metrics.RecordAction("move", "ok")
			metrics.RecordAction("move", "ok")
			metrics.RecordAction("move", "rejected")

			So(testutil.ToFloat64(metrics.ActionTotal.WithLabelValues("move", "ok")), ShouldEqual, 2)
		})

		Convey("RecordThrottled increments the per-action rejection counter", func() {
			metrics.RecordThrottled("build_box")

			So(testutil.ToFloat64(metrics.ThrottleRejected.WithLabelValues("build_box")), ShouldEqual, 1)
		})

		Convey("Gauges start at zero and reflect direct sets", func() {
			So(testutil.ToFloat64(metrics.AgentsOnline), ShouldEqual, 0)
			metrics.AgentsOnline.Set(3)
			So(testutil.ToFloat64(metrics.AgentsOnline), ShouldEqual, 3)
		})
	})
}

func TestNewLoggerDoesNotPanic(t *testing.T) {
	Convey("Building both a plain and pretty logger succeeds", t, func() {
		So(func() { NewLogger(false) }, ShouldNotPanic)
		So(func() { NewLogger(true) }, ShouldNotPanic)
	})
}
