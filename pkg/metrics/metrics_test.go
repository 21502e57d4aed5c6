package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func gatheredNames(reg *prometheus.Registry) map[string]float64 {
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	out := make(map[string]float64, len(families))
	for _, f := range families {
		var total float64
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		out[f.GetName()] = total
	}
	return out
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("reports"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.uploadsAccepted.Inc()
			manager.rateLimited.WithLabelValues("upload").Inc()

			Convey("Then metrics are registered under the configured names", func() {
				names := gatheredNames(registry)
				So(names, ShouldContainKey, "test_reports_uploads_accepted_total")
				So(names["test_reports_uploads_accepted_total"], ShouldEqual, 1)
				So(names, ShouldContainKey, "test_reports_rate_limited_total")
			})
		})

		Convey("When options receive empty values", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "perfreport")
				So(manager.subsystem, ShouldEqual, "service")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		before := gatheredNames(GetRegistry())

		Convey("When recording upload pipeline metrics", func() {
			RecordUploadAccepted(12)
			RecordUploadRejected("too_many_rows")
			RecordCellsSanitized("formula", 3)
			RecordCellsSanitized("script", 0)
			RecordColumnsResolved("exact", 4)
			RecordUploadLatency(12.5)

			Convey("Then the counters move", func() {
				after := gatheredNames(GetRegistry())
				So(after["perfreport_service_uploads_accepted_total"]-before["perfreport_service_uploads_accepted_total"], ShouldEqual, 1)
				So(after["perfreport_service_uploads_rejected_total"]-before["perfreport_service_uploads_rejected_total"], ShouldEqual, 1)
				So(after["perfreport_service_cells_sanitized_total"]-before["perfreport_service_cells_sanitized_total"], ShouldEqual, 3)
				So(after["perfreport_service_columns_resolved_total"]-before["perfreport_service_columns_resolved_total"], ShouldEqual, 4)
			})
		})

		Convey("When recording guard, report, queue and HTTP metrics", func() {
			So(func() {
				RecordRateLimited("team_report")
				UpdateSessionCount(3)
				RecordReportGenerated("single", 250)
				RecordRenderError("team")
				UpdateQueueSize(2)
				UpdateQueueCapacity(10)
				RecordQueueEnqueue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				AddWorkerActive(1)
				AddWorkerActive(-1)
				RecordContactSubmitted("stored")
				RecordHTTPRequest("/uploads", "POST", "201")
				RecordHTTPRequestDuration("/uploads", "POST", "201", 5)
				RecordErrorByComponent("render", "timeout")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)

			Convey("Then gauges reflect the last value", func() {
				after := gatheredNames(GetRegistry())
				So(after["perfreport_service_sessions_active"], ShouldEqual, 3)
				So(after["perfreport_service_queue_capacity"], ShouldEqual, 10)
				So(after["perfreport_service_worker_count"], ShouldEqual, 4)
				So(after["perfreport_service_system_goroutine_count"], ShouldEqual, 12)
			})
		})
	})
}
