// Package prometheus renders authgate metrics in Prometheus text exposition
// format.
//
// [NewExporter] accepts an [authgate.Engine] and exposes an [net/http.Handler]
// that renders all counters and histograms. Counter names are prefixed
// authgate_*_total; the single histogram is
// authgate_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus
