// Package internaldefs exposes stable metric name and label definitions
// shared by exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters report identical metric names and bucket boundaries. A change
// here changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
