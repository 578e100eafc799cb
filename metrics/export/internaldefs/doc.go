// Package internaldefs holds the shared metric definitions used by the
// Prometheus and OpenTelemetry exporters.
package internaldefs
