// Package prometheus renders authflow metrics in Prometheus text
// exposition format without pulling in the Prometheus client library.
package prometheus
