// Package metrics counts connection and fan-out activity and exposes
// it in Prometheus text format.
package metrics
