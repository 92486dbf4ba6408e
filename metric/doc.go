// Package metric exposes Prometheus collectors for the frame loop and the
// module hosts.
//
// A nil *Metrics is valid and records nothing, so components take one
// without checking whether metrics are enabled.
package metric
