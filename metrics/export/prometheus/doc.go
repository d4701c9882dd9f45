// Package prometheus exposes client metrics as a prometheus.Collector.
//
// [NewCollector] accepts a [goAuthClient.Client]. Register the collector with
// your own registry, or mount [Collector.Handler] which serves a private one.
// Counter names are prefixed authclient_*_total; the single histogram is
// authclient_renewal_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate client state.
package prometheus
