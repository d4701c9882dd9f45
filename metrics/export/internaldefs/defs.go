package internaldefs

import (
	client "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   client.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   client.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops.
const AuditDroppedName = "authclient_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: client.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Successful logins."},
	{ID: client.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Failed or rejected logins."},
	{ID: client.MetricRegisterSuccess, Name: "authclient_register_success_total", Help: "Successful registrations."},
	{ID: client.MetricRegisterFailure, Name: "authclient_register_failure_total", Help: "Failed or rejected registrations."},
	{ID: client.MetricRenewalScheduled, Name: "authclient_renewal_scheduled_total", Help: "Renewal timers armed."},
	{ID: client.MetricRenewalSuccess, Name: "authclient_renewal_success_total", Help: "Successful proactive renewals."},
	{ID: client.MetricRenewalFailure, Name: "authclient_renewal_failure_total", Help: "Failed proactive renewals."},
	{ID: client.MetricRenewalDeclined, Name: "authclient_renewal_declined_total", Help: "Renewals answered with success=false."},
	{ID: client.MetricReactiveRenewalSuccess, Name: "authclient_reactive_renewal_success_total", Help: "Successful renewals after an authentication failure."},
	{ID: client.MetricReactiveRenewalFailure, Name: "authclient_reactive_renewal_failure_total", Help: "Failed renewals after an authentication failure."},
	{ID: client.MetricRequestRetried, Name: "authclient_request_retried_total", Help: "Requests re-issued after a reactive renewal."},
	{ID: client.MetricForcedLogout, Name: "authclient_forced_logout_total", Help: "Sessions ended by a failed renewal."},
	{ID: client.MetricLogout, Name: "authclient_logout_total", Help: "Explicit logouts."},
	{ID: client.MetricNavigationAllowed, Name: "authclient_navigation_allowed_total", Help: "Navigations allowed by the route guard."},
	{ID: client.MetricNavigationRedirected, Name: "authclient_navigation_redirected_total", Help: "Navigations redirected by the route guard."},
}

var HistogramDefs = []HistogramDef{
	{ID: client.MetricRenewalLatency, Name: "authclient_renewal_latency_seconds", Help: "Refresh endpoint round-trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
