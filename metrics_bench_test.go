package goAuthClient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/transport"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// okBase answers every request with an empty 200 without touching the network.
var okBase = roundTripFunc(func(r *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
		Request:    r,
	}, nil
})

func newBenchPipeline(b *testing.B) *transport.Transport {
	b.Helper()
	store := session.NewMemoryStore()
	ctx := context.Background()
	if err := store.Set(ctx, "t1", session.User{ID: "7", Role: session.RoleUser}, time.Hour); err != nil {
		b.Fatalf("seed session: %v", err)
	}
	if _, err := store.GetOrCreateTrackingID(ctx); err != nil {
		b.Fatalf("seed tracking id: %v", err)
	}
	return transport.New(transport.Config{
		Base:  okBase,
		Store: store,
		Renewer: refresh.RenewerFunc(func(context.Context, string) (session.Grant, error) {
			b.Fatal("renewal not expected on the outbound pass")
			return session.Grant{}, nil
		}),
	})
}

func BenchmarkPipelineOutbound(b *testing.B) {
	rt := newBenchPipeline(b)
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/ip-addresses", nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		resp, err := rt.RoundTrip(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}

func BenchmarkPipelineOutboundParallel(b *testing.B) {
	rt := newBenchPipeline(b)
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		req, err := http.NewRequest(http.MethodGet, "https://api.example.com/audit-logs", nil)
		if err != nil {
			b.Error(err)
			return
		}
		for pb.Next() {
			resp, err := rt.RoundTrip(req)
			if err != nil {
				b.Error(err)
				return
			}
			resp.Body.Close()
		}
	})
}

// renewalPathIDs is the counter mix one renewal cycle touches.
var renewalPathIDs = [...]MetricID{
	MetricRenewalScheduled,
	MetricRenewalSuccess,
	MetricReactiveRenewalSuccess,
	MetricRequestRetried,
}

func BenchmarkRenewalMetricsParallel(b *testing.B) {
	for _, tc := range []struct {
		name string
		cfg  MetricsConfig
	}{
		{name: "disabled", cfg: MetricsConfig{}},
		{name: "counters", cfg: MetricsConfig{Enabled: true}},
		{name: "latency", cfg: MetricsConfig{Enabled: true, EnableLatencyHistograms: true}},
	} {
		b.Run(tc.name, func(b *testing.B) {
			m := NewMetrics(tc.cfg)
			b.ReportAllocs()
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				idx := 0
				for pb.Next() {
					m.Inc(renewalPathIDs[idx])
					m.Observe(MetricRenewalLatency, time.Duration(idx+1)*40*time.Millisecond)
					idx++
					if idx == len(renewalPathIDs) {
						idx = 0
					}
				}
			})
		})
	}
}
