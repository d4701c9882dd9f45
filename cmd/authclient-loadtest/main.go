// Command authclient-loadtest measures the request pipeline and renewal paths
// of many concurrent clients against an in-process API, with sessions kept in
// Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	client "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
)

// clientState serializes use of one client so the load measures the pipeline
// rather than token rotation races between workers sharing a session.
type clientState struct {
	c  *client.Client
	mu sync.Mutex
}

func main() {
	var (
		clients     = flag.Int("clients", 200, "number of logged-in clients")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (request + refresh)")
		expireEvery = flag.Int("expire-every", 10, "expire the token before every Nth request to force a reactive renewal (0 disables)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 || *expireEvery < 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	api := authtest.New()
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL

	states := make([]*clientState, *clients)
	fmt.Printf("logging in %d clients...\n", *clients)
	startLogin := time.Now()
	for i := 0; i < *clients; i++ {
		email := fmt.Sprintf("user-%d@example.com", i)
		api.AddUser(email, "pw", session.RoleUser)

		c, err := client.New().
			WithConfig(cfg).
			WithStore(session.NewRedisStore(rdb, fmt.Sprintf("%s:%d", *prefix, i), time.Hour)).
			WithNavigator(router.NopNavigator{}).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		if _, err := c.Login(ctx, client.Credentials{Email: email, Password: "pw"}); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = &clientState{c: c}
	}
	fmt.Printf("logged in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	requestStats := runRequestPhase(ctx, api, states, *ops, *concurrency, *expireEvery)
	refreshStats := runRefreshPhase(ctx, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("request", requestStats)
	printStats("refresh", refreshStats)
	printCounters(states)
}

func runRequestPhase(ctx context.Context, api *authtest.Server, states []*clientState, ops, concurrency, expireEvery int) phaseStats {
	return runPhase(states, ops, concurrency, 7919, func(i int, state *clientState) error {
		if expireEvery > 0 && i%expireEvery == 0 {
			sess, err := state.c.Session(ctx)
			if err != nil {
				return err
			}
			if sess != nil {
				api.Expire(sess.Token)
			}
		}
		req, err := state.c.NewRequest(ctx, http.MethodGet, "/ip-addresses", nil)
		if err != nil {
			return err
		}
		resp, err := state.c.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})
}

func runRefreshPhase(ctx context.Context, states []*clientState, ops, concurrency int) phaseStats {
	return runPhase(states, ops, concurrency, 6151, func(_ int, state *clientState) error {
		return state.c.Refresh(ctx)
	})
}

// runPhase spreads ops calls of op over concurrency workers, each picking a
// random client per call.
func runPhase(states []*clientState, ops, concurrency int, seed int64, op func(i int, state *clientState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				err := op(i, state)
				d := time.Since(t0)
				state.mu.Unlock()

				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// printCounters sums the client counters that show which renewal path ran.
func printCounters(states []*clientState) {
	totals := map[client.MetricID]uint64{}
	for _, s := range states {
		snap := s.c.MetricsSnapshot()
		for id, v := range snap.Counters {
			totals[id] += v
		}
	}
	fmt.Printf("renewals: scheduler=%d reactive=%d retried=%d forced_logout=%d\n",
		totals[client.MetricRenewalSuccess],
		totals[client.MetricReactiveRenewalSuccess],
		totals[client.MetricRequestRetried],
		totals[client.MetricForcedLogout],
	)
}
