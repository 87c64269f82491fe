// Command goGate-loadtest measures gate and login throughput against a
// memory or Redis credential store.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/store"
)

const loadtestSecret = "goGate-loadtest-secret-not-for-production!"

type principal struct {
	username string
	password string
	header   string
}

// gatePaths mixes public, role-restricted and unmatched paths.
var gatePaths = []struct {
	method string
	path   string
}{
	{http.MethodGet, "/api/employees/42"},
	{http.MethodPut, "/api/employees/42"},
	{http.MethodGet, "/api/departments/3"},
	{http.MethodGet, "/actuator/health"},
	{http.MethodGet, "/reports/monthly"},
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of principals to register")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		gateOps     = flag.Int("gate-ops", 500000, "gate evaluations to run")
		loginOps    = flag.Int("login-ops", 2000, "logins to run")
		argonMemory = flag.Uint("argon-memory", 64*1024, "argon2id memory in KiB")
		driver      = flag.String("store", "memory", "credential store: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *gateOps < 0 || *loginOps < 0 {
		fmt.Fprintln(os.Stderr, "users and concurrency must be > 0, op counts >= 0")
		os.Exit(2)
	}

	ctx := context.Background()

	credentials, cleanup, err := openStore(*driver, *redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := goGate.DefaultConfig()
	cfg.JWT.Secret = []byte(loadtestSecret)
	cfg.Password.Memory = uint32(*argonMemory)
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goGate.New().WithConfig(cfg).WithStore(credentials).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("registering %d principals...\n", *users)
	startSeed := time.Now()
	principals, err := register(ctx, engine, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "register: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	gateStats := runPhase(*gateOps, *concurrency, func(r *rand.Rand) error {
		p := principals[r.IntN(len(principals))]
		target := gatePaths[r.IntN(len(gatePaths))]
		engine.Evaluate(ctx, p.header, target.path, target.method)
		return nil
	})

	loginStats := runPhase(*loginOps, *concurrency, func(r *rand.Rand) error {
		p := principals[r.IntN(len(principals))]
		_, err := engine.Login(ctx, p.username, p.password)
		return err
	})

	snapshot := engine.MetricsSnapshot()

	fmt.Println("---- results ----")
	printStats("gate", gateStats)
	printStats("login", loginStats)
	fmt.Printf("gate verdicts: allowed=%d unauthenticated=%d forbidden=%d\n",
		snapshot.Counters[goGate.MetricGateAllowed],
		snapshot.Counters[goGate.MetricGateUnauthenticated],
		snapshot.Counters[goGate.MetricGateForbidden],
	)
}

func openStore(driver, addr string) (goGate.CredentialStore, func(), error) {
	switch driver {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "redis":
	default:
		return nil, nil, fmt.Errorf("unknown store %q", driver)
	}

	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return store.NewRedis(client, "gogate-loadtest"), func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

// register creates principals alternating between USER and ADMIN and
// mints a token for each.
func register(ctx context.Context, engine *goGate.Engine, n int) ([]principal, error) {
	out := make([]principal, n)
	for i := range out {
		role := "USER"
		if i%4 == 0 {
			role = "ADMIN"
		}
		p := principal{
			username: fmt.Sprintf("load-%d", i),
			password: fmt.Sprintf("load-password-%d", i),
		}
		created, err := engine.Register(ctx, p.username, p.password, role)
		if err != nil {
			return nil, err
		}
		token, _, err := engine.IssueToken(created.Username, created.Roles)
		if err != nil {
			return nil, err
		}
		p.header = "Bearer " + token
		// Every eighth caller sends no token.
		if i%8 == 7 {
			p.header = ""
		}
		out[i] = p
	}
	return out, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				if int(cursor.Add(1)) > ops {
					break
				}
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
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
		return phaseStats{total: total, failures: failures}
	}
	slices.Sort(samples)
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

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
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
