// Command warden-loadtest measures refresh rotation against Redis and
// cached permission checks under concurrency.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goWarden "github.com/MrEthical07/goWarden"
	"github.com/MrEthical07/goWarden/permission"
	"github.com/MrEthical07/goWarden/refresh"
	"github.com/MrEthical07/goWarden/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type ownerState struct {
	id   string
	hash [32]byte
	mu   sync.Mutex
}

func main() {
	var (
		owners      = flag.Int("owners", 10000, "number of refresh records and users to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		invalidate  = flag.Int("invalidate-every", 1000, "invalidate one owner's permissions every N authorize ops (0 disables)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "wr-load", "refresh key prefix")
	)
	flag.Parse()

	if *owners <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "owners, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := refresh.NewRedisStore(client, *prefix, refresh.Options{})
	dir, err := memory.NewSeededDirectory(permission.DefaultCatalog())
	if err != nil {
		fmt.Fprintf(os.Stderr, "directory: %v\n", err)
		os.Exit(1)
	}

	states := make([]ownerState, *owners)
	fmt.Printf("seeding %d owners...\n", *owners)
	startSeed := time.Now()
	now := time.Now()
	for i := range states {
		role := permission.RoleBasic
		if i%10 == 0 {
			role = permission.RoleAdmin
		}
		u, err := dir.CreateUser(ctx, goWarden.UserRecord{Email: fmt.Sprintf("load-%d@example.com", i), Active: true}, role)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create user: %v\n", err)
			os.Exit(1)
		}
		states[i] = ownerState{id: u.ID, hash: hashFor(i, 0)}
		rec := refresh.Record{OwnerID: u.ID, TokenHash: states[i].hash, IssuedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
		if err := store.Replace(ctx, rec); err != nil {
			fmt.Fprintf(os.Stderr, "replace failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	cache, err := newCache(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "permission cache: %v\n", err)
		os.Exit(1)
	}

	rotateStats := runRotatePhase(ctx, store, states, *ops, *concurrency)
	authorizeStats := runAuthorizePhase(ctx, cache, states, *ops, *concurrency, *invalidate)

	fmt.Println("---- results ----")
	printStats("rotate", rotateStats)
	printStats("authorize", authorizeStats)
}

func newCache(dir *memory.Directory) (*permission.Cache, error) {
	registry, err := permission.NewRegistryFromCatalog(permission.DefaultCatalog(), 64)
	if err != nil {
		return nil, err
	}
	registry.Freeze()
	return permission.NewCache(registry, permission.FromRoles(dir), 10*time.Minute)
}

// run executes op ops times across concurrency workers and collects
// per-call latencies.
func run(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
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
	return computeStats(time.Since(start), latencies, failures)
}

func runRotatePhase(ctx context.Context, store refresh.Store, states []ownerState, ops, concurrency int) phaseStats {
	return run(ops, concurrency, func(r *rand.Rand, i int) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()

		now := time.Now()
		next := refresh.Record{
			OwnerID:   state.id,
			TokenHash: hashFor(i, 1),
			IssuedAt:  now,
			ExpiresAt: now.Add(24 * time.Hour),
		}
		if err := store.Rotate(ctx, state.hash, next, now); err != nil {
			return err
		}
		state.hash = next.TokenHash
		return nil
	})
}

func runAuthorizePhase(ctx context.Context, cache *permission.Cache, states []ownerState, ops, concurrency, invalidateEvery int) phaseStats {
	name := permission.NameFor(permission.ActionView, permission.ResourceDashboard)
	return run(ops, concurrency, func(r *rand.Rand, i int) error {
		owner := states[r.Intn(len(states))].id
		if invalidateEvery > 0 && i%invalidateEvery == 0 {
			cache.Invalidate(owner)
		}
		ok, err := cache.Has(ctx, owner, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s lacks %s", owner, name)
		}
		return nil
	})
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
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond),
	)
}

// hashFor derives a distinct digest per (op, phase) without the cost of
// generating real secrets.
func hashFor(i, phase int) [32]byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(i))
	binary.LittleEndian.PutUint64(buf[8:], uint64(phase))
	return sha256.Sum256(buf[:])
}
