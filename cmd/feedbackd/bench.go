package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/feedbackAuth/internal/logging"
	"github.com/MrEthical07/feedbackAuth/internal/settings"
	"github.com/MrEthical07/feedbackAuth/session"
)

type benchSession struct {
	mu   sync.Mutex
	sid  string
	hash string
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

// newBenchCmd measures the refresh session store against the configured
// redis: lookups first, then one-time hash rotations.
func newBenchCmd(configFile *string) *cobra.Command {
	var (
		sessions      int
		concurrency   int
		ops           int
		embeddedRedis bool
	)

	cmd := &cobra.Command{
		Use:   "bench-sessions",
		Short: "Load-test session lookup and refresh rotation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sessions <= 0 || concurrency <= 0 || ops <= 0 {
				return fmt.Errorf("sessions, concurrency and ops must be > 0")
			}
			ctx := cmd.Context()

			s, err := settings.Load(*configFile)
			if err != nil {
				return err
			}
			if embeddedRedis {
				s.Redis.Embedded = true
			}
			logger, err := logging.New(s.Logging)
			if err != nil {
				return err
			}
			a := &app{settings: s, logger: logger}
			defer a.Close()

			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}
			store := session.NewStore(rdb, s.Auth.RedisPrefix+":bench")

			out := cmd.OutOrStdout()
			states := make([]*benchSession, sessions)
			start := time.Now()
			for i := range states {
				st := &benchSession{sid: uuid.NewString(), hash: benchHash(strconv.Itoa(i))}
				now := time.Now()
				err := store.Save(ctx, &session.Session{
					SessionID:   st.sid,
					UserID:      "bench-" + strconv.Itoa(i%64),
					RefreshHash: st.hash,
					CreatedAt:   now.Unix(),
					ExpiresAt:   now.Add(time.Hour).Unix(),
				}, time.Hour)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				states[i] = st
			}
			fmt.Fprintf(out, "seeded %d sessions in %s\n", sessions, time.Since(start).Round(time.Millisecond))

			printStats(out, "lookup", runPhase(ops, concurrency, func(r *rand.Rand, _ int) error {
				_, err := store.Get(ctx, states[r.Intn(len(states))].sid)
				return err
			}))
			printStats(out, "rotate", runPhase(ops, concurrency, func(r *rand.Rand, i int) error {
				st := states[r.Intn(len(states))]
				st.mu.Lock()
				defer st.mu.Unlock()
				next := benchHash(st.hash + strconv.Itoa(i))
				if _, err := store.Rotate(ctx, st.sid, st.hash, next); err != nil {
					return err
				}
				st.hash = next
				return nil
			}))

			for _, st := range states {
				_ = store.Delete(context.WithoutCancel(ctx), st.sid)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sessions, "sessions", 10000, "number of sessions to seed")
	cmd.Flags().IntVar(&concurrency, "concurrency", 64, "concurrent workers")
	cmd.Flags().IntVar(&ops, "ops", 50000, "operations per phase")
	cmd.Flags().BoolVar(&embeddedRedis, "embedded-redis", false, "run against an in-process redis")
	return cmd
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
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

	total := time.Since(start)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	return phaseStats{
		total:    total,
		ops:      len(latencies),
		failures: failures,
		p50:      percentile(latencies, 50),
		p95:      percentile(latencies, 95),
		p99:      percentile(latencies, 99),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	var rate float64
	if s.total > 0 {
		rate = float64(s.ops) / s.total.Seconds()
	}
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures, s.total.Round(time.Millisecond), rate,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}

func benchHash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
