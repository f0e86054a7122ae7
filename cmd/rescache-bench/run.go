package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/rescache/pkg/cache"
)

type profile struct {
	Name       string
	Workers    int
	Duration   time.Duration
	RPS        float64
	FetchDelay time.Duration
}

var profiles = map[string]profile{
	"fast": {
		Name:       "fast",
		Workers:    16,
		Duration:   5 * time.Second,
		RPS:        50,
		FetchDelay: 5 * time.Millisecond,
	},
	"standard": {
		Name:       "standard",
		Workers:    64,
		Duration:   30 * time.Second,
		RPS:        100,
		FetchDelay: 10 * time.Millisecond,
	},
	"stress": {
		Name:       "stress",
		Workers:    256,
		Duration:   60 * time.Second,
		RPS:        200,
		FetchDelay: 20 * time.Millisecond,
	},
}

type benchConfig struct {
	Profile    string
	Workers    int
	Duration   time.Duration
	RPS        float64
	FetchDelay time.Duration
	JSONOutput string
}

type benchCounters struct {
	gets       atomic.Uint64
	delivered  atomic.Uint64
	absent     atomic.Uint64
	observes   atomic.Uint64
	forgets    atomic.Uint64
	reloads    atomic.Uint64
	expires    atomic.Uint64
	fetches    atomic.Uint64
	transforms atomic.Uint64
}

type benchPayload struct {
	Seq  uint64 `json:"seq"`
	Body string `json:"body"`
}

func runCmd() *cobra.Command {
	var cfg benchConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the synthetic workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := profiles[cfg.Profile]
			if !ok {
				return fmt.Errorf("unknown profile %q", cfg.Profile)
			}
			if !cmd.Flags().Changed("workers") {
				cfg.Workers = base.Workers
			}
			if !cmd.Flags().Changed("duration") {
				cfg.Duration = base.Duration
			}
			if !cmd.Flags().Changed("rps") {
				cfg.RPS = base.RPS
			}
			if !cmd.Flags().Changed("fetch-delay") {
				cfg.FetchDelay = base.FetchDelay
			}
			if cfg.Workers <= 0 {
				return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
			}
			if cfg.RPS <= 0 {
				return fmt.Errorf("rps must be positive, got %g", cfg.RPS)
			}
			return runBench(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Profile, "profile", "fast", "Workload profile: fast, standard, stress")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 0, "Concurrent workers (overrides profile)")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 0, "Run duration (overrides profile)")
	cmd.Flags().Float64Var(&cfg.RPS, "rps", 0, "Requests per second per worker (overrides profile)")
	cmd.Flags().DurationVar(&cfg.FetchDelay, "fetch-delay", 0, "Simulated upstream latency (overrides profile)")
	cmd.Flags().StringVar(&cfg.JSONOutput, "json", "", "Write the report as JSON to this file")

	return cmd
}

func runBench(cfg benchConfig) error {
	var counters benchCounters
	var seq atomic.Uint64

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := cache.New[string, benchPayload, benchPayload]().
		Logger(logger).
		Fetcher(func(s cache.State[string, benchPayload, benchPayload], done func(*benchPayload)) {
			counters.fetches.Add(1)
			go func() {
				time.Sleep(cfg.FetchDelay)
				done(&benchPayload{Seq: seq.Add(1), Body: "synthetic"})
			}()
		}).
		Transformer(func(s cache.State[string, benchPayload, benchPayload], done func(*benchPayload)) {
			counters.transforms.Add(1)
			done(s.Input)
		})

	var mu sync.Mutex
	var samples []time.Duration
	record := func(d time.Duration) {
		mu.Lock()
		samples = append(samples, d)
		mu.Unlock()
	}

	fmt.Printf("profile=%s workers=%d duration=%s rps=%.0f fetch-delay=%s\n",
		cfg.Profile, cfg.Workers, cfg.Duration, cfg.RPS, cfg.FetchDelay)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(worker) + start.UnixNano()))
			interval := time.Duration(float64(time.Second) / cfg.RPS)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			// Each worker keeps at most one persistent observer and
			// churns it, so registry add/remove contends with deliveries.
			var obs cache.Handle
			defer func() {
				if obs != 0 {
					c.Forget(obs)
				}
			}()

			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
				}

				switch roll := rng.Float64(); {
				case roll < 0.80:
					counters.gets.Add(1)
					issued := time.Now()
					done := make(chan struct{})
					c.Request().
						Priority(cache.Priority(rng.Intn(10))).
						Get(func(r *benchPayload) {
							if r != nil {
								counters.delivered.Add(1)
							} else {
								counters.absent.Add(1)
							}
							record(time.Since(issued))
							close(done)
						})
					select {
					case <-done:
					case <-stop:
						return
					}
				case roll < 0.85:
					if obs == 0 {
						counters.observes.Add(1)
						obs = c.Request().
							Priority(cache.Priority(rng.Intn(10))).
							Observe(func(*benchPayload) {})
					} else {
						counters.forgets.Add(1)
						c.Forget(obs)
						obs = 0
					}
				case roll < 0.95:
					counters.reloads.Add(1)
					c.Reload()
				default:
					counters.expires.Add(1)
					c.Expire()
				}
			}
		}(i)
	}

	time.Sleep(cfg.Duration)
	close(stop)
	wg.Wait()
	elapsed := time.Since(start)

	// Let any in-flight completion land before reading counters.
	flushed := make(chan struct{})
	c.Check(func(cache.Status[string, benchPayload, benchPayload]) { close(flushed) })
	<-flushed

	mu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	mu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := buildReport(cfg, elapsed, latencies, &counters)
	printReport(os.Stdout, report)

	if cfg.JSONOutput != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.JSONOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cfg.JSONOutput, err)
		}
		fmt.Printf("report written to %s\n", cfg.JSONOutput)
	}
	return nil
}

type benchReport struct {
	Profile    string      `json:"profile"`
	Workers    int         `json:"workers"`
	ElapsedSec float64     `json:"elapsed_sec"`
	Gets       uint64      `json:"gets"`
	Delivered  uint64      `json:"delivered"`
	Absent     uint64      `json:"absent"`
	Observes   uint64      `json:"observes"`
	Forgets    uint64      `json:"forgets"`
	Reloads    uint64      `json:"reloads"`
	Expires    uint64      `json:"expires"`
	Fetches    uint64      `json:"fetches"`
	Transforms uint64      `json:"transforms"`
	Coalescing float64     `json:"gets_per_fetch"`
	LatencyMS  latencyInfo `json:"latency_ms"`
	GoVersion  string      `json:"go_version"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

func buildReport(cfg benchConfig, elapsed time.Duration, latencies []time.Duration, counters *benchCounters) benchReport {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

	latency := latencyInfo{}
	if len(latencies) > 0 {
		latency = latencyInfo{
			Min: ms(latencies[0]),
			P50: ms(percentile(latencies, 0.50)),
			P95: ms(percentile(latencies, 0.95)),
			P99: ms(percentile(latencies, 0.99)),
			Max: ms(latencies[len(latencies)-1]),
		}
	}

	gets := counters.gets.Load()
	fetches := counters.fetches.Load()
	coalescing := 0.0
	if fetches > 0 {
		coalescing = float64(gets) / float64(fetches)
	}

	return benchReport{
		Profile:    cfg.Profile,
		Workers:    cfg.Workers,
		ElapsedSec: elapsed.Seconds(),
		Gets:       gets,
		Delivered:  counters.delivered.Load(),
		Absent:     counters.absent.Load(),
		Observes:   counters.observes.Load(),
		Forgets:    counters.forgets.Load(),
		Reloads:    counters.reloads.Load(),
		Expires:    counters.expires.Load(),
		Fetches:    fetches,
		Transforms: counters.transforms.Load(),
		Coalescing: coalescing,
		LatencyMS:  latency,
		GoVersion:  runtime.Version(),
	}
}

func printReport(w io.Writer, report benchReport) {
	fmt.Fprintf(w, "\nelapsed: %.1fs\n", report.ElapsedSec)
	fmt.Fprintf(w, "gets: %d (delivered %d, absent %d)\n", report.Gets, report.Delivered, report.Absent)
	fmt.Fprintf(w, "observes: %d  forgets: %d  reloads: %d  expires: %d\n",
		report.Observes, report.Forgets, report.Reloads, report.Expires)
	fmt.Fprintf(w, "fetches: %d  transforms: %d  gets/fetch: %.1f\n",
		report.Fetches, report.Transforms, report.Coalescing)
	if report.LatencyMS.Max == 0 {
		fmt.Fprintln(w, "no latency samples recorded")
		return
	}
	fmt.Fprintln(w, "delivery latency:")
	fmt.Fprintf(w, "  min: %.2f ms\n", report.LatencyMS.Min)
	fmt.Fprintf(w, "  p50: %.2f ms\n", report.LatencyMS.P50)
	fmt.Fprintf(w, "  p95: %.2f ms\n", report.LatencyMS.P95)
	fmt.Fprintf(w, "  p99: %.2f ms\n", report.LatencyMS.P99)
	fmt.Fprintf(w, "  max: %.2f ms\n", report.LatencyMS.Max)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
