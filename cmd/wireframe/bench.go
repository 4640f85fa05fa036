package main

import (
	"flag"
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/distcore/pkg/compression"
	"github.com/aeolun/distcore/pkg/envelope"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat."

var loremWords = strings.Fields(loremIpsum)

// benchStats tracks round-trip throughput across workers.
type benchStats struct {
	roundTrips  atomic.Int64
	failures    atomic.Int64
	bytesDumped atomic.Int64
}

func (s *benchStats) snapshot() (roundTrips, failures, bytes int64) {
	return s.roundTrips.Load(), s.failures.Load(), s.bytesDumped.Load()
}

func randomPayload(minWords, maxWords int) map[string]any {
	n := minWords + rand.Intn(maxWords-minWords+1)
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[rand.Intn(len(loremWords))]
	}
	blob := make([]byte, rand.Intn(4096))
	rand.Read(blob)
	return map[string]any{
		"text": strings.Join(words, " "),
		"seq":  rand.Int63(),
		"blob": &envelope.Unserialized{Value: blob},
	}
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	workers := fs.Int("workers", runtime.NumCPU(), "Number of concurrent dumps/loads workers")
	duration := fs.Duration("duration", 10*time.Second, "Benchmark duration")
	minWords := fs.Int("min-words", 5, "Minimum words per text field")
	maxWords := fs.Int("max-words", 40, "Maximum words per text field")
	codec := fs.String("codec", compression.Zstd, "Compression codec to exercise (zstd, lz4, snappy, zlib)")
	fs.Parse(args)

	cfg := envelope.Config{
		Serializers:        []string{"raw", "gob"},
		DefaultCompression: *codec,
	}

	stats := &benchStats{}
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				payload := randomPayload(*minWords, *maxWords)
				frames, err := envelope.Dumps(payload, cfg)
				if err != nil {
					stats.failures.Add(1)
					continue
				}
				var size int64
				for _, f := range frames {
					size += int64(len(f))
				}
				stats.bytesDumped.Add(size)

				if _, err := envelope.Loads(frames, true, cfg); err != nil {
					stats.failures.Add(1)
					continue
				}
				stats.roundTrips.Add(1)
			}
		}()
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	start := time.Now()
	deadline := start.Add(*duration)

	for time.Now().Before(deadline) {
		select {
		case <-ticker.C:
			rt, fail, bytes := stats.snapshot()
			elapsed := time.Since(start).Seconds()
			fmt.Printf("round-trips=%d (%.1f/s) failures=%d bytes=%d\n", rt, float64(rt)/elapsed, fail, bytes)
		default:
			time.Sleep(50 * time.Millisecond)
		}
	}
	close(stop)
	wg.Wait()

	rt, fail, bytes := stats.snapshot()
	elapsed := time.Since(start).Seconds()
	fmt.Printf("\n=== Final Results ===\n")
	fmt.Printf("Round-trips: %d (%.1f/s)\n", rt, float64(rt)/elapsed)
	fmt.Printf("Failures: %d\n", fail)
	fmt.Printf("Bytes dumped: %d\n", bytes)
	return nil
}
