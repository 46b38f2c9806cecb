package main

import (
	"bytes"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

type result struct {
	status  int
	latency time.Duration
}

var services = []string{"usuario", "produto", "pedido"}

// bodyFor builds the i-th envelope for a load mode.
func bodyFor(mode string, i int) (string, error) {
	switch mode {
	case "routed":
		return fmt.Sprintf(`{"serviceName":%q,"seq":%d}`, services[i%len(services)], i), nil
	case "unknown":
		return fmt.Sprintf(`{"serviceName":"servico_%d","seq":%d}`, i, i), nil
	case "missing":
		return fmt.Sprintf(`{"acao":"teste","seq":%d}`, i), nil
	case "empty":
		return `{}`, nil
	default:
		return "", fmt.Errorf("unknown mode %q (routed, unknown, missing, empty)", mode)
	}
}

func labelFor(code int) string {
	switch code {
	case http.StatusOK:
		return "Routed"
	case http.StatusNotFound:
		return "Rejected (unknown service)"
	case http.StatusUnprocessableEntity:
		return "Rejected (empty/missing name)"
	case http.StatusBadRequest:
		return "Malformed envelope"
	case 0:
		return "Connection Dropped"
	default:
		return "Unknown"
	}
}

// clampCounts keeps at least one worker and never a negative request count.
func clampCounts(concurrency, requests int) (int, int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	if requests < 0 {
		requests = 0
	}
	return concurrency, requests
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	target := flag.String("target", "http://localhost:9091/api/route", "Route endpoint to load")
	concurrency := flag.Int("c", 10, "Concurrency level (number of goroutines)")
	requests := flag.Int("n", 100, "Total number of requests")
	mode := flag.String("mode", "routed", "Envelope kind: routed, unknown, missing, empty")
	flag.Parse()

	if _, err := bodyFor(*mode, 0); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	*concurrency, *requests = clampCounts(*concurrency, *requests)

	fmt.Printf("Starting edgegate load run\n")
	fmt.Printf("Target:      %s\n", *target)
	fmt.Printf("Concurrency: %d routines\n", *concurrency)
	fmt.Printf("Requests:    %d total\n", *requests)
	fmt.Printf("Mode:        %s\n", *mode)
	fmt.Printf("----------------------------------\n")

	results := make(chan result, *requests)
	jobs := make(chan int)
	var wg sync.WaitGroup

	startTime := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{
				Timeout: 10 * time.Second,
			}
			for seq := range jobs {
				body, _ := bodyFor(*mode, seq)

				reqStart := time.Now()
				resp, err := client.Post(*target, "application/json", bytes.NewBufferString(body))
				duration := time.Since(reqStart)

				if err != nil {
					results <- result{status: 0, latency: duration}
					continue
				}
				results <- result{status: resp.StatusCode, latency: duration}
				resp.Body.Close()
			}
		}()
	}

	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(results)

	totalDuration := time.Since(startTime)

	var latencies []time.Duration
	statusCodes := make(map[int]int)
	var totalLatency time.Duration

	for res := range results {
		statusCodes[res.status]++
		latencies = append(latencies, res.latency)
		totalLatency += res.latency
	}

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	totalReqs := len(latencies)
	if totalReqs == 0 {
		fmt.Println("No requests completed.")
		return
	}

	fmt.Printf("\n--- Throughput & Timing ---\n")
	fmt.Printf("Total Time:     %v\n", totalDuration)
	fmt.Printf("Requests/sec:   %.2f\n", float64(totalReqs)/totalDuration.Seconds())
	fmt.Printf("Avg Latency:    %v\n", totalLatency/time.Duration(totalReqs))
	fmt.Printf("Min Latency:    %v\n", latencies[0])
	fmt.Printf("Max Latency:    %v\n", latencies[totalReqs-1])

	fmt.Printf("\n--- Latency Percentiles ---\n")
	for _, p := range []float64{0.5, 0.9, 0.95, 0.99} {
		fmt.Printf("  p%.0f: %v\n", p*100, percentile(latencies, p))
	}

	codes := make([]int, 0, len(statusCodes))
	for code := range statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Printf("\n--- Decision Summary ---\n")
	for _, code := range codes {
		fmt.Printf("  [%d] %-30s : %d\n", code, labelFor(code), statusCodes[code])
	}
	fmt.Printf("----------------------------------\n")
}
