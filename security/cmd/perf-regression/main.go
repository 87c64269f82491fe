// Command perf-regression compares two `go test -bench` outputs and fails
// when a tracked gate benchmark got slower than the threshold allows.
//
//	go test -run '^$' -bench . -count 6 ./... > new.txt
//	perf-regression -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// trackedMetrics are the hot paths of a request: the gate decision, token
// validation, rule lookup and the metrics scrape.
var trackedMetrics = map[string][]string{
	"BenchmarkEvaluateAllow": {"ns/op", "allocs/op"},
	"BenchmarkEvaluateDeny":  {"ns/op", "allocs/op"},
	"BenchmarkValidate":      {"ns/op", "allocs/op"},
	"BenchmarkRequiredRoles": {"ns/op", "allocs/op"},
	"BenchmarkRender":        {"ns/op"},
}

type sampleSet map[string]map[string][]float64

type delta struct {
	Benchmark string
	Metric    string
	Baseline  float64
	Candidate float64
	Ratio     float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseBenchmarkFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	deltas, failures := compare(baseline, candidate, threshold)
	fmt.Println("benchmark metric baseline candidate delta")
	for _, d := range deltas {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", d.Benchmark, d.Metric, d.Baseline, d.Candidate, d.Ratio*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

// compare returns one delta per tracked metric present on both sides, in
// a stable order, and a failure line for every regression past threshold
// or missing sample.
func compare(baseline, candidate sampleSet, threshold float64) ([]delta, []string) {
	names := make([]string, 0, len(trackedMetrics))
	for name := range trackedMetrics {
		names = append(names, name)
	}
	slices.Sort(names)

	var (
		deltas   []delta
		failures []string
	)
	for _, name := range names {
		for _, metric := range trackedMetrics[name] {
			base := baseline[name][metric]
			cand := candidate[name][metric]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, metric))
				continue
			}

			bm, cm := median(base), median(cand)
			if bm <= 0 {
				// allocs/op of zero cannot regress by ratio; only growth counts.
				if cm > 0 {
					failures = append(failures, fmt.Sprintf("%s %s grew from 0 to %.0f", name, metric, cm))
				}
				continue
			}

			d := delta{Benchmark: name, Metric: metric, Baseline: bm, Candidate: cm, Ratio: (cm - bm) / bm}
			deltas = append(deltas, d)
			if d.Ratio > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, metric, d.Ratio*100, threshold*100))
			}
		}
	}
	return deltas, failures
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseBenchmarks(file)
}

func parseBenchmarks(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := trackedMetrics[name]; !ok {
			continue
		}
		if samples[name] == nil {
			samples[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	return samples, scanner.Err()
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
