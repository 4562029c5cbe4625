package prefs

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dPrefs/cmd/util"
	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/common"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the settings engines",
		Long:    "Runs parallel workloads against the configured engine in a separate scope. The scope is cleared afterwards.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfScope      = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)
	perfPrometheus = false

	// per operation latencies, the benchmark results only carry the mean
	perfRegistry = gometrics.NewRegistry()
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "prometheus"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Print the collected operation metrics in Prometheus text format"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	perfPrometheus = viper.GetBool("prometheus")

	return nil
}

// workload is one benchmark: setup runs once before timing, op runs per iteration
type workload struct {
	name  string
	setup func(keys []string) error
	op    func(key string, i int) error
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dPrefs")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("staring tests...")

	keys := getKeys()
	fill := func(keys []string) error {
		for i, key := range keys {
			if _, err := settings.AddOrUpdateValue(key, codec.Int64(i), perfScope); err != nil {
				return err
			}
		}
		return nil
	}
	empty := func([]string) error { return settings.Clear(perfScope) }

	workloads := []workload{
		{"set", empty, func(key string, i int) error {
			_, err := settings.AddOrUpdateValue(key, codec.Int64(i), perfScope)
			return err
		}},
		{"set-unchanged", fill, func(key string, _ int) error {
			_, err := settings.AddOrUpdateValue(key, codec.Int64(keyIndex(key)), perfScope)
			return err
		}},
		{"set-string", empty, func(key string, i int) error {
			_, err := settings.AddOrUpdateValue(key, codec.String(strconv.Itoa(i)), perfScope)
			return err
		}},
		{"get", fill, func(key string, _ int) error {
			_, err := settings.GetValueOrDefault(key, codec.Int64(0), perfScope)
			return err
		}},
		{"get-missing", empty, func(key string, _ int) error {
			_, err := settings.GetValueOrDefault(key, codec.Int64(0), perfScope)
			return err
		}},
		{"contains", fill, func(key string, _ int) error {
			_, err := settings.Contains(key, perfScope)
			return err
		}},
		{"remove", fill, func(key string, _ int) error {
			return settings.Remove(key, perfScope)
		}},
		{"mixed", fill, func(key string, i int) error {
			var err error
			switch i % 10 {
			case 0, 1:
				_, err = settings.AddOrUpdateValue(key, codec.Int64(i), perfScope)
			case 2:
				err = settings.Remove(key, perfScope)
			case 3:
				_, err = settings.Contains(key, perfScope)
			default:
				_, err = settings.GetValueOrDefault(key, codec.Int64(0), perfScope)
			}
			return err
		}},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	var names []string

	for _, w := range workloads {
		names = append(names, w.name)
		if shouldSkip(w.name) {
			results[w.name] = testing.BenchmarkResult{}
			printResult(w.name, results[w.name])
			continue
		}

		if err := w.setup(keys); err != nil {
			return fmt.Errorf("setting up %s: %w", w.name, err)
		}

		var (
			opErr   error
			errOnce sync.Once
		)
		timer := gometrics.GetOrRegisterTimer(w.name, perfRegistry)
		results[w.name] = testing.Benchmark(func(b *testing.B) {
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					start := time.Now()
					if err := w.op(keys[i%len(keys)], i); err != nil {
						errOnce.Do(func() { opErr = err })
					}
					timer.UpdateSince(start)
					i++
				}
			})
		})
		if opErr != nil {
			Logger.Warningf("%s: %v", w.name, opErr)
		}
		printResult(w.name, results[w.name])
	}

	// remove the test data
	if err := settings.Clear(perfScope); err != nil {
		Logger.Warningf("clearing scope %q: %v", perfScope, err)
	}

	fmt.Println()
	fmt.Println("latency percentiles:")
	printLatencies(names)

	if perfPrometheus {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}

	// Write results to CSV if path is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, names, results, conf); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// getKeys creates the test keys
func getKeys() []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	return keys
}

// keyIndex returns the number a key was created with by getKeys
func keyIndex(key string) int {
	i, _ := strconv.Atoi(strings.TrimPrefix(key, "key-"))
	return i
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printLatencies prints the latency distribution of every timed workload
func printLatencies(names []string) {
	for _, name := range names {
		timer, ok := perfRegistry.Get(name).(gometrics.Timer)
		if !ok || timer.Count() == 0 {
			continue
		}
		ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
		fmt.Printf("%-20sp50 %-12s p95 %-12s p99 %-12s max %s\n", name,
			time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]), time.Duration(timer.Max()))
	}
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, names []string, results map[string]testing.BenchmarkResult, config *common.Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Engine", "DataDir", "Shards", "Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range names {
		result := results[test]
		var nsPerOp, opsPerSec, p50, p99 float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		if timer, ok := perfRegistry.Get(test).(gometrics.Timer); ok {
			ps := timer.Percentiles([]float64{0.5, 0.99})
			p50, p99 = ps[0], ps[1]
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", p50),
			fmt.Sprintf("%.0f", p99),
			skipped,
			string(config.Engine),
			config.DataDir,
			strconv.Itoa(config.Shards),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
