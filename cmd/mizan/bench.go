package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-food/mizan/internal/api"
	"github.com/opensource-food/mizan/internal/domain"
)

var benchFlags struct {
	csvPath    string
	baseURL    string
	limit      int
	workers    int
	madhab     string
	strictness string
	verbose    bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure verdict accuracy against a labelled product dataset",
	Long: `Send every product of a labelled CSV to a running Mizan API and compare
the returned status with the expected one.

The CSV needs a header row. Recognised columns:
  barcode, ingredients_text, additives_tags, labels_tags,
  ingredients_analysis_tags, expected_status
Tag columns hold comma separated tags. expected_status is halal, haram or
doubtful.

The positive class is "haram": precision and recall describe how well haram
products are caught.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	f := benchCmd.Flags()
	f.StringVar(&benchFlags.csvPath, "csv", "", "labelled product CSV (required)")
	f.StringVar(&benchFlags.baseURL, "url", "http://localhost:8080", "Mizan base URL")
	f.IntVar(&benchFlags.limit, "limit", 10000, "maximum products to send (0 = all)")
	f.IntVar(&benchFlags.workers, "workers", 10, "number of concurrent workers")
	f.StringVarP(&benchFlags.madhab, "madhab", "m", "", "madhab sent with every request")
	f.StringVarP(&benchFlags.strictness, "strictness", "s", "", "strictness sent with every request")
	f.BoolVar(&benchFlags.verbose, "verbose", false, "print each product result")
	_ = benchCmd.MarkFlagRequired("csv")
}

// LabelledProduct is one row of a benchmark dataset.
type LabelledProduct struct {
	Input    domain.ProductInput
	Expected domain.Status
}

// BenchStats tracks benchmark results.
type BenchStats struct {
	TruePositives  int64 // haram detected as haram
	FalsePositives int64 // not haram flagged haram
	TrueNegatives  int64
	FalseNegatives int64 // haram missed

	Agreements     int64 // exact status match
	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func runBench(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if _, err := parseOptions(benchFlags.madhab, benchFlags.strictness, domain.DefaultOptions()); err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	if err := checkHealth(client, benchFlags.baseURL); err != nil {
		return fmt.Errorf("mizan not reachable at %s: %w", benchFlags.baseURL, err)
	}

	f, err := os.Open(benchFlags.csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	products, err := readDataset(f, benchFlags.limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d products from %s\n", len(products), benchFlags.csvPath)

	start := time.Now()
	stats := runBenchmark(client, products, benchFlags.workers, func(p LabelledProduct, got *api.AnalyzeResponse, err error) {
		if !benchFlags.verbose {
			return
		}
		if err != nil {
			fmt.Fprintf(out, "ERROR %-14s %v\n", p.Input.Barcode, err)
			return
		}
		mark := "ok"
		if got.Analysis.Status != p.Expected {
			mark = "MISS"
		}
		fmt.Fprintf(out, "%-4s %-14s expected=%-8s got=%-8s tier=%-14s confidence=%.2f\n",
			mark, p.Input.Barcode, p.Expected, got.Analysis.Status, got.Analysis.Tier, got.Analysis.Confidence)
	})

	printBenchResults(out, stats, time.Since(start))
	return nil
}

func checkHealth(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readDataset parses a labelled CSV. Rows with an unknown expected status
// are skipped.
func readDataset(r io.Reader, limit int) ([]LabelledProduct, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex["expected_status"]; !ok {
		return nil, errors.New("dataset has no expected_status column")
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var products []LabelledProduct
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		expected := domain.Status(strings.ToLower(field(record, "expected_status")))
		if !expected.Valid() || expected == domain.StatusUnknown {
			continue
		}

		products = append(products, LabelledProduct{
			Input: domain.ProductInput{
				Barcode:                 field(record, "barcode"),
				IngredientsText:         field(record, "ingredients_text"),
				AdditivesTags:           splitTags(field(record, "additives_tags")),
				LabelsTags:              splitTags(field(record, "labels_tags")),
				IngredientsAnalysisTags: splitTags(field(record, "ingredients_analysis_tags")),
			},
			Expected: expected,
		})

		if limit > 0 && len(products) >= limit {
			break
		}
	}
	return products, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func runBenchmark(client *http.Client, products []LabelledProduct, numWorkers int, report func(LabelledProduct, *api.AnalyzeResponse, error)) *BenchStats {
	stats := &BenchStats{}
	if numWorkers < 1 {
		numWorkers = 1
	}

	work := make(chan LabelledProduct, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				start := time.Now()
				result, err := analyzeProduct(client, benchFlags.baseURL, p.Input)
				atomic.AddInt64(&stats.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&stats.TotalProcessed, 1)
				if report != nil {
					report(p, result, err)
				}
				if err != nil {
					atomic.AddInt64(&stats.TotalErrors, 1)
					continue
				}
				stats.record(p.Expected, result.Analysis.Status)
			}
		}()
	}

	for _, p := range products {
		work <- p
	}
	close(work)
	wg.Wait()

	return stats
}

func (s *BenchStats) record(expected, got domain.Status) {
	if expected == got {
		atomic.AddInt64(&s.Agreements, 1)
	}

	predicted := got == domain.StatusHaram
	actual := expected == domain.StatusHaram
	switch {
	case predicted && actual:
		atomic.AddInt64(&s.TruePositives, 1)
	case predicted && !actual:
		atomic.AddInt64(&s.FalsePositives, 1)
	case !predicted && !actual:
		atomic.AddInt64(&s.TrueNegatives, 1)
	default:
		atomic.AddInt64(&s.FalseNegatives, 1)
	}
}

func (s *BenchStats) precision() float64 {
	if s.TruePositives+s.FalsePositives == 0 {
		return 0
	}
	return float64(s.TruePositives) / float64(s.TruePositives+s.FalsePositives)
}

func (s *BenchStats) recall() float64 {
	if s.TruePositives+s.FalseNegatives == 0 {
		return 0
	}
	return float64(s.TruePositives) / float64(s.TruePositives+s.FalseNegatives)
}

func (s *BenchStats) f1() float64 {
	p, r := s.precision(), s.recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func analyzeProduct(client *http.Client, baseURL string, input domain.ProductInput) (*api.AnalyzeResponse, error) {
	body, err := json.Marshal(api.AnalyzeRequest{
		Barcode:                 input.Barcode,
		IngredientsText:         input.IngredientsText,
		AdditivesTags:           input.AdditivesTags,
		LabelsTags:              input.LabelsTags,
		IngredientsAnalysisTags: input.IngredientsAnalysisTags,
		Madhab:                  benchFlags.madhab,
		Strictness:              benchFlags.strictness,
	})
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result api.AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printBenchResults(w io.Writer, s *BenchStats, duration time.Duration) {
	fmt.Fprintln(w, "\nDATASET")
	fmt.Fprintf(w, "   Total Processed:  %d\n", s.TotalProcessed)
	fmt.Fprintf(w, "   Errors:           %d\n", s.TotalErrors)

	fmt.Fprintln(w, "\nCONFUSION MATRIX (haram)")
	fmt.Fprintln(w, "                      Predicted")
	fmt.Fprintln(w, "                  haram     other")
	fmt.Fprintf(w, "   Actual haram  %8d  %8d   (TP, FN)\n", s.TruePositives, s.FalseNegatives)
	fmt.Fprintf(w, "          other  %8d  %8d   (FP, TN)\n", s.FalsePositives, s.TrueNegatives)

	answered := s.TotalProcessed - s.TotalErrors
	agreement := float64(0)
	if answered > 0 {
		agreement = float64(s.Agreements) / float64(answered)
	}

	fmt.Fprintln(w, "\nDETECTION METRICS")
	fmt.Fprintf(w, "   Precision:  %.4f\n", s.precision())
	fmt.Fprintf(w, "   Recall:     %.4f\n", s.recall())
	fmt.Fprintf(w, "   F1-Score:   %.4f\n", s.f1())
	fmt.Fprintf(w, "   Agreement:  %.4f  (exact status match)\n", agreement)

	fmt.Fprintln(w, "\nPERFORMANCE")
	fmt.Fprintf(w, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if s.TotalProcessed > 0 {
		fmt.Fprintf(w, "   Avg Latency:      %.2f ms\n", float64(s.ProcessingTimeMs)/float64(s.TotalProcessed))
		fmt.Fprintf(w, "   Throughput:       %.2f products/sec\n", float64(s.TotalProcessed)/duration.Seconds())
	}
}
