/*
Package main is the entry point for the whoistint command-line application.

whoistint is a tool for running whois lookups through the system whois
program and annotating the resulting record text. Its primary
functionalities include:
  - Querying a domain via the external whois program and printing the
    record with per-category terminal colors (keys, values, timestamps,
    addresses, contacts, redaction markers).
  - Classifying record text from stdin or files without running a lookup.
  - Deriving the follow-up registrar query ("-h <server> <domain>") from
    a registry record, and optionally chasing it automatically.
  - Batch lookups for large domain lists, sharded per registry with
    per-registry rate limiting, writing records to per-registry files.

The application uses the Cobra library for command-line interface
structure and flag parsing. It leverages several internal packages:
  - `internal/classify`: The pattern rules and line classification engine.
  - `internal/session`: The external whois process driver and record
    expansion logic.
  - `internal/render`: Terminal styling of classified lines, with
    YAML-configurable themes.
  - `internal/pipeline`: The concurrent batch scheduler and runner.
  - `internal/metrics`: Prometheus metrics for monitoring.

Graceful shutdown is handled via context cancellation triggered by OS
signals (SIGINT, SIGTERM).
*/
package main

/*
whoistint — whois record highlighter and query driver

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	whoisparser "github.com/likexian/whois-parser"
	"github.com/spf13/cobra"

	"github.com/x-stp/whoistint/internal/classify"
	"github.com/x-stp/whoistint/internal/iobuf"
	"github.com/x-stp/whoistint/internal/metrics"
	"github.com/x-stp/whoistint/internal/pipeline"
	"github.com/x-stp/whoistint/internal/render"
	"github.com/x-stp/whoistint/internal/session"
	"github.com/x-stp/whoistint/internal/util"
)

// Global flags (persistent across commands)
var (
	whoisBin      string
	noColor       bool
	themeFile     string
	enableMetrics bool
	metricsPort   int
)

// Flags specific to the query command
var (
	queryFollow bool
	queryJSON   bool
)

// Flags specific to the classify command
var classifySpans bool

// Flags specific to the batch command
var (
	batchInput     string
	batchOutputDir string
	batchBuffer    int
	batchRateLimit float64
	batchCompress  bool
	batchJSON      bool
	batchFollow    bool
	batchStats     bool
)

var rootCmd = &cobra.Command{
	Use:   "whoistint",
	Short: "whoistint - whois lookups with annotated, colorized record output",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if enableMetrics {
			metrics.EnableMetrics()
			if err := metrics.StartMetricsServer(fmt.Sprintf(":%d", metricsPort)); err != nil {
				log.Printf("Failed to start metrics server: %v", err)
			}
		}
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <domain> [args...]",
	Short: "Run a whois lookup and print the annotated record",
	Long: `Runs the external whois program with the given arguments and prints
the record with per-category colors. Everything after "query" is passed
to the whois program verbatim, so registrar selection works the usual
way: whoistint query -- -h whois.example-registrar.com example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(strings.Join(args, " "))
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [file...]",
	Short: "Annotate whois record text from stdin or files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(args)
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand [file]",
	Short: "Derive the registrar follow-up query from a registry record",
	Long: `Reads a whois record from stdin or a file, locates the domain and the
registrar whois server it names, and prints the follow-up query text
("-h <server> <domain>").`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExpand(args)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Look up a list of domains, writing records to per-registry files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&whoisBin, "whois-bin", session.DefaultBin, "whois program to invoke")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colorized output")
	rootCmd.PersistentFlags().StringVar(&themeFile, "theme", "", "YAML theme file overriding the default palette")
	rootCmd.PersistentFlags().BoolVar(&enableMetrics, "metrics", false, "Expose Prometheus metrics")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 9090, "Prometheus metrics port")

	queryCmd.Flags().BoolVarP(&queryFollow, "follow", "f", false, "Chase the registrar whois server referral automatically")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print a parsed JSON summary instead of the annotated record")

	classifyCmd.Flags().BoolVar(&classifySpans, "spans", false, "Print the span table instead of colorized text")

	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "File with domains to look up, one per line (required)")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output", "o", "output/records", "Output directory for per-registry record files")
	batchCmd.Flags().IntVarP(&batchBuffer, "buffer", "b", iobuf.DefaultBufferSize, "Internal buffer size in bytes for disk I/O")
	batchCmd.Flags().Float64Var(&batchRateLimit, "rate-limit", pipeline.DefaultLookupsPerSecond, "Lookups per second per registry")
	batchCmd.Flags().BoolVar(&batchCompress, "compress", false, "Compress output files")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Write parsed JSON summaries instead of raw records")
	batchCmd.Flags().BoolVar(&batchFollow, "follow", false, "Chase registrar referrals for each domain")
	batchCmd.Flags().BoolVarP(&batchStats, "stats", "s", true, "Show statistics during processing")
	_ = batchCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(batchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, initiating shutdown...", sig)
		cancel()
	}()
	return ctx, cancel
}

// outputSink builds the line sink for interactive output, honoring
// --no-color and --theme.
func outputSink(w io.Writer) (session.LineSink, error) {
	if noColor {
		return render.NewPlainWriter(w), nil
	}
	var theme *render.Theme
	if themeFile != "" {
		loaded, err := render.LoadTheme(themeFile)
		if err != nil {
			return nil, err
		}
		theme = loaded
	}
	return render.NewRenderer(w, theme), nil
}

// runQuery is the handler for the 'query' command.
func runQuery(queryText string) error {
	ctx, cancel := signalContext()
	defer cancel()

	driver := session.NewDriver(whoisBin, os.Stderr)

	raw, err := runSession(ctx, driver, queryText, !queryJSON)
	if err != nil {
		return err
	}

	if queryFollow {
		res, err := session.Expand(raw)
		switch {
		case err == nil:
			log.Printf("Following registrar referral to %s...", res.Server)
			followed, ferr := runSession(ctx, driver, res.QueryText(), !queryJSON)
			if ferr != nil {
				return ferr
			}
			raw = append(raw, "")
			raw = append(raw, followed...)
		case errors.Is(err, session.ErrNoRegistrarServerFound):
			log.Println("Record names no registrar whois server, nothing to follow.")
		case errors.Is(err, session.ErrNoDomainFound):
			log.Println("Record names no domain, nothing to follow.")
		default:
			return err
		}
	}

	if queryJSON {
		return printParsedSummary(os.Stdout, queryText, raw)
	}
	return nil
}

// runSession executes one whois invocation. When display is set the
// classified lines stream straight to the styled sink; the raw lines
// are captured either way for expansion and summaries.
func runSession(ctx context.Context, driver *session.Driver, queryText string, display bool) ([]string, error) {
	var buf session.Buffer
	sink := session.LineSink(&buf)
	if display {
		out, err := outputSink(os.Stdout)
		if err != nil {
			return nil, err
		}
		sink = session.Tee{&buf, out}
	}

	start := time.Now()
	h, err := driver.Query(ctx, queryText, sink)
	if err != nil {
		if metrics.IsMetricsEnabled() {
			metrics.GetMetrics().SessionsFailed.WithLabelValues("query", "spawn").Inc()
		}
		return nil, err
	}
	if err := h.Wait(); err != nil {
		return nil, err
	}
	if metrics.IsMetricsEnabled() {
		m := metrics.GetMetrics()
		m.SessionsStarted.WithLabelValues("query").Inc()
		m.SessionDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
		m.SessionLines.WithLabelValues("query").Observe(float64(h.Lines()))
	}
	return buf.Raw(), nil
}

// printParsedSummary emits a JSON summary of the record via the
// structured whois parser.
func printParsedSummary(w io.Writer, queryText string, raw []string) error {
	summary := struct {
		Query  string                 `json:"query"`
		Parsed *whoisparser.WhoisInfo `json:"parsed,omitempty"`
		Error  string                 `json:"error,omitempty"`
	}{Query: queryText}

	parsed, err := whoisparser.Parse(strings.Join(raw, "\n"))
	if err != nil {
		summary.Error = err.Error()
	} else {
		summary.Parsed = &parsed
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// runClassify is the handler for the 'classify' command.
func runClassify(files []string) error {
	sink, err := outputSink(os.Stdout)
	if err != nil {
		return err
	}

	emit := func(ln classify.Line) {
		if classifySpans {
			printSpans(os.Stdout, ln)
			return
		}
		sink.WriteLine(ln)
	}

	if len(files) == 0 {
		return classifyReader(os.Stdin, emit)
	}
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		err = classifyReader(f, emit)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed reading %s: %w", path, err)
		}
	}
	return nil
}

func classifyReader(r io.Reader, emit func(classify.Line)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		ln := classify.Classify(scanner.Text())
		if metrics.IsMetricsEnabled() {
			m := metrics.GetMetrics()
			for _, sp := range ln.Spans {
				m.CountLine(sp.Category.String())
			}
		}
		emit(ln)
	}
	return scanner.Err()
}

// printSpans writes one line per span, with byte offsets, category
// name and the covered text.
func printSpans(w io.Writer, ln classify.Line) {
	if len(ln.Spans) == 0 {
		fmt.Fprintf(w, "%q\n", ln.Text)
		return
	}
	fmt.Fprintf(w, "%q\n", ln.Text)
	for _, sp := range ln.Spans {
		fmt.Fprintf(w, "    [%3d,%3d) %-14s %q\n", sp.Start, sp.End, sp.Category, ln.SpanText(sp))
	}
}

// runExpand is the handler for the 'expand' command.
func runExpand(args []string) error {
	r := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	res, err := session.Expand(lines)
	if err != nil {
		if metrics.IsMetricsEnabled() {
			outcome := "no_server"
			if errors.Is(err, session.ErrNoDomainFound) {
				outcome = "no_domain"
			}
			metrics.GetMetrics().ExpandOutcomes.WithLabelValues(outcome).Inc()
		}
		return err
	}
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().ExpandOutcomes.WithLabelValues("ok").Inc()
	}
	fmt.Println(res.QueryText())
	return nil
}

// runBatch is the handler for the 'batch' command.
func runBatch() error {
	domains, err := readDomainList(batchInput)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains found in %s", batchInput)
	}

	log.Printf("Starting batch lookup: input='%s', output='%s', rate=%.1f/s, compress=%t, json=%t, follow=%t",
		batchInput, batchOutputDir, batchRateLimit, batchCompress, batchJSON, batchFollow)

	ctx, cancel := signalContext()
	defer cancel()

	config := &pipeline.BatchConfig{
		Bin:        whoisBin,
		OutputDir:  batchOutputDir,
		BufferSize: batchBuffer,
		RateLimit:  batchRateLimit,
		Compress:   batchCompress,
		JSON:       batchJSON,
		Follow:     batchFollow,
	}

	runner, err := pipeline.NewBatchRunner(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create batch runner: %w", err)
	}

	var statsWg sync.WaitGroup
	if batchStats {
		statsWg.Add(1)
		go func() {
			defer statsWg.Done()
			displayBatchStats(ctx, runner)
		}()
	}

	if err := runner.Run(domains); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Error during batch lookup: %v", err)
	}

	if batchStats {
		cancel()
		statsWg.Wait()
	}

	displayFinalBatchStats(runner)
	log.Println("Batch lookup command complete.")
	return nil
}

// readDomainList loads domains from a file, one per line, skipping
// blanks and comment lines.
func readDomainList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open domain list %q: %w", path, err)
	}
	defer f.Close()

	var domains []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d := util.NormalizeHost(line)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed reading domain list %q: %w", path, err)
	}
	return domains, nil
}

// displayBatchStats periodically shows batch lookup progress.
func displayBatchStats(ctx context.Context, runner *pipeline.BatchRunner) {
	ticker := time.NewTicker(pipeline.StatsReportInterval)
	defer ticker.Stop()
	startTime := runner.Stats().StartTime

	for {
		select {
		case <-ticker.C:
			stats := runner.Stats()
			elapsed := time.Since(startTime).Seconds()
			if elapsed < 0.1 {
				elapsed = 0.1
			}
			completed := stats.Completed.Load()
			failed := stats.Failed.Load()
			total := stats.TotalDomains.Load()
			percentDone := 0.0
			if total > 0 {
				percentDone = float64(completed+failed) / float64(total) * 100
			}
			fmt.Printf("\rLookups: %d / %d (%.1f%%) | Failed: %d | Referrals: %d | Rate: %.1f dom/s | Lines: %d | Written: %.2fMB",
				completed,
				total,
				percentDone,
				failed,
				stats.Expanded.Load(),
				float64(completed)/elapsed,
				stats.LinesClassified.Load(),
				float64(stats.BytesWritten.Load())/(1024*1024),
			)
		case <-ctx.Done():
			fmt.Println()
			return
		}
	}
}

// displayFinalBatchStats shows the summary statistics at the end.
func displayFinalBatchStats(runner *pipeline.BatchRunner) {
	stats := runner.Stats()
	elapsed := time.Since(stats.StartTime)
	completed := stats.Completed.Load()
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}

	fmt.Println()
	fmt.Printf("\n--- Final Batch Lookup Statistics ---\n")
	fmt.Printf(" Processing Time: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Total Domains: %d\n", stats.TotalDomains.Load())
	fmt.Printf("       Completed: %d\n", completed)
	fmt.Printf("          Failed: %d\n", stats.Failed.Load())
	fmt.Printf("       Referrals: %d\n", stats.Expanded.Load())
	fmt.Printf("Lines Classified: %d\n", stats.LinesClassified.Load())
	fmt.Printf("    Overall Rate: %.1f domains/sec\n", rate)
	fmt.Printf("  Output Written: %.2f MB\n", float64(stats.BytesWritten.Load())/(1024*1024))
	fmt.Printf("-------------------------------------\n")
}
