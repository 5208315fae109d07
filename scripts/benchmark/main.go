package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL    = flag.String("api-url", "http://localhost:8080", "Feedgrab API base URL")
	apiKey    = flag.String("api-key", "", "API key for authenticated requests")
	runs      = flag.Int("runs", 3, "Number of runs per channel for averaging")
	target    = flag.Int("target", 20, "Records requested per run")
	skipAudio = flag.Bool("skip-audio", false, "Skip audio resolution")
	output    = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Channels of the default feed, from cheap to media-heavy.
var testChannels = []string{
	"entertainment",
	"technology",
	"sports",
	"business",
	"podcasts",
}

// --- Request / Response types (mirrors models package) ---

type feedRequest struct {
	Channel   string `json:"channel"`
	Target    int    `json:"target"`
	SkipAudio bool   `json:"skip_audio,omitempty"`
}

type feedResponse struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Records []record     `json:"records"`
	Scroll  scrollInfo   `json:"scroll"`
	Timing  timingInfo   `json:"timing"`
	Error   *errorDetail `json:"error,omitempty"`
}

type record struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Audio   string `json:"audio"`
}

type scrollInfo struct {
	Attempts int    `json:"attempts"`
	Phase    string `json:"phase"`
}

type timingInfo struct {
	TotalMs    int64 `json:"total_ms"`
	LoadMs     int64 `json:"load_ms"`
	CollectMs  int64 `json:"collect_ms"`
	AssembleMs int64 `json:"assemble_ms"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	TotalMs    int64  `json:"total_ms"`
	LoadMs     int64  `json:"load_ms"`
	CollectMs  int64  `json:"collect_ms"`
	AssembleMs int64  `json:"assemble_ms"`
	Records    int    `json:"records"`
	WithAudio  int    `json:"with_audio"`
	Incomplete int    `json:"incomplete"`
	Scrolls    int    `json:"scrolls"`
	Phase      string `json:"phase"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type channelAverages struct {
	TotalMs    float64 `json:"total_ms"`
	LoadMs     float64 `json:"load_ms"`
	CollectMs  float64 `json:"collect_ms"`
	AssembleMs float64 `json:"assemble_ms"`
	Records    float64 `json:"records"`
	WithAudio  float64 `json:"with_audio"`
	Scrolls    float64 `json:"scrolls"`
}

type channelResult struct {
	Channel  string           `json:"channel"`
	Runs     []runResult      `json:"runs"`
	Averages *channelAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp      string          `json:"timestamp"`
	APIURL         string          `json:"api_url"`
	RunsPerChannel int             `json:"runs_per_channel"`
	Target         int             `json:"target"`
	Results        []channelResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Feedgrab Benchmark Suite ===")
	fmt.Printf("API URL:      %s\n", *apiURL)
	fmt.Printf("Runs/channel: %d\n", *runs)
	fmt.Printf("Target:       %d\n", *target)
	fmt.Printf("Output:       %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure feedgrab-server is running\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		APIURL:         *apiURL,
		RunsPerChannel: *runs,
		Target:         *target,
	}

	for _, ch := range testChannels {
		fmt.Printf("Benchmarking channel %q ...\n", ch)
		cr := channelResult{Channel: ch}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkChannel(ch, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d records  %d scrolls\n", rr.TotalMs, rr.Records, rr.Scrolls)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			cr.Runs = append(cr.Runs, rr)
		}

		cr.Averages = computeAverages(cr.Runs)
		report.Results = append(report.Results, cr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkChannel(channel string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(feedRequest{
		Channel:   channel,
		Target:    *target,
		SkipAudio: *skipAudio,
	})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/feed", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var fr feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = fr.Success
	rr.TotalMs = fr.Timing.TotalMs
	rr.LoadMs = fr.Timing.LoadMs
	rr.CollectMs = fr.Timing.CollectMs
	rr.AssembleMs = fr.Timing.AssembleMs
	rr.Records = len(fr.Records)
	rr.Scrolls = fr.Scroll.Attempts
	rr.Phase = fr.Scroll.Phase
	for _, r := range fr.Records {
		if r.Audio != "" {
			rr.WithAudio++
		}
		if r.Title == "" || r.Summary == "" {
			rr.Incomplete++
		}
	}

	if fr.Error != nil {
		rr.Error = fmt.Sprintf("[%s] %s", fr.Error.Code, fr.Error.Message)
	}

	return rr
}

func computeAverages(runs []runResult) *channelAverages {
	var successCount int
	var avg channelAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.LoadMs += float64(r.LoadMs)
		avg.CollectMs += float64(r.CollectMs)
		avg.AssembleMs += float64(r.AssembleMs)
		avg.Records += float64(r.Records)
		avg.WithAudio += float64(r.WithAudio)
		avg.Scrolls += float64(r.Scrolls)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.LoadMs /= n
	avg.CollectMs /= n
	avg.AssembleMs /= n
	avg.Records /= n
	avg.WithAudio /= n
	avg.Scrolls /= n
	return &avg
}

func printTable(results []channelResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Channel\tAvg Total\tLoad\tCollect\tAssemble\tRecords\tAudio\tScrolls\n")
	fmt.Fprintf(w, "───────\t─────────\t────\t───────\t────────\t───────\t─────\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\t-\t-\n", r.Channel)
			continue
		}
		a := r.Averages
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%dms\t%.1f\t%.1f\t%.1f\n",
			r.Channel,
			int64(a.TotalMs),
			int64(a.LoadMs),
			int64(a.CollectMs),
			int64(a.AssembleMs),
			a.Records,
			a.WithAudio,
			a.Scrolls,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
