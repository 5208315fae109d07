package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// feedRequest mirrors the subset of the Feedgrab API request the tools set.
type feedRequest struct {
	URL       string `json:"url,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Target    int    `json:"target,omitempty"`
	SkipAudio bool   `json:"skip_audio,omitempty"`
}

// record mirrors one Feedgrab record.
type record struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	Image         string `json:"image"`
	Summary       string `json:"summary"`
	Source        string `json:"source"`
	PublishedTime string `json:"published_time"`
	Audio         string `json:"audio"`
}

// feedResponse mirrors the Feedgrab feed API response.
type feedResponse struct {
	Success bool     `json:"success"`
	URL     string   `json:"url"`
	Count   int      `json:"count"`
	Records []record `json:"records"`
	Scroll  *struct {
		ItemsSeen int    `json:"items_seen"`
		Attempts  int    `json:"attempts"`
		Phase     string `json:"phase"`
	} `json:"scroll"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchResponse mirrors the Feedgrab batch API response.
type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchStatusResponse mirrors the Feedgrab batch status API response.
type batchStatusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Results   []*feedResponse `json:"results"`
}

func main() {
	apiURL := os.Getenv("FEEDGRAB_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FEEDGRAB_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "FEEDGRAB_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"feedgrab",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	collectFeedTool := mcp.NewTool("collect_feed",
		mcp.WithDescription("Collect the latest entries of an infinite-scroll news feed. Scrolls until enough entries are rendered and returns title, image, summary, source, published time and audio URL for each, in feed order."),
		mcp.WithString("channel",
			mcp.Description("Feed channel, e.g. 'entertainment' (default: the server's configured channel)"),
		),
		mcp.WithString("url",
			mcp.Description("Feed URL to collect instead of the server's configured feed"),
		),
		mcp.WithNumber("target",
			mcp.Description("Number of entries to collect (default: 20, max: 500)"),
		),
		mcp.WithBoolean("skip_audio",
			mcp.Description("Do not click play to resolve audio URLs (faster)"),
		),
	)
	s.AddTool(collectFeedTool, handleCollectFeed(apiURL, apiKey))

	batchCollectTool := mcp.NewTool("batch_collect",
		mcp.WithDescription("Collect several feed channels or feed URLs in parallel. Each one is collected independently; failures do not affect the others."),
		mcp.WithArray("channels",
			mcp.Description("Channels of the configured feed to collect"),
		),
		mcp.WithArray("urls",
			mcp.Description("Feed URLs to collect"),
		),
		mcp.WithNumber("target",
			mcp.Description("Number of entries per feed (default: 20)"),
		),
		mcp.WithBoolean("skip_audio",
			mcp.Description("Do not click play to resolve audio URLs"),
		),
	)
	s.AddTool(batchCollectTool, handleBatchCollect(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Feedgrab API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleCollectFeed(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 11 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqBody := feedRequest{
			URL:       request.GetString("url", ""),
			Channel:   request.GetString("channel", ""),
			Target:    request.GetInt("target", 0),
			SkipAudio: request.GetBool("skip_audio", false),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/feed", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var fr feedResponse
		if err := json.Unmarshal(respBody, &fr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !fr.Success {
			return mcp.NewToolResultError(failureMessage(&fr)), nil
		}

		return mcp.NewToolResultText(formatFeed(&fr)), nil
	}
}

func handleBatchCollect(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		channels := request.GetStringSlice("channels", nil)
		urls := request.GetStringSlice("urls", nil)
		if len(channels)+len(urls) == 0 {
			return mcp.NewToolResultError("channels or urls is required"), nil
		}

		payload := map[string]any{
			"channels": channels,
			"urls":     urls,
			"options": feedRequest{
				Target:    request.GetInt("target", 0),
				SkipAudio: request.GetBool("skip_audio", false),
			},
		}

		// POST to create batch job.
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/feed", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp batchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}
		if batchResp.ID == "" {
			msg := "batch job creation failed"
			if batchResp.Error != nil {
				msg = fmt.Sprintf("[%s] %s", batchResp.Error.Code, batchResp.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}

		// Poll for completion.
		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var statusResp batchStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", statusResp.ID, statusResp.Status, statusResp.Completed, statusResp.Total)
		for i, fr := range statusResp.Results {
			if fr == nil {
				fmt.Fprintf(&sb, "--- [%d] no result ---\n\n", i+1)
				continue
			}
			if !fr.Success {
				fmt.Fprintf(&sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, fr.URL, failureMessage(fr))
				continue
			}
			fmt.Fprintf(&sb, "--- [%d] %s ---\n%s\n\n", i+1, fr.URL, formatFeed(fr))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func failureMessage(fr *feedResponse) string {
	if fr.Error == nil {
		return "collection failed"
	}
	return fmt.Sprintf("[%s] %s", fr.Error.Code, fr.Error.Message)
}

// formatFeed renders the records as indented JSON under a one-line header.
func formatFeed(fr *feedResponse) string {
	header := fmt.Sprintf("Feed: %s\nRecords: %d", fr.URL, fr.Count)
	if fr.Scroll != nil {
		header += fmt.Sprintf(" (%d seen after %d scrolls, %s)", fr.Scroll.ItemsSeen, fr.Scroll.Attempts, fr.Scroll.Phase)
	}
	data, err := json.MarshalIndent(fr.Records, "", "  ")
	if err != nil {
		return header
	}
	return header + "\n\n" + string(data)
}
