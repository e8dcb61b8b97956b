package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL string
	rawJSON   bool

	// Filter flags shared by search and research
	court    string
	yearFrom int
	yearTo   int

	// Search command flags
	limit int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "searchctl",
	Short:   "Query the case-law research service",
	Version: version,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot hybrid search",
	Long: `Run a one-shot hybrid search without the agentic research loop.

Examples:
  # Plain text search
  searchctl search "αδικαιολόγητος πλουτισμός"

  # Filter by court and years
  searchctl search "unjust enrichment" --court supreme --year-from 2015`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Run a full research turn, streaming progress",
	Long: `Run a full agentic research turn and print each progress event as it
arrives. The server plans follow-up queries, reranks the merged pool and
classifies the kept decisions before the final results are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

var getCmd = &cobra.Command{
	Use:   "get <doc-id>",
	Short: "Fetch one stored decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "orchestrator base URL")
	rootCmd.PersistentFlags().BoolVar(&rawJSON, "json", false, "print raw JSON instead of formatted output")

	for _, cmd := range []*cobra.Command{searchCmd, researchCmd} {
		cmd.Flags().StringVar(&court, "court", "", "restrict to one court level (e.g. supreme, aad, epa)")
		cmd.Flags().IntVar(&yearFrom, "year-from", 0, "earliest decision year")
		cmd.Flags().IntVar(&yearTo, "year-to", 0, "latest decision year")
	}
	searchCmd.Flags().IntVar(&limit, "limit", 20, "maximum results")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(getCmd)
}

func defaultServerURL() string {
	if v := os.Getenv("ORCHESTRATOR_URL"); v != "" {
		return v
	}
	return "http://localhost:9020"
}

func runSearch(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	params.Set("q", args[0])
	params.Set("limit", strconv.Itoa(limit))
	if court != "" {
		params.Set("court", court)
	}
	if yearFrom > 0 {
		params.Set("year_from", strconv.Itoa(yearFrom))
	}
	if yearTo > 0 {
		params.Set("year_to", strconv.Itoa(yearTo))
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(serverURL + "/v1/search?" + params.Encode())
	if err != nil {
		return fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if rawJSON {
		fmt.Println(string(body))
		return nil
	}

	var payload struct {
		Results []struct {
			DocID      string  `json:"doc_id"`
			Title      string  `json:"title"`
			Court      string  `json:"court"`
			Year       int     `json:"year"`
			FusedScore float64 `json:"fused_score"`
			Snippet    string  `json:"snippet"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if len(payload.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range payload.Results {
		fmt.Printf("%2d. %s", i+1, r.Title)
		if r.Court != "" || r.Year > 0 {
			fmt.Printf(" [%s, %d]", r.Court, r.Year)
		}
		fmt.Printf("  (score %.4f, id %s)\n", r.FusedScore, r.DocID)
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
	}
	return nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	reqBody, err := json.Marshal(map[string]interface{}{
		"question":  args[0],
		"court":     court,
		"year_from": yearFrom,
		"year_to":   yearTo,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	// Interrupt aborts the stream; the server notices via the request context.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/v1/research/stream", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request research stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return printStream(resp.Body)
}

// printStream reads SSE frames and prints one line per event.
func printStream(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			if rawJSON {
				fmt.Printf("%s\t%s\n", eventName, data)
				continue
			}
			printEvent(eventName, data)
		}
	}
	return scanner.Err()
}

func printEvent(name, data string) {
	switch name {
	case "searching":
		var p struct {
			Round   int      `json:"round"`
			Queries []string `json:"queries"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			fmt.Printf("[round %d] searching: %s\n", p.Round, strings.Join(p.Queries, "; "))
		}
	case "sources":
		var p struct {
			Sources []struct {
				Title string `json:"title"`
			} `json:"sources"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			fmt.Printf("  found %d new sources\n", len(p.Sources))
		}
	case "reranked":
		var p struct {
			Kept     int  `json:"kept_count"`
			Degraded bool `json:"degraded"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			suffix := ""
			if p.Degraded {
				suffix = " (reranker degraded, dense order)"
			}
			fmt.Printf("  kept %d after rerank%s\n", p.Kept, suffix)
		}
	case "summarizing":
		var p struct {
			Batch int `json:"batch"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			fmt.Printf("  classifying batch %d...\n", p.Batch)
		}
	case "summaries":
		var p struct {
			Results []struct {
				Title      string `json:"title"`
				Relevance  string `json:"relevance_level"`
				Engagement string `json:"engagement_level"`
			} `json:"results"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			for _, r := range p.Results {
				fmt.Printf("    %-10s %-14s %s\n", r.Relevance, r.Engagement, r.Title)
			}
		}
	case "usage":
		var p struct {
			TotalTokens     int `json:"total_tokens"`
			EmbeddingTokens int `json:"embedding_tokens"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			fmt.Printf("  usage: %d completion tokens, %d embedding tokens\n", p.TotalTokens, p.EmbeddingTokens)
		}
	case "done":
		var p struct {
			SessionID  string `json:"session_id"`
			Rounds     int    `json:"rounds"`
			Incomplete bool   `json:"incomplete"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			status := "complete"
			if p.Incomplete {
				status = "incomplete (round ceiling)"
			}
			fmt.Printf("done: %d rounds, %s (session %s)\n", p.Rounds, status, p.SessionID)
		}
	case "error":
		var p struct {
			Category string `json:"category"`
		}
		if json.Unmarshal([]byte(data), &p) == nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", p.Category)
		}
	default:
		fmt.Printf("%s\t%s\n", name, data)
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(serverURL + "/v1/documents/" + url.PathEscape(args[0]))
	if err != nil {
		return fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("document %s not found", args[0])
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if rawJSON {
		fmt.Println(string(body))
		return nil
	}

	var doc struct {
		Title string `json:"title"`
		Court string `json:"court"`
		Year  int    `json:"year"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Printf("%s [%s, %d]\n\n%s\n", doc.Title, doc.Court, doc.Year, doc.Body)
	return nil
}
