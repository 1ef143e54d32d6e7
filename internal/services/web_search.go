package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"campus-rag/internal/models"

	"github.com/sashabaranov/go-openai"
)

const (
	// WebSearchToolName is the function name the model calls for live search
	WebSearchToolName = "web_search"

	googleSearchEndpoint = "https://www.googleapis.com/customsearch/v1"
	maxSearchResults     = 3
)

// ExternalSearcher runs a live web search. Failures are encoded in the
// result, never returned as Go errors.
type ExternalSearcher interface {
	Search(ctx context.Context, query string) models.SearchToolResult
}

// GoogleSearchTool queries the Google Custom Search JSON API
type GoogleSearchTool struct {
	apiKey     string
	engineID   string
	endpoint   string
	httpClient *http.Client
	logger     *log.Logger
}

// googleSearchResponse is the subset of the Custom Search response we read
type googleSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// NewGoogleSearchTool creates a search tool. Missing credentials are reported
// per call rather than at construction.
func NewGoogleSearchTool(apiKey, engineID string, timeout time.Duration, logger *log.Logger) *GoogleSearchTool {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleSearchTool{
		apiKey:   apiKey,
		engineID: engineID,
		endpoint: googleSearchEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Search returns up to three snippets for query
func (g *GoogleSearchTool) Search(ctx context.Context, query string) models.SearchToolResult {
	if g.apiKey == "" || g.engineID == "" {
		return models.SearchToolResult{Error: "web search is not configured"}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return models.SearchToolResult{Error: "empty search query"}
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxSearchResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return models.SearchToolResult{Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Printf("Web search request failed: %v", err)
		return models.SearchToolResult{Error: "web search request failed"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Printf("Web search returned HTTP %d: %s", resp.StatusCode, string(body))
		return models.SearchToolResult{Error: fmt.Sprintf("web search returned HTTP %d", resp.StatusCode)}
	}

	var parsed googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.SearchToolResult{Error: "failed to decode web search response"}
	}

	results := make([]models.SearchSnippet, 0, maxSearchResults)
	for _, item := range parsed.Items {
		if len(results) == maxSearchResults {
			break
		}
		results = append(results, models.SearchSnippet{
			Snippet:     item.Snippet,
			SourceTitle: item.Title,
			URL:         item.Link,
		})
	}

	g.logger.Printf("Web search for %q returned %d results in %.2fms",
		query, len(results), time.Since(startTime).Seconds()*1000)

	if len(results) == 0 {
		return models.SearchToolResult{Status: models.SearchStatusNotFound}
	}
	return models.SearchToolResult{Status: models.SearchStatusSuccess, Results: results}
}

// WebSearchToolDefinition describes web_search to the model
func WebSearchToolDefinition() openai.FunctionDefinition {
	return openai.FunctionDefinition{
		Name:        WebSearchToolName,
		Description: "Cari informasi terbaru tentang UIN Salatiga di web jika konteks internal tidak cukup.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Kata kunci pencarian",
				},
			},
			"required": []string{"query"},
		},
	}
}

// WebSearchToolFunc adapts an ExternalSearcher to the tool registry
func WebSearchToolFunc(searcher ExternalSearcher) ToolFunc {
	return func(ctx context.Context, arguments string) interface{} {
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return models.SearchToolResult{Error: "invalid arguments"}
		}
		return searcher.Search(ctx, args.Query)
	}
}
