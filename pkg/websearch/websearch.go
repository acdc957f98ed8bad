package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable indicates the search backend could not be reached or
// rejected the request.
var ErrUnavailable = errors.New("web search provider unavailable")

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider performs web searches.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// FormatResults renders results as a numbered markdown list for the
// model to cite from. No results yields a fixed sentinel line.
func FormatResults(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No web results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Web results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **%s** (%s)\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}
