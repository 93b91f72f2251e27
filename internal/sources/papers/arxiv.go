package papers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

const (
	arxivProvider = "arxiv"
	arxivBaseURL  = "http://export.arxiv.org"

	paperTTL    = 3600 * time.Second
	pageSize    = 5
	abstractCut = 200
)

// atomFeed is the subset of the arXiv Atom response the adapter reads.
// The feed is XML; everything else in this codebase speaks JSON, so the
// raw body is fetched and decoded here rather than through GetJSON.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	ID        string       `xml:"id"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

func (a *Adapter) arxivSearch(ctx context.Context, query string, page int) core.FetchResult {
	if page < 1 {
		page = 1
	}
	key := cache.Key("arxiv_search", query, fmt.Sprintf("%d", page))
	resp, err := sources.Cached(ctx, a.deps, "arxiv_search", key, paperTTL, func(ctx context.Context) (core.Response, error) {
		return a.fetchArxiv(ctx, query, page)
	})
	if err != nil {
		return core.Failure(core.UnavailableMessage("논문 검색"), err)
	}
	return core.Success(resp)
}

func (a *Adapter) fetchArxiv(ctx context.Context, query string, page int) (core.Response, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", fmt.Sprintf("%d", (page-1)*pageSize))
	q.Set("max_results", fmt.Sprintf("%d", pageSize))
	q.Set("sortBy", "relevance")

	raw, err := a.arxiv.DoRaw(ctx, restclient.Request{Endpoint: "/api/query", Query: q})
	a.deps.Metrics.ObserveFetch(arxivProvider, err != nil)
	if err != nil {
		return core.Response{}, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(raw.Body, &feed); err != nil {
		return core.Response{}, core.NewParseError(arxivProvider, "malformed atom feed", err)
	}
	if len(feed.Entries) == 0 {
		return core.Response{}, core.NewNotFoundError(arxivProvider, "no papers for "+query)
	}
	return core.TextResponse(formatArxiv(query, feed.Entries)), nil
}

func formatArxiv(query string, entries []atomEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' arXiv 검색 결과입니다.\n", query)
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, collapseSpace(e.Title))
		if line := authorLine(e); line != "" {
			fmt.Fprintf(&b, "   %s\n", line)
		}
		if s := truncate(collapseSpace(e.Summary), abstractCut); s != "" {
			fmt.Fprintf(&b, "   %s\n", s)
		}
		if e.ID != "" {
			fmt.Fprintf(&b, "   %s\n", e.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func authorLine(e atomEntry) string {
	names := make([]string, 0, len(e.Authors))
	for _, author := range e.Authors {
		if author.Name != "" {
			names = append(names, author.Name)
		}
	}
	if len(names) > 3 {
		names = append(names[:3], "외")
	}
	line := strings.Join(names, ", ")
	if year := publishedYear(e.Published); year != "" {
		if line != "" {
			return line + " (" + year + ")"
		}
		return year
	}
	return line
}

func publishedYear(published string) string {
	if len(published) >= 4 {
		return published[:4]
	}
	return ""
}

// collapseSpace folds the newline-wrapped text arXiv emits into one line.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
