package websearch

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
)

// ProviderDuckDuckGo is the provider id for the fallback engine. It is not
// quota-tracked; attempts are still counted for observability.
const ProviderDuckDuckGo = "duckduckgo"

const ddgBaseURL = "https://lite.duckduckgo.com"

// ddgEngine scrapes DuckDuckGo's lite HTML page. It needs no credentials,
// which is exactly what makes it the safety net once the Naver ceiling is
// spent.
type ddgEngine struct {
	client *restclient.Client
}

func newDDGEngine(httpClient *http.Client) *ddgEngine {
	cfg := restclient.DefaultConfig(ProviderDuckDuckGo, ddgBaseURL)
	cfg.Timeout = 15 * time.Second

	setter := func(req *http.Request) {
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	e := &ddgEngine{}
	if httpClient != nil {
		e.client = restclient.NewWithHTTPClient(httpClient, cfg, setter)
	} else {
		e.client = restclient.New(cfg, setter)
	}
	return e
}

func (e *ddgEngine) name() string {
	return ProviderDuckDuckGo
}

func (e *ddgEngine) setBaseURL(u string) {
	e.client.SetBaseURL(u)
}

func (e *ddgEngine) search(ctx context.Context, query string, page int) ([]result, error) {
	form := url.Values{"q": {query}}
	resp, err := e.client.DoRaw(ctx, restclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/lite/",
		Body:     strings.NewReader(form.Encode()),
	})
	if err != nil {
		return nil, err
	}

	results := parseLiteHTML(string(resp.Body))
	if len(results) == 0 {
		return nil, core.NewParseError(ProviderDuckDuckGo, "no results parsed from lite page", nil)
	}

	// The lite page has no paging parameter worth scraping; slice locally.
	if page > 1 {
		offset := (page - 1) * pageSize
		if offset >= len(results) {
			return nil, core.NewNotFoundError(ProviderDuckDuckGo, "page beyond available results")
		}
		results = results[offset:]
	}
	if len(results) > pageSize {
		results = results[:pageSize]
	}
	return results, nil
}

var (
	liteLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>|<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	liteSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)
)

// parseLiteHTML extracts result links and snippets from the lite page. The
// page structure is simple enough that regexes beat a full HTML parser.
func parseLiteHTML(page string) []result {
	links := liteLinkPattern.FindAllStringSubmatch(page, -1)
	snippets := liteSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []result
	for i, m := range links {
		link, title := m[1], m[2]
		if link == "" {
			link, title = m[3], m[4]
		}
		r := result{
			Title: strings.TrimSpace(html.UnescapeString(title)),
			Link:  strings.TrimSpace(link),
		}
		if i < len(snippets) {
			r.Snippet = cleanMarkup(snippets[i][1])
		}
		if r.Title != "" && r.Link != "" {
			results = append(results, r)
		}
	}
	return results
}
