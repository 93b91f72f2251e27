// Package websearch answers web-search intents. Naver is the primary
// engine with a hard daily quota; DuckDuckGo's lite HTML page is the
// fallback of equal output shape, so callers never see which engine served
// the response.
package websearch

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"chatpilot/internal/pkg/restclient"
)

// ProviderNaver is the quota-tracked provider id for Naver.
const ProviderNaver = "naver"

const (
	naverBaseURL = "https://openapi.naver.com"
	pageSize     = 5
)

// result is the engine-agnostic search hit both engines normalize to.
type result struct {
	Title   string
	Link    string
	Snippet string
}

// engine abstracts the two search backends behind one shape.
type engine interface {
	name() string
	search(ctx context.Context, query string, page int) ([]result, error)
}

// naverEngine calls the Naver Open API web-search endpoint, authenticated
// by the client id/secret header pair.
type naverEngine struct {
	client *restclient.Client
}

func newNaverEngine(clientID, clientSecret string, httpClient *http.Client) *naverEngine {
	cfg := restclient.DefaultConfig(ProviderNaver, naverBaseURL)
	cfg.Timeout = 5 * time.Second

	setter := func(req *http.Request) {
		req.Header.Set("X-Naver-Client-Id", clientID)
		req.Header.Set("X-Naver-Client-Secret", clientSecret)
	}

	e := &naverEngine{}
	if httpClient != nil {
		e.client = restclient.NewWithHTTPClient(httpClient, cfg, setter)
	} else {
		e.client = restclient.New(cfg, setter)
	}
	return e
}

func (e *naverEngine) name() string {
	return ProviderNaver
}

func (e *naverEngine) setBaseURL(u string) {
	e.client.SetBaseURL(u)
}

func (e *naverEngine) search(ctx context.Context, query string, page int) ([]result, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{
		"query":   {query},
		"display": {fmt.Sprintf("%d", pageSize)},
		"start":   {fmt.Sprintf("%d", (page-1)*pageSize+1)},
	}

	var payload struct {
		Total int `json:"total"`
		Items []struct {
			Title       string `json:"title"`
			Link        string `json:"link"`
			Description string `json:"description"`
		} `json:"items"`
	}
	if err := e.client.GetJSON(ctx, "/v1/search/webkr.json", params, &payload); err != nil {
		return nil, err
	}

	results := make([]result, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, result{
			Title:   cleanMarkup(item.Title),
			Link:    item.Link,
			Snippet: cleanMarkup(item.Description),
		})
	}
	return results, nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// cleanMarkup strips the <b> highlighting and entities Naver embeds in
// titles and descriptions.
func cleanMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}
