package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/sources"
)

const searchTTL = 3600 * time.Second

// Adapter serves web_search and implements sources.Searcher for other
// adapters' fallbacks. The quota check runs before every Naver call; once
// the ceiling is spent the request routes straight to DuckDuckGo, whose
// output shape is identical.
type Adapter struct {
	deps     sources.Deps
	primary  engine
	fallback engine
}

// New creates the web-search adapter with Naver primary and DuckDuckGo
// fallback.
func New(clientID, clientSecret string, deps sources.Deps) *Adapter {
	return &Adapter{
		deps:     deps,
		primary:  newNaverEngine(clientID, clientSecret, deps.HTTPClient),
		fallback: newDDGEngine(deps.HTTPClient),
	}
}

// SetBaseURLs points both engines at different upstreams. Tests use this.
func (a *Adapter) SetBaseURLs(naverURL, ddgURL string) {
	if n, ok := a.primary.(*naverEngine); ok && naverURL != "" {
		n.setBaseURL(naverURL)
	}
	if d, ok := a.fallback.(*ddgEngine); ok && ddgURL != "" {
		d.setBaseURL(ddgURL)
	}
}

// Actions implements sources.Adapter.
func (a *Adapter) Actions() []core.Action {
	return []core.Action{core.ActionWebSearch}
}

// Answer implements sources.Adapter.
func (a *Adapter) Answer(ctx context.Context, intent core.Intent) core.FetchResult {
	if strings.TrimSpace(intent.Params.Query) == "" {
		return core.Failure(core.NotFoundMessage("검색어"), core.NewNotFoundError(ProviderNaver, "empty query"))
	}
	return a.Search(ctx, intent.Params.Query, intent.Params.Page)
}

// Search implements sources.Searcher. The cache key deliberately excludes
// the engine: a cached fallback answer satisfies a later primary request,
// which is the point of same-shape fallback.
func (a *Adapter) Search(ctx context.Context, query string, page int) core.FetchResult {
	if page < 1 {
		page = 1
	}
	key := cache.Key("web_search", query, fmt.Sprintf("%d", page))

	var cached core.FetchResult
	if found, err := a.deps.Cache.Get(ctx, key, &cached); err == nil && found {
		a.deps.Metrics.ObserveCacheHit("web_search")
		return cached
	}
	a.deps.Metrics.ObserveCacheMiss("web_search")

	result := a.searchRemote(ctx, query, page)
	if result.Status != core.StatusFailure {
		_ = a.deps.Cache.Set(ctx, key, result, searchTTL)
	}
	return result
}

// Summarize implements sources.Searcher: a text digest of the top results,
// used by adapters whose primary source came back empty.
func (a *Adapter) Summarize(ctx context.Context, query string) core.FetchResult {
	key := cache.Key("web_summary", query)

	var cached core.FetchResult
	if found, err := a.deps.Cache.Get(ctx, key, &cached); err == nil && found {
		a.deps.Metrics.ObserveCacheHit("web_summary")
		return cached
	}
	a.deps.Metrics.ObserveCacheMiss("web_summary")

	results, engineName, err := a.fetch(ctx, query, 1)
	if err != nil {
		return core.Failure(core.NotFoundMessage(query), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "'%s' 웹 검색 요약:\n", query)
	for i, r := range results {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, snippetOrLink(r))
	}

	out := core.Success(core.TextResponse(strings.TrimRight(b.String(), "\n")))
	if engineName != a.primary.name() {
		out = core.Degraded(out.Response, "served by "+engineName)
	}
	_ = a.deps.Cache.Set(ctx, key, out, searchTTL)
	return out
}

// searchRemote runs the quota-then-fallback protocol and formats the hits.
func (a *Adapter) searchRemote(ctx context.Context, query string, page int) core.FetchResult {
	results, engineName, err := a.fetch(ctx, query, page)
	if err != nil {
		return core.Failure(core.UnavailableMessage("검색"), err)
	}

	resp := formatResults(query, results)
	if engineName != a.primary.name() {
		a.deps.Metrics.ObserveFallback("web_search")
		return core.Degraded(resp, "served by "+engineName)
	}
	return core.Success(resp)
}

// fetch picks the engine. Quota is consulted before the primary call and
// incremented once the call has been dispatched, success or not.
func (a *Adapter) fetch(ctx context.Context, query string, page int) ([]result, string, error) {
	overLimit := a.quotaOver()
	if overLimit {
		a.deps.Metrics.ObserveQuotaRejection(ProviderNaver)
	} else {
		a.quotaIncrement()
		results, err := a.primary.search(ctx, query, page)
		a.deps.Metrics.ObserveFetch(ProviderNaver, err != nil)
		if err == nil {
			return results, a.primary.name(), nil
		}
	}

	results, err := a.fallback.search(ctx, query, page)
	a.deps.Metrics.ObserveFetch(ProviderDuckDuckGo, err != nil)
	if err != nil {
		return nil, "", err
	}
	return results, a.fallback.name(), nil
}

func (a *Adapter) quotaOver() bool {
	if a.deps.Quota == nil {
		return false
	}
	return a.deps.Quota.IsOverLimit(ProviderNaver)
}

func (a *Adapter) quotaIncrement() {
	if a.deps.Quota != nil {
		a.deps.Quota.Increment(ProviderNaver)
	}
}

// formatResults renders hits as a table: one row per hit, links in the
// footer-free row cells so the UI can choose its rendering.
func formatResults(query string, results []result) core.Response {
	table := core.Table{
		Header: []string{"제목", "요약", "링크"},
		Footer: fmt.Sprintf("'%s' 검색 결과", query),
	}
	for _, r := range results {
		table.Rows = append(table.Rows, []string{r.Title, snippetOrLink(r), r.Link})
	}
	return core.TableResponse(table)
}

func snippetOrLink(r result) string {
	if r.Snippet != "" {
		return r.Snippet
	}
	return r.Link
}

var _ sources.Adapter = (*Adapter)(nil)
var _ sources.Searcher = (*Adapter)(nil)
