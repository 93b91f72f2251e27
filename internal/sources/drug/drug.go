// Package drug answers medication questions from the MFDS easy-drug-info
// service. When the registry returns zero items and fallback is enabled,
// the adapter serves a web-search summary of the same output shape instead
// of the bare zero-items message.
package drug

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

const (
	providerName = "mfds"
	baseURL      = "https://apis.data.go.kr/1471000/DrbEasyDrugInfoService"

	noData = "정보 없음"

	// Drug registry entries barely change; cache for a day.
	drugTTL = 86400 * time.Second
)

// Adapter serves the drug action.
type Adapter struct {
	deps       sources.Deps
	client     *restclient.Client
	serviceKey string

	// fallback summarizes web results when the registry has no entry.
	// nil disables the fallback.
	fallback sources.Searcher
}

// New creates the drug adapter. searcher may be nil to disable the
// zero-items fallback.
func New(serviceKey string, searcher sources.Searcher, deps sources.Deps) *Adapter {
	cfg := restclient.DefaultConfig(providerName, baseURL)
	cfg.Timeout = 10 * time.Second

	var client *restclient.Client
	if deps.HTTPClient != nil {
		client = restclient.NewWithHTTPClient(deps.HTTPClient, cfg, nil)
	} else {
		client = restclient.New(cfg, nil)
	}
	return &Adapter{deps: deps, client: client, serviceKey: serviceKey, fallback: searcher}
}

// SetBaseURL points the adapter at a different upstream. Tests use this.
func (a *Adapter) SetBaseURL(u string) {
	a.client.SetBaseURL(u)
}

// Actions implements sources.Adapter.
func (a *Adapter) Actions() []core.Action {
	return []core.Action{core.ActionDrug}
}

// Answer implements sources.Adapter.
func (a *Adapter) Answer(ctx context.Context, intent core.Intent) core.FetchResult {
	name := strings.TrimSpace(intent.Params.Drug)
	if name == "" {
		return core.Failure(core.NotFoundMessage("의약품"), core.NewNotFoundError(providerName, "empty drug name"))
	}

	key := cache.Key("drug", name)
	var cached core.FetchResult
	if found, err := a.deps.Cache.Get(ctx, key, &cached); err == nil && found {
		a.deps.Metrics.ObserveCacheHit("drug")
		return cached
	}
	a.deps.Metrics.ObserveCacheMiss("drug")

	result := a.lookup(ctx, name)
	if result.Status != core.StatusFailure {
		_ = a.deps.Cache.Set(ctx, key, result, drugTTL)
	}
	return result
}

func (a *Adapter) lookup(ctx context.Context, name string) core.FetchResult {
	query := url.Values{
		"serviceKey": {a.serviceKey},
		"itemName":   {name},
		"type":       {"json"},
		"numOfRows":  {"1"},
	}
	resp, err := a.client.DoRaw(ctx, restclient.Request{Endpoint: "/getDrbEasyDrugList", Query: query})
	a.deps.Metrics.ObserveFetch(providerName, err != nil)
	if err != nil {
		return a.degradeOrFail(ctx, name, err)
	}

	item := gjson.GetBytes(resp.Body, "body.items.0")
	if !item.Exists() {
		// Zero items is the common miss: an unregistered nickname or a
		// foreign brand. Route to the web summary rather than surfacing
		// the empty registry answer.
		return a.degradeOrFail(ctx, name, core.NewNotFoundError(providerName, "zero items for "+name))
	}

	return core.Success(core.TextResponse(formatItem(name, item)))
}

// degradeOrFail runs the same-shape fallback when enabled, otherwise the
// user-facing apology.
func (a *Adapter) degradeOrFail(ctx context.Context, name string, cause error) core.FetchResult {
	if a.fallback == nil {
		return core.Failure(core.NotFoundMessage(name), cause)
	}

	summary := a.fallback.Summarize(ctx, name+" 효능")
	if summary.Status == core.StatusFailure {
		return core.Failure(core.NotFoundMessage(name), cause)
	}
	a.deps.Metrics.ObserveFallback("drug")
	return core.Degraded(summary.Response, "drug registry empty, web summary served")
}

func formatItem(name string, item gjson.Result) string {
	itemName := stringOr(item.Get("itemName"), name)
	company := stringOr(item.Get("entpName"), noData)
	efficacy := stringOr(item.Get("efcyQesitm"), noData)
	usage := stringOr(item.Get("useMethodQesitm"), noData)
	caution := stringOr(item.Get("atpnQesitm"), noData)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", itemName, company)
	fmt.Fprintf(&b, "효능: %s\n", efficacy)
	fmt.Fprintf(&b, "복용법: %s\n", usage)
	fmt.Fprintf(&b, "주의사항: %s", caution)
	return b.String()
}

func stringOr(r gjson.Result, fallback string) string {
	s := strings.TrimSpace(r.String())
	if s == "" {
		return fallback
	}
	return s
}

var _ sources.Adapter = (*Adapter)(nil)
