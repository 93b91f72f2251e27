// Package papers answers academic paper searches from two upstreams:
// arXiv (a single Atom feed call) and PubMed (the NCBI E-utilities
// esearch/esummary/efetch pipeline). Both cache the finished answer
// under one key per query page, so a PubMed hit never re-runs any of
// the three stages.
package papers

import (
	"context"
	"time"

	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

// Adapter serves arxiv_search and pubmed_search.
type Adapter struct {
	deps    sources.Deps
	arxiv   *restclient.Client
	pubmed  *restclient.Client
	ncbiKey string
}

// New creates the papers adapter. arXiv needs no credential; the NCBI key
// is optional and only raises the E-utilities rate limit when present.
func New(ncbiKey string, deps sources.Deps) *Adapter {
	arxivCfg := restclient.DefaultConfig(arxivProvider, arxivBaseURL)
	arxivCfg.Timeout = 10 * time.Second

	pubmedCfg := restclient.DefaultConfig(pubmedProvider, pubmedBaseURL)
	pubmedCfg.Timeout = 10 * time.Second

	a := &Adapter{deps: deps, ncbiKey: ncbiKey}
	if deps.HTTPClient != nil {
		a.arxiv = restclient.NewWithHTTPClient(deps.HTTPClient, arxivCfg, nil)
		a.pubmed = restclient.NewWithHTTPClient(deps.HTTPClient, pubmedCfg, nil)
	} else {
		a.arxiv = restclient.New(arxivCfg, nil)
		a.pubmed = restclient.New(pubmedCfg, nil)
	}
	return a
}

// SetBaseURLs points both upstreams elsewhere. Tests use this.
func (a *Adapter) SetBaseURLs(arxivURL, pubmedURL string) {
	a.arxiv.SetBaseURL(arxivURL)
	a.pubmed.SetBaseURL(pubmedURL)
}

// Actions implements sources.Adapter.
func (a *Adapter) Actions() []core.Action {
	return []core.Action{core.ActionArxivSearch, core.ActionPubmedSearch}
}

// Answer implements sources.Adapter.
func (a *Adapter) Answer(ctx context.Context, intent core.Intent) core.FetchResult {
	switch intent.Action {
	case core.ActionArxivSearch:
		return a.arxivSearch(ctx, intent.Params.Query, intent.Params.Page)
	case core.ActionPubmedSearch:
		return a.pubmedSearch(ctx, intent.Params.Query, intent.Params.Page)
	default:
		return core.Failure(core.UnavailableMessage("논문 검색"), core.NewNotFoundError(pubmedProvider, string(intent.Action)))
	}
}

var _ sources.Adapter = (*Adapter)(nil)
