package papers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

const (
	pubmedProvider = "pubmed"
	pubmedBaseURL  = "https://eutils.ncbi.nlm.nih.gov"

	// NCBI asks unauthenticated clients to keep concurrency low.
	efetchConcurrency = 3
)

// pubmedArticle is one joined record out of the three-stage pipeline.
type pubmedArticle struct {
	ID       string
	Title    string
	Authors  string
	PubDate  string
	Abstract string
}

// efetchResult is the subset of the efetch XML the adapter reads.
type efetchResult struct {
	XMLName   xml.Name `xml:"PubmedArticleSet"`
	Abstracts []string `xml:"PubmedArticle>MedlineCitation>Article>Abstract>AbstractText"`
}

// pubmedSearch runs esearch → esummary → efetch under one cache entry.
// The pipeline is all-or-nothing: if any stage fails, the whole answer
// fails rather than serving a partial join of the stages that worked.
func (a *Adapter) pubmedSearch(ctx context.Context, query string, page int) core.FetchResult {
	if page < 1 {
		page = 1
	}
	key := cache.Key("pubmed_search", query, fmt.Sprintf("%d", page))
	resp, err := sources.Cached(ctx, a.deps, "pubmed_search", key, paperTTL, func(ctx context.Context) (core.Response, error) {
		articles, err := a.pipeline(ctx, query, page)
		if err != nil {
			return core.Response{}, err
		}
		return core.TextResponse(formatPubmed(query, articles)), nil
	})
	if err != nil {
		return core.Failure(core.UnavailableMessage("논문 검색"), err)
	}
	return core.Success(resp)
}

func (a *Adapter) pipeline(ctx context.Context, query string, page int) ([]pubmedArticle, error) {
	ids, err := a.esearch(ctx, query, page)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, core.NewNotFoundError(pubmedProvider, "no papers for "+query)
	}

	articles, err := a.esummary(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := a.efetchAbstracts(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (a *Adapter) esearch(ctx context.Context, query string, page int) ([]string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmode", "json")
	q.Set("retmax", fmt.Sprintf("%d", pageSize))
	q.Set("retstart", fmt.Sprintf("%d", (page-1)*pageSize))

	body, err := a.eutils(ctx, "/entrez/eutils/esearch.fcgi", q)
	if err != nil {
		return nil, err
	}
	var ids []string
	gjson.GetBytes(body, "esearchresult.idlist").ForEach(func(_, id gjson.Result) bool {
		ids = append(ids, id.String())
		return true
	})
	return ids, nil
}

func (a *Adapter) esummary(ctx context.Context, ids []string) ([]pubmedArticle, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "json")

	body, err := a.eutils(ctx, "/entrez/eutils/esummary.fcgi", q)
	if err != nil {
		return nil, err
	}

	articles := make([]pubmedArticle, 0, len(ids))
	for _, id := range ids {
		record := gjson.GetBytes(body, "result."+id)
		if !record.Exists() {
			return nil, core.NewParseError(pubmedProvider, "esummary missing record "+id, nil)
		}
		articles = append(articles, pubmedArticle{
			ID:      id,
			Title:   record.Get("title").String(),
			Authors: summaryAuthors(record),
			PubDate: record.Get("pubdate").String(),
		})
	}
	return articles, nil
}

// efetchAbstracts fills in each article's abstract, at most
// efetchConcurrency requests in flight. The first failure cancels the
// rest: a missing abstract fails the whole pipeline.
func (a *Adapter) efetchAbstracts(ctx context.Context, articles []pubmedArticle) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(efetchConcurrency)

	for i := range articles {
		g.Go(func() error {
			abstract, err := a.efetch(ctx, articles[i].ID)
			if err != nil {
				return err
			}
			articles[i].Abstract = abstract
			return nil
		})
	}
	return g.Wait()
}

func (a *Adapter) efetch(ctx context.Context, id string) (string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", id)
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	body, err := a.eutils(ctx, "/entrez/eutils/efetch.fcgi", q)
	if err != nil {
		return "", err
	}
	var result efetchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return "", core.NewParseError(pubmedProvider, "malformed efetch payload for "+id, err)
	}
	return collapseSpace(strings.Join(result.Abstracts, " ")), nil
}

func (a *Adapter) eutils(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	if a.ncbiKey != "" {
		q.Set("api_key", a.ncbiKey)
	}
	resp, err := a.pubmed.DoRaw(ctx, restclient.Request{Endpoint: endpoint, Query: q})
	a.deps.Metrics.ObserveFetch(pubmedProvider, err != nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func summaryAuthors(record gjson.Result) string {
	var names []string
	record.Get("authors").ForEach(func(_, author gjson.Result) bool {
		if name := author.Get("name").String(); name != "" {
			names = append(names, name)
		}
		return len(names) < 3
	})
	return strings.Join(names, ", ")
}

func formatPubmed(query string, articles []pubmedArticle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' PubMed 검색 결과입니다.\n", query)
	for i, art := range articles {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, collapseSpace(art.Title))
		meta := art.Authors
		if art.PubDate != "" {
			if meta != "" {
				meta += " (" + art.PubDate + ")"
			} else {
				meta = art.PubDate
			}
		}
		if meta != "" {
			fmt.Fprintf(&b, "   %s\n", meta)
		}
		if s := truncate(art.Abstract, abstractCut); s != "" {
			fmt.Fprintf(&b, "   %s\n", s)
		}
		fmt.Fprintf(&b, "   https://pubmed.ncbi.nlm.nih.gov/%s/\n", art.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
