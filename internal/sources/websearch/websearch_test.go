package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/quota"
	"chatpilot/internal/sources"
)

const naverBody = `{
	"total": 2,
	"items": [
		{"title": "<b>맛집</b> 추천", "link": "https://a.example", "description": "서울 <b>맛집</b> 목록"},
		{"title": "맛집 베스트", "link": "https://b.example", "description": "인기 식당"}
	]
}`

const ddgBody = `<html><body><table>
<tr><td><a rel="nofollow" class='result-link' href='https://c.example'>fallback hit</a></td></tr>
<tr><td class='result-snippet'>fallback snippet</td></tr>
</table></body></html>`

type fixture struct {
	adapter    *Adapter
	tracker    *quota.Tracker
	naverCalls *atomic.Int32
	ddgCalls   *atomic.Int32
}

func newFixture(t *testing.T, naverStatus int, ceiling int) *fixture {
	t.Helper()

	var naverCalls, ddgCalls atomic.Int32
	naverServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		naverCalls.Add(1)
		if r.Header.Get("X-Naver-Client-Id") == "" {
			t.Error("missing Naver credential header pair")
		}
		if naverStatus != http.StatusOK {
			w.WriteHeader(naverStatus)
			return
		}
		w.Write([]byte(naverBody))
	}))
	t.Cleanup(naverServer.Close)

	ddgServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ddgCalls.Add(1)
		w.Write([]byte(ddgBody))
	}))
	t.Cleanup(ddgServer.Close)

	tracker := quota.NewTracker(map[string]int{ProviderNaver: ceiling})
	deps := sources.Deps{
		Cache:      cache.NewMemoryStore(),
		Quota:      tracker,
		HTTPClient: naverServer.Client(),
	}
	a := New("cid", "secret", deps)
	a.SetBaseURLs(naverServer.URL, ddgServer.URL)

	return &fixture{adapter: a, tracker: tracker, naverCalls: &naverCalls, ddgCalls: &ddgCalls}
}

func TestSearchPrimary(t *testing.T) {
	f := newFixture(t, http.StatusOK, 100)

	result := f.adapter.Search(context.Background(), "맛집", 1)
	if result.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success (err: %v)", result.Status, result.Err)
	}
	if result.Response.Kind != core.ResponseTable {
		t.Fatalf("Kind = %q, want table", result.Response.Kind)
	}
	rows := result.Response.Table.Rows
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "맛집 추천" {
		t.Errorf("title = %q, markup must be stripped", rows[0][0])
	}
	if f.ddgCalls.Load() != 0 {
		t.Error("fallback engine must not be touched on primary success")
	}
}

func TestQuotaRoutesToFallback(t *testing.T) {
	f := newFixture(t, http.StatusOK, 1)
	ctx := context.Background()

	f.adapter.Search(ctx, "첫번째", 1)
	if !f.tracker.IsOverLimit(ProviderNaver) {
		t.Fatal("ceiling of 1 should be spent after one search")
	}

	result := f.adapter.Search(ctx, "두번째", 1)
	if result.Status != core.StatusDegraded {
		t.Fatalf("Status = %q, want degraded via fallback (err: %v)", result.Status, result.Err)
	}
	// Same shape as the primary path: a table.
	if result.Response.Kind != core.ResponseTable {
		t.Errorf("fallback Kind = %q, want table", result.Response.Kind)
	}
	if f.naverCalls.Load() != 1 {
		t.Errorf("naver calls = %d, want 1 — quota must gate before the request", f.naverCalls.Load())
	}
}

func TestPrimaryFailureFallsBack(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError, 100)

	result := f.adapter.Search(context.Background(), "맛집", 1)
	if result.Status != core.StatusDegraded {
		t.Fatalf("Status = %q, want degraded (err: %v)", result.Status, result.Err)
	}
	if result.Note == "" {
		t.Error("degraded result must carry a note naming the serving engine")
	}
	if result.Response.Table.Rows[0][0] != "fallback hit" {
		t.Errorf("unexpected fallback row: %v", result.Response.Table.Rows[0])
	}
}

func TestQuotaCountsAttemptsNotSuccesses(t *testing.T) {
	f := newFixture(t, http.StatusInternalServerError, 100)

	f.adapter.Search(context.Background(), "맛집", 1)
	if got := f.tracker.Count(ProviderNaver); got == 0 {
		t.Error("failed dispatches must still count against the quota")
	}
}

func TestSearchCachedWithinTTL(t *testing.T) {
	f := newFixture(t, http.StatusOK, 100)
	ctx := context.Background()

	f.adapter.Search(ctx, "맛집", 1)
	f.adapter.Search(ctx, "맛집", 1)

	if got := f.naverCalls.Load(); got != 1 {
		t.Errorf("naver calls = %d, want exactly 1 within the TTL window", got)
	}
}

func TestPageIsPartOfCacheKey(t *testing.T) {
	f := newFixture(t, http.StatusOK, 100)
	ctx := context.Background()

	f.adapter.Search(ctx, "맛집", 1)
	f.adapter.Search(ctx, "맛집", 2)

	if got := f.naverCalls.Load(); got != 2 {
		t.Errorf("naver calls = %d, want 2 — pages must not share a cache entry", got)
	}
}

func TestSummarizeShape(t *testing.T) {
	f := newFixture(t, http.StatusOK, 100)

	result := f.adapter.Summarize(context.Background(), "타이레놀 효능")
	if result.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success (err: %v)", result.Status, result.Err)
	}
	if result.Response.Kind != core.ResponseText {
		t.Errorf("Kind = %q, want text", result.Response.Kind)
	}
}

func TestParseLiteHTML(t *testing.T) {
	results := parseLiteHTML(ddgBody)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Title != "fallback hit" || results[0].Link != "https://c.example" {
		t.Errorf("unexpected result: %+v", results[0])
	}
	if results[0].Snippet != "fallback snippet" {
		t.Errorf("Snippet = %q, want fallback snippet", results[0].Snippet)
	}
}
