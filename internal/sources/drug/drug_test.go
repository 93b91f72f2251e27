package drug

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/sources"
)

const registryBody = `{
	"body": {
		"totalCount": 1,
		"items": [{
			"itemName": "타이레놀정500밀리그램",
			"entpName": "한국존슨앤드존슨판매(유)",
			"efcyQesitm": "감기로 인한 발열 및 통증 완화",
			"useMethodQesitm": "1회 1~2정씩 1일 3-4회 복용",
			"atpnQesitm": "매일 세잔 이상 음주자는 의사와 상의"
		}]
	}
}`

const emptyBody = `{"body": {"totalCount": 0, "items": []}}`

// fakeSearcher is the same-shape fallback used in place of the live web
// search adapter.
type fakeSearcher struct {
	calls  atomic.Int32
	result core.FetchResult
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) core.FetchResult {
	return f.result
}

func (f *fakeSearcher) Summarize(_ context.Context, _ string) core.FetchResult {
	f.calls.Add(1)
	return f.result
}

func newAdapter(t *testing.T, body string, status int, searcher sources.Searcher) (*Adapter, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	deps := sources.Deps{Cache: cache.NewMemoryStore(), HTTPClient: server.Client()}
	a := New("service-key", searcher, deps)
	a.SetBaseURL(server.URL)
	return a, &calls
}

func TestDrugLookup(t *testing.T) {
	a, _ := newAdapter(t, registryBody, http.StatusOK, nil)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionDrug,
		Params: core.Params{Drug: "타이레놀"},
	})

	if result.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success (err: %v)", result.Status, result.Err)
	}
	for _, want := range []string{"타이레놀정500밀리그램", "효능", "발열", "복용법"} {
		if !strings.Contains(result.Response.Text, want) {
			t.Errorf("response missing %q:\n%s", want, result.Response.Text)
		}
	}
}

func TestZeroItemsUsesFallbackShape(t *testing.T) {
	fallbackResp := core.Success(core.TextResponse("'무명약 효능' 웹 검색 요약:\n- 링크: 설명"))
	searcher := &fakeSearcher{result: fallbackResp}
	a, _ := newAdapter(t, emptyBody, http.StatusOK, searcher)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionDrug,
		Params: core.Params{Drug: "무명약"},
	})

	if result.Status != core.StatusDegraded {
		t.Fatalf("Status = %q, want degraded (err: %v)", result.Status, result.Err)
	}
	// The output must equal the web-search-summary shape, never the bare
	// zero-items message.
	if result.Response.Kind != fallbackResp.Response.Kind {
		t.Errorf("Kind = %q, want fallback shape %q", result.Response.Kind, fallbackResp.Response.Kind)
	}
	if result.Response.Text != fallbackResp.Response.Text {
		t.Errorf("payload = %q, want the fallback payload", result.Response.Text)
	}
	if searcher.calls.Load() != 1 {
		t.Errorf("fallback calls = %d, want 1", searcher.calls.Load())
	}
}

func TestZeroItemsWithoutFallback(t *testing.T) {
	a, _ := newAdapter(t, emptyBody, http.StatusOK, nil)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionDrug,
		Params: core.Params{Drug: "무명약"},
	})

	if result.Status != core.StatusFailure {
		t.Fatalf("Status = %q, want failure", result.Status)
	}
	if !strings.Contains(result.Response.Text, "무명약") {
		t.Errorf("apology %q must name the drug", result.Response.Text)
	}
}

func TestRegistryErrorFallsBack(t *testing.T) {
	searcher := &fakeSearcher{result: core.Success(core.TextResponse("요약"))}
	a, _ := newAdapter(t, "", http.StatusInternalServerError, searcher)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionDrug,
		Params: core.Params{Drug: "타이레놀"},
	})

	if result.Status != core.StatusDegraded {
		t.Fatalf("Status = %q, want degraded (err: %v)", result.Status, result.Err)
	}
}

func TestFallbackFailureSurfacesApology(t *testing.T) {
	searcher := &fakeSearcher{result: core.Failure("검색 실패", errors.New("engines down"))}
	a, _ := newAdapter(t, emptyBody, http.StatusOK, searcher)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionDrug,
		Params: core.Params{Drug: "무명약"},
	})

	if result.Status != core.StatusFailure {
		t.Fatalf("Status = %q, want failure", result.Status)
	}
	if !strings.Contains(result.Response.Text, "무명약") {
		t.Errorf("apology %q must name the drug, not the fallback error", result.Response.Text)
	}
}

func TestLookupCachedWithinTTL(t *testing.T) {
	a, calls := newAdapter(t, registryBody, http.StatusOK, nil)
	ctx := context.Background()
	intent := core.Intent{Action: core.ActionDrug, Params: core.Params{Drug: "타이레놀"}}

	a.Answer(ctx, intent)
	a.Answer(ctx, intent)

	if got := calls.Load(); got != 1 {
		t.Errorf("registry fetches = %d, want exactly 1 within the TTL window", got)
	}
}
