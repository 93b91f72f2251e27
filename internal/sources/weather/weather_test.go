package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/sources"
)

const geoBody = `[{"name":"Seoul","country":"KR","lat":37.5665,"lon":126.978}]`

const weatherBody = `{
	"weather":[{"description":"맑음"}],
	"main":{"temp":21.3,"feels_like":20.1,"humidity":60},
	"wind":{"speed":2.1},
	"timezone":32400
}`

const forecastBody = `{
	"list":[
		{"dt_txt":"2031-01-02 09:00:00","main":{"temp":3.0},"weather":[{"description":"구름"}]},
		{"dt_txt":"2031-01-02 12:00:00","main":{"temp":5.5},"weather":[{"description":"맑음"}]},
		{"dt_txt":"2031-01-03 12:00:00","main":{"temp":-1.0},"weather":[{"description":"눈"}]}
	]
}`

type fakeUpstream struct {
	geoCalls      atomic.Int32
	weatherCalls  atomic.Int32
	forecastCalls atomic.Int32
	server        *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/geo/1.0/direct"):
			f.geoCalls.Add(1)
			w.Write([]byte(geoBody))
		case strings.HasPrefix(r.URL.Path, "/data/2.5/weather"):
			f.weatherCalls.Add(1)
			w.Write([]byte(weatherBody))
		case strings.HasPrefix(r.URL.Path, "/data/2.5/forecast"):
			f.forecastCalls.Add(1)
			w.Write([]byte(forecastBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newAdapter(t *testing.T, upstream *fakeUpstream) *Adapter {
	t.Helper()
	deps := sources.Deps{
		Cache:      cache.NewMemoryStore(),
		HTTPClient: upstream.server.Client(),
	}
	a := New("test-key", deps)
	a.SetBaseURL(upstream.server.URL)
	return a
}

func TestCurrentWeather(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionWeather,
		Params: core.Params{City: "서울"},
	})

	if result.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success (err: %v)", result.Status, result.Err)
	}
	text := result.Response.Text
	for _, want := range []string{"서울", "맑음", "21.3°C", "60%"} {
		if !strings.Contains(text, want) {
			t.Errorf("response %q missing %q", text, want)
		}
	}
}

func TestCurrentWeatherIdempotentWithinTTL(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)
	ctx := context.Background()
	intent := core.Intent{Action: core.ActionWeather, Params: core.Params{City: "서울"}}

	a.Answer(ctx, intent)
	a.Answer(ctx, intent)

	if got := upstream.weatherCalls.Load(); got != 1 {
		t.Errorf("weather fetches = %d, want exactly 1 within the TTL window", got)
	}
	if got := upstream.geoCalls.Load(); got != 1 {
		t.Errorf("geocode fetches = %d, want exactly 1 (long TTL)", got)
	}
}

func TestGeocodeSharedAcrossOperations(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)
	ctx := context.Background()

	a.Answer(ctx, core.Intent{Action: core.ActionWeather, Params: core.Params{City: "서울"}})
	a.Answer(ctx, core.Intent{Action: core.ActionWeeklyForecast, Params: core.Params{City: "서울"}})

	if got := upstream.geoCalls.Load(); got != 1 {
		t.Errorf("geocode fetches = %d, want 1 — coordinates must not be re-resolved", got)
	}
}

func TestUnknownCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	deps := sources.Deps{Cache: cache.NewMemoryStore(), HTTPClient: server.Client()}
	a := New("test-key", deps)
	a.SetBaseURL(server.URL)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionWeather,
		Params: core.Params{City: "없는도시"},
	})

	if result.Status != core.StatusFailure {
		t.Fatalf("Status = %q, want failure", result.Status)
	}
	if !strings.Contains(result.Response.Text, "없는도시") {
		t.Errorf("failure message %q must name the unresolved city", result.Response.Text)
	}
	if result.Err == nil {
		t.Error("cause must be retained for logging")
	}
}

func TestWeeklyForecastIsTable(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionWeeklyForecast,
		Params: core.Params{City: "서울"},
	})

	if result.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success (err: %v)", result.Status, result.Err)
	}
	if result.Response.Kind != core.ResponseTable {
		t.Fatalf("Kind = %q, want table", result.Response.Kind)
	}
	table := result.Response.Table
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (two forecast days)", len(table.Rows))
	}
	// Midday description wins for a day with several entries.
	if table.Rows[0][1] != "맑음" {
		t.Errorf("day one description = %q, want 맑음", table.Rows[0][1])
	}
}

func TestLocalTimeCachesOnlyOffset(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)
	ctx := context.Background()
	intent := core.Intent{Action: core.ActionTime, Params: core.Params{City: "서울"}}

	first := a.Answer(ctx, intent)
	if first.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success (err: %v)", first.Status, first.Err)
	}
	if !strings.Contains(first.Response.Text, "UTC+9") {
		t.Errorf("response %q missing offset", first.Response.Text)
	}

	a.Answer(ctx, intent)
	if got := upstream.weatherCalls.Load(); got != 1 {
		t.Errorf("weather fetches = %d, want 1 — only the offset is re-read from cache", got)
	}
}

func TestDefaultCity(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)

	result := a.Answer(context.Background(), core.Intent{Action: core.ActionWeather})
	if result.Status != core.StatusSuccess {
		t.Fatalf("Status = %q, want success", result.Status)
	}
	if !strings.Contains(result.Response.Text, defaultCity) {
		t.Errorf("response %q should fall back to %s", result.Response.Text, defaultCity)
	}
}
