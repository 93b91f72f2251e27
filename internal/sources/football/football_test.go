package football

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

const flatStandingsBody = `{
	"competition": {"name": "Premier League"},
	"standings": [
		{"stage": "REGULAR_SEASON", "type": "TOTAL", "table": [
			{"position": 1, "team": {"name": "Arsenal FC"}, "playedGames": 10, "won": 8, "draw": 1, "lost": 1, "goalDifference": 15, "points": 25},
			{"position": 2, "team": {"name": "Liverpool FC"}, "playedGames": 10, "won": 7, "draw": 2, "lost": 1, "goalDifference": 12, "points": 23}
		]},
		{"stage": "REGULAR_SEASON", "type": "HOME", "table": [
			{"position": 1, "team": {"name": "Someone Else"}, "playedGames": 5, "won": 5, "draw": 0, "lost": 0, "points": 15}
		]}
	]
}`

const groupedStandingsBody = `{
	"competition": {"name": "UEFA Champions League"},
	"standings": [
		{"stage": "GROUP_STAGE", "type": "TOTAL", "group": "GROUP_A", "table": [
			{"position": 1, "team": {"name": "FC Bayern München"}, "playedGames": 6, "points": 16}
		]},
		{"stage": "GROUP_STAGE", "type": "TOTAL", "group": "GROUP_B", "table": [
			{"position": 1, "team": {"name": "Real Madrid CF"}, "playedGames": 6, "points": 18}
		]}
	]
}`

const scorersBody = `{
	"competition": {"name": "Premier League"},
	"scorers": [
		{"player": {"name": "Erling Haaland"}, "team": {"name": "Manchester City FC"}, "goals": 14},
		{"player": {"name": "Mohamed Salah"}, "team": {"name": "Liverpool FC"}, "goals": 11}
	]
}`

type fakeUpstream struct {
	calls  atomic.Int32
	server *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		switch {
		case r.URL.Path == "/v4/competitions/PL/standings":
			w.Write([]byte(flatStandingsBody))
		case r.URL.Path == "/v4/competitions/CL/standings":
			w.Write([]byte(groupedStandingsBody))
		case r.URL.Path == "/v4/competitions/PL/scorers":
			w.Write([]byte(scorersBody))
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
	a := New("test-token", deps)
	a.SetBaseURL(upstream.server.URL)
	return a
}

func standingsIntent(league string) core.Intent {
	return core.Intent{Action: core.ActionLeagueStandings, Params: core.Params{League: league}}
}

func TestFlatStandingsTable(t *testing.T) {
	a := newAdapter(t, newFakeUpstream(t))

	result := a.Answer(context.Background(), standingsIntent("epl"))
	if result.Status != core.StatusSuccess {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	table := result.Response.Table
	if got, want := len(table.Header), 7; got != want {
		t.Fatalf("header width = %d, want %d", got, want)
	}
	if got, want := len(table.Rows), 2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
	first := table.Rows[0]
	if first[0] != "1" || first[1] != "Arsenal FC" || first[6] != "25" {
		t.Fatalf("unexpected first row: %v", first)
	}
	// Only the season-total standing feeds the table, never HOME/AWAY splits.
	for _, row := range table.Rows {
		if row[1] == "Someone Else" {
			t.Fatal("HOME standing leaked into the table")
		}
	}
	if table.Footer != "Premier League" {
		t.Fatalf("footer = %q", table.Footer)
	}
}

func TestGroupedCupStandings(t *testing.T) {
	a := newAdapter(t, newFakeUpstream(t))

	result := a.Answer(context.Background(), standingsIntent("챔스"))
	if result.Status == core.StatusSuccess {
		t.Fatal("raw alias must not resolve; classifier normalizes it first")
	}

	result = a.Answer(context.Background(), standingsIntent("ucl"))
	if result.Status != core.StatusSuccess {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	table := result.Response.Table
	if got, want := table.Header[0], "조"; got != want {
		t.Fatalf("grouped table must lead with the group column, got %q", got)
	}
	if got, want := len(table.Rows), 2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
	if table.Rows[0][0] != "A" || table.Rows[1][0] != "B" {
		t.Fatalf("group labels = %q, %q", table.Rows[0][0], table.Rows[1][0])
	}
	if table.Rows[1][2] != "Real Madrid CF" {
		t.Fatalf("unexpected group B row: %v", table.Rows[1])
	}
}

func TestScorersTable(t *testing.T) {
	a := newAdapter(t, newFakeUpstream(t))

	result := a.Answer(context.Background(), core.Intent{
		Action: core.ActionLeagueScorers,
		Params: core.Params{League: "epl"},
	})
	if result.Status != core.StatusSuccess {
		t.Fatalf("status = %v, err = %v", result.Status, result.Err)
	}
	table := result.Response.Table
	if got, want := len(table.Rows), 2; got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}
	if table.Rows[0][1] != "Erling Haaland" || table.Rows[0][3] != "14" {
		t.Fatalf("unexpected top scorer row: %v", table.Rows[0])
	}
	if table.Rows[1][0] != "2" {
		t.Fatalf("rank column = %q, want 2", table.Rows[1][0])
	}
}

func TestCompetitionsCacheSeparately(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)
	ctx := context.Background()

	epl := a.Answer(ctx, standingsIntent("epl"))
	cup := a.Answer(ctx, standingsIntent("ucl"))
	if epl.Status != core.StatusSuccess || cup.Status != core.StatusSuccess {
		t.Fatalf("statuses = %v, %v", epl.Status, cup.Status)
	}
	if got, want := upstream.calls.Load(), int32(2); got != want {
		t.Fatalf("upstream calls = %d, want %d", got, want)
	}
	if len(epl.Response.Table.Header) == len(cup.Response.Table.Header) {
		t.Fatal("flat and grouped tables collided in the cache")
	}
}

func TestStandingsAndScorersCacheSeparately(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)
	ctx := context.Background()

	a.Answer(ctx, standingsIntent("epl"))
	scorers := a.Answer(ctx, core.Intent{Action: core.ActionLeagueScorers, Params: core.Params{League: "epl"}})
	if scorers.Status != core.StatusSuccess {
		t.Fatalf("status = %v, err = %v", scorers.Status, scorers.Err)
	}
	if got, want := upstream.calls.Load(), int32(2); got != want {
		t.Fatalf("upstream calls = %d, want %d", got, want)
	}
	if scorers.Response.Table.Rows[0][1] != "Erling Haaland" {
		t.Fatalf("scorers answered with standings rows: %v", scorers.Response.Table.Rows[0])
	}
}

func TestRepeatWithinTTLServesCache(t *testing.T) {
	upstream := newFakeUpstream(t)
	a := newAdapter(t, upstream)
	ctx := context.Background()

	first := a.Answer(ctx, standingsIntent("epl"))
	second := a.Answer(ctx, standingsIntent("epl"))
	if got, want := upstream.calls.Load(), int32(1); got != want {
		t.Fatalf("upstream calls = %d, want %d", got, want)
	}
	if len(first.Response.Table.Rows) != len(second.Response.Table.Rows) {
		t.Fatal("cached answer differs from the fetched one")
	}
}

func TestUnknownLeagueFails(t *testing.T) {
	a := newAdapter(t, newFakeUpstream(t))

	result := a.Answer(context.Background(), standingsIntent("kleague"))
	if result.Status != core.StatusFailure {
		t.Fatalf("status = %v", result.Status)
	}
	if !strings.Contains(result.Response.Text, "kleague") {
		t.Fatalf("apology must name the league: %q", result.Response.Text)
	}
}

func TestUpstreamOutageFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	deps := sources.Deps{Cache: cache.NewMemoryStore(), HTTPClient: server.Client()}
	a := New("test-token", deps)
	a.SetBaseURL(server.URL)

	result := a.Answer(context.Background(), standingsIntent("epl"))
	if result.Status != core.StatusFailure {
		t.Fatalf("status = %v", result.Status)
	}
	if result.Response.Text == "" {
		t.Fatal("failure must still carry user-facing text")
	}
}
