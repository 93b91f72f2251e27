// Package football answers league standings and top-scorer queries from
// football-data.org. The continental cup is special-cased: its standings
// come grouped by stage rather than as one flat table, so the adapter
// branches on competition identity before formatting, and the competition
// id is part of every cache key so the two shapes never collide.
package football

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

const (
	providerName = "football-data"
	baseURL      = "https://api.football-data.org"

	noData = "정보 없음"

	standingsTTL = 3600 * time.Second
)

// competitionCodes maps the classifier's normalized league codes to
// football-data.org competition identifiers.
var competitionCodes = map[string]string{
	"epl":        "PL",
	"laliga":     "PD",
	"bundesliga": "BL1",
	"seriea":     "SA",
	"ligue1":     "FL1",
	"ucl":        "CL",
}

// continentalCup is the competition whose standings are grouped by stage.
const continentalCup = "CL"

// Adapter serves league_standings and league_scorers.
type Adapter struct {
	deps   sources.Deps
	client *restclient.Client
}

// New creates the football adapter. The API token travels in the
// X-Auth-Token header.
func New(apiToken string, deps sources.Deps) *Adapter {
	cfg := restclient.DefaultConfig(providerName, baseURL)
	cfg.Timeout = 5 * time.Second

	setter := func(req *http.Request) {
		req.Header.Set("X-Auth-Token", apiToken)
	}

	a := &Adapter{deps: deps}
	if deps.HTTPClient != nil {
		a.client = restclient.NewWithHTTPClient(deps.HTTPClient, cfg, setter)
	} else {
		a.client = restclient.New(cfg, setter)
	}
	return a
}

// SetBaseURL points the adapter at a different upstream. Tests use this.
func (a *Adapter) SetBaseURL(u string) {
	a.client.SetBaseURL(u)
}

// Actions implements sources.Adapter.
func (a *Adapter) Actions() []core.Action {
	return []core.Action{core.ActionLeagueStandings, core.ActionLeagueScorers}
}

// Answer implements sources.Adapter.
func (a *Adapter) Answer(ctx context.Context, intent core.Intent) core.FetchResult {
	code, ok := competitionCodes[intent.Params.League]
	if !ok {
		return core.Failure(core.NotFoundMessage(intent.Params.League), core.NewNotFoundError(providerName, "unknown league "+intent.Params.League))
	}

	switch intent.Action {
	case core.ActionLeagueStandings:
		return a.standings(ctx, code)
	case core.ActionLeagueScorers:
		return a.scorers(ctx, code)
	default:
		return core.Failure(core.UnavailableMessage("축구"), core.NewNotFoundError(providerName, string(intent.Action)))
	}
}

func (a *Adapter) standings(ctx context.Context, code string) core.FetchResult {
	key := cache.Key("league_standings", code)
	resp, err := sources.Cached(ctx, a.deps, "league_standings", key, standingsTTL, func(ctx context.Context) (core.Response, error) {
		body, err := a.fetch(ctx, "/v4/competitions/"+code+"/standings")
		if err != nil {
			return core.Response{}, err
		}
		// The shape branch happens before caching: a grouped cup table
		// and a flat league table must never share an entry.
		if code == continentalCup {
			return core.TableResponse(formatGroupedStandings(body)), nil
		}
		return core.TableResponse(formatFlatStandings(body)), nil
	})
	if err != nil {
		return core.Failure(core.UnavailableMessage("리그 순위"), err)
	}
	return core.Success(resp)
}

func (a *Adapter) scorers(ctx context.Context, code string) core.FetchResult {
	key := cache.Key("league_scorers", code)
	resp, err := sources.Cached(ctx, a.deps, "league_scorers", key, standingsTTL, func(ctx context.Context) (core.Response, error) {
		body, err := a.fetch(ctx, "/v4/competitions/"+code+"/scorers")
		if err != nil {
			return core.Response{}, err
		}
		return core.TableResponse(formatScorers(body)), nil
	})
	if err != nil {
		return core.Failure(core.UnavailableMessage("득점 순위"), err)
	}
	return core.Success(resp)
}

func (a *Adapter) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := a.client.DoRaw(ctx, restclient.Request{Endpoint: endpoint})
	a.deps.Metrics.ObserveFetch(providerName, err != nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// formatFlatStandings renders the season-total table of a domestic league.
func formatFlatStandings(body []byte) core.Table {
	table := core.Table{
		Header: []string{"순위", "팀", "경기", "승", "무", "패", "승점"},
		Footer: stringOr(gjson.GetBytes(body, "competition.name"), noData),
	}

	gjson.GetBytes(body, "standings").ForEach(func(_, standing gjson.Result) bool {
		if standing.Get("type").String() != "TOTAL" {
			return true
		}
		standing.Get("table").ForEach(func(_, row gjson.Result) bool {
			table.Rows = append(table.Rows, []string{
				row.Get("position").String(),
				stringOr(row.Get("team.name"), noData),
				row.Get("playedGames").String(),
				row.Get("won").String(),
				row.Get("draw").String(),
				row.Get("lost").String(),
				row.Get("points").String(),
			})
			return true
		})
		return false // flat leagues have exactly one TOTAL standing
	})
	return table
}

// formatGroupedStandings renders the continental cup, one section of rows
// per group, with the group label as an extra leading column.
func formatGroupedStandings(body []byte) core.Table {
	table := core.Table{
		Header: []string{"조", "순위", "팀", "경기", "승점"},
		Footer: stringOr(gjson.GetBytes(body, "competition.name"), noData),
	}

	gjson.GetBytes(body, "standings").ForEach(func(_, standing gjson.Result) bool {
		if standing.Get("type").String() != "TOTAL" {
			return true
		}
		group := strings.TrimPrefix(standing.Get("group").String(), "GROUP_")
		if group == "" {
			group = stringOr(standing.Get("stage"), noData)
		}
		standing.Get("table").ForEach(func(_, row gjson.Result) bool {
			table.Rows = append(table.Rows, []string{
				group,
				row.Get("position").String(),
				stringOr(row.Get("team.name"), noData),
				row.Get("playedGames").String(),
				row.Get("points").String(),
			})
			return true
		})
		return true // the cup has one standing per group
	})
	return table
}

func formatScorers(body []byte) core.Table {
	table := core.Table{
		Header: []string{"순위", "선수", "팀", "득점"},
		Footer: stringOr(gjson.GetBytes(body, "competition.name"), noData),
	}

	rank := 0
	gjson.GetBytes(body, "scorers").ForEach(func(_, scorer gjson.Result) bool {
		rank++
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("%d", rank),
			stringOr(scorer.Get("player.name"), noData),
			stringOr(scorer.Get("team.name"), noData),
			scorer.Get("goals").String(),
		})
		return true
	})
	return table
}

func stringOr(r gjson.Result, fallback string) string {
	s := strings.TrimSpace(r.String())
	if s == "" {
		return fallback
	}
	return s
}

var _ sources.Adapter = (*Adapter)(nil)
