// Package weather answers weather, forecast, and local-time queries from
// OpenWeatherMap. City names are geocoded once and cached for a month;
// the weather itself is volatile and cached for minutes.
package weather

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

const (
	providerName = "openweathermap"
	baseURL      = "https://api.openweathermap.org"

	defaultCity = "서울"

	// noData is the sentinel for any field the upstream omitted.
	noData = "정보 없음"

	currentTTL  = 600 * time.Second
	forecastTTL = 1800 * time.Second
	geoTTL      = 30 * 24 * time.Hour
	tzTTL       = 24 * time.Hour
)

// Adapter serves weather, tomorrow_weather, weekly_forecast, and time.
type Adapter struct {
	deps   sources.Deps
	client *restclient.Client
	apiKey string
}

// New creates the weather adapter.
func New(apiKey string, deps sources.Deps) *Adapter {
	cfg := restclient.DefaultConfig(providerName, baseURL)
	cfg.Timeout = 5 * time.Second

	var client *restclient.Client
	if deps.HTTPClient != nil {
		client = restclient.NewWithHTTPClient(deps.HTTPClient, cfg, nil)
	} else {
		client = restclient.New(cfg, nil)
	}
	return &Adapter{deps: deps, client: client, apiKey: apiKey}
}

// SetBaseURL points the adapter at a different upstream. Tests use this.
func (a *Adapter) SetBaseURL(u string) {
	a.client.SetBaseURL(u)
}

// Actions implements sources.Adapter.
func (a *Adapter) Actions() []core.Action {
	return []core.Action{
		core.ActionWeather,
		core.ActionTomorrowWeather,
		core.ActionWeeklyForecast,
		core.ActionTime,
	}
}

// Answer implements sources.Adapter.
func (a *Adapter) Answer(ctx context.Context, intent core.Intent) core.FetchResult {
	city := intent.Params.City
	if city == "" {
		city = defaultCity
	}

	switch intent.Action {
	case core.ActionWeather:
		return a.current(ctx, city)
	case core.ActionTomorrowWeather:
		days := intent.Params.DaysAhead
		if days < 1 {
			days = 1
		}
		return a.forecast(ctx, city, days)
	case core.ActionWeeklyForecast:
		return a.weekly(ctx, city)
	case core.ActionTime:
		return a.localTime(ctx, city)
	default:
		return core.Failure(core.UnavailableMessage("날씨"), core.NewNotFoundError(providerName, string(intent.Action)))
	}
}

// geocode resolves a city name to coordinates, cached with a long TTL since
// coordinates are near-static. Downstream calls must never re-resolve per
// request.
func (a *Adapter) geocode(ctx context.Context, city string) (core.GeoLocation, error) {
	key := cache.Key("geo", city)

	var loc core.GeoLocation
	if found, err := a.deps.Cache.Get(ctx, key, &loc); err == nil && found {
		a.deps.Metrics.ObserveCacheHit("geo")
		return loc, nil
	}
	a.deps.Metrics.ObserveCacheMiss("geo")

	query := url.Values{
		"q":     {city},
		"limit": {"1"},
		"appid": {a.apiKey},
	}
	resp, err := a.client.DoRaw(ctx, restclient.Request{Endpoint: "/geo/1.0/direct", Query: query})
	a.deps.Metrics.ObserveFetch(providerName, err != nil)
	if err != nil {
		return core.GeoLocation{}, err
	}

	first := gjson.GetBytes(resp.Body, "0")
	if !first.Exists() {
		return core.GeoLocation{}, core.NewNotFoundError(providerName, "no geocoding match for "+city)
	}

	loc = core.GeoLocation{
		Name:    first.Get("name").String(),
		Country: first.Get("country").String(),
		Lat:     first.Get("lat").Float(),
		Lon:     first.Get("lon").Float(),
	}
	if loc.Name == "" {
		loc.Name = city
	}
	_ = a.deps.Cache.Set(ctx, key, loc, geoTTL)
	return loc, nil
}

func (a *Adapter) current(ctx context.Context, city string) core.FetchResult {
	key := cache.Key("weather", city)
	resp, err := sources.Cached(ctx, a.deps, "weather", key, currentTTL, func(ctx context.Context) (core.Response, error) {
		loc, err := a.geocode(ctx, city)
		if err != nil {
			return core.Response{}, err
		}
		body, err := a.fetchWeather(ctx, loc)
		if err != nil {
			return core.Response{}, err
		}
		return core.TextResponse(formatCurrent(city, body)), nil
	})
	return a.wrap(resp, err, city, "날씨")
}

func (a *Adapter) forecast(ctx context.Context, city string, daysAhead int) core.FetchResult {
	key := cache.Key("forecast", city, fmt.Sprintf("%d", daysAhead))
	resp, err := sources.Cached(ctx, a.deps, "forecast", key, forecastTTL, func(ctx context.Context) (core.Response, error) {
		loc, err := a.geocode(ctx, city)
		if err != nil {
			return core.Response{}, err
		}
		body, err := a.fetchForecast(ctx, loc)
		if err != nil {
			return core.Response{}, err
		}
		target := time.Now().UTC().AddDate(0, 0, daysAhead).Format(time.DateOnly)
		text, ok := formatDayForecast(city, body, target, daysAhead)
		if !ok {
			return core.Response{}, core.NewNotFoundError(providerName, "forecast horizon exceeded for "+city)
		}
		return core.TextResponse(text), nil
	})
	return a.wrap(resp, err, city, "예보")
}

func (a *Adapter) weekly(ctx context.Context, city string) core.FetchResult {
	key := cache.Key("weekly_forecast", city)
	resp, err := sources.Cached(ctx, a.deps, "weekly_forecast", key, forecastTTL, func(ctx context.Context) (core.Response, error) {
		loc, err := a.geocode(ctx, city)
		if err != nil {
			return core.Response{}, err
		}
		body, err := a.fetchForecast(ctx, loc)
		if err != nil {
			return core.Response{}, err
		}
		return core.TableResponse(formatWeekly(city, body)), nil
	})
	return a.wrap(resp, err, city, "주간 예보")
}

// localTime answers clock requests. Only the timezone offset is cached —
// the time itself is computed fresh on every call.
func (a *Adapter) localTime(ctx context.Context, city string) core.FetchResult {
	key := cache.Key("tz", city)

	var offsetSeconds int64
	found, err := a.deps.Cache.Get(ctx, key, &offsetSeconds)
	if err != nil || !found {
		a.deps.Metrics.ObserveCacheMiss("tz")
		loc, gerr := a.geocode(ctx, city)
		if gerr != nil {
			return a.wrap(core.Response{}, gerr, city, "시간")
		}
		body, ferr := a.fetchWeather(ctx, loc)
		if ferr != nil {
			return a.wrap(core.Response{}, ferr, city, "시간")
		}
		offsetSeconds = gjson.GetBytes(body, "timezone").Int()
		_ = a.deps.Cache.Set(ctx, key, offsetSeconds, tzTTL)
	} else {
		a.deps.Metrics.ObserveCacheHit("tz")
	}

	now := time.Now().UTC().Add(time.Duration(offsetSeconds) * time.Second)
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	text := fmt.Sprintf("%s 현재 시각은 %s (UTC%s%d) 입니다.",
		city, now.Format("15시 04분"), sign, offsetSeconds/3600)
	return core.Success(core.TextResponse(text))
}

func (a *Adapter) fetchWeather(ctx context.Context, loc core.GeoLocation) ([]byte, error) {
	query := url.Values{
		"lat":   {fmt.Sprintf("%.4f", loc.Lat)},
		"lon":   {fmt.Sprintf("%.4f", loc.Lon)},
		"appid": {a.apiKey},
		"units": {"metric"},
		"lang":  {"kr"},
	}
	resp, err := a.client.DoRaw(ctx, restclient.Request{Endpoint: "/data/2.5/weather", Query: query})
	a.deps.Metrics.ObserveFetch(providerName, err != nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *Adapter) fetchForecast(ctx context.Context, loc core.GeoLocation) ([]byte, error) {
	query := url.Values{
		"lat":   {fmt.Sprintf("%.4f", loc.Lat)},
		"lon":   {fmt.Sprintf("%.4f", loc.Lon)},
		"appid": {a.apiKey},
		"units": {"metric"},
		"lang":  {"kr"},
	}
	resp, err := a.client.DoRaw(ctx, restclient.Request{Endpoint: "/data/2.5/forecast", Query: query})
	a.deps.Metrics.ObserveFetch(providerName, err != nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// wrap converts a fetch outcome into the uniform FetchResult. There is no
// same-shape fallback for weather; failures surface as the apology.
func (a *Adapter) wrap(resp core.Response, err error, city, topic string) core.FetchResult {
	if err == nil {
		return core.Success(resp)
	}
	if fe, ok := err.(*core.FetchError); ok && fe.Kind == core.KindNotFound {
		return core.Failure(core.NotFoundMessage(city), err)
	}
	return core.Failure(core.UnavailableMessage(topic), err)
}

func formatCurrent(city string, body []byte) string {
	desc := stringOr(gjson.GetBytes(body, "weather.0.description"), noData)
	temp := numberOr(gjson.GetBytes(body, "main.temp"), noData, "%.1f°C")
	feels := numberOr(gjson.GetBytes(body, "main.feels_like"), noData, "%.1f°C")
	humidity := numberOr(gjson.GetBytes(body, "main.humidity"), noData, "%.0f%%")
	wind := numberOr(gjson.GetBytes(body, "wind.speed"), noData, "%.1fm/s")

	return fmt.Sprintf("%s 현재 날씨: %s, 기온 %s (체감 %s), 습도 %s, 바람 %s",
		city, desc, temp, feels, humidity, wind)
}

// formatDayForecast summarizes the 3-hourly entries of one calendar day.
func formatDayForecast(city string, body []byte, targetDate string, daysAhead int) (string, bool) {
	var temps []float64
	desc := noData

	gjson.GetBytes(body, "list").ForEach(func(_, item gjson.Result) bool {
		dt := item.Get("dt_txt").String()
		if !strings.HasPrefix(dt, targetDate) {
			return true
		}
		if t := item.Get("main.temp"); t.Exists() {
			temps = append(temps, t.Float())
		}
		// Prefer the midday entry's description.
		if strings.Contains(dt, "12:00") || desc == noData {
			if d := item.Get("weather.0.description"); d.Exists() {
				desc = d.String()
			}
		}
		return true
	})

	if len(temps) == 0 {
		return "", false
	}

	minT, maxT := temps[0], temps[0]
	for _, t := range temps[1:] {
		if t < minT {
			minT = t
		}
		if t > maxT {
			maxT = t
		}
	}

	dayWord := "내일"
	if daysAhead >= 2 {
		dayWord = "모레"
	}
	return fmt.Sprintf("%s %s 날씨: %s, 최저 %.1f°C / 최고 %.1f°C",
		city, dayWord, desc, minT, maxT), true
}

// formatWeekly groups the forecast by calendar day into a table.
func formatWeekly(city string, body []byte) core.Table {
	type day struct {
		date string
		min  float64
		max  float64
		desc string
	}
	var order []string
	days := make(map[string]*day)

	gjson.GetBytes(body, "list").ForEach(func(_, item gjson.Result) bool {
		dt := item.Get("dt_txt").String()
		if len(dt) < 10 {
			return true
		}
		date := dt[:10]
		t := item.Get("main.temp")
		if !t.Exists() {
			return true
		}
		d, ok := days[date]
		if !ok {
			d = &day{date: date, min: t.Float(), max: t.Float(), desc: noData}
			days[date] = d
			order = append(order, date)
		}
		if t.Float() < d.min {
			d.min = t.Float()
		}
		if t.Float() > d.max {
			d.max = t.Float()
		}
		if strings.Contains(dt, "12:00") || d.desc == noData {
			if w := item.Get("weather.0.description"); w.Exists() {
				d.desc = w.String()
			}
		}
		return true
	})

	sort.Strings(order)
	table := core.Table{
		Header: []string{"날짜", "날씨", "최저", "최고"},
		Footer: city + " 주간 예보",
	}
	for _, date := range order {
		d := days[date]
		table.Rows = append(table.Rows, []string{
			d.date,
			d.desc,
			fmt.Sprintf("%.1f°C", d.min),
			fmt.Sprintf("%.1f°C", d.max),
		})
	}
	return table
}

func stringOr(r gjson.Result, fallback string) string {
	if !r.Exists() || r.String() == "" {
		return fallback
	}
	return r.String()
}

func numberOr(r gjson.Result, fallback, format string) string {
	if !r.Exists() {
		return fallback
	}
	return fmt.Sprintf(format, r.Float())
}
