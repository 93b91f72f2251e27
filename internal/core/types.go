// Package core provides core types and interfaces for the chat gateway.
package core

import "fmt"

// Action identifies what a classified query is asking for.
type Action string

const (
	ActionWeather         Action = "weather"
	ActionTomorrowWeather Action = "tomorrow_weather"
	ActionWeeklyForecast  Action = "weekly_forecast"
	ActionTime            Action = "time"
	ActionDrug            Action = "drug"
	ActionLeagueStandings Action = "league_standings"
	ActionLeagueScorers   Action = "league_scorers"
	ActionArxivSearch     Action = "arxiv_search"
	ActionPubmedSearch    Action = "pubmed_search"
	ActionWebSearch       Action = "web_search"
	ActionCultureEvent    Action = "culture_event"
	ActionPharmacy        Action = "pharmacy"
	ActionHospital        Action = "hospital"
	ActionConversation    Action = "conversation"
)

// Intent is the result of classifying one user query. It is created fresh
// per query and never persisted.
type Intent struct {
	Action Action
	Params Params
}

// Params carries the structured parameters extracted alongside an action.
// Only the fields relevant to the action are populated.
type Params struct {
	City      string
	DaysAhead int
	League    string
	Drug      string
	Query     string
	Page      int
	District  string
}

// ResponseKind discriminates the two response payload shapes.
type ResponseKind string

const (
	ResponseText  ResponseKind = "text"
	ResponseTable ResponseKind = "table"
)

// Table is a header/rows/footer payload. The caller decides how to render it.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	Footer string     `json:"footer,omitempty"`
}

// Response is the tagged union surfaced to callers: either Text or Table is
// set, according to Kind.
type Response struct {
	Kind  ResponseKind `json:"kind"`
	Text  string       `json:"text,omitempty"`
	Table *Table       `json:"table,omitempty"`
}

// TextResponse builds a plain-text response.
func TextResponse(text string) Response {
	return Response{Kind: ResponseText, Text: text}
}

// TableResponse builds a tabular response.
func TableResponse(t Table) Response {
	return Response{Kind: ResponseTable, Table: &t}
}

// ResultStatus describes how an adapter operation concluded.
type ResultStatus string

const (
	// StatusSuccess means the primary path served the response.
	StatusSuccess ResultStatus = "success"
	// StatusDegraded means a fallback path served a same-shape response.
	StatusDegraded ResultStatus = "degraded"
	// StatusFailure means no path could serve; Response holds the
	// user-facing apology, Err the cause for logging.
	StatusFailure ResultStatus = "failure"
)

// FetchResult is the uniform return value of every adapter operation.
// Failures are normal values, never panics or raw errors crossing the
// dispatcher boundary.
type FetchResult struct {
	Status   ResultStatus
	Response Response
	// Note explains a degraded result (which fallback served it).
	Note string
	// Err is the underlying cause, retained for logging only.
	Err error
}

// Success wraps a response served by the primary path.
func Success(resp Response) FetchResult {
	return FetchResult{Status: StatusSuccess, Response: resp}
}

// Degraded wraps a same-shape response served by a fallback path.
func Degraded(resp Response, note string) FetchResult {
	return FetchResult{Status: StatusDegraded, Response: resp, Note: note}
}

// Failure wraps a user-facing failure message with its cause.
func Failure(userMessage string, err error) FetchResult {
	return FetchResult{
		Status:   StatusFailure,
		Response: TextResponse(userMessage),
		Err:      err,
	}
}

// NotFoundMessage formats the standard apology naming the entity that could
// not be resolved.
func NotFoundMessage(entity string) string {
	return fmt.Sprintf("죄송해요, '%s'에 대한 정보를 찾지 못했어요.", entity)
}

// UnavailableMessage formats the standard apology for an unreachable source.
func UnavailableMessage(topic string) string {
	return fmt.Sprintf("죄송해요, 지금은 %s 정보를 가져올 수 없어요. 잠시 후 다시 시도해 주세요.", topic)
}

// GeoLocation is a resolved place name. Coordinates are near-static, so
// adapters cache them with a long TTL and never re-resolve per request.
type GeoLocation struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// HistoryEntry is one role/content pair of prior conversation. The
// dispatcher reads at most the last few entries.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistorySink receives answered queries fire-and-forget. Implementations
// must not block the response path.
type HistorySink interface {
	Save(question string, answer Response, elapsedSeconds float64)
}
