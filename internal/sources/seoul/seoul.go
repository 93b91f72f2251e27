// Package seoul answers municipal queries from the Seoul open-data portal:
// cultural events, pharmacies, and hospitals. The portal is unusual in two
// ways the adapter has to absorb: the API key rides in the URL path rather
// than a query param or header, and every payload is XML with its status
// code inside the body (RESULT/CODE) rather than the HTTP status line.
package seoul

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/pkg/restclient"
	"chatpilot/internal/sources"
)

const (
	providerName = "seoul-opendata"
	baseURL      = "http://openapi.seoul.go.kr:8088"

	municipalTTL = 1800 * time.Second
	maxRows      = 100
	tableRows    = 5
)

const (
	serviceCulture  = "culturalEventInfo"
	servicePharmacy = "TbPharmacyOperateInfo"
	serviceHospital = "TbHospitalInfo"
)

// codeNoData is the in-body status the portal returns for an empty result
// set. Anything other than this and codeOK is treated as an upstream error.
const (
	codeOK     = "INFO-000"
	codeNoData = "INFO-200"
)

// envelope is the common wrapper of every portal payload. Row fields for
// all three services are declared together; each service fills only its own.
type envelope struct {
	Result struct {
		Code    string `xml:"CODE"`
		Message string `xml:"MESSAGE"`
	} `xml:"RESULT"`
	Rows []row `xml:"row"`
}

type row struct {
	// culturalEventInfo
	Title    string `xml:"TITLE"`
	Category string `xml:"CODENAME"`
	Place    string `xml:"PLACE"`
	Date     string `xml:"DATE"`
	Gu       string `xml:"GUNAME"`

	// TbPharmacyOperateInfo / TbHospitalInfo
	Name    string `xml:"DUTYNAME"`
	Address string `xml:"DUTYADDR"`
	Tel     string `xml:"DUTYTEL1"`
}

// Adapter serves culture_event, pharmacy, and hospital.
type Adapter struct {
	deps   sources.Deps
	apiKey string
	client *restclient.Client
}

// New creates the Seoul open-data adapter.
func New(apiKey string, deps sources.Deps) *Adapter {
	cfg := restclient.DefaultConfig(providerName, baseURL)

	a := &Adapter{deps: deps, apiKey: apiKey}
	if deps.HTTPClient != nil {
		a.client = restclient.NewWithHTTPClient(deps.HTTPClient, cfg, nil)
	} else {
		a.client = restclient.New(cfg, nil)
	}
	return a
}

// SetBaseURL points the adapter at a different upstream. Tests use this.
func (a *Adapter) SetBaseURL(u string) {
	a.client.SetBaseURL(u)
}

// Actions implements sources.Adapter.
func (a *Adapter) Actions() []core.Action {
	return []core.Action{core.ActionCultureEvent, core.ActionPharmacy, core.ActionHospital}
}

// Answer implements sources.Adapter.
func (a *Adapter) Answer(ctx context.Context, intent core.Intent) core.FetchResult {
	district := intent.Params.District
	page := intent.Params.Page
	if page < 1 {
		page = 1
	}

	switch intent.Action {
	case core.ActionCultureEvent:
		return a.serve(ctx, "culture_event", serviceCulture, district, page, "문화 행사", formatCulture)
	case core.ActionPharmacy:
		return a.serve(ctx, "pharmacy", servicePharmacy, district, page, "약국", formatDuty("약국"))
	case core.ActionHospital:
		return a.serve(ctx, "hospital", serviceHospital, district, page, "병원", formatDuty("병원"))
	default:
		return core.Failure(core.UnavailableMessage("서울시"), core.NewNotFoundError(providerName, string(intent.Action)))
	}
}

// serve runs the shared flow. District and page are part of the cache key
// but both apply locally: the portal has no district query param, so one
// city-wide fetch per service would otherwise fan out into per-district
// upstream calls it cannot express, and paging at the portal level would
// paginate the unfiltered city-wide list.
func (a *Adapter) serve(ctx context.Context, op, service, district string, page int, topic string, format func([]row) core.Table) core.FetchResult {
	key := cache.Key(op, district, strconv.Itoa(page))
	resp, err := sources.Cached(ctx, a.deps, op, key, municipalTTL, func(ctx context.Context) (core.Response, error) {
		rows, err := a.fetch(ctx, service)
		if err != nil {
			return core.Response{}, err
		}
		rows = filterDistrict(rows, district)
		start := (page - 1) * tableRows
		if start >= len(rows) {
			entity := topic
			if district != "" {
				entity = district + " " + topic
			}
			return core.Response{}, core.NewNotFoundError(providerName, "no rows for "+entity)
		}
		rows = rows[start:]
		if len(rows) > tableRows {
			rows = rows[:tableRows]
		}
		return core.TableResponse(format(rows)), nil
	})
	if err != nil {
		if fe, ok := err.(*core.FetchError); ok && fe.Kind == core.KindNotFound {
			entity := topic
			if district != "" {
				entity = district + " " + topic
			}
			return core.Failure(core.NotFoundMessage(entity), err)
		}
		return core.Failure(core.UnavailableMessage(topic), err)
	}
	return core.Success(resp)
}

// fetch calls /{KEY}/xml/{SERVICE}/1/{maxRows}/ and unwraps the in-body
// status code.
func (a *Adapter) fetch(ctx context.Context, service string) ([]row, error) {
	endpoint := fmt.Sprintf("/%s/xml/%s/1/%d/", a.apiKey, service, maxRows)
	resp, err := a.client.DoRaw(ctx, restclient.Request{Endpoint: endpoint})
	a.deps.Metrics.ObserveFetch(providerName, err != nil)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := xml.Unmarshal(resp.Body, &env); err != nil {
		return nil, core.NewParseError(providerName, "malformed "+service+" payload", err)
	}
	switch env.Result.Code {
	case codeOK:
		return env.Rows, nil
	case codeNoData:
		return nil, nil
	default:
		return nil, core.NewTransientError(providerName, 0, service+": "+env.Result.Code+" "+env.Result.Message, nil)
	}
}

func filterDistrict(rows []row, district string) []row {
	if district == "" {
		return rows
	}
	kept := rows[:0:0]
	for _, r := range rows {
		if r.Gu == district || strings.Contains(r.Address, district) {
			kept = append(kept, r)
		}
	}
	return kept
}

func formatCulture(rows []row) core.Table {
	table := core.Table{
		Header: []string{"행사", "분류", "장소", "일정"},
		Footer: "서울문화포털 제공",
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			orNoData(r.Title), orNoData(r.Category), orNoData(r.Place), orNoData(r.Date),
		})
	}
	return table
}

func formatDuty(kind string) func([]row) core.Table {
	return func(rows []row) core.Table {
		table := core.Table{
			Header: []string{kind, "주소", "전화"},
			Footer: "서울 열린데이터광장 제공",
		}
		for _, r := range rows {
			table.Rows = append(table.Rows, []string{
				orNoData(r.Name), orNoData(r.Address), orNoData(r.Tel),
			})
		}
		return table
	}
}

func orNoData(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "정보 없음"
	}
	return s
}

var _ sources.Adapter = (*Adapter)(nil)
