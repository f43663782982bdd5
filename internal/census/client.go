// Package census talks to the Census Data API and the gazetteer files: it
// lists the tracts of a county, resolves tract centroids, and fetches
// tract-level ACS variables as typed rows.
package census

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/fetcher"
	"github.com/sells-group/demographics-cli/internal/geo"
)

// DefaultBaseURL is the Census Data API root.
const DefaultBaseURL = "https://api.census.gov/data"

var (
	// ErrUpstreamUnavailable marks a transport failure or non-success status
	// from a census endpoint.
	ErrUpstreamUnavailable = eris.New("census: upstream unavailable")

	// ErrNoTractsFound marks a county with zero tracts in the dataset.
	ErrNoTractsFound = eris.New("census: no tracts found")
)

// ACS annotation values that stand for missing or suppressed estimates.
var jamValues = map[string]struct{}{
	"-666666666": {},
	"-999999999": {},
	"-888888888": {},
	"-555555555": {},
	"-333333333": {},
	"-222222222": {},
}

// Query describes one tract-level request for every tract in a county.
type Query struct {
	Year    string
	Dataset string
	Get     []string
	County  geo.CountyKey
}

// TractRow is one data row keyed by column name, with the trailing
// geography columns lifted into Tract.
type TractRow struct {
	Tract  geo.TractRef
	Values map[string]string
}

// Value returns the numeric value of a column. Missing columns, empty or
// null cells, non-numeric text, and ACS annotation values all report false.
func (r TractRow) Value(column string) (float64, bool) {
	raw, ok := r.Values[column]
	if !ok {
		return 0, false
	}
	return ParseValue(raw)
}

// ParseValue parses a raw ACS cell.
func ParseValue(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return 0, false
	}
	if _, jam := jamValues[raw]; jam {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Table is a parsed tract-level response.
type Table struct {
	Columns []string
	Rows    []TractRow
}

// Client issues tract-level queries against the Census Data API.
type Client struct {
	fetcher fetcher.Fetcher
	baseURL string
	apiKey  string
}

// NewClient creates a Client. An empty baseURL uses DefaultBaseURL.
func NewClient(f fetcher.Fetcher, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		fetcher: f,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// URL builds the request URL for q.
func (c *Client) URL(q Query) string {
	params := url.Values{}
	params.Set("get", strings.Join(q.Get, ","))
	params.Set("for", "tract:*")
	params.Set("in", "state:"+q.County.StateFIPS+" county:"+q.County.CountyFIPS)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return c.baseURL + "/" + q.Year + "/" + strings.Trim(q.Dataset, "/") + "?" + params.Encode()
}

// Query fetches every tract in q.County. Any transport or status failure,
// or an unparseable body, is reported as ErrUpstreamUnavailable. An empty
// body yields an empty table.
func (c *Client) Query(ctx context.Context, q Query) (*Table, error) {
	rawURL := c.URL(q)
	body, err := c.fetcher.Download(ctx, rawURL)
	if err != nil {
		return nil, upstream(err, "census: query %s %s for %s", q.Year, q.Dataset, q.County)
	}
	defer body.Close() //nolint:errcheck

	rows, err := fetcher.ReadJSONArray[[]string](ctx, body)
	if err != nil {
		return nil, upstream(err, "census: decode %s %s for %s", q.Year, q.Dataset, q.County)
	}

	table, err := parseTable(rows, q.County)
	if err != nil {
		return nil, upstream(err, "census: parse %s %s for %s", q.Year, q.Dataset, q.County)
	}

	zap.L().Debug("census query complete",
		zap.String("url", fetcher.RedactURL(rawURL)),
		zap.Int("rows", len(table.Rows)),
	)
	return table, nil
}

func upstream(err error, format string, args ...any) error {
	args = append(args, err.Error())
	return eris.Wrapf(ErrUpstreamUnavailable, format+": %s", args...)
}

// parseTable converts a header-plus-rows response into typed rows. The
// geography columns (state, county, tract) are located by name.
func parseTable(rows [][]string, county geo.CountyKey) (*Table, error) {
	if len(rows) == 0 {
		return &Table{}, nil
	}
	header := rows[0]
	stateCol, countyCol, tractCol := -1, -1, -1
	columns := make([]string, 0, len(header))
	for i, h := range header {
		switch h {
		case "state":
			stateCol = i
		case "county":
			countyCol = i
		case "tract":
			tractCol = i
		default:
			columns = append(columns, h)
		}
	}
	if tractCol < 0 {
		return nil, eris.New("census: response has no tract column")
	}

	table := &Table{Columns: columns, Rows: make([]TractRow, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		if len(row) < len(header) {
			continue
		}
		ref := geo.TractRef{
			StateFIPS:  county.StateFIPS,
			CountyFIPS: county.CountyFIPS,
			TractID:    row[tractCol],
		}
		if stateCol >= 0 {
			ref.StateFIPS = row[stateCol]
		}
		if countyCol >= 0 {
			ref.CountyFIPS = row[countyCol]
		}
		values := make(map[string]string, len(columns))
		for i, h := range header {
			if i == stateCol || i == countyCol || i == tractCol {
				continue
			}
			values[h] = row[i]
		}
		table.Rows = append(table.Rows, TractRow{Tract: ref, Values: values})
	}
	return table, nil
}
