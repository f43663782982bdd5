package census

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/geo"
)

// DefaultACSDataset is the ACS 5-year detailed tables path.
const DefaultACSDataset = "acs/acs5"

// Catalog lists the tracts of a county, cached per county.
type Catalog struct {
	client  *Client
	year    string
	dataset string
	cache   *countyCache[[]geo.TractRef]
}

// NewCatalog creates a Catalog that reads tract lists from the given ACS
// year. An empty dataset uses DefaultACSDataset.
func NewCatalog(client *Client, year, dataset string) *Catalog {
	if dataset == "" {
		dataset = DefaultACSDataset
	}
	return &Catalog{
		client:  client,
		year:    year,
		dataset: dataset,
		cache:   newCountyCache[[]geo.TractRef]("tracts"),
	}
}

// ListTracts returns every tract in the county, sorted by tract id. It
// fails with ErrUpstreamUnavailable when the API cannot be read and with
// ErrNoTractsFound when the county has no tracts. Both successful outcomes
// are cached; the returned slice is a copy.
func (c *Catalog) ListTracts(ctx context.Context, county geo.CountyKey) ([]geo.TractRef, error) {
	tracts, err := c.cache.get(ctx, county, func(ctx context.Context) ([]geo.TractRef, bool, error) {
		table, err := c.client.Query(ctx, Query{
			Year:    c.year,
			Dataset: c.dataset,
			Get:     []string{"NAME"},
			County:  county,
		})
		if err != nil {
			return nil, false, eris.Wrapf(err, "census: list tracts for %s", county)
		}

		seen := make(map[string]struct{}, len(table.Rows))
		refs := make([]geo.TractRef, 0, len(table.Rows))
		for _, row := range table.Rows {
			if row.Tract.TractID == "" {
				continue
			}
			if _, dup := seen[row.Tract.TractID]; dup {
				continue
			}
			seen[row.Tract.TractID] = struct{}{}
			refs = append(refs, row.Tract)
		}
		slices.SortFunc(refs, func(a, b geo.TractRef) int {
			return strings.Compare(a.TractID, b.TractID)
		})

		zap.L().Info("census: loaded tract catalog",
			zap.String("county", county.String()),
			zap.Int("tracts", len(refs)),
		)
		return refs, true, nil
	})
	if err != nil {
		return nil, err
	}
	if len(tracts) == 0 {
		return nil, eris.Wrapf(ErrNoTractsFound, "census: county %s", county)
	}
	return slices.Clone(tracts), nil
}
