// Package radius selects the census tracts around a point for a set of
// radii, aggregates their ACS variables for two years, and derives growth.
package radius

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/demographics-cli/internal/census"
	"github.com/sells-group/demographics-cli/internal/geo"
)

// BufferFactor widens the inclusion radius to absorb centroid-vs-boundary error.
const BufferFactor = 1.1

// SelectionMethod records which path picked a radius's tracts.
type SelectionMethod string

// Selection methods.
const (
	MethodCentroid    SelectionMethod = "centroid"
	MethodApproximate SelectionMethod = "approximate"
)

// TractLocator returns the tract containing a point.
type TractLocator interface {
	TractAt(ctx context.Context, p geo.GeoPoint) (geo.TractRef, error)
}

// Selection is the outcome of selecting tracts for one radius.
type Selection struct {
	Tracts   []geo.SelectedTract
	Method   SelectionMethod
	Warnings []string
}

// WithinRadiusCount returns the number of tracts whose centroid lies inside
// the unbuffered radius.
func (s Selection) WithinRadiusCount() int {
	n := 0
	for _, t := range s.Tracts {
		if t.WithinRadius {
			n++
		}
	}
	return n
}

// Selector picks tracts for a radius from a county catalog.
type Selector struct {
	locator TractLocator
}

// NewSelector creates a Selector. locator may be nil, in which case the
// approximation path always anchors on the lowest tract id.
func NewSelector(locator TractLocator) *Selector {
	return &Selector{locator: locator}
}

// SelectTracts chooses tracts from catalog for one radius around center.
// With centroids it keeps every tract within BufferFactor*radius, sorted by
// distance. Without centroids it falls back to a deterministic id-distance
// ranking and flags every tract as approximated. An empty catalog yields an
// empty selection.
func (s *Selector) SelectTracts(ctx context.Context, catalog []geo.TractRef, centroids census.CentroidSet, center geo.GeoPoint, radiusMiles float64) Selection {
	if len(catalog) == 0 {
		return Selection{Method: MethodCentroid}
	}
	if !centroids.Empty() {
		return Selection{Tracts: selectByCentroid(catalog, centroids.Points, center, radiusMiles), Method: MethodCentroid}
	}

	sel := Selection{Method: MethodApproximate}
	anchor, warn := s.anchorTract(ctx, catalog, center)
	if warn != "" {
		sel.Warnings = append(sel.Warnings, warn)
	}
	sel.Tracts = approximate(catalog, anchor, radiusMiles)
	return sel
}

func selectByCentroid(catalog []geo.TractRef, points map[string]geo.GeoPoint, center geo.GeoPoint, radiusMiles float64) []geo.SelectedTract {
	limit := radiusMiles * BufferFactor
	var out []geo.SelectedTract
	for _, ref := range catalog {
		pt, ok := points[ref.TractID]
		if !ok {
			continue
		}
		d := geo.DistanceMiles(center, pt)
		if d > limit {
			continue
		}
		out = append(out, geo.SelectedTract{
			TractRef:      ref,
			Point:         &pt,
			DistanceMiles: d,
			WithinRadius:  d <= radiusMiles,
		})
	}
	slices.SortStableFunc(out, func(a, b geo.SelectedTract) int {
		if a.DistanceMiles != b.DistanceMiles {
			if a.DistanceMiles < b.DistanceMiles {
				return -1
			}
			return 1
		}
		return strings.Compare(a.TractID, b.TractID)
	})
	return out
}

// anchorTract resolves the tract containing center. When that fails, or the
// tract is outside the catalog's county, the lowest catalog tract id anchors
// the ranking and a warning is returned.
func (s *Selector) anchorTract(ctx context.Context, catalog []geo.TractRef, center geo.GeoPoint) (string, string) {
	lowest := catalog[0].TractID
	for _, ref := range catalog[1:] {
		if ref.TractID < lowest {
			lowest = ref.TractID
		}
	}
	if s.locator == nil {
		return lowest, "no tract locator configured; approximation anchored on lowest tract id"
	}

	ref, err := s.locator.TractAt(ctx, center)
	if err != nil {
		zap.L().Warn("radius: center tract lookup failed", zap.Error(err))
		return lowest, "center tract lookup failed; approximation anchored on lowest tract id"
	}
	if ref.County() != catalog[0].County() {
		return lowest, "center tract is outside the county; approximation anchored on lowest tract id"
	}
	return ref.TractID, ""
}

// approximateCount returns how many tracts the approximation path selects
// for a radius, given the county's tract count.
func approximateCount(radiusMiles float64, total int) int {
	var n int
	switch radiusMiles {
	case 1:
		n = min(max(3, total/50), 10)
	case 3:
		n = min(max(10, total/10), 50)
	case 5:
		n = min(max(20, total/3), 150)
	default:
		n = 20
	}
	return min(n, total)
}

// tractNumber parses a tract id as a decimal. Ids like "0301.02" and
// "030102" both parse; anything else reports false.
func tractNumber(id string) (float64, bool) {
	if id == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(id, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func approximate(catalog []geo.TractRef, anchor string, radiusMiles float64) []geo.SelectedTract {
	anchorNum, anchorOK := tractNumber(anchor)

	type ranked struct {
		ref    geo.TractRef
		dist   float64
		parsed bool
	}
	candidates := make([]ranked, len(catalog))
	for i, ref := range catalog {
		n, ok := tractNumber(ref.TractID)
		r := ranked{ref: ref, parsed: ok && anchorOK}
		if r.parsed {
			r.dist = math.Abs(n - anchorNum)
		}
		candidates[i] = r
	}
	slices.SortStableFunc(candidates, func(a, b ranked) int {
		switch {
		case a.parsed && !b.parsed:
			return -1
		case !a.parsed && b.parsed:
			return 1
		case a.parsed && a.dist != b.dist:
			if a.dist < b.dist {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ref.TractID, b.ref.TractID)
	})

	n := approximateCount(radiusMiles, len(catalog))
	maxDist := 0.9 * radiusMiles
	out := make([]geo.SelectedTract, n)
	for i := range n {
		d := 0.0
		if n > 1 {
			d = maxDist * float64(i) / float64(n-1)
		}
		out[i] = geo.SelectedTract{
			TractRef:      candidates[i].ref,
			DistanceMiles: d,
			WithinRadius:  true,
			Approximated:  true,
		}
	}
	return out
}
