package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/demographics-cli/internal/demographics"
	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/internal/report"
)

var (
	radiusAddress       string
	radiusLat           float64
	radiusLng           float64
	radiusList          string
	radiusIncludeTracts bool
	radiusGeoJSON       bool
	radiusXLSX          string
)

var radiusCmd = &cobra.Command{
	Use:   "radius",
	Short: "Compute radius demographics around an address or point",
	Example: `  demographics-cli radius --address "1600 Pennsylvania Ave NW, Washington, DC"
  demographics-cli radius --lat 30.2672 --lng -97.7431 --radii 1,5,10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hasPoint := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng")
		if radiusAddress == "" && !hasPoint {
			return eris.New("radius: --address or --lat/--lng is required")
		}
		if radiusAddress != "" && hasPoint {
			return eris.New("radius: --address and --lat/--lng are mutually exclusive")
		}
		if hasPoint && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng")) {
			return eris.New("radius: both --lat and --lng are required")
		}
		radii, err := parseRadii(radiusList)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEngine(ctx, "radius", radiusIncludeTracts)
		if err != nil {
			return err
		}
		defer env.Close()

		var res *demographics.Result
		if radiusAddress != "" {
			res, err = env.Service.Lookup(ctx, radiusAddress, radii)
		} else {
			res, err = env.Service.LookupPoint(ctx, geo.GeoPoint{Lat: radiusLat, Lng: radiusLng}, radii)
		}
		if err != nil {
			return err
		}
		if radiusXLSX != "" {
			if err := writeWorkbookFile(radiusXLSX, res); err != nil {
				return err
			}
		}
		return writeResult(os.Stdout, res, radiusGeoJSON)
	},
}

// parseRadii parses a comma-separated list of miles. An empty list selects
// the configured defaults.
func parseRadii(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []float64
	for part := range strings.SplitSeq(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "radius: parse radius %q", part)
		}
		if v <= 0 {
			return nil, eris.Errorf("radius: radius must be > 0, got %v", v)
		}
		out = append(out, v)
	}
	return out, nil
}

// writeResult prints the lookup as indented JSON, or only the radius
// circles as a GeoJSON FeatureCollection.
func writeResult(w io.Writer, res *demographics.Result, asGeoJSON bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if asGeoJSON {
		var circles []geo.MapCircle
		if res.Demographics != nil {
			circles = res.Demographics.MapCircles
		}
		return eris.Wrap(enc.Encode(geo.FeatureCollection(circles)), "radius: encode geojson")
	}
	return eris.Wrap(enc.Encode(res), "radius: encode result")
}

// writeWorkbookFile saves the lookup's report as an XLSX workbook at path.
func writeWorkbookFile(path string, res *demographics.Result) error {
	if res.Demographics == nil {
		return eris.New("radius: no demographics to export")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "radius: create workbook")
	}
	if err := report.WriteWorkbook(f, res.Demographics, res.Card); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "radius: close workbook")
}

func init() {
	radiusCmd.Flags().StringVar(&radiusAddress, "address", "", "street address to geocode")
	radiusCmd.Flags().Float64Var(&radiusLat, "lat", 0, "center latitude")
	radiusCmd.Flags().Float64Var(&radiusLng, "lng", 0, "center longitude")
	radiusCmd.Flags().StringVar(&radiusList, "radii", "", "comma-separated radii in miles (default from config)")
	radiusCmd.Flags().BoolVar(&radiusIncludeTracts, "include-tracts", false, "include the selected tracts per radius")
	radiusCmd.Flags().BoolVar(&radiusGeoJSON, "geojson", false, "print only the radius circles as GeoJSON")
	radiusCmd.Flags().StringVar(&radiusXLSX, "xlsx", "", "also save the report as an XLSX workbook at this path")
	rootCmd.AddCommand(radiusCmd)
}
