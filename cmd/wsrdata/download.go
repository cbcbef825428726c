package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/pipeline"
)

var downloadTargets = []string{"city", "east", "listfile", "station", "station_list"}

type downloadOptions struct {
	target      string
	lat, lon    float64
	radius      float64
	place       string
	from, to    string
	fpath       string
	station     string
	stationList []string
	name        string
}

var downloadOpts downloadOptions

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the roost-window scans of stations and dates",
	Long: `Download every Level II scan inside the morning roost window of each
(station, date) pair. Dates are YYYYMMDD and inclusive.

Targets:
  city          stations within --radius km of --lat/--lon (or a geocoded --place)
  east          every station of the eastern US region
  listfile      pairs read from --fpath, one "STATION YYYY MM DD" per line
  station       a single --station
  station_list  the stations given to --station_list`,
	Example: `  wsrdata download --target station --station KDOX --from 20190502 --to 20190505
  wsrdata download --target city --lat 42.36 --lon -71.06 --radius 150 --from 20190502 --to 20190502
  wsrdata download --target listfile --fpath days.txt`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

func init() {
	downloadOpts.addFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func (o *downloadOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.target, "target", "", "one of "+strings.Join(downloadTargets, ", "))
	f.Float64Var(&o.lat, "lat", 0, "latitude of the search center (city)")
	f.Float64Var(&o.lon, "lon", 0, "longitude of the search center (city)")
	f.Float64Var(&o.radius, "radius", 150, "search radius in kilometers (city)")
	f.StringVar(&o.place, "place", "", "place name to geocode instead of --lat/--lon (city, needs MAPBOX_TOKEN)")
	f.StringVar(&o.from, "from", "", "first date, YYYYMMDD")
	f.StringVar(&o.to, "to", "", "last date, YYYYMMDD")
	f.StringVar(&o.fpath, "fpath", "", "station-day list file (listfile)")
	f.StringVar(&o.station, "station", "", "radar station, e.g. KDOX (station)")
	f.StringSliceVar(&o.stationList, "station_list", nil, "radar stations, e.g. KDOX,KAMX (station_list)")
	f.StringVar(&o.name, "name", "", "batch name for log and failure lists (default derived from the target)")
}

// validate checks flag combinations before any work starts.
func (o *downloadOptions) validate(cmd *cobra.Command) error {
	if !slices.Contains(downloadTargets, o.target) {
		return usagef(cmd, "please specify one of the targets from [%s]", strings.Join(downloadTargets, ", "))
	}
	if o.target != "listfile" && (o.from == "" || o.to == "") {
		return usagef(cmd, "please specify the start date and end date before downloading the radar scans")
	}

	switch o.target {
	case "city":
		latLon := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
		if !latLon && o.place == "" {
			return usagef(cmd, "please specify the latitude and longitude of the city")
		}
		if o.radius <= 0 {
			return usagef(cmd, "--radius must be positive")
		}
	case "listfile":
		if o.fpath == "" {
			return usagef(cmd, "please specify the file path")
		}
	case "station":
		if o.station == "" {
			return usagef(cmd, "please specify the name of the radar station")
		}
	case "station_list":
		if len(o.stationList) == 0 {
			return usagef(cmd, "please specify the name of the radar stations")
		}
	}

	if o.target != "listfile" {
		from, err := domain.ParseDate(o.from)
		if err != nil {
			return usagef(cmd, "--from: %v", err)
		}
		to, err := domain.ParseDate(o.to)
		if err != nil {
			return usagef(cmd, "--to: %v", err)
		}
		if to.Before(from) {
			return usagef(cmd, "--to %s is before --from %s", o.to, o.from)
		}
	}
	return nil
}

// batchName names the batch log and failure lists of a run.
func (o *downloadOptions) batchName() string {
	if o.name != "" {
		return o.name
	}
	switch o.target {
	case "listfile":
		return listName(o.fpath)
	case "station":
		return fmt.Sprintf("%s_%s_%s", strings.ToUpper(o.station), o.from, o.to)
	default:
		return fmt.Sprintf("%s_%s_%s", o.target, o.from, o.to)
	}
}

// stationDays resolves the target into download jobs.
func (o *downloadOptions) stationDays(ctx context.Context, geocoder domain.Geocoder) ([]domain.StationDay, error) {
	if o.target == "listfile" {
		return pipeline.ReadStationDays(o.fpath)
	}

	var codes []string
	switch o.target {
	case "station":
		codes = []string{o.station}
	case "station_list":
		codes = o.stationList
	case "east":
		stations, err := domain.RegionStations("east")
		if err != nil {
			return nil, err
		}
		codes = stationCodes(stations)
	case "city":
		lat, lon := o.lat, o.lon
		if o.place != "" {
			p, err := domain.ResolvePlace(ctx, geocoder, o.place)
			if err != nil {
				return nil, err
			}
			lat, lon = p.Lat, p.Lon
		}
		codes = stationCodes(domain.StationsWithin(lat, lon, o.radius))
		if len(codes) == 0 {
			return nil, fmt.Errorf("no radar station within %.0f km of (%.4f, %.4f)", o.radius, lat, lon)
		}
	}

	from, _ := domain.ParseDate(o.from)
	to, _ := domain.ParseDate(o.to)
	return domain.ExpandStationDays(codes, from, to)
}

func stationCodes(stations []domain.Station) []string {
	codes := make([]string, len(stations))
	for i, s := range stations {
		codes[i] = s.Code
	}
	return codes
}

func runDownload(cmd *cobra.Command, _ []string) error {
	opts := downloadOpts
	if err := opts.validate(cmd); err != nil {
		return err
	}

	a, err := newApp("download")
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	days, err := opts.stationDays(ctx, a.geocoder)
	if err != nil {
		return err
	}

	name := opts.batchName()
	logs := a.logs()
	listName := name
	if opts.target == "listfile" {
		listName = opts.fpath
	}
	batch, err := pipeline.OpenBatchLog(a.logger, logs.Batch(name), listName)
	if err != nil {
		return err
	}
	defer batch.Close()

	fetcher := a.fetcher()
	a.serve(fetcher)
	a.status.SetPhase("download", batch.RunID)

	report := fetcher.FetchDays(ctx, batch, days)
	if err := logs.WriteFetchFailures(name, report); err != nil {
		return err
	}
	a.report("done", batch.RunID, fetchCounts(report))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}
	return nil
}
