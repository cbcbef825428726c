package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wsrdata/wsrdata/internal/adapter/fsstore"
	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/export"
	"github.com/wsrdata/wsrdata/internal/pipeline"
	"github.com/wsrdata/wsrdata/internal/visualize"
)

var verifyOpts struct {
	lists []string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check downloaded scans against their volume headers",
	Long: `Check that every scan of a definition's splits (or of the given lists)
exists under SCAN_DIR and that its Archive II header names the same station
and date. Exits non-zero when any scan has a problem.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var manifestOpts struct {
	manifest string
	version  string
}

var visualizeOpts struct {
	lists []string
	out   string
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Draw annotated scans of a dataset as PNG panels",
	Long: `Draw reflectivity and radial velocity panels with the annotation boxes of
each scan. Without --lists every split of the manifest is drawn; with
--lists each list file becomes one output directory named after it.`,
	Example: `  wsrdata visualize --version v1.0.0 --lists picks/sheldon-KDOX.txt --out vis`,
	Args:    cobra.NoArgs,
	RunE:    runVisualize,
}

var pickOpts struct {
	exclude []string
	perPair int
	seed    uint32
	out     string
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Sample annotated scans per annotator and station for review",
	Long: `Sample up to --per-pair annotated scans of every annotator-station pair
from a definition's splits and write one list per pair to --out. The same
seed always picks the same scans.`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

var exportOpts struct {
	out    string
	places bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export dataset annotations as a flat Parquet or CSV table",
	Example: `  wsrdata export --version v1.0.0 --out roosts-v1.0.0.parquet
  wsrdata export --manifest datasets/roosts-v1.0.0/roosts-v1.0.0.json --out roosts.csv --places`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var stationsOpts struct {
	region   string
	lat, lon float64
	radius   float64
	place    string
}

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List radar stations of a region or near a location",
	Args:  cobra.NoArgs,
	RunE:  runStations,
}

func init() {
	verifyCmd.Flags().StringVar(&definitionPath, "definition", "", "dataset definition file (YAML)")
	verifyCmd.Flags().StringSliceVar(&verifyOpts.lists, "lists", nil, "scan list files to check instead of a definition")

	for _, c := range []*cobra.Command{visualizeCmd, exportCmd} {
		c.Flags().StringVar(&manifestOpts.manifest, "manifest", "", "manifest file")
		c.Flags().StringVar(&manifestOpts.version, "version", "", "dataset version under DATASET_ROOT (instead of --manifest)")
	}
	visualizeCmd.Flags().StringSliceVar(&visualizeOpts.lists, "lists", nil, "scan list files, one output directory each")
	visualizeCmd.Flags().StringVar(&visualizeOpts.out, "out", "visualizations", "output directory")

	pickCmd.Flags().StringVar(&definitionPath, "definition", "", "dataset definition file (YAML)")
	pickCmd.Flags().StringSliceVar(&pickOpts.exclude, "exclude", nil, "scan list files whose scans are never picked")
	pickCmd.Flags().IntVar(&pickOpts.perPair, "per-pair", visualize.DefaultPerPair, "scans per annotator-station pair")
	pickCmd.Flags().Uint32Var(&pickOpts.seed, "seed", visualize.DefaultPickSeed, "sampling seed")
	pickCmd.Flags().StringVar(&pickOpts.out, "out", "picks", "output directory for the per-pair lists")

	exportCmd.Flags().StringVar(&exportOpts.out, "out", "", "output file, .parquet or .csv")
	exportCmd.Flags().BoolVar(&exportOpts.places, "places", false, "add reverse-geocoded place names (needs MAPBOX_TOKEN)")

	stationsCmd.Flags().StringVar(&stationsOpts.region, "region", "", "named region, e.g. east")
	stationsCmd.Flags().Float64Var(&stationsOpts.lat, "lat", 0, "latitude of the search center")
	stationsCmd.Flags().Float64Var(&stationsOpts.lon, "lon", 0, "longitude of the search center")
	stationsCmd.Flags().Float64Var(&stationsOpts.radius, "radius", 150, "search radius in kilometers")
	stationsCmd.Flags().StringVar(&stationsOpts.place, "place", "", "place name to geocode (needs MAPBOX_TOKEN)")

	rootCmd.AddCommand(verifyCmd, visualizeCmd, pickCmd, exportCmd, stationsCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	if definitionPath == "" && len(verifyOpts.lists) == 0 {
		return usagef(cmd, "please specify a dataset definition or scan lists")
	}
	groups, err := verifyGroups()
	if err != nil {
		return err
	}

	a, err := newApp("verify")
	if err != nil {
		return err
	}
	defer a.close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	var problems int
	for _, g := range groups {
		report := pipeline.Verify(cmd.Context(), a.logger.With("list", g.Name), a.cfg.ScanDir, a.cfg.Workers, g.Scans)
		problems += len(report.Problems)
		for _, f := range report.Problems {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Name, f.Scan, f.Problem, f.Detail)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if problems > 0 {
		return fmt.Errorf("%d scans failed verification", problems)
	}
	return nil
}

func verifyGroups() ([]pipeline.SplitScans, error) {
	if len(verifyOpts.lists) == 0 {
		def, err := domain.LoadDefinition(definitionPath)
		if err != nil {
			return nil, err
		}
		return pipeline.ReadSplits(def)
	}
	groups := make([]pipeline.SplitScans, 0, len(verifyOpts.lists))
	for _, path := range verifyOpts.lists {
		scans, err := pipeline.ReadScanList(path)
		if err != nil {
			return nil, err
		}
		groups = append(groups, pipeline.SplitScans{Name: listName(path), Scans: scans})
	}
	return groups, nil
}

// listName is a list file's base name without extension.
func listName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func loadManifest(a *app) (domain.Manifest, error) {
	path := manifestOpts.manifest
	if path == "" {
		path = a.store().ManifestPath(manifestOpts.version)
	}
	return fsstore.LoadManifest(path)
}

func requireManifest(cmd *cobra.Command) error {
	if manifestOpts.manifest == "" && manifestOpts.version == "" {
		return usagef(cmd, "please specify --manifest or --version")
	}
	return nil
}

func runVisualize(cmd *cobra.Command, _ []string) error {
	if err := requireManifest(cmd); err != nil {
		return err
	}
	a, err := newApp("visualize")
	if err != nil {
		return err
	}
	defer a.close()

	m, err := loadManifest(a)
	if err != nil {
		return err
	}

	groups := visualize.Splits(m)
	if len(visualizeOpts.lists) > 0 {
		groups = make(map[string][]string, len(visualizeOpts.lists))
		for _, path := range visualizeOpts.lists {
			scans, err := pipeline.ReadScanList(path)
			if err != nil {
				return err
			}
			groups[listName(path)] = scans
		}
	}

	report := visualize.New(a.logger).Run(cmd.Context(), m, groups, visualizeOpts.out)
	a.report("done", "", map[string]int{"written": len(report.Written), "failed": len(report.Failed)})
	if len(report.Written) == 0 && len(report.Failed) > 0 {
		return fmt.Errorf("no scan could be visualized (%d failed)", len(report.Failed))
	}
	return cmd.Context().Err()
}

func runPick(cmd *cobra.Command, _ []string) error {
	if definitionPath == "" {
		return usagef(cmd, "please specify the dataset definition file")
	}
	if pickOpts.perPair <= 0 {
		return usagef(cmd, "--per-pair must be positive")
	}
	def, err := domain.LoadDefinition(definitionPath)
	if err != nil {
		return err
	}
	if !def.HasAnnotations() {
		return fmt.Errorf("definition %s has no annotations to pick from", definitionPath)
	}

	splits, err := pipeline.ReadSplits(def)
	if err != nil {
		return err
	}
	dataset := map[string]bool{}
	for _, s := range splits {
		for _, scan := range s.Scans {
			dataset[scan] = true
		}
	}
	exclude := map[string]bool{}
	for _, path := range pickOpts.exclude {
		scans, err := pipeline.ReadScanList(path)
		if err != nil {
			return err
		}
		for _, scan := range scans {
			exclude[scan] = true
		}
	}

	a, err := newApp("pick")
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.store().LoadAnnotations(def.AnnotationPath)
	if err != nil {
		return err
	}
	picks := visualize.PickScans(records, dataset, exclude, pickOpts.perPair, pickOpts.seed)
	total := 0
	for pair, scans := range picks {
		if err := pipeline.WriteScanList(filepath.Join(pickOpts.out, pair+".txt"), scans); err != nil {
			return err
		}
		total += len(scans)
	}
	a.report("done", "", map[string]int{"pairs": len(picks), "scans": total})
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := requireManifest(cmd); err != nil {
		return err
	}
	switch filepath.Ext(exportOpts.out) {
	case ".parquet", ".csv":
	default:
		return usagef(cmd, "please specify an --out file ending in .parquet or .csv")
	}

	a, err := newApp("export")
	if err != nil {
		return err
	}
	defer a.close()

	m, err := loadManifest(a)
	if err != nil {
		return err
	}

	var geocoder domain.Geocoder
	if exportOpts.places {
		if a.geocoder == nil {
			return usagef(cmd, "--places needs MAPBOX_TOKEN")
		}
		geocoder = a.geocoder
	}
	rows, skipped, err := export.New(geocoder, a.logger).Rows(cmd.Context(), m)
	if err != nil {
		return err
	}
	if err := export.WriteFile(exportOpts.out, rows); err != nil {
		return err
	}
	a.report("done", "", map[string]int{"rows": len(rows), "skipped": skipped})
	return nil
}

func runStations(cmd *cobra.Command, _ []string) error {
	o := stationsOpts
	latLon := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
	if o.region == "" && !latLon && o.place == "" {
		return usagef(cmd, "please specify --region, --lat/--lon or --place")
	}

	var stations []domain.Station
	switch {
	case o.region != "":
		var err error
		if stations, err = domain.RegionStations(o.region); err != nil {
			return err
		}
	case o.place != "":
		a, err := newApp("stations")
		if err != nil {
			return err
		}
		defer a.close()
		p, err := domain.ResolvePlace(cmd.Context(), a.geocoder, o.place)
		if err != nil {
			return err
		}
		stations = domain.StationsWithin(p.Lat, p.Lon, o.radius)
	default:
		stations = domain.StationsWithin(o.lat, o.lon, o.radius)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATION\tLAT\tLON")
	for _, s := range stations {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", s.Code, s.Lat, s.Lon)
	}
	return w.Flush()
}
