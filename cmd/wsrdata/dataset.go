package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/pipeline"
)

var definitionPath string

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Download, render and assemble a dataset version",
	Long: `Build the dataset described by a definition file: check the render
versions against earlier builds, download every split scan, render arrays
and dualpol arrays, attach annotations and save
DATASET_ROOT/roosts-<version>/roosts-<version>.json.`,
	Example: `  wsrdata prepare --definition datasets/v1.0.0.yaml`,
	Args:    cobra.NoArgs,
	RunE:    runPrepare,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the split scans of a definition that are already downloaded",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble and save the manifest of a definition from rendered arrays",
	Args:  cobra.NoArgs,
	RunE:  runAssemble,
}

var downloadListOpts struct {
	list string
	name string
}

var downloadListCmd = &cobra.Command{
	Use:   "download-list",
	Short: "Download an explicit list of scans",
	Long: `Download every scan named in a list file (one scan name per line), for
example a split file. Missing scans go to not_s3_logs/<name>.log and other
failures to error_scan_logs/<name>.log under SCAN_LOG_DIR.`,
	Example: `  wsrdata download-list --list splits/v1.0.0/train.txt --name v1.0.0`,
	Args:    cobra.NoArgs,
	RunE:    runDownloadList,
}

func init() {
	for _, c := range []*cobra.Command{prepareCmd, renderCmd, assembleCmd} {
		c.Flags().StringVar(&definitionPath, "definition", "", "dataset definition file (YAML)")
		rootCmd.AddCommand(c)
	}

	downloadListCmd.Flags().StringVar(&downloadListOpts.list, "list", "", "scan list file")
	downloadListCmd.Flags().StringVar(&downloadListOpts.name, "name", "", "batch name (default: list file name)")
	rootCmd.AddCommand(downloadListCmd)
}

func loadDefinition(cmd *cobra.Command) (domain.DatasetDefinition, error) {
	if definitionPath == "" {
		return domain.DatasetDefinition{}, usagef(cmd, "please specify the dataset definition file")
	}
	return domain.LoadDefinition(definitionPath)
}

func (a *app) preparer() *pipeline.Preparer {
	return pipeline.NewPreparer(a.fetcher(), a.renderer(), a.events(), a.store(), a.metrics, a.clock, a.logger,
		pipeline.PrepareConfig{
			ScanDir:     a.cfg.ScanDir,
			Logs:        a.logs(),
			ArrayRoot:   a.cfg.ArrayRoot,
			DualpolRoot: a.cfg.DualpolRoot,
			Workers:     a.cfg.Workers,
		})
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	def, err := loadDefinition(cmd)
	if err != nil {
		return err
	}
	a, err := newApp("prepare")
	if err != nil {
		return err
	}
	defer a.close()

	renderer := a.renderer()
	if err := renderer.CheckReadiness(cmd.Context()); err != nil {
		return err
	}
	a.serve(renderer)
	a.status.SetPhase("prepare", "")

	res, err := a.preparer().Prepare(cmd.Context(), def)
	counts := fetchCounts(res.Download)
	for k, v := range renderCounts(res.Render) {
		counts[k] = v
	}
	counts["annotations"] = res.Assemble.Annotations
	a.report("done", "", counts)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", def.DatasetVersion, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.ManifestPath)
	return nil
}

func runRender(cmd *cobra.Command, _ []string) error {
	def, err := loadDefinition(cmd)
	if err != nil {
		return err
	}
	a, err := newApp("render")
	if err != nil {
		return err
	}
	defer a.close()

	renderer := a.renderer()
	if err := renderer.CheckReadiness(cmd.Context()); err != nil {
		return err
	}
	a.serve(renderer)
	a.status.SetPhase("render", "")

	report, err := a.preparer().Render(cmd.Context(), def)
	a.report("done", "", renderCounts(report))
	if err != nil {
		return fmt.Errorf("render %s: %w", def.DatasetVersion, err)
	}
	return nil
}

func runAssemble(cmd *cobra.Command, _ []string) error {
	def, err := loadDefinition(cmd)
	if err != nil {
		return err
	}
	a, err := newApp("assemble")
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.preparer().Assemble(def)
	if err != nil {
		return fmt.Errorf("assemble %s: %w", def.DatasetVersion, err)
	}
	a.report("done", "", map[string]int{
		"annotations":           res.Assemble.Annotations,
		"unattached":            res.Assemble.Unattached,
		"unknown_scale_factors": len(res.Assemble.UnknownFactors),
	})
	fmt.Fprintln(cmd.OutOrStdout(), res.ManifestPath)
	return nil
}

func runDownloadList(cmd *cobra.Command, _ []string) error {
	opts := downloadListOpts
	if opts.list == "" {
		return usagef(cmd, "please specify the scan list file")
	}
	name := opts.name
	if name == "" {
		name = listName(opts.list)
	}
	scans, err := pipeline.ReadScanList(opts.list)
	if err != nil {
		return err
	}

	a, err := newApp("download-list")
	if err != nil {
		return err
	}
	defer a.close()

	logs := a.logs()
	batch, err := pipeline.OpenBatchLog(a.logger, logs.Batch(name), opts.list)
	if err != nil {
		return err
	}
	defer batch.Close()

	fetcher := a.fetcher()
	a.serve(fetcher)
	a.status.SetPhase("download", batch.RunID)

	report := fetcher.FetchScans(cmd.Context(), batch, scans)
	if err := logs.WriteFetchFailures(name, report); err != nil {
		return err
	}
	a.report("done", batch.RunID, fetchCounts(report))
	return cmd.Context().Err()
}
