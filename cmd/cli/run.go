package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"peakmotif/adapters/db"
	"peakmotif/adapters/excel"
	"peakmotif/adapters/motifs"
	"peakmotif/adapters/report"
	"peakmotif/adapters/scan"
	"peakmotif/adapters/sequence"
	"peakmotif/adapters/tables"
	"peakmotif/app"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal"
	"peakmotif/internal/config"
	"peakmotif/ports"
)

type runOptions struct {
	peaks      string
	scores     string
	motifs     string
	covariates string
	outDir     string
	xlsx       bool
	report     bool
	save       bool
	progress   bool
	noRevcomp  bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cfg := config.DefaultRunConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Test every motif for association with peak scores",
		Long: `Scan peaks for motifs, derive composition covariates and fit one
logistic regression per motif of hit/non-hit on score, adjusted for the
covariates. Results are ranked and corrected for multiple testing.

Defaults come from PEAKMOTIF_* environment variables (a .env file is read
if present); flags override them.

Example: peakmotif run --peaks peaks.fa.gz --scores scores.tsv --motifs JASPAR.txt --out results --jobs 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			envCfg, err := config.LoadRunConfig()
			if err != nil {
				return err
			}
			merged := overlayFlags(cmd, envCfg, cfg)
			if opts.noRevcomp {
				merged.Revcomp = false
			}
			return runAnalysis(cmd, opts, merged)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.peaks, "peaks", "", "FASTA file of peak sequences (gzip allowed)")
	f.StringVar(&opts.scores, "scores", "", "TSV of peak identifier and score")
	f.StringVar(&opts.motifs, "motifs", "", "motif file, JASPAR or JSON")
	f.StringVar(&opts.covariates, "covariates", "", "optional user covariates, TSV or xlsx")
	f.StringVar(&opts.outDir, "out", ".", "output directory")
	f.BoolVar(&opts.xlsx, "xlsx", false, "also write results.xlsx")
	f.BoolVar(&opts.report, "report", false, "also write report.md and report.html")
	f.BoolVar(&opts.save, "save", false, "store the run in the configured database")
	f.BoolVar(&opts.progress, "progress", true, "show progress bars")
	f.BoolVar(&opts.noRevcomp, "no-revcomp", false, "scan the forward strand only")

	f.StringVar(&cfg.Alphabet, "alphabet", cfg.Alphabet, "sequence alphabet")
	f.Float64Var(&cfg.MaxPctDegenerate, "max-pct-degenerate", cfg.MaxPctDegenerate, "drop peaks with at least this percent of non-alphabet symbols")
	f.Float64Var(&cfg.PValThreshold, "pval", cfg.PValThreshold, "motif hit p-value threshold")
	f.Float64Var(&cfg.Pseudocount, "pseudocount", cfg.Pseudocount, "motif matrix pseudocount")
	f.IntVar(&cfg.MaxK, "max-k", cfg.MaxK, "largest k-mer length used as covariates (0 disables)")
	f.BoolVar(&cfg.UseLength, "use-length", cfg.UseLength, "use peak length as a covariate")
	f.BoolVar(&cfg.UseGC, "use-gc", cfg.UseGC, "use GC ratio as a covariate")
	f.StringVar(&cfg.PAdjMethod, "padj-method", cfg.PAdjMethod, "multiple-testing correction: "+strings.Join(config.PAdjMethods, ", "))
	f.Float64Var(&cfg.PAdjThresh, "padj-thresh", cfg.PAdjThresh, "adjusted p-value significance threshold")
	f.IntVar(&cfg.MinSetSize, "min-set-size", cfg.MinSetSize, "smallest hit-set tested (0 = adaptive)")
	f.IntVar(&cfg.MaxSetSize, "max-set-size", cfg.MaxSetSize, "largest hit-set tested (0 = adaptive)")
	f.IntVar(&cfg.NJobs, "jobs", cfg.NJobs, "parallel workers")
	f.Float64Var(&cfg.PCAVarianceTarget, "pca-variance", cfg.PCAVarianceTarget, "covariate variance retained by PCA")

	for _, name := range []string{"peaks", "scores", "motifs"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// overlayFlags copies explicitly set flags from flagCfg over base
func overlayFlags(cmd *cobra.Command, base, flagCfg config.RunConfig) config.RunConfig {
	set := cmd.Flags().Changed
	if set("alphabet") {
		base.Alphabet = strings.ToUpper(flagCfg.Alphabet)
	}
	if set("max-pct-degenerate") {
		base.MaxPctDegenerate = flagCfg.MaxPctDegenerate
	}
	if set("pval") {
		base.PValThreshold = flagCfg.PValThreshold
	}
	if set("pseudocount") {
		base.Pseudocount = flagCfg.Pseudocount
	}
	if set("max-k") {
		base.MaxK = flagCfg.MaxK
	}
	if set("use-length") {
		base.UseLength = flagCfg.UseLength
	}
	if set("use-gc") {
		base.UseGC = flagCfg.UseGC
	}
	if set("padj-method") {
		base.PAdjMethod = flagCfg.PAdjMethod
	}
	if set("padj-thresh") {
		base.PAdjThresh = flagCfg.PAdjThresh
	}
	if set("min-set-size") {
		base.MinSetSize = flagCfg.MinSetSize
	}
	if set("max-set-size") {
		base.MaxSetSize = flagCfg.MaxSetSize
	}
	if set("jobs") {
		base.NJobs = flagCfg.NJobs
	}
	if set("pca-variance") {
		base.PCAVarianceTarget = flagCfg.PCAVarianceTarget
	}
	return base
}

func runAnalysis(cmd *cobra.Command, opts runOptions, cfg config.RunConfig) error {
	logger := internal.NewDefaultLogger()
	ctx := cmd.Context()

	records, err := sequence.ReadFastaFile(opts.peaks)
	if err != nil {
		return fmt.Errorf("reading peaks: %w", err)
	}
	scores, err := tables.ReadScoresFile(opts.scores)
	if err != nil {
		return fmt.Errorf("reading scores: %w", err)
	}
	motifSet, err := motifs.Load(opts.motifs, cfg.Alphabet)
	if err != nil {
		return fmt.Errorf("reading motifs: %w", err)
	}
	var userCov *enrichment.Table
	if opts.covariates != "" {
		if userCov, err = readCovariates(opts.covariates); err != nil {
			return fmt.Errorf("reading covariates: %w", err)
		}
	}
	logger.WithFields(internal.Fields{
		"records": len(records),
		"scores":  len(scores),
		"motifs":  len(motifSet),
	}).Info("inputs loaded")

	runID := core.NewRunID()
	observer := newBarObserver(app.NewLogObserver(logger, 100), opts.progress)
	defer observer.Close()

	scanner := scan.NewScanner(cfg.PValThreshold, cfg.Pseudocount, cfg.Revcomp, cfg.NJobs)
	scanner.Progress = func(done, total int) {
		observer.MotifProgress(runID, ports.StageScan, done, total)
	}
	svc := app.NewEnrichmentService(scanner, sequence.NewCharacterizer(cfg.Alphabet, cfg.NJobs), observer)

	if opts.save {
		svcCfg, err := config.Load()
		if err != nil {
			return err
		}
		conn, err := openDB(ctx, svcCfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		svc.WithRepository(db.NewResultRepository(conn))
	}

	res, err := svc.Analyze(ctx, app.AnalyzeRequest{
		RunID:          runID,
		Records:        records,
		Scores:         scores,
		Motifs:         motifSet,
		UserCovariates: userCov,
		Config:         cfg,
	})
	if err != nil {
		return err
	}
	observer.Close()

	if err := writeOutputs(opts, res); err != nil {
		return err
	}
	logger.WithFields(internal.Fields{
		"run_id":      res.RunID.String(),
		"tested":      res.Run.MotifsTested,
		"significant": res.Run.Significant,
		"failed":      len(res.Failures),
		"runtime_ms":  res.RuntimeMs,
		"out":         opts.outDir,
	}).Info("run complete")
	return nil
}

func readCovariates(path string) (*enrichment.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return excel.ReadTable(path, "")
	}
	return tables.ReadCovariatesFile(path)
}

func writeOutputs(opts runOptions, res *app.AnalysisResult) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	writers := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"results.tsv", func(f *os.File) error { return tables.WriteResults(f, res.Results) }},
		{"failures.tsv", func(f *os.File) error { return tables.WriteFailures(f, res.Failures) }},
		{"regression_input.tsv", func(f *os.File) error { return tables.WriteRegressionInput(f, res.Input) }},
		{"scan_hits.tsv", func(f *os.File) error { return tables.WriteScanHits(f, res.ScanHits) }},
		{"hit_sets.tsv", func(f *os.File) error { return tables.WriteHitSets(f, res.HitSets) }},
	}
	for _, w := range writers {
		if err := writeFile(filepath.Join(opts.outDir, w.name), w.write); err != nil {
			return fmt.Errorf("writing %s: %w", w.name, err)
		}
	}

	if opts.xlsx {
		wb := excel.Workbook{Run: res.Run, Results: res.Results, Failures: res.Failures}
		if err := excel.Write(filepath.Join(opts.outDir, "results.xlsx"), wb); err != nil {
			return fmt.Errorf("writing results.xlsx: %w", err)
		}
	}
	if opts.report {
		summary := report.Summary{
			Run:           res.Run,
			Results:       res.Results,
			Failures:      res.Failures,
			Skipped:       len(res.Skipped),
			Preprocessing: res.Report,
			Scores:        res.ScoreSummary,
		}
		if err := os.WriteFile(filepath.Join(opts.outDir, "report.md"), report.Markdown(summary), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(opts.outDir, "report.html"), report.HTML(summary), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
