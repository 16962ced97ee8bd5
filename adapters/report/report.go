// Package report renders a human-readable run summary as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"peakmotif/adapters/stats/preprocess"
	"peakmotif/domain/enrichment"
	"peakmotif/internal/profiling"
)

// DefaultTopN motifs are listed when Summary.TopN is zero
const DefaultTopN = 20

// Summary gathers what the report shows
type Summary struct {
	Run           *enrichment.Run
	Results       []enrichment.MotifResult
	Failures      []enrichment.MotifFailure
	Skipped       int
	Preprocessing *preprocess.Report
	Scores        *profiling.ScoreSummary
	TopN          int
}

// Markdown renders the summary
func Markdown(s Summary) []byte {
	var b bytes.Buffer
	run := s.Run
	if run == nil {
		run = &enrichment.Run{}
	}

	fmt.Fprintf(&b, "# Motif enrichment run %s\n\n", run.ID)
	fmt.Fprintf(&b, "Status: **%s**", run.Status)
	if !run.CreatedAt.IsZero() {
		fmt.Fprintf(&b, ", started %s", run.CreatedAt)
	}
	b.WriteString("\n\n")

	b.WriteString("## Population\n\n")
	b.WriteString("| stage | peaks |\n|---|---:|\n")
	fmt.Fprintf(&b, "| input records | %d |\n", run.TotalPeaks)
	fmt.Fprintf(&b, "| admitted | %d |\n", run.AdmittedPeaks)
	fmt.Fprintf(&b, "| regression | %d |\n\n", run.RegressionPeaks)

	b.WriteString("## Motifs\n\n")
	fmt.Fprintf(&b, "- scanned: %d\n", run.MotifsScanned)
	fmt.Fprintf(&b, "- tested: %d (hit-set size %d to %d)\n", run.MotifsTested, run.MinSetSize, run.MaxSetSize)
	fmt.Fprintf(&b, "- not tested: %d\n", s.Skipped)
	fmt.Fprintf(&b, "- failed: %d\n", len(s.Failures))
	fmt.Fprintf(&b, "- significant: %d\n\n", enrichment.CountSignificant(s.Results))

	if p := s.Preprocessing; p != nil {
		b.WriteString("## Covariates\n\n")
		if len(p.CovariateColumns) == 0 {
			b.WriteString("No covariates; the score is the only predictor.\n\n")
		} else {
			fmt.Fprintf(&b, "%d covariate columns", len(p.CovariateColumns))
			if p.PCAApplied {
				fmt.Fprintf(&b, " reduced to %d principal components explaining %.1f%% of variance (target %.1f%%)",
					p.Components, 100*p.ExplainedVariance, 100*p.VarianceTarget)
			}
			b.WriteString(".\n\n")
		}
	}

	if sc := s.Scores; sc != nil {
		b.WriteString("## Score distribution\n\n")
		b.WriteString("| n | mean | sd | min | median | max | outliers |\n|---:|---:|---:|---:|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| %d | %.4g | %.4g | %.4g | %.4g | %.4g | %d |\n\n",
			sc.N, sc.Mean, sc.StdDev, sc.Min, sc.Median, sc.Max, sc.Outliers)
	}

	topN := s.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(s.Results) > 0 {
		if topN > len(s.Results) {
			topN = len(s.Results)
		}
		fmt.Fprintf(&b, "## Top %d motifs\n\n", topN)
		b.WriteString("| rank | motif | coef | 95% CI | pval | padj | auc | peaks |\n|---:|---|---:|---|---:|---:|---:|---:|\n")
		for i, r := range s.Results[:topN] {
			motif := r.MotifID.String()
			if r.PAdjSig == 1 {
				motif = "**" + motif + "**"
			}
			fmt.Fprintf(&b, "| %d | %s | %.3f | [%.3f, %.3f] | %.3g | %.3g | %.3f | %d (%.1f%%) |\n",
				i+1, motif, r.Coef, r.CILower, r.CIUpper, r.PValue, r.PAdj, r.AUC, r.NumPeaks, r.PercentPeaks)
		}
		b.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		b.WriteString("## Failed fits\n\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.MotifID, f.Reason)
		}
		b.WriteString("\n")
	}

	if run.ErrorMessage != "" {
		fmt.Fprintf(&b, "## Error\n\n%s\n", strings.TrimSpace(run.ErrorMessage))
	}
	return b.Bytes()
}

// HTML renders the summary as a standalone page
func HTML(s Summary) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	title := "Motif enrichment"
	if s.Run != nil {
		title = fmt.Sprintf("Motif enrichment run %s", s.Run.ID)
	}
	r := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(Markdown(s), p, r)
}
