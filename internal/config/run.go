package config

import (
	"fmt"

	"peakmotif/internal/errors"
)

// RunConfig is the complete parameter set for one enrichment run. Every field is
// explicit; nothing is defaulted inside the computational packages.
type RunConfig struct {
	Alphabet          string  `json:"alphabet"`
	MaxPctDegenerate  float64 `json:"max_pct_degenerate"`
	PValThreshold     float64 `json:"pval"`
	Pseudocount       float64 `json:"pseudocount"`
	MaxK              int     `json:"max_k"`
	UseLength         bool    `json:"use_length"`
	UseGC             bool    `json:"use_gc"`
	PAdjMethod        string  `json:"padj_method"`
	PAdjThresh        float64 `json:"padj_thresh"`
	MinSetSize        int     `json:"min_set_size"` // 0 = adaptive
	MaxSetSize        int     `json:"max_set_size"` // 0 = adaptive
	NJobs             int     `json:"n_jobs"`
	Revcomp           bool    `json:"revcomp"`
	PCAVarianceTarget float64 `json:"pca_variance_target"`
}

// Supported multiple-testing correction methods
var PAdjMethods = []string{"fdr_bh", "fdr_by", "bonferroni", "sidak", "holm", "holm-sidak", "simes-hochberg"}

// DefaultRunConfig returns the documented defaults
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Alphabet:          "ACGT",
		MaxPctDegenerate:  50,
		PValThreshold:     0.001,
		Pseudocount:       0.001,
		MaxK:              2,
		UseLength:         false,
		UseGC:             false,
		PAdjMethod:        "fdr_bh",
		PAdjThresh:        0.05,
		NJobs:             1,
		Revcomp:           true,
		PCAVarianceTarget: 0.99,
	}
}

// LoadRunConfig overlays PEAKMOTIF_* environment variables on the defaults
func LoadRunConfig() (RunConfig, error) {
	c := DefaultRunConfig()
	c.Alphabet = getEnvUpper("PEAKMOTIF_ALPHABET", c.Alphabet)
	c.MaxPctDegenerate = getEnvFloatOrDefault("PEAKMOTIF_MAX_PCT_DEGENERATE", c.MaxPctDegenerate)
	c.PValThreshold = getEnvFloatOrDefault("PEAKMOTIF_PVAL", c.PValThreshold)
	c.Pseudocount = getEnvFloatOrDefault("PEAKMOTIF_PSEUDOCOUNT", c.Pseudocount)
	c.MaxK = getEnvIntOrDefault("PEAKMOTIF_MAX_K", c.MaxK)
	c.UseLength = getEnvBoolOrDefault("PEAKMOTIF_USE_LENGTH", c.UseLength)
	c.UseGC = getEnvBoolOrDefault("PEAKMOTIF_USE_GC", c.UseGC)
	c.PAdjMethod = getEnvOrDefault("PEAKMOTIF_PADJ_METHOD", c.PAdjMethod)
	c.PAdjThresh = getEnvFloatOrDefault("PEAKMOTIF_PADJ_THRESH", c.PAdjThresh)
	c.MinSetSize = getEnvIntOrDefault("PEAKMOTIF_MIN_SET_SIZE", c.MinSetSize)
	c.MaxSetSize = getEnvIntOrDefault("PEAKMOTIF_MAX_SET_SIZE", c.MaxSetSize)
	c.NJobs = getEnvIntOrDefault("PEAKMOTIF_N_JOBS", c.NJobs)
	c.Revcomp = getEnvBoolOrDefault("PEAKMOTIF_REVCOMP", c.Revcomp)
	c.PCAVarianceTarget = getEnvFloatOrDefault("PEAKMOTIF_PCA_VARIANCE", c.PCAVarianceTarget)

	if err := c.Validate(); err != nil {
		return RunConfig{}, errors.Wrap(err, "failed to load run configuration")
	}
	return c, nil
}

// Validate fails fast on values no run could use
func (c RunConfig) Validate() error {
	if c.Alphabet == "" {
		return errors.ConfigInvalid("alphabet is empty")
	}
	seen := make(map[rune]bool)
	for _, r := range c.Alphabet {
		if seen[r] {
			return errors.ConfigInvalid(fmt.Sprintf("alphabet repeats symbol %q", r))
		}
		seen[r] = true
	}
	if c.MaxPctDegenerate < 0 || c.MaxPctDegenerate > 100 {
		return errors.ConfigInvalid("max_pct_degenerate must be within [0, 100]")
	}
	if c.PValThreshold <= 0 || c.PValThreshold > 1 {
		return errors.ConfigInvalid("pval must be within (0, 1]")
	}
	if c.Pseudocount < 0 {
		return errors.ConfigInvalid("pseudocount must be non-negative")
	}
	if c.MaxK < 0 {
		return errors.ConfigInvalid("max_k must be non-negative")
	}
	if !c.knownPAdjMethod() {
		return errors.ConfigInvalid(fmt.Sprintf("unknown padj_method %q", c.PAdjMethod))
	}
	if c.PAdjThresh <= 0 || c.PAdjThresh >= 1 {
		return errors.ConfigInvalid("padj_thresh must be within (0, 1)")
	}
	if c.MinSetSize < 0 || c.MaxSetSize < 0 {
		return errors.ConfigInvalid("set-size bounds must be non-negative")
	}
	if c.MinSetSize > 0 && c.MaxSetSize > 0 && c.MinSetSize > c.MaxSetSize {
		return errors.ConfigInvalid("min_set_size exceeds max_set_size")
	}
	if c.NJobs < 1 {
		return errors.ConfigInvalid("n_jobs must be at least 1")
	}
	if c.PCAVarianceTarget <= 0 || c.PCAVarianceTarget > 1 {
		return errors.ConfigInvalid("pca_variance_target must be within (0, 1]")
	}
	return nil
}

func (c RunConfig) knownPAdjMethod() bool {
	for _, m := range PAdjMethods {
		if m == c.PAdjMethod {
			return true
		}
	}
	return false
}

// Params flattens the configuration for fingerprinting and persistence
func (c RunConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"alphabet":            c.Alphabet,
		"max_pct_degenerate":  c.MaxPctDegenerate,
		"pval":                c.PValThreshold,
		"pseudocount":         c.Pseudocount,
		"max_k":               c.MaxK,
		"use_length":          c.UseLength,
		"use_gc":              c.UseGC,
		"padj_method":         c.PAdjMethod,
		"padj_thresh":         c.PAdjThresh,
		"min_set_size":        c.MinSetSize,
		"max_set_size":        c.MaxSetSize,
		"revcomp":             c.Revcomp,
		"pca_variance_target": c.PCAVarianceTarget,
	}
}
