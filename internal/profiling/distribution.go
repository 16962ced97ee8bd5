// Package profiling summarizes the distribution of peak scores for run
// reports.
package profiling

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ScoreSummary describes a score distribution
type ScoreSummary struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Q25      float64 `json:"q25"`
	Median   float64 `json:"median"`
	Q75      float64 `json:"q75"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"` // excess
	Outliers int     `json:"outliers"`
	// NormalityP is the Jarque-Bera p-value
	NormalityP float64 `json:"normality_p"`
}

// Summarize computes a ScoreSummary. At least two values are required.
func Summarize(data []float64) (ScoreSummary, error) {
	s := ScoreSummary{N: len(data)}
	if len(data) < 2 {
		return s, fmt.Errorf("need at least 2 scores, have %d", len(data))
	}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.StdDev, err = stats.StandardDeviationSample(data); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.Q25, err = stats.PercentileNearestRank(data, 25); err != nil {
		return s, err
	}
	if s.Q75, err = stats.PercentileNearestRank(data, 75); err != nil {
		return s, err
	}

	s.Skewness, s.Kurtosis = moments(data, s.Mean)
	s.Outliers = detectOutliers(data, s.Q25, s.Q75)

	// Jarque-Bera statistic is asymptotically chi-squared with 2 degrees of freedom
	n := float64(len(data))
	jb := n / 6 * (s.Skewness*s.Skewness + s.Kurtosis*s.Kurtosis/4)
	s.NormalityP = distuv.ChiSquared{K: 2}.Survival(jb)
	return s, nil
}

// moments returns population skewness and excess kurtosis. A constant
// sample has zero for both.
func moments(data []float64, mean float64) (skew, kurt float64) {
	var m2, m3, m4 float64
	for _, x := range data {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(data))
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 == 0 {
		return 0, 0
	}
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

// detectOutliers counts values beyond 1.5 IQR of the quartiles
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}
