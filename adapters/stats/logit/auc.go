package logit

import (
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC returns the area under the ROC curve of scores against the true classes.
// Tied scores share credit. Both classes must be present.
func AUC(scores []float64, classes []bool) (float64, error) {
	if len(scores) != len(classes) {
		return 0, fmt.Errorf("have %d scores and %d classes", len(scores), len(classes))
	}
	var pos int
	for _, c := range classes {
		if c {
			pos++
		}
	}
	if pos == 0 || pos == len(classes) {
		return 0, fmt.Errorf("AUC undefined with a single class")
	}

	y := append([]float64(nil), scores...)
	c := append([]bool(nil), classes...)
	stat.SortWeightedLabeled(y, c, nil)
	tpr, fpr, _ := stat.ROC(nil, y, c, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
