package stats

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"gonum.org/v1/gonum/mat"
)

// minScale mirrors the machine-epsilon guard used for constant columns.
const minScale = 10 * 2.220446049250313e-16

// FitScale returns the population standard deviation of each column of x.
// Columns whose deviation is effectively zero get a scale of 1, so scaling
// never divides by zero. The mean is not subtracted.
func FitScale(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("cannot fit scale on empty matrix")
	}

	scale := make([]float64, cols)
	col := make([]float64, rows)
	for j := range cols {
		mat.Col(col, j, x)
		std := common.PopulationStd(col)
		if math.IsNaN(std) || std < minScale {
			std = 1
		}
		scale[j] = std
	}
	return scale, nil
}

// ApplyScale divides each column of x by its scale in place.
func ApplyScale(x *mat.Dense, scale []float64) error {
	rows, cols := x.Dims()
	if cols != len(scale) {
		return fmt.Errorf("scale has %d entries, matrix has %d columns", len(scale), cols)
	}
	for i := range rows {
		row := x.RawRowView(i)
		for j, s := range scale {
			row[j] /= s
		}
	}
	return nil
}
