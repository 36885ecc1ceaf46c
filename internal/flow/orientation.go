package flow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Orientation is the result contract of the pluggable estimator: the
// dominant streak angle within a kymograph and a fit-goodness score.
// The angle is measured from the position axis, so tan(angle) is
// frames-per-column along the dominant streak.
type Orientation struct {
	AngleRadians float64
	FitGoodness  float64
}

// Estimator derives the dominant orientation of a kymograph. The pipeline
// depends only on this contract; the estimation algorithm is replaceable.
type Estimator interface {
	Estimate(k *Kymograph) (Orientation, error)

	// Name identifies the estimator in run records and logs.
	Name() string
}

// NewEstimator selects a configured estimator implementation by name.
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case "standard", "":
		return TensorEstimator{}, nil
	case "flicker":
		return FlickerTensorEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown estimator %q (want standard or flicker)", name)
	}
}

// TensorEstimator computes the dominant orientation from the averaged
// structure tensor of the raster. Fit goodness is the tensor coherence in
// [0,1]: 1 for a perfectly striped raster, 0 for isotropic noise.
type TensorEstimator struct{}

func (TensorEstimator) Name() string { return "standard" }

func (TensorEstimator) Estimate(k *Kymograph) (Orientation, error) {
	return tensorOrientation(k.Data)
}

// FlickerTensorEstimator is the flicker-corrected mode: the per-frame mean
// is subtracted from every row before the tensor is accumulated, removing
// global illumination flicker that would otherwise imprint horizontal
// structure on the raster.
type FlickerTensorEstimator struct{}

func (FlickerTensorEstimator) Name() string { return "flicker" }

func (FlickerTensorEstimator) Estimate(k *Kymograph) (Orientation, error) {
	rows, cols := k.Data.Dims()
	corrected := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		mean := 0.0
		for c := 0; c < cols; c++ {
			mean += k.Data.At(r, c)
		}
		mean /= float64(cols)
		for c := 0; c < cols; c++ {
			corrected.Set(r, c, k.Data.At(r, c)-mean)
		}
	}
	return tensorOrientation(corrected)
}

// tensorOrientation accumulates the structure tensor over the interior of
// the raster using central differences and returns the streak orientation.
// A raster with no gradient energy has no dominant direction; that case
// yields a NaN angle so the calculator can route it to OutOfRange.
func tensorOrientation(data *mat.Dense) (Orientation, error) {
	rows, cols := data.Dims()
	if rows < 3 || cols < 3 {
		return Orientation{}, fmt.Errorf("raster %dx%d too small for orientation estimation", rows, cols)
	}

	var jxx, jxt, jtt float64
	for r := 1; r < rows-1; r++ {
		for c := 1; c < cols-1; c++ {
			gx := (data.At(r, c+1) - data.At(r, c-1)) / 2 // position gradient
			gt := (data.At(r+1, c) - data.At(r-1, c)) / 2 // time gradient
			jxx += gx * gx
			jxt += gx * gt
			jtt += gt * gt
		}
	}

	trace := jxx + jtt
	if trace == 0 {
		return Orientation{AngleRadians: math.NaN(), FitGoodness: 0}, nil
	}

	// Dominant gradient direction; the streak runs perpendicular to it.
	gradAngle := 0.5 * math.Atan2(2*jxt, jxx-jtt)
	angle := normalizeAngle(gradAngle + math.Pi/2)

	coherence := math.Sqrt((jxx-jtt)*(jxx-jtt)+4*jxt*jxt) / trace
	return Orientation{AngleRadians: angle, FitGoodness: coherence}, nil
}

// normalizeAngle folds an angle into (-π/2, π/2]. Streak orientation is a
// line, not a ray, so angles half a turn apart are the same orientation.
func normalizeAngle(a float64) float64 {
	for a > math.Pi/2 {
		a -= math.Pi
	}
	for a <= -math.Pi/2 {
		a += math.Pi
	}
	return a
}
