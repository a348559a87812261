// Package loss turns characterized buildings and scenario wind speeds into
// per-building dollar losses and reduces them to county and scenario totals.
package loss

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-data-windloss/internal/hazus"
	"gonum.org/v1/gonum/interp"
)

// Interpolator evaluates one damage curve.
type Interpolator struct {
	min, max   float64
	minR, maxR float64
	pl         *interp.PiecewiseLinear // nil for a single-point curve
}

// NewInterpolator fits a piecewise-linear interpolator to c. The curve must
// come from hazus.NewCurve, which guarantees strictly increasing speeds;
// NewInterpolator panics on a curve that cannot be fitted.
func NewInterpolator(c hazus.Curve) Interpolator {
	n := len(c.Speeds)
	in := Interpolator{
		min:  c.Speeds[0],
		max:  c.Speeds[n-1],
		minR: c.Ratios[0],
		maxR: c.Ratios[n-1],
	}
	if n >= 2 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(c.Speeds, c.Ratios); err != nil {
			panic(fmt.Sprintf("loss: fit damage curve: %v", err))
		}
		in.pl = &pl
	}
	return in
}

// Ratio returns the loss ratio at speed. Speeds at or below the lowest
// control point give exactly the lowest ratio and speeds at or above the
// highest give exactly the highest; nothing is extrapolated.
func (in Interpolator) Ratio(speed float64) float64 {
	switch {
	case math.IsNaN(speed), speed <= in.min:
		return in.minR
	case speed >= in.max:
		return in.maxR
	case in.pl == nil:
		return in.minR
	}
	return in.pl.Predict(speed)
}

// Interpolate is a one-off Ratio for callers without a cached Interpolator.
func Interpolate(c hazus.Curve, speed float64) float64 {
	return NewInterpolator(c).Ratio(speed)
}
