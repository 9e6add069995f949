// Package spectral converts blackbody emission to CIE XYZ and XYZ to display colour.
package spectral

import "math"

const (
	LambdaMin = 360 // nm
	LambdaMax = 830 // nm
	NumLambda = LambdaMax - LambdaMin + 1
)

// lobe is one piecewise Gaussian of the analytic colour matching fit
type lobe struct {
	weight, mu, sigmaLow, sigmaHigh float64
}

func (l lobe) eval(lambda float64) float64 {
	sigma := l.sigmaHigh
	if lambda < l.mu {
		sigma = l.sigmaLow
	}
	d := (lambda - l.mu) / sigma
	return l.weight * math.Exp(-0.5*d*d)
}

// Multi-lobe fit of the CIE 1931 2° observer (Wyman, Sloan and Shirley 2013)
var (
	xLobes = []lobe{{1.056, 599.8, 37.9, 31.0}, {0.362, 442.0, 16.0, 26.7}, {-0.065, 501.1, 20.4, 26.2}}
	yLobes = []lobe{{0.821, 568.8, 46.9, 40.5}, {0.286, 530.9, 16.3, 31.1}}
	zLobes = []lobe{{1.217, 437.0, 11.8, 36.0}, {0.681, 459.0, 26.0, 13.8}}
)

func evalLobes(lobes []lobe, lambda float64) float64 {
	sum := 0.0
	for _, l := range lobes {
		sum += l.eval(lambda)
	}
	return sum
}

// ColorMatching returns the CIE x̄, ȳ, z̄ values at wavelength lambda (nm)
func ColorMatching(lambda float64) (x, y, z float64) {
	return evalLobes(xLobes, lambda), evalLobes(yLobes, lambda), evalLobes(zLobes, lambda)
}

// cmfTable holds the colour matching functions at 1 nm steps and ∫ȳ
type cmfTable struct {
	x, y, z   [NumLambda]float64
	yIntegral float64
}

func newCMFTable() *cmfTable {
	t := &cmfTable{}
	for i := range NumLambda {
		t.x[i], t.y[i], t.z[i] = ColorMatching(float64(LambdaMin + i))
		t.yIntegral += t.y[i]
	}
	return t
}
