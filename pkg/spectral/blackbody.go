package spectral

import (
	"math"
	"sync"

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
)

const (
	speedOfLight = 299792458.0
	planck       = 6.62606957e-34
	boltzmann    = 1.3806488e-23

	blackbodyEntries    = 500
	blackbodyResolution = 100.0 // K between table entries
	blackbodyTableMax   = (blackbodyEntries - 1) * blackbodyResolution
)

// Planck returns the spectral radiance of a blackbody at temperature (K) for a wavelength
// given in metres. Non-positive temperatures emit nothing.
func Planck(lambda, temperature float64) float64 {
	if temperature <= 0 {
		return 0
	}
	num := 2 * planck * speedOfLight * speedOfLight
	den := math.Pow(lambda, 5) * math.Expm1(planck*speedOfLight/(lambda*boltzmann*temperature))
	return num / den
}

// integrateBlackbody projects the blackbody spectrum onto the colour matching functions,
// normalised by ∫ȳ.
func integrateBlackbody(cmf *cmfTable, temperature float64) core.Vec3 {
	var x, y, z float64
	for i := range NumLambda {
		b := Planck(float64(LambdaMin+i)*1e-9, temperature)
		x += cmf.x[i] * b
		y += cmf.y[i] * b
		z += cmf.z[i] * b
	}
	return core.NewVec3(x, y, z).Multiply(1 / cmf.yIntegral)
}

type blackbodyTable struct {
	cmf     *cmfTable
	entries [blackbodyEntries]core.Vec3
}

var (
	tableOnce sync.Once
	table     *blackbodyTable
)

func getTable() *blackbodyTable {
	tableOnce.Do(func() {
		t := &blackbodyTable{cmf: newCMFTable()}
		for i := range t.entries {
			t.entries[i] = integrateBlackbody(t.cmf, float64(i)*blackbodyResolution)
		}
		table = t
	})
	return table
}

// BlackbodyXYZ returns the XYZ emission of a blackbody at temperature (K). Values are
// interpolated from a table below the table limit and integrated directly above it.
// Non-finite temperatures yield NaN, non-positive ones yield zero.
func BlackbodyXYZ(temperature float64) core.Vec3 {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return core.Splat(math.NaN())
	}
	if temperature <= 0 {
		return core.Vec3{}
	}

	t := getTable()
	if temperature >= blackbodyTableMax {
		return integrateBlackbody(t.cmf, temperature)
	}

	i := int(temperature / blackbodyResolution)
	frac := temperature/blackbodyResolution - float64(i)
	if frac == 0 {
		return t.entries[i]
	}
	lo, hi := t.entries[i], t.entries[i+1]
	return lo.Add(hi.Subtract(lo).Multiply(frac))
}
