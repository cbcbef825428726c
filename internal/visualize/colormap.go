package visualize

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// knot is one breakpoint of a piecewise-linear colour channel.
type knot struct{ at, v float64 }

// Jet breakpoints, matching the usual "jet" colormap.
var (
	jetRed   = []knot{{0, 0}, {0.35, 0}, {0.66, 1}, {0.89, 1}, {1, 0.5}}
	jetGreen = []knot{{0, 0}, {0.125, 0}, {0.375, 1}, {0.64, 1}, {0.91, 0}, {1, 0}}
	jetBlue  = []knot{{0, 0.5}, {0.11, 1}, {0.34, 1}, {0.65, 0}, {1, 0}}
)

// Colormap maps [0, 1] to colours through a lookup table.
type Colormap struct {
	lut [256]color.RGBA
	bad color.RGBA
}

// Jet builds the jet colormap. NaN values map to white.
func Jet() *Colormap {
	cm := &Colormap{bad: color.RGBA{255, 255, 255, 255}}
	for i := range cm.lut {
		x := float64(i) / 255
		c := colorful.Color{R: interp(jetRed, x), G: interp(jetGreen, x), B: interp(jetBlue, x)}.Clamped()
		r, g, b := c.RGB255()
		cm.lut[i] = color.RGBA{r, g, b, 255}
	}
	return cm
}

// At returns the colour for x, clamping to [0, 1].
func (c *Colormap) At(x float64) color.RGBA {
	if math.IsNaN(x) {
		return c.bad
	}
	x = math.Max(0, math.Min(1, x))
	return c.lut[int(math.Round(x*255))]
}

func interp(knots []knot, x float64) float64 {
	for i := 1; i < len(knots); i++ {
		if x <= knots[i].at {
			lo, hi := knots[i-1], knots[i]
			return lo.v + (hi.v-lo.v)*(x-lo.at)/(hi.at-lo.at)
		}
	}
	return knots[len(knots)-1].v
}

// scale normalises v into [0, 1] over [lo, hi]. NaN stays NaN.
func scale(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}
