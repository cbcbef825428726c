package visualize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// Panel is one channel drawn with a fixed value range.
type Panel struct {
	Field string
	Elev  float64
	Min   float64
	Max   float64
}

// Title is the caption drawn above the panel.
func (p Panel) Title() string {
	return fmt.Sprintf("%s, elev: %s", p.Field, domain.ElevationLabel(p.Elev))
}

// DefaultPanels shows low and mid reflectivity next to low velocity.
var DefaultPanels = []Panel{
	{Field: domain.FieldReflectivity, Elev: 0.5, Min: -15, Max: 30},
	{Field: domain.FieldReflectivity, Elev: 1.5, Min: -15, Max: 30},
	{Field: domain.FieldVelocity, Elev: 0.5, Min: -15, Max: 15},
}

// BoxColor outlines annotation boxes.
var BoxColor = colorful.Color{R: 1, G: 0, B: 1} // #FF00FF

const (
	titleHeight = 20
	gutter      = 10
	boxWidth    = 2
)

// PanelStats summarises the finite values of one panel.
type PanelStats struct {
	Title   string
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
	Missing float64 // fraction of NaN pixels
}

func channelStats(title string, plane []float64) PanelStats {
	finite := make([]float64, 0, len(plane))
	for _, v := range plane {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	s := PanelStats{Title: title, Missing: 1}
	if len(plane) > 0 {
		s.Missing = 1 - float64(len(finite))/float64(len(plane))
	}
	if len(finite) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	s.Min, s.Max = floats.Min(finite), floats.Max(finite)
	return s
}

// Compose draws the panels side by side with the boxes on each.
func Compose(arr Array, indices map[string]map[string]int, panels []Panel, boxes [][]int, cm *Colormap) (*image.RGBA, []PanelStats, error) {
	dim := arr.Shape[1]
	width := len(panels)*dim + (len(panels)-1)*gutter
	img := image.NewRGBA(image.Rect(0, 0, width, titleHeight+dim))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	boxColor := color.RGBAModel.Convert(BoxColor).(color.RGBA)
	stats := make([]PanelStats, 0, len(panels))
	for i, p := range panels {
		idx, ok := indices[p.Field][domain.ElevationLabel(p.Elev)]
		if !ok {
			return nil, nil, fmt.Errorf("array has no channel %s", p.Title())
		}
		plane, err := arr.Channel(idx)
		if err != nil {
			return nil, nil, err
		}
		stats = append(stats, channelStats(p.Title(), plane))

		x0 := i * (dim + gutter)
		for y := 0; y < dim; y++ {
			for x := 0; x < dim; x++ {
				img.SetRGBA(x0+x, titleHeight+y, cm.At(scale(plane[y*dim+x], p.Min, p.Max)))
			}
		}
		drawTitle(img, x0, p.Title())

		frame := image.Rect(x0, titleHeight, x0+dim, titleHeight+dim)
		for _, b := range boxes {
			if len(b) != 4 {
				continue
			}
			r := image.Rect(b[0], b[1], b[0]+b[2], b[1]+b[3]).Add(frame.Min)
			strokeRect(img, r.Intersect(frame), boxColor)
		}
	}
	return img, stats, nil
}

func drawTitle(img *image.RGBA, x int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+2, titleHeight-5),
	}
	d.DrawString(s)
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	set := func(x, y int) {
		if image.Pt(x, y).In(r) {
			img.SetRGBA(x, y, c)
		}
	}
	for t := 0; t < boxWidth; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			set(x, r.Min.Y+t)
			set(x, r.Max.Y-1-t)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			set(r.Min.X+t, y)
			set(r.Max.X-1-t, y)
		}
	}
}
