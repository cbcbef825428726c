package domain

import (
	"math"
	"strconv"
)

// SheldonAverageFactor is the canonical box scale: the mean of Dan Sheldon's
// per-station scale factors.
const SheldonAverageFactor = 0.7429

// BBox is an axis-aligned pixel box. Width and Height count pixels
// inclusively, so the box spans columns [Left, Left+Width-1].
type BBox struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Slice returns the box in the manifest's [left, top, width, height] form.
func (b BBox) Slice() []int {
	return []int{b.Left, b.Top, b.Width, b.Height}
}

// Center returns the inclusive-width centre of the box.
func (b BBox) Center() (x, y float64) {
	return float64(2*b.Left+b.Width-1) / 2, float64(2*b.Top+b.Height-1) / 2
}

// Rescale resizes an annotator's box to the target scale factor, keeping its
// centre. Half-extents are multiplied by targetFactor/annotatorFactor, the new
// top-left corner is truncated toward zero and the bottom-right corner is its
// mirror image through the centre. Truncation biases the centre by up to half
// a pixel; the scale factors were fitted against exactly this arithmetic.
//
// A ratio of exactly 1 returns the box unchanged.
func Rescale(b BBox, annotatorFactor, targetFactor float64) (BBox, error) {
	if annotatorFactor == 0 || math.IsNaN(annotatorFactor) || math.IsInf(annotatorFactor, 0) {
		return BBox{}, domainErr("rescale bbox with factor "+strconv.FormatFloat(annotatorFactor, 'g', -1, 64), ErrZeroScaleFactor)
	}

	ratio := targetFactor / annotatorFactor
	if ratio == 1 {
		return b, nil
	}

	cx, cy := b.Center()
	rx := float64(b.Width) / 2 * ratio
	ry := float64(b.Height) / 2 * ratio

	left := int(math.Trunc(cx - rx))
	right := int(2*cx) - left
	top := int(math.Trunc(cy - ry))
	bottom := int(2*cy) - top

	return BBox{
		Left:   left,
		Top:    top,
		Width:  right - left + 1,
		Height: bottom - top + 1,
	}, nil
}

// CircleToBBox converts a circle in image pixels to the inclusive box that
// the dataset records for it.
func CircleToBBox(xIm, yIm, rIm float64) BBox {
	left := int(xIm - rIm)
	top := int(yIm - rIm)
	return BBox{
		Left:   left,
		Top:    top,
		Width:  int(xIm+rIm) - left + 1,
		Height: int(yIm+rIm) - top + 1,
	}
}
