// Package ocr defines the text-recognition boundary. The engine is
// injected: live runs plug in a real recognizer, tests plug in stubs.
package ocr

import (
	"errors"
	"image"

	"relic-keeper/src/textnorm"
)

// Polarity marks whether a recognized line renders as a positive or
// negative affix (negative lines are drawn in blue by the game).
type Polarity int

const (
	Positive Polarity = iota
	Negative
)

// Line is one recognized text row with its polarity.
type Line struct {
	Text     string
	Polarity Polarity
}

// Engine recognizes text in a frame region. Implementations own native
// resources, hence the explicit lifecycle.
type Engine interface {
	Open() error
	RecognizeLines(img *image.RGBA) ([]Line, error)
	Close() error
}

var ErrEngineClosed = errors.New("ocr engine closed")

// VarianceFloor is the pixel-variance threshold below which a region is
// considered blank and the engine call skipped.
const VarianceFloor = 80.0

// Reader wraps an Engine with the pre/post processing every caller
// needs: blank-region skip and misread-placeholder filtering.
type Reader struct {
	engine Engine
}

func NewReader(engine Engine) *Reader {
	return &Reader{engine: engine}
}

func (r *Reader) Open() error  { return r.engine.Open() }
func (r *Reader) Close() error { return r.engine.Close() }

// Read recognizes lines in img. Blank regions short-circuit to an empty
// result without touching the engine.
func (r *Reader) Read(img *image.RGBA) ([]Line, error) {
	if img == nil {
		return nil, nil
	}
	if GrayVariance(img) < VarianceFloor {
		return nil, nil
	}

	lines, err := r.engine.RecognizeLines(img)
	if err != nil {
		return nil, err
	}

	out := lines[:0]
	for _, ln := range lines {
		text := textnorm.Normalize(ln.Text)
		// The empty-slot placeholder "-" is habitually misread as 一.
		if text == "" || text == "一" {
			continue
		}
		out = append(out, Line{Text: text, Polarity: ln.Polarity})
	}
	return out, nil
}

// GrayVariance computes the variance of the luma channel. Empty relic
// slots are flat fills and score near zero.
func GrayVariance(img *image.RGBA) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4:]
			// Integer luma approximation, matches the usual BT.601 weights.
			g := (299*float64(p[0]) + 587*float64(p[1]) + 114*float64(p[2])) / 1000
			sum += g
			sumSq += g * g
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
