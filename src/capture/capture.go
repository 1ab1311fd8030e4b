// Package capture produces frames of the game window for the vision
// and OCR stages.
package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Source yields one frame per call. A (nil, nil) return means the
// target is temporarily uncapturable; callers skip the tick instead of
// failing the session.
type Source interface {
	Frame() (*image.RGBA, error)
}

// RectProvider reports the current on-screen rectangle of the game
// window, false when it cannot be located.
type RectProvider interface {
	GameRect() (image.Rectangle, bool)
}

// WindowSource captures the rectangle reported by a RectProvider,
// falling back to the primary display when the provider has nothing.
type WindowSource struct {
	rects RectProvider
}

func NewWindowSource(rects RectProvider) *WindowSource {
	return &WindowSource{rects: rects}
}

func (s *WindowSource) Frame() (*image.RGBA, error) {
	bounds, ok := image.Rectangle{}, false
	if s.rects != nil {
		bounds, ok = s.rects.GameRect()
	}
	if !ok {
		if screenshot.NumActiveDisplays() == 0 {
			return nil, nil
		}
		bounds = screenshot.GetDisplayBounds(0)
	}
	img, err := CaptureRect(bounds)
	if err != nil {
		// Capture races window minimize/lock screen; treat as skip.
		return nil, nil
	}
	return img, nil
}

// CaptureRect grabs an absolute virtual-screen rectangle, used for the
// small OCR sub-regions.
func CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, fmt.Errorf("invalid capture rectangle %v", r)
	}
	return screenshot.CaptureRect(r)
}

// Crop returns the sub-image of frame bounded by r, clamped to the
// frame. Returns nil when the intersection is empty.
func Crop(frame *image.RGBA, r image.Rectangle) *image.RGBA {
	if frame == nil {
		return nil
	}
	clipped := r.Intersect(frame.Bounds())
	if clipped.Empty() {
		return nil
	}
	return frame.SubImage(clipped).(*image.RGBA)
}
