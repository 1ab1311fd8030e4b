// Package window locates the game window and maps reference-layout
// coordinates onto it.
package window

import "image"

// Reference layout all hardcoded UI coordinates are authored against.
const (
	RefWidth  = 1920
	RefHeight = 1080
)

// Oracle answers questions about the game window. Implementations are
// per-platform; tests substitute fixtures.
type Oracle interface {
	IsGameFocused() bool
	GameRect() (image.Rectangle, bool)
}

// Focuser brings the game window back to the foreground. Oracles that
// can do so implement it; callers probe with a type assertion.
type Focuser interface {
	Focus() bool
}

// Scale maps a point from the 1920x1080 reference layout into rect.
func Scale(pt image.Point, rect image.Rectangle) image.Point {
	return image.Point{
		X: rect.Min.X + pt.X*rect.Dx()/RefWidth,
		Y: rect.Min.Y + pt.Y*rect.Dy()/RefHeight,
	}
}

// ScaleRect maps a reference-layout rectangle into rect.
func ScaleRect(r image.Rectangle, rect image.Rectangle) image.Rectangle {
	return image.Rectangle{
		Min: Scale(r.Min, rect),
		Max: Scale(r.Max, rect),
	}
}
