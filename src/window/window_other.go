//go:build !windows

package window

import (
	"image"

	"github.com/go-vgo/robotgo"
)

// TitleOracle locates the game window by its title. Non-Windows
// platforms go through robotgo's process/window lookup; focus-stealing
// is best effort there.
type TitleOracle struct {
	Title string
}

func NewOracle(title string) *TitleOracle {
	return &TitleOracle{Title: title}
}

func (o *TitleOracle) IsGameFocused() bool {
	return robotgo.GetTitle() == o.Title
}

func (o *TitleOracle) GameRect() (image.Rectangle, bool) {
	pids, err := robotgo.FindIds(o.Title)
	if err != nil || len(pids) == 0 {
		return image.Rectangle{}, false
	}
	x, y, w, h := robotgo.GetBounds(pids[0])
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}

func (o *TitleOracle) Focus() bool {
	pids, err := robotgo.FindIds(o.Title)
	if err != nil || len(pids) == 0 {
		return false
	}
	return robotgo.ActivePid(pids[0]) == nil
}

// EnableDPIAwareness is a no-op outside Windows.
func EnableDPIAwareness() {}
