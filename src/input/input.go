// Package input sends keyboard and mouse events to the game. All
// actions are serialized by the session loop; the driver itself holds
// no state beyond pacing defaults.
package input

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// Driver is the action boundary the session loop talks to. Tests plug
// in a recorder.
type Driver interface {
	Press(key string, hold, settle time.Duration) error
	MoveMouse(x, y int)
	Click(x, y int, button string) error
}

// RobotDriver drives the real cursor and keyboard via robotgo.
type RobotDriver struct {
	// DefaultHold is used when Press is called with hold == 0.
	DefaultHold time.Duration
}

func NewRobotDriver() *RobotDriver {
	return &RobotDriver{DefaultHold: 50 * time.Millisecond}
}

// Press holds a key down for the given duration, then releases and
// waits out the settle delay. The release runs on every return path so
// an error can never leave a key stuck down mid-transaction.
func (d *RobotDriver) Press(key string, hold, settle time.Duration) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if hold <= 0 {
		hold = d.DefaultHold
	}

	if err := robotgo.KeyDown(key); err != nil {
		return fmt.Errorf("key down %q: %w", key, err)
	}
	defer func() {
		_ = robotgo.KeyUp(key)
		if settle > 0 {
			time.Sleep(settle)
		}
	}()

	time.Sleep(hold)
	return nil
}

func (d *RobotDriver) MoveMouse(x, y int) {
	robotgo.Move(x, y)
}

func (d *RobotDriver) Click(x, y int, button string) error {
	if button == "" {
		button = "left"
	}
	robotgo.Move(x, y)
	time.Sleep(30 * time.Millisecond)
	robotgo.Click(button)
	return nil
}
