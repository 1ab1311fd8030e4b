// Package hotkey provides the global stop binding. The stop key is the
// only input the program listens for outside the game: everything else
// goes the other direction.
package hotkey

import (
	"strings"
	"sync/atomic"

	gohook "github.com/robotn/gohook"

	"relic-keeper/src/logutil"
)

// ListenStop registers a global key-down listener for a single stop
// key and invokes callback on every press. It returns immediately; the
// hook loop runs on its own goroutine for the life of the process.
func ListenStop(keyName string, callback func()) {
	rawcodes := keyNameToRawcodes(keyName)
	if len(rawcodes) == 0 {
		logutil.Errorf("stop hotkey %q cannot be mapped, listener not started", keyName)
		return
	}
	logutil.Infof("stop hotkey armed: %s", keyName)

	// Debounce: holding the key fires KeyDown repeats.
	var pressed atomic.Bool

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logutil.Errorf("hotkey listener panic: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			logutil.Errorf("hook start failed, stop hotkey inactive")
			return
		}
		defer gohook.End()

		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown, gohook.KeyHold:
				if matches(ev.Rawcode, rawcodes) && pressed.CompareAndSwap(false, true) {
					logutil.Infof("stop hotkey pressed")
					if callback != nil {
						callback()
					}
				}
			case gohook.KeyUp:
				if matches(ev.Rawcode, rawcodes) {
					pressed.Store(false)
				}
			}
		}
	}()
}

func matches(rawcode uint16, rawcodes []uint16) bool {
	for _, rc := range rawcodes {
		if rawcode == rc {
			return true
		}
	}
	return false
}

// keyNameToRawcodes maps a key name to its Windows virtual key code
// rawcodes. Modifiers return both left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	switch keyName {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "win", "cmd", "super":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	case "space":
		return []uint16{32} // VK_SPACE
	case "enter", "return":
		return []uint16{13} // VK_RETURN
	case "esc", "escape":
		return []uint16{27} // VK_ESCAPE
	case "tab":
		return []uint16{9} // VK_TAB
	case "backspace":
		return []uint16{8} // VK_BACK
	case "delete", "del":
		return []uint16{46} // VK_DELETE
	case "insert", "ins":
		return []uint16{45} // VK_INSERT
	case "home":
		return []uint16{36} // VK_HOME
	case "end":
		return []uint16{35} // VK_END
	case "pageup", "pgup":
		return []uint16{33} // VK_PRIOR
	case "pagedown", "pgdn":
		return []uint16{34} // VK_NEXT
	case "left":
		return []uint16{37} // VK_LEFT
	case "up":
		return []uint16{38} // VK_UP
	case "right":
		return []uint16{39} // VK_RIGHT
	case "down":
		return []uint16{40} // VK_DOWN
	}

	// Letters a-z: VK 0x41-0x5A.
	if len(keyName) == 1 && keyName[0] >= 'a' && keyName[0] <= 'z' {
		return []uint16{uint16(keyName[0]-'a') + 65}
	}
	// Digits 0-9: VK 0x30-0x39.
	if len(keyName) == 1 && keyName[0] >= '0' && keyName[0] <= '9' {
		return []uint16{uint16(keyName[0]-'0') + 48}
	}
	// Function keys f1-f24: VK 0x70-0x87.
	if strings.HasPrefix(keyName, "f") {
		n := 0
		for _, c := range keyName[1:] {
			if c < '0' || c > '9' {
				n = 0
				break
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 24 {
			return []uint16{uint16(n-1) + 112}
		}
	}

	logutil.Warningf("unknown key name %q, cannot map to rawcode", keyName)
	return nil
}
