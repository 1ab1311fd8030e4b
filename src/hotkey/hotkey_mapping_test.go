package hotkey

import (
	"testing"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},

		// Letter keys
		{"f", []uint16{70}},
		{"q", []uint16{81}},

		// Number keys
		{"2", []uint16{50}},
		{"3", []uint16{51}},

		// Function keys
		{"f1", []uint16{112}},
		{"f8", []uint16{119}},
		{"F8", []uint16{119}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"f25", nil},
		{"f1x", nil},

		// Special keys
		{"space", []uint16{32}},
		{"esc", []uint16{27}},
		{"right", []uint16{39}},

		// Unknown key
		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Errorf("keyNameToRawcodes(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("keyNameToRawcodes(%q)[%d] = %d, expected %d",
						tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestMatches(t *testing.T) {
	codes := []uint16{162, 163}
	if !matches(163, codes) {
		t.Error("right variant did not match")
	}
	if matches(70, codes) {
		t.Error("unrelated rawcode matched")
	}
}
