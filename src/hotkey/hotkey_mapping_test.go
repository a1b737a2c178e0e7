package hotkey

import (
	"errors"
	"testing"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},

		{"q", []uint16{81}},
		{"t", []uint16{84}},
		{"0", []uint16{48}},
		{"9", []uint16{57}},

		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},

		{"space", []uint16{32}},
		{"return", []uint16{13}},
		{"escape", []uint16{27}},
		{"pgdn", []uint16{34}},

		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Fatalf("keyNameToRawcodes(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
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

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+T", []string{"ctrl", "alt", "t"}},
		{"Ctrl+Shift+O", []string{"ctrl", "shift", "o"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Super+Alt+T", []string{"cmd", "alt", "t"}},
		{" ctrl + + t ", []string{"ctrl", "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseHotkey(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestComboFiresOncePerPress(t *testing.T) {
	c, err := newCombo("Ctrl+Alt+T")
	if err != nil {
		t.Fatalf("newCombo failed: %v", err)
	}

	if c.press(162) || c.press(165) {
		t.Fatal("Combination fired before all keys were held")
	}
	if !c.press(84) {
		t.Fatal("Expected combination to fire on the last key")
	}
	if c.press(84) {
		t.Fatal("Combination fired again without releasing")
	}

	c.release(84)
	c.press(163)
	c.press(164)
	if !c.press(84) {
		t.Fatal("Expected right-hand modifiers to work too")
	}
}

func TestComboRejectsUnmappable(t *testing.T) {
	if _, err := newCombo("Hyper+Nope"); !errors.Is(err, ErrEmptyCombo) {
		t.Fatalf("Expected ErrEmptyCombo, got %v", err)
	}
	if err := Listen("", nil); !errors.Is(err, ErrEmptyCombo) {
		t.Fatalf("Expected ErrEmptyCombo from Listen, got %v", err)
	}
}
