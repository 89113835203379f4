package util

import "testing"

func TestBytesToHexNoPre(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty", []byte{}, ""},
		{"single byte", []byte{0x0a}, "0a"},
		{"multi byte", []byte{0xde, 0xad, 0xbe, 0xef}, "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BytesToHexNoPre(tt.input); got != tt.want {
				t.Errorf("BytesToHexNoPre(%x) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
