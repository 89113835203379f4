package util

import "testing"

func TestU128Add(t *testing.T) {
	tests := []struct {
		name string
		a, b Uint128
		want Uint128
	}{
		{"zero", U128(0, 0), U128(0, 0), U128(0, 0)},
		{"simple", U128From64(1), U128From64(2), U128From64(3)},
		{"carry into high", U128(0, ^uint64(0)), U128From64(1), U128(1, 0)},
		{"wrap around", U128(^uint64(0), ^uint64(0)), U128From64(1), U128(0, 0)},
		{"high words", U128(5, 0), U128(7, 0), U128(12, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Add(tt.b); !got.Equal(tt.want) {
				t.Errorf("Add() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestU128Shifts(t *testing.T) {
	one := U128From64(1)

	if got := one.Lsh(0); !got.Equal(one) {
		t.Errorf("Lsh(0) = %v, want 1", got)
	}
	if got := one.Lsh(64); !got.Equal(U128(1, 0)) {
		t.Errorf("Lsh(64) = %v, want high word 1", got)
	}
	if got := one.Lsh(127); !got.Equal(U128(1<<63, 0)) {
		t.Errorf("Lsh(127) = %v", got)
	}
	if got := one.Lsh(128); !got.IsZero() {
		t.Errorf("Lsh(128) = %v, want 0", got)
	}

	top := U128(1<<63, 0)
	if got := top.Rsh(127); !got.Equal(one) {
		t.Errorf("Rsh(127) = %v, want 1", got)
	}
	if got := top.Rsh(128); !got.IsZero() {
		t.Errorf("Rsh(128) = %v, want 0", got)
	}

	v := U128(0xdead, 0xbeef)
	if got := v.Lsh(4).Rsh(4); !got.Equal(v) {
		t.Errorf("Lsh(4).Rsh(4) = %v, want %v", got, v)
	}
}

func TestU128Rotate(t *testing.T) {
	v := U128(0x0123456789abcdef, 0xfedcba9876543210)

	if got := v.RotateLeft(0); !got.Equal(v) {
		t.Errorf("RotateLeft(0) = %v, want %v", got, v)
	}
	if got := v.RotateLeft(128); !got.Equal(v) {
		t.Errorf("RotateLeft(128) = %v, want %v", got, v)
	}
	if got := v.RotateLeft(37).RotateRight(37); !got.Equal(v) {
		t.Errorf("rotate round trip = %v, want %v", got, v)
	}
	// Rotating one bit off the top wraps to the bottom
	if got := U128(1<<63, 0).RotateLeft(1); !got.Equal(U128From64(1)) {
		t.Errorf("RotateLeft(1) = %v, want 1", got)
	}
}

func TestU128LeadingZeros(t *testing.T) {
	tests := []struct {
		name string
		v    Uint128
		want int
	}{
		{"zero", U128(0, 0), 128},
		{"one", U128From64(1), 127},
		{"low word top bit", U128(0, 1<<63), 64},
		{"high word low bit", U128(1, 0), 63},
		{"high word top bit", U128(1<<63, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.LeadingZeros(); got != tt.want {
				t.Errorf("LeadingZeros() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestU128BytesLERoundTrip(t *testing.T) {
	v := U128(0x1122334455667788, 0x99aabbccddeeff00)
	b := v.BytesLE()

	// Little-endian: low word first
	if b[0] != 0x00 || b[15] != 0x11 {
		t.Errorf("BytesLE() byte order wrong: % x", b)
	}

	if got := U128FromBytesLE(b[:]); !got.Equal(v) {
		t.Errorf("round trip = %v, want %v", got, v)
	}
}

func TestU128Hex(t *testing.T) {
	tests := []struct {
		v    Uint128
		want string
	}{
		{U128(0, 0), "0x0"},
		{U128From64(0xff), "0xff"},
		{U128(1, 0), "0x10000000000000000"},
		{U128(0xab, 0xcd), "0xab00000000000000cd"},
	}

	for _, tt := range tests {
		if got := tt.v.Hex(); got != tt.want {
			t.Errorf("Hex() = %s, want %s", got, tt.want)
		}

		parsed, err := U128FromHex(tt.want)
		if err != nil {
			t.Fatalf("U128FromHex(%s) error: %v", tt.want, err)
		}
		if !parsed.Equal(tt.v) {
			t.Errorf("U128FromHex(%s) = %v, want %v", tt.want, parsed, tt.v)
		}
	}

	if _, err := U128FromHex(""); err == nil {
		t.Error("U128FromHex(\"\") should fail")
	}
	if _, err := U128FromHex("0x" + "f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f"); err == nil {
		t.Error("U128FromHex should reject >32 digits")
	}
	if _, err := U128FromHex("0xzz"); err == nil {
		t.Error("U128FromHex should reject non-hex digits")
	}
}

func TestU128JSON(t *testing.T) {
	v := U128(7, 9)

	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}

	var back Uint128
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON error: %v", err)
	}
	if !back.Equal(v) {
		t.Errorf("JSON round trip = %v, want %v", back, v)
	}
}

func TestU128Xor(t *testing.T) {
	v := U128(0xf0f0, 0x0f0f)
	if got := v.Xor(v); !got.IsZero() {
		t.Errorf("x^x = %v, want 0", got)
	}
	if got := v.Xor(Uint128{}); !got.Equal(v) {
		t.Errorf("x^0 = %v, want %v", got, v)
	}
}
