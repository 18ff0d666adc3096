package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{name: "plain", line: "G1 X10", expected: "G1 X10"},
		{name: "comment", line: "G1 X10 ; move", expected: "G1 X10"},
		{name: "comment only", line: "; just a note", expected: ""},
		{name: "surrounding whitespace", line: "  \tM105 \r\n", expected: "M105"},
		{name: "comment without space", line: "G28;home", expected: "G28"},
		{name: "multiple semicolons", line: "M117 a;b;c", expected: "M117 a"},
		{name: "empty", line: "", expected: ""},
		{name: "vertical tab and form feed", line: "\v\fG4 P1\f", expected: "G4 P1"},
		{name: "unicode spaces kept", line: "\u00a0M117 hi\u0085", expected: "\u00a0M117 hi\u0085"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Payload(tt.line))
		})
	}
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, 15, Checksum("G1 X10"))
	assert.Equal(t, 14, Checksum("G1 Y10"))
	assert.Equal(t, 121, Checksum("M105"))
	assert.Equal(t, 0, Checksum(""))

	// XOR of a string with itself appended folds to zero
	assert.Equal(t, 0, Checksum("G1 X10G1 X10"))
}

func TestChecksum_Deterministic(t *testing.T) {
	payloads := []string{"G1 X10", "M104 S200", "G1 X-12.5 Y3.25 E0.4 F1800", "\x7f\x01"}

	for _, p := range payloads {
		first := Checksum(p)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Checksum(p))
		}

		want := 0
		for _, b := range []byte(p) {
			want ^= int(b)
		}
		assert.Equal(t, want, first)
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "N1 G1 X10*15\n", Encode(1, "G1 X10"))
	assert.Equal(t, "N2 G1 Y10*14\n", Encode(2, "G1 Y10"))
	assert.Equal(t, "N1 G1 X10*15\n", Encode(1, "G1 X10 ; move"))
	assert.Equal(t, "N0 *0\n", Encode(0, "   "))
	assert.Equal(t, "N18446744073709551615 M105*121\n", Encode(^uint64(0), "M105"))
}

func TestNew(t *testing.T) {
	f := New(5, "  G28 ; home all ")
	assert.Equal(t, Frame{Seq: 5, Payload: "G28", Checksum: 77}, f)
	assert.Equal(t, "N5 G28*77\n", f.String())
}

func TestParse(t *testing.T) {
	f, err := Parse("N1 G1 X10*15\n")
	require.NoError(t, err)
	assert.Equal(t, Frame{Seq: 1, Payload: "G1 X10", Checksum: 15}, f)

	f, err = Parse("N42 M105*121\r\n")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), f.Seq)

	f, err = Parse(Encode(7, "M117 5*3=15"))
	require.NoError(t, err)
	assert.Equal(t, "M117 5*3=15", f.Payload)
}

func TestParse_ChecksumMismatch(t *testing.T) {
	f, err := Parse("N3 G1 X10*16")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.Equal(t, uint64(3), f.Seq)
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"G1 X10*15",
		"N G1 X10*15",
		"Nx G1*1",
		"N1",
		"N1 G1 X10",
		"N1 G1 X10*abc",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}
