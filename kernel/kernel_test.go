package kernel

import (
	"errors"
	"math"
	"testing"
)

func TestParseAllCodes(t *testing.T) {
	// Every code over {0,1,2}^9 must parse and render back to itself.
	var code [Size]byte
	for v := 0; v < 19683; v++ {
		x := v
		for i := Size - 1; i >= 0; i-- {
			code[i] = '0' + byte(x%3)
			x /= 3
		}
		s := string(code[:])
		n, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := n.String(); got != s {
			t.Fatalf("Parse(%q).String() = %q", s, got)
		}
		for i, d := range n {
			if d.digit() != s[i] {
				t.Fatalf("Parse(%q) slot %d = %v", s, i, d)
			}
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"", ErrInvalidLength},
		{"12120212", ErrInvalidLength},
		{"1212021210", ErrInvalidLength},
		{"121202123", ErrInvalidDigit},
		{"921202121", ErrInvalidDigit},
		{"12120212a", ErrInvalidDigit},
		{"-12120212", ErrInvalidDigit},
		{" 12120212", ErrInvalidDigit},
		{"++1212021", ErrInvalidDigit},
		// Multi-byte runes count by bytes, not characters.
		{"12120212é", ErrInvalidLength},
	}
	for _, tt := range tests {
		_, err := Parse(tt.code)
		if !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.code, err, tt.want)
		}
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Code != tt.code {
			t.Errorf("Parse(%q) error %T does not carry the code", tt.code, err)
		}
	}
}

func TestParseLeftPadding(t *testing.T) {
	n, err := Parse("000000021")
	if err != nil {
		t.Fatal(err)
	}
	want := Neighbors{7: DistOne, 8: DistSqrt2}
	if n != want {
		t.Errorf("got %v, want %v", n, want)
	}
	// A leading plus sign is accepted and behaves like a leading zero.
	n, err = Parse("+12120212")
	if err != nil {
		t.Fatal(err)
	}
	if got := n.String(); got != "012120212" {
		t.Errorf("Parse(+12120212) = %s", got)
	}
}

func TestDefault(t *testing.T) {
	n, err := Parse(DefaultCode)
	if err != nil {
		t.Fatal(err)
	}
	if n != Default() {
		t.Errorf("Default() = %v, parsed %v", Default(), n)
	}
	w := n.Weights()
	want := [Size]float64{1, math.Sqrt2, 1, math.Sqrt2, 0, math.Sqrt2, 1, math.Sqrt2, 1}
	if w != want {
		t.Errorf("Weights() = %v, want %v", w, want)
	}
}

func TestDist(t *testing.T) {
	tests := []struct {
		d        Dist
		distance float64
		weight   float64
		name     string
	}{
		{DistInf, math.Inf(1), 0, "inf"},
		{DistSqrt2, math.Sqrt2, 1, "sqrt2"},
		{DistOne, 1, math.Sqrt2, "one"},
	}
	for _, tt := range tests {
		if got := tt.d.Distance(); got != tt.distance {
			t.Errorf("%v.Distance() = %v", tt.d, got)
		}
		if got := tt.d.Weight(); got != tt.weight {
			t.Errorf("%v.Weight() = %v", tt.d, got)
		}
		if got := tt.d.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
	if Dist(7).Weight() != 0 || Dist(7).String() != "Dist(7)" {
		t.Error("unknown Dist should weigh 0")
	}
}
