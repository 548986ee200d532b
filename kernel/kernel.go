// Package kernel decodes the 9-digit neighbor codes that select which pixels
// of a 3x3 neighborhood contribute to the engraving average and how much.
package kernel

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultCode is a symmetric mask excluding the center pixel.
const DefaultCode = "121202121"

// Size is the number of slots in a neighbor mask.
const Size = 9

// Dist is the distance class of a neighbor.
type Dist uint8

const (
	DistInf   Dist = iota // inf
	DistSqrt2             // sqrt2
	DistOne               // one
)

func (d Dist) String() string {
	switch d {
	case DistInf:
		return "inf"
	case DistSqrt2:
		return "sqrt2"
	case DistOne:
		return "one"
	default:
		return "Dist(" + strconv.Itoa(int(d)) + ")"
	}
}

// Distance returns the geometric distance the class stands for.
func (d Dist) Distance() float64 {
	switch d {
	case DistSqrt2:
		return math.Sqrt2
	case DistOne:
		return 1
	default:
		return math.Inf(1)
	}
}

// Weight returns the factor a neighbor of this class contributes to the
// weighted average. Nearer neighbors weigh more.
func (d Dist) Weight() float64 {
	if int(d) >= len(weights) {
		return 0
	}
	return weights[d]
}

// digit returns the code digit encoding d.
func (d Dist) digit() byte { return '0' + byte(d) }

var weights = [...]float64{DistInf: 0, DistSqrt2: 1, DistOne: math.Sqrt2}

// Offsets lists the (row, column) delta of every mask slot in row-major order.
var Offsets = [Size][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 0}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Neighbors is a 3x3 mask of distance classes in [Offsets] order.
type Neighbors [Size]Dist

// Default returns the mask encoded by [DefaultCode].
func Default() Neighbors {
	return Neighbors{
		DistSqrt2, DistOne, DistSqrt2,
		DistOne, DistInf, DistOne,
		DistSqrt2, DistOne, DistSqrt2,
	}
}

// Weights returns the accumulation weight of every slot.
func (n Neighbors) Weights() (w [Size]float64) {
	for i, d := range n {
		w[i] = d.Weight()
	}
	return w
}

// String returns the 9-digit code of the mask. Parse(n.String()) == n.
func (n Neighbors) String() string {
	var b [Size]byte
	for i, d := range n {
		b[i] = d.digit()
	}
	return string(b[:])
}

var (
	ErrInvalidLength = errors.New("neighbor code must be 9 characters long")
	ErrInvalidDigit  = errors.New("neighbor code digits must be 0, 1 or 2")
)

// ParseError is returned by [Parse]. It matches [ErrInvalidLength] or
// [ErrInvalidDigit] with errors.Is.
type ParseError struct {
	Code string
	Kind error
}

func (e *ParseError) Error() string {
	return "kernel: parsing " + strconv.Quote(e.Code) + ": " + e.Kind.Error()
}

func (e *ParseError) Unwrap() error { return e.Kind }

// Parse decodes a 9 character neighbor code. The code is read as a
// non-negative decimal integer whose digits fill the mask from the last slot
// backwards, so missing leading digits leave slots excluded. Digit 0 excludes
// a neighbor, 1 marks it diagonal (distance sqrt 2) and 2 marks it adjacent.
func Parse(code string) (Neighbors, error) {
	var n Neighbors
	if len(code) != Size {
		return n, &ParseError{Code: code, Kind: ErrInvalidLength}
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(code, "+"), 10, 32)
	if err != nil {
		return n, &ParseError{Code: code, Kind: ErrInvalidDigit}
	}
	for i := Size - 1; v > 0; i-- {
		d := v % 10
		if d > uint64(DistOne) {
			return n, &ParseError{Code: code, Kind: ErrInvalidDigit}
		}
		n[i] = Dist(d)
		v /= 10
	}
	return n, nil
}
