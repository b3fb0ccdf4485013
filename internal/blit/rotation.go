package blit

import (
	"fmt"
	"strings"
)

// Rotation is the orientation transform applied while blitting.
type Rotation int

// Rotations. The 90 degree variants rotate clockwise.
const (
	RotationNone Rotation = iota
	Rotation90
	Rotation180
	Rotation270
	RotationFlipHorizontal
	RotationFlipVertical
	RotationUpperLeftLowerRight
	RotationUpperRightLowerLeft
)

var rotationNames = map[Rotation]string{
	RotationNone:                "identity",
	Rotation90:                  "90r",
	Rotation180:                 "180",
	Rotation270:                 "90l",
	RotationFlipHorizontal:      "horiz",
	RotationFlipVertical:        "vert",
	RotationUpperLeftLowerRight: "ul-lr",
	RotationUpperRightLowerLeft: "ur-ll",
}

var rotationAliases = map[string]Rotation{
	"none":   RotationNone,
	"0":      RotationNone,
	"90":     Rotation90,
	"270":    Rotation270,
	"flip-h": RotationFlipHorizontal,
	"flip-v": RotationFlipVertical,
}

// Transposes reports whether the rotation swaps width and height.
func (r Rotation) Transposes() bool {
	switch r {
	case Rotation90, Rotation270, RotationUpperLeftLowerRight, RotationUpperRightLowerLeft:
		return true
	default:
		return false
	}
}

func (r Rotation) String() string {
	if name, ok := rotationNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rotation(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Rotation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rotation) UnmarshalText(text []byte) error {
	parsed, err := ParseRotation(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRotation accepts the canonical names plus a few numeric aliases.
func ParseRotation(s string) (Rotation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range rotationNames {
		if name == s {
			return r, nil
		}
	}
	if r, ok := rotationAliases[s]; ok {
		return r, nil
	}
	return RotationNone, fmt.Errorf("unknown rotation %q", s)
}

// edge indexes the sides of a rectangle.
type edge int

const (
	edgeLeft edge = iota
	edgeTop
	edgeRight
	edgeBottom
)

// sourceEdges maps each destination edge to the source edge that lands on it.
var sourceEdges = map[Rotation][4]edge{
	RotationNone:                {edgeLeft, edgeTop, edgeRight, edgeBottom},
	Rotation90:                  {edgeBottom, edgeLeft, edgeTop, edgeRight},
	Rotation180:                 {edgeRight, edgeBottom, edgeLeft, edgeTop},
	Rotation270:                 {edgeTop, edgeRight, edgeBottom, edgeLeft},
	RotationFlipHorizontal:      {edgeRight, edgeTop, edgeLeft, edgeBottom},
	RotationFlipVertical:        {edgeLeft, edgeBottom, edgeRight, edgeTop},
	RotationUpperLeftLowerRight: {edgeTop, edgeLeft, edgeBottom, edgeRight},
	RotationUpperRightLowerLeft: {edgeBottom, edgeRight, edgeTop, edgeLeft},
}
