package layout

import (
	"fmt"
	"strings"

	"github.com/smazurov/videomixer/internal/blit"
)

// LetterboxMargin returns the margin that centers a width x height source
// with pixel aspect ratio parN/parD inside outer without distorting it.
// With transposed set the source is treated as rotated by 90 degrees.
// The caller must ensure outer is non-empty and width, height > 0.
func LetterboxMargin(outer blit.Region, transposed bool, width, height, parN, parD int) blit.Margin {
	if parN <= 0 || parD <= 0 {
		parN, parD = 1, 1
	}

	// Display aspect ratio as darN/darD.
	darN := int64(width) * int64(parN)
	darD := int64(height) * int64(parD)
	if transposed {
		darN, darD = darD, darN
	}

	outerW := int64(outer.Width())
	outerH := int64(outer.Height())

	var m blit.Margin
	if outerW*darD > outerH*darN {
		// Outer is wider than the picture: bars left and right.
		innerW := outerH * darN / darD
		spare := int(outerW - innerW)
		m.Left = spare / 2
		m.Right = spare - m.Left
	} else {
		innerH := outerW * darD / darN
		spare := int(outerH - innerH)
		m.Top = spare / 2
		m.Bottom = spare - m.Top
	}
	return m
}

// imageOrientations maps image-orientation stream tags to rotations.
var imageOrientations = map[string]blit.Rotation{
	"rotate-0":        blit.RotationNone,
	"rotate-90":       blit.Rotation90,
	"rotate-180":      blit.Rotation180,
	"rotate-270":      blit.Rotation270,
	"flip-rotate-0":   blit.RotationFlipHorizontal,
	"flip-rotate-90":  blit.RotationUpperLeftLowerRight,
	"flip-rotate-180": blit.RotationFlipVertical,
	"flip-rotate-270": blit.RotationUpperRightLowerLeft,
}

// ParseOrientationTag converts an image-orientation tag such as
// "rotate-90" or "flip-rotate-270" into a rotation.
func ParseOrientationTag(tag string) (blit.Rotation, error) {
	r, ok := imageOrientations[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return blit.RotationNone, fmt.Errorf("unknown image orientation %q", tag)
	}
	return r, nil
}
