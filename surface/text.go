// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/ggtile"
)

// textFace is the bitmap face used for text. Its native line height is
// 13 pixels; text is scaled so that one line spans size document units.
var textFace = basicfont.Face7x13

// MeasureText returns the document-space size of s rendered at size units
// per line. Text is NFC-normalized first so that canonically equivalent
// strings from different replicas measure and render identically.
func MeasureText(s string, size float64) (w, h float64) {
	lines := strings.Split(norm.NFC.String(s), "\n")
	var widest fixed.Int26_6
	for _, line := range lines {
		if adv := font.MeasureString(textFace, line); adv > widest {
			widest = adv
		}
	}
	scale := size / float64(textFace.Height)
	return float64(widest.Ceil()) * scale, float64(len(lines)) * size
}

// DrawText draws s with its top-left corner at origin, size document units
// per line.
func (c *Context) DrawText(origin ggtile.Point, size float64, s string, col color.Color) {
	if s == "" || size <= 0 || col == nil {
		return
	}
	w, h := MeasureText(s, size)
	if w <= 0 {
		return
	}

	lines := strings.Split(norm.NFC.String(s), "\n")
	pw := int(w * float64(textFace.Height) / size)
	ph := len(lines) * textFace.Height
	glyphs := image.NewRGBA(image.Rect(0, 0, pw, ph))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(col),
		Face: textFace,
	}
	for i, line := range lines {
		d.Dot = fixed.P(0, i*textFace.Height+textFace.Ascent)
		d.DrawString(line)
	}

	c.DrawImage(glyphs, ggtile.XYWH(origin.X, origin.Y, w, h))
}
