// seehuhn.de/go/trial - make trial versions of OpenType fonts
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package outline replaces the TrueType outlines of glyphs which are not
// kept in a trial font.
//
// Two modes are supported: in [Contours] mode each replaced glyph receives
// a private copy of the replacer's glyph data, in [Components] mode each
// replaced glyph becomes a composite glyph with a single, untransformed
// reference to the replacer.
package outline

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/sfnt/glyf"
	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/head"
	"seehuhn.de/go/sfnt/maxp"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/keep"
)

// Mode selects how replaced glyphs are represented.
type Mode int

// These are the supported modes.
const (
	// Contours copies the replacer's contours into every replaced glyph.
	Contours Mode = iota

	// Components makes every replaced glyph a composite glyph which
	// references the replacer.
	Components
)

func (m Mode) String() string {
	switch m {
	case Contours:
		return "contours"
	case Components:
		return "components"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Substitute replaces all glyphs outside ks, in place.
// The return value is the number of glyphs replaced.
//
// If the replacer is blank, the replaced glyphs are blank as well.
func Substitute(gg glyf.Glyphs, ks *keep.Set, mode Mode) (int, error) {
	err := ks.Check("glyf", len(gg))
	if err != nil {
		return 0, err
	}

	replacer := ks.Replacer()
	orig := gg[replacer]

	count := 0
	for i := range gg {
		gid := glyph.ID(i)
		if ks.Contains(gid) {
			continue
		}
		switch {
		case orig == nil:
			gg[i] = nil
		case mode == Components:
			gg[i] = reference(orig, replacer)
		default:
			gg[i] = clone(orig)
		}
		count++
	}
	return count, nil
}

// clone returns a deep copy of g.
func clone(g *glyf.Glyph) *glyf.Glyph {
	res := &glyf.Glyph{
		Rect16: g.Rect16,
	}
	switch d := g.Data.(type) {
	case glyf.SimpleGlyph:
		res.Data = glyf.SimpleGlyph{
			NumContours: d.NumContours,
			Encoded:     slices.Clone(d.Encoded),
		}
	case glyf.CompositeGlyph:
		comps := make([]glyf.GlyphComponent, len(d.Components))
		for i, c := range d.Components {
			comps[i] = glyf.GlyphComponent{
				Flags:      c.Flags,
				GlyphIndex: c.GlyphIndex,
				Data:       slices.Clone(c.Data),
			}
		}
		res.Data = glyf.CompositeGlyph{
			Components:   comps,
			Instructions: slices.Clone(d.Instructions),
		}
	}
	return res
}

// reference returns a composite glyph which consists of the glyph
// replacer, placed with the identity transformation.
func reference(orig *glyf.Glyph, replacer glyph.ID) *glyf.Glyph {
	comp := &glyf.ComponentUnpacked{
		Child:        replacer,
		Trfm:         matrix.Identity,
		UseMyMetrics: true,
	}
	return &glyf.Glyph{
		Rect16: orig.Rect16,
		Data: glyf.CompositeGlyph{
			Components: []glyf.GlyphComponent{comp.Pack()},
		},
	}
}

// Stats describes the size of a glyph outline.
type Stats struct {
	// Points and Contours count the points and contours of the glyph after
	// all components have been resolved.
	Points, Contours int

	// Depth is the nesting depth of composite glyphs, 0 for simple glyphs.
	Depth int

	// Components is the number of components of a composite glyph.
	Components int
}

// OwnPoints returns the number of points the "glyf" table stores for
// the glyph itself: the number of outline points for a simple glyph,
// the number of components for a composite glyph.
// Variation data for the glyph refers to these points, followed by the
// four phantom points.
func (s *Stats) OwnPoints() int {
	if s.Depth > 0 {
		return s.Components
	}
	return s.Points
}

// GlyphStats computes the outline statistics of glyph gid.
func GlyphStats(gg glyf.Glyphs, gid glyph.ID) (*Stats, error) {
	return glyphStats(gg, gid, make(map[glyph.ID]bool))
}

func glyphStats(gg glyf.Glyphs, gid glyph.ID, seen map[glyph.ID]bool) (*Stats, error) {
	if int(gid) >= len(gg) {
		return nil, errMalformed(fmt.Sprintf("invalid component glyph %d", gid))
	}
	if seen[gid] {
		return nil, errMalformed(fmt.Sprintf("recursive composite glyph %d", gid))
	}
	g := gg[gid]
	if g == nil {
		return &Stats{}, nil
	}

	switch d := g.Data.(type) {
	case glyf.SimpleGlyph:
		n := int(d.NumContours)
		if len(d.Encoded) < 2*n {
			return nil, errMalformed("truncated glyph")
		}
		res := &Stats{Contours: n}
		if n > 0 {
			res.Points = int(d.Encoded[2*n-2])<<8 | int(d.Encoded[2*n-1]) + 1
		}
		return res, nil
	case glyf.CompositeGlyph:
		seen[gid] = true
		defer delete(seen, gid)
		res := &Stats{Components: len(d.Components)}
		for _, c := range d.Components {
			sub, err := glyphStats(gg, c.GlyphIndex, seen)
			if err != nil {
				return nil, err
			}
			res.Points += sub.Points
			res.Contours += sub.Contours
			res.Depth = max(res.Depth, sub.Depth+1)
		}
		return res, nil
	default:
		return nil, errMalformed("unknown glyph type")
	}
}

// Closure returns the glyphs in gids, together with all glyphs used by
// them as components, directly or indirectly.  The result is sorted.
func Closure(gg glyf.Glyphs, gids []glyph.ID) ([]glyph.ID, error) {
	seen := make(map[glyph.ID]bool)
	todo := slices.Clone(gids)
	var res []glyph.ID
	for len(todo) > 0 {
		gid := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if seen[gid] {
			continue
		}
		if int(gid) >= len(gg) {
			return nil, errMalformed(fmt.Sprintf("invalid component glyph %d", gid))
		}
		seen[gid] = true
		res = append(res, gid)

		if g := gg[gid]; g != nil {
			if d, ok := g.Data.(glyf.CompositeGlyph); ok {
				for _, c := range d.Components {
					todo = append(todo, c.GlyphIndex)
				}
			}
		}
	}
	slices.Sort(res)
	return res, nil
}

// Tables holds the binary data of the tables used for TrueType outlines.
type Tables struct {
	Glyf, Loca []byte
	Head       []byte
	Maxp       []byte
}

const (
	headLocaFormatOffset = 50
	headLength           = 54
)

// Decode decodes the glyphs in the "glyf" and "loca" tables of t.
func Decode(t *Tables) (glyf.Glyphs, error) {
	if len(t.Head) < headLength {
		return nil, errMalformed("head table too short")
	}
	info, err := head.Read(bytes.NewReader(t.Head))
	if err != nil {
		return nil, err
	}
	enc := &glyf.Encoded{
		GlyfData:   t.Glyf,
		LocaData:   t.Loca,
		LocaFormat: info.LocaFormat,
	}
	return glyf.Decode(enc)
}

// Rewrite replaces the glyphs outside ks in the "glyf" and "loca" tables
// in t.  The "head" table is updated to the new loca format, and in
// [Components] mode the limits in the "maxp" table are raised to
// accommodate the new composite glyphs.
func Rewrite(t *Tables, ks *keep.Set, mode Mode) (int, error) {
	gg, err := Decode(t)
	if err != nil {
		return 0, err
	}

	count, err := Substitute(gg, ks, mode)
	if err != nil {
		return 0, err
	}

	if mode == Components && count > 0 && t.Maxp != nil {
		st, err := GlyphStats(gg, ks.Replacer())
		if err != nil {
			return 0, err
		}
		t.Maxp, err = raiseLimits(t.Maxp, st)
		if err != nil {
			return 0, err
		}
	}

	enc := gg.Encode()
	t.Glyf = enc.GlyfData
	t.Loca = enc.LocaData
	// head.Info.Encode normalizes the flags, so only the loca format is
	// patched.
	t.Head = slices.Clone(t.Head)
	t.Head[headLocaFormatOffset] = byte(enc.LocaFormat >> 8)
	t.Head[headLocaFormatOffset+1] = byte(enc.LocaFormat)

	return count, nil
}

// raiseLimits makes sure that the "maxp" table allows a composite glyph
// with a single component which resolves to the replacer.
func raiseLimits(data []byte, replacer *Stats) ([]byte, error) {
	info, err := maxp.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	ttf := info.TTF
	if ttf == nil {
		return data, nil
	}

	raise := func(field *uint16, val int) {
		if val > int(*field) {
			*field = uint16(val)
		}
	}
	raise(&ttf.MaxCompositePoints, replacer.Points)
	raise(&ttf.MaxCompositeContours, replacer.Contours)
	raise(&ttf.MaxComponentElements, 1)
	raise(&ttf.MaxComponentDepth, replacer.Depth+1)

	return info.Encode(), nil
}

func errMalformed(reason string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial/outline",
		Reason:    reason,
	}
}
