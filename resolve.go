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

package trial

import (
	"fmt"
	"strings"

	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/trial/keep"
)

// Selector identifies a glyph, either by name or by the character it
// represents.  If Name is non-empty, the glyph is looked up by name,
// otherwise Char is looked up in the "cmap" table.
type Selector struct {
	Name string
	Char rune
}

// Char returns a selector for the glyph representing the character r.
func Char(r rune) Selector {
	return Selector{Char: r}
}

// Named returns a selector for the glyph with the given name.
func Named(name string) Selector {
	return Selector{Name: name}
}

func (s Selector) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%q (U+%04X)", s.Char, s.Char)
}

// Request describes which glyphs of a font should be kept.
type Request struct {
	// Replacers lists the candidates for the replacer glyph.  Exactly one
	// candidate must be given.
	Replacers []Selector

	// Keep lists the glyphs to keep, in addition to the replacer.
	Keep []Selector

	// Lenient makes Resolve ignore entries in Keep which cannot be found
	// in the font.
	Lenient bool
}

// Resolve converts the glyph selectors in req into a keep set for font f.
//
// The number of replacer selectors is checked before any font table is
// accessed.  If a keep entry cannot be resolved, an
// *UnresolvedKeepGlyphError is returned which lists all unresolved
// entries, unless req.Lenient is set.
func Resolve(f *Font, req *Request) (*keep.Set, error) {
	if len(req.Replacers) != 1 {
		return nil, &AmbiguousReplacerError{Count: len(req.Replacers)}
	}

	res := &resolver{font: f}

	replacer, ok, err := res.lookup(req.Replacers[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnresolvedKeepGlyphError{
			Missing:  req.Replacers,
			Replacer: true,
		}
	}

	var gids []glyph.ID
	var missing []Selector
	for _, sel := range req.Keep {
		gid, ok, err := res.lookup(sel)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, sel)
			continue
		}
		gids = append(gids, gid)
	}
	if missing != nil && !req.Lenient {
		return nil, &UnresolvedKeepGlyphError{Missing: missing}
	}

	return keep.New(replacer, gids...), nil
}

// resolver loads the "cmap" subtable and the glyph names on first use.
type resolver struct {
	font *Font

	cmap      cmap.Subtable
	cmapDone  bool
	nameToGID map[string]glyph.ID
}

// lookup returns the glyph selected by sel.  Characters which map to
// glyph 0 are treated as not found.
func (r *resolver) lookup(sel Selector) (glyph.ID, bool, error) {
	if sel.Name != "" {
		if r.nameToGID == nil {
			glyphNames, err := r.font.GlyphNames()
			if err != nil {
				return 0, false, err
			}
			r.nameToGID = make(map[string]glyph.ID, len(glyphNames))
			for i, name := range glyphNames {
				if name == "" {
					continue
				}
				if _, seen := r.nameToGID[name]; !seen {
					r.nameToGID[name] = glyph.ID(i)
				}
			}
		}
		gid, ok := r.nameToGID[sel.Name]
		return gid, ok, nil
	}

	if !r.cmapDone {
		cmap, err := r.font.cmap()
		if err != nil {
			return 0, false, err
		}
		r.cmap = cmap
		r.cmapDone = true
	}
	if r.cmap == nil {
		return 0, false, nil
	}
	gid := r.cmap.Lookup(sel.Char)
	return gid, gid != 0, nil
}

// AmbiguousReplacerError is returned by [Resolve] if not exactly one
// replacer glyph is specified.
type AmbiguousReplacerError struct {
	Count int
}

func (err *AmbiguousReplacerError) Error() string {
	if err.Count == 0 {
		return "no replacer glyph specified"
	}
	return fmt.Sprintf("%d replacer glyphs specified, need exactly one", err.Count)
}

// UnresolvedKeepGlyphError is returned by [Resolve] if glyphs cannot be
// found in the font.  If Replacer is set, the replacer glyph could not be
// found.
type UnresolvedKeepGlyphError struct {
	Missing  []Selector
	Replacer bool
}

func (err *UnresolvedKeepGlyphError) Error() string {
	nn := make([]string, len(err.Missing))
	for i, sel := range err.Missing {
		nn[i] = sel.String()
	}
	what := "glyphs to keep"
	if err.Replacer {
		what = "replacer glyph"
	}
	return what + " not found: " + strings.Join(nn, ", ")
}
