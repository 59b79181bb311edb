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
	"bytes"

	"seehuhn.de/go/postscript/type1/names"

	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/parser"
	"seehuhn.de/go/sfnt/post"

	"seehuhn.de/go/trial/cff"
)

// GlyphNames returns the glyph names of the font.
//
// Names are taken from the charset of a name-keyed "CFF " table, or else
// from the "post" table.  Glyphs without a name, or with a name already
// used by an earlier glyph, are named after the character they are mapped
// to by the "cmap" table, where possible.  Glyphs for which no name can be
// found are represented by the empty string.
func (f *Font) GlyphNames() ([]string, error) {
	numGlyphs, err := f.NumGlyphs()
	if err != nil {
		return nil, err
	}

	glyphNames := make([]string, numGlyphs)
	copy(glyphNames, f.storedGlyphNames())
	if numGlyphs > 0 {
		glyphNames[0] = ".notdef"
	}

	used := make(map[string]bool)
	complete := true
	for i, name := range glyphNames {
		if used[name] {
			glyphNames[i] = ""
		}
		if glyphNames[i] == "" {
			complete = false
		} else {
			used[name] = true
		}
	}
	if complete {
		return glyphNames, nil
	}

	cmap, err := f.cmap()
	if err != nil || cmap == nil {
		return glyphNames, nil
	}
	a, b := cmap.CodeRange()
	for r := a; r <= b; r++ {
		gid := cmap.Lookup(r)
		if int(gid) >= numGlyphs || glyphNames[gid] != "" {
			// This includes the case of unmapped runes (gid == 0).
			continue
		}
		name := names.FromUnicode(r)
		if !used[name] {
			glyphNames[gid] = name
			used[name] = true
		}
	}
	return glyphNames, nil
}

// storedGlyphNames returns the glyph names stored in the font, or nil if
// the font does not include glyph names.
func (f *Font) storedGlyphNames() []string {
	if data, ok := f.Tables["CFF "]; ok {
		cffTable, err := cff.Read(data)
		if err == nil {
			if nn := cffTable.GlyphNames(); nn != nil {
				return nn
			}
		}
	}

	if data, ok := f.Tables["post"]; ok {
		info, err := post.Read(bytes.NewReader(data))
		if err == nil {
			return info.Names
		}
	}
	return nil
}

// cmap returns the best available subtable of the "cmap" table.
// If the font has no "cmap" table, nil is returned.
func (f *Font) cmap() (cmap.Subtable, error) {
	data, ok := f.Tables["cmap"]
	if !ok {
		return nil, nil
	}
	table, err := cmap.Decode(data)
	if err != nil {
		return nil, err
	}
	return table.GetBest()
}

func errMissingTable(name string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial",
		Reason:    "missing \"" + name + "\" table",
	}
}
