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

// Package trial makes trial versions of OpenType fonts.
//
// In a trial font, all glyphs outside a given keep set are replaced by a
// single replacer glyph.  The substitution is carried out consistently in
// all tables which describe glyph outlines, metrics and variations, so that
// the resulting font remains valid.
package trial

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/header"
	"seehuhn.de/go/sfnt/maxp"
)

// Font is an OpenType font, represented as a collection of binary tables.
// Tables which are not modified by a [Maker] are written back unchanged.
type Font struct {
	ScalerType uint32
	Tables     map[string][]byte
}

// Parse reads a font from its binary representation.
func Parse(data []byte) (*Font, error) {
	r := bytes.NewReader(data)
	info, err := header.Read(r)
	if err != nil {
		return nil, err
	}

	tables := make(map[string][]byte, len(info.Toc))
	for name := range info.Toc {
		data, err := info.ReadTableBytes(r, name)
		if err != nil {
			return nil, err
		}
		tables[name] = data
	}

	f := &Font{
		ScalerType: info.ScalerType,
		Tables:     tables,
	}
	return f, nil
}

// ReadFile reads a font from a file.
func ReadFile(fname string) (*Font, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Write writes the binary form of the font to the given writer.
// The checksum adjustment in the "head" table is updated in place.
func (f *Font) Write(w io.Writer) (int64, error) {
	return header.Write(w, f.ScalerType, f.Tables)
}

// Has reports whether the font contains the table with the given name.
func (f *Font) Has(name string) bool {
	_, ok := f.Tables[name]
	return ok
}

// TableNames returns the names of all tables in the font, in sorted order.
func (f *Font) TableNames() []string {
	names := make([]string, 0, len(f.Tables))
	for name := range f.Tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NumGlyphs returns the number of glyphs in the font, as given in the
// "maxp" table.
func (f *Font) NumGlyphs() (int, error) {
	data, ok := f.Tables["maxp"]
	if !ok {
		return 0, errMissingTable("maxp")
	}
	info, err := maxp.Read(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return info.NumGlyphs, nil
}
