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

// Package gvar rewrites the glyph variation data of TrueType fonts.
//
// The table is decoded only down to the per-glyph variation data.  The
// variation data of individual glyphs is only parsed when variations for
// composite replacement glyphs need to be computed.
//
// https://docs.microsoft.com/en-us/typography/opentype/spec/gvar
package gvar

import (
	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/keep"
)

// Table is a decoded "gvar" table.
type Table struct {
	AxisCount    int
	SharedTuples [][]int16

	// Data holds the GlyphVariationData of every glyph.  An empty entry
	// means that the glyph has no variations.
	Data [][]byte
}

const headerSize = 20

// Decode decodes a "gvar" table.
func Decode(data []byte) (*Table, error) {
	if len(data) < headerSize {
		return nil, errMalformed("header too short")
	}
	if major := u16(data); major != 1 {
		return nil, &parser.NotSupportedError{
			SubSystem: "trial/gvar",
			Feature:   "gvar table version",
		}
	}
	axisCount := int(u16(data[4:]))
	sharedTupleCount := int(u16(data[6:]))
	sharedTuplesOffset := int(u32(data[8:]))
	glyphCount := int(u16(data[12:]))
	flags := u16(data[14:])
	dataOffset := int(u32(data[16:]))

	t := &Table{
		AxisCount: axisCount,
	}

	if sharedTupleCount > 0 {
		end := sharedTuplesOffset + 2*axisCount*sharedTupleCount
		if end > len(data) {
			return nil, errMalformed("shared tuples extend beyond end of table")
		}
		p := data[sharedTuplesOffset:]
		t.SharedTuples = make([][]int16, sharedTupleCount)
		for i := range t.SharedTuples {
			tuple := make([]int16, axisCount)
			for j := range tuple {
				tuple[j] = int16(u16(p))
				p = p[2:]
			}
			t.SharedTuples[i] = tuple
		}
	}

	longOffsets := flags&1 != 0
	offsSize := 2
	if longOffsets {
		offsSize = 4
	}
	if headerSize+(glyphCount+1)*offsSize > len(data) {
		return nil, errMalformed("offsets extend beyond end of table")
	}
	offs := make([]int, glyphCount+1)
	for i := range offs {
		if longOffsets {
			offs[i] = int(u32(data[headerSize+4*i:]))
		} else {
			offs[i] = 2 * int(u16(data[headerSize+2*i:]))
		}
	}

	t.Data = make([][]byte, glyphCount)
	for i := range t.Data {
		start := dataOffset + offs[i]
		end := dataOffset + offs[i+1]
		if start > end || end > len(data) {
			return nil, errMalformed("invalid glyph variation data offsets")
		}
		t.Data[i] = data[start:end]
	}
	return t, nil
}

// Encode returns the binary form of the table.
func (t *Table) Encode() []byte {
	glyphCount := len(t.Data)

	total := 0
	longOffsets := false
	for _, d := range t.Data {
		total += len(d)
		if len(d)%2 != 0 {
			longOffsets = true
		}
	}
	if total > 2*0xFFFF {
		longOffsets = true
	}

	offsSize := 2
	var flags uint16
	if longOffsets {
		offsSize = 4
		flags = 1
	}
	sharedTuplesOffset := headerSize + (glyphCount+1)*offsSize
	dataOffset := sharedTuplesOffset + 2*t.AxisCount*len(t.SharedTuples)

	res := make([]byte, dataOffset, dataOffset+total)
	put16(res[0:], 1)
	put16(res[2:], 0)
	put16(res[4:], uint16(t.AxisCount))
	put16(res[6:], uint16(len(t.SharedTuples)))
	put32(res[8:], uint32(sharedTuplesOffset))
	put16(res[12:], uint16(glyphCount))
	put16(res[14:], flags)
	put32(res[16:], uint32(dataOffset))

	pos := 0
	for i, d := range t.Data {
		if longOffsets {
			put32(res[headerSize+4*i:], uint32(pos))
		} else {
			put16(res[headerSize+2*i:], uint16(pos/2))
		}
		pos += len(d)
	}
	if longOffsets {
		put32(res[headerSize+4*glyphCount:], uint32(pos))
	} else {
		put16(res[headerSize+2*glyphCount:], uint16(pos/2))
	}

	p := res[sharedTuplesOffset:]
	for _, tuple := range t.SharedTuples {
		for _, x := range tuple {
			put16(p, uint16(x))
			p = p[2:]
		}
	}

	for _, d := range t.Data {
		res = append(res, d...)
	}
	return res
}

// Substitute replaces the variation data of all glyphs outside ks.
//
// If replacerPoints is negative, every replaced glyph receives a copy of
// the replacer's variation data.  This is correct if the replaced glyphs
// have the same outline as the replacer.  Otherwise the replaced glyphs
// are assumed to be composite glyphs with a single reference to the
// replacer, and replacerPoints must give the number of points stored for
// the replacer itself in the "glyf" table.  A replacer without own points
// is blank; the replaced glyphs are then blank as well and receive a copy
// of the replacer's data.
//
// The return value is the number of glyphs replaced.
func (t *Table) Substitute(ks *keep.Set, replacerPoints int) (int, error) {
	err := ks.Check("gvar", len(t.Data))
	if err != nil {
		return 0, err
	}

	repl := t.Data[ks.Replacer()]
	if replacerPoints > 0 && len(repl) > 0 {
		repl, err = t.composite(repl, replacerPoints)
		if err != nil {
			return 0, err
		}
	}

	count := 0
	for i := range t.Data {
		if ks.Contains(glyph.ID(i)) {
			continue
		}
		t.Data[i] = repl
		count++
	}
	return count, nil
}

// Rewrite decodes a "gvar" table, substitutes the glyphs outside ks and
// returns the new table data.  See [Table.Substitute] for the meaning of
// replacerPoints.
func Rewrite(data []byte, ks *keep.Set, replacerPoints int) ([]byte, int, error) {
	t, err := Decode(data)
	if err != nil {
		return nil, 0, err
	}
	count, err := t.Substitute(ks, replacerPoints)
	if err != nil {
		return nil, 0, err
	}
	return t.Encode(), count, nil
}

func u16(p []byte) uint16 {
	return uint16(p[0])<<8 | uint16(p[1])
}

func u32(p []byte) uint32 {
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}

func put16(p []byte, x uint16) {
	p[0] = byte(x >> 8)
	p[1] = byte(x)
}

func put32(p []byte, x uint32) {
	p[0] = byte(x >> 24)
	p[1] = byte(x >> 16)
	p[2] = byte(x >> 8)
	p[3] = byte(x)
}

func errMalformed(reason string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial/gvar",
		Reason:    reason,
	}
}
