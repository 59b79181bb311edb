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

// Package cff rewrites the charstrings in "CFF " and "CFF2" tables.
//
// The package decodes a table only as far as needed to access the glyph
// programs: DICT entries, strings, charsets and encodings are kept in
// their original binary form.  [Table.Desubroutinize] inlines all
// subroutine calls, after which [Table.Substitute] can point the
// charstrings of removed glyphs to the replacer's charstring.
//
// https://adobe-type-tools.github.io/font-tech-notes/pdfs/5176.CFF.pdf
// https://adobe-type-tools.github.io/font-tech-notes/pdfs/5177.Type2.pdf
// https://docs.microsoft.com/en-us/typography/opentype/spec/cff2
package cff

import (
	"fmt"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/trial/keep"
)

// Table is a decoded "CFF " or "CFF2" table.
type Table struct {
	IsCFF2 bool

	header []byte
	names  cffIndex // CFF only
	top    cffDict

	strings cffIndex // CFF only
	gsubrs  cffIndex

	charStrings cffIndex

	// charset and encoding hold the binary data of custom charsets and
	// encodings (CFF only).  They are nil if the font uses a predefined
	// charset or encoding.
	charset  []byte
	encoding []byte

	// fontDicts is nil for simple, name-keyed CFF fonts.
	fontDicts []cffDict
	privates  []*privateDict

	// fdIndex gives the font DICT index of every glyph.  This is nil if
	// there is only one Private DICT.
	fdIndex     []int
	hasFDSelect bool

	vstore  []byte // CFF2 only, including the length prefix
	regions []int
}

type privateDict struct {
	dict  cffDict
	subrs cffIndex
}

// Read decodes a "CFF " or "CFF2" table.
func Read(data []byte) (*Table, error) {
	if len(data) < 4 {
		return nil, invalidSince("header too short")
	}
	switch data[0] {
	case 1:
		return readCFF(data)
	case 2:
		return readCFF2(data)
	default:
		return nil, notSupported(fmt.Sprintf("CFF version %d.%d", data[0], data[1]))
	}
}

func readCFF(data []byte) (*Table, error) {
	hdrSize := int(data[2])
	if hdrSize < 4 || hdrSize > len(data) {
		return nil, invalidSince("invalid header size")
	}
	t := &Table{
		header: data[:hdrSize],
	}

	var err error
	pos := hdrSize
	t.names, pos, err = readIndex(data, pos, false)
	if err != nil {
		return nil, err
	}
	if len(t.names) != 1 {
		return nil, notSupported(fmt.Sprintf("CFF table with %d fonts", len(t.names)))
	}
	topDicts, pos, err := readIndex(data, pos, false)
	if err != nil {
		return nil, err
	}
	if len(topDicts) != 1 {
		return nil, invalidSince("wrong number of top DICTs")
	}
	t.top, err = decodeDict(topDicts[0], false)
	if err != nil {
		return nil, err
	}
	t.strings, pos, err = readIndex(data, pos, false)
	if err != nil {
		return nil, err
	}
	t.gsubrs, _, err = readIndex(data, pos, false)
	if err != nil {
		return nil, err
	}

	err = t.readCharStrings(data)
	if err != nil {
		return nil, err
	}
	numGlyphs := len(t.charStrings)

	if offs, _ := t.top.getInt(opCharset, 0); offs > 2 {
		n, err := charsetLength(data, offs, numGlyphs)
		if err != nil {
			return nil, err
		}
		t.charset = data[offs : offs+n]
	}
	if offs, _ := t.top.getInt(opEncoding, 0); offs > 1 {
		n, err := encodingLength(data, offs)
		if err != nil {
			return nil, err
		}
		t.encoding = data[offs : offs+n]
	}

	if t.top.has(opROS) {
		err = t.readFontDicts(data)
		if err != nil {
			return nil, err
		}
		if !t.hasFDSelect {
			return nil, invalidSince("CID-keyed font without FDSelect")
		}
	} else {
		size, offs, ok := t.top.getPair(opPrivate)
		if !ok {
			return nil, invalidSince("missing Private DICT")
		}
		priv, err := readPrivate(data, offs, size, false)
		if err != nil {
			return nil, err
		}
		t.privates = []*privateDict{priv}
	}

	return t, nil
}

func readCFF2(data []byte) (*Table, error) {
	hdrSize := int(data[2])
	if hdrSize < 5 || len(data) < 5 {
		return nil, invalidSince("invalid header size")
	}
	topSize := int(data[3])<<8 | int(data[4])
	if hdrSize+topSize > len(data) {
		return nil, invalidSince("top DICT extends beyond end of table")
	}
	t := &Table{
		IsCFF2: true,
		header: data[:hdrSize],
	}

	var err error
	t.top, err = decodeDict(data[hdrSize:hdrSize+topSize], true)
	if err != nil {
		return nil, err
	}
	t.gsubrs, _, err = readIndex(data, hdrSize+topSize, true)
	if err != nil {
		return nil, err
	}

	if offs, ok := t.top.getInt(opVStore, 0); ok {
		if offs+2 > len(data) {
			return nil, invalidSince("invalid variation store offset")
		}
		length := int(data[offs])<<8 | int(data[offs+1])
		if offs+2+length > len(data) {
			return nil, invalidSince("variation store extends beyond end of table")
		}
		t.vstore = data[offs : offs+2+length]
		t.regions, err = regionCounts(t.vstore[2:])
		if err != nil {
			return nil, err
		}
	}

	err = t.readCharStrings(data)
	if err != nil {
		return nil, err
	}
	err = t.readFontDicts(data)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) readCharStrings(data []byte) error {
	offs, ok := t.top.getInt(opCharStrings, 0)
	if !ok {
		return invalidSince("missing CharStrings")
	}
	var err error
	t.charStrings, _, err = readIndex(data, offs, t.IsCFF2)
	if err != nil {
		return err
	}
	if len(t.charStrings) == 0 {
		return invalidSince("no glyphs")
	}
	return nil
}

// readFontDicts reads the FDArray, FDSelect and all Private DICTs of a
// CID-keyed CFF font or a CFF2 font.
func (t *Table) readFontDicts(data []byte) error {
	offs, ok := t.top.getInt(opFDArray, 0)
	if !ok {
		return invalidSince("missing FDArray")
	}
	fdArray, _, err := readIndex(data, offs, t.IsCFF2)
	if err != nil {
		return err
	}
	if len(fdArray) == 0 {
		return invalidSince("empty FDArray")
	}
	for _, blob := range fdArray {
		fd, err := decodeDict(blob, t.IsCFF2)
		if err != nil {
			return err
		}
		size, offs, ok := fd.getPair(opPrivate)
		if !ok {
			return invalidSince("missing Private DICT")
		}
		priv, err := readPrivate(data, offs, size, t.IsCFF2)
		if err != nil {
			return err
		}
		t.fontDicts = append(t.fontDicts, fd)
		t.privates = append(t.privates, priv)
	}

	if offs, ok := t.top.getInt(opFDSelect, 0); ok {
		t.fdIndex, _, err = decodeFDSelect(data, offs, len(t.charStrings), len(fdArray))
		if err != nil {
			return err
		}
		t.hasFDSelect = true
	} else if len(fdArray) > 1 {
		return invalidSince("missing FDSelect")
	}
	return nil
}

func readPrivate(data []byte, offs, size int, isCFF2 bool) (*privateDict, error) {
	if offs < 0 || size < 0 || offs+size > len(data) {
		return nil, invalidSince("Private DICT extends beyond end of table")
	}
	d, err := decodeDict(data[offs:offs+size], isCFF2)
	if err != nil {
		return nil, err
	}
	priv := &privateDict{dict: d}
	if subrsOffs, ok := d.getInt(opSubrs, 0); ok {
		priv.subrs, _, err = readIndex(data, offs+subrsOffs, isCFF2)
		if err != nil {
			return nil, err
		}
	}
	return priv, nil
}

// regionCounts returns the number of regions for each ItemVariationData
// subtable of an item variation store.
func regionCounts(ivs []byte) ([]int, error) {
	if len(ivs) < 8 {
		return nil, invalidSince("variation store too short")
	}
	count := int(ivs[6])<<8 | int(ivs[7])
	if 8+4*count > len(ivs) {
		return nil, invalidSince("variation store too short")
	}
	res := make([]int, count)
	for i := range res {
		p := ivs[8+4*i:]
		offs := int(p[0])<<24 | int(p[1])<<16 | int(p[2])<<8 | int(p[3])
		if offs+6 > len(ivs) {
			return nil, invalidSince("invalid ItemVariationData offset")
		}
		res[i] = int(ivs[offs+4])<<8 | int(ivs[offs+5])
	}
	return res, nil
}

// NumGlyphs returns the number of glyphs in the font.
func (t *Table) NumGlyphs() int {
	return len(t.charStrings)
}

// CharString returns the charstring of glyph gid.
func (t *Table) CharString(gid glyph.ID) []byte {
	return t.charStrings[gid]
}

// GlyphNames returns the glyph names of a name-keyed CFF font.
// The function returns nil for CID-keyed fonts, CFF2 fonts and fonts
// using one of the predefined expert charsets.
func (t *Table) GlyphNames() []string {
	if t.IsCFF2 || t.fontDicts != nil {
		return nil
	}
	numGlyphs := len(t.charStrings)

	var sids []int
	if t.charset != nil {
		var err error
		sids, err = decodeCharset(t.charset, numGlyphs)
		if err != nil {
			return nil
		}
	} else if cs, _ := t.top.getInt(opCharset, 0); cs == 0 {
		// ISOAdobe charset
		sids = make([]int, numGlyphs)
		for i := range sids {
			sids[i] = i
		}
	} else {
		return nil
	}

	names := make([]string, numGlyphs)
	for gid, sid := range sids {
		switch {
		case sid < len(stdStrings):
			names[gid] = stdStrings[sid]
		case sid-len(stdStrings) < len(t.strings):
			names[gid] = string(t.strings[sid-len(stdStrings)])
		}
	}
	return names
}

// fdFor returns the font DICT index for glyph gid.
func (t *Table) fdFor(gid int) int {
	if t.fdIndex == nil {
		return 0
	}
	return t.fdIndex[gid]
}

// Desubroutinize inlines all subroutine calls and removes the global and
// local subroutines from the table.
func (t *Table) Desubroutinize() error {
	flatteners := make([]*flattener, len(t.privates))
	for i, priv := range t.privates {
		vsindex, _ := priv.dict.getInt(opVSIndex, 0)
		flatteners[i] = &flattener{
			gsubrs:         t.gsubrs,
			subrs:          priv.subrs,
			isCFF2:         t.IsCFF2,
			regions:        t.regions,
			defaultVSIndex: vsindex,
		}
	}

	charStrings := make(cffIndex, len(t.charStrings))
	for gid, code := range t.charStrings {
		flat, err := flatteners[t.fdFor(gid)].flatten(code)
		if err != nil {
			return fmt.Errorf("glyph %d: %w", gid, err)
		}
		charStrings[gid] = flat
	}
	t.charStrings = charStrings

	t.gsubrs = nil
	for _, priv := range t.privates {
		priv.subrs = nil
		priv.dict = priv.dict.remove(opSubrs)
	}
	return nil
}

// Substitute desubroutinizes the table and then lets the charstring of
// every glyph outside ks refer to the replacer's charstring.  In fonts with
// more than one font DICT, the removed glyphs are also moved to the
// replacer's font DICT.  The return value is the number of glyphs
// replaced.
func (t *Table) Substitute(ks *keep.Set) (int, error) {
	table := "CFF "
	if t.IsCFF2 {
		table = "CFF2"
	}
	err := ks.Check(table, len(t.charStrings))
	if err != nil {
		return 0, err
	}

	err = t.Desubroutinize()
	if err != nil {
		return 0, err
	}

	replacer := int(ks.Replacer())
	code := t.charStrings[replacer]
	fd := t.fdFor(replacer)
	if t.fdIndex != nil {
		t.fdIndex = slices.Clone(t.fdIndex)
	}

	count := 0
	for gid := range t.charStrings {
		if ks.Contains(glyph.ID(gid)) {
			continue
		}
		t.charStrings[gid] = code
		if t.fdIndex != nil {
			t.fdIndex[gid] = fd
		}
		count++
	}
	return count, nil
}

// Rewrite decodes a "CFF " or "CFF2" table, substitutes the glyphs outside
// ks and returns the new table data.
func Rewrite(data []byte, ks *keep.Set) ([]byte, int, error) {
	t, err := Read(data)
	if err != nil {
		return nil, 0, err
	}
	count, err := t.Substitute(ks)
	if err != nil {
		return nil, 0, err
	}
	res, err := t.Encode()
	if err != nil {
		return nil, 0, err
	}
	return res, count, nil
}
