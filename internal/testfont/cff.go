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

package testfont

import (
	"bytes"

	"seehuhn.de/go/sfnt/header"
	"seehuhn.de/go/sfnt/maxp"
	"seehuhn.de/go/sfnt/post"
)

// CFF returns a CFF-based version of the Go Regular font.  All tables
// except for the outlines are taken from Go Regular.
//
// Every glyph is a rectangle.  The charstrings use one global and one
// local subroutine, so that the font can be used to test
// desubroutinization.  The glyph names are stored in a custom charset.
func CFF() []byte {
	_, tables := Tables()

	maxpInfo, err := maxp.Read(bytes.NewReader(tables["maxp"]))
	if err != nil {
		panic(err)
	}
	numGlyphs := maxpInfo.NumGlyphs

	postInfo, err := post.Read(bytes.NewReader(tables["post"]))
	if err != nil {
		panic(err)
	}

	hhea := tables["hhea"]
	hmtx := tables["hmtx"]
	numMetrics := int(hhea[34])<<8 | int(hhea[35])

	var strs, charStrings [][]byte
	charset := []byte{0}
	for gid := 0; gid < numGlyphs; gid++ {
		i := min(gid, numMetrics-1)
		width := int(hmtx[4*i])<<8 | int(hmtx[4*i+1])

		var code []byte
		code = append(code, Type2Int(width)...)
		code = append(code, Type2Int(50+gid%100)...)
		code = append(code, Type2Int(0)...)
		code = append(code, 21) // rmoveto
		code = append(code, Type2Int(-107)...)
		code = append(code, 29) // callgsubr
		code = append(code, Type2Int(-107)...)
		code = append(code, 10) // callsubr
		code = append(code, 14) // endchar
		charStrings = append(charStrings, code)

		if gid > 0 {
			name := ""
			if gid < len(postInfo.Names) {
				name = postInfo.Names[gid]
			}
			sid := 391 + len(strs)
			strs = append(strs, []byte(name))
			charset = append(charset, byte(sid>>8), byte(sid))
		}
	}

	gsubrs := [][]byte{
		append(Type2Int(100), 6, 11), // 100 hlineto return
	}
	subrs := [][]byte{
		// 200 vlineto -100 hlineto return
		append(append(append(Type2Int(200), 7), Type2Int(-100)...), 6, 11),
	}

	hdr := []byte{1, 0, 4, 4}
	names := cffIndex([][]byte{[]byte("GoRegular")})
	strIndex := cffIndex(strs)
	gsubrIndex := cffIndex(gsubrs)
	csIndex := cffIndex(charStrings)
	subrIndex := cffIndex(subrs)
	private := append(dictInt(6), 19) // Subrs

	makeTop := func(charsetPos, csPos, privatePos int) []byte {
		var top []byte
		top = append(top, dictInt(charsetPos)...)
		top = append(top, 15) // charset
		top = append(top, dictInt(csPos)...)
		top = append(top, 17) // CharStrings
		top = append(top, dictInt(len(private))...)
		top = append(top, dictInt(privatePos)...)
		top = append(top, 18) // Private
		return top
	}

	pos := len(hdr) + len(names) + len(cffIndex([][]byte{makeTop(0, 0, 0)})) +
		len(strIndex) + len(gsubrIndex)
	charsetPos := pos
	pos += len(charset)
	csPos := pos
	pos += len(csIndex)
	top := makeTop(charsetPos, csPos, pos)

	var cff []byte
	cff = append(cff, hdr...)
	cff = append(cff, names...)
	cff = append(cff, cffIndex([][]byte{top})...)
	cff = append(cff, strIndex...)
	cff = append(cff, gsubrIndex...)
	cff = append(cff, charset...)
	cff = append(cff, csIndex...)
	cff = append(cff, private...)
	cff = append(cff, subrIndex...)

	for _, name := range []string{"glyf", "loca", "fpgm", "prep", "cvt "} {
		delete(tables, name)
	}
	tables["CFF "] = cff
	tables["maxp"] = (&maxp.Info{NumGlyphs: numGlyphs}).Encode()

	return Assemble(header.ScalerTypeCFF, tables)
}

// Type2Int encodes an integer as a Type 2 charstring operand.
func Type2Int(x int) []byte {
	switch {
	case x >= -107 && x <= 107:
		return []byte{byte(x + 139)}
	case x >= 108 && x <= 1131:
		x -= 108
		return []byte{byte(x>>8 + 247), byte(x)}
	case x >= -1131 && x <= -108:
		x = -x - 108
		return []byte{byte(x>>8 + 251), byte(x)}
	default:
		return []byte{28, byte(x >> 8), byte(x)}
	}
}

// dictInt encodes an integer as a five-byte DICT operand.
func dictInt(x int) []byte {
	return []byte{29, byte(x >> 24), byte(x >> 16), byte(x >> 8), byte(x)}
}

// cffIndex encodes a CFF INDEX, using four-byte offsets.
func cffIndex(items [][]byte) []byte {
	if len(items) == 0 {
		return []byte{0, 0}
	}
	n := len(items)
	res := []byte{byte(n >> 8), byte(n), 4}
	offs := 1
	for i := 0; i <= n; i++ {
		res = append(res, byte(offs>>24), byte(offs>>16), byte(offs>>8), byte(offs))
		if i < n {
			offs += len(items[i])
		}
	}
	for _, item := range items {
		res = append(res, item...)
	}
	return res
}
