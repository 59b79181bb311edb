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

	"seehuhn.de/go/sfnt/glyf"
	"seehuhn.de/go/sfnt/head"
	"seehuhn.de/go/sfnt/header"
	"seehuhn.de/go/sfnt/maxp"
)

// Variable returns a variable version of the Go Regular font.  The glyph
// outlines are unchanged.  The font has "gvar", "HVAR", "vhea", "vmtx"
// and "VVAR" tables, using a single axis and a single region.
//
// The "gvar" data of every glyph moves the advance phantom point by
// 10+gid%50 units, so that every glyph has different variation data.
// The delta-set index maps of "HVAR" and "VVAR" map every glyph to a
// delta-set of its own.
func Variable() []byte {
	_, tables := Tables()
	numGlyphs := numGlyphsOf(tables)

	headInfo, err := head.Read(bytes.NewReader(tables["head"]))
	if err != nil {
		panic(err)
	}
	gg, err := glyf.Decode(&glyf.Encoded{
		GlyfData:   tables["glyf"],
		LocaData:   tables["loca"],
		LocaFormat: headInfo.LocaFormat,
	})
	if err != nil {
		panic(err)
	}
	ownPoints := make([]int, len(gg))
	for gid, g := range gg {
		if g == nil {
			continue
		}
		switch d := g.Data.(type) {
		case glyf.SimpleGlyph:
			n := int(d.NumContours)
			if n > 0 {
				ownPoints[gid] = int(d.Encoded[2*n-2])<<8 | int(d.Encoded[2*n-1]) + 1
			}
		case glyf.CompositeGlyph:
			ownPoints[gid] = len(d.Components)
		}
	}

	tables["gvar"] = gvar(ownPoints)
	tables["HVAR"] = metricsVariations(numGlyphs, false)
	tables["vhea"], tables["vmtx"] = verticalMetrics(numGlyphs)
	tables["VVAR"] = metricsVariations(numGlyphs, true)

	return Assemble(header.ScalerTypeTrueType, tables)
}

// CFF2 returns a CFF2-based version of the Go Regular font, with an
// "HVAR" table as in [Variable].  All other tables except for the
// outlines are taken from Go Regular.
//
// Every glyph is a rectangle, drawn using one global and one local
// subroutine.
func CFF2() []byte {
	_, tables := Tables()
	numGlyphs := numGlyphsOf(tables)

	var charStrings [][]byte
	for gid := 0; gid < numGlyphs; gid++ {
		var code []byte
		code = append(code, Type2Int(50+gid%100)...)
		code = append(code, Type2Int(0)...)
		code = append(code, 21) // rmoveto
		code = append(code, Type2Int(-107)...)
		code = append(code, 29) // callgsubr
		code = append(code, Type2Int(-107)...)
		code = append(code, 10) // callsubr
		charStrings = append(charStrings, code)
	}
	gsubrs := [][]byte{
		append(Type2Int(100), 6), // 100 hlineto
	}
	subrs := [][]byte{
		// 200 vlineto -100 hlineto
		append(append(append(Type2Int(200), 7), Type2Int(-100)...), 6),
	}

	const topSize = 13
	gsubrIndex := cff2Index(gsubrs)
	csIndex := cff2Index(charStrings)
	private := append(dictInt(6), 19) // Subrs

	csPos := 5 + topSize + len(gsubrIndex)
	fdArrayPos := csPos + len(csIndex)
	fontDict := append(append(dictInt(len(private)), dictInt(0)...), 18)
	privatePos := fdArrayPos + len(cff2Index([][]byte{fontDict}))
	fontDict = append(append(dictInt(len(private)), dictInt(privatePos)...), 18)

	var top []byte
	top = append(top, dictInt(csPos)...)
	top = append(top, 17) // CharStrings
	top = append(top, dictInt(fdArrayPos)...)
	top = append(top, 12, 36) // FDArray

	cff2 := []byte{2, 0, 5, 0, topSize}
	cff2 = append(cff2, top...)
	cff2 = append(cff2, gsubrIndex...)
	cff2 = append(cff2, csIndex...)
	cff2 = append(cff2, cff2Index([][]byte{fontDict})...)
	cff2 = append(cff2, private...)
	cff2 = append(cff2, cff2Index(subrs)...)

	for _, name := range []string{"glyf", "loca", "fpgm", "prep", "cvt "} {
		delete(tables, name)
	}
	tables["CFF2"] = cff2
	tables["maxp"] = (&maxp.Info{NumGlyphs: numGlyphs}).Encode()
	tables["HVAR"] = metricsVariations(numGlyphs, false)

	return Assemble(header.ScalerTypeCFF, tables)
}

func numGlyphsOf(tables map[string][]byte) int {
	info, err := maxp.Read(bytes.NewReader(tables["maxp"]))
	if err != nil {
		panic(err)
	}
	return info.NumGlyphs
}

// gvar returns a "gvar" table with one shared tuple.  Glyph gid has
// ownPoints[gid] points before the phantom points.
func gvar(ownPoints []int) []byte {
	n := len(ownPoints)
	sharedTuplesOffset := 20 + 4*(n+1)
	dataOffset := sharedTuplesOffset + 2

	var data []byte
	offs := make([]int, n+1)
	for gid, own := range ownPoints {
		offs[gid] = len(data)
		p := own + 1 // advance phantom point
		data = append(data,
			0, 1,                         // one tuple
			0, 8,                         // serialized data offset
			0, 7,                         // variationDataSize
			0x20, 0,                      // private point numbers, shared tuple 0
			1, 0x80, byte(p>>8), byte(p), // point p
			0x00, byte(10+gid%50),        // x delta
			0x80,                         // y delta 0
		)
	}
	offs[n] = len(data)

	var res []byte
	res = append16(res, 1) // majorVersion
	res = append16(res, 0)
	res = append16(res, 1) // axisCount
	res = append16(res, 1) // sharedTupleCount
	res = append32(res, sharedTuplesOffset)
	res = append16(res, n)
	res = append16(res, 1) // long offsets
	res = append32(res, dataOffset)
	for _, o := range offs {
		res = append32(res, o)
	}
	res = append16(res, 0x4000) // peak 1.0
	return append(res, data...)
}

// metricsVariations returns an "HVAR" table, or a "VVAR" table if
// vertical is set.  Glyph gid uses the delta-set with inner index gid.
func metricsVariations(numGlyphs int, vertical bool) []byte {
	hdrSize := 20
	if vertical {
		hdrSize = 24
	}

	var ivs []byte
	ivs = append16(ivs, 1)  // format
	ivs = append32(ivs, 12) // variationRegionListOffset
	ivs = append16(ivs, 1)  // itemVariationDataCount
	ivs = append32(ivs, 22)
	// region list
	ivs = append16(ivs, 1) // axisCount
	ivs = append16(ivs, 1) // regionCount
	ivs = append16(ivs, 0)
	ivs = append16(ivs, 0x4000)
	ivs = append16(ivs, 0x4000)
	// item variation data
	ivs = append16(ivs, numGlyphs)
	ivs = append16(ivs, 0) // wordDeltaCount
	ivs = append16(ivs, 1) // regionIndexCount
	ivs = append16(ivs, 0)
	for gid := 0; gid < numGlyphs; gid++ {
		ivs = append(ivs, byte(int8(gid%100-50)))
	}

	mapOffset := hdrSize + len(ivs)
	res := make([]byte, 0, mapOffset+4+2*numGlyphs)
	res = append16(res, 1) // majorVersion
	res = append16(res, 0)
	res = append32(res, hdrSize)
	res = append32(res, mapOffset) // advance mapping
	for len(res) < hdrSize {
		res = append(res, 0)
	}
	res = append(res, ivs...)

	res = append(res, 0, 0x1F) // format 0, two-byte entries, 16 inner bits
	res = append16(res, numGlyphs)
	for gid := 0; gid < numGlyphs; gid++ {
		res = append16(res, gid)
	}
	return res
}

// verticalMetrics returns "vhea" and "vmtx" tables with one long metric
// record per glyph.
func verticalMetrics(numGlyphs int) (vhea, vmtx []byte) {
	vhea = append32(vhea, 0x00011000)
	vhea = append16(vhea, 800)               // vertTypoAscender
	vhea = append16(vhea, 0xFF38)            // vertTypoDescender -200
	vhea = append16(vhea, 0)                 // vertTypoLineGap
	vhea = append16(vhea, 1006)              // advanceHeightMax
	vhea = append16(vhea, 0)                 // minTopSideBearing
	vhea = append16(vhea, 0)                 // minBottomSideBearing
	vhea = append16(vhea, 1000)              // yMaxExtent
	vhea = append16(vhea, 0)                 // caretSlopeRise
	vhea = append16(vhea, 1)                 // caretSlopeRun
	vhea = append16(vhea, 0)                 // caretOffset
	vhea = append(vhea, make([]byte, 10)...) // reserved, metricDataFormat
	vhea = append16(vhea, numGlyphs)

	for gid := 0; gid < numGlyphs; gid++ {
		vmtx = append16(vmtx, 1000+gid%7)
		vmtx = append16(vmtx, gid%90)
	}
	return vhea, vmtx
}

// cff2Index encodes a CFF2 INDEX, using four-byte offsets.
func cff2Index(items [][]byte) []byte {
	n := len(items)
	res := []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	if n == 0 {
		return res
	}
	res = append(res, 4)
	offs := 1
	for i := 0; i <= n; i++ {
		res = append32(res, offs)
		if i < n {
			offs += len(items[i])
		}
	}
	for _, item := range items {
		res = append(res, item...)
	}
	return res
}

func append32(buf []byte, x int) []byte {
	return append(buf, byte(x>>24), byte(x>>16), byte(x>>8), byte(x))
}
