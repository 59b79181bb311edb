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

// Package hmtx reads and writes "hmtx" and "vmtx" tables and replaces
// the metrics of glyphs which are not kept in a trial font.
//
// The "vmtx" table uses the same layout as "hmtx", with the number of long
// metrics stored at the same position in "vhea" as in "hhea".
//
// https://docs.microsoft.com/en-us/typography/opentype/spec/hmtx
// https://docs.microsoft.com/en-us/typography/opentype/spec/vmtx
package hmtx

import (
	"seehuhn.de/go/sfnt/glyph"
	sfnthmtx "seehuhn.de/go/sfnt/hmtx"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/keep"
)

// Metric is the advance and side bearing of one glyph.
// For "hmtx" tables these are the advance width and left side bearing,
// for "vmtx" tables the advance height and top side bearing.
type Metric struct {
	Advance uint16
	Bearing int16
}

const (
	headerLength      = 36
	advanceMaxOffset  = 10
	numMetricsOffset  = 34
	longMetricRecSize = 4
)

// Decode reads the glyph metrics from a "hhea"/"hmtx" (or "vhea"/"vmtx")
// table pair.
func Decode(header, data []byte, numGlyphs int) ([]Metric, error) {
	numLong, err := numLongMetrics(header, data, numGlyphs)
	if err != nil {
		return nil, err
	}

	mm := make([]Metric, numGlyphs)
	for i := range mm {
		if i < numLong {
			pos := longMetricRecSize * i
			mm[i].Advance = uint16(data[pos])<<8 | uint16(data[pos+1])
		} else {
			mm[i].Advance = mm[numLong-1].Advance
		}
		mm[i].Bearing = bearing(data, numLong, i)
	}
	return mm, nil
}

// DecodeHorizontal reads the glyph metrics from a "hhea"/"hmtx" table
// pair.  The advance widths are decoded by the sfnt library, which also
// checks the version and metric data format of the "hhea" table.
func DecodeHorizontal(hhea, data []byte, numGlyphs int) ([]Metric, error) {
	numLong, err := numLongMetrics(hhea, data, numGlyphs)
	if err != nil {
		return nil, err
	}
	info, err := sfnthmtx.Decode(hhea, data)
	if err != nil {
		return nil, err
	}
	if len(info.Widths) < numGlyphs {
		return nil, errMalformed("table too short")
	}

	mm := make([]Metric, numGlyphs)
	for i := range mm {
		mm[i] = Metric{
			Advance: uint16(info.Widths[i]),
			Bearing: bearing(data, numLong, i),
		}
	}
	return mm, nil
}

// numLongMetrics returns the number of long metric records, limited to
// numGlyphs, and checks that the table is long enough.
func numLongMetrics(header, data []byte, numGlyphs int) (int, error) {
	if len(header) < headerLength {
		return 0, errMalformed("header too short")
	}
	numLong := int(header[numMetricsOffset])<<8 | int(header[numMetricsOffset+1])
	if numLong == 0 && numGlyphs > 0 {
		return 0, errMalformed("no long metrics")
	}
	if numLong > numGlyphs {
		numLong = numGlyphs
	}
	if len(data) < longMetricRecSize*numLong+2*(numGlyphs-numLong) {
		return 0, errMalformed("table too short")
	}
	return numLong, nil
}

// bearing returns the side bearing of glyph i.
func bearing(data []byte, numLong, i int) int16 {
	pos := longMetricRecSize*i + 2
	if i >= numLong {
		pos = longMetricRecSize*numLong + 2*(i-numLong)
	}
	return int16(data[pos])<<8 | int16(data[pos+1])
}

// Encode returns the new metrics table, together with a copy of header
// where the number of long metrics and the maximum advance are updated.
func Encode(header []byte, mm []Metric) (newHeader, data []byte) {
	numLong := len(mm)
	for numLong > 1 && mm[numLong-1].Advance == mm[numLong-2].Advance {
		numLong--
	}

	data = make([]byte, 0, longMetricRecSize*numLong+2*(len(mm)-numLong))
	var advanceMax uint16
	for i, m := range mm {
		if m.Advance > advanceMax {
			advanceMax = m.Advance
		}
		if i < numLong {
			data = append(data, byte(m.Advance>>8), byte(m.Advance))
		}
		data = append(data, byte(m.Bearing>>8), byte(m.Bearing))
	}

	newHeader = append([]byte(nil), header...)
	newHeader[advanceMaxOffset] = byte(advanceMax >> 8)
	newHeader[advanceMaxOffset+1] = byte(advanceMax)
	newHeader[numMetricsOffset] = byte(numLong >> 8)
	newHeader[numMetricsOffset+1] = byte(numLong)
	return newHeader, data
}

// Substitute overwrites the metrics of all glyphs outside ks with the
// metrics of the replacer glyph.  The return value is the number of
// glyphs changed.  The table name is only used in error messages.
func Substitute(table string, mm []Metric, ks *keep.Set) (int, error) {
	err := ks.Check(table, len(mm))
	if err != nil {
		return 0, err
	}

	repl := mm[ks.Replacer()]
	count := 0
	for i := range mm {
		if ks.Contains(glyph.ID(i)) {
			continue
		}
		mm[i] = repl
		count++
	}
	return count, nil
}

// Rewrite decodes a metrics table pair, substitutes the non-kept glyphs
// and returns the re-encoded tables.  The table name is "hmtx" or "vmtx".
func Rewrite(table string, header, data []byte, numGlyphs int, ks *keep.Set) (newHeader, newData []byte, count int, err error) {
	decode := Decode
	if table == "hmtx" {
		decode = DecodeHorizontal
	}
	mm, err := decode(header, data, numGlyphs)
	if err != nil {
		return nil, nil, 0, err
	}
	count, err = Substitute(table, mm, ks)
	if err != nil {
		return nil, nil, 0, err
	}
	newHeader, newData = Encode(header, mm)
	return newHeader, newData, count, nil
}

func errMalformed(reason string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial/hmtx",
		Reason:    reason,
	}
}
