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

// Package hvar rewrites the metrics variation tables "HVAR" and "VVAR".
//
// Every glyph outside the keep set is mapped to the delta-set of the
// replacer, so that the metrics of replaced glyphs vary in the same way
// as the replacer's metrics.  The item variation store is not modified.
//
// https://docs.microsoft.com/en-us/typography/opentype/spec/hvar
// https://docs.microsoft.com/en-us/typography/opentype/spec/vvar
package hvar

import (
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/keep"
)

// Offsets of the mapping subtable offsets in the table header.
const (
	advanceMapOffset = 8
	lastHVAROffset   = 16 // rsbMappingOffset
	lastVVAROffset   = 20 // vOrgMappingOffset
)

// Rewrite changes the delta-set index maps of an "HVAR" or "VVAR" table
// such that all glyphs outside ks use the replacer's variation data.
// If the table has no advance mapping, one is added.
//
// The new maps are appended to the table, the space used by the
// original maps is not reclaimed.  The return value is the number of
// glyphs replaced.
func Rewrite(tag string, data []byte, numGlyphs int, ks *keep.Set) ([]byte, int, error) {
	var last int
	switch tag {
	case "HVAR":
		last = lastHVAROffset
	case "VVAR":
		last = lastVVAROffset
	default:
		panic("unexpected table " + tag)
	}
	if len(data) < last+4 {
		return nil, 0, errMalformed(tag, "header too short")
	}
	if major := u16(data); major != 1 {
		return nil, 0, &parser.NotSupportedError{
			SubSystem: "trial/hvar",
			Feature:   fmt.Sprintf("%s version %d", tag, major),
		}
	}
	err := ks.Check(tag, numGlyphs)
	if err != nil {
		return nil, 0, err
	}

	count := 0
	for gid := 0; gid < numGlyphs; gid++ {
		if !ks.Contains(glyph.ID(gid)) {
			count++
		}
	}
	if count == 0 {
		return data, 0, nil
	}

	res := slices.Clone(data)
	for pos := advanceMapOffset; pos <= last; pos += 4 {
		offs := int(u32(data[pos:]))

		var entries []uint32
		if offs == 0 {
			if pos != advanceMapOffset {
				continue
			}
			// implicit mapping: outer index 0, inner index = glyph ID
			entries = make([]uint32, numGlyphs)
			for gid := range entries {
				entries[gid] = uint32(gid)
			}
		} else {
			entries, err = decodeMap(data, offs, numGlyphs)
			if err != nil {
				return nil, 0, errMalformed(tag, err.Error())
			}
		}

		repl := entries[ks.Replacer()]
		for gid := range entries {
			if !ks.Contains(glyph.ID(gid)) {
				entries[gid] = repl
			}
		}

		for len(res)%4 != 0 {
			res = append(res, 0)
		}
		put32(res[pos:], uint32(len(res)))
		res = append(res, encodeMap(entries)...)
	}

	return res, count, nil
}

// decodeMap decodes a DeltaSetIndexMap.  The result has one entry per
// glyph, with the outer index in the high 16 bits and the inner index in
// the low 16 bits.
func decodeMap(data []byte, offs, numGlyphs int) ([]uint32, error) {
	if offs+4 > len(data) {
		return nil, errMapTooShort
	}
	format := data[offs]
	entryFormat := data[offs+1]
	var mapCount int
	pos := offs + 2
	switch format {
	case 0:
		mapCount = int(u16(data[pos:]))
		pos += 2
	case 1:
		if offs+6 > len(data) {
			return nil, errMapTooShort
		}
		mapCount = int(u32(data[pos:]))
		pos += 4
	default:
		return nil, fmt.Errorf("unknown DeltaSetIndexMap format %d", format)
	}
	if mapCount == 0 {
		return nil, errors.New("empty DeltaSetIndexMap")
	}

	entrySize := int(entryFormat>>4&3) + 1
	innerBits := uint(entryFormat&15) + 1
	if mapCount > (len(data)-pos)/entrySize {
		return nil, errMapTooShort
	}

	res := make([]uint32, numGlyphs)
	for gid := range res {
		// glyphs beyond the end of the map use the last entry
		i := min(gid, mapCount-1)
		var entry uint32
		for _, b := range data[pos+i*entrySize : pos+(i+1)*entrySize] {
			entry = entry<<8 | uint32(b)
		}
		outer := entry >> innerBits
		inner := entry & (1<<innerBits - 1)
		res[gid] = outer<<16 | inner
	}
	return res, nil
}

// encodeMap encodes a DeltaSetIndexMap using format 0 or 1 and the
// smallest possible entry size.  Trailing repeated entries are omitted.
func encodeMap(entries []uint32) []byte {
	n := len(entries)
	for n > 1 && entries[n-1] == entries[n-2] {
		n--
	}
	entries = entries[:n]

	var maxOuter, maxInner uint32
	for _, e := range entries {
		maxOuter = max(maxOuter, e>>16)
		maxInner = max(maxInner, e&0xFFFF)
	}
	innerBits := max(bits.Len32(maxInner), 1)
	outerBits := bits.Len32(maxOuter)
	entrySize := (innerBits + outerBits + 7) / 8
	entrySize = max(entrySize, 1)

	var res []byte
	entryFormat := byte(entrySize-1)<<4 | byte(innerBits-1)
	if n <= 0xFFFF {
		res = append(res, 0, entryFormat, byte(n>>8), byte(n))
	} else {
		res = append(res, 1, entryFormat, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	for _, e := range entries {
		packed := (e>>16)<<innerBits | e&0xFFFF
		for i := entrySize - 1; i >= 0; i-- {
			res = append(res, byte(packed>>(8*i)))
		}
	}
	return res
}

var errMapTooShort = errors.New("DeltaSetIndexMap too short")

func u16(p []byte) uint16 {
	return uint16(p[0])<<8 | uint16(p[1])
}

func u32(p []byte) uint32 {
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}

func put32(p []byte, x uint32) {
	p[0] = byte(x >> 24)
	p[1] = byte(x >> 16)
	p[2] = byte(x >> 8)
	p[3] = byte(x)
}

func errMalformed(tag, reason string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial/hvar",
		Reason:    tag + ": " + reason,
	}
}
