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

package kern

import (
	"bytes"
	"fmt"
	"math/bits"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/glyph"
	sfntkern "seehuhn.de/go/sfnt/kern"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/keep"
)

// kernSubtable is a subtable of a version 0 "kern" table.  Only the
// pairs of format 0 subtables are decoded.
type kernSubtable struct {
	coverage uint16
	pairs    []kernPair // format 0 only
	raw      []byte     // all other formats, including the header
}

type kernPair struct {
	glyph.Pair
	value []byte
}

func readKern(data []byte) ([]*kernSubtable, error) {
	if len(data) < 4 {
		return nil, errKernMalformed("header too short")
	}
	if version := u16(data); version != 0 {
		return nil, &parser.NotSupportedError{
			SubSystem: "trial/kern",
			Feature:   fmt.Sprintf("kern table version %d", version),
		}
	}
	nTables := int(u16(data[2:]))

	var res []*kernSubtable
	pos := 4
	for i := 0; i < nTables; i++ {
		if pos+6 > len(data) {
			return nil, errKernMalformed("subtable header too short")
		}
		length := int(u16(data[pos+2:]))
		coverage := u16(data[pos+4:])
		format := coverage >> 8

		if format == 0 {
			if pos+14 > len(data) {
				return nil, errKernMalformed("subtable too short")
			}
			nPairs := int(u16(data[pos+6:]))
			// The length field overflows for large subtables, so the
			// size is computed from the number of pairs.
			end := pos + 14 + 6*nPairs
			if end > len(data) {
				return nil, errKernMalformed("subtable too short")
			}
			sub := &kernSubtable{coverage: coverage}
			for p := pos + 14; p < end; p += 6 {
				sub.pairs = append(sub.pairs, kernPair{
					Pair: glyph.Pair{
						Left:  glyph.ID(u16(data[p:])),
						Right: glyph.ID(u16(data[p+2:])),
					},
					value: data[p+4 : p+6],
				})
			}
			res = append(res, sub)
			pos = end
		} else {
			if length < 6 || pos+length > len(data) {
				return nil, errKernMalformed("invalid subtable length")
			}
			res = append(res, &kernSubtable{
				coverage: coverage,
				raw:      data[pos : pos+length],
			})
			pos += length
		}
	}
	return res, nil
}

func encodeKern(subtables []*kernSubtable) []byte {
	res := []byte{0, 0, byte(len(subtables) >> 8), byte(len(subtables))}
	for _, sub := range subtables {
		if sub.raw != nil {
			res = append(res, sub.raw...)
			continue
		}

		nPairs := len(sub.pairs)
		length := 14 + 6*nPairs
		searchRange, entrySelector, rangeShift := searchParams(nPairs)
		res = append(res,
			0, 0, // version
			byte(length>>8), byte(length),
			byte(sub.coverage>>8), byte(sub.coverage),
			byte(nPairs>>8), byte(nPairs),
			byte(searchRange>>8), byte(searchRange),
			byte(entrySelector>>8), byte(entrySelector),
			byte(rangeShift>>8), byte(rangeShift))
		for _, pair := range sub.pairs {
			res = append(res,
				byte(pair.Left>>8), byte(pair.Left),
				byte(pair.Right>>8), byte(pair.Right))
			res = append(res, pair.value...)
		}
	}
	return res
}

// searchParams computes the binary search fields of a format 0 subtable.
func searchParams(nPairs int) (searchRange, entrySelector, rangeShift int) {
	if nPairs == 0 {
		return 0, 0, 0
	}
	entrySelector = bits.Len(uint(nPairs)) - 1
	searchRange = 6 << entrySelector
	rangeShift = 6*nPairs - searchRange
	return searchRange, entrySelector, rangeShift
}

// PruneKern removes all kerning pairs which involve a glyph outside ks
// from the format 0 subtables of a version 0 "kern" table.
// The return value is the number of pairs removed.
func PruneKern(data []byte, ks *keep.Set) ([]byte, int, error) {
	subtables, err := readKern(data)
	if err != nil {
		return nil, 0, err
	}

	removed := 0
	for _, sub := range subtables {
		if sub.raw != nil {
			continue
		}
		pairs := sub.pairs[:0:0]
		for _, pair := range sub.pairs {
			if ks.Contains(pair.Left) && ks.Contains(pair.Right) {
				pairs = append(pairs, pair)
			}
		}
		removed += len(sub.pairs) - len(pairs)
		sub.pairs = pairs
	}

	return encodeKern(subtables), removed, nil
}

// KernPairs lists the horizontal kerning pairs of a version 0 "kern"
// table, sorted by glyph ID.
func KernPairs(data []byte) ([]glyph.Pair, error) {
	info, err := sfntkern.Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	res := make([]glyph.Pair, 0, len(info))
	for pair := range info {
		res = append(res, pair)
	}
	slices.SortFunc(res, func(a, b glyph.Pair) int {
		if a.Left != b.Left {
			return int(a.Left) - int(b.Left)
		}
		return int(a.Right) - int(b.Right)
	})
	return res, nil
}

func u16(p []byte) uint16 {
	return uint16(p[0])<<8 | uint16(p[1])
}

func errKernMalformed(reason string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial/kern",
		Reason:    reason,
	}
}
