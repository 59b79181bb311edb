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
	"fmt"
	"sort"

	"seehuhn.de/go/sfnt/glyph"
)

// KernPair is a kerning pair with a horizontal adjustment.
type KernPair struct {
	Left, Right glyph.ID
	Adjust      int16
}

// GPOS returns a "GPOS" table with a single "kern" feature.  The feature
// uses one lookup with one pair adjustment subtable of format 1.  If
// extension is true, the subtable is wrapped in an extension subtable.
//
// First glyphs with identical lists of pairs share a PairSet table.
func GPOS(pairs []KernPair, extension bool) []byte {
	byFirst := make(map[glyph.ID][]KernPair)
	for _, pair := range pairs {
		byFirst[pair.Left] = append(byFirst[pair.Left], pair)
	}
	var firsts []glyph.ID
	for gid, list := range byFirst {
		firsts = append(firsts, gid)
		sort.Slice(list, func(i, j int) bool { return list[i].Right < list[j].Right })
	}
	sort.Slice(firsts, func(i, j int) bool { return firsts[i] < firsts[j] })

	// PairSet tables, shared where possible
	var setData [][]byte
	setIndex := make(map[string]int)
	firstSet := make([]int, len(firsts))
	for i, gid := range firsts {
		var set []byte
		set = append16(set, len(byFirst[gid]))
		for _, pair := range byFirst[gid] {
			set = append16(set, int(pair.Right))
			set = append16(set, int(uint16(pair.Adjust)))
		}
		key := fmt.Sprintf("%x", set)
		idx, ok := setIndex[key]
		if !ok {
			idx = len(setData)
			setIndex[key] = idx
			setData = append(setData, set)
		}
		firstSet[i] = idx
	}

	// PairPos format 1, followed by the coverage table and the PairSets
	n := len(firsts)
	covPos := 10 + 2*n
	setPos := covPos + 4 + 2*n
	setOffsets := make([]int, len(setData))
	for i, set := range setData {
		setOffsets[i] = setPos
		setPos += len(set)
	}
	var sub []byte
	sub = append16(sub, 1)      // format
	sub = append16(sub, covPos) // coverage offset
	sub = append16(sub, 0x0004) // value format 1: XAdvance
	sub = append16(sub, 0)      // value format 2
	sub = append16(sub, n)
	for i := range firsts {
		sub = append16(sub, setOffsets[firstSet[i]])
	}
	sub = append16(sub, 1) // coverage format 1
	sub = append16(sub, n)
	for _, gid := range firsts {
		sub = append16(sub, int(gid))
	}
	for _, set := range setData {
		sub = append(sub, set...)
	}

	var lookup []byte
	if extension {
		lookup = append16(lookup, 9)
		lookup = append16(lookup, 0)
		lookup = append16(lookup, 1)
		lookup = append16(lookup, 8)
		lookup = append16(lookup, 1) // extension format
		lookup = append16(lookup, 2) // extension lookup type
		lookup = append(lookup, 0, 0, 0, 8)
	} else {
		lookup = append16(lookup, 2)
		lookup = append16(lookup, 0)
		lookup = append16(lookup, 1)
		lookup = append16(lookup, 8)
	}
	lookup = append(lookup, sub...)

	res := []byte{
		0, 1, 0, 0, // version 1.0
		0, 10, // script list
		0, 30, // feature list
		0, 44, // lookup list

		// script list
		0, 1, 'D', 'F', 'L', 'T', 0, 8,
		0, 4, 0, 0, // script table
		0, 0, 0xFF, 0xFF, 0, 1, 0, 0, // default LangSys

		// feature list
		0, 1, 'k', 'e', 'r', 'n', 0, 8,
		0, 0, 0, 1, 0, 0, // feature table

		// lookup list
		0, 1, 0, 4,
	}
	return append(res, lookup...)
}

// Kern returns a version 0 "kern" table with a single horizontal format 0
// subtable.
func Kern(pairs []KernPair) []byte {
	pairs = append([]KernPair(nil), pairs...)
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Left != pairs[j].Left {
			return pairs[i].Left < pairs[j].Left
		}
		return pairs[i].Right < pairs[j].Right
	})

	n := len(pairs)
	searchRange := 0
	entrySelector := 0
	if n > 0 {
		for 1<<(entrySelector+1) <= n {
			entrySelector++
		}
		searchRange = 6 << entrySelector
	}

	var res []byte
	res = append16(res, 0) // version
	res = append16(res, 1) // nTables
	res = append16(res, 0) // subtable version
	res = append16(res, 14+6*n)
	res = append16(res, 0x0001) // horizontal, format 0
	res = append16(res, n)
	res = append16(res, searchRange)
	res = append16(res, entrySelector)
	res = append16(res, 6*n-searchRange)
	for _, pair := range pairs {
		res = append16(res, int(pair.Left))
		res = append16(res, int(pair.Right))
		res = append16(res, int(uint16(pair.Adjust)))
	}
	return res
}

func append16(buf []byte, x int) []byte {
	return append(buf, byte(x>>8), byte(x))
}
