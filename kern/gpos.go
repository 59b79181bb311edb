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

// Package kern removes kerning pairs which involve replaced glyphs.
//
// Two kinds of kerning data are supported: pair adjustment lookups
// (format 1) used by the "kern" feature of a "GPOS" table, and format 0
// subtables of a version 0 "kern" table.  Class-based pair adjustments
// and all other lookups are left unchanged.
package kern

import (
	"bytes"
	"fmt"
	"math/bits"
	"sort"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/opentype/coverage"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/keep"
)

// GPOS lookup types
const (
	pairAdjustment = 2
	extensionPos   = 9
)

// pairPos describes a PairPos subtable of format 1.
type pairPos struct {
	pos     int64
	recSize int
}

// firstGlyph connects a first glyph of a PairPos subtable to its PairSet.
type firstGlyph struct {
	gid glyph.ID
	sub *pairPos

	// field is the position of the PairSet offset for this glyph.
	field int64
	set   *pairSet
}

// pairSet is a PairSet table, which can be shared between first glyphs.
type pairSet struct {
	pos     int64
	recSize int

	firsts   []glyph.ID
	keepSome bool // some first glyph is kept

	oldCount, newCount int
}

// gposKerning lists the kerning data of a "GPOS" table.
type gposKerning struct {
	firsts []*firstGlyph
	sets   []*pairSet // ordered by position
}

// readGPOS locates all pair adjustment subtables of format 1 which are
// used by the "kern" feature.
func readGPOS(data []byte) (*gposKerning, error) {
	p := parser.New(bytes.NewReader(data))
	buf, err := p.ReadBytes(10)
	if err != nil {
		return nil, err
	}
	if major := int(buf[0])<<8 | int(buf[1]); major != 1 {
		return nil, &parser.NotSupportedError{
			SubSystem: "trial/kern",
			Feature:   fmt.Sprintf("GPOS version %d", major),
		}
	}
	featureListPos := int64(buf[6])<<8 | int64(buf[7])
	lookupListPos := int64(buf[8])<<8 | int64(buf[9])

	lookups, err := kernLookups(p, featureListPos)
	if err != nil {
		return nil, err
	}
	subtables, err := pairSubtables(p, lookupListPos, lookups)
	if err != nil {
		return nil, err
	}

	res := &gposKerning{}
	setByPos := make(map[int64]*pairSet)
	for _, sub := range subtables {
		err := p.SeekPos(sub.pos + 2)
		if err != nil {
			return nil, err
		}
		buf, err := p.ReadBytes(8)
		if err != nil {
			return nil, err
		}
		coverageOffset := int64(buf[0])<<8 | int64(buf[1])
		valueFormat1 := uint16(buf[2])<<8 | uint16(buf[3])
		valueFormat2 := uint16(buf[4])<<8 | uint16(buf[5])
		pairSetCount := int(buf[6])<<8 | int(buf[7])
		sub.recSize = 2 + valueRecordSize(valueFormat1) + valueRecordSize(valueFormat2)

		offsets := make([]uint16, pairSetCount)
		for i := range offsets {
			offsets[i], err = p.ReadUint16()
			if err != nil {
				return nil, err
			}
		}

		cov, err := coverage.Read(p, sub.pos+coverageOffset)
		if err != nil {
			return nil, err
		}
		gids := make([]glyph.ID, 0, len(cov))
		for gid, idx := range cov {
			if idx < pairSetCount {
				gids = append(gids, gid)
			}
		}
		slices.Sort(gids)

		for _, gid := range gids {
			idx := cov[gid]
			setPos := sub.pos + int64(offsets[idx])
			set := setByPos[setPos]
			if set == nil {
				set = &pairSet{pos: setPos, recSize: sub.recSize}
				setByPos[setPos] = set
				res.sets = append(res.sets, set)
			} else if set.recSize != sub.recSize {
				return nil, &parser.InvalidFontError{
					SubSystem: "trial/kern",
					Reason:    "PairSet used with different value formats",
				}
			}
			set.firsts = append(set.firsts, gid)
			res.firsts = append(res.firsts, &firstGlyph{
				gid:   gid,
				sub:   sub,
				field: sub.pos + 10 + 2*int64(idx),
				set:   set,
			})
		}
	}
	sort.Slice(res.sets, func(i, j int) bool {
		return res.sets[i].pos < res.sets[j].pos
	})

	for _, set := range res.sets {
		err := p.SeekPos(set.pos)
		if err != nil {
			return nil, err
		}
		count, err := p.ReadUint16()
		if err != nil {
			return nil, err
		}
		if set.pos+2+int64(count)*int64(set.recSize) > int64(len(data)) {
			return nil, &parser.InvalidFontError{
				SubSystem: "trial/kern",
				Reason:    "PairSet extends beyond end of table",
			}
		}
		set.oldCount = int(count)
	}

	return res, nil
}

// kernLookups returns the indices of all lookups used by the "kern"
// feature, in increasing order.
func kernLookups(p *parser.Parser, featureListPos int64) ([]uint16, error) {
	err := p.SeekPos(featureListPos)
	if err != nil {
		return nil, err
	}
	featureCount, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	var featureOffsets []uint16
	for i := 0; i < int(featureCount); i++ {
		buf, err := p.ReadBytes(6)
		if err != nil {
			return nil, err
		}
		if string(buf[:4]) == "kern" {
			featureOffsets = append(featureOffsets, uint16(buf[4])<<8|uint16(buf[5]))
		}
	}

	var res []uint16
	for _, offs := range featureOffsets {
		err := p.SeekPos(featureListPos + int64(offs) + 2)
		if err != nil {
			return nil, err
		}
		indices, err := p.ReadUint16Slice()
		if err != nil {
			return nil, err
		}
		for _, idx := range indices {
			if !slices.Contains(res, idx) {
				res = append(res, idx)
			}
		}
	}
	slices.Sort(res)
	return res, nil
}

// pairSubtables returns the PairPos subtables of format 1 in the given
// lookups.  Extension subtables are followed.
func pairSubtables(p *parser.Parser, lookupListPos int64, lookups []uint16) ([]*pairPos, error) {
	err := p.SeekPos(lookupListPos)
	if err != nil {
		return nil, err
	}
	lookupOffsets, err := p.ReadUint16Slice()
	if err != nil {
		return nil, err
	}

	var res []*pairPos
	seen := make(map[int64]bool)
	for _, idx := range lookups {
		if int(idx) >= len(lookupOffsets) {
			return nil, &parser.InvalidFontError{
				SubSystem: "trial/kern",
				Reason:    fmt.Sprintf("invalid lookup index %d", idx),
			}
		}
		lookupPos := lookupListPos + int64(lookupOffsets[idx])
		err := p.SeekPos(lookupPos)
		if err != nil {
			return nil, err
		}
		buf, err := p.ReadBytes(6)
		if err != nil {
			return nil, err
		}
		lookupType := uint16(buf[0])<<8 | uint16(buf[1])
		subtableCount := int(buf[4])<<8 | int(buf[5])
		if lookupType != pairAdjustment && lookupType != extensionPos {
			continue
		}
		subtableOffsets := make([]uint16, subtableCount)
		for i := range subtableOffsets {
			subtableOffsets[i], err = p.ReadUint16()
			if err != nil {
				return nil, err
			}
		}

		for _, offs := range subtableOffsets {
			pos := lookupPos + int64(offs)
			if lookupType == extensionPos {
				err := p.SeekPos(pos)
				if err != nil {
					return nil, err
				}
				buf, err := p.ReadBytes(8)
				if err != nil {
					return nil, err
				}
				extType := uint16(buf[2])<<8 | uint16(buf[3])
				if extType != pairAdjustment {
					continue
				}
				pos += int64(buf[4])<<24 | int64(buf[5])<<16 | int64(buf[6])<<8 | int64(buf[7])
			}

			err := p.SeekPos(pos)
			if err != nil {
				return nil, err
			}
			format, err := p.ReadUint16()
			if err != nil {
				return nil, err
			}
			if format != 1 || seen[pos] {
				continue
			}
			seen[pos] = true
			res = append(res, &pairPos{pos: pos})
		}
	}
	return res, nil
}

// PruneGPOS removes all kerning pairs which involve a glyph outside ks
// from the "kern" feature of a "GPOS" table.  The table is modified in
// place, so that all other lookups remain byte-for-byte unchanged.
// The return value is the number of pairs removed.
//
// PairSet tables which are shared between a kept and a removed first
// glyph are kept for the kept glyph, and the removed glyph is redirected
// to an empty PairSet.
func PruneGPOS(data []byte, ks *keep.Set) ([]byte, int, error) {
	k, err := readGPOS(data)
	if err != nil {
		return nil, 0, err
	}

	for _, first := range k.firsts {
		if ks.Contains(first.gid) {
			first.set.keepSome = true
		}
	}

	res := slices.Clone(data)

	// Compact the PairSets.  Space freed at the end of a PairSet can hold
	// an empty PairSet.
	var empty []int64
	for _, set := range k.sets {
		if !set.keepSome {
			set.newCount = 0
		} else {
			src := set.pos + 2
			dst := set.pos + 2
			for i := 0; i < set.oldCount; i++ {
				rec := data[src : src+int64(set.recSize)]
				second := glyph.ID(rec[0])<<8 | glyph.ID(rec[1])
				if ks.Contains(second) {
					copy(res[dst:], rec)
					dst += int64(set.recSize)
					set.newCount++
				}
				src += int64(set.recSize)
			}
		}
		put16(res[set.pos:], uint16(set.newCount))

		if set.newCount == 0 {
			empty = append(empty, set.pos)
		} else if set.newCount < set.oldCount {
			empty = append(empty, set.pos+2+int64(set.newCount*set.recSize))
		}
	}

	removed := 0
	for _, first := range k.firsts {
		set := first.set
		if ks.Contains(first.gid) {
			removed += set.oldCount - set.newCount
			continue
		}
		removed += set.oldCount
		if set.newCount == 0 {
			continue
		}

		target := int64(-1)
		for _, pos := range empty {
			offs := pos - first.sub.pos
			if offs >= 0 && offs <= 0xFFFF {
				target = pos
				break
			}
		}
		if target < 0 {
			return nil, 0, &parser.NotSupportedError{
				SubSystem: "trial/kern",
				Feature: fmt.Sprintf(
					"glyph %d shares its kerning pairs with a kept glyph", first.gid),
			}
		}
		put16(res[target:], 0)
		put16(res[first.field:], uint16(target-first.sub.pos))
	}

	return res, removed, nil
}

// GPOSPairs lists the kerning pairs in the pair adjustment subtables of
// format 1 which are used by the "kern" feature of a "GPOS" table.
func GPOSPairs(data []byte) ([]glyph.Pair, error) {
	k, err := readGPOS(data)
	if err != nil {
		return nil, err
	}
	var res []glyph.Pair
	for _, first := range k.firsts {
		set := first.set
		for i := 0; i < set.oldCount; i++ {
			rec := data[set.pos+2+int64(i*set.recSize):]
			res = append(res, glyph.Pair{
				Left:  first.gid,
				Right: glyph.ID(rec[0])<<8 | glyph.ID(rec[1]),
			})
		}
	}
	return res, nil
}

func valueRecordSize(format uint16) int {
	return 2 * bits.OnesCount16(format&0x00FF)
}

func put16(p []byte, x uint16) {
	p[0] = byte(x >> 8)
	p[1] = byte(x)
}
