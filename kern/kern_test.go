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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/parser"

	"seehuhn.de/go/trial/internal/testfont"
	"seehuhn.de/go/trial/keep"
)

var testPairs = []testfont.KernPair{
	{Left: 1, Right: 2, Adjust: -10},
	{Left: 1, Right: 3, Adjust: -20},
	{Left: 1, Right: 6, Adjust: -3},
	{Left: 2, Right: 3, Adjust: 5},
	{Left: 4, Right: 2, Adjust: 7}, // glyphs 4 and 5 share a PairSet
	{Left: 5, Right: 2, Adjust: 7},
}

func TestGPOSPairs(t *testing.T) {
	pairs, err := GPOSPairs(testfont.GPOS(testPairs, false))
	if err != nil {
		t.Fatal(err)
	}
	var want []glyph.Pair
	for _, p := range testPairs {
		want = append(want, glyph.Pair{Left: p.Left, Right: p.Right})
	}
	if d := cmp.Diff(want, pairs); d != "" {
		t.Error(d)
	}
}

func TestPruneGPOS(t *testing.T) {
	cases := []struct {
		keep    *keep.Set
		removed int
		pairs   []glyph.Pair
	}{
		{ // glyph 5 must be redirected away from the PairSet of glyph 4
			keep:    keep.New(1, 2, 3, 4),
			removed: 2,
			pairs:   []glyph.Pair{{Left: 1, Right: 2}, {Left: 1, Right: 3}, {Left: 2, Right: 3}, {Left: 4, Right: 2}},
		},
		{
			keep:    keep.New(1, 2, 3),
			removed: 3,
			pairs:   []glyph.Pair{{Left: 1, Right: 2}, {Left: 1, Right: 3}, {Left: 2, Right: 3}},
		},
		{
			keep:    keep.New(3, 1),
			removed: 5,
			pairs:   []glyph.Pair{{Left: 1, Right: 3}},
		},
	}

	for _, extension := range []bool{false, true} {
		data := testfont.GPOS(testPairs, extension)
		for i, test := range cases {
			out, removed, err := PruneGPOS(data, test.keep)
			if err != nil {
				t.Errorf("%d: %v", i, err)
				continue
			}
			if removed != test.removed {
				t.Errorf("%d: %d pairs removed, expected %d", i, removed, test.removed)
			}
			if len(out) != len(data) {
				t.Errorf("%d: table size changed", i)
			}
			pairs, err := GPOSPairs(out)
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(test.pairs, pairs); d != "" {
				t.Errorf("%d: %s", i, d)
			}
			for _, p := range pairs {
				if !test.keep.Contains(p.Left) || !test.keep.Contains(p.Right) {
					t.Errorf("%d: pair %v survived", i, p)
				}
			}
		}
	}
}

func TestPruneGPOSUnchanged(t *testing.T) {
	data := testfont.GPOS(testPairs, false)
	out, removed, err := PruneGPOS(data, keep.New(1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 || !bytes.Equal(out, data) {
		t.Error("table changed")
	}
}

func TestPruneGPOSNoEmptySet(t *testing.T) {
	data := testfont.GPOS([]testfont.KernPair{
		{Left: 4, Right: 2, Adjust: 7},
		{Left: 5, Right: 2, Adjust: 7},
	}, false)
	_, _, err := PruneGPOS(data, keep.New(2, 4))
	var notSupported *parser.NotSupportedError
	if !errors.As(err, &notSupported) {
		t.Errorf("wrong error %v", err)
	}
}

func TestPruneKern(t *testing.T) {
	data := testfont.Kern(testPairs)

	// append a format 2 subtable, which must be copied unchanged
	other := []byte{0, 0, 0, 14, 0x02, 0x01, 0, 0, 0, 0, 0, 0, 0xAB, 0xCD}
	data = append(data, other...)
	data[3] = 2

	out, removed, err := PruneKern(data, keep.New(1, 2, 3))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("wrong number of removed pairs %d", removed)
	}
	if !bytes.HasSuffix(out, other) {
		t.Error("format 2 subtable changed")
	}

	pairs, err := KernPairs(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []glyph.Pair{{Left: 1, Right: 2}, {Left: 1, Right: 3}, {Left: 2, Right: 3}}
	if d := cmp.Diff(want, pairs); d != "" {
		t.Error(d)
	}

	// the binary search fields for three pairs
	if d := cmp.Diff([]byte{0, 3, 0, 12, 0, 1, 0, 6}, out[10:18]); d != "" {
		t.Error(d)
	}
}

func TestSearchParams(t *testing.T) {
	cases := []struct{ n, searchRange, entrySelector, rangeShift int }{
		{0, 0, 0, 0},
		{1, 6, 0, 0},
		{3, 12, 1, 6},
		{8, 48, 3, 0},
		{9, 48, 3, 6},
	}
	for _, c := range cases {
		sr, es, rs := searchParams(c.n)
		if sr != c.searchRange || es != c.entrySelector || rs != c.rangeShift {
			t.Errorf("%d: got %d %d %d", c.n, sr, es, rs)
		}
	}
}
