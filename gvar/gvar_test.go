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

package gvar

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/trial/keep"
)

// replacerAll has one tuple which uses the shared tuple 0 and private
// point numbers referring to all points of a glyph with three points.
var replacerAll = []byte{
	0x00, 0x01, 0x00, 0x08,
	0x00, 13, 0x20, 0x00,
	0,                                  // all points
	0x02, 1, 2, 3, 0x80, 0x00, 10, 0x81, // x: 1 2 3 0 10 0 0
	0x84, 0x00, 5, 0x80, // y: 0 0 0 0 0 5 0
}

// replacerShared has one tuple with an embedded peak, using the shared
// point numbers 3 and 4.
var replacerShared = []byte{
	0x80, 0x01, 0x00, 10,
	0x00, 6, 0x80, 0x00, 0x40, 0x00,
	2, 0x01, 3, 1, // points 3 4
	0x00, 7, 0x80, // x: 7 0
	0x80, 0x00, 0xFD, // y: 0 -3
}

func TestComposite(t *testing.T) {
	cases := []struct {
		in, out []byte
	}{
		{
			in: replacerAll,
			out: []byte{
				0, 1, 0, 8,
				0, 9, 0x20, 0x00,
				0,
				0x81, 0x00, 10, 0x81, // x: 0 0 10 0 0
				0x82, 0x01, 5, 0x00, // y: 0 0 0 5 0
			},
		},
		{
			in: replacerShared,
			out: []byte{
				0, 1, 0, 10,
				0, 9, 0xA0, 0x00, 0x40, 0x00,
				0,
				0x01, 0x00, 7, 0x82, // x: 0 7 0 0 0
				0x81, 0x00, 0xFD, 0x81, // y: 0 0 -3 0 0
			},
		},
	}

	tbl := &Table{AxisCount: 1}
	for i, test := range cases {
		out, err := tbl.composite(test.in, 3)
		if err != nil {
			t.Errorf("%d: %v", i, err)
			continue
		}
		if d := cmp.Diff(test.out, out); d != "" {
			t.Errorf("%d: %s", i, d)
		}
	}
}

func TestCompositeNoPhantomDeltas(t *testing.T) {
	tbl := &Table{AxisCount: 1}

	// With 5 own points, the shared points 3 and 4 are outline points.
	out, err := tbl.composite(replacerShared, 5)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("unexpected variation data % x", out)
	}
}

func TestSubstitute(t *testing.T) {
	other := []byte{0, 0, 0, 4}
	for _, replacerPoints := range []int{-1, 3} {
		tbl := &Table{
			AxisCount:    1,
			SharedTuples: [][]int16{{0x4000}},
			Data:         [][]byte{other, replacerAll, other, nil},
		}
		count, err := tbl.Substitute(keep.New(1, 0), replacerPoints)
		if err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("wrong count %d", count)
		}
		if !bytes.Equal(tbl.Data[0], other) || !bytes.Equal(tbl.Data[1], replacerAll) {
			t.Error("kept glyphs changed")
		}

		want := replacerAll
		if replacerPoints >= 0 {
			want, _ = tbl.composite(replacerAll, replacerPoints)
		}
		for _, gid := range []int{2, 3} {
			if !bytes.Equal(tbl.Data[gid], want) {
				t.Errorf("%d: wrong data for glyph %d: % x", replacerPoints, gid, tbl.Data[gid])
			}
		}
	}
}

func TestSubstituteBlank(t *testing.T) {
	// one tuple over the four phantom points of an empty glyph
	blank := []byte{
		0x00, 0x01, 0x00, 0x08,
		0x00, 7, 0x20, 0x00,
		0,                 // all points
		0x03, 0, 30, 0, 0, // x: 0 30 0 0
		0x83,              // y: 0 0 0 0
	}
	tbl := &Table{
		AxisCount:    1,
		SharedTuples: [][]int16{{0x4000}},
		Data:         [][]byte{nil, blank, nil},
	}
	_, err := tbl.Substitute(keep.New(1), 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, gid := range []int{0, 2} {
		if !bytes.Equal(tbl.Data[gid], blank) {
			t.Errorf("wrong data for glyph %d: % x", gid, tbl.Data[gid])
		}
		tuples, err := decodeTuples(tbl.Data[gid], 1, 4)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff([]int32{0, 30, 0, 0}, tuples[0].dx); d != "" {
			t.Error(d)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, odd := range []bool{false, true} {
		in := &Table{
			AxisCount:    2,
			SharedTuples: [][]int16{{0x4000, 0}, {0, -0x4000}},
			Data:         [][]byte{nil, replacerShared, replacerShared, nil},
		}
		if odd {
			in.Data[3] = []byte{1, 2, 3}
		}
		data := in.Encode()
		if long := data[15]&1 != 0; long != odd {
			t.Errorf("wrong offset format, long=%t", long)
		}

		out, err := Decode(data)
		if err != nil {
			t.Fatal(err)
		}
		if out.AxisCount != in.AxisCount {
			t.Errorf("wrong axis count %d", out.AxisCount)
		}
		if d := cmp.Diff(in.SharedTuples, out.SharedTuples); d != "" {
			t.Error(d)
		}
		if len(out.Data) != len(in.Data) {
			t.Fatalf("wrong glyph count %d", len(out.Data))
		}
		for i := range in.Data {
			if !bytes.Equal(in.Data[i], out.Data[i]) {
				t.Errorf("glyph %d: % x != % x", i, out.Data[i], in.Data[i])
			}
		}
	}
}

func TestRewriteMissingReplacer(t *testing.T) {
	data := (&Table{Data: [][]byte{nil, nil}}).Encode()
	_, _, err := Rewrite(data, keep.New(2), -1)
	var missing *keep.MissingReplacerError
	if !errors.As(err, &missing) || missing.Table != "gvar" {
		t.Errorf("wrong error %v", err)
	}
}

func TestPackedPoints(t *testing.T) {
	points := []int{0, 1, 300, 301}
	for i := 0; i < 200; i++ {
		points = append(points, 400+2*i)
	}
	data := encodePoints(points)
	out, n, err := decodePoints(data)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Errorf("wrong length %d != %d", n, len(data))
	}
	if d := cmp.Diff(points, out); d != "" {
		t.Error(d)
	}

	out, n, err = decodePoints(encodePoints(nil))
	if err != nil || n != 1 || out != nil {
		t.Errorf("wrong result for all points: %v %d %v", out, n, err)
	}
}

func TestPackedDeltas(t *testing.T) {
	deltas := []int32{0, 0, 1, -128, -200, 40000, 5, 0}
	for i := 0; i < 100; i++ {
		deltas = append(deltas, int32(i%3))
	}
	data := encodeDeltas(deltas)
	out, n, err := decodeDeltas(data, len(deltas))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Errorf("wrong length %d != %d", n, len(data))
	}
	if d := cmp.Diff(deltas, out); d != "" {
		t.Error(d)
	}
}

func TestPackedDeltasSize(t *testing.T) {
	cases := []struct {
		in  []int32
		out []byte
	}{
		{[]int32{0, 0, 0, 0}, []byte{0x83}},
		{[]int32{5, 0, 6}, []byte{0x02, 5, 0, 6}},
		{[]int32{1, 1000, 2}, []byte{0x42, 0x00, 1, 0x03, 0xE8, 0x00, 2}},
		{[]int32{0, 0, 0, 70000}, []byte{0x82, 0xC0, 0x00, 0x01, 0x11, 0x70}},
	}
	for _, c := range cases {
		out := encodeDeltas(c.in)
		if d := cmp.Diff(c.out, out); d != "" {
			t.Errorf("%v: %s", c.in, d)
		}
	}
}
