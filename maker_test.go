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

package trial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"seehuhn.de/go/sfnt/glyph"
	"seehuhn.de/go/sfnt/header"

	"seehuhn.de/go/trial/cff"
	"seehuhn.de/go/trial/gvar"
	"seehuhn.de/go/trial/hmtx"
	"seehuhn.de/go/trial/internal/testfont"
	"seehuhn.de/go/trial/keep"
	"seehuhn.de/go/trial/kern"
	"seehuhn.de/go/trial/name"
)

// glyphInfo is the rendering information for one glyph, as seen by an
// independent font reader.
type glyphInfo struct {
	Segments sfnt.Segments
	Advance  fixed.Int26_6
}

func loadGlyph(t *testing.T, f *sfnt.Font, r rune) *glyphInfo {
	t.Helper()
	b := &sfnt.Buffer{}
	gid, err := f.GlyphIndex(b, r)
	if err != nil {
		t.Fatal(err)
	}
	if gid == 0 {
		t.Fatalf("no glyph for %q", r)
	}
	segs, err := f.LoadGlyph(b, gid, fixed.I(1000), nil)
	if err != nil {
		t.Fatal(err)
	}
	segs = slices.Clone(segs)
	adv, err := f.GlyphAdvance(b, gid, fixed.I(1000), font.HintingNone)
	if err != nil {
		t.Fatal(err)
	}
	return &glyphInfo{Segments: segs, Advance: adv}
}

func encode(t *testing.T, f *Font) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	_, err := f.Write(buf)
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessTrueType(t *testing.T) {
	for _, components := range []bool{false, true} {
		orig, err := sfnt.Parse(testfont.TrueType())
		if err != nil {
			t.Fatal(err)
		}
		wantN := loadGlyph(t, orig, 'n')
		oldA := loadGlyph(t, orig, 'A')
		if cmp.Equal(oldA, wantN) {
			t.Fatal("test glyphs are identical")
		}

		f, err := Parse(testfont.TrueType())
		if err != nil {
			t.Fatal(err)
		}
		oldCmap := f.Tables["cmap"]
		ks, err := Resolve(f, &Request{Replacers: []Selector{Char('n')}})
		if err != nil {
			t.Fatal(err)
		}

		m := New(ks, &Options{
			Components:         components,
			Suffix:             "Trial",
			SkipUnmatchedNames: true,
		})
		report, err := m.Process(f)
		if err != nil {
			t.Fatal(err)
		}
		if m.State() != Renamed {
			t.Errorf("state = %s, want %s", m.State(), Renamed)
		}
		if report.Capabilities&HasGlyf == 0 || report.Capabilities&HasCFF != 0 {
			t.Errorf("wrong capabilities %s", report.Capabilities)
		}

		numGlyphs, err := f.NumGlyphs()
		if err != nil {
			t.Fatal(err)
		}
		want := numGlyphs - report.Keep.Len()
		for _, c := range report.Changes {
			if c.Table == "glyf" || c.Table == "hmtx" {
				if c.Count != want {
					t.Errorf("%s: %d glyphs replaced, want %d", c.Table, c.Count, want)
				}
			}
		}
		if !bytes.Equal(f.Tables["cmap"], oldCmap) {
			t.Error("cmap table was modified")
		}

		trial, err := sfnt.Parse(encode(t, f))
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(wantN, loadGlyph(t, trial, 'n')); d != "" {
			t.Errorf("replacer changed (-want +got):\n%s", d)
		}
		for _, r := range "ABC" {
			if d := cmp.Diff(wantN, loadGlyph(t, trial, r)); d != "" {
				t.Errorf("components=%t, %q (-want +got):\n%s", components, r, d)
			}
		}

		family, err := trial.Name(&sfnt.Buffer{}, sfnt.NameIDFamily)
		if err != nil {
			t.Fatal(err)
		}
		if family != "Go Trial" {
			t.Errorf("family name = %q, want %q", family, "Go Trial")
		}
	}
}

func TestProcessKeep(t *testing.T) {
	orig, err := sfnt.Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}

	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	ks, err := Resolve(f, &Request{
		Replacers: []Selector{Char('x')},
		Keep:      []Selector{Char('A'), Char('B'), Char('z')},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(ks, nil).Process(f)
	if err != nil {
		t.Fatal(err)
	}

	trial, err := sfnt.Parse(encode(t, f))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range "ABzx" {
		if d := cmp.Diff(loadGlyph(t, orig, r), loadGlyph(t, trial, r)); d != "" {
			t.Errorf("kept glyph %q changed (-want +got):\n%s", r, d)
		}
	}
	wantX := loadGlyph(t, orig, 'x')
	for _, r := range "Cay" {
		if d := cmp.Diff(wantX, loadGlyph(t, trial, r)); d != "" {
			t.Errorf("%q (-want +got):\n%s", r, d)
		}
	}
}

func TestProcessCFF(t *testing.T) {
	f, err := Parse(testfont.CFF())
	if err != nil {
		t.Fatal(err)
	}
	if f.ScalerType != header.ScalerTypeCFF {
		t.Fatalf("wrong scaler type %08x", f.ScalerType)
	}

	gg := make(map[rune]glyph.ID)
	for _, r := range "ABCn" {
		ks, err := Resolve(f, &Request{Replacers: []Selector{Char(r)}})
		if err != nil {
			t.Fatal(err)
		}
		gg[r] = ks.Replacer()
	}

	// select the replacer by name, as stored in the CFF charset
	glyphNames, err := f.GlyphNames()
	if err != nil {
		t.Fatal(err)
	}
	ks, err := Resolve(f, &Request{Replacers: []Selector{Named(glyphNames[gg['n']])}})
	if err != nil {
		t.Fatal(err)
	}
	if ks.Replacer() != gg['n'] {
		t.Fatalf("replacer = %d, want %d", ks.Replacer(), gg['n'])
	}

	oldCFF, err := cff.Read(f.Tables["CFF "])
	if err != nil {
		t.Fatal(err)
	}
	wantN := bytes.Clone(oldCFF.CharString(gg['n']))

	_, err = New(ks, nil).Process(f)
	if err != nil {
		t.Fatal(err)
	}

	newCFF, err := cff.Read(f.Tables["CFF "])
	if err != nil {
		t.Fatal(err)
	}
	code := newCFF.CharString(gg['n'])
	if bytes.Equal(code, wantN) {
		t.Error("replacer was not desubroutinized")
	}
	for _, r := range "ABC" {
		if !bytes.Equal(newCFF.CharString(gg[r]), code) {
			t.Errorf("charstring of %q differs from replacer", r)
		}
	}
	if d := cmp.Diff(glyphNames, mustGlyphNames(t, f)); d != "" {
		t.Errorf("glyph names changed (-want +got):\n%s", d)
	}

	numGlyphs, err := f.NumGlyphs()
	if err != nil {
		t.Fatal(err)
	}
	mm, err := hmtx.DecodeHorizontal(f.Tables["hhea"], f.Tables["hmtx"], numGlyphs)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range "ABC" {
		if mm[gg[r]] != mm[gg['n']] {
			t.Errorf("metrics of %q: %v != %v", r, mm[gg[r]], mm[gg['n']])
		}
	}
}

func mustGlyphNames(t *testing.T, f *Font) []string {
	t.Helper()
	nn, err := f.GlyphNames()
	if err != nil {
		t.Fatal(err)
	}
	return nn
}

func TestProcessKerning(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	gid := func(r rune) glyph.ID {
		ks, err := Resolve(f, &Request{Replacers: []Selector{Char(r)}})
		if err != nil {
			t.Fatal(err)
		}
		return ks.Replacer()
	}
	A, V, T, o := gid('A'), gid('V'), gid('T'), gid('o')

	f.Tables["GPOS"] = testfont.GPOS([]testfont.KernPair{
		{Left: A, Right: V, Adjust: -80},
		{Left: A, Right: T, Adjust: -60},
		{Left: T, Right: o, Adjust: -40},
		{Left: V, Right: A, Adjust: -80},
	}, false)
	delete(f.Tables, "kern")

	ks := keep.New(o, A, V)
	for _, prune := range []bool{false, true} {
		g := &Font{ScalerType: f.ScalerType, Tables: make(map[string][]byte)}
		for name, data := range f.Tables {
			g.Tables[name] = data
		}
		_, err := New(ks, &Options{PruneKerning: prune}).Process(g)
		if err != nil {
			t.Fatal(err)
		}
		pairs, err := kern.GPOSPairs(g.Tables["GPOS"])
		if err != nil {
			t.Fatal(err)
		}

		var want []glyph.Pair
		if prune {
			want = []glyph.Pair{{Left: A, Right: V}, {Left: V, Right: A}}
		} else {
			want = []glyph.Pair{{Left: A, Right: V}, {Left: A, Right: T}, {Left: T, Right: o}, {Left: V, Right: A}}
		}
		sortPairs(pairs)
		sortPairs(want)
		if d := cmp.Diff(want, pairs); d != "" {
			t.Errorf("prune=%t (-want +got):\n%s", prune, d)
		}
	}
}

func sortPairs(pairs []glyph.Pair) {
	slices.SortFunc(pairs, func(a, b glyph.Pair) int {
		if a.Left != b.Left {
			return int(a.Left) - int(b.Left)
		}
		return int(a.Right) - int(b.Right)
	})
}

func TestProcessErrors(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	oldGlyf := f.Tables["glyf"]

	m := New(keep.New(60000), nil)
	_, err = m.Process(f)
	var missing *keep.MissingReplacerError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingReplacerError, got %v", err)
	}
	if m.State() != Failed {
		t.Errorf("state = %s, want %s", m.State(), Failed)
	}
	if !bytes.Equal(f.Tables["glyf"], oldGlyf) {
		t.Error("glyf table modified after error")
	}
	err = m.Save(filepath.Join(t.TempDir(), "out.ttf"))
	if err == nil {
		t.Error("saved a failed font")
	}

	ks, err := Resolve(f, &Request{Replacers: []Selector{Char('n')}})
	if err != nil {
		t.Fatal(err)
	}
	m = New(ks, &Options{Suffix: "Trial", FamilyName: "Garamond"})
	_, err = m.Process(f)
	var notFound *name.NameNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NameNotFoundError, got %v", err)
	}
	if notFound.Family != "Garamond" {
		t.Errorf("family = %q, want %q", notFound.Family, "Garamond")
	}
}

func TestStates(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	ks, err := Resolve(f, &Request{Replacers: []Selector{Char('n')}})
	if err != nil {
		t.Fatal(err)
	}

	fname := filepath.Join(t.TempDir(), "a", "b", "trial.ttf")

	m := New(ks, nil)
	if m.State() != Idle {
		t.Errorf("state = %s, want %s", m.State(), Idle)
	}
	err = m.Save(fname)
	if err == nil {
		t.Error("saved an unprocessed font")
	}

	_, err = m.Process(f)
	if err != nil {
		t.Fatal(err)
	}
	if m.State() != Substituted {
		t.Errorf("state = %s, want %s", m.State(), Substituted)
	}
	_, err = m.Process(f)
	if err == nil {
		t.Error("processed a font twice")
	}

	err = m.Save(fname)
	if err != nil {
		t.Fatal(err)
	}
	if m.State() != Persisted {
		t.Errorf("state = %s, want %s", m.State(), Persisted)
	}

	data, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, encode(t, f)) {
		t.Error("saved font differs from processed font")
	}
}

// perGlyph extracts the per-glyph entries of one table, in a form which
// can be compared between glyphs.
type perGlyph func(t *testing.T, tables map[string][]byte, numGlyphs int) []string

func gvarEntries(t *testing.T, tables map[string][]byte, numGlyphs int) []string {
	t.Helper()
	tbl, err := gvar.Decode(tables["gvar"])
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Data) != numGlyphs {
		t.Fatalf("gvar has %d glyphs, want %d", len(tbl.Data), numGlyphs)
	}
	res := make([]string, numGlyphs)
	for gid, d := range tbl.Data {
		res[gid] = string(d)
	}
	return res
}

func metricEntries(hhea, table string) perGlyph {
	return func(t *testing.T, tables map[string][]byte, numGlyphs int) []string {
		t.Helper()
		decode := hmtx.Decode
		if table == "hmtx" {
			decode = hmtx.DecodeHorizontal
		}
		mm, err := decode(tables[hhea], tables[table], numGlyphs)
		if err != nil {
			t.Fatal(err)
		}
		res := make([]string, numGlyphs)
		for gid, m := range mm {
			res[gid] = fmt.Sprint(m)
		}
		return res
	}
}

// advanceMapEntries decodes the advance delta-set index map of an "HVAR"
// or "VVAR" table.
func advanceMapEntries(table string) perGlyph {
	return func(t *testing.T, tables map[string][]byte, numGlyphs int) []string {
		t.Helper()
		data := tables[table]
		offs := int(binary.BigEndian.Uint32(data[8:]))
		if offs == 0 || offs+4 > len(data) {
			t.Fatalf("%s: invalid advance map offset %d", table, offs)
		}
		entryFormat := data[offs+1]
		var mapCount, pos int
		if data[offs] == 0 {
			mapCount = int(binary.BigEndian.Uint16(data[offs+2:]))
			pos = offs + 4
		} else {
			mapCount = int(binary.BigEndian.Uint32(data[offs+2:]))
			pos = offs + 6
		}
		size := int(entryFormat>>4&3) + 1
		innerBits := uint(entryFormat&15) + 1

		res := make([]string, numGlyphs)
		for gid := range res {
			i := min(gid, mapCount-1)
			var e uint32
			for _, b := range data[pos+i*size : pos+(i+1)*size] {
				e = e<<8 | uint32(b)
			}
			res[gid] = fmt.Sprintf("%d/%d", e>>innerBits, e&(1<<innerBits-1))
		}
		return res
	}
}

func charStringEntries(t *testing.T, tables map[string][]byte, numGlyphs int) []string {
	t.Helper()
	tbl, err := cff.Read(tables["CFF2"])
	if err != nil {
		t.Fatal(err)
	}
	res := make([]string, numGlyphs)
	for gid := range res {
		res[gid] = string(tbl.CharString(glyph.ID(gid)))
	}
	return res
}

func TestProcessVariable(t *testing.T) {
	type check struct {
		table   string
		entries perGlyph
	}
	glyfChecks := []check{
		{"gvar", gvarEntries},
		{"hmtx", metricEntries("hhea", "hmtx")},
		{"vmtx", metricEntries("vhea", "vmtx")},
		{"HVAR", advanceMapEntries("HVAR")},
		{"VVAR", advanceMapEntries("VVAR")},
	}
	cases := []struct {
		font       []byte
		components bool
		replacer   rune
		checks     []check
	}{
		{testfont.Variable(), false, 'n', glyfChecks},
		{testfont.Variable(), true, 'n', glyfChecks},
		{testfont.Variable(), true, ' ', glyfChecks},
		{testfont.CFF2(), false, 'n', []check{
			{"CFF2", charStringEntries},
			{"hmtx", metricEntries("hhea", "hmtx")},
			{"HVAR", advanceMapEntries("HVAR")},
		}},
	}

	for i, test := range cases {
		f, err := Parse(test.font)
		if err != nil {
			t.Fatal(err)
		}
		numGlyphs, err := f.NumGlyphs()
		if err != nil {
			t.Fatal(err)
		}
		before := make(map[string][]string)
		for _, c := range test.checks {
			before[c.table] = c.entries(t, f.Tables, numGlyphs)
		}

		ks, err := Resolve(f, &Request{
			Replacers: []Selector{Char(test.replacer)},
			Keep:      []Selector{Char('A'), Char('o')},
		})
		if err != nil {
			t.Fatal(err)
		}
		report, err := New(ks, &Options{Components: test.components}).Process(f)
		if err != nil {
			t.Fatalf("%d: %v", i, err)
		}
		ks = report.Keep
		replacer := int(ks.Replacer())
		numReplaced := numGlyphs - ks.Len()
		firstReplaced := -1
		for gid := 0; gid < numGlyphs && firstReplaced < 0; gid++ {
			if !ks.Contains(glyph.ID(gid)) {
				firstReplaced = gid
			}
		}
		if firstReplaced < 0 {
			t.Fatalf("%d: no glyphs replaced", i)
		}

		changed := make(map[string]int)
		for _, c := range report.Changes {
			changed[c.Table] = c.Count
		}

		for _, c := range test.checks {
			if n, ok := changed[c.table]; !ok || n != numReplaced {
				t.Errorf("%d: %s: %d glyphs replaced, want %d", i, c.table, n, numReplaced)
			}

			old := before[c.table]
			after := c.entries(t, f.Tables, numGlyphs)

			// In components mode, glyphs referencing a non-blank replacer
			// get variation data for a composite glyph.
			composite := c.table == "gvar" && test.components && test.replacer != ' '
			want := old[replacer]
			if composite {
				want = after[firstReplaced]
				if want == "" || want == old[replacer] {
					t.Errorf("%d: gvar: no composite variation data", i)
				}
			}

			for gid := range after {
				if ks.Contains(glyph.ID(gid)) {
					if after[gid] != old[gid] {
						t.Errorf("%d: %s: kept glyph %d changed", i, c.table, gid)
					}
				} else if after[gid] != want {
					t.Errorf("%d: %s: glyph %d differs from the replacer", i, c.table, gid)
				}
			}
		}
	}
}
