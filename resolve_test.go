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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/trial/internal/testfont"
)

func TestResolve(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	glyphNames, err := f.GlyphNames()
	if err != nil {
		t.Fatal(err)
	}

	ks, err := Resolve(f, &Request{
		Replacers: []Selector{Char('n')},
		Keep:      []Selector{Char('a'), Char('b'), Char('a')},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ks.Len() != 3 {
		t.Errorf("keep set has %d elements, want 3", ks.Len())
	}
	n := ks.Replacer()
	if n == 0 {
		t.Fatal("replacer not found")
	}

	// the same glyphs, selected by name
	var keepByName []Selector
	for _, gid := range ks.Slice() {
		if gid != n {
			keepByName = append(keepByName, Named(glyphNames[gid]))
		}
	}
	ks2, err := Resolve(f, &Request{
		Replacers: []Selector{Named(glyphNames[n])},
		Keep:      keepByName,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ks2.Replacer() != n {
		t.Errorf("replacer = %d, want %d", ks2.Replacer(), n)
	}
	if d := cmp.Diff(ks.Slice(), ks2.Slice()); d != "" {
		t.Errorf("keep sets differ (-want +got):\n%s", d)
	}
}

func TestResolveNotdef(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	ks, err := Resolve(f, &Request{Replacers: []Selector{Named(".notdef")}})
	if err != nil {
		t.Fatal(err)
	}
	if ks.Replacer() != 0 {
		t.Errorf("replacer = %d, want 0", ks.Replacer())
	}
}

func TestResolveErrors(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	const unmapped = '\U0010FFFD'

	_, err = Resolve(f, &Request{Keep: []Selector{Char('a')}})
	var ambiguous *AmbiguousReplacerError
	if !errors.As(err, &ambiguous) || ambiguous.Count != 0 {
		t.Errorf("no replacer: got %v", err)
	}

	_, err = Resolve(f, &Request{Replacers: []Selector{Char('n'), Named("n")}})
	if !errors.As(err, &ambiguous) || ambiguous.Count != 2 {
		t.Errorf("two replacers: got %v", err)
	}

	// The replacer count is checked before the font is used.
	_, err = Resolve(&Font{}, &Request{})
	if !errors.As(err, &ambiguous) {
		t.Errorf("empty font: got %v", err)
	}

	_, err = Resolve(f, &Request{Replacers: []Selector{Char(unmapped)}})
	var unresolved *UnresolvedKeepGlyphError
	if !errors.As(err, &unresolved) || !unresolved.Replacer {
		t.Errorf("unmapped replacer: got %v", err)
	}

	// An unresolved replacer is an error even in lenient mode.
	_, err = Resolve(f, &Request{
		Replacers: []Selector{Named("no-such-glyph")},
		Lenient:   true,
	})
	if !errors.As(err, &unresolved) || !unresolved.Replacer {
		t.Errorf("unknown replacer name: got %v", err)
	}

	req := &Request{
		Replacers: []Selector{Char('n')},
		Keep: []Selector{
			Char('a'), Char(unmapped), Named("no-such-glyph"),
		},
	}
	_, err = Resolve(f, req)
	if !errors.As(err, &unresolved) || unresolved.Replacer {
		t.Fatalf("unresolved keep glyphs: got %v", err)
	}
	want := []Selector{Char(unmapped), Named("no-such-glyph")}
	if d := cmp.Diff(want, unresolved.Missing); d != "" {
		t.Errorf("missing (-want +got):\n%s", d)
	}

	req.Lenient = true
	ks, err := Resolve(f, req)
	if err != nil {
		t.Fatal(err)
	}
	if ks.Len() != 2 {
		t.Errorf("keep set has %d elements, want 2", ks.Len())
	}
}

func TestSelectorString(t *testing.T) {
	cases := []struct {
		sel  Selector
		want string
	}{
		{Char('A'), `'A' (U+0041)`},
		{Char('€'), `'€' (U+20AC)`},
		{Named("uni20AC"), "uni20AC"},
	}
	for _, c := range cases {
		if got := c.sel.String(); got != c.want {
			t.Errorf("%#v: got %q, want %q", c.sel, got, c.want)
		}
	}
}

func TestGlyphNamesFromCmap(t *testing.T) {
	f, err := Parse(testfont.TrueType())
	if err != nil {
		t.Fatal(err)
	}
	ks, err := Resolve(f, &Request{Replacers: []Selector{Char('A')}})
	if err != nil {
		t.Fatal(err)
	}
	gidA := ks.Replacer()

	// Without a "post" table, names are derived from the "cmap" table.
	delete(f.Tables, "post")
	glyphNames, err := f.GlyphNames()
	if err != nil {
		t.Fatal(err)
	}
	if glyphNames[0] != ".notdef" {
		t.Errorf("glyph 0 is %q", glyphNames[0])
	}
	if glyphNames[gidA] != "A" {
		t.Errorf("glyph %d is %q, want %q", gidA, glyphNames[gidA], "A")
	}

	ks, err = Resolve(f, &Request{Replacers: []Selector{Named("A")}})
	if err != nil {
		t.Fatal(err)
	}
	if ks.Replacer() != gidA {
		t.Errorf("replacer = %d, want %d", ks.Replacer(), gidA)
	}
}
