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

package keep

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/sfnt/glyph"
)

func TestSet(t *testing.T) {
	s := New(7, 3, 1, 3, 9)

	if s.Replacer() != 7 {
		t.Errorf("wrong replacer %d", s.Replacer())
	}
	if s.Len() != 4 {
		t.Errorf("wrong size %d", s.Len())
	}
	for gid := glyph.ID(0); gid < 12; gid++ {
		want := gid == 1 || gid == 3 || gid == 7 || gid == 9
		if s.Contains(gid) != want {
			t.Errorf("Contains(%d) = %t", gid, !want)
		}
	}
	if d := cmp.Diff([]glyph.ID{1, 3, 7, 9}, s.Slice()); d != "" {
		t.Error(d)
	}
}

func TestCheck(t *testing.T) {
	s := New(5)
	if err := s.Check("hmtx", 6); err != nil {
		t.Error(err)
	}

	err := s.Check("hmtx", 5)
	var missing *MissingReplacerError
	if !errors.As(err, &missing) {
		t.Fatalf("wrong error %v", err)
	}
	if missing.Table != "hmtx" || missing.Replacer != 5 {
		t.Errorf("wrong error contents %#v", missing)
	}
}
