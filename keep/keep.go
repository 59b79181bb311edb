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

// Package keep describes which glyphs of a font survive in a trial version.
//
// A [Set] lists the glyphs which are left unchanged, together with the
// replacer glyph whose data is copied into all other glyphs.
package keep

import (
	"fmt"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/glyph"
)

// Set is an immutable set of glyphs, together with the replacer glyph.
// The replacer is always a member of the set.
type Set struct {
	replacer glyph.ID
	members  map[glyph.ID]struct{}
}

// New returns a new keep set.  The replacer is added to the set
// automatically.  Duplicate glyph IDs are ignored.
func New(replacer glyph.ID, gids ...glyph.ID) *Set {
	members := make(map[glyph.ID]struct{}, len(gids)+1)
	members[replacer] = struct{}{}
	for _, gid := range gids {
		members[gid] = struct{}{}
	}
	return &Set{
		replacer: replacer,
		members:  members,
	}
}

// Replacer returns the glyph which replaces all glyphs not in the set.
func (s *Set) Replacer() glyph.ID {
	return s.replacer
}

// Contains reports whether the glyph gid is kept.
func (s *Set) Contains(gid glyph.ID) bool {
	_, ok := s.members[gid]
	return ok
}

// Len returns the number of kept glyphs, including the replacer.
func (s *Set) Len() int {
	return len(s.members)
}

// Slice returns the kept glyphs in increasing order.
func (s *Set) Slice() []glyph.ID {
	res := make([]glyph.ID, 0, len(s.members))
	for gid := range s.members {
		res = append(res, gid)
	}
	slices.Sort(res)
	return res
}

// Check verifies that the replacer is a valid glyph in a table with
// numGlyphs entries.
func (s *Set) Check(table string, numGlyphs int) error {
	if int(s.replacer) >= numGlyphs {
		return &MissingReplacerError{
			Table:     table,
			Replacer:  s.replacer,
			NumGlyphs: numGlyphs,
		}
	}
	return nil
}

// MissingReplacerError is returned when the replacer glyph is not present in
// a font table which needs to be rewritten.
type MissingReplacerError struct {
	Table     string
	Replacer  glyph.ID
	NumGlyphs int
}

func (err *MissingReplacerError) Error() string {
	if err.Table == "" {
		return fmt.Sprintf("replacer glyph %d not found in font", err.Replacer)
	}
	return fmt.Sprintf("%s: replacer glyph %d not found (%d glyphs)",
		err.Table, err.Replacer, err.NumGlyphs)
}
