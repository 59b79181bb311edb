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

package name

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
)

// RenamedIDs lists the name IDs which are modified by a [Renamer].
var RenamedIDs = []ID{
	FamilyName,
	UniqueID,
	FullName,
	PostScriptName,
	CompatibleFullName,
	PostScriptCIDName,
	WWSFamilyName,
}

// Renamer appends a suffix to the family name inside the name records
// listed in [RenamedIDs].
type Renamer struct {
	// Suffix is inserted after the family name, e.g. "Trial".
	Suffix string

	// FamilyName is the family name to search for.  If this is empty,
	// the first decodable family name record (name ID 1) of the table
	// is used.
	FamilyName string

	// SkipUnmatched makes the renamer leave records alone which do not
	// contain the family name.  Otherwise such records cause a
	// NameNotFoundError.
	SkipUnmatched bool
}

// Rename modifies the records of t in place.  The return value is the
// number of records changed.
//
// Inside each record, the first occurrence of the family name is located.
// The words of the family name may be joined by a single space or by
// nothing, so that the family "My Font" matches both "My Font Bold" and
// "MyFont-Bold".  The suffix is inserted after the match, using the same
// joiner, giving "My Font Trial Bold" and "MyFontTrial-Bold".
func (r *Renamer) Rename(t *Table) (int, error) {
	family := r.FamilyName
	if family == "" {
		var ok bool
		_, family, ok = t.Find(FamilyName)
		if !ok {
			return 0, &NameNotFoundError{NameID: FamilyName}
		}
	}
	words := strings.Fields(family)
	if len(words) == 0 {
		return 0, &NameNotFoundError{NameID: FamilyName}
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	pat, err := regexp.Compile(strings.Join(quoted, "( ?)"))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range t.Records {
		if !slices.Contains(RenamedIDs, rec.NameID) {
			continue
		}
		text, err := rec.Text()
		if err != nil {
			continue
		}

		loc := pat.FindStringSubmatchIndex(text)
		if loc == nil {
			if r.SkipUnmatched {
				continue
			}
			return count, &NameNotFoundError{
				Family:     family,
				NameID:     rec.NameID,
				PlatformID: rec.PlatformID,
				EncodingID: rec.EncodingID,
				LanguageID: rec.LanguageID,
				Text:       text,
			}
		}

		var joiner string
		if len(words) > 1 {
			joiner = text[loc[2]:loc[3]]
		} else {
			joiner = singleWordJoiner(rec.NameID, text, loc[0], loc[1])
		}

		newText := text[:loc[1]] + joiner + r.Suffix + text[loc[1]:]
		err = rec.SetText(newText)
		if err != nil {
			return count, fmt.Errorf("name ID %d: %w", rec.NameID, err)
		}
		count++
	}
	return count, nil
}

// RenameTable decodes a "name" table, renames the family and returns the
// encoded table.
func (r *Renamer) RenameTable(data []byte) ([]byte, int, error) {
	t, err := Decode(data)
	if err != nil {
		return nil, 0, err
	}
	count, err := r.Rename(t)
	if err != nil {
		return nil, 0, err
	}
	return t.Encode(), count, nil
}

// singleWordJoiner decides how to attach the suffix to a family name which
// consists of a single word.  PostScript names never contain spaces.
// Other records use a space if the record contains spaces or consists of
// the family name alone.
func singleWordJoiner(nameID ID, text string, start, end int) string {
	if nameID == PostScriptName || nameID == PostScriptCIDName {
		return ""
	}
	if start == 0 && end == len(text) || strings.ContainsAny(text, " \t") {
		return " "
	}
	return ""
}

// NameNotFoundError is returned by [Renamer.Rename] if a name record does
// not contain the family name.
type NameNotFoundError struct {
	Family     string
	NameID     ID
	PlatformID uint16
	EncodingID uint16
	LanguageID uint16
	Text       string
}

func (err *NameNotFoundError) Error() string {
	if err.Family == "" {
		return "name: no family name found"
	}
	return fmt.Sprintf("name: family %q not found in name ID %d (platform %d, encoding %d, language %d): %q",
		err.Family, err.NameID, err.PlatformID, err.EncodingID, err.LanguageID, err.Text)
}
