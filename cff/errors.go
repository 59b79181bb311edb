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

package cff

import (
	"seehuhn.de/go/sfnt/parser"
)

func invalidSince(reason string) error {
	return &parser.InvalidFontError{
		SubSystem: "trial/cff",
		Reason:    reason,
	}
}

func notSupported(feature string) error {
	return &parser.NotSupportedError{
		SubSystem: "trial/cff",
		Feature:   feature,
	}
}
