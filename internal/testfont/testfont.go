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

// Package testfont provides fonts and font tables for use in unit tests.
package testfont

import (
	"bytes"

	"golang.org/x/image/font/gofont/goregular"

	"seehuhn.de/go/sfnt/header"
)

// Tables returns the tables of the Go Regular font.  Every call returns a
// fresh map, but the table data may be shared between calls and must not
// be modified.
func Tables() (uint32, map[string][]byte) {
	r := bytes.NewReader(goregular.TTF)
	info, err := header.Read(r)
	if err != nil {
		panic(err)
	}
	tables := make(map[string][]byte, len(info.Toc))
	for name := range info.Toc {
		data, err := info.ReadTableBytes(r, name)
		if err != nil {
			panic(err)
		}
		tables[name] = data
	}
	return info.ScalerType, tables
}

// Assemble writes the given tables into an sfnt container.
func Assemble(scalerType uint32, tables map[string][]byte) []byte {
	buf := &bytes.Buffer{}
	_, err := header.Write(buf, scalerType, tables)
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// TrueType returns the Go Regular font in binary form.
func TrueType() []byte {
	return bytes.Clone(goregular.TTF)
}
