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

// Package name reads and writes "name" tables and renames the family of a
// trial font.
//
// In contrast to a fully decoded representation, the [Table] type keeps all
// name records as they appear in the font, including records with
// platform/encoding combinations which cannot be converted to Go strings.
//
// https://docs.microsoft.com/en-us/typography/opentype/spec/name
package name

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"seehuhn.de/go/sfnt/parser"
)

// Table contains the records of a "name" table.
type Table struct {
	Records []*Record

	// LangTags holds the language tags of a format 1 table,
	// encoded as UTF-16BE.  This is nil for format 0 tables.
	LangTags [][]byte
}

// Record is one entry of a "name" table.
type Record struct {
	PlatformID uint16
	EncodingID uint16
	LanguageID uint16
	NameID     ID

	// Value is the string in the encoding given by PlatformID and EncodingID.
	Value []byte
}

// ID identifies the meaning of a name record.
type ID uint16

// These are the name IDs which are changed when a trial font is renamed.
const (
	FamilyName         ID = 1
	UniqueID           ID = 3
	FullName           ID = 4
	PostScriptName     ID = 6
	CompatibleFullName ID = 18
	PostScriptCIDName  ID = 20
	WWSFamilyName      ID = 21
)

// Decode reads a "name" table.
func Decode(data []byte) (*Table, error) {
	if len(data) < 6 {
		return nil, errMalformed
	}
	format := uint16(data[0])<<8 | uint16(data[1])
	count := int(data[2])<<8 | int(data[3])
	storage := int(data[4])<<8 | int(data[5])
	if format > 1 {
		return nil, &parser.NotSupportedError{
			SubSystem: "trial/name",
			Feature:   fmt.Sprintf("name table format %d", format),
		}
	}
	if storage > len(data) || 6+12*count > len(data) {
		return nil, errMalformed
	}
	getString := func(length, offset int) ([]byte, error) {
		start := storage + offset
		end := start + length
		if end > len(data) {
			return nil, errMalformed
		}
		return append([]byte(nil), data[start:end]...), nil
	}

	t := &Table{}
	for i := 0; i < count; i++ {
		rec := data[6+12*i : 6+12*i+12]
		value, err := getString(int(rec[8])<<8|int(rec[9]), int(rec[10])<<8|int(rec[11]))
		if err != nil {
			return nil, err
		}
		t.Records = append(t.Records, &Record{
			PlatformID: uint16(rec[0])<<8 | uint16(rec[1]),
			EncodingID: uint16(rec[2])<<8 | uint16(rec[3]),
			LanguageID: uint16(rec[4])<<8 | uint16(rec[5]),
			NameID:     ID(rec[6])<<8 | ID(rec[7]),
			Value:      value,
		})
	}

	if format == 1 {
		pos := 6 + 12*count
		if pos+2 > len(data) {
			return nil, errMalformed
		}
		tagCount := int(data[pos])<<8 | int(data[pos+1])
		pos += 2
		if pos+4*tagCount > len(data) {
			return nil, errMalformed
		}
		t.LangTags = make([][]byte, tagCount)
		for i := range t.LangTags {
			rec := data[pos+4*i : pos+4*i+4]
			tag, err := getString(int(rec[0])<<8|int(rec[1]), int(rec[2])<<8|int(rec[3]))
			if err != nil {
				return nil, err
			}
			t.LangTags[i] = tag
		}
	}

	return t, nil
}

// Encode converts the table into its binary form.
// Records are written in the order given in t.Records; identical strings
// share storage.
func (t *Table) Encode() []byte {
	var format uint16
	headerLen := 6 + 12*len(t.Records)
	if t.LangTags != nil {
		format = 1
		headerLen += 2 + 4*len(t.LangTags)
	}

	b := newStorageBuilder()
	buf := make([]byte, headerLen)
	buf[0], buf[1] = byte(format>>8), byte(format)
	buf[2], buf[3] = byte(len(t.Records)>>8), byte(len(t.Records))
	buf[4], buf[5] = byte(headerLen>>8), byte(headerLen)
	for i, rec := range t.Records {
		offs, length := b.Add(rec.Value)
		pos := 6 + 12*i
		for j, v := range []uint16{rec.PlatformID, rec.EncodingID, rec.LanguageID, uint16(rec.NameID), length, offs} {
			buf[pos+2*j] = byte(v >> 8)
			buf[pos+2*j+1] = byte(v)
		}
	}
	if format == 1 {
		pos := 6 + 12*len(t.Records)
		buf[pos], buf[pos+1] = byte(len(t.LangTags)>>8), byte(len(t.LangTags))
		pos += 2
		for i, tag := range t.LangTags {
			offs, length := b.Add(tag)
			buf[pos+4*i] = byte(length >> 8)
			buf[pos+4*i+1] = byte(length)
			buf[pos+4*i+2] = byte(offs >> 8)
			buf[pos+4*i+3] = byte(offs)
		}
	}

	return append(buf, b.data...)
}

// Find returns the first record with the given name ID which can be
// converted to a Go string.
func (t *Table) Find(nameID ID) (*Record, string, bool) {
	for _, rec := range t.Records {
		if rec.NameID != nameID {
			continue
		}
		if s, err := rec.Text(); err == nil {
			return rec, s, true
		}
	}
	return nil, "", false
}

// Text decodes the value of the record.
func (rec *Record) Text() (string, error) {
	enc := rec.encoding()
	if enc == nil {
		return "", rec.errNotSupported()
	}
	return enc.NewDecoder().String(string(rec.Value))
}

// SetText encodes s using the platform encoding of the record.
func (rec *Record) SetText(s string) error {
	enc := rec.encoding()
	if enc == nil {
		return rec.errNotSupported()
	}
	value, err := enc.NewEncoder().String(s)
	if err != nil {
		return err
	}
	rec.Value = []byte(value)
	return nil
}

func (rec *Record) encoding() encoding.Encoding {
	switch {
	case rec.PlatformID == 0:
		return utf16be
	case rec.PlatformID == 1 && rec.EncodingID == 0:
		return charmap.Macintosh
	case rec.PlatformID == 3 && (rec.EncodingID == 0 || rec.EncodingID == 1 || rec.EncodingID == 10):
		return utf16be
	default:
		return nil
	}
}

func (rec *Record) errNotSupported() error {
	return &parser.NotSupportedError{
		SubSystem: "trial/name",
		Feature: fmt.Sprintf("platform %d, encoding %d",
			rec.PlatformID, rec.EncodingID),
	}
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

type storageBuilder struct {
	data []byte
	idx  map[string]uint16
}

func newStorageBuilder() *storageBuilder {
	return &storageBuilder{
		idx: make(map[string]uint16),
	}
}

func (b *storageBuilder) Add(s []byte) (offs, length uint16) {
	key := string(s)
	if idx, ok := b.idx[key]; ok {
		return idx, uint16(len(s))
	}
	idx := uint16(len(b.data))
	b.idx[key] = idx
	b.data = append(b.data, s...)
	return idx, uint16(len(s))
}

var errMalformed = &parser.InvalidFontError{
	SubSystem: "trial/name",
	Reason:    "malformed name table",
}
