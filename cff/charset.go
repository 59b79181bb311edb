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
	"fmt"

	"seehuhn.de/go/sfnt/glyph"
)

// charsetLength returns the number of bytes used by the charset
// starting at data[pos:].
func charsetLength(data []byte, pos, numGlyphs int) (int, error) {
	if pos >= len(data) {
		return 0, errCorruptCharset
	}
	format := data[pos]
	n := 1
	switch format {
	case 0:
		n += 2 * (numGlyphs - 1)
	case 1, 2:
		nLeftSize := int(format)
		for covered := 1; covered < numGlyphs; {
			if pos+n+2+nLeftSize > len(data) {
				return 0, errCorruptCharset
			}
			nLeft := int(data[pos+n+2])
			if format == 2 {
				nLeft = nLeft<<8 | int(data[pos+n+3])
			}
			covered += nLeft + 1
			n += 2 + nLeftSize
		}
	default:
		return 0, notSupported(fmt.Sprintf("charset format %d", format))
	}
	if pos+n > len(data) {
		return 0, errCorruptCharset
	}
	return n, nil
}

// decodeCharset returns the SIDs of all glyphs.
func decodeCharset(data []byte, numGlyphs int) ([]int, error) {
	sids := make([]int, 1, numGlyphs)
	format := data[0]
	data = data[1:]
	switch format {
	case 0:
		for len(sids) < numGlyphs {
			sids = append(sids, int(data[0])<<8|int(data[1]))
			data = data[2:]
		}
	case 1, 2:
		for len(sids) < numGlyphs {
			first := int(data[0])<<8 | int(data[1])
			nLeft := int(data[2])
			data = data[3:]
			if format == 2 {
				nLeft = nLeft<<8 | int(data[0])
				data = data[1:]
			}
			for sid := first; sid <= first+nLeft && len(sids) < numGlyphs; sid++ {
				sids = append(sids, sid)
			}
		}
	}
	return sids, nil
}

// encodingLength returns the number of bytes used by the custom encoding
// starting at data[pos:].
func encodingLength(data []byte, pos int) (int, error) {
	if pos+2 > len(data) {
		return 0, errCorruptEncoding
	}
	format := data[pos]
	n := 2
	switch format & 0x7f {
	case 0:
		n += int(data[pos+1])
	case 1:
		n += 2 * int(data[pos+1])
	default:
		return 0, notSupported(fmt.Sprintf("encoding format %d", format&0x7f))
	}
	if format&0x80 != 0 {
		if pos+n >= len(data) {
			return 0, errCorruptEncoding
		}
		n += 1 + 3*int(data[pos+n])
	}
	if pos+n > len(data) {
		return 0, errCorruptEncoding
	}
	return n, nil
}

// decodeFDSelect returns the font DICT index for every glyph,
// together with the number of bytes used by the FDSelect structure.
func decodeFDSelect(data []byte, pos, numGlyphs, numFDs int) ([]int, int, error) {
	if pos >= len(data) {
		return nil, 0, errCorruptFDSelect
	}
	res := make([]int, numGlyphs)
	format := data[pos]
	n := 1
	switch format {
	case 0:
		n += numGlyphs
		if pos+n > len(data) {
			return nil, 0, errCorruptFDSelect
		}
		for i := range res {
			res[i] = int(data[pos+1+i])
		}
	case 3, 4:
		// format 3 uses 16-bit glyph IDs and 8-bit FD indices,
		// format 4 (CFF2 only) uses 32-bit glyph IDs and 16-bit FD indices.
		gidSize, fdSize := 2, 1
		if format == 4 {
			gidSize, fdSize = 4, 2
		}
		readInt := func(k, size int) int {
			var x int
			for _, b := range data[k : k+size] {
				x = x<<8 | int(b)
			}
			return x
		}
		if pos+n+gidSize > len(data) {
			return nil, 0, errCorruptFDSelect
		}
		nRanges := readInt(pos+n, gidSize)
		n += gidSize
		recSize := gidSize + fdSize
		if pos+n+nRanges*recSize+gidSize > len(data) {
			return nil, 0, errCorruptFDSelect
		}
		for i := 0; i < nRanges; i++ {
			rec := pos + n + i*recSize
			first := readInt(rec, gidSize)
			fd := readInt(rec+gidSize, fdSize)
			next := readInt(rec+recSize, gidSize)
			if first > next || next > numGlyphs {
				return nil, 0, errCorruptFDSelect
			}
			for gid := first; gid < next; gid++ {
				res[gid] = fd
			}
		}
		n += nRanges*recSize + gidSize
	default:
		return nil, 0, notSupported(fmt.Sprintf("FDSelect format %d", format))
	}
	for _, fd := range res {
		if fd >= numFDs {
			return nil, 0, errCorruptFDSelect
		}
	}
	return res, n, nil
}

// encodeFDSelect encodes the glyph to font DICT mapping using format 3,
// or format 4 where format 3 cannot represent the data.
func encodeFDSelect(fdIndex []int, isCFF2 bool) []byte {
	type fdRange struct {
		first glyph.ID
		fd    int
	}
	var ranges []fdRange
	maxFD := 0
	for i, fd := range fdIndex {
		if i == 0 || fd != fdIndex[i-1] {
			ranges = append(ranges, fdRange{glyph.ID(i), fd})
		}
		maxFD = max(maxFD, fd)
	}

	if isCFF2 && maxFD > 255 {
		res := make([]byte, 0, 1+4+6*len(ranges)+4)
		res = append(res, 4, byte(len(ranges)>>24), byte(len(ranges)>>16), byte(len(ranges)>>8), byte(len(ranges)))
		for _, r := range ranges {
			res = append(res, 0, 0, byte(r.first>>8), byte(r.first), byte(r.fd>>8), byte(r.fd))
		}
		n := len(fdIndex)
		return append(res, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}

	res := make([]byte, 0, 1+2+3*len(ranges)+2)
	res = append(res, 3, byte(len(ranges)>>8), byte(len(ranges)))
	for _, r := range ranges {
		res = append(res, byte(r.first>>8), byte(r.first), byte(r.fd))
	}
	n := len(fdIndex)
	return append(res, byte(n>>8), byte(n))
}

var (
	errCorruptCharset  = invalidSince("corrupt charset")
	errCorruptEncoding = invalidSince("corrupt encoding")
	errCorruptFDSelect = invalidSince("corrupt FDSelect")
)
