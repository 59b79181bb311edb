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
	"errors"
)

// cffIndex is the decoded form of a CFF INDEX structure.
type cffIndex [][]byte

// readIndex decodes the INDEX starting at data[pos:].  CFF2 uses a 32-bit
// item count, CFF uses a 16-bit count.  The function returns the items
// and the position just after the INDEX.  The items are sub-slices of
// data.
func readIndex(data []byte, pos int, isCFF2 bool) (cffIndex, int, error) {
	countSize := 2
	if isCFF2 {
		countSize = 4
	}
	if pos < 0 || pos+countSize > len(data) {
		return nil, 0, errIncompleteIndex
	}
	var count int
	for _, b := range data[pos : pos+countSize] {
		count = count<<8 | int(b)
	}
	pos += countSize
	if count == 0 {
		return nil, pos, nil
	}

	if pos >= len(data) {
		return nil, 0, errIncompleteIndex
	}
	offSize := int(data[pos])
	pos++
	if offSize < 1 || offSize > 4 {
		return nil, 0, invalidSince("invalid INDEX offset size")
	}
	if count > (len(data)-pos)/offSize {
		return nil, 0, errIncompleteIndex
	}

	offsets := make([]int, count+1)
	prev := 1
	for i := range offsets {
		var offs int
		for _, b := range data[pos : pos+offSize] {
			offs = offs<<8 | int(b)
		}
		pos += offSize
		if offs < prev {
			return nil, 0, invalidSince("invalid INDEX offsets")
		}
		offsets[i] = offs
		prev = offs
	}

	base := pos - 1
	end := base + offsets[count]
	if end > len(data) {
		return nil, 0, errIncompleteIndex
	}

	res := make(cffIndex, count)
	for i := range res {
		res[i] = data[base+offsets[i] : base+offsets[i+1]]
	}
	return res, end, nil
}

// encode returns the binary form of the INDEX.
func (index cffIndex) encode(isCFF2 bool) ([]byte, error) {
	count := len(index)
	countSize := 2
	if isCFF2 {
		countSize = 4
	} else if count >= 1<<16 {
		return nil, errors.New("cff: too many items for INDEX")
	}
	if count == 0 {
		return make([]byte, countSize), nil
	}

	bodyLength := 0
	for _, blob := range index {
		bodyLength += len(blob)
	}
	offSize := 1
	for bodyLength+1 >= 1<<(8*offSize) {
		offSize++
	}
	if offSize > 4 {
		return nil, errors.New("cff: too much data for INDEX")
	}

	res := make([]byte, 0, countSize+1+(count+1)*offSize+bodyLength)
	for i := countSize - 1; i >= 0; i-- {
		res = append(res, byte(count>>(8*i)))
	}
	res = append(res, byte(offSize))
	pos := 1
	for i := 0; i <= count; i++ {
		for j := offSize - 1; j >= 0; j-- {
			res = append(res, byte(pos>>(8*j)))
		}
		if i < count {
			pos += len(index[i])
		}
	}
	for _, blob := range index {
		res = append(res, blob...)
	}
	return res, nil
}

var errIncompleteIndex = invalidSince("incomplete INDEX")
