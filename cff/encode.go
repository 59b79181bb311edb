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

// Encode returns the binary form of the table.
//
// All offsets in DICTs are written using the fixed-length five-byte
// integer encoding, so that the layout can be computed before the
// DICTs are filled in.
func (t *Table) Encode() ([]byte, error) {
	isCFF2 := t.IsCFF2

	gsubrs, err := t.gsubrs.encode(isCFF2)
	if err != nil {
		return nil, err
	}
	charStrings, err := t.charStrings.encode(isCFF2)
	if err != nil {
		return nil, err
	}
	var fdSelect []byte
	if t.fdIndex != nil {
		fdSelect = encodeFDSelect(t.fdIndex, isCFF2)
	}

	// Private DICTs and their local subroutines
	privates := make([][]byte, len(t.privates))
	subrs := make([][]byte, len(t.privates))
	for i, priv := range t.privates {
		d := priv.dict.clone()
		if len(priv.subrs) > 0 {
			d = d.setInts(opSubrs, 0)
			d = d.setInts(opSubrs, len(d.encode()))
			subrs[i], err = priv.subrs.encode(isCFF2)
			if err != nil {
				return nil, err
			}
		} else {
			d = d.remove(opSubrs)
		}
		privates[i] = d.encode()
	}

	// top DICT with placeholders for all offsets
	top := t.top.clone()
	if t.charset != nil {
		top = top.setInts(opCharset, 0)
	}
	if t.encoding != nil {
		top = top.setInts(opEncoding, 0)
	}
	top = top.setInts(opCharStrings, 0)
	if t.vstore != nil {
		top = top.setInts(opVStore, 0)
	}
	if t.fontDicts != nil {
		top = top.setInts(opFDArray, 0)
		if fdSelect != nil {
			top = top.setInts(opFDSelect, 0)
		} else {
			top = top.remove(opFDSelect)
		}
	} else {
		top = top.setInts(opPrivate, 0, 0)
	}
	topSize := len(top.encode())

	var header, names, strs []byte
	header = append([]byte(nil), t.header...)
	pos := len(header)
	if isCFF2 {
		pos += topSize
	} else {
		header[3] = 4
		names, err = t.names.encode(false)
		if err != nil {
			return nil, err
		}
		strs, err = t.strings.encode(false)
		if err != nil {
			return nil, err
		}
		// The top DICT INDEX has one item and uses four-byte offsets
		// at most.
		topIndexSize := len(cffIndex{make([]byte, topSize)}.mustEncode())
		pos += len(names) + topIndexSize + len(strs)
	}
	pos += len(gsubrs)

	if t.vstore != nil {
		top = top.setInts(opVStore, pos)
		pos += len(t.vstore)
	}
	if t.charset != nil {
		top = top.setInts(opCharset, pos)
		pos += len(t.charset)
	}
	if t.encoding != nil {
		top = top.setInts(opEncoding, pos)
		pos += len(t.encoding)
	}
	if fdSelect != nil {
		top = top.setInts(opFDSelect, pos)
		pos += len(fdSelect)
	}
	top = top.setInts(opCharStrings, pos)
	pos += len(charStrings)

	var fdArray []byte
	if t.fontDicts != nil {
		// The size of the FDArray does not depend on the Private DICT
		// offsets, so encode once with placeholders to find it.
		fds := make(cffIndex, len(t.fontDicts))
		for i, fd := range t.fontDicts {
			fds[i] = fd.clone().setInts(opPrivate, 0, 0).encode()
		}
		fdArray, err = fds.encode(isCFF2)
		if err != nil {
			return nil, err
		}
		top = top.setInts(opFDArray, pos)
		pos += len(fdArray)

		for i, fd := range t.fontDicts {
			fds[i] = fd.clone().setInts(opPrivate, len(privates[i]), pos).encode()
			pos += len(privates[i]) + len(subrs[i])
		}
		fdArray, err = fds.encode(isCFF2)
		if err != nil {
			return nil, err
		}
	} else {
		top = top.setInts(opPrivate, len(privates[0]), pos)
		pos += len(privates[0]) + len(subrs[0])
	}

	topData := top.encode()
	if len(topData) != topSize {
		panic("unexpected top DICT size")
	}

	res := make([]byte, 0, pos)
	if isCFF2 {
		header[3] = byte(topSize >> 8)
		header[4] = byte(topSize)
		res = append(res, header...)
		res = append(res, topData...)
	} else {
		res = append(res, header...)
		res = append(res, names...)
		res = append(res, cffIndex{topData}.mustEncode()...)
		res = append(res, strs...)
	}
	res = append(res, gsubrs...)
	res = append(res, t.vstore...)
	res = append(res, t.charset...)
	res = append(res, t.encoding...)
	res = append(res, fdSelect...)
	res = append(res, charStrings...)
	res = append(res, fdArray...)
	for i := range privates {
		res = append(res, privates[i]...)
		res = append(res, subrs[i]...)
	}
	if len(res) != pos {
		panic("unexpected CFF table size")
	}
	return res, nil
}

// mustEncode encodes an INDEX with a single, short item.
func (index cffIndex) mustEncode() []byte {
	res, err := index.encode(false)
	if err != nil {
		panic(err)
	}
	return res
}
