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
	"strconv"
)

// dictEntry is one operator of a DICT, together with its operands.
// Operands keep their original encoding, so that entries which are not
// modified are written back unchanged.
type dictEntry struct {
	op   dictOp
	args []dictOperand
}

type dictOperand struct {
	raw []byte
	val float64
}

// cffDict is a DICT in the order the entries appear in the font.
//
// In CFF2 fonts, the blend operator appears as a separate entry directly
// before the entry it applies to.
type cffDict []dictEntry

func decodeDict(buf []byte, isCFF2 bool) (cffDict, error) {
	var res cffDict
	var stack []dictOperand

	flush := func(op dictOp) {
		res = append(res, dictEntry{op: op, args: stack})
		stack = nil
	}
	push := func(n int, val float64) {
		stack = append(stack, dictOperand{raw: buf[:n], val: val})
		buf = buf[n:]
	}

	for len(buf) > 0 {
		b0 := buf[0]
		switch {
		case b0 == 12:
			if len(buf) < 2 {
				return nil, errCorruptDict
			}
			flush(dictOp(b0)<<8 + dictOp(buf[1]))
			buf = buf[2:]
		case b0 <= 21 || isCFF2 && b0 <= 24:
			flush(dictOp(b0))
			buf = buf[1:]
		case b0 <= 27: // reserved
			return nil, errCorruptDict
		case b0 == 28:
			if len(buf) < 3 {
				return nil, errCorruptDict
			}
			push(3, float64(int16(uint16(buf[1])<<8+uint16(buf[2]))))
		case b0 == 29:
			if len(buf) < 5 {
				return nil, errCorruptDict
			}
			push(5, float64(int32(uint32(buf[1])<<24+uint32(buf[2])<<16+uint32(buf[3])<<8+uint32(buf[4]))))
		case b0 == 30:
			n, x, err := decodeFloat(buf[1:])
			if err != nil {
				return nil, err
			}
			push(n+1, x)
		case b0 == 31: // reserved
			return nil, errCorruptDict
		case b0 <= 246:
			push(1, float64(int32(b0)-139))
		case b0 <= 250:
			if len(buf) < 2 {
				return nil, errCorruptDict
			}
			push(2, float64(int32(b0)*256+int32(buf[1])+(108-247*256)))
		case b0 <= 254:
			if len(buf) < 2 {
				return nil, errCorruptDict
			}
			push(2, float64(-int32(b0)*256-int32(buf[1])-(108-251*256)))
		default: // reserved
			return nil, errCorruptDict
		}
	}
	if len(stack) > 0 {
		return nil, errCorruptDict
	}
	return res, nil
}

// decodeFloat decodes the nibbles of a real number operand.
// The return value n is the number of bytes used, excluding the
// initial byte 30.
func decodeFloat(buf []byte) (int, float64, error) {
	var s []byte
	for n, b := range buf {
		for _, nibble := range []byte{b >> 4, b & 15} {
			switch nibble {
			case 0xa:
				s = append(s, '.')
			case 0xb:
				s = append(s, 'e')
			case 0xc:
				s = append(s, 'e', '-')
			case 0xd: // reserved
				return 0, 0, errCorruptDict
			case 0xe:
				s = append(s, '-')
			case 0xf:
				x, err := strconv.ParseFloat(string(s), 64)
				if err != nil {
					return 0, 0, errCorruptDict
				}
				return n + 1, x, nil
			default:
				s = append(s, '0'+nibble)
			}
		}
	}
	return 0, 0, errCorruptDict
}

func (d cffDict) encode() []byte {
	var res []byte
	for _, entry := range d {
		for _, arg := range entry.args {
			res = append(res, arg.raw...)
		}
		if entry.op > 255 {
			res = append(res, byte(entry.op>>8), byte(entry.op))
		} else {
			res = append(res, byte(entry.op))
		}
	}
	return res
}

func (d cffDict) find(op dictOp) int {
	for i, entry := range d {
		if entry.op == op {
			return i
		}
	}
	return -1
}

func (d cffDict) has(op dictOp) bool {
	return d.find(op) >= 0
}

// getInt returns the first operand of op as an integer.
func (d cffDict) getInt(op dictOp, defVal int) (int, bool) {
	i := d.find(op)
	if i < 0 || len(d[i].args) == 0 {
		return defVal, false
	}
	return int(d[i].args[0].val), true
}

// getPair returns the first two operands of op, as used by the Private
// operator.
func (d cffDict) getPair(op dictOp) (int, int, bool) {
	i := d.find(op)
	if i < 0 || len(d[i].args) < 2 {
		return 0, 0, false
	}
	return int(d[i].args[0].val), int(d[i].args[1].val), true
}

// setInts replaces the operands of op by the given integers, using the
// fixed length five-byte encoding.  If op is not present, it is added at
// the end.
func (d cffDict) setInts(op dictOp, vals ...int) cffDict {
	args := make([]dictOperand, len(vals))
	for i, x := range vals {
		args[i] = fixedInt(x)
	}
	if i := d.find(op); i >= 0 {
		d[i].args = args
		return d
	}
	return append(d, dictEntry{op: op, args: args})
}

func (d cffDict) remove(op dictOp) cffDict {
	res := d[:0:0]
	for _, entry := range d {
		if entry.op != op {
			res = append(res, entry)
		}
	}
	return res
}

func (d cffDict) clone() cffDict {
	res := make(cffDict, len(d))
	for i, entry := range d {
		res[i] = dictEntry{op: entry.op, args: append([]dictOperand(nil), entry.args...)}
	}
	return res
}

// fixedInt encodes x using operator 29, so that the length of the
// encoding does not depend on the value.
func fixedInt(x int) dictOperand {
	return dictOperand{
		raw: []byte{29, byte(x >> 24), byte(x >> 16), byte(x >> 8), byte(x)},
		val: float64(int32(x)),
	}
}

type dictOp uint16

func (d dictOp) String() string {
	switch d {
	case opCharset:
		return "charset"
	case opEncoding:
		return "Encoding"
	case opCharStrings:
		return "CharStrings"
	case opPrivate:
		return "Private"
	case opSubrs:
		return "Subrs"
	case opVSIndex:
		return "vsindex"
	case opBlend:
		return "blend"
	case opVStore:
		return "vstore"
	case opROS:
		return "ROS"
	case opFDArray:
		return "FDArray"
	case opFDSelect:
		return "FDSelect"
	}
	if d > 255 {
		return fmt.Sprintf("dictOp(12 %d)", d&255)
	}
	return fmt.Sprintf("dictOp(%d)", d)
}

const (
	opCharset     dictOp = 0x000F
	opEncoding    dictOp = 0x0010
	opCharStrings dictOp = 0x0011
	opPrivate     dictOp = 0x0012
	opSubrs       dictOp = 0x0013 // Offset (self) to local subrs
	opVSIndex     dictOp = 0x0016 // CFF2 only
	opBlend       dictOp = 0x0017 // CFF2 only
	opVStore      dictOp = 0x0018 // CFF2 only
	opROS         dictOp = 0x0C1E
	opFDArray     dictOp = 0x0C24
	opFDSelect    dictOp = 0x0C25
)

var errCorruptDict = invalidSince("corrupt DICT")
