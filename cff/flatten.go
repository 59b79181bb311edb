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
	"math"
)

// flattener inlines all subroutine calls of a charstring, so that the
// result no longer depends on the global and local subroutine INDEXes.
//
// Operands are copied without re-encoding.  The only bytes removed are
// the subroutine numbers, the callsubr/callgsubr operators and the return
// operators.  Running the flattener on its own output reproduces the
// input.
type flattener struct {
	gsubrs, subrs cffIndex
	isCFF2        bool

	// regions gives the number of regions for each ItemVariationData
	// subtable of a CFF2 variation store.
	regions []int

	// defaultVSIndex is the vsindex value from the Private DICT.
	defaultVSIndex int

	out     []byte
	stack   []stackEntry
	nStems  int
	vsindex int
	storage []float64
}

type stackEntry struct {
	val float64

	// start is the position of the operand in the output, or -1 if the
	// value was computed by an operator.
	start int
}

// flatten returns a copy of code with all subroutine calls inlined.
func (f *flattener) flatten(code []byte) ([]byte, error) {
	f.out = make([]byte, 0, 2*len(code))
	f.stack = f.stack[:0]
	f.nStems = 0
	f.vsindex = f.defaultVSIndex
	f.storage = nil

	_, err := f.run(code, 0)
	if err != nil {
		return nil, err
	}
	return f.out, nil
}

// run processes one charstring or subroutine.  The return value done is
// true once an endchar operator has been seen.
func (f *flattener) run(code []byte, depth int) (done bool, err error) {
	for len(code) > 0 {
		if len(f.stack) > maxStack {
			return false, errStackOverflow
		}

		op := t2op(code[0])
		if n := numberLength(code[0]); n > 0 {
			if len(code) < n {
				return false, errIncomplete
			}
			f.stack = append(f.stack, stackEntry{
				val:   decodeNumber(code[:n]),
				start: len(f.out),
			})
			f.out = append(f.out, code[:n]...)
			code = code[n:]
			continue
		}

		opLen := 1
		if op == 12 {
			if len(code) < 2 {
				return false, errIncomplete
			}
			op = op<<8 | t2op(code[1])
			opLen = 2
		}
		opBytes := code[:opLen]
		code = code[opLen:]

		switch op {
		case t2callsubr, t2callgsubr:
			k := len(f.stack) - 1
			if k < 0 {
				return false, errStackUnderflow
			}
			top := f.stack[k]
			if top.start < 0 {
				return false, notSupported("computed subroutine index")
			}
			f.out = f.out[:top.start]
			f.stack = f.stack[:k]

			if depth >= maxCallDepth {
				return false, invalidSince("maximum call stack size exceeded")
			}
			subrs := f.subrs
			if op == t2callgsubr {
				subrs = f.gsubrs
			}
			body, err := getSubr(subrs, int(top.val))
			if err != nil {
				return false, err
			}
			done, err := f.run(body, depth+1)
			if err != nil || done {
				return done, err
			}

		case t2return:
			if f.isCFF2 {
				return false, invalidSince("return operator in CFF2 charstring")
			}
			return false, nil

		case t2endchar:
			if f.isCFF2 {
				return false, invalidSince("endchar operator in CFF2 charstring")
			}
			f.emit(opBytes)
			return true, nil

		case t2hstem, t2vstem, t2hstemhm, t2vstemhm:
			f.nStems += len(f.stack) / 2
			f.emit(opBytes)
			f.clear()

		case t2hintmask, t2cntrmask:
			// a hintmask directly after the stem hints may carry an
			// implicit vstem
			f.nStems += len(f.stack) / 2
			f.emit(opBytes)
			k := (f.nStems + 7) / 8
			if k > len(code) {
				return false, errIncomplete
			}
			f.out = append(f.out, code[:k]...)
			code = code[k:]
			f.clear()

		case t2vsindex:
			if !f.isCFF2 {
				return false, invalidSince(fmt.Sprintf("unsupported type 2 opcode %d", op))
			}
			k := len(f.stack) - 1
			if k < 0 {
				return false, errStackUnderflow
			}
			f.vsindex = int(f.stack[k].val)
			f.emit(opBytes)
			f.clear()

		case t2blend:
			if !f.isCFF2 {
				return false, invalidSince(fmt.Sprintf("unsupported type 2 opcode %d", op))
			}
			k := len(f.stack) - 1
			if k < 0 {
				return false, errStackUnderflow
			}
			if f.vsindex < 0 || f.vsindex >= len(f.regions) {
				return false, invalidSince("invalid vsindex")
			}
			n := int(f.stack[k].val)
			need := n*(f.regions[f.vsindex]+1) + 1
			if n < 0 || need > len(f.stack) {
				return false, errStackUnderflow
			}
			f.stack = f.stack[:len(f.stack)-need+n]
			f.emit(opBytes)

		case t2abs, t2add, t2sub, t2div, t2neg, t2random, t2mul, t2sqrt,
			t2drop, t2exch, t2index, t2roll, t2dup, t2put, t2get,
			t2and, t2or, t2not, t2eq, t2ifelse:
			err := f.arith(op)
			if err != nil {
				return false, err
			}
			f.emit(opBytes)

		case t2rmoveto, t2hmoveto, t2vmoveto,
			t2rlineto, t2hlineto, t2vlineto,
			t2rrcurveto, t2rcurveline, t2rlinecurve,
			t2hhcurveto, t2vvcurveto, t2hvcurveto, t2vhcurveto,
			t2flex, t2flex1, t2hflex, t2hflex1, t2dotsection:
			f.emit(opBytes)
			f.clear()

		default:
			return false, invalidSince(
				fmt.Sprintf("unsupported type 2 opcode %d", op))
		}
	}

	return false, nil
}

// emit appends an operator to the output.  Operands on the stack can no
// longer be removed from the output after this.
func (f *flattener) emit(opBytes []byte) {
	f.out = append(f.out, opBytes...)
	for i := range f.stack {
		f.stack[i].start = -1
	}
}

func (f *flattener) clear() {
	f.stack = f.stack[:0]
}

// arith applies an arithmetic or storage operator to the stack.
func (f *flattener) arith(op t2op) error {
	stack := f.stack
	k := len(stack) - 1
	need := 1
	switch op {
	case t2add, t2sub, t2div, t2mul, t2exch, t2put, t2and, t2or, t2eq, t2roll:
		need = 2
	case t2ifelse:
		need = 4
	case t2random:
		need = 0
	}
	if len(stack) < need {
		return errStackUnderflow
	}

	computed := func(val float64) stackEntry {
		return stackEntry{val: val, start: -1}
	}
	boolVal := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	switch op {
	case t2abs:
		stack[k] = computed(math.Abs(stack[k].val))
	case t2neg:
		stack[k] = computed(-stack[k].val)
	case t2sqrt:
		var x float64
		if stack[k].val > 0 {
			x = math.Sqrt(stack[k].val)
		}
		stack[k] = computed(x)
	case t2not:
		stack[k] = computed(boolVal(stack[k].val == 0))
	case t2add:
		stack = append(stack[:k-1], computed(stack[k-1].val+stack[k].val))
	case t2sub:
		stack = append(stack[:k-1], computed(stack[k-1].val-stack[k].val))
	case t2mul:
		stack = append(stack[:k-1], computed(stack[k-1].val*stack[k].val))
	case t2div:
		var x float64
		if stack[k].val != 0 {
			x = stack[k-1].val / stack[k].val
		}
		stack = append(stack[:k-1], computed(x))
	case t2and:
		stack = append(stack[:k-1], computed(boolVal(stack[k-1].val != 0 && stack[k].val != 0)))
	case t2or:
		stack = append(stack[:k-1], computed(boolVal(stack[k-1].val != 0 || stack[k].val != 0)))
	case t2eq:
		stack = append(stack[:k-1], computed(boolVal(stack[k-1].val == stack[k].val)))
	case t2ifelse:
		val := stack[k-2].val
		if stack[k-1].val <= stack[k].val {
			val = stack[k-3].val
		}
		stack = append(stack[:k-3], computed(val))
	case t2random:
		stack = append(stack, computed(40501.0/65536)) // a random value in (0, 1]
	case t2drop:
		stack = stack[:k]
	case t2dup:
		stack = append(stack, computed(stack[k].val))
	case t2exch:
		stack[k-1], stack[k] = computed(stack[k].val), computed(stack[k-1].val)
	case t2index:
		idx := int(stack[k].val)
		if idx < 0 {
			idx = 0
		}
		if k-idx-1 < 0 {
			return invalidSince("invalid index")
		}
		stack[k] = computed(stack[k-idx-1].val)
	case t2roll:
		n := int(stack[k-1].val)
		j := int(stack[k].val)
		if n <= 0 || n > k-1 {
			return invalidSince("invalid roll count")
		}
		stack = stack[:k-1]
		roll(stack[len(stack)-n:], j)
		for i := range stack {
			stack[i].start = -1
		}
	case t2put:
		m := int(stack[k].val)
		if m < 0 || m >= 32 {
			return invalidSince("invalid store index")
		}
		if f.storage == nil {
			f.storage = make([]float64, 32)
		}
		f.storage[m] = stack[k-1].val
		stack = stack[:k-1]
	case t2get:
		m := int(stack[k].val)
		if m < 0 || m >= len(f.storage) {
			return invalidSince("invalid store index")
		}
		stack[k] = computed(f.storage[m])
	}
	f.stack = stack
	return nil
}

// numberLength returns the length of the number encoding which starts
// with byte b0, or 0 if b0 starts an operator.
func numberLength(b0 byte) int {
	switch {
	case b0 >= 32 && b0 <= 246:
		return 1
	case b0 >= 247 && b0 <= 254:
		return 2
	case b0 == 28:
		return 3
	case b0 == 255:
		return 5
	default:
		return 0
	}
}

func decodeNumber(code []byte) float64 {
	op := code[0]
	switch {
	case op >= 32 && op <= 246:
		return float64(int16(op) - 139)
	case op >= 247 && op <= 250:
		return float64((int16(op)-247)*256 + int16(code[1]) + 108)
	case op >= 251 && op <= 254:
		return float64((251-int16(op))*256 - int16(code[1]) - 108)
	case op == 28:
		return float64(int16(code[1])<<8 | int16(code[2]))
	default: // 255
		val := int32(code[1])<<24 | int32(code[2])<<16 | int32(code[3])<<8 | int32(code[4])
		return float64(val) / 65536
	}
}

func getSubr(subrs cffIndex, biased int) ([]byte, error) {
	var offset int
	nSubrs := len(subrs)
	if nSubrs < 1240 {
		offset = 107
	} else if nSubrs < 33900 {
		offset = 1131
	} else {
		offset = 32768
	}

	idx := biased + offset
	if idx < 0 || idx >= len(subrs) {
		return nil, errInvalidSubroutine
	}
	return subrs[idx], nil
}

func roll(data []stackEntry, j int) {
	n := len(data)

	j = j % n
	if j < 0 {
		j += n
	}

	tmp := make([]stackEntry, j)
	copy(tmp, data[n-j:])
	copy(data[j:], data[:n-j])
	copy(data[:j], tmp)
}

type t2op uint16

const (
	t2hstem      t2op = 0x0001
	t2vstem      t2op = 0x0003
	t2vmoveto    t2op = 0x0004
	t2rlineto    t2op = 0x0005
	t2hlineto    t2op = 0x0006
	t2vlineto    t2op = 0x0007
	t2rrcurveto  t2op = 0x0008
	t2callsubr   t2op = 0x000a
	t2return     t2op = 0x000b
	t2endchar    t2op = 0x000e
	t2vsindex    t2op = 0x000f // CFF2 only
	t2blend      t2op = 0x0010 // CFF2 only
	t2hstemhm    t2op = 0x0012
	t2hintmask   t2op = 0x0013
	t2cntrmask   t2op = 0x0014
	t2rmoveto    t2op = 0x0015
	t2hmoveto    t2op = 0x0016
	t2vstemhm    t2op = 0x0017
	t2rcurveline t2op = 0x0018
	t2rlinecurve t2op = 0x0019
	t2vvcurveto  t2op = 0x001a
	t2hhcurveto  t2op = 0x001b
	t2callgsubr  t2op = 0x001d
	t2vhcurveto  t2op = 0x001e
	t2hvcurveto  t2op = 0x001f

	t2dotsection t2op = 0x0c00
	t2and        t2op = 0x0c03
	t2or         t2op = 0x0c04
	t2not        t2op = 0x0c05
	t2abs        t2op = 0x0c09
	t2add        t2op = 0x0c0a
	t2sub        t2op = 0x0c0b
	t2div        t2op = 0x0c0c
	t2neg        t2op = 0x0c0e
	t2eq         t2op = 0x0c0f
	t2drop       t2op = 0x0c12
	t2put        t2op = 0x0c14
	t2get        t2op = 0x0c15
	t2ifelse     t2op = 0x0c16
	t2random     t2op = 0x0c17
	t2mul        t2op = 0x0c18
	t2sqrt       t2op = 0x0c1a
	t2dup        t2op = 0x0c1b
	t2exch       t2op = 0x0c1c
	t2index      t2op = 0x0c1d
	t2roll       t2op = 0x0c1e
	t2hflex      t2op = 0x0c22
	t2flex       t2op = 0x0c23
	t2hflex1     t2op = 0x0c24
	t2flex1      t2op = 0x0c25
)

const (
	maxStack     = 513 // CFF2 limit, the CFF limit is 48
	maxCallDepth = 10
)

var (
	errStackOverflow     = invalidSince("type 2 stack overflow")
	errStackUnderflow    = invalidSince("type 2 stack underflow")
	errIncomplete        = invalidSince("incomplete type 2 charstring")
	errInvalidSubroutine = invalidSince("invalid type 2 subroutine index")
)
