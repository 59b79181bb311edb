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

package gvar

import "seehuhn.de/go/dag"

// Flags in the tupleVariationCount field of GlyphVariationData.
const (
	sharedPointNumbers = 0x8000
	countMask          = 0x0FFF
)

// Flags in the tupleIndex field of TupleVariationHeader.
const (
	embeddedPeakTuple   = 0x8000
	intermediateRegion  = 0x4000
	privatePointNumbers = 0x2000
)

// tupleVariation is one TupleVariationHeader together with its deltas.
type tupleVariation struct {
	// region is the tupleIndex field, followed by the peak and
	// intermediate coordinates, in binary form.  The private point
	// numbers flag is cleared.
	region []byte

	// points lists the point numbers the deltas apply to, or is nil if
	// the deltas apply to all points.
	points []int
	dx, dy []int32
}

// decodeTuples parses the GlyphVariationData of a glyph with numPoints
// points, including the phantom points.
func decodeTuples(data []byte, axisCount, numPoints int) ([]*tupleVariation, error) {
	if len(data) < 4 {
		return nil, errMalformed("glyph variation data too short")
	}
	tupleCount := u16(data)
	dataOffset := int(u16(data[2:]))
	if dataOffset < 4 || dataOffset > len(data) {
		return nil, errMalformed("invalid serialized data offset")
	}
	serialized := data[dataOffset:]

	var shared []int
	if tupleCount&sharedPointNumbers != 0 {
		var n int
		var err error
		shared, n, err = decodePoints(serialized)
		if err != nil {
			return nil, err
		}
		serialized = serialized[n:]
	}

	headers := data[4:dataOffset]
	res := make([]*tupleVariation, 0, tupleCount&countMask)
	for range int(tupleCount & countMask) {
		if len(headers) < 4 {
			return nil, errMalformed("tuple variation headers too short")
		}
		size := int(u16(headers))
		tupleIndex := u16(headers[2:])
		hdrLen := 4
		if tupleIndex&embeddedPeakTuple != 0 {
			hdrLen += 2 * axisCount
		}
		if tupleIndex&intermediateRegion != 0 {
			hdrLen += 4 * axisCount
		}
		if len(headers) < hdrLen || len(serialized) < size {
			return nil, errMalformed("tuple variation data too short")
		}

		region := make([]byte, hdrLen-2)
		copy(region, headers[2:hdrLen])
		put16(region, tupleIndex&^privatePointNumbers)
		headers = headers[hdrLen:]

		body := serialized[:size]
		serialized = serialized[size:]

		tv := &tupleVariation{region: region, points: shared}
		if tupleIndex&privatePointNumbers != 0 {
			points, n, err := decodePoints(body)
			if err != nil {
				return nil, err
			}
			tv.points = points
			body = body[n:]
		}
		count := numPoints
		if tv.points != nil {
			count = len(tv.points)
		}
		var n int
		var err error
		tv.dx, n, err = decodeDeltas(body, count)
		if err != nil {
			return nil, err
		}
		tv.dy, _, err = decodeDeltas(body[n:], count)
		if err != nil {
			return nil, err
		}
		res = append(res, tv)
	}
	return res, nil
}

// encodeTuples returns the GlyphVariationData for the given tuples.
// All tuples use private point numbers.
func encodeTuples(tuples []*tupleVariation) []byte {
	if len(tuples) == 0 {
		return nil
	}

	var headers, serialized []byte
	for _, tv := range tuples {
		body := encodePoints(tv.points)
		body = append(body, encodeDeltas(tv.dx)...)
		body = append(body, encodeDeltas(tv.dy)...)

		headers = append(headers, byte(len(body)>>8), byte(len(body)))
		headers = append(headers, tv.region...)
		headers[len(headers)-len(tv.region)] |= privatePointNumbers >> 8
		serialized = append(serialized, body...)
	}

	dataOffset := 4 + len(headers)
	res := make([]byte, 4, dataOffset+len(serialized))
	put16(res, uint16(len(tuples)))
	put16(res[2:], uint16(dataOffset))
	res = append(res, headers...)
	res = append(res, serialized...)
	return res
}

// composite computes the variation data for a composite glyph which
// consists of a single, unshifted reference to the replacer.  The
// replacer has the variation data repl and replacerPoints own points.
//
// The component offset does not vary.  The phantom points follow the
// phantom points of the replacer, so that the glyph metrics vary like
// the replacer's metrics.
func (t *Table) composite(repl []byte, replacerPoints int) ([]byte, error) {
	tuples, err := decodeTuples(repl, t.AxisCount, replacerPoints+4)
	if err != nil {
		return nil, err
	}

	var res []*tupleVariation
	for _, tv := range tuples {
		dx := make([]int32, 5)
		dy := make([]int32, 5)
		nonZero := false
		for i := range tv.dx {
			p := i
			if tv.points != nil {
				p = tv.points[i]
			}
			k := p - replacerPoints
			if k < 0 || k >= 4 {
				continue
			}
			dx[k+1] = tv.dx[i]
			dy[k+1] = tv.dy[i]
			if tv.dx[i] != 0 || tv.dy[i] != 0 {
				nonZero = true
			}
		}
		if !nonZero {
			continue
		}
		res = append(res, &tupleVariation{
			region: tv.region,
			dx:     dx,
			dy:     dy,
		})
	}
	return encodeTuples(res), nil
}

// decodePoints decodes packed point numbers.  The return value is nil if
// the data refers to all points of the glyph.
func decodePoints(data []byte) ([]int, int, error) {
	if len(data) < 1 {
		return nil, 0, errMalformed("missing point numbers")
	}
	count := int(data[0])
	pos := 1
	if count == 0 {
		return nil, pos, nil
	}
	if count&0x80 != 0 {
		if len(data) < 2 {
			return nil, 0, errMalformed("missing point numbers")
		}
		count = (count&0x7F)<<8 | int(data[1])
		pos = 2
	}

	res := make([]int, 0, count)
	last := 0
	for len(res) < count {
		if pos >= len(data) {
			return nil, 0, errMalformed("point numbers too short")
		}
		control := data[pos]
		pos++
		runLength := int(control&0x7F) + 1
		words := control&0x80 != 0
		for range runLength {
			if words {
				if pos+2 > len(data) {
					return nil, 0, errMalformed("point numbers too short")
				}
				last += int(u16(data[pos:]))
				pos += 2
			} else {
				if pos >= len(data) {
					return nil, 0, errMalformed("point numbers too short")
				}
				last += int(data[pos])
				pos++
			}
			res = append(res, last)
		}
	}
	if len(res) > count {
		return nil, 0, errMalformed("too many point numbers")
	}
	return res, pos, nil
}

// encodePoints encodes point numbers in packed form.  A nil slice
// refers to all points.
func encodePoints(points []int) []byte {
	if points == nil {
		return []byte{0}
	}

	var res []byte
	if n := len(points); n < 0x80 {
		res = append(res, byte(n))
	} else {
		res = append(res, byte(n>>8)|0x80, byte(n))
	}

	diffs := make([]int, len(points))
	last := 0
	for i, p := range points {
		diffs[i] = p - last
		last = p
	}
	for len(diffs) > 0 {
		words := diffs[0] > 0xFF
		n := 0
		for n < len(diffs) && n < 128 && (diffs[n] > 0xFF) == words {
			n++
		}
		control := byte(n - 1)
		if words {
			control |= 0x80
		}
		res = append(res, control)
		for _, d := range diffs[:n] {
			if words {
				res = append(res, byte(d>>8), byte(d))
			} else {
				res = append(res, byte(d))
			}
		}
		diffs = diffs[n:]
	}
	return res
}

// Control bits for packed deltas.
const (
	deltasAreZero  = 0x80
	deltasAreWords = 0x40
	deltaRunMask   = 0x3F
)

// decodeDeltas decodes count packed deltas.
func decodeDeltas(data []byte, count int) ([]int32, int, error) {
	res := make([]int32, 0, count)
	pos := 0
	for len(res) < count {
		if pos >= len(data) {
			return nil, 0, errMalformed("packed deltas too short")
		}
		control := data[pos]
		pos++
		runLength := int(control&deltaRunMask) + 1

		var size int
		switch control & (deltasAreZero | deltasAreWords) {
		case 0:
			size = 1
		case deltasAreWords:
			size = 2
		case deltasAreZero | deltasAreWords:
			size = 4
		}
		if pos+size*runLength > len(data) {
			return nil, 0, errMalformed("packed deltas too short")
		}
		for range runLength {
			var d int32
			switch size {
			case 1:
				d = int32(int8(data[pos]))
			case 2:
				d = int32(int16(u16(data[pos:])))
			case 4:
				d = int32(u32(data[pos:]))
			}
			pos += size
			res = append(res, d)
		}
	}
	if len(res) > count {
		return nil, 0, errMalformed("too many deltas")
	}
	return res, pos, nil
}

// encodeDeltas encodes deltas in packed form.
func encodeDeltas(deltas []int32) []byte {
	if len(deltas) == 0 {
		return nil
	}

	ee, err := dag.ShortestPath[deltaRun, int](deltaGraph(deltas), len(deltas))
	if err != nil {
		panic(err)
	}

	var res []byte
	for _, e := range ee {
		control := byte(e.n - 1)
		switch e.size {
		case 0:
			control |= deltasAreZero
		case 2:
			control |= deltasAreWords
		case 4:
			control |= deltasAreZero | deltasAreWords
		}
		res = append(res, control)
		for _, d := range deltas[:e.n] {
			switch e.size {
			case 1:
				res = append(res, byte(d))
			case 2:
				res = append(res, byte(d>>8), byte(d))
			case 4:
				res = append(res, byte(d>>24), byte(d>>16), byte(d>>8), byte(d))
			}
		}
		deltas = deltas[e.n:]
	}
	return res
}

// deltaRun is a run of n deltas, each stored using size bytes.
type deltaRun struct {
	size, n int
}

// deltaGraph has one vertex for each position in a list of deltas.
// The edges are the runs which can start at a given position.
type deltaGraph []int32

func (g deltaGraph) AppendEdges(ee []deltaRun, v int) []deltaRun {
	for _, size := range []int{0, 1, 2, 4} {
		for n := 1; n <= deltaRunMask+1 && v+n <= len(g); n++ {
			if !deltaFits(g[v+n-1], size) {
				break
			}
			ee = append(ee, deltaRun{size: size, n: n})
		}
	}
	return ee
}

// Length returns twice the number of bytes used by the run, plus one.
// This way, fewer runs are preferred among encodings of the same size.
func (g deltaGraph) Length(v int, e deltaRun) int {
	return 2*(1+e.size*e.n) + 1
}

func (g deltaGraph) To(v int, e deltaRun) int {
	return v + e.n
}

func deltaFits(d int32, size int) bool {
	switch size {
	case 0:
		return d == 0
	case 1:
		return d >= -128 && d <= 127
	case 2:
		return d >= -32768 && d <= 32767
	default:
		return true
	}
}
