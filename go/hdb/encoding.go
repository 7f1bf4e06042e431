/*
Copyright 2024 The HanaDB Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package hdb

import (
	"encoding/binary"
)

// This file contains the low level encoding and decoding primitives
// for the wire format. All multi-byte integers are little-endian.
//
// The read functions take a buffer and a position, and return the
// value, the new position, and whether the read was successful.
// The write functions assume the buffer is big enough and return the
// new position.

func readByte(data []byte, pos int) (byte, int, bool) {
	if pos >= len(data) {
		return 0, 0, false
	}
	return data[pos], pos + 1, true
}

func readUint16(data []byte, pos int) (uint16, int, bool) {
	// Check we have enough bytes first. This is also an early bounds
	// check for the compiler.
	if pos+1 >= len(data) {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(data[pos : pos+2]), pos + 2, true
}

func readInt16(data []byte, pos int) (int16, int, bool) {
	u, pos, ok := readUint16(data, pos)
	return int16(u), pos, ok
}

func readUint32(data []byte, pos int) (uint32, int, bool) {
	if pos+3 >= len(data) {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint32(data[pos : pos+4]), pos + 4, true
}

func readInt32(data []byte, pos int) (int32, int, bool) {
	u, pos, ok := readUint32(data, pos)
	return int32(u), pos, ok
}

func readUint64(data []byte, pos int) (uint64, int, bool) {
	if pos+7 >= len(data) {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint64(data[pos : pos+8]), pos + 8, true
}

func readInt64(data []byte, pos int) (int64, int, bool) {
	u, pos, ok := readUint64(data, pos)
	return int64(u), pos, ok
}

// readBytes returns a sub-slice of data without copying.
func readBytes(data []byte, pos int, size int) ([]byte, int, bool) {
	if pos+size > len(data) {
		return nil, 0, false
	}
	return data[pos : pos+size], pos + size, true
}

// readBytesCopy is like readBytes but returns a copy, for use when the
// result outlives the buffer it came from.
func readBytesCopy(data []byte, pos int, size int) ([]byte, int, bool) {
	b, pos, ok := readBytes(data, pos, size)
	if !ok {
		return nil, 0, false
	}
	out := make([]byte, size)
	copy(out, b)
	return out, pos, true
}

func writeByte(data []byte, pos int, value byte) int {
	data[pos] = value
	return pos + 1
}

func writeUint16(data []byte, pos int, value uint16) int {
	binary.LittleEndian.PutUint16(data[pos:], value)
	return pos + 2
}

func writeUint32(data []byte, pos int, value uint32) int {
	binary.LittleEndian.PutUint32(data[pos:], value)
	return pos + 4
}

func writeUint64(data []byte, pos int, value uint64) int {
	binary.LittleEndian.PutUint64(data[pos:], value)
	return pos + 8
}

func writeBytes(data []byte, pos int, value []byte) int {
	copy(data[pos:], value)
	return pos + len(value)
}

func writeZeroes(data []byte, pos int, len int) int {
	end := pos + len
	clear(data[pos:end])
	return end
}

// padded8 returns size rounded up to the next multiple of 8. Part
// payloads are zero-padded to 8 byte boundaries on the wire.
func padded8(size int) int {
	return (size + 7) &^ 7
}
