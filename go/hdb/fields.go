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

// Authentication payloads are lists of length-prefixed fields. The
// list starts with a uint16 field count. Each field is prefixed by a
// one byte size; fields of 250 bytes or more use the escape byte 0xff
// followed by a uint16 size.

const fieldSizeEscape = 0xff

func packedFieldsSize(fields [][]byte) int {
	size := 2
	for _, f := range fields {
		size++
		if len(f) >= 250 {
			size += 2
		}
		size += len(f)
	}
	return size
}

func packFields(data []byte, pos int, fields [][]byte) int {
	pos = writeUint16(data, pos, uint16(len(fields)))
	for _, f := range fields {
		if len(f) >= 250 {
			pos = writeByte(data, pos, fieldSizeEscape)
			pos = writeUint16(data, pos, uint16(len(f)))
		} else {
			pos = writeByte(data, pos, byte(len(f)))
		}
		pos = writeBytes(data, pos, f)
	}
	return pos
}

func unpackFields(data []byte, pos int) ([][]byte, int, error) {
	count, pos, ok := readUint16(data, pos)
	if !ok {
		return nil, 0, protocolError("truncated field list")
	}
	fields := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		sizeByte, next, ok := readByte(data, pos)
		if !ok {
			return nil, 0, protocolError("truncated field %d of %d", i, count)
		}
		pos = next
		size := int(sizeByte)
		if sizeByte == fieldSizeEscape {
			var size16 uint16
			size16, pos, ok = readUint16(data, pos)
			if !ok {
				return nil, 0, protocolError("truncated field %d of %d", i, count)
			}
			size = int(size16)
		}
		var field []byte
		field, pos, ok = readBytesCopy(data, pos, size)
		if !ok {
			return nil, 0, protocolError("truncated field %d of %d", i, count)
		}
		fields = append(fields, field)
	}
	return fields, pos, nil
}
