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
	"github.com/hanadb/hana/go/cesu8"
	"github.com/hanadb/hana/go/hdbtypes"
)

// Parameters carries the input values of an execute request, one
// encoded row per execution of the statement. Rows that do not fit
// into one message stay queued; the statement sends them with follow
// up execute requests. Lob values write a descriptor into the row and
// append their data after the row's fixed fields, spilling whatever
// does not fit into write buffers drained over WRITELOB requests.
type Parameters struct {
	Fields []*Parameter
	Rows   [][]any

	next int
	lobs []*LobWriteBuffer
}

// More reports whether rows remain for a follow up execute request.
func (p *Parameters) More() bool { return p.next < len(p.Rows) }

// LobBuffers returns the lob remainders queued by the last pack, in
// parameter order.
func (p *Parameters) LobBuffers() []*LobWriteBuffer { return p.lobs }

func (*Parameters) Kind() PartKind { return PkParameters }

// Lob descriptor within a parameter row: type code, options, chunk
// length and the one based chunk position within the part payload.
const lobDescrSize = 10

func appendLobDescr(dst []byte, tc hdbtypes.TypeCode) []byte {
	return append(dst, byte(tc), 0, 0, 0, 0, 0, 0, 0, 0, 0)
}

func patchLobDescr(payload []byte, descrPos int, options uint8, length, position int) {
	pos := writeByte(payload, descrPos+1, options)
	pos = writeUint32(payload, pos, uint32(length))
	writeUint32(payload, pos, uint32(position))
}

func lobWriteBytes(tc hdbtypes.TypeCode, v any) ([]byte, error) {
	converted, err := hdbtypes.Convert(tc, v)
	if err != nil {
		return nil, err
	}
	switch data := converted.(type) {
	case string:
		return cesu8.Encode(data)
	case []byte:
		return data, nil
	}
	return nil, interfaceError("cannot use %T as a lob value", v)
}

type pendingLob struct {
	descrPos int
	data     []byte
}

func (p *Parameters) pack(remaining int) (int, []byte, error) {
	p.lobs = nil
	var payload []byte
	rows := 0
	for p.next < len(p.Rows) {
		row := p.Rows[p.next]
		if len(row) != len(p.Fields) {
			return 0, nil, interfaceError("statement takes %d parameters, row %d has %d",
				len(p.Fields), p.next, len(row))
		}

		rowStart := len(payload)
		var rowLobs []pendingLob
		var err error
		for i, field := range p.Fields {
			tc := field.TypeCode
			v := row[i]
			if v != nil && tc.IsLob() {
				var data []byte
				if data, err = lobWriteBytes(tc, v); err != nil {
					return 0, nil, err
				}
				rowLobs = append(rowLobs, pendingLob{descrPos: len(payload), data: data})
				payload = appendLobDescr(payload, tc)
				continue
			}
			if payload, err = hdbtypes.AppendValue(payload, tc, v); err != nil {
				return 0, nil, err
			}
		}

		if len(payload) > remaining {
			if rows == 0 {
				return 0, nil, dataError("parameter row of %d bytes does not fit into a message of %d bytes",
					len(payload)-rowStart, remaining)
			}
			// The row moves to the next message untouched.
			payload = payload[:rowStart]
			break
		}

		for _, lob := range rowLobs {
			n := min(remaining-len(payload), len(lob.data))
			var options uint8
			position := 0
			if n > 0 {
				options |= LobOptionDataIncluded
				position = len(payload) + 1
			}
			if n == len(lob.data) {
				options |= LobOptionLastData
			}
			patchLobDescr(payload, lob.descrPos, options, n, position)
			payload = append(payload, lob.data[:n]...)
			if n < len(lob.data) {
				p.lobs = append(p.lobs, &LobWriteBuffer{Data: lob.data[n:]})
			}
		}

		p.next++
		rows++
	}
	return rows, payload, nil
}
