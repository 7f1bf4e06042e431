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
	"github.com/hanadb/hana/go/hdbtypes"
)

// DefaultFetchSize is the row count asked of the server per fetch
// round trip.
const DefaultFetchSize = 1024

// Rows iterates a result set, fetching blocks of rows from the
// server as the iteration advances.
type Rows struct {
	conn    *Conn
	id      ResultSetID
	columns []*Column

	buffered [][]any
	pos      int
	last     bool
	closed   bool

	fetchSize int
}

// Columns describes the columns of the result set.
func (r *Rows) Columns() []*Column { return r.columns }

// SetFetchSize changes the row count asked of the server per fetch
// round trip.
func (r *Rows) SetFetchSize(n int) {
	if n > 0 {
		r.fetchSize = n
	}
}

// Next returns the next row, or nil after the last one. Values are
// decoded Go values; NULL columns are nil, lob columns are *Lob.
func (r *Rows) Next() ([]any, error) {
	if r.closed {
		return nil, interfaceError("result set closed")
	}
	for r.pos >= len(r.buffered) {
		if r.last {
			return nil, nil
		}
		if err := r.fetchNext(); err != nil {
			return nil, err
		}
	}
	row := r.buffered[r.pos]
	r.pos++
	return row, nil
}

// FetchAll drains the iterator and returns the remaining rows.
func (r *Rows) FetchAll() ([][]any, error) {
	var rows [][]any
	for {
		row, err := r.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Close stops the iteration. The server drops the result set itself
// once its final block was fetched or the session ends.
func (r *Rows) Close() error {
	r.closed = true
	r.buffered = nil
	return nil
}

func (r *Rows) fetchNext() error {
	if len(r.id) == 0 {
		r.last = true
		return nil
	}
	reply, err := r.conn.sendRequest(NewRequest(MtFetchNext, false, r.id, FetchSize(r.fetchSize)))
	if err != nil {
		return err
	}
	p, ok := reply.Part(PkResultSet)
	if !ok {
		return protocolError("fetch reply without a result set part")
	}
	rs := p.(*ResultSet)
	buffered, err := decodeRows(r.columns, rs, r.conn.fetchLobChunk)
	if err != nil {
		return err
	}
	r.buffered = buffered
	r.pos = 0
	r.last = rs.Last() || rs.RowCount == 0
	return nil
}

// decodeRows decodes the encoded row block of a result set part with
// the given column metadata. Lob cells get the fetch capability for
// loading their remainder on demand.
func decodeRows(columns []*Column, rs *ResultSet, fetch lobFetchFunc) ([][]any, error) {
	rows := make([][]any, 0, rs.RowCount)
	pos := 0
	for i := 0; i < rs.RowCount; i++ {
		row := make([]any, len(columns))
		for j, column := range columns {
			var (
				value any
				err   error
			)
			if column.TypeCode.IsLob() {
				value, pos, err = decodeLobValue(column.TypeCode, rs.Payload, pos, fetch)
			} else {
				value, pos, err = hdbtypes.DecodeValue(column.TypeCode, rs.Payload, pos)
			}
			if err != nil {
				return nil, protocolError("row %d column %q: %v", i, column.DisplayName, err)
			}
			row[j] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeOutputParameters decodes the single value row of an output
// parameters part with the output half of the parameter metadata.
func decodeOutputParameters(outputs []*Parameter, part *OutputParameters, fetch lobFetchFunc) ([]any, error) {
	values := make([]any, len(outputs))
	pos := 0
	for i, parameter := range outputs {
		var err error
		if parameter.TypeCode.IsLob() {
			values[i], pos, err = decodeLobValue(parameter.TypeCode, part.Payload, pos, fetch)
		} else {
			values[i], pos, err = hdbtypes.DecodeValue(parameter.TypeCode, part.Payload, pos)
		}
		if err != nil {
			return nil, protocolError("output parameter %d: %v", i, err)
		}
	}
	return values, nil
}
