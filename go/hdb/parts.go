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
)

// Command carries the text of an SQL command, encoded in CESU-8 on
// the wire.
type Command struct {
	SQL string
}

func (*Command) Kind() PartKind { return PkCommand }

func (p *Command) pack(remaining int) (int, []byte, error) {
	payload, err := cesu8.Encode(p.SQL)
	if err != nil {
		return 0, nil, interfaceError("command is not valid text: %v", err)
	}
	return 1, payload, nil
}

func unpackCommand(payload []byte) (Part, error) {
	sql, err := cesu8.Decode(payload)
	if err != nil {
		return nil, protocolError("malformed command text: %v", err)
	}
	return &Command{SQL: sql}, nil
}

// ClientID identifies the client process to the server, conventionally
// as "pid@hostname".
type ClientID struct {
	ID string
}

func (*ClientID) Kind() PartKind { return PkClientID }

func (p *ClientID) pack(remaining int) (int, []byte, error) {
	payload, err := cesu8.Encode(p.ID)
	if err != nil {
		return 0, nil, interfaceError("client id is not valid text: %v", err)
	}
	return 1, payload, nil
}

func unpackClientID(payload []byte) (Part, error) {
	id, err := cesu8.Decode(payload)
	if err != nil {
		return nil, protocolError("malformed client id: %v", err)
	}
	return &ClientID{ID: id}, nil
}

// AuthMethod is one authentication method entry, pairing the method
// name with its method specific data.
type AuthMethod struct {
	Name string
	Data []byte
}

// Authentication carries the authentication dialog. In requests it
// names the user and the methods offered; in replies the user is
// empty and the methods hold the server's per-method challenge or
// confirmation data.
type Authentication struct {
	User    string
	Methods []AuthMethod
}

func (*Authentication) Kind() PartKind { return PkAuthentication }

// Method returns the data of the named method.
func (p *Authentication) Method(name string) ([]byte, bool) {
	for _, m := range p.Methods {
		if m.Name == name {
			return m.Data, true
		}
	}
	return nil, false
}

func (p *Authentication) pack(remaining int) (int, []byte, error) {
	user, err := cesu8.Encode(p.User)
	if err != nil {
		return 0, nil, interfaceError("user is not valid text: %v", err)
	}
	fields := make([][]byte, 0, 1+2*len(p.Methods))
	fields = append(fields, user)
	for _, m := range p.Methods {
		fields = append(fields, []byte(m.Name), m.Data)
	}
	payload := make([]byte, packedFieldsSize(fields))
	packFields(payload, 0, fields)
	return 1, payload, nil
}

func unpackAuthentication(payload []byte) (Part, error) {
	fields, _, err := unpackFields(payload, 0)
	if err != nil {
		return nil, err
	}
	p := &Authentication{}
	// Requests lead with the user name, replies carry method pairs only.
	if len(fields)%2 != 0 {
		p.User = string(fields[0])
		fields = fields[1:]
	}
	for i := 0; i < len(fields); i += 2 {
		p.Methods = append(p.Methods, AuthMethod{
			Name: string(fields[i]),
			Data: fields[i+1],
		})
	}
	return p, nil
}

// Errors is an error part. A single part can report several errors,
// for example one per row of a bulk operation.
type Errors []*ServerError

func (Errors) Kind() PartKind { return PkError }

const (
	errorFixedSize = 13
	sqlStateSize   = 5
)

func unpackErrors(argCount int, payload []byte) (Part, error) {
	errs := make(Errors, 0, argCount)
	pos := 0
	for i := 0; i < argCount; i++ {
		var (
			code, position, textLength int32
			level                      byte
			ok                         bool
		)
		if code, pos, ok = readInt32(payload, pos); !ok {
			return nil, protocolError("truncated error part")
		}
		if position, pos, ok = readInt32(payload, pos); !ok {
			return nil, protocolError("truncated error part")
		}
		if textLength, pos, ok = readInt32(payload, pos); !ok {
			return nil, protocolError("truncated error part")
		}
		if level, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated error part")
		}
		var state, text []byte
		if state, pos, ok = readBytesCopy(payload, pos, sqlStateSize); !ok {
			return nil, protocolError("truncated error part")
		}
		if text, pos, ok = readBytes(payload, pos, int(textLength)); !ok {
			return nil, protocolError("truncated error part")
		}
		message, err := cesu8.Decode(text)
		if err != nil {
			return nil, protocolError("malformed error text: %v", err)
		}
		errs = append(errs, &ServerError{
			Code:     code,
			Position: position,
			Level:    int8(level),
			SQLState: string(state),
			Message:  message,
		})
	}
	return errs, nil
}

// RowsAffected reports per statement row counts of a DML reply.
type RowsAffected []int32

func (RowsAffected) Kind() PartKind { return PkRowsAffected }

// Total sums the row counts.
func (r RowsAffected) Total() int64 {
	var total int64
	for _, n := range r {
		total += int64(n)
	}
	return total
}

func unpackRowsAffected(argCount int, payload []byte) (Part, error) {
	rows := make(RowsAffected, 0, argCount)
	pos := 0
	for i := 0; i < argCount; i++ {
		n, next, ok := readInt32(payload, pos)
		if !ok {
			return nil, protocolError("truncated rows affected part")
		}
		pos = next
		rows = append(rows, n)
	}
	return rows, nil
}

const resultSetIDSize = 8

// ResultSetID is the server assigned handle of an open result set,
// echoed back by the client to fetch more rows.
type ResultSetID []byte

func (ResultSetID) Kind() PartKind { return PkResultSetID }

func (id ResultSetID) pack(remaining int) (int, []byte, error) {
	return 1, id, nil
}

func unpackResultSetID(payload []byte) (Part, error) {
	id, _, ok := readBytesCopy(payload, 0, resultSetIDSize)
	if !ok {
		return nil, protocolError("result set id part with %d bytes", len(payload))
	}
	return ResultSetID(id), nil
}

const statementIDSize = 8

// StatementID is the server assigned handle of a prepared statement.
type StatementID []byte

func (StatementID) Kind() PartKind { return PkStatementID }

func (id StatementID) pack(remaining int) (int, []byte, error) {
	return 1, id, nil
}

func unpackStatementID(payload []byte) (Part, error) {
	id, _, ok := readBytesCopy(payload, 0, statementIDSize)
	if !ok {
		return nil, protocolError("statement id part with %d bytes", len(payload))
	}
	return StatementID(id), nil
}

// FetchSize asks the server for at most this many rows in the next
// fetch reply.
type FetchSize int32

func (FetchSize) Kind() PartKind { return PkFetchSize }

func (n FetchSize) pack(remaining int) (int, []byte, error) {
	payload := make([]byte, 4)
	writeUint32(payload, 0, uint32(n))
	return 1, payload, nil
}

func unpackFetchSize(payload []byte) (Part, error) {
	n, _, ok := readInt32(payload, 0)
	if !ok {
		return nil, protocolError("fetch size part with %d bytes", len(payload))
	}
	return FetchSize(n), nil
}

// StatementContext is server side statement state the client treats
// as opaque.
type StatementContext struct {
	Data []byte
}

func (*StatementContext) Kind() PartKind { return PkStatementContext }

// TopologyInformation describes the server landscape. The client does
// not interpret it.
type TopologyInformation struct {
	Data []byte
}

func (*TopologyInformation) Kind() PartKind { return PkTopologyInformation }

// ResultSet is a block of encoded result rows. Rows stay encoded
// until they are walked with the result set metadata, since the
// column types live in a different part.
type ResultSet struct {
	Attributes uint8
	RowCount   int
	Payload    []byte
}

func (*ResultSet) Kind() PartKind { return PkResultSet }

// Last reports whether this block ends the result set.
func (p *ResultSet) Last() bool {
	return p.Attributes&PartAttrLastPacket != 0 || p.Attributes&PartAttrResultSetClosed != 0
}

// OutputParameters carries the encoded output values of a procedure
// call, decoded with the parameter metadata.
type OutputParameters struct {
	Attributes uint8
	ArgCount   int
	Payload    []byte
}

func (*OutputParameters) Kind() PartKind { return PkOutputParameters }
