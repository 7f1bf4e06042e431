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

// Column and parameter option bits.
const (
	columnOptionMandatory uint8 = 0x01
	columnOptionOptional  uint8 = 0x02
	columnOptionDefault   uint8 = 0x04
)

// Column describes one column of a result set.
type Column struct {
	Options     uint8
	TypeCode    hdbtypes.TypeCode
	Fraction    int16
	Length      int16
	TableName   string
	SchemaName  string
	ColumnName  string
	DisplayName string
}

// Nullable reports whether the column admits NULL values.
func (c *Column) Nullable() bool {
	return c.Options&columnOptionOptional != 0
}

// ResultSetMetadata describes the columns of a result set.
type ResultSetMetadata struct {
	Columns []*Column
}

func (*ResultSetMetadata) Kind() PartKind { return PkResultSetMetadata }

const (
	columnEntrySize = 24

	// nameOffsetAbsent marks a name offset with no name behind it.
	nameOffsetAbsent uint32 = 0xffffffff
)

func unpackResultSetMetadata(argCount int, payload []byte) (Part, error) {
	type entry struct {
		column  *Column
		offsets [4]uint32
	}

	entries := make([]entry, 0, argCount)
	pos := 0
	for i := 0; i < argCount; i++ {
		var (
			options, datatype byte
			fraction, length  int16
			ok                bool
		)
		if options, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated result set metadata")
		}
		if datatype, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated result set metadata")
		}
		if fraction, pos, ok = readInt16(payload, pos); !ok {
			return nil, protocolError("truncated result set metadata")
		}
		if length, pos, ok = readInt16(payload, pos); !ok {
			return nil, protocolError("truncated result set metadata")
		}
		// Two reserved bytes.
		if _, pos, ok = readInt16(payload, pos); !ok {
			return nil, protocolError("truncated result set metadata")
		}
		e := entry{column: &Column{
			Options:  options,
			TypeCode: hdbtypes.TypeCode(datatype),
			Fraction: fraction,
			Length:   length,
		}}
		for j := range e.offsets {
			if e.offsets[j], pos, ok = readUint32(payload, pos); !ok {
				return nil, protocolError("truncated result set metadata")
			}
		}
		entries = append(entries, e)
	}

	// Names are stored once after the column entries and referenced
	// by offset relative to the end of the entries.
	contentStart := pos
	columns := make([]*Column, 0, argCount)
	for _, e := range entries {
		names := [4]string{}
		for j, offset := range e.offsets {
			if offset == nameOffsetAbsent {
				continue
			}
			name, err := readMetadataName(payload, contentStart+int(offset))
			if err != nil {
				return nil, err
			}
			names[j] = name
		}
		e.column.TableName = names[0]
		e.column.SchemaName = names[1]
		e.column.ColumnName = names[2]
		e.column.DisplayName = names[3]
		columns = append(columns, e.column)
	}
	return &ResultSetMetadata{Columns: columns}, nil
}

func readMetadataName(payload []byte, pos int) (string, error) {
	length, pos, ok := readByte(payload, pos)
	if !ok {
		return "", protocolError("metadata name offset out of range")
	}
	raw, _, ok := readBytes(payload, pos, int(length))
	if !ok {
		return "", protocolError("truncated metadata name")
	}
	name, err := cesu8.Decode(raw)
	if err != nil {
		return "", protocolError("malformed metadata name: %v", err)
	}
	return name, nil
}

// ParameterMode tells in which direction a parameter travels.
type ParameterMode uint8

const (
	ParameterIn    ParameterMode = 0x01
	ParameterInOut ParameterMode = 0x02
	ParameterOut   ParameterMode = 0x04
)

// In reports whether the statement takes an input value for the
// parameter.
func (m ParameterMode) In() bool {
	return m&(ParameterIn|ParameterInOut) != 0
}

// Out reports whether the statement produces an output value for the
// parameter.
func (m ParameterMode) Out() bool {
	return m&(ParameterOut|ParameterInOut) != 0
}

// Parameter describes one parameter of a prepared statement.
type Parameter struct {
	Options  uint8
	TypeCode hdbtypes.TypeCode
	Mode     ParameterMode
	Length   int16
	Fraction int16

	// Name is empty for positional parameters.
	Name string
}

// ParameterMetadata describes the parameters of a prepared statement.
type ParameterMetadata struct {
	Parameters []*Parameter
}

func (*ParameterMetadata) Kind() PartKind { return PkParameterMetadata }

const parameterEntrySize = 16

func unpackParameterMetadata(argCount int, payload []byte) (Part, error) {
	type entry struct {
		parameter *Parameter
		offset    uint32
	}

	entries := make([]entry, 0, argCount)
	pos := 0
	for i := 0; i < argCount; i++ {
		var (
			options, typecode, mode byte
			offset                  uint32
			length, fraction        int16
			ok                      bool
		)
		if options, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if typecode, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if mode, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if _, pos, ok = readByte(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if offset, pos, ok = readUint32(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if length, pos, ok = readInt16(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if fraction, pos, ok = readInt16(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		if _, pos, ok = readUint32(payload, pos); !ok {
			return nil, protocolError("truncated parameter metadata")
		}
		entries = append(entries, entry{
			parameter: &Parameter{
				Options:  options,
				TypeCode: hdbtypes.TypeCode(typecode),
				Mode:     ParameterMode(mode),
				Length:   length,
				Fraction: fraction,
			},
			offset: offset,
		})
	}

	contentStart := pos
	parameters := make([]*Parameter, 0, argCount)
	for _, e := range entries {
		if e.offset != nameOffsetAbsent {
			name, err := readMetadataName(payload, contentStart+int(e.offset))
			if err != nil {
				return nil, err
			}
			e.parameter.Name = name
		}
		parameters = append(parameters, e.parameter)
	}
	return &ParameterMetadata{Parameters: parameters}, nil
}
