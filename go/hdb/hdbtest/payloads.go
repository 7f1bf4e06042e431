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

package hdbtest

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/hanadb/hana/go/cesu8"
	"github.com/hanadb/hana/go/hdb"
	"github.com/hanadb/hana/go/hdbtypes"
)

// Challenge material handed out by AuthenticateExchange. The values
// are arbitrary; the client computes its proof from whatever the
// server presents.
var (
	Salt = []byte{
		0x80, 0x96, 0x4f, 0xa8, 0x54, 0x28, 0xae, 0x3a,
		0x81, 0xac, 0xd3, 0xe6, 0x86, 0xa2, 0x79, 0x33,
	}
	ServerKey = []byte{
		0x41, 0x06, 0x51, 0x50, 0x11, 0x7e, 0x45, 0x5f,
		0xec, 0x2f, 0x03, 0xf6, 0xf4, 0x7c, 0x19, 0xd4,
		0x05, 0xad, 0xe5, 0x0d, 0xd6, 0x57, 0x31, 0xdc,
		0x0f, 0xb3, 0xf7, 0x95, 0x4d, 0xb6, 0x2c, 0x8a,
		0xa6, 0x7a, 0x7e, 0x82, 0x5e, 0x13, 0x00, 0xbe,
		0xe9, 0x75, 0xe7, 0x45, 0x18, 0x23, 0x8c, 0x9a,
	}
)

// SessionScript brackets the given exchanges with the session setup
// and the disconnect.
func SessionScript(exchanges ...*Exchange) []*Exchange {
	script := []*Exchange{AuthenticateExchange(), ConnectExchange()}
	script = append(script, exchanges...)
	return append(script, DisconnectExchange())
}

// AuthenticateExchange answers the first authentication round with a
// SCRAMSHA256 challenge.
func AuthenticateExchange() *Exchange {
	return &Exchange{
		Want: hdb.MtAuthenticate,
		Reply: NewReply(hdb.FcNil, &Part{
			Kind:     hdb.PkAuthentication,
			ArgCount: 1,
			Payload:  ScramChallenge(Salt, ServerKey),
		}),
	}
}

// ConnectExchange answers the connect request with a server proof and
// server side connect options.
func ConnectExchange() *Exchange {
	return &Exchange{
		Want: hdb.MtConnect,
		Reply: NewReply(hdb.FcNil,
			&Part{
				Kind:     hdb.PkAuthentication,
				ArgCount: 1,
				Payload:  AuthFields([]byte("SCRAMSHA256"), make([]byte, 32)),
			},
			&Part{
				Kind:     hdb.PkConnectOptions,
				ArgCount: 8,
				Payload:  ServerOptionsPayload(),
			},
		),
	}
}

// DisconnectExchange answers the disconnect request sent when a
// connection closes.
func DisconnectExchange() *Exchange {
	return &Exchange{Want: hdb.MtDisconnect, Reply: NewReply(hdb.FcDisconnect)}
}

// AuthFields packs authentication fields: a little endian count
// followed by size prefixed field values.
func AuthFields(fields ...[]byte) []byte {
	p := binary.LittleEndian.AppendUint16(nil, uint16(len(fields)))
	for _, f := range fields {
		if len(f) < 250 {
			p = append(p, byte(len(f)))
		} else {
			p = append(p, 0xff)
			p = binary.LittleEndian.AppendUint16(p, uint16(len(f)))
		}
		p = append(p, f...)
	}
	return p
}

// ScramChallenge builds an authentication reply payload selecting
// SCRAMSHA256 with the given salt and server key.
func ScramChallenge(salt, serverKey []byte) []byte {
	return AuthFields([]byte("SCRAMSHA256"), AuthFields(salt, serverKey))
}

// PBKDF2Challenge builds an authentication reply payload selecting
// SCRAMPBKDF2SHA256 with the given iteration count.
func PBKDF2Challenge(salt, serverKey []byte, rounds uint32) []byte {
	r := binary.BigEndian.AppendUint32(nil, rounds)
	return AuthFields([]byte("SCRAMPBKDF2SHA256"), AuthFields(salt, serverKey, r))
}

// ServerOptionsPayload returns connect options the way a server
// typically reports them back, eight entries.
func ServerOptionsPayload() []byte {
	var p []byte
	p = AppendOptionString(p, 3, "en_US")
	p = AppendOptionInt(p, 15, 0)
	p = AppendOptionInt(p, 23, 1)
	p = AppendOptionInt(p, 12, 1)
	p = AppendOptionBool(p, 2, true)
	p = AppendOptionInt(p, 17, 0)
	p = AppendOptionBool(p, 14, false)
	p = AppendOptionBool(p, 18, true)
	return p
}

// AppendOptionBool appends one boolean option entry.
func AppendOptionBool(p []byte, key int8, v bool) []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return append(p, byte(key), 28, b)
}

// AppendOptionInt appends one int option entry.
func AppendOptionInt(p []byte, key int8, v int32) []byte {
	p = append(p, byte(key), 3)
	return binary.LittleEndian.AppendUint32(p, uint32(v))
}

// AppendOptionString appends one string option entry.
func AppendOptionString(p []byte, key int8, v string) []byte {
	encoded := mustCESU8(v)
	p = append(p, byte(key), 29)
	p = binary.LittleEndian.AppendUint16(p, uint16(len(encoded)))
	return append(p, encoded...)
}

// ErrorPayload encodes one server error.
func ErrorPayload(code, position int32, level int8, sqlstate, message string) []byte {
	text := mustCESU8(message)
	p := make([]byte, 0, 18+len(text))
	p = binary.LittleEndian.AppendUint32(p, uint32(code))
	p = binary.LittleEndian.AppendUint32(p, uint32(position))
	p = binary.LittleEndian.AppendUint32(p, uint32(len(text)))
	p = append(p, byte(level))
	p = append(p, fixedSQLState(sqlstate)...)
	return append(p, text...)
}

// RowsAffectedPayload encodes per statement row counts.
func RowsAffectedPayload(counts ...int32) []byte {
	var p []byte
	for _, c := range counts {
		p = binary.LittleEndian.AppendUint32(p, uint32(c))
	}
	return p
}

// MetaColumn describes one column for ResultSetMetadataPayload.
type MetaColumn struct {
	TypeCode hdbtypes.TypeCode
	Nullable bool
	Length   int16
	Fraction int16
	Schema   string
	Table    string
	Name     string
}

// ResultSetMetadataPayload encodes column descriptions the way the
// server sends them: the fixed entries first, the name table behind
// them. The display name mirrors the column name.
func ResultSetMetadataPayload(cols ...MetaColumn) []byte {
	var entries, names []byte
	offsets := map[string]uint32{}

	nameOffset := func(name string) uint32 {
		if name == "" {
			return 0xffffffff
		}
		if off, ok := offsets[name]; ok {
			return off
		}
		off := uint32(len(names))
		offsets[name] = off
		encoded := mustCESU8(name)
		names = append(names, byte(len(encoded)))
		names = append(names, encoded...)
		return off
	}

	for _, col := range cols {
		options := uint8(0x01)
		if col.Nullable {
			options = 0x02
		}
		entries = append(entries, options, byte(col.TypeCode))
		entries = binary.LittleEndian.AppendUint16(entries, uint16(col.Fraction))
		entries = binary.LittleEndian.AppendUint16(entries, uint16(col.Length))
		entries = append(entries, 0, 0)
		entries = binary.LittleEndian.AppendUint32(entries, nameOffset(col.Table))
		entries = binary.LittleEndian.AppendUint32(entries, nameOffset(col.Schema))
		entries = binary.LittleEndian.AppendUint32(entries, nameOffset(col.Name))
		entries = binary.LittleEndian.AppendUint32(entries, nameOffset(col.Name))
	}
	return append(entries, names...)
}

// MetaParameter describes one parameter for ParameterMetadataPayload.
type MetaParameter struct {
	TypeCode hdbtypes.TypeCode
	Mode     hdb.ParameterMode
	Length   int16
	Fraction int16
	Name     string
}

// ParameterMetadataPayload encodes parameter descriptions of a
// prepared statement.
func ParameterMetadataPayload(params ...MetaParameter) []byte {
	var entries, names []byte
	offsets := map[string]uint32{}

	nameOffset := func(name string) uint32 {
		if name == "" {
			return 0xffffffff
		}
		if off, ok := offsets[name]; ok {
			return off
		}
		off := uint32(len(names))
		offsets[name] = off
		encoded := mustCESU8(name)
		names = append(names, byte(len(encoded)))
		names = append(names, encoded...)
		return off
	}

	for _, param := range params {
		entries = append(entries, 0x02, byte(param.TypeCode), byte(param.Mode), 0)
		entries = binary.LittleEndian.AppendUint32(entries, nameOffset(param.Name))
		entries = binary.LittleEndian.AppendUint16(entries, uint16(param.Length))
		entries = binary.LittleEndian.AppendUint16(entries, uint16(param.Fraction))
		entries = append(entries, 0, 0, 0, 0)
	}
	return append(entries, names...)
}

// EncodeRows encodes result set rows, cell layouts taken from the
// column type codes.
func EncodeRows(tcs []hdbtypes.TypeCode, rows [][]any) []byte {
	var p []byte
	for _, row := range rows {
		for i, v := range row {
			p = AppendCell(p, tcs[i], v)
		}
	}
	return p
}

// AppendCell encodes one result cell of column type tc. Lob cells are
// built with AppendLobCell instead.
func AppendCell(p []byte, tc hdbtypes.TypeCode, v any) []byte {
	switch tc {
	case hdbtypes.TinyInt:
		return appendCellInt(p, v, 1)
	case hdbtypes.SmallInt:
		return appendCellInt(p, v, 2)
	case hdbtypes.Int:
		return appendCellInt(p, v, 4)
	case hdbtypes.BigInt:
		return appendCellInt(p, v, 8)
	case hdbtypes.Real:
		if v == nil {
			return binary.LittleEndian.AppendUint32(p, math.MaxUint32)
		}
		return binary.LittleEndian.AppendUint32(p, math.Float32bits(float32(v.(float64))))
	case hdbtypes.Double:
		if v == nil {
			return binary.LittleEndian.AppendUint64(p, math.MaxUint64)
		}
		return binary.LittleEndian.AppendUint64(p, math.Float64bits(v.(float64)))
	case hdbtypes.Char, hdbtypes.Varchar, hdbtypes.NChar, hdbtypes.NVarchar,
		hdbtypes.String, hdbtypes.NString:
		if v == nil {
			return append(p, 0xff)
		}
		return appendCellBytes(p, mustCESU8(v.(string)))
	case hdbtypes.Binary, hdbtypes.VarBinary, hdbtypes.BString:
		if v == nil {
			return append(p, 0xff)
		}
		return appendCellBytes(p, v.([]byte))
	case hdbtypes.Date:
		if v == nil {
			return append(p, 0, 0, 0, 0)
		}
		return appendCellDate(p, v.(time.Time))
	case hdbtypes.Time:
		if v == nil {
			return append(p, 0, 0, 0, 0)
		}
		return appendCellTime(p, v.(time.Time))
	case hdbtypes.Timestamp:
		if v == nil {
			return append(p, 0, 0, 0, 0, 0, 0, 0, 0)
		}
		p = appendCellDate(p, v.(time.Time))
		return appendCellTime(p, v.(time.Time))
	}
	panic(fmt.Sprintf("hdbtest: no result cell encoding for type %v", tc))
}

func appendCellInt(p []byte, v any, width int) []byte {
	if v == nil {
		return append(p, 0x00)
	}
	var u uint64
	switch n := v.(type) {
	case int:
		u = uint64(n)
	case int64:
		u = uint64(n)
	default:
		panic(fmt.Sprintf("hdbtest: integer cell from %T", v))
	}
	p = append(p, 0x01)
	for i := 0; i < width; i++ {
		p = append(p, byte(u>>(8*i)))
	}
	return p
}

func appendCellBytes(p, data []byte) []byte {
	switch length := len(data); {
	case length <= 245:
		p = append(p, byte(length))
	case length <= math.MaxInt16:
		p = append(p, 246)
		p = binary.LittleEndian.AppendUint16(p, uint16(length))
	default:
		p = append(p, 247)
		p = binary.LittleEndian.AppendUint32(p, uint32(length))
	}
	return append(p, data...)
}

func appendCellDate(p []byte, t time.Time) []byte {
	year, month, day := t.Date()
	p = binary.LittleEndian.AppendUint16(p, uint16(year)|0x8000)
	return append(p, byte(month-1), byte(day))
}

func appendCellTime(p []byte, t time.Time) []byte {
	millis := t.Second()*1000 + t.Nanosecond()/1000000
	p = append(p, byte(t.Hour())|0x80, byte(t.Minute()))
	return binary.LittleEndian.AppendUint16(p, uint16(millis))
}

// AppendLobCell encodes a lob result cell: the locator descriptor and
// the inline chunk. kind is the wire lob type, 1 blob, 2 clob, 3
// nclob.
func AppendLobCell(p []byte, kind byte, charLength, byteLength uint64, locatorID, chunk []byte, last bool) []byte {
	options := byte(hdb.LobOptionDataIncluded)
	if last {
		options |= hdb.LobOptionLastData
	}
	p = append(p, kind, options)
	p = append(p, 0, 0)
	p = binary.LittleEndian.AppendUint64(p, charLength)
	p = binary.LittleEndian.AppendUint64(p, byteLength)
	p = append(p, locatorID...)
	p = binary.LittleEndian.AppendUint32(p, uint32(len(chunk)))
	return append(p, chunk...)
}

// AppendNullLobCell encodes a NULL lob result cell.
func AppendNullLobCell(p []byte, kind byte) []byte {
	return append(p, kind, hdb.LobOptionIsNull)
}

// ReadLobReplyPayload encodes a lob read answer carrying chunk when
// the options include the data flag.
func ReadLobReplyPayload(locatorID []byte, options uint8, chunk []byte) []byte {
	p := append([]byte{}, locatorID...)
	p = append(p, options)
	if options&hdb.LobOptionIsNull != 0 {
		return p
	}
	p = binary.LittleEndian.AppendUint32(p, uint32(len(chunk)))
	p = append(p, 0, 0, 0)
	if options&hdb.LobOptionDataIncluded != 0 {
		p = append(p, chunk...)
	}
	return p
}

// WriteLobReplyPayload encodes the locator list acknowledging written
// lob data.
func WriteLobReplyPayload(locatorIDs ...[]byte) []byte {
	var p []byte
	for _, id := range locatorIDs {
		p = append(p, id...)
	}
	return p
}

func fixedSQLState(s string) []byte {
	state := []byte("     ")
	copy(state, s)
	return state
}

func mustCESU8(s string) []byte {
	encoded, err := cesu8.Encode(s)
	if err != nil {
		panic(fmt.Sprintf("hdbtest: %v", err))
	}
	return encoded
}
