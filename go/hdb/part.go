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
	"github.com/hanadb/hana/go/log"
)

// Part is one typed unit of payload within a segment.
type Part interface {
	Kind() PartKind
}

// requestPart is implemented by parts the client sends. pack returns
// the argument count and the unpadded payload. remaining is the
// payload budget left in the segment before this part; parts that can
// split their content across messages must stay within it, everything
// else may ignore it.
type requestPart interface {
	Part
	pack(remaining int) (argCount int, payload []byte, err error)
}

// partHeader is the fixed 16 byte header preceding every part
// payload. The payload itself is zero-padded to a multiple of 8
// bytes; payloadSize is the size before padding.
type partHeader struct {
	kind             PartKind
	attributes       uint8
	argumentCount    int16
	bigArgumentCount int32
	payloadSize      int32
	remainingSize    int32
}

func (h *partHeader) write(data []byte, pos int) int {
	pos = writeByte(data, pos, byte(h.kind))
	pos = writeByte(data, pos, h.attributes)
	pos = writeUint16(data, pos, uint16(h.argumentCount))
	pos = writeUint32(data, pos, uint32(h.bigArgumentCount))
	pos = writeUint32(data, pos, uint32(h.payloadSize))
	pos = writeUint32(data, pos, uint32(h.remainingSize))
	return pos
}

func (h *partHeader) read(data []byte, pos int) (int, bool) {
	var b byte
	var ok bool
	if b, pos, ok = readByte(data, pos); !ok {
		return 0, false
	}
	h.kind = PartKind(b)
	if h.attributes, pos, ok = readByte(data, pos); !ok {
		return 0, false
	}
	if h.argumentCount, pos, ok = readInt16(data, pos); !ok {
		return 0, false
	}
	if h.bigArgumentCount, pos, ok = readInt32(data, pos); !ok {
		return 0, false
	}
	if h.payloadSize, pos, ok = readInt32(data, pos); !ok {
		return 0, false
	}
	if h.remainingSize, pos, ok = readInt32(data, pos); !ok {
		return 0, false
	}
	return pos, true
}

// rawPart holds a part of a kind this client has no decoder for. The
// payload is kept verbatim.
type rawPart struct {
	kind     PartKind
	argCount int
	payload  []byte
}

func (p *rawPart) Kind() PartKind { return p.kind }

// unpackPart decodes a single part payload into its typed
// representation. Unknown part kinds are preserved as raw parts and
// logged; the declared payload size keeps the stream aligned, so an
// unknown part is never fatal.
func unpackPart(h *partHeader, payload []byte) (Part, error) {
	argCount := int(h.argumentCount)
	switch h.kind {
	case PkCommand:
		return unpackCommand(payload)
	case PkResultSet:
		return &ResultSet{Attributes: h.attributes, RowCount: argCount, Payload: payload}, nil
	case PkError:
		return unpackErrors(argCount, payload)
	case PkStatementID:
		return unpackStatementID(payload)
	case PkRowsAffected:
		return unpackRowsAffected(argCount, payload)
	case PkResultSetID:
		return unpackResultSetID(payload)
	case PkTopologyInformation:
		return &TopologyInformation{Data: payload}, nil
	case PkReadLobRequest:
		return unpackReadLobRequest(payload)
	case PkReadLobReply:
		return unpackReadLobReply(payload)
	case PkWriteLobRequest:
		return unpackWriteLobRequest(argCount, payload)
	case PkWriteLobReply:
		return unpackWriteLobReply(argCount, payload)
	case PkAuthentication:
		return unpackAuthentication(payload)
	case PkClientID:
		return unpackClientID(payload)
	case PkStatementContext:
		return &StatementContext{Data: payload}, nil
	case PkOutputParameters:
		return &OutputParameters{Attributes: h.attributes, ArgCount: argCount, Payload: payload}, nil
	case PkConnectOptions:
		return unpackConnectOptions(argCount, payload)
	case PkFetchSize:
		return unpackFetchSize(payload)
	case PkParameterMetadata:
		return unpackParameterMetadata(argCount, payload)
	case PkResultSetMetadata:
		return unpackResultSetMetadata(argCount, payload)
	case PkTransactionFlags:
		return unpackTransactionFlags(argCount, payload)
	}
	log.Warningf("skipping part of unknown kind %d (%v bytes)", h.kind, len(payload))
	return &rawPart{kind: h.kind, argCount: argCount, payload: payload}, nil
}
