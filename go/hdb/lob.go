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
	"io"
	"unicode/utf8"

	"github.com/hanadb/hana/go/cesu8"
	"github.com/hanadb/hana/go/hdbtypes"
)

// Lob option bits, shared by lob descriptors and lob parts.
const (
	LobOptionIsNull       uint8 = 0x01
	LobOptionDataIncluded uint8 = 0x02
	LobOptionLastData     uint8 = 0x04
)

// Lob type discriminators inside a lob descriptor.
const (
	lobTypeReserved byte = 0
	lobTypeBlob     byte = 1
	lobTypeClob     byte = 2
	lobTypeNClob    byte = 3
)

const (
	locatorIDSize = 8

	lobHeaderTailSize = 30

	// Items fetched beyond the target position on a seek, so a
	// following read usually needs no extra round trip.
	lobSeekReadAhead = 1024
)

// lobFetchFunc fetches length items of a lob starting at offset. It
// is provided by the connection the lob was read from.
type lobFetchFunc func(locatorID []byte, offset, length int64) ([]byte, error)

// Lob is a large object column value. The row carries a descriptor
// and an initial chunk; the remainder is fetched on demand from the
// server. Positions and lengths count bytes for binary lobs and
// characters for character lobs.
type Lob struct {
	tc         hdbtypes.TypeCode
	options    uint8
	charLength int64
	byteLength int64
	locatorID  []byte
	fetch      lobFetchFunc

	// data holds what has been fetched so far, decoded to UTF-8 for
	// character lobs. items counts it in lob items.
	data  []byte
	items int64
	pos   int64
}

// decodeLobValue decodes one lob column value from row data: the two
// byte descriptor prefix, the 30 byte descriptor tail unless the
// value is NULL, and the inline initial chunk.
func decodeLobValue(tc hdbtypes.TypeCode, data []byte, pos int, fetch lobFetchFunc) (any, int, error) {
	lobType, pos, ok := readByte(data, pos)
	if !ok {
		return nil, 0, protocolError("truncated lob descriptor")
	}
	options, pos, ok := readByte(data, pos)
	if !ok {
		return nil, 0, protocolError("truncated lob descriptor")
	}
	if options&LobOptionIsNull != 0 {
		return nil, pos, nil
	}
	switch lobType {
	case lobTypeReserved, lobTypeBlob, lobTypeClob, lobTypeNClob:
	default:
		return nil, 0, protocolError("unknown lob type %d", lobType)
	}

	if _, pos, ok = readBytes(data, pos, 2); !ok { // reserved
		return nil, 0, protocolError("truncated lob descriptor")
	}
	charLength, pos, ok := readUint64(data, pos)
	if !ok {
		return nil, 0, protocolError("truncated lob descriptor")
	}
	byteLength, pos, ok := readUint64(data, pos)
	if !ok {
		return nil, 0, protocolError("truncated lob descriptor")
	}
	locatorID, pos, ok := readBytesCopy(data, pos, locatorIDSize)
	if !ok {
		return nil, 0, protocolError("truncated lob descriptor")
	}
	chunkLength, pos, ok := readUint32(data, pos)
	if !ok {
		return nil, 0, protocolError("truncated lob descriptor")
	}
	chunk, pos, ok := readBytes(data, pos, int(chunkLength))
	if !ok {
		return nil, 0, protocolError("lob chunk truncated: expected %d bytes", chunkLength)
	}

	lob := &Lob{
		tc:         tc,
		options:    options,
		charLength: int64(charLength),
		byteLength: int64(byteLength),
		locatorID:  locatorID,
		fetch:      fetch,
	}
	if err := lob.appendChunk(chunk); err != nil {
		return nil, 0, err
	}
	return lob, pos, nil
}

// TypeCode returns the column type the lob was read from.
func (l *Lob) TypeCode() hdbtypes.TypeCode { return l.tc }

// LocatorID returns the server side handle of the lob.
func (l *Lob) LocatorID() []byte { return l.locatorID }

// Length returns the total lob length in items.
func (l *Lob) Length() int64 {
	if l.tc == hdbtypes.Blob || l.tc == hdbtypes.BString {
		return l.byteLength
	}
	return l.charLength
}

// Tell returns the current read position.
func (l *Lob) Tell() int64 { return l.pos }

func (l *Lob) charBased() bool {
	return l.tc.IsCharBased()
}

func (l *Lob) appendChunk(raw []byte) error {
	if !l.charBased() {
		l.data = append(l.data, raw...)
		l.items += int64(len(raw))
		return nil
	}
	s, err := cesu8.Decode(raw)
	if err != nil {
		return protocolError("malformed lob chunk: %v", err)
	}
	l.data = append(l.data, s...)
	l.items += int64(utf8.RuneCountInString(s))
	return nil
}

// byteOffset translates an item position into a byte offset of the
// buffered data.
func (l *Lob) byteOffset(items int64) int {
	if !l.charBased() {
		if items > int64(len(l.data)) {
			return len(l.data)
		}
		return int(items)
	}
	pos := 0
	for ; items > 0 && pos < len(l.data); items-- {
		_, size := utf8.DecodeRune(l.data[pos:])
		pos += size
	}
	return pos
}

// ensure fetches lob data until at least items are buffered, or the
// lob is exhausted.
func (l *Lob) ensure(items int64) error {
	missing := items - l.items
	if missing <= 0 {
		return nil
	}
	return l.fetchMissing(missing)
}

func (l *Lob) fetchMissing(length int64) error {
	if l.fetch == nil {
		return interfaceError("lob is detached from its connection")
	}
	chunk, err := l.fetch(l.locatorID, l.items, length)
	if err != nil {
		return err
	}
	return l.appendChunk(chunk)
}

// Read returns the next n items, advancing the read position. n < 0
// reads the rest of the lob. Character lob items are returned UTF-8
// encoded.
func (l *Lob) Read(n int64) ([]byte, error) {
	if n < 0 {
		n = l.Length() - l.pos
	}
	newPos := min(l.pos+n, l.Length())
	if err := l.ensure(newPos); err != nil {
		return nil, err
	}
	newPos = min(newPos, l.items)

	start := l.byteOffset(l.pos)
	end := l.byteOffset(newPos)
	l.pos = newPos
	if start >= end {
		return nil, nil
	}
	return l.data[start:end], nil
}

// ReadString is Read for character lobs, returning the items as a
// string.
func (l *Lob) ReadString(n int64) (string, error) {
	b, err := l.Read(n)
	return string(b), err
}

// Seek moves the read position, interpreting offset per whence as in
// io.Seeker. Seeking past the buffered data fetches the gap plus a
// read ahead, so a following read usually hits the buffer.
func (l *Lob) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = l.pos + offset
	case io.SeekEnd:
		newPos = l.Length() + offset
	default:
		return 0, interfaceError("invalid seek whence %d", whence)
	}
	if newPos < 0 {
		return 0, interfaceError("negative lob position %d", newPos)
	}
	if missing := newPos - l.items; missing > 0 {
		length := min(missing+lobSeekReadAhead, l.Length()-l.items)
		if length > 0 {
			if err := l.fetchMissing(length); err != nil {
				return 0, err
			}
		}
	}
	l.pos = newPos
	return newPos, nil
}

// ReadLobRequest asks for length items of a lob starting at the zero
// based offset.
type ReadLobRequest struct {
	LocatorID []byte
	Offset    int64
	Length    int32
}

func (*ReadLobRequest) Kind() PartKind { return PkReadLobRequest }

func (p *ReadLobRequest) pack(remaining int) (int, []byte, error) {
	payload := make([]byte, 24)
	pos := writeBytes(payload, 0, p.LocatorID)
	// The wire offset is one based.
	pos = writeUint64(payload, pos, uint64(p.Offset)+1)
	pos = writeUint32(payload, pos, uint32(p.Length))
	writeBytes(payload, pos, []byte("    "))
	return 4, payload, nil
}

func unpackReadLobRequest(payload []byte) (Part, error) {
	locatorID, pos, ok := readBytesCopy(payload, 0, locatorIDSize)
	if !ok {
		return nil, protocolError("truncated read lob request")
	}
	offset, pos, ok := readUint64(payload, pos)
	if !ok {
		return nil, protocolError("truncated read lob request")
	}
	length, _, ok := readInt32(payload, pos)
	if !ok {
		return nil, protocolError("truncated read lob request")
	}
	return &ReadLobRequest{LocatorID: locatorID, Offset: int64(offset) - 1, Length: length}, nil
}

// ReadLobReply carries one chunk of lob data.
type ReadLobReply struct {
	LocatorID []byte
	IsNull    bool
	Last      bool
	Data      []byte
}

func (*ReadLobReply) Kind() PartKind { return PkReadLobReply }

func unpackReadLobReply(payload []byte) (Part, error) {
	locatorID, pos, ok := readBytesCopy(payload, 0, locatorIDSize)
	if !ok {
		return nil, protocolError("truncated read lob reply")
	}
	options, pos, ok := readByte(payload, pos)
	if !ok {
		return nil, protocolError("truncated read lob reply")
	}
	reply := &ReadLobReply{
		LocatorID: locatorID,
		IsNull:    options&LobOptionIsNull != 0,
		Last:      options&LobOptionLastData != 0,
	}
	if reply.IsNull {
		return reply, nil
	}
	chunkLength, pos, ok := readInt32(payload, pos)
	if !ok {
		return nil, protocolError("truncated read lob reply")
	}
	if _, pos, ok = readBytes(payload, pos, 3); !ok { // filler
		return nil, protocolError("truncated read lob reply")
	}
	if options&LobOptionDataIncluded != 0 {
		data, _, ok := readBytesCopy(payload, pos, int(chunkLength))
		if !ok {
			return nil, protocolError("lob chunk truncated: expected %d bytes", chunkLength)
		}
		reply.Data = data
	}
	return reply, nil
}

// LobWriteBuffer holds the remainder of a lob parameter value that
// did not fit into the execute message. The locator is assigned from
// the write lob reply before the buffer is drained.
type LobWriteBuffer struct {
	LocatorID []byte
	Data      []byte
}

// WriteLobChunk is one slice of lob data within a write lob request.
type WriteLobChunk struct {
	LocatorID []byte
	Options   uint8
	Data      []byte
}

// WriteLobRequest streams queued lob data to the server.
type WriteLobRequest struct {
	Chunks []WriteLobChunk
}

func (*WriteLobRequest) Kind() PartKind { return PkWriteLobRequest }

const writeLobChunkHeaderSize = 21

func (p *WriteLobRequest) pack(remaining int) (int, []byte, error) {
	size := 0
	for _, c := range p.Chunks {
		size += writeLobChunkHeaderSize + len(c.Data)
	}
	payload := make([]byte, size)
	pos := 0
	for _, c := range p.Chunks {
		pos = writeBytes(payload, pos, c.LocatorID)
		pos = writeByte(payload, pos, c.Options)
		pos = writeUint64(payload, pos, 0) // offset, zero appends
		pos = writeUint32(payload, pos, uint32(len(c.Data)))
		pos = writeBytes(payload, pos, c.Data)
	}
	return len(p.Chunks), payload, nil
}

func unpackWriteLobRequest(argCount int, payload []byte) (Part, error) {
	p := &WriteLobRequest{}
	pos := 0
	for i := 0; i < argCount; i++ {
		locatorID, next, ok := readBytesCopy(payload, pos, locatorIDSize)
		if !ok {
			return nil, protocolError("truncated write lob request")
		}
		options, next, ok := readByte(payload, next)
		if !ok {
			return nil, protocolError("truncated write lob request")
		}
		if _, next, ok = readUint64(payload, next); !ok { // offset
			return nil, protocolError("truncated write lob request")
		}
		length, next, ok := readUint32(payload, next)
		if !ok {
			return nil, protocolError("truncated write lob request")
		}
		data, next, ok := readBytesCopy(payload, next, int(length))
		if !ok {
			return nil, protocolError("truncated write lob request")
		}
		pos = next
		p.Chunks = append(p.Chunks, WriteLobChunk{LocatorID: locatorID, Options: options, Data: data})
	}
	return p, nil
}

// planWriteLobChunks slices as much queued lob data into a request
// part as the payload budget allows. It returns the part and the
// buffers that still hold data afterwards.
func planWriteLobChunks(buffers []*LobWriteBuffer, budget int) (*WriteLobRequest, []*LobWriteBuffer) {
	part := &WriteLobRequest{}
	for i, buffer := range buffers {
		if budget < writeLobChunkHeaderSize+1 {
			return part, buffers[i:]
		}
		space := budget - writeLobChunkHeaderSize
		n := min(space, len(buffer.Data))
		options := LobOptionDataIncluded
		if n == len(buffer.Data) {
			options |= LobOptionLastData
		}
		part.Chunks = append(part.Chunks, WriteLobChunk{
			LocatorID: buffer.LocatorID,
			Options:   options,
			Data:      buffer.Data[:n],
		})
		budget -= writeLobChunkHeaderSize + n
		if n < len(buffer.Data) {
			buffer.Data = buffer.Data[n:]
			return part, buffers[i:]
		}
		buffer.Data = nil
	}
	return part, nil
}

// WriteLobReply lists the locators that still expect data, in
// parameter order.
type WriteLobReply struct {
	LocatorIDs [][]byte
}

func (*WriteLobReply) Kind() PartKind { return PkWriteLobReply }

func unpackWriteLobReply(argCount int, payload []byte) (Part, error) {
	p := &WriteLobReply{}
	pos := 0
	for i := 0; i < argCount; i++ {
		locatorID, next, ok := readBytesCopy(payload, pos, locatorIDSize)
		if !ok {
			return nil, protocolError("truncated write lob reply")
		}
		pos = next
		p.LocatorIDs = append(p.LocatorIDs, locatorID)
	}
	return p, nil
}
