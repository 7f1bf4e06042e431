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
	"errors"
)

// A message is the unit of exchange with the server. It starts with a
// 32 byte header followed by one or more segments; each segment
// starts with a 24 byte header followed by its parts.

// Request is a message sent to the server.
type Request struct {
	SessionID   int64
	PacketCount int32
	Segments    []*RequestSegment
}

// NewRequest returns a single segment request. Session and packet
// counters are filled in by the connection when the request is sent.
func NewRequest(mt MessageType, commit bool, parts ...Part) *Request {
	return &Request{
		SessionID:   -1,
		PacketCount: 0,
		Segments: []*RequestSegment{{
			MessageType: mt,
			Commit:      commit,
			Parts:       parts,
		}},
	}
}

// RequestSegment is one request within a message.
type RequestSegment struct {
	MessageType MessageType
	Commit      bool
	Parts       []Part
}

// Part returns the first part of the given kind from the first
// segment.
func (m *Request) Part(kind PartKind) (Part, bool) {
	if len(m.Segments) == 0 {
		return nil, false
	}
	for _, p := range m.Segments[0].Parts {
		if p.Kind() == kind {
			return p, true
		}
	}
	return nil, false
}

// Pack encodes the request into wire format.
func (m *Request) Pack() ([]byte, error) {
	buf := make([]byte, messageHeaderSize, messageHeaderSize+256)
	for i, segment := range m.Segments {
		var err error
		buf, err = segment.pack(buf, int16(i+1))
		if err != nil {
			return nil, err
		}
	}
	if len(buf) > MaxMessageSize {
		return nil, dataError("request of %d bytes exceeds the maximum message size of %d", len(buf), MaxMessageSize)
	}

	pos := writeUint64(buf, 0, uint64(m.SessionID))
	pos = writeUint32(buf, pos, uint32(m.PacketCount))
	pos = writeUint32(buf, pos, uint32(len(buf)-messageHeaderSize))
	pos = writeUint32(buf, pos, MaxSegmentSize)
	pos = writeUint16(buf, pos, uint16(len(m.Segments)))
	pos = writeByte(buf, pos, 0) // packet options
	writeZeroes(buf, pos, 9)
	return buf, nil
}

func (s *RequestSegment) pack(buf []byte, number int16) ([]byte, error) {
	segmentStart := len(buf)
	buf = append(buf, make([]byte, segmentHeaderSize)...)

	// Parts shrink a shared payload budget. Each part header records
	// the budget that was left before the part itself was written.
	remaining := MaxSegmentSize - segmentHeaderSize
	for _, part := range s.Parts {
		rp, ok := part.(requestPart)
		if !ok {
			return nil, interfaceError("part kind %v cannot be sent", part.Kind())
		}
		argCount, payload, err := rp.pack(remaining - partHeaderSize)
		if err != nil {
			return nil, err
		}

		header := partHeader{
			kind:          part.Kind(),
			argumentCount: int16(argCount),
			payloadSize:   int32(len(payload)),
			remainingSize: int32(remaining),
		}
		partStart := len(buf)
		padded := padded8(len(payload))
		buf = append(buf, make([]byte, partHeaderSize+padded)...)
		pos := header.write(buf, partStart)
		writeBytes(buf, pos, payload)
		remaining -= partHeaderSize + padded
	}

	commit := byte(0)
	if s.Commit {
		commit = 1
	}
	pos := writeUint32(buf, segmentStart, uint32(len(buf)-segmentStart))
	pos = writeUint32(buf, pos, uint32(segmentStart-messageHeaderSize))
	pos = writeUint16(buf, pos, uint16(len(s.Parts)))
	pos = writeUint16(buf, pos, uint16(number))
	pos = writeByte(buf, pos, byte(SkRequest))
	pos = writeByte(buf, pos, byte(s.MessageType))
	pos = writeByte(buf, pos, commit)
	pos = writeByte(buf, pos, 0) // command options
	writeZeroes(buf, pos, 8)
	return buf, nil
}

// Reply is a message received from the server.
type Reply struct {
	SessionID   int64
	PacketCount int32
	Segments    []*ReplySegment
}

// ReplySegment is one reply within a message.
type ReplySegment struct {
	Kind         SegmentKind
	FunctionCode FunctionCode
	Parts        []Part
}

// Part returns the segment's first part of the given kind.
func (s *ReplySegment) Part(kind PartKind) (Part, bool) {
	for _, p := range s.Parts {
		if p.Kind() == kind {
			return p, true
		}
	}
	return nil, false
}

// FunctionCode returns the function code of the first segment.
func (r *Reply) FunctionCode() FunctionCode {
	if len(r.Segments) == 0 {
		return FcNil
	}
	return r.Segments[0].FunctionCode
}

// Part returns the first part of the given kind from the first
// segment.
func (r *Reply) Part(kind PartKind) (Part, bool) {
	if len(r.Segments) == 0 {
		return nil, false
	}
	return r.Segments[0].Part(kind)
}

// Err returns the server errors carried by an error segment, or nil
// if the reply has none.
func (r *Reply) Err() error {
	for _, segment := range r.Segments {
		if segment.Kind != SkError {
			continue
		}
		p, ok := segment.Part(PkError)
		if !ok {
			return protocolError("error segment without an error part")
		}
		errs := p.(Errors)
		switch len(errs) {
		case 0:
			return protocolError("error segment with an empty error part")
		case 1:
			return errs[0]
		}
		all := make([]error, len(errs))
		for i, e := range errs {
			all[i] = e
		}
		return errors.Join(all...)
	}
	return nil
}

// UnpackRequest decodes a request message the way the receiving side
// sees it. Parts of kinds only ever sent by clients come back as
// their request types; parameter rows stay raw since decoding them
// takes the statement's metadata.
func UnpackRequest(data []byte) (*Request, error) {
	var header replyHeader
	if _, ok := header.read(data, 0); !ok {
		return nil, protocolError("request message of %d bytes is shorter than a message header", len(data))
	}
	payload, _, ok := readBytes(data, messageHeaderSize, int(header.payloadLength))
	if !ok {
		return nil, protocolError("request payload truncated: expected %d bytes, have %d",
			header.payloadLength, len(data)-messageHeaderSize)
	}

	request := &Request{
		SessionID:   header.sessionID,
		PacketCount: header.packetCount,
	}
	pos := 0
	for i := 0; i < int(header.numSegments); i++ {
		segment, next, err := unpackRequestSegment(payload, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		request.Segments = append(request.Segments, segment)
	}
	return request, nil
}

func unpackRequestSegment(payload []byte, pos int) (*RequestSegment, int, error) {
	start := pos
	segmentLength, pos, ok := readInt32(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	if _, pos, ok = readInt32(payload, pos); !ok { // segment offset
		return nil, 0, protocolError("truncated segment header")
	}
	numParts, pos, ok := readInt16(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	if _, pos, ok = readInt16(payload, pos); !ok { // segment number
		return nil, 0, protocolError("truncated segment header")
	}
	kindByte, pos, ok := readByte(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	if SegmentKind(kindByte) != SkRequest {
		return nil, 0, protocolError("unexpected segment kind %d in a request", kindByte)
	}
	messageType, pos, ok := readByte(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	commit, pos, ok := readByte(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	pos += 9 // command options and reserved bytes

	end := start + int(segmentLength)
	if end > len(payload) {
		end = len(payload)
	}
	segment := &RequestSegment{
		MessageType: MessageType(messageType),
		Commit:      commit != 0,
	}
	for i := 0; i < int(numParts); i++ {
		part, next, err := unpackPartAt(payload[:end], pos)
		if err != nil {
			return nil, 0, err
		}
		pos = next
		segment.Parts = append(segment.Parts, part)
	}
	return segment, end, nil
}

// replyHeader is the decoded message header of a reply.
type replyHeader struct {
	sessionID     int64
	packetCount   int32
	payloadLength uint32
	varPartSize   uint32
	numSegments   int16
	packetOptions int8
}

func (h *replyHeader) read(data []byte, pos int) (int, bool) {
	var ok bool
	if h.sessionID, pos, ok = readInt64(data, pos); !ok {
		return 0, false
	}
	if h.packetCount, pos, ok = readInt32(data, pos); !ok {
		return 0, false
	}
	if h.payloadLength, pos, ok = readUint32(data, pos); !ok {
		return 0, false
	}
	if h.varPartSize, pos, ok = readUint32(data, pos); !ok {
		return 0, false
	}
	if h.numSegments, pos, ok = readInt16(data, pos); !ok {
		return 0, false
	}
	var b byte
	if b, pos, ok = readByte(data, pos); !ok {
		return 0, false
	}
	h.packetOptions = int8(b)
	return pos + 9, true
}

// UnpackReply decodes a complete reply message. data must hold the
// message header and the full payload announced by it.
func UnpackReply(data []byte) (*Reply, error) {
	var header replyHeader
	if _, ok := header.read(data, 0); !ok {
		return nil, protocolError("reply message of %d bytes is shorter than a message header", len(data))
	}
	payload, _, ok := readBytes(data, messageHeaderSize, int(header.payloadLength))
	if !ok {
		return nil, protocolError("reply payload truncated: expected %d bytes, have %d",
			header.payloadLength, len(data)-messageHeaderSize)
	}

	reply := &Reply{
		SessionID:   header.sessionID,
		PacketCount: header.packetCount,
	}
	pos := 0
	for i := 0; i < int(header.numSegments); i++ {
		segment, next, err := unpackReplySegment(payload, pos, header.numSegments == 1)
		if err != nil {
			return nil, err
		}
		pos = next
		reply.Segments = append(reply.Segments, segment)
	}
	return reply, nil
}

func unpackReplySegment(payload []byte, pos int, onlySegment bool) (*ReplySegment, int, error) {
	start := pos
	segmentLength, pos, ok := readInt32(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	if _, pos, ok = readInt32(payload, pos); !ok { // segment offset
		return nil, 0, protocolError("truncated segment header")
	}
	numParts, pos, ok := readInt16(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	if _, pos, ok = readInt16(payload, pos); !ok { // segment number
		return nil, 0, protocolError("truncated segment header")
	}
	kindByte, pos, ok := readByte(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	kind := SegmentKind(kindByte)
	if _, pos, ok = readByte(payload, pos); !ok { // filler
		return nil, 0, protocolError("truncated segment header")
	}
	functionCode, pos, ok := readInt16(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated segment header")
	}
	pos += 8 // reserved

	switch kind {
	case SkReply, SkError:
	default:
		return nil, 0, protocolError("unexpected segment kind %d", kindByte)
	}

	// Single segment replies own the rest of the buffer no matter
	// what segment length the header declares. Some servers reply
	// with a length that does not cover trailing parts.
	end := start + int(segmentLength)
	if onlySegment || end > len(payload) {
		end = len(payload)
	}

	segment := &ReplySegment{
		Kind:         kind,
		FunctionCode: FunctionCode(functionCode),
	}
	for i := 0; i < int(numParts); i++ {
		part, next, err := unpackPartAt(payload[:end], pos)
		if err != nil {
			return nil, 0, err
		}
		pos = next
		segment.Parts = append(segment.Parts, part)
	}
	return segment, end, nil
}

func unpackPartAt(payload []byte, pos int) (Part, int, error) {
	var header partHeader
	pos, ok := header.read(payload, pos)
	if !ok {
		return nil, 0, protocolError("truncated part header")
	}
	data, _, ok := readBytes(payload, pos, int(header.payloadSize))
	if !ok {
		return nil, 0, protocolError("part payload truncated: kind %v expects %d bytes, have %d",
			header.kind, header.payloadSize, len(payload)-pos)
	}
	part, err := unpackPart(&header, data)
	if err != nil {
		return nil, 0, err
	}
	// The final part's padding may be cut short by the end of the
	// segment.
	next := pos + padded8(int(header.payloadSize))
	if next > len(payload) {
		next = len(payload)
	}
	return part, next, nil
}
