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

// Package hdbtest provides a scripted server for protocol level tests.
//
// A Server owns a real TCP listener. Tests point a client at Addr(),
// the server answers the initialization handshake itself, and every
// message after that is matched against a script of expected requests
// with canned replies. Requests arriving out of script order fail the
// test, as does closing a server whose script was not fully consumed.
package hdbtest

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/hanadb/hana/go/hdb"
)

// Versions reported in the initialization reply.
const (
	ProductMajor  = 2
	ProductMinor  = 48
	ProtocolMajor = 4
	ProtocolMinor = 1
)

// SessionID is the session id the server assigns unless a reply
// overrides it.
const SessionID int64 = 443322

const (
	messageHeaderSize = 32
	segmentHeaderSize = 24
	partHeaderSize    = 16
)

var initRequest = []byte{
	0xff, 0xff, 0xff, 0xff, 0x04, 0x14, 0x00, 0x04,
	0x01, 0x00, 0x00, 0x01, 0x01, 0x01,
}

// Exchange is one scripted request and the reply wired back for it.
type Exchange struct {
	// Want is the message type the request must carry.
	Want hdb.MessageType

	// Inspect, when set, receives the decoded request for additional
	// checks. It runs on the server goroutine, so it must report
	// failures without stopping the test.
	Inspect func(t testing.TB, req *hdb.Request)

	// Reply is framed and written back. A nil Reply drops the
	// connection instead of answering.
	Reply *Reply
}

// Reply describes the wire reply of one exchange.
type Reply struct {
	// SessionID overrides the server's session id when non-zero.
	SessionID int64

	Segments []*Segment
}

// Segment is one reply segment.
type Segment struct {
	Kind         hdb.SegmentKind
	FunctionCode hdb.FunctionCode
	Parts        []*Part
}

// Part is one reply part. Payload holds the bytes before padding.
type Part struct {
	Kind       hdb.PartKind
	Attributes uint8
	ArgCount   int
	Payload    []byte
}

// NewReply wraps parts into a single reply segment carrying the given
// function code.
func NewReply(fc hdb.FunctionCode, parts ...*Part) *Reply {
	return &Reply{Segments: []*Segment{{
		Kind:         hdb.SkReply,
		FunctionCode: fc,
		Parts:        parts,
	}}}
}

// ErrorReply builds a reply whose only segment reports a single server
// error.
func ErrorReply(code int32, sqlstate, message string) *Reply {
	return &Reply{Segments: []*Segment{{
		Kind:         hdb.SkError,
		FunctionCode: hdb.FcNil,
		Parts: []*Part{{
			Kind:     hdb.PkError,
			ArgCount: 1,
			Payload:  ErrorPayload(code, 0, 1, sqlstate, message),
		}},
	}}}
}

// Server is a scripted protocol peer listening on a local port.
type Server struct {
	t        testing.TB
	listener net.Listener

	mu     sync.Mutex
	script []*Exchange
	step   int
	conns  []net.Conn
	closed bool

	wg sync.WaitGroup
}

// New starts a server answering the given script. The server is closed
// with the test; closing it earlier is fine.
func New(t testing.TB, script ...*Exchange) *Server {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("hdbtest: listen failed: %v", err)
	}
	s := &Server{
		t:        t,
		listener: listener,
		script:   script,
	}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close shuts the listener and all connections down and fails the test
// when scripted exchanges are left unconsumed.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := s.conns
	s.mu.Unlock()

	s.listener.Close()
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != len(s.script) {
		s.t.Errorf("hdbtest: %d of %d scripted exchanges consumed", s.step, len(s.script))
	}
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	if !s.handshake(conn) {
		return
	}
	for {
		req, ok := s.readRequest(conn)
		if !ok {
			return
		}
		ex := s.nextExchange(req)
		if ex == nil {
			return
		}
		if ex.Inspect != nil {
			ex.Inspect(s.t, req)
		}
		if ex.Reply == nil {
			conn.Close()
			return
		}
		data := frameReply(req.PacketCount, ex.Reply)
		if _, err := conn.Write(data); err != nil {
			s.t.Errorf("hdbtest: writing a reply: %v", err)
			return
		}
	}
}

func (s *Server) handshake(conn net.Conn) bool {
	buf := make([]byte, len(initRequest))
	if _, err := io.ReadFull(conn, buf); err != nil {
		s.t.Errorf("hdbtest: reading the initialization request: %v", err)
		return false
	}
	if !bytes.Equal(buf, initRequest) {
		s.t.Errorf("hdbtest: unexpected initialization request % x", buf)
		return false
	}

	reply := make([]byte, 8)
	reply[0] = ProductMajor
	binary.LittleEndian.PutUint16(reply[1:], ProductMinor)
	reply[3] = ProtocolMajor
	binary.LittleEndian.PutUint32(reply[4:], ProtocolMinor)
	if _, err := conn.Write(reply); err != nil {
		s.t.Errorf("hdbtest: writing the initialization reply: %v", err)
		return false
	}
	return true
}

// readRequest reads and decodes one request message. A failed header
// read means the client hung up, which ends the session quietly; the
// script drain check in Close still catches sessions that ended too
// early.
func (s *Server) readRequest(conn net.Conn) (*hdb.Request, bool) {
	header := make([]byte, messageHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, false
	}
	payloadLength := binary.LittleEndian.Uint32(header[12:])

	data := make([]byte, messageHeaderSize+int(payloadLength))
	copy(data, header)
	if _, err := io.ReadFull(conn, data[messageHeaderSize:]); err != nil {
		s.t.Errorf("hdbtest: reading a request payload: %v", err)
		return nil, false
	}

	req, err := hdb.UnpackRequest(data)
	if err != nil {
		s.t.Errorf("hdbtest: decoding a request: %v", err)
		return nil, false
	}
	return req, true
}

func (s *Server) nextExchange(req *hdb.Request) *Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step >= len(s.script) {
		s.t.Errorf("hdbtest: %v request beyond the end of the script", requestType(req))
		return nil
	}
	ex := s.script[s.step]
	s.step++
	if mt := requestType(req); mt != ex.Want {
		s.t.Errorf("hdbtest: exchange %d got a %v request, the script expects %v", s.step-1, mt, ex.Want)
		return nil
	}
	return ex
}

func requestType(req *hdb.Request) hdb.MessageType {
	if len(req.Segments) == 0 {
		return 0
	}
	return req.Segments[0].MessageType
}

func frameReply(packetCount int32, r *Reply) []byte {
	sessionID := r.SessionID
	if sessionID == 0 {
		sessionID = SessionID
	}

	var payload []byte
	for i, segment := range r.Segments {
		payload = appendSegment(payload, segment, i+1)
	}

	data := make([]byte, messageHeaderSize, messageHeaderSize+len(payload))
	binary.LittleEndian.PutUint64(data[0:], uint64(sessionID))
	binary.LittleEndian.PutUint32(data[8:], uint32(packetCount))
	binary.LittleEndian.PutUint32(data[12:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(data[16:], uint32(hdb.MaxSegmentSize))
	binary.LittleEndian.PutUint16(data[20:], uint16(len(r.Segments)))
	return append(data, payload...)
}

func appendSegment(payload []byte, segment *Segment, number int) []byte {
	start := len(payload)
	header := make([]byte, segmentHeaderSize)
	binary.LittleEndian.PutUint32(header[4:], uint32(start))
	binary.LittleEndian.PutUint16(header[8:], uint16(len(segment.Parts)))
	binary.LittleEndian.PutUint16(header[10:], uint16(number))
	header[12] = byte(segment.Kind)
	binary.LittleEndian.PutUint16(header[14:], uint16(segment.FunctionCode))
	payload = append(payload, header...)

	remaining := hdb.MaxSegmentSize - segmentHeaderSize
	for _, part := range segment.Parts {
		payload = appendPart(payload, part, remaining)
		remaining -= partHeaderSize + padded(len(part.Payload))
	}
	binary.LittleEndian.PutUint32(payload[start:], uint32(len(payload)-start))
	return payload
}

func appendPart(payload []byte, part *Part, remaining int) []byte {
	header := make([]byte, partHeaderSize)
	header[0] = byte(part.Kind)
	header[1] = part.Attributes
	binary.LittleEndian.PutUint16(header[2:], uint16(part.ArgCount))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(part.Payload)))
	binary.LittleEndian.PutUint32(header[12:], uint32(remaining))
	payload = append(payload, header...)
	payload = append(payload, part.Payload...)
	return append(payload, make([]byte, padded(len(part.Payload))-len(part.Payload))...)
}

func padded(n int) int { return (n + 7) &^ 7 }
