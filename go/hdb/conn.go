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
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hanadb/hana/go/log"
)

// DefaultPort is the SQL port of the first instance of a single
// container system.
const DefaultPort = "30015"

// ConnParams describes how to reach and authenticate to a server.
type ConnParams struct {
	// Address is the host:port of the server. A missing port defaults
	// to DefaultPort.
	Address  string
	User     string
	Password string

	// Autocommit makes every statement commit on its own. Off by
	// default; use Commit and Rollback to end transactions.
	Autocommit bool

	// Timeout bounds every network operation on the connection,
	// including the initial dial. Zero means no limit.
	Timeout time.Duration

	// ConnectOptions overrides the capabilities advertised on
	// connect. Nil selects DefaultConnectOptions.
	ConnectOptions *ConnectOptions
}

func (cfg *ConnParams) address() string {
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return net.JoinHostPort(cfg.Address, DefaultPort)
	}
	return cfg.Address
}

// Version is a two component server version.
type Version struct {
	Major int8
	Minor uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Conn is a client session. It is not safe for concurrent use beyond
// the request pipelining it does itself; every request waits for its
// reply before the next one is sent.
type Conn struct {
	cfg  ConnParams
	conn net.Conn

	mu             sync.Mutex
	closed         bool
	sessionClosing bool
	sessionID      int64
	packetCount    int32
	autocommit     bool

	productVersion  Version
	protocolVersion Version

	// serverOptions is the connect options part of the connect reply.
	serverOptions *ConnectOptions
}

// Connect dials the server, runs the protocol initialization and the
// authentication dialog, and opens a session.
func Connect(ctx context.Context, cfg ConnParams) (*Conn, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", cfg.address())
	if err != nil {
		return nil, operationalError(err)
	}

	c := &Conn{
		cfg:         cfg,
		conn:        netConn,
		sessionID:   -1,
		packetCount: -1,
		autocommit:  cfg.Autocommit,
	}
	if err := c.init(); err != nil {
		netConn.Close()
		return nil, err
	}
	if err := c.authenticate(); err != nil {
		netConn.Close()
		return nil, err
	}
	return c, nil
}

// init writes the protocol initialization request and reads the
// version reply.
func (c *Conn) init() error {
	if err := c.write(initializationRequest); err != nil {
		return err
	}
	reply := make([]byte, initializationReplySize)
	if err := c.read(reply); err != nil {
		return err
	}
	c.productVersion.Major = int8(reply[0])
	minor16, _, _ := readUint16(reply, 1)
	c.productVersion.Minor = uint32(minor16)
	c.protocolVersion.Major = int8(reply[3])
	c.protocolVersion.Minor, _, _ = readUint32(reply, 4)
	return nil
}

// authenticate runs the two round authentication dialog and the
// connect request.
func (c *Conn) authenticate() error {
	manager, err := newAuthManager(c.cfg.User, c.cfg.Password)
	if err != nil {
		return err
	}

	reply, err := c.sendRequest(NewRequest(MtAuthenticate, false, manager.initialPart()))
	if err != nil {
		return err
	}
	challenge, ok := reply.Part(PkAuthentication)
	if !ok {
		return protocolError("authenticate reply without an authentication part")
	}
	proof, err := manager.finalPart(challenge.(*Authentication))
	if err != nil {
		return err
	}

	options := c.cfg.ConnectOptions
	if options == nil {
		options = DefaultConnectOptions()
	}
	reply, err = c.sendRequest(NewRequest(MtConnect, false,
		proof,
		&ClientID{ID: clientID()},
		options,
	))
	if err != nil {
		return err
	}
	if p, ok := reply.Part(PkConnectOptions); ok {
		c.serverOptions = p.(*ConnectOptions)
	}
	return nil
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%d@%s", os.Getpid(), host)
}

// Close disconnects the session and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return interfaceError("connection already closed")
	}
	c.closed = true
	c.mu.Unlock()

	reply, err := c.exchange(NewRequest(MtDisconnect, false))
	if err == nil && reply.FunctionCode() != FcDisconnect {
		err = protocolError("disconnect answered with function code %v", reply.FunctionCode())
	}
	if cerr := c.conn.Close(); err == nil && cerr != nil {
		err = operationalError(cerr)
	}
	return err
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SessionID returns the server assigned session id, or -1 before the
// server assigned one.
func (c *Conn) SessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SessionClosing reports whether the server announced it will
// terminate the session after a transaction error. Such a connection
// refuses further requests.
func (c *Conn) SessionClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionClosing
}

// Autocommit reports whether statements commit on their own.
func (c *Conn) Autocommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autocommit
}

// SetAutocommit switches statement level commits on or off.
func (c *Conn) SetAutocommit(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autocommit = on
}

// ProductVersion returns the server product version from the
// initialization reply.
func (c *Conn) ProductVersion() Version { return c.productVersion }

// ProtocolVersion returns the protocol version from the
// initialization reply.
func (c *Conn) ProtocolVersion() Version { return c.protocolVersion }

// ServerOption returns a connect option from the server's connect
// reply, for example the connection id.
func (c *Conn) ServerOption(name string) (any, bool) {
	if c.serverOptions == nil {
		return nil, false
	}
	return c.serverOptions.Get(name)
}

// Commit makes the current transaction's changes permanent.
func (c *Conn) Commit() error {
	_, err := c.sendRequest(NewRequest(MtCommit, false))
	return err
}

// Rollback discards the current transaction's changes.
func (c *Conn) Rollback() error {
	_, err := c.sendRequest(NewRequest(MtRollback, false))
	return err
}

// sendRequest sends one request and reads its reply, failing on
// closed connections and on sessions the server announced it will
// terminate.
func (c *Conn) sendRequest(req *Request) (*Reply, error) {
	c.mu.Lock()
	closed, closing := c.closed, c.sessionClosing
	c.mu.Unlock()
	if closed {
		return nil, interfaceError("connection closed")
	}
	if closing {
		return nil, operationalError(errSessionClosing)
	}
	return c.exchange(req)
}

func (c *Conn) exchange(req *Request) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.packetCount++
	req.SessionID = c.sessionID
	req.PacketCount = c.packetCount

	packed, err := req.Pack()
	if err != nil {
		return nil, err
	}
	if log.V(3) {
		log.Infof("session %d sending %d bytes\n%s", c.sessionID, len(packed), hex.Dump(packed))
	}
	if err := c.write(packed); err != nil {
		return nil, err
	}
	reply, err := c.receive()
	if err != nil {
		return nil, err
	}

	// Adopt the server's session id. A change resets the packet
	// counter.
	if reply.SessionID > 0 && reply.SessionID != c.sessionID {
		c.sessionID = reply.SessionID
		c.packetCount = -1
	}
	if p, ok := reply.Part(PkTransactionFlags); ok && p.(*TransactionFlags).SessionClosing() {
		c.sessionClosing = true
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Conn) receive() (*Reply, error) {
	header := make([]byte, messageHeaderSize)
	if err := c.read(header); err != nil {
		return nil, err
	}
	payloadLength, _, _ := readUint32(header, 12)

	data := make([]byte, messageHeaderSize+int(payloadLength))
	copy(data, header)
	if err := c.read(data[messageHeaderSize:]); err != nil {
		return nil, err
	}
	if log.V(3) {
		log.Infof("session %d received %d bytes\n%s", c.sessionID, len(data), hex.Dump(data))
	}
	return UnpackReply(data)
}

func (c *Conn) write(data []byte) error {
	if err := c.setDeadline(); err != nil {
		return operationalError(err)
	}
	bw := getWriter(c.conn)
	defer putWriter(bw)
	if _, err := bw.Write(data); err != nil {
		return c.ioError(err)
	}
	if err := bw.Flush(); err != nil {
		return c.ioError(err)
	}
	return nil
}

func (c *Conn) read(data []byte) error {
	if err := c.setDeadline(); err != nil {
		return operationalError(err)
	}
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return c.ioError(err)
	}
	return nil
}

func (c *Conn) setDeadline() error {
	if c.cfg.Timeout == 0 {
		return nil
	}
	return c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
}

func (c *Conn) ioError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimedOut, err)
	}
	return operationalError(err)
}

// fetchLobChunk reads one chunk of a lob from the server. It
// implements the fetch capability handed to lobs on row decode.
func (c *Conn) fetchLobChunk(locatorID []byte, offset, length int64) ([]byte, error) {
	req := &ReadLobRequest{
		LocatorID: locatorID,
		Offset:    offset,
		Length:    int32(min(length, int64(maxLobReadLength))),
	}
	reply, err := c.sendRequest(NewRequest(MtReadLob, false, req))
	if err != nil {
		return nil, err
	}
	p, ok := reply.Part(PkReadLobReply)
	if !ok {
		return nil, protocolError("read lob reply without a read lob reply part")
	}
	data := p.(*ReadLobReply).Data
	if len(data) == 0 {
		log.Warningf("lob read at offset %d returned no data", offset)
	}
	return data, nil
}

const maxLobReadLength = 1 << 30

var errSessionClosing = errors.New("server is closing the session after a transaction error")
