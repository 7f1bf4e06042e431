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

const (
	// MaxMessageSize is the maximum size of a request message on the
	// wire, headers included.
	MaxMessageSize = 1 << 17

	// MaxSegmentSize is the maximum size of a single segment and the
	// value advertised in the varPartSize field of every request
	// message header.
	MaxSegmentSize = MaxMessageSize - messageHeaderSize

	messageHeaderSize = 32
	segmentHeaderSize = 24
	partHeaderSize    = 16
)

// initializationRequest is the fixed preamble a client writes on a
// fresh connection before the first message exchange. The server
// answers with an 8 byte version reply.
var initializationRequest = []byte{
	0xff, 0xff, 0xff, 0xff, 0x04, 0x14, 0x00, 0x04,
	0x01, 0x00, 0x00, 0x01, 0x01, 0x01,
}

const initializationReplySize = 8

// SegmentKind describes the role of a segment within a message.
type SegmentKind int8

const (
	SkInvalid SegmentKind = 0
	SkRequest SegmentKind = 1
	SkReply   SegmentKind = 2
	SkError   SegmentKind = 5
)

func (sk SegmentKind) String() string {
	switch sk {
	case SkInvalid:
		return "INVALID"
	case SkRequest:
		return "REQUEST"
	case SkReply:
		return "REPLY"
	case SkError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// MessageType identifies the request carried by a request segment.
type MessageType int8

const (
	MtNil             MessageType = 0
	MtExecuteDirect   MessageType = 2
	MtPrepare         MessageType = 3
	MtAbapStream      MessageType = 4
	MtXAStart         MessageType = 5
	MtXAJoin          MessageType = 6
	MtExecute         MessageType = 13
	MtReadLob         MessageType = 16
	MtWriteLob        MessageType = 17
	MtFindLob         MessageType = 18
	MtAuthenticate    MessageType = 65
	MtConnect         MessageType = 66
	MtCommit          MessageType = 67
	MtRollback        MessageType = 68
	MtCloseResultSet  MessageType = 69
	MtDropStatementID MessageType = 70
	MtFetchNext       MessageType = 71
	MtDisconnect      MessageType = 77
)

func (mt MessageType) String() string {
	switch mt {
	case MtNil:
		return "NIL"
	case MtExecuteDirect:
		return "EXECUTEDIRECT"
	case MtPrepare:
		return "PREPARE"
	case MtAbapStream:
		return "ABAPSTREAM"
	case MtXAStart:
		return "XASTART"
	case MtXAJoin:
		return "XAJOIN"
	case MtExecute:
		return "EXECUTE"
	case MtReadLob:
		return "READLOB"
	case MtWriteLob:
		return "WRITELOB"
	case MtFindLob:
		return "FINDLOB"
	case MtAuthenticate:
		return "AUTHENTICATE"
	case MtConnect:
		return "CONNECT"
	case MtCommit:
		return "COMMIT"
	case MtRollback:
		return "ROLLBACK"
	case MtCloseResultSet:
		return "CLOSERESULTSET"
	case MtDropStatementID:
		return "DROPSTATEMENTID"
	case MtFetchNext:
		return "FETCHNEXT"
	case MtDisconnect:
		return "DISCONNECT"
	}
	return "UNKNOWN"
}

// FunctionCode is the server's classification of what a reply segment
// answers. It drives the client's interpretation of the reply parts.
type FunctionCode int16

const (
	FcNil                       FunctionCode = 0
	FcDDL                       FunctionCode = 1
	FcInsert                    FunctionCode = 2
	FcUpdate                    FunctionCode = 3
	FcDelete                    FunctionCode = 4
	FcSelect                    FunctionCode = 5
	FcSelectForUpdate           FunctionCode = 6
	FcExplain                   FunctionCode = 7
	FcDBProcedureCall           FunctionCode = 8
	FcDBProcedureCallWithResult FunctionCode = 9
	FcFetch                     FunctionCode = 10
	FcCommit                    FunctionCode = 11
	FcRollback                  FunctionCode = 12
	FcSavepoint                 FunctionCode = 13
	FcConnect                   FunctionCode = 14
	FcWriteLob                  FunctionCode = 15
	FcReadLob                   FunctionCode = 16
	FcPing                      FunctionCode = 17
	FcDisconnect                FunctionCode = 18
	FcCloseCursor               FunctionCode = 19
	FcFindLob                   FunctionCode = 20
)

// IsDML reports whether the function code classifies a data
// manipulation statement, i.e. one answered with a RowsAffected part.
func (fc FunctionCode) IsDML() bool {
	switch fc {
	case FcInsert, FcUpdate, FcDelete:
		return true
	}
	return false
}

// IsSelect reports whether the function code classifies a query that
// produced a result set.
func (fc FunctionCode) IsSelect() bool {
	switch fc {
	case FcSelect, FcSelectForUpdate, FcDBProcedureCall, FcDBProcedureCallWithResult:
		return true
	}
	return false
}

func (fc FunctionCode) String() string {
	switch fc {
	case FcNil:
		return "NIL"
	case FcDDL:
		return "DDL"
	case FcInsert:
		return "INSERT"
	case FcUpdate:
		return "UPDATE"
	case FcDelete:
		return "DELETE"
	case FcSelect:
		return "SELECT"
	case FcSelectForUpdate:
		return "SELECTFORUPDATE"
	case FcExplain:
		return "EXPLAIN"
	case FcDBProcedureCall:
		return "DBPROCEDURECALL"
	case FcDBProcedureCallWithResult:
		return "DBPROCEDURECALLWITHRESULT"
	case FcFetch:
		return "FETCH"
	case FcCommit:
		return "COMMIT"
	case FcRollback:
		return "ROLLBACK"
	case FcSavepoint:
		return "SAVEPOINT"
	case FcConnect:
		return "CONNECT"
	case FcWriteLob:
		return "WRITELOB"
	case FcReadLob:
		return "READLOB"
	case FcPing:
		return "PING"
	case FcDisconnect:
		return "DISCONNECT"
	case FcCloseCursor:
		return "CLOSECURSOR"
	case FcFindLob:
		return "FINDLOB"
	}
	return "UNKNOWN"
}

// PartKind identifies the payload type of a part.
type PartKind int8

const (
	PkNil                  PartKind = 0
	PkCommand              PartKind = 3
	PkResultSet            PartKind = 5
	PkError                PartKind = 6
	PkStatementID          PartKind = 10
	PkTransactionID        PartKind = 11
	PkRowsAffected         PartKind = 12
	PkResultSetID          PartKind = 13
	PkTopologyInformation  PartKind = 15
	PkTableLocation        PartKind = 16
	PkReadLobRequest       PartKind = 17
	PkReadLobReply         PartKind = 18
	PkWriteLobRequest      PartKind = 28
	PkClientContext        PartKind = 29
	PkWriteLobReply        PartKind = 30
	PkParameters           PartKind = 32
	PkAuthentication       PartKind = 33
	PkSessionContext       PartKind = 34
	PkClientID             PartKind = 35
	PkStatementContext     PartKind = 39
	PkPartitionInformation PartKind = 40
	PkOutputParameters     PartKind = 41
	PkConnectOptions       PartKind = 42
	PkCommitOptions        PartKind = 43
	PkFetchOptions         PartKind = 44
	PkFetchSize            PartKind = 45
	PkParameterMetadata    PartKind = 47
	PkResultSetMetadata    PartKind = 48
	PkFindLobRequest       PartKind = 49
	PkFindLobReply         PartKind = 50
	PkClientInfo           PartKind = 57
	PkTransactionFlags     PartKind = 64
)

func (pk PartKind) String() string {
	switch pk {
	case PkNil:
		return "NIL"
	case PkCommand:
		return "COMMAND"
	case PkResultSet:
		return "RESULTSET"
	case PkError:
		return "ERROR"
	case PkStatementID:
		return "STATEMENTID"
	case PkTransactionID:
		return "TRANSACTIONID"
	case PkRowsAffected:
		return "ROWSAFFECTED"
	case PkResultSetID:
		return "RESULTSETID"
	case PkTopologyInformation:
		return "TOPOLOGYINFORMATION"
	case PkTableLocation:
		return "TABLELOCATION"
	case PkReadLobRequest:
		return "READLOBREQUEST"
	case PkReadLobReply:
		return "READLOBREPLY"
	case PkWriteLobRequest:
		return "WRITELOBREQUEST"
	case PkClientContext:
		return "CLIENTCONTEXT"
	case PkWriteLobReply:
		return "WRITELOBREPLY"
	case PkParameters:
		return "PARAMETERS"
	case PkAuthentication:
		return "AUTHENTICATION"
	case PkSessionContext:
		return "SESSIONCONTEXT"
	case PkClientID:
		return "CLIENTID"
	case PkStatementContext:
		return "STATEMENTCONTEXT"
	case PkPartitionInformation:
		return "PARTITIONINFORMATION"
	case PkOutputParameters:
		return "OUTPUTPARAMETERS"
	case PkConnectOptions:
		return "CONNECTOPTIONS"
	case PkCommitOptions:
		return "COMMITOPTIONS"
	case PkFetchOptions:
		return "FETCHOPTIONS"
	case PkFetchSize:
		return "FETCHSIZE"
	case PkParameterMetadata:
		return "PARAMETERMETADATA"
	case PkResultSetMetadata:
		return "RESULTSETMETADATA"
	case PkFindLobRequest:
		return "FINDLOBREQUEST"
	case PkFindLobReply:
		return "FINDLOBREPLY"
	case PkClientInfo:
		return "CLIENTINFO"
	case PkTransactionFlags:
		return "TRANSACTIONFLAGS"
	}
	return "UNKNOWN"
}

// Part attribute bits. The server sets these on reply parts to
// describe how the part relates to the rest of the result.
const (
	PartAttrLastPacket      uint8 = 0x01
	PartAttrNextPacket      uint8 = 0x02
	PartAttrFirstPacket     uint8 = 0x04
	PartAttrRowNotFound     uint8 = 0x08
	PartAttrResultSetClosed uint8 = 0x10
)
