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
	"fmt"
	"strings"
)

// Error category sentinels. Errors returned by this package wrap one
// of these, so callers can classify failures with errors.Is without
// inspecting messages.
var (
	// ErrProtocol means the byte stream received from the server did
	// not conform to the wire format.
	ErrProtocol = errors.New("protocol error")

	// ErrInterface means the client API was used in a way that cannot
	// be turned into a valid request, or a reply did not carry what
	// the operation requires.
	ErrInterface = errors.New("interface error")

	// ErrOperational means the underlying connection failed.
	ErrOperational = errors.New("operational error")

	// ErrTimedOut is an ErrOperational caused by an I/O deadline.
	ErrTimedOut = fmt.Errorf("%w: connection timed out", ErrOperational)

	// ErrDatabase matches any error reported by the server through an
	// error part.
	ErrDatabase = errors.New("database error")

	// ErrIntegrity matches server errors reporting a violated
	// integrity constraint.
	ErrIntegrity = errors.New("integrity constraint violation")

	// ErrData means a statement's input values cannot be represented
	// on the wire, for example a parameter row larger than a message.
	ErrData = errors.New("data error")
)

// Error levels reported by the server.
const (
	errorLevelWarning int8 = 0
	errorLevelError   int8 = 1
	errorLevelFatal   int8 = 2
)

// Server error code for violated unique constraints.
const codeUniqueConstraintViolation = 301

// ServerError is an error reported by the server in an error part. It
// carries the numeric code, the position of the offending token in the
// SQL text, and the five character SQL state.
type ServerError struct {
	Code     int32
	Position int32
	Level    int8
	SQLState string
	Message  string
}

func (e *ServerError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	fmt.Fprintf(&buf, " (code %v) (sqlstate %v)", e.Code, e.SQLState)
	return buf.String()
}

// Is classifies the error for errors.Is. Every ServerError matches
// ErrDatabase; constraint violations additionally match ErrIntegrity.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrDatabase:
		return true
	case ErrIntegrity:
		return e.Code == codeUniqueConstraintViolation
	}
	return false
}

// Fatal reports whether the server flagged the error as fatal. After a
// fatal error the session is unusable and the connection must be
// closed.
func (e *ServerError) Fatal() bool {
	return e.Level == errorLevelFatal
}

func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

func interfaceError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInterface, fmt.Sprintf(format, args...))
}

func operationalError(err error) error {
	return fmt.Errorf("%w: %v", ErrOperational, err)
}

func dataError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}
