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

// Result is the outcome of one statement execution.
type Result struct {
	// FunctionCode classifies what the server executed.
	FunctionCode FunctionCode

	// RowsAffected is the summed row count of a DML statement, -1
	// for everything else.
	RowsAffected int64

	// Rows iterates the result set of a query, nil for statements
	// without one.
	Rows *Rows

	// OutputParameters holds the output values of a procedure call.
	OutputParameters []any
}

// ExecuteDirect executes the SQL text in one round trip, without
// preparing it. Statements with parameters go through Prepare.
func (c *Conn) ExecuteDirect(sql string) (*Result, error) {
	reply, err := c.sendRequest(NewRequest(MtExecuteDirect, c.Autocommit(), &Command{SQL: sql}))
	if err != nil {
		return nil, err
	}
	return c.buildResult(reply, nil, nil, nil)
}

// Statement is a prepared statement.
type Statement struct {
	conn *Conn
	id   StatementID
	sql  string

	parameters []*Parameter
	inputs     []*Parameter
	outputs    []*Parameter

	// columns is the result metadata sent at prepare time. Queries
	// repeat it in the execute reply only when it changed.
	columns []*Column
}

// Prepare compiles the SQL text on the server and returns a handle
// for executing it with parameters.
func (c *Conn) Prepare(sql string) (*Statement, error) {
	reply, err := c.sendRequest(NewRequest(MtPrepare, false, &Command{SQL: sql}))
	if err != nil {
		return nil, err
	}

	s := &Statement{conn: c, sql: sql}
	p, ok := reply.Part(PkStatementID)
	if !ok {
		return nil, protocolError("prepare reply without a statement id")
	}
	s.id = p.(StatementID)

	if p, ok := reply.Part(PkParameterMetadata); ok {
		s.parameters = p.(*ParameterMetadata).Parameters
		for _, parameter := range s.parameters {
			if parameter.Mode.In() {
				s.inputs = append(s.inputs, parameter)
			}
			if parameter.Mode.Out() {
				s.outputs = append(s.outputs, parameter)
			}
		}
	}
	if p, ok := reply.Part(PkResultSetMetadata); ok {
		s.columns = p.(*ResultSetMetadata).Columns
	}
	return s, nil
}

// SQL returns the statement text the handle was prepared from.
func (s *Statement) SQL() string { return s.sql }

// Parameters returns the statement's parameter descriptors.
func (s *Statement) Parameters() []*Parameter { return s.parameters }

// Execute runs the statement once with the given input values.
func (s *Statement) Execute(args ...any) (*Result, error) {
	return s.ExecuteMany([][]any{args})
}

// ExecuteMany runs the statement once per row of input values. Rows
// that do not fit into one message are sent with follow up requests;
// lob values larger than a message are streamed afterwards.
func (s *Statement) ExecuteMany(rows [][]any) (*Result, error) {
	params := &Parameters{Fields: s.inputs, Rows: rows}
	var final *Result
	for {
		reply, err := s.conn.sendRequest(NewRequest(MtExecute, s.conn.Autocommit(), s.id, params))
		if err != nil {
			return nil, err
		}
		result, err := s.conn.buildResult(reply, s.columns, s.outputs, params)
		if err != nil {
			return nil, err
		}
		if final == nil {
			final = result
		} else if result.RowsAffected >= 0 {
			if final.RowsAffected < 0 {
				final.RowsAffected = result.RowsAffected
			} else {
				final.RowsAffected += result.RowsAffected
			}
		}
		if !params.More() {
			return final, nil
		}
	}
}

// buildResult interprets an execute reply by its function code.
func (c *Conn) buildResult(reply *Reply, columns []*Column, outputs []*Parameter, params *Parameters) (*Result, error) {
	fc := reply.FunctionCode()
	result := &Result{FunctionCode: fc, RowsAffected: -1}

	switch {
	case fc.IsSelect():
		if p, ok := reply.Part(PkResultSetMetadata); ok {
			columns = p.(*ResultSetMetadata).Columns
		}
		if p, ok := reply.Part(PkOutputParameters); ok && len(outputs) > 0 {
			values, err := decodeOutputParameters(outputs, p.(*OutputParameters), c.fetchLobChunk)
			if err != nil {
				return nil, err
			}
			result.OutputParameters = values
		}
		rsPart, hasRows := reply.Part(PkResultSet)
		if !hasRows {
			if fc == FcSelect || fc == FcSelectForUpdate {
				return nil, protocolError("select reply without a result set part")
			}
			return result, nil
		}
		if columns == nil {
			return nil, protocolError("result set without metadata")
		}
		rows := &Rows{
			conn:      c,
			columns:   columns,
			fetchSize: DefaultFetchSize,
		}
		if p, ok := reply.Part(PkResultSetID); ok {
			rows.id = p.(ResultSetID)
		}
		rs := rsPart.(*ResultSet)
		buffered, err := decodeRows(columns, rs, c.fetchLobChunk)
		if err != nil {
			return nil, err
		}
		rows.buffered = buffered
		rows.last = rs.Last()
		result.Rows = rows

	case fc.IsDML():
		if p, ok := reply.Part(PkRowsAffected); ok {
			result.RowsAffected = p.(RowsAffected).Total()
		}
		if p, ok := reply.Part(PkWriteLobReply); ok && params != nil {
			if err := c.drainLobBuffers(params.LobBuffers(), p.(*WriteLobReply).LocatorIDs); err != nil {
				return nil, err
			}
		}

	case fc == FcNil, fc == FcDDL, fc == FcCommit, fc == FcRollback, fc == FcSavepoint, fc == FcExplain:
		// Nothing to extract beyond the function code.

	default:
		return nil, interfaceError("unexpected function code %v in an execute reply", fc)
	}
	return result, nil
}

// drainLobBuffers pairs the locators of a write lob reply with the
// queued lob remainders and streams them in as many WRITELOB requests
// as the message budget demands.
func (c *Conn) drainLobBuffers(buffers []*LobWriteBuffer, locatorIDs [][]byte) error {
	if len(locatorIDs) != len(buffers) {
		return protocolError("write lob reply names %d locators for %d queued lobs", len(locatorIDs), len(buffers))
	}
	for i, buffer := range buffers {
		buffer.LocatorID = locatorIDs[i]
	}

	budget := MaxSegmentSize - segmentHeaderSize - partHeaderSize
	pending := buffers
	for len(pending) > 0 {
		part, rest := planWriteLobChunks(pending, budget)
		if _, err := c.sendRequest(NewRequest(MtWriteLob, false, part)); err != nil {
			return err
		}
		pending = rest
	}
	return nil
}
