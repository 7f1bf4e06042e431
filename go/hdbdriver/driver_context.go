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

package hdbdriver

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/hanadb/hana/go/hdb"
)

var (
	errNamedParameters      = errors.New("named parameters are not supported")
	errIsolationUnsupported = errors.New("isolation levels are not supported")
)

// Type-check interfaces.
var (
	_ driver.ConnBeginTx      = &conn{}
	_ driver.QueryerContext   = &conn{}
	_ driver.ExecerContext    = &conn{}
	_ driver.Pinger           = &conn{}
	_ driver.StmtQueryContext = &stmt{}
	_ driver.StmtExecContext  = &stmt{}
)

func (c *conn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	// We don't use the context. The function signature accepts the
	// context to signal to the driver that it's allowed to call
	// Rollback on Cancel.
	if opts.Isolation != driver.IsolationLevel(0) || opts.ReadOnly {
		return nil, errIsolationUnsupported
	}
	return c.Begin()
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	vs, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	res, err := c.execute(ctx, query, vs)
	if err != nil {
		return nil, err
	}
	return result{res.RowsAffected}, nil
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	vs, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	res, err := c.execute(ctx, query, vs)
	if err != nil {
		return nil, err
	}
	return newRows(res, c.FetchSize), nil
}

// execute runs one statement, preparing it first when it carries bind
// parameters. EXECUTEDIRECT does not take parameters on the wire.
func (c *conn) execute(ctx context.Context, query string, args []any) (*hdb.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return c.hc.ExecuteDirect(query)
	}
	st, err := c.hc.Prepare(query)
	if err != nil {
		return nil, err
	}
	return st.Execute(args...)
}

// Ping implements the driver.Pinger interface.
func (c *conn) Ping(ctx context.Context) error {
	if c.hc.Closed() {
		return driver.ErrBadConn
	}
	_, err := c.execute(ctx, "SELECT 1 FROM DUMMY", nil)
	return err
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	vs, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.st.Execute(vs...)
	if err != nil {
		return nil, err
	}
	return result{res.RowsAffected}, nil
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	vs, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.st.Execute(vs...)
	if err != nil {
		return nil, err
	}
	return newRows(res, s.c.FetchSize), nil
}

// namedValues flattens query arguments into positional values. The
// protocol binds parameters by position only.
func namedValues(args []driver.NamedValue) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	vs := make([]any, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			return nil, errNamedParameters
		}
		vs[i] = arg.Value
	}
	return vs, nil
}
