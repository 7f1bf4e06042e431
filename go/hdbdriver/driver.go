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

// Package hdbdriver exposes the hdb client through the standard
// database/sql interface. The driver registers itself under the name
// "hana".
package hdbdriver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/hanadb/hana/go/hdb"
)

func init() {
	sql.Register("hana", drv{})
}

// Open is a helper function for sql.Open().
//
// It opens a database connection to the server running at "address"
// and authenticates as "user".
func Open(address, user, password string, timeout time.Duration) (*sql.DB, error) {
	c := newDefaultConfiguration()
	c.Address = address
	c.User = user
	c.Password = password
	c.Timeout = timeout
	return OpenWithConfiguration(c)
}

// OpenWithConfiguration is the generic helper function for sql.Open().
//
// It allows to pass in a Configuration struct to control all possible
// settings of the driver.
func OpenWithConfiguration(c Configuration) (*sql.DB, error) {
	json, err := c.toJSON()
	if err != nil {
		return nil, err
	}
	return sql.Open("hana", json)
}

type drv struct {
}

// Open implements the database/sql/driver.Driver interface.
//
// For "name", the driver requires that a JSON object is passed in.
//
// Instead of using this call and passing in a hand-crafted JSON
// string, it's recommended to use the public helper functions like
// Open() or OpenWithConfiguration() instead. These will generate the
// required JSON string behind the scenes for you.
//
// Example for a JSON string:
//
//	{"Address": "localhost:30015", "User": "SYSTEM", "Timeout": 30000000000}
//
// For a description of the available fields, see the Configuration
// struct. Note: In the JSON string, timeout has to be specified in
// nanoseconds.
func (d drv) Open(name string) (driver.Conn, error) {
	c := &conn{Configuration: newDefaultConfiguration()}
	if err := json.Unmarshal([]byte(name), c); err != nil {
		return nil, err
	}
	if c.Address == "" {
		return nil, errors.New("missing address in the connection configuration")
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

// Configuration holds all driver settings.
//
// Fields with documented default values do not have to be set
// explicitly.
type Configuration struct {
	// Address must point to a server instance.
	//
	// Format: hostname:port. A missing port defaults to
	// hdb.DefaultPort.
	Address string

	// User is the database user to authenticate as.
	User string

	// Password of the database user.
	Password string

	// Locale is the client locale advertised on connect.
	//
	// Default: "en_US"
	Locale string

	// FetchSize is the row count asked of the server per fetch round
	// trip while a result set is iterated.
	//
	// Default: hdb.DefaultFetchSize
	FetchSize int `json:"fetch_size"`

	// Timeout after which a pending network operation will be
	// aborted. Zero means no limit.
	Timeout time.Duration
}

func newDefaultConfiguration() Configuration {
	c := Configuration{}
	c.setDefaults()
	return c
}

// toJSON converts Configuration to the JSON string which is required
// by the driver. Default values for empty fields will be set.
func (c Configuration) toJSON() (string, error) {
	c.setDefaults()
	jsonBytes, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// setDefaults sets the default values for empty fields.
func (c *Configuration) setDefaults() {
	if c.Locale == "" {
		c.Locale = "en_US"
	}
	if c.FetchSize == 0 {
		c.FetchSize = hdb.DefaultFetchSize
	}
}

type conn struct {
	Configuration
	hc *hdb.Conn
	tx bool
}

func (c *conn) dial() error {
	opts := hdb.DefaultConnectOptions()
	opts.Values[hdb.OptClientLocale] = c.Locale
	hc, err := hdb.Connect(context.Background(), hdb.ConnParams{
		Address:  c.Address,
		User:     c.User,
		Password: c.Password,
		// database/sql owns transaction boundaries. Statements
		// commit on their own until Begin turns autocommit off.
		Autocommit:     true,
		Timeout:        c.Timeout,
		ConnectOptions: opts,
	})
	if err != nil {
		return err
	}
	c.hc = hc
	return nil
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	st, err := c.hc.Prepare(query)
	if err != nil {
		return nil, err
	}
	return &stmt{c: c, st: st}, nil
}

func (c *conn) Close() error {
	return c.hc.Close()
}

func (c *conn) Begin() (driver.Tx, error) {
	c.hc.SetAutocommit(false)
	c.tx = true
	return c, nil
}

func (c *conn) Commit() error {
	if !c.tx {
		return errors.New("commit: not in transaction")
	}
	err := c.hc.Commit()
	c.endTx()
	return err
}

func (c *conn) Rollback() error {
	if !c.tx {
		return nil
	}
	err := c.hc.Rollback()
	c.endTx()
	return err
}

func (c *conn) endTx() {
	c.tx = false
	c.hc.SetAutocommit(true)
}

type stmt struct {
	c  *conn
	st *hdb.Statement
}

func (s *stmt) Close() error {
	// Statement handles are reclaimed by the server when the session
	// ends.
	return nil
}

func (s *stmt) NumInput() int {
	n := 0
	for _, p := range s.st.Parameters() {
		if p.Mode.In() {
			n++
		}
	}
	return n
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	res, err := s.st.Execute(values(args)...)
	if err != nil {
		return nil, err
	}
	return result{res.RowsAffected}, nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	res, err := s.st.Execute(values(args)...)
	if err != nil {
		return nil, err
	}
	return newRows(res, s.c.FetchSize), nil
}

func values(args []driver.Value) []any {
	if len(args) == 0 {
		return nil
	}
	vs := make([]any, len(args))
	for i, v := range args {
		vs[i] = v
	}
	return vs
}

type result struct {
	rowsaffected int64
}

var errNoLastInsertID = errors.New("no LastInsertId available after this statement")

func (r result) LastInsertId() (int64, error) {
	return 0, errNoLastInsertID
}

func (r result) RowsAffected() (int64, error) {
	return r.rowsaffected, nil
}
