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
	"database/sql/driver"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanadb/hana/go/hdb"
)

// Type-check interfaces.
var (
	_ driver.RowsColumnTypeDatabaseTypeName = &rows{}
	_ driver.RowsColumnTypeNullable         = &rows{}
)

// rows creates a database/sql/driver compliant Row iterator for a
// statement result.
type rows struct {
	rs      *hdb.Rows
	columns []*hdb.Column
}

// newRows creates a new rows from res. Statements without a result
// set yield an empty iterator.
func newRows(res *hdb.Result, fetchSize int) driver.Rows {
	r := &rows{rs: res.Rows}
	if r.rs != nil {
		r.columns = r.rs.Columns()
		r.rs.SetFetchSize(fetchSize)
	}
	return r
}

func (r *rows) Columns() []string {
	cols := make([]string, 0, len(r.columns))
	for _, col := range r.columns {
		cols = append(cols, col.DisplayName)
	}
	return cols
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.columns[index].TypeCode.String()
}

func (r *rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.columns[index].Nullable(), true
}

func (r *rows) Close() error {
	if r.rs == nil {
		return nil
	}
	return r.rs.Close()
}

func (r *rows) Next(dest []driver.Value) error {
	if r.rs == nil {
		return io.EOF
	}
	row, err := r.rs.Next()
	if err != nil {
		return err
	}
	if row == nil {
		return io.EOF
	}
	for i, v := range row {
		dest[i], err = driverValue(v)
		if err != nil {
			return err
		}
	}
	return nil
}

// driverValue converts one decoded cell into a value the sql package
// accepts. Lobs are materialized in full; use the hdb package
// directly for streaming reads.
func driverValue(v any) (driver.Value, error) {
	switch v := v.(type) {
	case nil, int64, float64, string, []byte, time.Time:
		return v, nil
	case decimal.Decimal:
		return v.String(), nil
	case *hdb.Lob:
		if v.TypeCode().IsCharBased() {
			return v.ReadString(-1)
		}
		return v.Read(-1)
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
