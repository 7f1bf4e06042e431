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

package command

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/hanadb/hana/go/hdb"
)

// writeResult renders one statement outcome. Row sets become a table
// on terminals and tab-separated text everywhere else.
func writeResult(w io.Writer, result *hdb.Result, maxRows int64, asJSON bool) error {
	for i, p := range result.OutputParameters {
		fmt.Fprintf(w, "out[%d]: %s\n", i, formatCell(p))
	}
	if result.Rows == nil {
		if result.RowsAffected >= 0 {
			fmt.Fprintf(w, "%v: %d rows affected\n", result.FunctionCode, result.RowsAffected)
		} else {
			fmt.Fprintf(w, "%v: ok\n", result.FunctionCode)
		}
		return nil
	}

	result.Rows.SetFetchSize(v.GetInt("fetch-size"))
	rows, truncated, err := fetchLimited(result.Rows, maxRows)
	if err != nil {
		return err
	}
	columns := result.Rows.Columns()
	switch {
	case asJSON:
		if err := writeRowsJSON(w, columns, rows); err != nil {
			return err
		}
	case stdoutIsTerminal():
		writeRowsTable(w, columns, rows)
		fmt.Fprintf(w, "(%d rows)\n", len(rows))
	default:
		writeRowsTSV(w, columns, rows)
	}
	if truncated {
		fmt.Fprintf(w, "(output limited to %d rows, raise --max-rows for more)\n", maxRows)
	}
	return nil
}

// fetchLimited drains up to limit rows from the iterator. Zero means
// no limit.
func fetchLimited(rows *hdb.Rows, limit int64) ([][]any, bool, error) {
	var out [][]any
	for {
		if limit > 0 && int64(len(out)) == limit {
			return out, true, nil
		}
		row, err := rows.Next()
		if err != nil {
			return nil, false, err
		}
		if row == nil {
			return out, false, nil
		}
		out = append(out, row)
	}
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeRowsTable(w io.Writer, columns []*hdb.Column, rows [][]any) {
	table := tablewriter.NewWriter(w)
	header := make([]string, 0, len(columns))
	for _, col := range columns {
		header = append(header, col.DisplayName)
	}
	table.Header(header)
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, formatCell(cell))
		}
		table.Append(cells)
	}
	table.Render()
}

func writeRowsTSV(w io.Writer, columns []*hdb.Column, rows [][]any) {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.DisplayName)
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, formatCell(cell))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

func writeRowsJSON(w io.Writer, columns []*hdb.Column, rows [][]any) error {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]any, len(row))
		for i, cell := range row {
			m[columns[i].DisplayName] = jsonCell(cell)
		}
		out = append(out, m)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// jsonCell keeps JSON-native values as they are and renders the rest
// through formatCell.
func jsonCell(cell any) any {
	switch cell := cell.(type) {
	case nil, int64, float64, string, bool:
		return cell
	default:
		return formatCell(cell)
	}
}

// formatCell renders one decoded cell for display. Binary values come
// out as hex, lobs are read in full.
func formatCell(cell any) string {
	switch cell := cell.(type) {
	case nil:
		return "NULL"
	case string:
		return cell
	case []byte:
		return hex.EncodeToString(cell)
	case time.Time:
		return cell.Format("2006-01-02 15:04:05.999999999")
	case decimal.Decimal:
		return cell.String()
	case *hdb.Lob:
		return formatLob(cell)
	default:
		return fmt.Sprint(cell)
	}
}

func formatLob(lob *hdb.Lob) string {
	if lob.TypeCode().IsCharBased() {
		s, err := lob.ReadString(-1)
		if err != nil {
			return fmt.Sprintf("<lob read failed: %v>", err)
		}
		return s
	}
	data, err := lob.Read(-1)
	if err != nil {
		return fmt.Sprintf("<lob read failed: %v>", err)
	}
	return hex.EncodeToString(data)
}
