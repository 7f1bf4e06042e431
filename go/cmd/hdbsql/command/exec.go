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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hanadb/hana/go/hdb"
)

var Exec = &cobra.Command{
	Use:   "exec [--param <value>]... [--json|-j] <sql>",
	Short: "Runs a single SQL statement and prints its result.",
	Long: "Runs a single SQL statement and prints its result.\n\n" +
		"A statement without parameters is sent as-is. When --param is given the\n" +
		"statement is prepared first and the values are bound in order, converted\n" +
		"according to the parameter types the server reports.",
	DisableFlagsInUseLine: true,
	Args:                  cobra.ExactArgs(1),
	RunE:                  commandExec,
}

var execOptions = struct {
	Params  []string
	MaxRows int64
	JSON    bool
}{
	MaxRows: 10_000,
}

func commandExec(cmd *cobra.Command, args []string) error {
	cfg, err := connectConfig()
	if err != nil {
		return err
	}
	conn, err := hdb.Connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := runStatement(conn, args[0], execOptions.Params)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), result, execOptions.MaxRows, execOptions.JSON)
}

// runStatement executes sql, going through a server-side prepare when
// parameter values need to be bound.
func runStatement(conn *hdb.Conn, sql string, params []string) (*hdb.Result, error) {
	if len(params) == 0 {
		return conn.ExecuteDirect(sql)
	}
	stmt, err := conn.Prepare(sql)
	if err != nil {
		return nil, err
	}
	inputs := make([]*hdb.Parameter, 0, len(params))
	for _, p := range stmt.Parameters() {
		if p.Mode.In() {
			inputs = append(inputs, p)
		}
	}
	if len(params) != len(inputs) {
		return nil, fmt.Errorf("statement takes %d parameters, %d --param values given", len(inputs), len(params))
	}
	args := make([]any, len(params))
	for i, raw := range params {
		v, err := coerceParam(inputs[i].TypeCode, raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %v", i+1, err)
		}
		args[i] = v
	}
	return stmt.Execute(args...)
}

func init() {
	Exec.Flags().StringArrayVar(&execOptions.Params, "param", nil, "value to bind, repeat once per parameter marker")
	Exec.Flags().Int64Var(&execOptions.MaxRows, "max-rows", execOptions.MaxRows, "stop after this many rows, 0 for no limit")
	Exec.Flags().BoolVarP(&execOptions.JSON, "json", "j", false, "print rows as JSON instead of a table")
	Root.AddCommand(Exec)
}
