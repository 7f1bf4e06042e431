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
	"time"

	"github.com/spf13/cobra"

	"github.com/hanadb/hana/go/hdb"
)

const pingQuery = "SELECT 1 FROM DUMMY"

var Ping = &cobra.Command{
	Use:   "ping",
	Short: "Checks that the server accepts connections and answers queries.",
	Args:  cobra.NoArgs,
	RunE:  commandPing,
}

func commandPing(cmd *cobra.Command, args []string) error {
	cfg, err := connectConfig()
	if err != nil {
		return err
	}
	start := time.Now()
	conn, err := hdb.Connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecuteDirect(pingQuery); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok - server %s, protocol %s, session %d, round trip %v\n",
		conn.ProductVersion(), conn.ProtocolVersion(), conn.SessionID(),
		time.Since(start).Round(time.Millisecond))
	return nil
}

func init() {
	Root.AddCommand(Ping)
}
