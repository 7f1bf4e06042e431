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

package main

import (
	"flag"
	"os"

	"github.com/hanadb/hana/go/cmd/hdbsql/command"
	"github.com/hanadb/hana/go/log"
)

func main() {
	// Pick up the glog flags along with our own.
	command.Root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	// Keep glog from complaining that the standard flag set was never
	// parsed.
	args := os.Args
	os.Args = os.Args[:1]
	flag.Parse()
	os.Args = args

	if err := command.Root.Execute(); err != nil {
		log.Flush()
		os.Exit(1)
	}
	log.Flush()
}
