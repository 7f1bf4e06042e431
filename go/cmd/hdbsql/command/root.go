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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/hanadb/hana/go/hdb"
	"github.com/hanadb/hana/go/log"
)

var (
	// configFile overrides the default config file lookup.
	configFile string

	v = viper.New()

	Root = &cobra.Command{
		Use:   "hdbsql",
		Short: "hdbsql runs SQL statements against a HANA-compatible server.",
		Long: "`hdbsql` is a command-line client for servers speaking the SQL command\n" +
			"network protocol. It runs single statements and renders their results.\n\n" +
			"Connection settings are taken from flags, HDB_* environment variables\n" +
			"and an optional config file, in that order of precedence.",
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Flush()
		},
		SilenceUsage: true,
	}
)

func init() {
	// Assigned here rather than in the composite literal above to avoid an
	// initialization cycle: loadConfig refers back to Root.
	Root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		return log.Init(cmd.Flags())
	}

	Root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $HOME/.hdbsql.yaml)")
	Root.PersistentFlags().StringP("address", "a", "localhost:"+hdb.DefaultPort, "host:port of the server")
	Root.PersistentFlags().StringP("user", "u", "", "database user")
	Root.PersistentFlags().StringP("password", "p", "", "password of the database user (prompted when empty)")
	Root.PersistentFlags().Duration("timeout", 30*time.Second, "bound on every network operation, 0 for none")
	Root.PersistentFlags().Int("fetch-size", hdb.DefaultFetchSize, "rows requested per fetch round trip")

	log.RegisterFlags(Root.PersistentFlags())
}

// loadConfig layers the config file and HDB_* environment variables
// under the command-line flags.
func loadConfig() error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".hdbsql")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("HDB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(Root.PersistentFlags()); err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// connectConfig assembles the connection settings for one invocation,
// prompting for the password when none is configured.
func connectConfig() (hdb.ConnParams, error) {
	cfg := hdb.ConnParams{
		Address:    v.GetString("address"),
		User:       v.GetString("user"),
		Password:   v.GetString("password"),
		Autocommit: true,
		Timeout:    v.GetDuration("timeout"),
	}
	if cfg.User == "" {
		return cfg, errors.New("no user set; use --user, HDB_USER or the config file")
	}
	if cfg.Password == "" {
		password, err := promptPassword(cfg.User)
		if err != nil {
			return cfg, err
		}
		cfg.Password = password
	}
	return cfg, nil
}

// promptPassword asks for the password on the controlling terminal.
func promptPassword(user string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no password set and stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}
