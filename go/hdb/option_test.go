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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectOptionsPack(t *testing.T) {
	argCount, payload, err := DefaultConnectOptions().pack(0)
	require.NoError(t, err)
	assert.Equal(t, 8, argCount)

	// Entries are sorted by key.
	want := []byte{
		0x02, 0x1c, 0x01, // complete_array_execution true
		0x03, 0x1d, 0x05, 0x00, 'e', 'n', '_', 'U', 'S', // client_locale "en_US"
		0x0c, 0x03, 0x01, 0x00, 0x00, 0x00, // data_format_version 1
		0x0e, 0x1c, 0x00, // select_for_update_supported false
		0x0f, 0x03, 0x00, 0x00, 0x00, 0x00, // client_distribution_mode 0
		0x11, 0x03, 0x00, 0x00, 0x00, 0x00, // distribution_protocol_version 0
		0x12, 0x1c, 0x01, // split_batch_commands true
		0x17, 0x03, 0x01, 0x00, 0x00, 0x00, // data_format_version2 1
	}
	assert.Equal(t, want, payload)
}

func TestConnectOptionsPackSkipsNil(t *testing.T) {
	p := &ConnectOptions{Values: map[string]any{
		OptCompleteArrayExecution: true,
		OptClientLocale:           nil,
	}}
	argCount, payload, err := p.pack(0)
	require.NoError(t, err)
	assert.Equal(t, 1, argCount)
	assert.Equal(t, []byte{0x02, 0x1c, 0x01}, payload)
}

func TestConnectOptionsPackUnknownName(t *testing.T) {
	p := &ConnectOptions{Values: map[string]any{"compression": true}}
	_, _, err := p.pack(0)
	require.ErrorIs(t, err, ErrInterface)
	assert.ErrorContains(t, err, `unknown option identifier "compression"`)
}

func TestConnectOptionsPackWrongValueType(t *testing.T) {
	testcases := []struct {
		name   string
		values map[string]any
		errstr string
	}{{
		name:   "string option with an int",
		values: map[string]any{OptClientLocale: 42},
		errstr: "requires a string value",
	}, {
		name:   "bool option with a string",
		values: map[string]any{OptCompleteArrayExecution: "yes"},
		errstr: "requires a boolean value",
	}, {
		name:   "int option with a bool",
		values: map[string]any{OptDataFormatVersion: true},
		errstr: "requires an integer value",
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			p := &ConnectOptions{Values: tc.values}
			_, _, err := p.pack(0)
			require.ErrorIs(t, err, ErrInterface)
			assert.ErrorContains(t, err, tc.errstr)
		})
	}
}

// Servers send their options in no particular order.
func TestConnectOptionsUnpack(t *testing.T) {
	payload := []byte{
		0x03, 0x1d, 0x05, 0x00, 'e', 'n', '_', 'U', 'S',
		0x0f, 0x03, 0x00, 0x00, 0x00, 0x00,
		0x17, 0x03, 0x01, 0x00, 0x00, 0x00,
		0x0c, 0x03, 0x01, 0x00, 0x00, 0x00,
		0x02, 0x1c, 0x01,
		0x11, 0x03, 0x00, 0x00, 0x00, 0x00,
		0x0e, 0x1c, 0x00,
		0x12, 0x1c, 0x01,
	}

	part, err := unpackConnectOptions(8, payload)
	require.NoError(t, err)
	options := part.(*ConnectOptions)
	assert.Equal(t, PkConnectOptions, options.Kind())
	assert.Nil(t, options.Unknown)

	locale, ok := options.Get(OptClientLocale)
	require.True(t, ok)
	assert.Equal(t, "en_US", locale)

	version, ok := options.Get(OptDataFormatVersion)
	require.True(t, ok)
	assert.Equal(t, int32(1), version)

	complete, ok := options.Get(OptCompleteArrayExecution)
	require.True(t, ok)
	assert.Equal(t, true, complete)

	forUpdate, ok := options.Get(OptSelectForUpdateSupported)
	require.True(t, ok)
	assert.Equal(t, false, forUpdate)

	_, ok = options.Get(OptSystemID)
	assert.False(t, ok)
}

func TestConnectOptionsUnpackUnknownKey(t *testing.T) {
	payload := []byte{
		99, 0x03, 0x07, 0x00, 0x00, 0x00, // unknown key 99, int 7
		0x02, 0x1c, 0x01, // complete_array_execution true
	}

	part, err := unpackConnectOptions(2, payload)
	require.NoError(t, err)
	options := part.(*ConnectOptions)

	complete, ok := options.Get(OptCompleteArrayExecution)
	require.True(t, ok)
	assert.Equal(t, true, complete)
	assert.Equal(t, map[int8]any{99: int32(7)}, options.Unknown)
}

// Entries of the none type carry no value and are dropped.
func TestConnectOptionsUnpackNone(t *testing.T) {
	payload := []byte{
		0x0b, 0x18, // system_id, no value
		0x12, 0x1c, 0x01, // split_batch_commands true
	}

	part, err := unpackConnectOptions(2, payload)
	require.NoError(t, err)
	options := part.(*ConnectOptions)

	_, ok := options.Get(OptSystemID)
	assert.False(t, ok)
	split, ok := options.Get(OptSplitBatchCommands)
	require.True(t, ok)
	assert.Equal(t, true, split)
}

func TestConnectOptionsUnpackMalformed(t *testing.T) {
	testcases := []struct {
		name     string
		argCount int
		payload  []byte
		errstr   string
	}{{
		name:     "unknown value type",
		argCount: 1,
		payload:  []byte{0x01, 77, 0x00},
		errstr:   "unknown option type 77 for key 1",
	}, {
		name:     "truncated value",
		argCount: 1,
		payload:  []byte{0x01, 0x03, 0x00},
		errstr:   "truncated option value for key 1",
	}, {
		name:     "truncated entry",
		argCount: 2,
		payload:  []byte{0x02, 0x1c, 0x01, 0x03},
		errstr:   "truncated option part",
	}, {
		name:     "string shorter than declared",
		argCount: 1,
		payload:  []byte{0x03, 0x1d, 0x10, 0x00, 'e', 'n'},
		errstr:   "truncated option value for key 3",
	}}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := unpackConnectOptions(tc.argCount, tc.payload)
			require.ErrorIs(t, err, ErrProtocol)
			assert.ErrorContains(t, err, tc.errstr)
		})
	}
}

// All value types in one round trip, with a private definition table
// covering the types the connect options never use.
func TestOptionValueTypes(t *testing.T) {
	defs := map[string]optionDefinition{
		"tiny":  {key: 1, typ: otTinyint},
		"small": {key: 2, typ: otSmallint},
		"big":   {key: 3, typ: otBigint},
		"text":  {key: 4, typ: otNString},
	}
	values := map[string]any{
		"tiny":  7,
		"small": -2,
		"big":   int64(1) << 40,
		"text":  "grüße",
	}

	argCount, payload, err := packOptionValues(defs, values)
	require.NoError(t, err)
	assert.Equal(t, 4, argCount)

	decoded, unknown, err := unpackOptionValues(defs, argCount, payload)
	require.NoError(t, err)
	assert.Nil(t, unknown)
	assert.Equal(t, map[string]any{
		"tiny":  byte(7),
		"small": int16(-2),
		"big":   int64(1) << 40,
		"text":  "grüße",
	}, decoded)
}

func TestTransactionFlags(t *testing.T) {
	payload := []byte{
		0x01, 0x1c, 0x01, // commited true
		0x02, 0x03, 0x02, 0x00, 0x00, 0x00, // new_isolation_level 2
	}

	part, err := unpackTransactionFlags(2, payload)
	require.NoError(t, err)
	flags := part.(*TransactionFlags)
	assert.Equal(t, PkTransactionFlags, flags.Kind())

	committed, ok := flags.Get(OptCommitted)
	require.True(t, ok)
	assert.Equal(t, true, committed)

	level, ok := flags.Get(OptNewIsolationLevel)
	require.True(t, ok)
	assert.Equal(t, int32(2), level)

	assert.False(t, flags.SessionClosing())
}

func TestTransactionFlagsSessionClosing(t *testing.T) {
	payload := []byte{
		0x00, 0x1c, 0x01, // rolledback true
		0x06, 0x1c, 0x01, // session_closing_transaction_error true
	}

	part, err := unpackTransactionFlags(2, payload)
	require.NoError(t, err)
	flags := part.(*TransactionFlags)
	assert.True(t, flags.SessionClosing())

	rolledBack, ok := flags.Get(OptRolledBack)
	require.True(t, ok)
	assert.Equal(t, true, rolledBack)
}
