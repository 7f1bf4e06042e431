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
	"sort"

	"github.com/hanadb/hana/go/cesu8"
)

// Option parts carry lists of key/value pairs. Each entry starts with
// a one byte key and a one byte value type, followed by the encoded
// value. Keys are specific to the part kind; the value types reuse
// the data type codes.

type optionType int8

const (
	otTinyint  optionType = 1
	otSmallint optionType = 2
	otInt      optionType = 3
	otBigint   optionType = 4
	otBoolean  optionType = 28
	otString   optionType = 29
	otNString  optionType = 30

	// otNone marks an option whose value is absent. No value bytes
	// follow the key and type.
	otNone optionType = 24
)

// optionDefinition binds an option name to its wire key and value
// type.
type optionDefinition struct {
	key int8
	typ optionType
}

// packOptionValues encodes the given values following defs. Options
// absent from values, or present with a nil value, are left out
// entirely. Keys are written in ascending order.
func packOptionValues(defs map[string]optionDefinition, values map[string]any) (int, []byte, error) {
	for name := range values {
		if _, ok := defs[name]; !ok {
			return 0, nil, interfaceError("unknown option identifier %q", name)
		}
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		if v, ok := values[name]; ok && v != nil {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return defs[names[i]].key < defs[names[j]].key })

	var payload []byte
	for _, name := range names {
		def := defs[name]
		payload = append(payload, byte(def.key), byte(def.typ))
		var err error
		payload, err = appendOptionValue(payload, name, def.typ, values[name])
		if err != nil {
			return 0, nil, err
		}
	}
	return len(names), payload, nil
}

func appendOptionValue(dst []byte, name string, typ optionType, value any) ([]byte, error) {
	switch typ {
	case otTinyint:
		v, ok := optionInt(value)
		if !ok {
			return nil, interfaceError("option %q requires an integer value", name)
		}
		return append(dst, byte(v)), nil
	case otSmallint:
		v, ok := optionInt(value)
		if !ok {
			return nil, interfaceError("option %q requires an integer value", name)
		}
		return append(dst, byte(v), byte(v>>8)), nil
	case otInt:
		v, ok := optionInt(value)
		if !ok {
			return nil, interfaceError("option %q requires an integer value", name)
		}
		return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24)), nil
	case otBigint:
		v, ok := optionInt(value)
		if !ok {
			return nil, interfaceError("option %q requires an integer value", name)
		}
		return append(dst,
			byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
			byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56)), nil
	case otBoolean:
		v, ok := value.(bool)
		if !ok {
			return nil, interfaceError("option %q requires a boolean value", name)
		}
		if v {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case otString, otNString:
		s, ok := value.(string)
		if !ok {
			return nil, interfaceError("option %q requires a string value", name)
		}
		encoded, err := cesu8.Encode(s)
		if err != nil {
			return nil, interfaceError("option %q is not valid text: %v", name, err)
		}
		dst = append(dst, byte(len(encoded)), byte(len(encoded)>>8))
		return append(dst, encoded...), nil
	}
	return nil, interfaceError("option %q has unsupported type %d", name, typ)
}

func optionInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// unpackOptionValues decodes an option payload. Entries whose key is
// listed in defs land in values under their name; others are kept in
// unknown under their numeric key. Entries of type otNone carry no
// value bytes and are dropped.
func unpackOptionValues(defs map[string]optionDefinition, argCount int, payload []byte) (map[string]any, map[int8]any, error) {
	byKey := make(map[int8]string, len(defs))
	for name, def := range defs {
		byKey[def.key] = name
	}

	values := make(map[string]any)
	var unknown map[int8]any
	pos := 0
	for i := 0; i < argCount; i++ {
		key, next, ok := readByte(payload, pos)
		if !ok {
			return nil, nil, protocolError("truncated option part")
		}
		typByte, next, ok := readByte(payload, next)
		if !ok {
			return nil, nil, protocolError("truncated option part")
		}
		pos = next

		var value any
		switch optionType(typByte) {
		case otNone:
			continue
		case otTinyint:
			var b byte
			if b, pos, ok = readByte(payload, pos); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			value = b
		case otSmallint:
			var v int16
			if v, pos, ok = readInt16(payload, pos); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			value = v
		case otInt:
			var v int32
			if v, pos, ok = readInt32(payload, pos); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			value = v
		case otBigint:
			var v int64
			if v, pos, ok = readInt64(payload, pos); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			value = v
		case otBoolean:
			var b byte
			if b, pos, ok = readByte(payload, pos); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			value = b != 0
		case otString, otNString:
			var length int16
			if length, pos, ok = readInt16(payload, pos); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			var raw []byte
			if raw, pos, ok = readBytes(payload, pos, int(length)); !ok {
				return nil, nil, protocolError("truncated option value for key %d", key)
			}
			s, err := cesu8.Decode(raw)
			if err != nil {
				return nil, nil, protocolError("malformed option value for key %d: %v", key, err)
			}
			value = s
		default:
			return nil, nil, protocolError("unknown option type %d for key %d", typByte, key)
		}

		if name, ok := byKey[int8(key)]; ok {
			values[name] = value
		} else {
			if unknown == nil {
				unknown = make(map[int8]any)
			}
			unknown[int8(key)] = value
		}
	}
	return values, unknown, nil
}

// Connect option names.
const (
	OptConnectionID                   = "connection_id"
	OptCompleteArrayExecution         = "complete_array_execution"
	OptClientLocale                   = "client_locale"
	OptSupportsLargeBulkOperations    = "supports_large_bulk_operations"
	OptLargeNumberOfParametersSupport = "large_number_of_parameters_support"
	OptSystemID                       = "system_id"
	OptDataFormatVersion              = "data_format_version"
	OptSelectForUpdateSupported       = "select_for_update_supported"
	OptClientDistributionMode         = "client_distribution_mode"
	OptEngineDataFormatVersion        = "engine_data_format_version"
	OptDistributionProtocolVersion    = "distribution_protocol_version"
	OptSplitBatchCommands             = "split_batch_commands"
	OptUseTransactionFlagsOnly        = "use_transaction_flags_only"
	OptRowAndColumnOptimizedFormat    = "row_and_column_optimized_format"
	OptIgnoreUnknownParts             = "ignore_unknown_parts"
	OptDataFormatVersion2             = "data_format_version2"
)

var connectOptionDefs = map[string]optionDefinition{
	OptConnectionID:                   {key: 1, typ: otInt},
	OptCompleteArrayExecution:         {key: 2, typ: otBoolean},
	OptClientLocale:                   {key: 3, typ: otString},
	OptSupportsLargeBulkOperations:    {key: 4, typ: otBoolean},
	OptLargeNumberOfParametersSupport: {key: 10, typ: otBoolean},
	OptSystemID:                       {key: 11, typ: otString},
	OptDataFormatVersion:              {key: 12, typ: otInt},
	OptSelectForUpdateSupported:       {key: 14, typ: otBoolean},
	OptClientDistributionMode:         {key: 15, typ: otInt},
	OptEngineDataFormatVersion:        {key: 16, typ: otInt},
	OptDistributionProtocolVersion:    {key: 17, typ: otInt},
	OptSplitBatchCommands:             {key: 18, typ: otBoolean},
	OptUseTransactionFlagsOnly:        {key: 19, typ: otBoolean},
	OptRowAndColumnOptimizedFormat:    {key: 20, typ: otBoolean},
	OptIgnoreUnknownParts:             {key: 21, typ: otBoolean},
	OptDataFormatVersion2:             {key: 23, typ: otInt},
}

// ConnectOptions negotiates session behavior during connect. The
// client sends its capabilities; the server replies with the agreed
// values plus server properties such as the connection id.
type ConnectOptions struct {
	Values  map[string]any
	Unknown map[int8]any
}

func (*ConnectOptions) Kind() PartKind { return PkConnectOptions }

// Get returns the value of the named option from the part.
func (p *ConnectOptions) Get(name string) (any, bool) {
	v, ok := p.Values[name]
	return v, ok
}

func (p *ConnectOptions) pack(remaining int) (int, []byte, error) {
	return packOptionValues(connectOptionDefs, p.Values)
}

func unpackConnectOptions(argCount int, payload []byte) (Part, error) {
	values, unknown, err := unpackOptionValues(connectOptionDefs, argCount, payload)
	if err != nil {
		return nil, err
	}
	return &ConnectOptions{Values: values, Unknown: unknown}, nil
}

// DefaultConnectOptions returns the capabilities this client
// advertises on connect.
func DefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{Values: map[string]any{
		OptCompleteArrayExecution:      true,
		OptClientLocale:                "en_US",
		OptDataFormatVersion:           1,
		OptSelectForUpdateSupported:    false,
		OptClientDistributionMode:      0,
		OptDistributionProtocolVersion: 0,
		OptSplitBatchCommands:          true,
		OptDataFormatVersion2:          1,
	}}
}

// Transaction flag names.
const (
	OptRolledBack                     = "rolledback"
	OptCommitted                      = "commited"
	OptNewIsolationLevel              = "new_isolation_level"
	OptDDLCommitModeChanged           = "ddl_commit_mode_changed"
	OptWriteTransactionStarted        = "write_transaction_started"
	OptNoWriteTransactionStarted      = "no_write_transaction_started"
	OptSessionClosingTransactionError = "session_closing_transaction_error"
)

var transactionFlagDefs = map[string]optionDefinition{
	OptRolledBack:                     {key: 0, typ: otBoolean},
	OptCommitted:                      {key: 1, typ: otBoolean},
	OptNewIsolationLevel:              {key: 2, typ: otInt},
	OptDDLCommitModeChanged:           {key: 3, typ: otBoolean},
	OptWriteTransactionStarted:        {key: 4, typ: otBoolean},
	OptNoWriteTransactionStarted:      {key: 5, typ: otBoolean},
	OptSessionClosingTransactionError: {key: 6, typ: otBoolean},
}

// TransactionFlags reports transaction state changes alongside
// command replies.
type TransactionFlags struct {
	Values  map[string]any
	Unknown map[int8]any
}

func (*TransactionFlags) Kind() PartKind { return PkTransactionFlags }

// Get returns the value of the named flag from the part.
func (p *TransactionFlags) Get(name string) (any, bool) {
	v, ok := p.Values[name]
	return v, ok
}

// SessionClosing reports whether the server is about to terminate the
// session because of a transaction error.
func (p *TransactionFlags) SessionClosing() bool {
	v, ok := p.Values[OptSessionClosingTransactionError]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (p *TransactionFlags) pack(remaining int) (int, []byte, error) {
	return packOptionValues(transactionFlagDefs, p.Values)
}

func unpackTransactionFlags(argCount int, payload []byte) (Part, error) {
	values, unknown, err := unpackOptionValues(transactionFlagDefs, argCount, payload)
	if err != nil {
		return nil, err
	}
	return &TransactionFlags{Values: values, Unknown: unknown}, nil
}
