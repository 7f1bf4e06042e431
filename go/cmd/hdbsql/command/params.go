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
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanadb/hana/go/hdbtypes"
)

// timestampLayouts are tried in order for TIMESTAMP parameters.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// coerceParam turns a command-line string into the Go value the
// parameter's wire type expects. Character types take the string
// as-is, binary types want hex.
func coerceParam(tc hdbtypes.TypeCode, raw string) (any, error) {
	switch tc {
	case hdbtypes.TinyInt, hdbtypes.SmallInt, hdbtypes.Int, hdbtypes.BigInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return n, nil
	case hdbtypes.Real, hdbtypes.Double:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case hdbtypes.Decimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a decimal", raw)
		}
		return d, nil
	case hdbtypes.Binary, hdbtypes.VarBinary, hdbtypes.BString, hdbtypes.Blob:
		data, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not hex-encoded binary", raw)
		}
		return data, nil
	case hdbtypes.Date:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a date, want 2006-01-02", raw)
		}
		return t, nil
	case hdbtypes.Time:
		t, err := time.Parse("15:04:05", raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a time of day, want 15:04:05", raw)
		}
		return t, nil
	case hdbtypes.Timestamp:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%q is not a timestamp, want 2006-01-02 15:04:05", raw)
	default:
		return raw, nil
	}
}
