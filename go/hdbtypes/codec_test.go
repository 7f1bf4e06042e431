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

package hdbtypes

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValue(t *testing.T) {
	testcases := []struct {
		name string
		tc   TypeCode
		data []byte
		want any
	}{{
		name: "tinyint",
		tc:   TinyInt,
		data: []byte{0x01, 0x05},
		want: int64(5),
	}, {
		name: "tinyint max",
		tc:   TinyInt,
		data: []byte{0x01, 0xff},
		want: int64(255),
	}, {
		name: "tinyint null",
		tc:   TinyInt,
		data: []byte{0x00},
		want: nil,
	}, {
		name: "smallint",
		tc:   SmallInt,
		data: []byte{0x01, 0x39, 0x30},
		want: int64(12345),
	}, {
		name: "smallint negative",
		tc:   SmallInt,
		data: []byte{0x01, 0xff, 0xff},
		want: int64(-1),
	}, {
		name: "int",
		tc:   Int,
		data: []byte{0x01, 0x40, 0xe2, 0x01, 0x00},
		want: int64(123456),
	}, {
		name: "int null",
		tc:   Int,
		data: []byte{0x00},
		want: nil,
	}, {
		name: "bigint",
		tc:   BigInt,
		data: []byte{0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		want: int64(-1),
	}, {
		name: "real",
		tc:   Real,
		data: []byte{0x00, 0x00, 0xc0, 0x3f},
		want: float64(1.5),
	}, {
		name: "real null",
		tc:   Real,
		data: []byte{0xff, 0xff, 0xff, 0xff},
		want: nil,
	}, {
		name: "double",
		tc:   Double,
		data: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f},
		want: float64(1.5),
	}, {
		name: "double null",
		tc:   Double,
		data: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		want: nil,
	}, {
		name: "string",
		tc:   String,
		data: []byte{0x03, 'f', 'o', 'o'},
		want: "foo",
	}, {
		name: "string empty",
		tc:   String,
		data: []byte{0x00},
		want: "",
	}, {
		name: "string null",
		tc:   NVarchar,
		data: []byte{0xff},
		want: nil,
	}, {
		name: "string supplementary",
		tc:   NString,
		data: []byte{0x06, 0xed, 0xa0, 0x81, 0xed, 0xb0, 0x80},
		want: "\U00010400",
	}, {
		name: "binary",
		tc:   VarBinary,
		data: []byte{0x03, 0x01, 0x02, 0x03},
		want: []byte{0x01, 0x02, 0x03},
	}, {
		name: "binary null",
		tc:   BString,
		data: []byte{0xff},
		want: nil,
	}, {
		name: "date",
		tc:   Date,
		data: []byte{0xde, 0x87, 0x07, 0x16},
		want: time.Date(2014, time.August, 22, 0, 0, 0, 0, time.UTC),
	}, {
		name: "date null",
		tc:   Date,
		data: []byte{0x00, 0x00, 0x00, 0x00},
		want: nil,
	}, {
		name: "time",
		tc:   Time,
		data: []byte{0x8f, 0x1e, 0xe8, 0x03},
		want: time.Date(1, time.January, 1, 15, 30, 1, 0, time.UTC),
	}, {
		name: "time with millis",
		tc:   Time,
		data: []byte{0x8f, 0x1e, 0xeb, 0x03},
		want: time.Date(1, time.January, 1, 15, 30, 1, 3000000, time.UTC),
	}, {
		name: "time null",
		tc:   Time,
		data: []byte{0x00, 0x00, 0x00, 0x00},
		want: nil,
	}, {
		name: "timestamp",
		tc:   Timestamp,
		data: []byte{0xde, 0x87, 0x07, 0x16, 0x8f, 0x1e, 0xe8, 0x03},
		want: time.Date(2014, time.August, 22, 15, 30, 1, 0, time.UTC),
	}, {
		name: "timestamp null",
		tc:   Timestamp,
		data: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		want: nil,
	}}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			got, pos, err := DecodeValue(tcase.tc, tcase.data, 0)
			require.NoError(t, err)
			assert.Equal(t, tcase.want, got)
			assert.Equal(t, len(tcase.data), pos, "all bytes consumed")
		})
	}
}

func TestDecodeValueOffset(t *testing.T) {
	// Two cells back to back decode from their own positions.
	data := []byte{0x01, 0x05, 0x03, 'a', 'b', 'c'}

	v, pos, err := DecodeValue(TinyInt, data, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
	assert.Equal(t, 2, pos)

	v, pos, err = DecodeValue(Varchar, data, pos)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
	assert.Equal(t, 6, pos)
}

func TestDecodeValueErrors(t *testing.T) {
	testcases := []struct {
		name string
		tc   TypeCode
		data []byte
		err  error
	}{{
		name: "unknown type code",
		tc:   TypeCode(19),
		data: []byte{0x01},
		err:  ErrUnknownTypeCode,
	}, {
		name: "no codec for daydate",
		tc:   DayDate,
		data: []byte{0x01, 0x02, 0x03, 0x04},
		err:  ErrUnknownTypeCode,
	}, {
		name: "truncated int",
		tc:   Int,
		data: []byte{0x01, 0x40, 0xe2},
		err:  ErrTruncatedPayload,
	}, {
		name: "empty payload",
		tc:   TinyInt,
		data: nil,
		err:  ErrTruncatedPayload,
	}, {
		name: "truncated string",
		tc:   String,
		data: []byte{0x05, 'a', 'b'},
		err:  ErrTruncatedPayload,
	}, {
		name: "truncated length field",
		tc:   String,
		data: []byte{0xf6, 0x10},
		err:  ErrTruncatedPayload,
	}, {
		name: "bad length indicator",
		tc:   String,
		data: []byte{0xfa},
		err:  ErrUnknownLengthIndicator,
	}, {
		name: "truncated date",
		tc:   Date,
		data: []byte{0xde, 0x87},
		err:  ErrTruncatedPayload,
	}}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			_, _, err := DecodeValue(tcase.tc, tcase.data, 0)
			require.ErrorIs(t, err, tcase.err)
		})
	}
}

func TestDecodeLongString(t *testing.T) {
	// 300 bytes needs the two byte length field.
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 'x'
	}
	data := append([]byte{0xf6, 0x2c, 0x01}, payload...)

	v, pos, err := DecodeValue(String, data, 0)
	require.NoError(t, err)
	assert.Equal(t, string(payload), v)
	assert.Equal(t, len(data), pos)
}

func TestAppendValue(t *testing.T) {
	testcases := []struct {
		name string
		tc   TypeCode
		v    any
		want []byte
	}{{
		name: "tinyint",
		tc:   TinyInt,
		v:    5,
		want: []byte{0x01, 0x05},
	}, {
		name: "tinyint null",
		tc:   TinyInt,
		v:    nil,
		want: []byte{0x00},
	}, {
		name: "smallint",
		tc:   SmallInt,
		v:    12345,
		want: []byte{0x02, 0x39, 0x30},
	}, {
		name: "int negative",
		tc:   Int,
		v:    -1,
		want: []byte{0x03, 0xff, 0xff, 0xff, 0xff},
	}, {
		name: "bigint",
		tc:   BigInt,
		v:    int64(-1),
		want: []byte{0x04, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}, {
		name: "bigint null",
		tc:   BigInt,
		v:    nil,
		want: []byte{0x00},
	}, {
		name: "bool as tinyint",
		tc:   TinyInt,
		v:    true,
		want: []byte{0x01, 0x01},
	}, {
		name: "real",
		tc:   Real,
		v:    1.5,
		want: []byte{0x06, 0x00, 0x00, 0xc0, 0x3f},
	}, {
		name: "double",
		tc:   Double,
		v:    1.5,
		want: []byte{0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f},
	}, {
		name: "double null",
		tc:   Double,
		v:    nil,
		want: []byte{0x00},
	}, {
		name: "string",
		tc:   String,
		v:    "foo",
		want: []byte{0x1d, 0x03, 'f', 'o', 'o'},
	}, {
		name: "string null",
		tc:   NString,
		v:    nil,
		want: []byte{0x9e},
	}, {
		name: "string supplementary",
		tc:   NString,
		v:    "\U00010400",
		want: []byte{0x1e, 0x06, 0xed, 0xa0, 0x81, 0xed, 0xb0, 0x80},
	}, {
		name: "binary",
		tc:   VarBinary,
		v:    []byte{0x01, 0x02, 0x03},
		want: []byte{0x0d, 0x03, 0x01, 0x02, 0x03},
	}, {
		name: "binary null",
		tc:   VarBinary,
		v:    nil,
		want: []byte{0x8d},
	}, {
		name: "blob null",
		tc:   Blob,
		v:    nil,
		want: []byte{0x9b},
	}, {
		name: "date",
		tc:   Date,
		v:    time.Date(2014, time.August, 25, 0, 0, 0, 0, time.UTC),
		want: []byte{0x0e, 0xde, 0x87, 0x07, 0x19},
	}, {
		name: "date null",
		tc:   Date,
		v:    nil,
		want: []byte{0x00},
	}, {
		name: "time",
		tc:   Time,
		v:    time.Date(1, time.January, 1, 15, 30, 1, 0, time.UTC),
		want: []byte{0x0f, 0x8f, 0x1e, 0xe8, 0x03},
	}, {
		name: "timestamp",
		tc:   Timestamp,
		v:    time.Date(2014, time.August, 25, 15, 30, 1, 0, time.UTC),
		want: []byte{0x10, 0xde, 0x87, 0x07, 0x19, 0x8f, 0x1e, 0xe8, 0x03},
	}, {
		name: "timestamp null",
		tc:   Timestamp,
		v:    nil,
		want: []byte{0x00},
	}}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			got, err := AppendValue(nil, tcase.tc, tcase.v)
			require.NoError(t, err)
			assert.Equal(t, tcase.want, got)
		})
	}
}

func TestAppendValueRoundTrip(t *testing.T) {
	// Non-null parameter encodings are the type code byte followed by
	// the result set encoding of the value, minus the presence byte for
	// integers. Round-trip the variable width and float shapes.
	testcases := []struct {
		tc TypeCode
		v  any
	}{
		{Double, 3.141592653589793},
		{String, "hello, world"},
		{NString, "grüße 𐐀"},
		{VarBinary, []byte{0xde, 0xad, 0xbe, 0xef}},
		{Date, time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{Timestamp, time.Date(1999, time.December, 31, 23, 59, 59, 999000000, time.UTC)},
	}

	for _, tcase := range testcases {
		t.Run(tcase.tc.String(), func(t *testing.T) {
			encoded, err := AppendValue(nil, tcase.tc, tcase.v)
			require.NoError(t, err)
			require.Equal(t, byte(tcase.tc), encoded[0])

			got, pos, err := DecodeValue(tcase.tc, encoded, 1)
			require.NoError(t, err)
			assert.Equal(t, tcase.v, got)
			assert.Equal(t, len(encoded), pos)
		})
	}
}

func TestAppendValueLongString(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 'y'
	}

	got, err := AppendValue(nil, String, string(payload))
	require.NoError(t, err)
	want := append([]byte{0x1d, 0xf6, 0x2c, 0x01}, payload...)
	assert.Equal(t, want, got)
}

func TestConvert(t *testing.T) {
	five := 5
	hello := "hello"

	testcases := []struct {
		name string
		tc   TypeCode
		v    any
		want any
	}{
		{"int to int64", Int, 5, int64(5)},
		{"uint8", TinyInt, uint8(255), int64(255)},
		{"bool true", TinyInt, true, int64(1)},
		{"bool false", TinyInt, false, int64(0)},
		{"int pointer", Int, &five, int64(5)},
		{"nil int pointer", Int, (*int)(nil), nil},
		{"float32", Real, float32(1.5), float64(1.5)},
		{"bytes to string", Varchar, []byte("abc"), "abc"},
		{"string pointer", Varchar, &hello, "hello"},
		{"string to bytes", VarBinary, "abc", []byte("abc")},
		{"nil", Timestamp, nil, nil},
	}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			got, err := Convert(tcase.tc, tcase.v)
			require.NoError(t, err)
			assert.Equal(t, tcase.want, got)
		})
	}
}

func TestConvertTimeForcesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2014, time.August, 25, 2, 0, 0, 0, loc)

	got, err := Convert(Timestamp, in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2014, time.August, 25, 0, 0, 0, 0, time.UTC), got)
}

func TestConvertErrors(t *testing.T) {
	testcases := []struct {
		name string
		tc   TypeCode
		v    any
		err  error
	}{
		{"tinyint overflow", TinyInt, 256, ErrIntegerOutOfRange},
		{"tinyint negative", TinyInt, -1, ErrIntegerOutOfRange},
		{"smallint overflow", SmallInt, 40000, ErrIntegerOutOfRange},
		{"int overflow", Int, int64(math.MaxInt32) + 1, ErrIntegerOutOfRange},
		{"uint64 overflow", BigInt, uint64(math.MaxUint64), ErrIntegerOutOfRange},
		{"real overflow", Real, math.MaxFloat64, ErrFloatOutOfRange},
		{"string to int", Int, "5", ErrUnsupportedConversion},
		{"struct to string", Varchar, struct{}{}, ErrUnsupportedConversion},
		{"int to time", Timestamp, 5, ErrUnsupportedConversion},
	}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			_, err := Convert(tcase.tc, tcase.v)
			require.ErrorIs(t, err, tcase.err)
		})
	}
}
