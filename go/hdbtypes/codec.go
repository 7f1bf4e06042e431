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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hanadb/hana/go/cesu8"
)

// Variable-length values start with a one byte length indicator.
// Values up to 245 bytes carry the length directly; longer values
// escape to a two or four byte length field.
const (
	lenIndSmall  = 245
	lenIndMedium = 246
	lenIndBig    = 247
	lenIndNull   = 255
)

var (
	// ErrUnknownTypeCode is returned when a value arrives with a type
	// code this codec does not implement.
	ErrUnknownTypeCode = errors.New("unknown type code")

	// ErrUnsupportedConversion is returned when a bind value's Go type
	// has no conversion to the target SQL type.
	ErrUnsupportedConversion = errors.New("unsupported value conversion")

	// ErrTruncatedPayload is returned when a value extends past the end
	// of its row payload.
	ErrTruncatedPayload = errors.New("truncated value payload")

	// ErrUnknownLengthIndicator is returned for a length indicator byte
	// outside the defined ranges.
	ErrUnknownLengthIndicator = errors.New("unknown length indicator")

	// ErrIntegerOutOfRange is returned when an integer bind value does
	// not fit the target column type.
	ErrIntegerOutOfRange = errors.New("integer out of range")

	// ErrFloatOutOfRange is returned when a float bind value does not
	// fit the target column type.
	ErrFloatOutOfRange = errors.New("float out of range")
)

// DecodeValue reads one result row cell of type code tc starting at pos
// and returns the decoded value and the position of the first byte after
// it. SQL NULL decodes as nil. Integer cells decode as int64, Real and
// Double as float64, Decimal as decimal.Decimal, character cells as
// string, binary cells as []byte, and the date/time family as time.Time
// in UTC.
func DecodeValue(tc TypeCode, data []byte, pos int) (any, int, error) {
	switch tc {
	case TinyInt:
		return decodeInt(data, pos, 1)
	case SmallInt:
		return decodeInt(data, pos, 2)
	case Int:
		return decodeInt(data, pos, 4)
	case BigInt:
		return decodeInt(data, pos, 8)
	case Real:
		return decodeReal(data, pos)
	case Double:
		return decodeDouble(data, pos)
	case Decimal:
		return decodeDecimal(data, pos)
	case Char, Varchar, NChar, NVarchar, String, NString:
		return decodeChars(data, pos)
	case Binary, VarBinary, BString:
		return decodeBytes(data, pos)
	case Date:
		return decodeDate(data, pos)
	case Time:
		return decodeTime(data, pos)
	case Timestamp:
		return decodeTimestamp(data, pos)
	default:
		return nil, pos, fmt.Errorf("%w: %s", ErrUnknownTypeCode, tc)
	}
}

// decodeInt reads a presence byte followed by a little-endian integer of
// the given width. Anything but 0x01 in the presence byte means NULL.
func decodeInt(data []byte, pos, width int) (any, int, error) {
	if pos >= len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	present := data[pos]
	pos++
	if present != 0x01 {
		return nil, pos, nil
	}
	if pos+width > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	var v int64
	switch width {
	case 1:
		// TINYINT is unsigned on the wire.
		v = int64(data[pos])
	case 2:
		v = int64(int16(binary.LittleEndian.Uint16(data[pos:])))
	case 4:
		v = int64(int32(binary.LittleEndian.Uint32(data[pos:])))
	case 8:
		v = int64(binary.LittleEndian.Uint64(data[pos:]))
	}
	return v, pos + width, nil
}

func decodeReal(data []byte, pos int) (any, int, error) {
	if pos+4 > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	u := binary.LittleEndian.Uint32(data[pos:])
	if u == math.MaxUint32 {
		return nil, pos + 4, nil
	}
	return float64(math.Float32frombits(u)), pos + 4, nil
}

func decodeDouble(data []byte, pos int) (any, int, error) {
	if pos+8 > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	u := binary.LittleEndian.Uint64(data[pos:])
	if u == math.MaxUint64 {
		return nil, pos + 8, nil
	}
	return math.Float64frombits(u), pos + 8, nil
}

func decodeDecimal(data []byte, pos int) (any, int, error) {
	if pos+decimalWireSize > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	d, ok := unpackDecimal(data[pos : pos+decimalWireSize])
	pos += decimalWireSize
	if !ok {
		return nil, pos, nil
	}
	return d, pos, nil
}

func decodeChars(data []byte, pos int) (any, int, error) {
	raw, pos, err := decodeVarBytes(data, pos)
	if err != nil || raw == nil {
		return nil, pos, err
	}
	s, err := cesu8.Decode(raw)
	if err != nil {
		return nil, pos, err
	}
	return s, pos, nil
}

func decodeBytes(data []byte, pos int) (any, int, error) {
	raw, pos, err := decodeVarBytes(data, pos)
	if err != nil || raw == nil {
		return nil, pos, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, pos, nil
}

// decodeVarBytes reads a length indicator and the announced payload. It
// returns a nil slice for the NULL indicator. The returned slice aliases
// data and must be copied if retained.
func decodeVarBytes(data []byte, pos int) ([]byte, int, error) {
	length, pos, null, err := decodeLength(data, pos)
	if err != nil || null {
		return nil, pos, err
	}
	if pos+length > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	return data[pos : pos+length], pos + length, nil
}

func decodeLength(data []byte, pos int) (length, newPos int, null bool, err error) {
	if pos >= len(data) {
		return 0, pos, false, ErrTruncatedPayload
	}
	ind := data[pos]
	pos++
	switch {
	case ind <= lenIndSmall:
		return int(ind), pos, false, nil
	case ind == lenIndMedium:
		if pos+2 > len(data) {
			return 0, pos, false, ErrTruncatedPayload
		}
		return int(int16(binary.LittleEndian.Uint16(data[pos:]))), pos + 2, false, nil
	case ind == lenIndBig:
		if pos+4 > len(data) {
			return 0, pos, false, ErrTruncatedPayload
		}
		return int(int32(binary.LittleEndian.Uint32(data[pos:]))), pos + 4, false, nil
	case ind == lenIndNull:
		return 0, pos, true, nil
	default:
		return 0, pos, false, fmt.Errorf("%w: %d", ErrUnknownLengthIndicator, ind)
	}
}

func decodeDate(data []byte, pos int) (any, int, error) {
	if pos+4 > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	year, month, day, ok := dateFields(data[pos:])
	pos += 4
	if !ok {
		return nil, pos, nil
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), pos, nil
}

func decodeTime(data []byte, pos int) (any, int, error) {
	if pos+4 > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	hour, min, sec, nsec, ok := timeFields(data[pos:])
	pos += 4
	if !ok {
		return nil, pos, nil
	}
	return time.Date(1, time.January, 1, hour, min, sec, nsec, time.UTC), pos, nil
}

func decodeTimestamp(data []byte, pos int) (any, int, error) {
	if pos+8 > len(data) {
		return nil, pos, ErrTruncatedPayload
	}
	year, month, day, dateOK := dateFields(data[pos:])
	hour, min, sec, nsec, timeOK := timeFields(data[pos+4:])
	pos += 8
	if !dateOK || !timeOK {
		return nil, pos, nil
	}
	return time.Date(year, month, day, hour, min, sec, nsec, time.UTC), pos, nil
}

// dateFields unpacks the 4-byte date encoding: year with the high bit as
// presence flag, zero-based month, day.
func dateFields(p []byte) (year int, month time.Month, day int, ok bool) {
	if p[1]&0x80 == 0 {
		return 0, 0, 0, false
	}
	year = int(p[0]) | int(p[1]&0x3f)<<8
	month = time.Month(p[2] + 1)
	day = int(p[3])
	return year, month, day, true
}

// timeFields unpacks the 4-byte time encoding: hour with the high bit as
// presence flag, minute, milliseconds of the minute.
func timeFields(p []byte) (hour, min, sec, nsec int, ok bool) {
	if p[0]&0x80 == 0 {
		return 0, 0, 0, 0, false
	}
	hour = int(p[0] & 0x7f)
	min = int(p[1])
	millis := int(binary.LittleEndian.Uint16(p[2:]))
	return hour, min, millis / 1000, (millis % 1000) * 1000000, true
}

// AppendValue appends the self-describing bind-parameter encoding of v
// to dst: the type code byte followed by the value bytes. nil appends
// the NULL encoding of the type: a plain 0x00 byte for fixed-width
// types, the type code with its top bit set for length-prefixed types.
func AppendValue(dst []byte, tc TypeCode, v any) ([]byte, error) {
	if v == nil {
		return appendNull(dst, tc), nil
	}
	v, err := Convert(tc, v)
	if err != nil {
		return dst, err
	}
	if v == nil {
		return appendNull(dst, tc), nil
	}

	switch tc {
	case TinyInt:
		return append(dst, byte(tc), byte(v.(int64))), nil
	case SmallInt:
		dst = append(dst, byte(tc))
		return binary.LittleEndian.AppendUint16(dst, uint16(v.(int64))), nil
	case Int:
		dst = append(dst, byte(tc))
		return binary.LittleEndian.AppendUint32(dst, uint32(v.(int64))), nil
	case BigInt:
		dst = append(dst, byte(tc))
		return binary.LittleEndian.AppendUint64(dst, uint64(v.(int64))), nil
	case Real:
		dst = append(dst, byte(tc))
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.(float64)))), nil
	case Double:
		dst = append(dst, byte(tc))
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.(float64))), nil
	case Decimal:
		dst = append(dst, byte(tc))
		return appendDecimal(dst, v.(decimal.Decimal))
	case Char, Varchar, NChar, NVarchar, String, NString:
		encoded, err := cesu8.Encode(v.(string))
		if err != nil {
			return dst, err
		}
		dst = append(dst, byte(tc))
		return appendVarBytes(dst, encoded), nil
	case Binary, VarBinary, BString:
		dst = append(dst, byte(tc))
		return appendVarBytes(dst, v.([]byte)), nil
	case Date:
		dst = append(dst, byte(tc))
		return appendDateFields(dst, v.(time.Time)), nil
	case Time:
		dst = append(dst, byte(tc))
		return appendTimeFields(dst, v.(time.Time)), nil
	case Timestamp:
		dst = append(dst, byte(tc))
		dst = appendDateFields(dst, v.(time.Time))
		return appendTimeFields(dst, v.(time.Time)), nil
	default:
		return dst, fmt.Errorf("%w: %s", ErrUnknownTypeCode, tc)
	}
}

func appendNull(dst []byte, tc TypeCode) []byte {
	if tc.IsVariableLength() || tc.IsLob() {
		return append(dst, byte(tc)|0x80)
	}
	return append(dst, 0x00)
}

// AppendVarBytes appends a length indicator followed by p.
func appendVarBytes(dst, p []byte) []byte {
	switch length := len(p); {
	case length <= lenIndSmall:
		dst = append(dst, byte(length))
	case length <= math.MaxInt16:
		dst = append(dst, lenIndMedium)
		dst = binary.LittleEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, lenIndBig)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(length))
	}
	return append(dst, p...)
}

func appendDateFields(dst []byte, t time.Time) []byte {
	year, month, day := t.Date()
	dst = binary.LittleEndian.AppendUint16(dst, uint16(year)|0x8000)
	return append(dst, byte(month-1), byte(day))
}

func appendTimeFields(dst []byte, t time.Time) []byte {
	millis := t.Second()*1000 + t.Nanosecond()/1000000
	dst = append(dst, byte(t.Hour())|0x80, byte(t.Minute()))
	return binary.LittleEndian.AppendUint16(dst, uint16(millis))
}

// Convert normalizes a Go value for encoding with type code tc: integers
// of any width to a range-checked int64, floats to float64, text to
// string, binary to []byte. Pointers are followed; a nil pointer
// converts to nil.
func Convert(tc TypeCode, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch tc {
	case TinyInt:
		return convertInteger(tc, v, 0, math.MaxUint8)
	case SmallInt:
		return convertInteger(tc, v, math.MinInt16, math.MaxInt16)
	case Int:
		return convertInteger(tc, v, math.MinInt32, math.MaxInt32)
	case BigInt:
		return convertInteger(tc, v, math.MinInt64, math.MaxInt64)
	case Real:
		return convertFloat(tc, v, math.MaxFloat32)
	case Double:
		return convertFloat(tc, v, math.MaxFloat64)
	case Decimal:
		return convertDecimal(tc, v)
	case Char, Varchar, NChar, NVarchar, String, NString, Clob, NClob:
		return convertChars(tc, v)
	case Binary, VarBinary, BString, Blob:
		return convertBytes(tc, v)
	case Date, Time, Timestamp:
		return convertTime(tc, v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTypeCode, tc)
	}
}

func convertInteger(tc TypeCode, v any, min, max int64) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i64 := rv.Int()
		if i64 > max || i64 < min {
			return nil, ErrIntegerOutOfRange
		}
		return i64, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u64 := rv.Uint()
		if u64 > uint64(max) {
			return nil, ErrIntegerOutOfRange
		}
		return int64(u64), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return convertInteger(tc, rv.Elem().Interface(), min, max)
	}
	return nil, conversionError(tc, v)
}

func convertFloat(tc TypeCode, v any, max float64) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f64 := rv.Float()
		if math.Abs(f64) > max {
			return nil, ErrFloatOutOfRange
		}
		return f64, nil
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		return convertFloat(tc, rv.Elem().Interface(), max)
	}
	return nil, conversionError(tc, v)
}

func convertDecimal(tc TypeCode, v any) (any, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, conversionError(tc, v)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	return nil, conversionError(tc, v)
}

func convertChars(tc TypeCode, v any) (any, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	return nil, conversionError(tc, v)
}

func convertBytes(tc TypeCode, v any) (any, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, conversionError(tc, v)
}

func convertTime(tc TypeCode, v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.UTC(), nil
	}
	return nil, conversionError(tc, v)
}

func conversionError(tc TypeCode, v any) error {
	return fmt.Errorf("%w: %T to %s", ErrUnsupportedConversion, v, tc)
}
