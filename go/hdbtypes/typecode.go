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

// Package hdbtypes implements the typed-value codec of the HANA SQL
// command network protocol: the numeric type codes carried in result
// set and parameter metadata, the per-type wire encodings of row cells
// and bind parameters, and the SQL literal escaping used by the
// client-side parameter substitution path.
package hdbtypes

import "fmt"

// TypeCode identifies a SQL type on the wire. Codes are 0..127; the top
// bit of a type code byte marks a NULL bind parameter.
type TypeCode byte

// Type codes of the SQL command network protocol.
const (
	Null       TypeCode = 0
	TinyInt    TypeCode = 1
	SmallInt   TypeCode = 2
	Int        TypeCode = 3
	BigInt     TypeCode = 4
	Decimal    TypeCode = 5
	Real       TypeCode = 6
	Double     TypeCode = 7
	Char       TypeCode = 8
	Varchar    TypeCode = 9
	NChar      TypeCode = 10
	NVarchar   TypeCode = 11
	Binary     TypeCode = 12
	VarBinary  TypeCode = 13
	Date       TypeCode = 14
	Time       TypeCode = 15
	Timestamp  TypeCode = 16
	Clob       TypeCode = 25
	NClob      TypeCode = 26
	Blob       TypeCode = 27
	String     TypeCode = 29
	NString    TypeCode = 30
	BString    TypeCode = 33
	LongDate   TypeCode = 61
	SecondDate TypeCode = 62
	DayDate    TypeCode = 63
	SecondTime TypeCode = 64
)

var typeCodeNames = map[TypeCode]string{
	Null:       "NULL",
	TinyInt:    "TINYINT",
	SmallInt:   "SMALLINT",
	Int:        "INTEGER",
	BigInt:     "BIGINT",
	Decimal:    "DECIMAL",
	Real:       "REAL",
	Double:     "DOUBLE",
	Char:       "CHAR",
	Varchar:    "VARCHAR",
	NChar:      "NCHAR",
	NVarchar:   "NVARCHAR",
	Binary:     "BINARY",
	VarBinary:  "VARBINARY",
	Date:       "DATE",
	Time:       "TIME",
	Timestamp:  "TIMESTAMP",
	Clob:       "CLOB",
	NClob:      "NCLOB",
	Blob:       "BLOB",
	String:     "STRING",
	NString:    "NSTRING",
	BString:    "BSTRING",
	LongDate:   "LONGDATE",
	SecondDate: "SECONDDATE",
	DayDate:    "DAYDATE",
	SecondTime: "SECONDTIME",
}

func (tc TypeCode) String() string {
	if name, ok := typeCodeNames[tc]; ok {
		return name
	}
	return fmt.Sprintf("TypeCode(%d)", byte(tc))
}

// IsLob reports whether tc denotes a large object type.
func (tc TypeCode) IsLob() bool {
	return tc == Clob || tc == NClob || tc == Blob
}

// IsCharBased reports whether tc carries text transcoded through CESU-8
// on the wire.
func (tc TypeCode) IsCharBased() bool {
	switch tc {
	case Char, Varchar, NChar, NVarchar, String, NString, Clob, NClob:
		return true
	}
	return false
}

// IsVariableLength reports whether tc uses the length-indicator wire
// encoding.
func (tc TypeCode) IsVariableLength() bool {
	switch tc {
	case Char, Varchar, NChar, NVarchar, Binary, VarBinary, String, NString, BString:
		return true
	}
	return false
}
