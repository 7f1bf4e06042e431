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

// Package cesu8 implements encoding and decoding of CESU-8, the wire
// text encoding of the HANA SQL command network protocol. CESU-8 is
// identical to UTF-8 for code points below U+10000; supplementary
// characters are encoded as a UTF-16 surrogate pair, each surrogate
// written as a separate 3-byte sequence, for 6 bytes total.
package cesu8

import (
	"unicode/utf16"
	"unicode/utf8"
)

// CESUMax is the maximum number of bytes a single rune occupies in CESU-8.
const CESUMax = 6

const (
	surr1    = 0xd800
	surr2    = 0xdc00
	surr3    = 0xe000
	surrSelf = 0x10000
)

// RuneLen returns the number of bytes required to encode the rune in
// CESU-8. It returns -1 if the rune is not a valid value to encode.
func RuneLen(r rune) int {
	switch {
	case r < 0:
		return -1
	case r < surrSelf:
		return utf8.RuneLen(r)
	case r <= utf8.MaxRune:
		return CESUMax
	default:
		return -1
	}
}

// Size returns the number of bytes needed to encode s in CESU-8,
// and -1 if s contains a rune that cannot be encoded.
func Size(s string) int {
	n := 0
	for _, r := range s {
		l := RuneLen(r)
		if l == -1 {
			return -1
		}
		n += l
	}
	return n
}

// EncodeRune writes the CESU-8 encoding of the rune into p, which must
// be large enough (CESUMax bytes is always sufficient), and returns the
// number of bytes written.
func EncodeRune(p []byte, r rune) int {
	if r < surrSelf {
		return utf8.EncodeRune(p, r)
	}
	high, low := utf16.EncodeRune(r)
	n := encodeSurrogate(p, high)
	n += encodeSurrogate(p[n:], low)
	return n
}

// DecodeRune unpacks the first CESU-8 encoding in p and returns the
// rune and its width in bytes. A surrogate pair is combined into the
// supplementary code point it denotes. Invalid encodings yield
// (utf8.RuneError, 1), consuming one byte, like utf8.DecodeRune.
func DecodeRune(p []byte) (rune, int) {
	if high, ok := decodeSurrogate(p); ok {
		if high < surr2 {
			if low, ok := decodeSurrogate(p[3:]); ok && surr2 <= low && low < surr3 {
				return utf16.DecodeRune(high, low), CESUMax
			}
		}
		// Unpaired surrogate.
		return utf8.RuneError, 1
	}
	return utf8.DecodeRune(p)
}

// FullRune reports whether p begins with a full CESU-8 encoding of a
// rune. A high surrogate is not full until the 6 bytes of the pair are
// available; at end of input DecodeRune rejects it as an unpaired
// surrogate.
func FullRune(p []byte) bool {
	if high, ok := decodeSurrogate(p); ok && high < surr2 {
		return len(p) >= CESUMax
	}
	return utf8.FullRune(p)
}

// encodeSurrogate writes the 3-byte sequence of a UTF-16 surrogate.
func encodeSurrogate(p []byte, u rune) int {
	p[0] = 0xe0 | byte(u>>12)
	p[1] = 0x80 | byte(u>>6)&0x3f
	p[2] = 0x80 | byte(u)&0x3f
	return 3
}

// decodeSurrogate reads a 3-byte sequence from p and reports whether it
// denotes a UTF-16 surrogate code unit.
func decodeSurrogate(p []byte) (rune, bool) {
	if len(p) < 3 || p[0] != 0xed || p[1]&0xc0 != 0x80 || p[2]&0xc0 != 0x80 {
		return 0, false
	}
	u := rune(p[0]&0x0f)<<12 | rune(p[1]&0x3f)<<6 | rune(p[2]&0x3f)
	if u < surr1 || u >= surr3 {
		return 0, false
	}
	return u, true
}
