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
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DECIMAL travels as 16 little-endian bytes: a 113-bit binary mantissa,
// a 14-bit exponent biased by 6176, and a sign bit. The byte 0x70 in
// the exponent position marks NULL.
const (
	decimalWireSize = 16
	decimalExpBias  = 6176

	decimalNullMarker = 0x70
)

// mantissaBits is the widest mantissa the wire format can carry. Values
// with more significant bits lose low-order digits on encode.
const mantissaBits = 113

var big10 = big.NewInt(10)

// unpackDecimal decodes a 16-byte wire value. ok is false for NULL.
func unpackDecimal(p []byte) (d decimal.Decimal, ok bool) {
	if p[15] == decimalNullMarker {
		return decimal.Decimal{}, false
	}

	exp := int(p[15]&0x7f)<<7 | int(p[14])>>1
	exp -= decimalExpBias

	// Mantissa bytes sit in p[0:14] little endian, with bit 112 as the
	// low bit of p[14].
	var buf [15]byte
	buf[0] = p[14] & 0x01
	for i := 0; i < 14; i++ {
		buf[1+i] = p[13-i]
	}
	mant := new(big.Int).SetBytes(buf[:])
	if p[15]&0x80 != 0 {
		mant.Neg(mant)
	}
	return decimal.NewFromBigInt(mant, int32(exp)), true
}

// appendDecimal appends the 16-byte wire encoding of d to dst,
// truncating low-order digits if the mantissa exceeds 113 bits.
func appendDecimal(dst []byte, d decimal.Decimal) ([]byte, error) {
	mant := d.Coefficient()
	exp := int(d.Exponent())

	neg := mant.Sign() < 0
	mant.Abs(mant)
	for mant.BitLen() > mantissaBits {
		mant.Quo(mant, big10)
		exp++
	}

	biased := exp + decimalExpBias
	if biased < 0 || biased >= 1<<14 {
		return dst, fmt.Errorf("decimal exponent out of range: %d", exp)
	}

	var w [decimalWireSize]byte
	mb := mant.Bytes()
	for i, b := range mb {
		w[len(mb)-1-i] = b
	}
	w[14] |= byte(biased << 1)
	w[15] = byte(biased >> 7)
	if neg {
		w[15] |= 0x80
	}
	return append(dst, w[:]...), nil
}
