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

package cesu8

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

var (
	// ErrInvalidUTF8 is returned when encoding input that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("cesu8: invalid UTF-8 input")

	// ErrInvalidCESU8 is returned when decoding input that is not valid CESU-8.
	ErrInvalidCESU8 = errors.New("cesu8: invalid CESU-8 input")
)

// NewEncoder returns a stateless transform.Transformer converting UTF-8
// to CESU-8.
func NewEncoder() transform.Transformer { return encoder{} }

// NewDecoder returns a stateless transform.Transformer converting CESU-8
// to UTF-8.
func NewDecoder() transform.Transformer { return decoder{} }

type encoder struct{ transform.NopResetter }

func (encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if c := src[nSrc]; c < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}
		if !utf8.FullRune(src[nSrc:]) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, ErrInvalidUTF8
		}
		r, n := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && n == 1 {
			return nDst, nSrc, ErrInvalidUTF8
		}
		if nDst+RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += EncodeRune(dst[nDst:], r)
		nSrc += n
	}
	return nDst, nSrc, nil
}

type decoder struct{ transform.NopResetter }

func (decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if c := src[nSrc]; c < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}
		if !FullRune(src[nSrc:]) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, ErrInvalidCESU8
		}
		r, n := DecodeRune(src[nSrc:])
		if r == utf8.RuneError && n == 1 {
			return nDst, nSrc, ErrInvalidCESU8
		}
		if nDst+utf8.RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc += n
	}
	return nDst, nSrc, nil
}

// Encode converts a UTF-8 string to CESU-8 wire bytes.
func Encode(s string) ([]byte, error) {
	b, _, err := transform.Bytes(NewEncoder(), []byte(s))
	return b, err
}

// Decode converts CESU-8 wire bytes to a UTF-8 string.
func Decode(p []byte) (string, error) {
	b, _, err := transform.Bytes(NewDecoder(), p)
	return string(b), err
}
