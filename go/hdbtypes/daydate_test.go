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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToDayDate(t *testing.T) {
	testcases := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  int
	}{
		{"epoch", 1, time.January, 1, 1},
		{"second day", 1, time.January, 2, 2},
		{"j2000", 2000, time.January, 1, 730122},
		{"recent", 2014, time.August, 25, 735472},
		{"last julian day", 1582, time.October, 4, 577737},
		{"first gregorian day", 1582, time.October, 15, 577738},
		{"january", 2014, time.January, 31, 735266},
	}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			assert.Equal(t, tcase.want, ToDayDate(tcase.year, tcase.month, tcase.day))
		})
	}
}

func TestToDayDateSequential(t *testing.T) {
	// Day numbers advance by one per calendar day across month and
	// year boundaries.
	start := time.Date(1999, time.November, 1, 0, 0, 0, 0, time.UTC)
	prev := ToDayDate(start.Date())
	for i := 1; i < 120; i++ {
		d := start.AddDate(0, 0, i)
		got := ToDayDate(d.Date())
		assert.Equal(t, prev+1, got, "date %v", d)
		prev = got
	}
}
