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

import "time"

// turnOfEras is the Julian day number offset that places day 1 on
// 0001-01-01.
const turnOfEras = 1721424

// ToDayDate converts a civil date to the DAYDATE day number, where
// 0001-01-01 is day 1. Dates on or after 1582-10-15 are taken as
// Gregorian, earlier dates as Julian.
func ToDayDate(year int, month time.Month, day int) int {
	m := int(month)
	if m < 3 {
		year--
		m += 12
	}

	c := 0
	if year > 1582 ||
		(year == 1582 && m > 10) ||
		(year == 1582 && m == 10 && day >= 15) {
		a := year / 100
		c = 2 - a + a/4
	}

	e := int(365.25 * float64(year+4716))
	f := int(30.6001 * float64(m+1))
	z := c + day + e + f - 1524
	return z + 1 - turnOfEras
}
