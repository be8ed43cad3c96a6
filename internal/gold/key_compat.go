// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

package gold

import (
	"regexp"
	"strconv"
)

// camelotPattern matches Camelot wheel notation, e.g. "8A", "12B".
var camelotPattern = regexp.MustCompile(`^(\d{1,2})([AB])$`)

// parseCamelot parses a Camelot-notation key string into its wheel number
// (1-12) and mode letter ('A' for minor, 'B' for major).
func parseCamelot(key string) (number int, letter byte, ok bool) {
	m := camelotPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 12 {
		return 0, 0, false
	}
	return n, m[2][0], true
}

// keyCompatible reports whether two Camelot keys are harmonically
// compatible under the standard wheel rule: identical key, same number
// with the other mode (relative major/minor), or an adjacent number with
// the same mode (+/-1, wrapping 12 <-> 1). Returns ok=false when either
// key fails to parse, since compatibility is then undefined rather than
// false.
func keyCompatible(a, b string) (compatible, ok bool) {
	na, la, oka := parseCamelot(a)
	nb, lb, okb := parseCamelot(b)
	if !oka || !okb {
		return false, false
	}

	if na == nb && la == lb {
		return true, true
	}
	if na == nb && la != lb {
		return true, true // relative major/minor
	}
	if la == lb {
		diff := na - nb
		if diff == 1 || diff == -1 || diff == 11 || diff == -11 {
			return true, true // adjacent on the wheel
		}
	}
	return false, true
}
