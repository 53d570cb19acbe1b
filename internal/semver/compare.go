// Package semver orders the dotted version strings used by both the
// application and the model registry. It is deliberately forgiving: release
// tags arrive from remote metadata and registry files that the updater does
// not control, so comparison degrades instead of erroring.
package semver

import (
	"strconv"
	"strings"
)

// Result is the outcome of comparing a candidate version against a baseline.
type Result int

const (
	// Older means the first operand is older than the second.
	Older Result = -1
	// Same means the operands are equal (or not comparable).
	Same Result = 0
	// Newer means the first operand is newer than the second.
	Newer Result = 1
)

func (r Result) String() string {
	switch r {
	case Older:
		return "older"
	case Newer:
		return "newer"
	default:
		return "same"
	}
}

// Compare orders two dotted version strings. A leading "v" marker is
// stripped, the shorter sequence is zero-padded, and segments compare
// numerically when both sides parse as integers, lexicographically
// otherwise. The first differing segment decides. Inputs that yield no
// segments at all compare as Same so a malformed tag can never force an
// update or abort a check.
func Compare(a, b string) Result {
	as := segments(a)
	bs := segments(b)

	if len(as) == 0 && len(bs) == 0 {
		return Same
	}

	for len(as) < len(bs) {
		as = append(as, "0")
	}
	for len(bs) < len(as) {
		bs = append(bs, "0")
	}

	for i := range as {
		na, errA := strconv.Atoi(as[i])
		nb, errB := strconv.Atoi(bs[i])

		if errA == nil && errB == nil {
			if na != nb {
				if na > nb {
					return Newer
				}
				return Older
			}
			continue
		}

		// At least one side is non-numeric: fall back to string ordering.
		if as[i] != bs[i] {
			if as[i] > bs[i] {
				return Newer
			}
			return Older
		}
	}

	return Same
}

// IsNewer reports whether remote is strictly newer than local.
func IsNewer(remote, local string) bool {
	return Compare(remote, local) == Newer
}

func segments(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	v = strings.TrimPrefix(v, "V")
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ".")
	out := parts[:0]
	for _, p := range parts {
		if p == "" {
			p = "0"
		}
		out = append(out, p)
	}
	return out
}
