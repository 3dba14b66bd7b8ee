package manifest

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeID returns the canonical form of a package identifier:
// surrounding whitespace trimmed and NFC-normalized.
func NormalizeID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// NormalizeVersion returns the canonical form of a version string.
// An empty input stays empty (no version).
func NormalizeVersion(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}

// CompareVersions orders dot-separated version strings.
//
// Parts are compared numerically when both parse as unsigned integers and
// lexically (case-insensitive) otherwise. Missing trailing parts compare as
// zero, so "1.2" == "1.2.0". Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	n := len(ap)
	if len(bp) > n {
		n = len(bp)
	}

	for i := 0; i < n; i++ {
		x, y := "0", "0"
		if i < len(ap) && ap[i] != "" {
			x = ap[i]
		}
		if i < len(bp) && bp[i] != "" {
			y = bp[i]
		}
		if c := comparePart(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func comparePart(x, y string) int {
	xi, xerr := strconv.ParseUint(x, 10, 64)
	yi, yerr := strconv.ParseUint(y, 10, 64)
	if xerr == nil && yerr == nil {
		switch {
		case xi < yi:
			return -1
		case xi > yi:
			return 1
		}
		return 0
	}
	// Numeric parts sort before textual ones.
	if xerr == nil {
		return -1
	}
	if yerr == nil {
		return 1
	}
	return strings.Compare(strings.ToLower(x), strings.ToLower(y))
}
