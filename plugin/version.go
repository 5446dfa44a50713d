package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted version number of up to four numeric components.
// Missing trailing components are treated as zero.
type Version struct {
	Major, Minor, Micro, Patch uint32
}

// ParseVersion parses a dotted version string with 1-4 numeric components.
func ParseVersion(s string) (Version, error) {
	var v Version
	if s == "" {
		return v, fmt.Errorf("plugin: empty version string")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return v, fmt.Errorf("plugin: version %q has more than 4 components", s)
	}

	dst := []*uint32{&v.Major, &v.Minor, &v.Micro, &v.Patch}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("plugin: invalid version component %q in %q: %w", p, s, err)
		}
		*dst[i] = uint32(n)
	}
	return v, nil
}

// String renders the version in dotted form, trimming trailing zero
// components down to at least one.
func (v Version) String() string {
	c := [4]uint32{v.Major, v.Minor, v.Micro, v.Patch}
	n := 4
	for n > 1 && c[n-1] == 0 {
		n--
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = strconv.FormatUint(uint64(c[i]), 10)
	}
	return strings.Join(parts, ".")
}

// component returns the i-th component (0-indexed) of the version.
func (v Version) component(i int) uint32 {
	switch i {
	case 0:
		return v.Major
	case 1:
		return v.Minor
	case 2:
		return v.Micro
	case 3:
		return v.Patch
	default:
		return 0
	}
}

// cmp compares the first n components of a and b. It returns a negative
// number if a<b, zero if equal, and a positive number if a>b, over the
// first n components only.
func cmp(a, b Version, n int) int {
	for i := 0; i < n; i++ {
		ac, bc := a.component(i), b.component(i)
		switch {
		case ac < bc:
			return -1
		case ac > bc:
			return 1
		}
	}
	return 0
}

// MatchRule is the version compatibility rule carried by an Import.
type MatchRule int

const (
	// MatchNone accepts any actual version, including an absent one.
	MatchNone MatchRule = iota
	// MatchPerfect requires all four components to match exactly.
	MatchPerfect
	// MatchEquivalent requires the first two components to match exactly
	// and the full four-component version to be >= the required one.
	MatchEquivalent
	// MatchCompatible requires the first component to match exactly and
	// the full four-component version to be >= the required one.
	MatchCompatible
	// MatchGreaterOrEqual requires the full four-component version to be
	// >= the required one.
	MatchGreaterOrEqual
)

func (r MatchRule) String() string {
	switch r {
	case MatchNone:
		return "none"
	case MatchPerfect:
		return "perfect"
	case MatchEquivalent:
		return "equivalent"
	case MatchCompatible:
		return "compatible"
	case MatchGreaterOrEqual:
		return "greater-or-equal"
	default:
		return "unknown"
	}
}

// CompareVersions compares a and b over all four components: negative if
// a<b, zero if equal, positive if a>b. Used by directory-scan upgrade
// logic, which needs a strict ordering rather than a match predicate.
func CompareVersions(a, b Version) int {
	return cmp(a, b, 4)
}

// VersionMatches reports whether actual satisfies required under rule.
// A nil required version always matches. A nil actual version is treated
// as the zero version for every rule but MatchNone, which never fails.
func VersionMatches(actual, required *Version, rule MatchRule) bool {
	if rule == MatchNone || required == nil {
		return true
	}

	var a Version
	if actual != nil {
		a = *actual
	}
	r := *required

	switch rule {
	case MatchPerfect:
		return cmp(a, r, 4) == 0
	case MatchEquivalent:
		return cmp(a, r, 2) == 0 && cmp(a, r, 4) >= 0
	case MatchCompatible:
		return cmp(a, r, 1) == 0 && cmp(a, r, 4) >= 0
	case MatchGreaterOrEqual:
		return cmp(a, r, 4) >= 0
	default:
		return false
	}
}
