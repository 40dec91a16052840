// Package pep440 implements PEP 440 version identification for Python
// distributions: parsing, canonical formatting, and ordering.
//
// https://peps.python.org/pep-0440/
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PreRelease is the pre-release segment of a version (a1, b2, rc3).
type PreRelease struct {
	Phase  string // "a", "b", or "rc" after normalization
	Number int
}

// Version is a parsed PEP 440 version identifier.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   string
}

// versionPattern accepts the canonical form plus the normalizable alternate
// spellings PEP 440 permits (v prefix, alpha/beta/c/pre/preview and
// post/rev/r aliases, -_. separators, implicit numbers, implicit post).
var versionPattern = regexp.MustCompile(`^v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?:[-_.]?(?P<preL>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<preN>[0-9]+)?)?` +
	`(?:-(?P<postN1>[0-9]+)|[-_.]?(?P<postL>post|rev|r)[-_.]?(?P<postN2>[0-9]+)?)?` +
	`(?:[-_.]?(?P<devL>dev)[-_.]?(?P<devN>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`)

// Parse parses a version string. Case and separator variations are
// normalized during parsing, so String on the result is always canonical.
func Parse(s string) (Version, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	m := versionPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Version{}, fmt.Errorf("pep440: invalid version %q", s)
	}

	group := func(name string) string {
		return m[versionPattern.SubexpIndex(name)]
	}

	var v Version
	v.Epoch = atoiDefault(group("epoch"), 0)
	for _, part := range strings.Split(group("release"), ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("pep440: invalid release segment in %q", s)
		}
		v.Release = append(v.Release, n)
	}

	if phase := group("preL"); phase != "" {
		v.Pre = &PreRelease{
			Phase:  normalizePhase(phase),
			Number: atoiDefault(group("preN"), 0),
		}
	}

	switch {
	case group("postN1") != "":
		n := atoiDefault(group("postN1"), 0)
		v.Post = &n
	case group("postL") != "":
		n := atoiDefault(group("postN2"), 0)
		v.Post = &n
	}

	if group("devL") != "" {
		n := atoiDefault(group("devN"), 0)
		v.Dev = &n
	}

	v.Local = normalizeLocal(group("local"))
	return v, nil
}

// MustParse parses a version string and panics on error. For tests and
// compile-time constants only.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func normalizePhase(phase string) string {
	switch phase {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	default:
		return phase
	}
}

func normalizeLocal(local string) string {
	if local == "" {
		return ""
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			parts[i] = strconv.Itoa(n)
		}
	}
	return strings.Join(parts, ".")
}

// String renders the canonical form of the version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, r := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(r))
	}
	if v.Pre != nil {
		b.WriteString(v.Pre.Phase)
		b.WriteString(strconv.Itoa(v.Pre.Number))
	}
	if v.Post != nil {
		b.WriteString(".post")
		b.WriteString(strconv.Itoa(*v.Post))
	}
	if v.Dev != nil {
		b.WriteString(".dev")
		b.WriteString(strconv.Itoa(*v.Dev))
	}
	if v.Local != "" {
		b.WriteByte('+')
		b.WriteString(v.Local)
	}
	return b.String()
}

// IsPrerelease reports whether the version has a pre-release or dev segment.
func (v Version) IsPrerelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// Compare returns -1, 0, or 1 ordering v against other per PEP 440.
//
// Ordering within one release number: dev < a < b < rc < final < post,
// with a dev segment on any of those sorting immediately before it and a
// local segment sorting after its public version.
func (v Version) Compare(other Version) int {
	if c := cmpInt(v.Epoch, other.Epoch); c != 0 {
		return c
	}
	if c := cmpRelease(v.Release, other.Release); c != 0 {
		return c
	}
	if c := cmpPre(v, other); c != 0 {
		return c
	}
	if c := cmpOptional(v.Post, other.Post, false); c != 0 {
		return c
	}
	if c := cmpOptional(v.Dev, other.Dev, true); c != 0 {
		return c
	}
	return cmpLocal(v.Local, other.Local)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpRelease(a, b []int) int {
	n := max(len(a), len(b))
	for i := range n {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if c := cmpInt(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// preClass buckets the pre-release slot: a bare dev release sorts before
// every pre-release, and versions without either sort after all of them.
func preClass(v Version) int {
	switch {
	case v.Pre != nil:
		return 0
	case v.Post == nil && v.Dev != nil:
		return -1
	default:
		return 1
	}
}

func phaseRank(phase string) int {
	switch phase {
	case "a":
		return 0
	case "b":
		return 1
	default: // "rc"
		return 2
	}
}

func cmpPre(a, b Version) int {
	if c := cmpInt(preClass(a), preClass(b)); c != 0 {
		return c
	}
	if a.Pre == nil || b.Pre == nil {
		return 0
	}
	if c := cmpInt(phaseRank(a.Pre.Phase), phaseRank(b.Pre.Phase)); c != 0 {
		return c
	}
	return cmpInt(a.Pre.Number, b.Pre.Number)
}

// cmpOptional orders an optional numeric segment. A missing post segment
// sorts before any present one; a missing dev segment sorts after.
func cmpOptional(a, b *int, missingLast bool) int {
	missing := -1
	if missingLast {
		missing = 1
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return missing
	case b == nil:
		return -missing
	default:
		return cmpInt(*a, *b)
	}
}

func cmpLocal(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		switch {
		case aerr == nil && berr == nil:
			if c := cmpInt(an, bn); c != 0 {
				return c
			}
		case aerr == nil:
			// numeric segments sort after alphanumeric ones
			return 1
		case berr == nil:
			return -1
		default:
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
	}
	return cmpInt(len(as), len(bs))
}
