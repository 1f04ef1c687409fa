package domain

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// AnimeKey is the canonical path identifying one anime season,
// e.g. /catalogue/show-name/saison1/vostfr
type AnimeKey string

func (k AnimeKey) String() string {
	return string(k)
}

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Normalize canonicalizes a raw anime URL into an AnimeKey.
// It returns false when no identity can be derived from raw.
func Normalize(raw string) (AnimeKey, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	// both branches yield the decoded path, escaped once at the end
	if schemeRe.MatchString(s) {
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		s = u.Path
	} else {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		if p, err := url.PathUnescape(s); err == nil {
			s = p
		}
	}

	s = strings.TrimSpace(strings.TrimRight(s, "/ \t\r\n"))
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}

	return AnimeKey((&url.URL{Path: s}).EscapedPath()), true
}

// MustNormalize is Normalize for literals known to be valid.
func MustNormalize(raw string) AnimeKey {
	k, ok := Normalize(raw)
	if !ok {
		panic("domain: cannot normalize " + raw)
	}
	return k
}

// KeySet is a set of anime keys. Order is irrelevant.
type KeySet map[AnimeKey]struct{}

// NewKeySet normalizes and deduplicates raw values, dropping the ones that
// cannot be normalized.
func NewKeySet(raw ...string) KeySet {
	set := make(KeySet, len(raw))
	for _, r := range raw {
		if k, ok := Normalize(r); ok {
			set[k] = struct{}{}
		}
	}
	return set
}

// KeySetOf builds a set from keys that are already normalized.
func KeySetOf(keys ...AnimeKey) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (s KeySet) Has(k AnimeKey) bool {
	_, ok := s[k]
	return ok
}

// Equal reports whether both sets hold the same keys.
func (s KeySet) Equal(o KeySet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the keys in lexical order, for storage and display.
func (s KeySet) Sorted() []AnimeKey {
	keys := make([]AnimeKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
