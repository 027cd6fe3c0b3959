package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Selections holds the user's form values keyed by field key.
// Column fields hold column names, the rest hold a single raw value.
type Selections map[string][]string

// Get returns the first value for key, or "".
func (s Selections) Get(key string) string {
	if v := s[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// All returns every value for key.
func (s Selections) All(key string) []string {
	return s[key]
}

// Has reports whether key has at least one non-blank value.
func (s Selections) Has(key string) bool {
	for _, v := range s[key] {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Float parses the first value of key. NaN and infinities are rejected.
func (s Selections) Float(key string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Get(key)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// maxExactInt is the largest magnitude a float64 holds without losing integers.
const maxExactInt = 1 << 53

// Int parses the first value of key as a whole number. Any form Float
// accepts is allowed ("1e3", "1000.0") as long as it has no fraction.
func (s Selections) Int(key string) (int, bool) {
	v, ok := s.Float(key)
	if !ok || v != math.Trunc(v) || math.Abs(v) > maxExactInt {
		return 0, false
	}
	return int(v), true
}

// Set replaces the values of key, dropping blanks and duplicates.
func (s Selections) Set(key string, values ...string) {
	clean := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		clean = append(clean, v)
	}
	if len(clean) == 0 {
		delete(s, key)
		return
	}
	s[key] = clean
}

// Clone returns a deep copy.
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Equal reports whether both selections hold the same values in the same order.
func (s Selections) Equal(other Selections) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		o, ok := other[k]
		if !ok || len(o) != len(v) {
			return false
		}
		for i := range v {
			if v[i] != o[i] {
				return false
			}
		}
	}
	return true
}

// Keys returns the keys in sorted order.
func (s Selections) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
