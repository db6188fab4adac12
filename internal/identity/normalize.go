package identity

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a name or code for key comparison: NFKC compatibility
// form, lower case, trimmed, inner whitespace collapsed to single spaces.
// Punctuation is kept; development codes such as "ABT-494" depend on it.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// AliasTable maps raw names, development codes and external identifiers
// onto canonical generic names. Build it once with NewAliasTable and treat
// it as read-only.
type AliasTable struct {
	aliases     map[string]string
	identifiers map[string]string
	canonical   map[string]struct{}
}

// NewAliasTable normalises every key and value. aliases maps a raw name or
// alias code to its canonical name; identifiers maps an external
// identifier (e.g. a CAS registry number) to its canonical name.
func NewAliasTable(aliases, identifiers map[string]string) AliasTable {
	t := AliasTable{
		aliases:     make(map[string]string, len(aliases)),
		identifiers: make(map[string]string, len(identifiers)),
		canonical:   make(map[string]struct{}, len(aliases)+len(identifiers)),
	}
	for raw, name := range aliases {
		k, v := Normalize(raw), Normalize(name)
		if k == "" || v == "" {
			continue
		}
		t.aliases[k] = v
		t.canonical[v] = struct{}{}
	}
	for id, name := range identifiers {
		k, v := Normalize(id), Normalize(name)
		if k == "" || v == "" {
			continue
		}
		t.identifiers[k] = v
		t.canonical[v] = struct{}{}
	}
	return t
}

// Canonical resolves a raw name or code. The bool reports whether the name
// is known to the table, either as an alias or as a canonical name itself.
func (t AliasTable) Canonical(raw string) (string, bool) {
	k := Normalize(raw)
	if k == "" {
		return "", false
	}
	if v, ok := t.aliases[k]; ok {
		return v, true
	}
	if _, ok := t.canonical[k]; ok {
		return k, true
	}
	return k, false
}

// Identifier resolves an external identifier to a canonical name.
func (t AliasTable) Identifier(id string) (string, bool) {
	k := Normalize(id)
	if k == "" {
		return "", false
	}
	v, ok := t.identifiers[k]
	return v, ok
}

// Len returns the number of alias and identifier entries.
func (t AliasTable) Len() int {
	return len(t.aliases) + len(t.identifiers)
}
