package dataprocessing

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes a free-text label for comparison: accents are stripped,
// case is lowered and runs of whitespace collapse to one space.
// "Siefore  Básica Inicial" and "siefore basica inicial" fold alike.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// AliasTable resolves label spellings to canonical names. Canonical names
// resolve to themselves; anything else must be listed as an alias.
type AliasTable struct {
	byFolded map[string]string
}

// NewAliasTable builds a table from the canonical names and an
// alias -> canonical map.
func NewAliasTable(canonical []string, aliases map[string]string) *AliasTable {
	t := &AliasTable{byFolded: make(map[string]string, len(canonical)+len(aliases))}
	for _, name := range canonical {
		t.byFolded[Fold(name)] = name
	}
	for alias, name := range aliases {
		t.byFolded[Fold(alias)] = name
	}
	return t
}

// Resolve returns the canonical name for label.
func (t *AliasTable) Resolve(label string) (string, bool) {
	name, ok := t.byFolded[Fold(label)]
	return name, ok
}

// Canonical lists the distinct canonical names, sorted.
func (t *AliasTable) Canonical() []string {
	seen := make(map[string]struct{}, len(t.byFolded))
	out := make([]string, 0, len(t.byFolded))
	for _, name := range t.byFolded {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
