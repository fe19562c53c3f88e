package models

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SignalMap holds the phrases extracted for one employee, keyed by award
// index and then by sentence sub-index. Both keys are decimal strings.
// Sub-index gaps are meaningful: only sentences that yielded a signal appear.
type SignalMap map[string]map[string][]string

// Merge copies every award entry of other into m. Entries already present in
// m are replaced and their keys returned.
func (m SignalMap) Merge(other SignalMap) []string {
	var replaced []string
	for idx, subs := range other {
		if _, ok := m[idx]; ok {
			replaced = append(replaced, idx)
		}
		m[idx] = subs
	}
	slices.Sort(replaced)
	return replaced
}

// Phrases flattens the map into a deduplicated, sorted phrase set.
func (m SignalMap) Phrases() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, subs := range m {
		for _, phrases := range subs {
			for _, p := range phrases {
				p = NormalizePhrase(p)
				if p == "" {
					continue
				}
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Count returns the total number of phrase occurrences.
func (m SignalMap) Count() int {
	n := 0
	for _, subs := range m {
		for _, phrases := range subs {
			n += len(phrases)
		}
	}
	return n
}

// NormalizePhrase applies NFKC and collapses whitespace. Case is preserved.
func NormalizePhrase(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// PhraseKey is the comparison key for phrases and cluster names.
func PhraseKey(s string) string {
	return strings.ToLower(NormalizePhrase(s))
}
