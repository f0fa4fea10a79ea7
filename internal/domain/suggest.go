package domain

import (
	"github.com/sahilm/fuzzy"
)

const maxSuggestions = 3

// Suggest returns up to three candidates that fuzzily match name, best first.
func Suggest(name string, candidates []string) []string {
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		// Fall back to matching the other way round so "CounterV2" still suggests "Counter"
		for _, c := range candidates {
			if len(fuzzy.Find(c, []string{name})) > 0 {
				matches = append(matches, fuzzy.Match{Str: c})
			}
		}
	}
	var out []string
	for _, m := range matches {
		if m.Str == name {
			continue
		}
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
