// Package pathutil matches request paths against skip lists.
package pathutil

import "strings"

// NewPathMatcher returns a predicate that reports whether a path is listed
// in paths or starts with one of prefixes.
func NewPathMatcher(paths, prefixes []string) func(string) bool {
	exact := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		exact[p] = struct{}{}
	}
	prefixes = append([]string(nil), prefixes...)

	return func(path string) bool {
		if _, ok := exact[path]; ok {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}
}
