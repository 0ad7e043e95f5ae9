package config

import (
	"regexp"
	"strings"
)

// GlobToRegex translates a rule/filter pattern to an anchored,
// case-insensitive regexp per §4.2: "*" becomes ".*"; a ".*" already in the
// pattern is kept as the regex ".*"; every other character (including a
// lone ".") is matched verbatim. Shared between pkg/router's rule matching
// and pkg/middleware's tool filter, mirroring the original implementation's
// single crate::config::glob_to_regex used from both call sites.
func GlobToRegex(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' && i+1 < len(runes) && runes[i+1] == '*' {
			b.WriteString(".*")
			i++
			continue
		}
		if r == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
