package httpscenario

import (
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

// tokenExtractor pulls the session token out of a login response, either by
// JSON path or by regular expression. The zero value extracts nothing.
type tokenExtractor struct {
	path  string
	regex *regexp.Regexp
}

func newTokenExtractor(path, pattern string) (tokenExtractor, error) {
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return tokenExtractor{}, fmt.Errorf("invalid token_regex %q: %w", pattern, err)
		}
		return tokenExtractor{regex: re}, nil
	}
	return tokenExtractor{path: normalizePath(path)}, nil
}

func (e tokenExtractor) enabled() bool {
	return e.path != "" || e.regex != nil
}

func (e tokenExtractor) String() string {
	if e.regex != nil {
		return e.regex.String()
	}
	return e.path
}

// extract returns the token and whether one was found. A regex with a
// capture group yields the first group, otherwise the full match.
func (e tokenExtractor) extract(body []byte) (string, bool) {
	if e.regex != nil {
		match := e.regex.FindSubmatch(body)
		if match == nil {
			return "", false
		}
		if len(match) > 1 {
			return string(match[1]), len(match[1]) > 0
		}
		return string(match[0]), len(match[0]) > 0
	}
	result := gjson.GetBytes(body, e.path)
	if !result.Exists() || result.String() == "" {
		return "", false
	}
	return result.String(), true
}

// normalizePath accepts "$.a.b" as well as gjson's "a.b"; a bare "$" is the
// whole document.
func normalizePath(path string) string {
	switch {
	case path == "$":
		return "@this"
	case len(path) > 1 && path[0] == '$' && path[1] == '.':
		return path[2:]
	default:
		return path
	}
}
