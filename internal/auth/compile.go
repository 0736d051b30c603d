// Package auth implements the Permission Resolver and Authenticator:
// bearer-token verification and the wildcard-aware read/write/modify-tree
// checks that gate every leaf access (spec.md §4.4, §4.5).
package auth

import (
	"regexp"
	"sort"
	"strings"
)

// permEntry is one compiled path-pattern -> permission entry.
type permEntry struct {
	pattern string
	read    bool
	write   bool
	re      *regexp.Regexp // set only for wildcard entries
}

// CompiledPermissions is a token's permission claim, split at compile time
// into a literal-pattern lookup and an ordered wildcard-pattern list, so
// Check never re-parses a permission string per call. Grounded on the
// trapperkeeper teacher's rules/compile.go pattern of validating and
// pre-ordering a rule once at compile time rather than at evaluation time.
type CompiledPermissions struct {
	literal    map[string]permEntry
	wildcard   []permEntry
	modifyTree bool
}

// CompilePermissions parses a token's path-pattern -> permission-string
// claim. Permission strings are exactly "r", "w", "rw", or "wr" (order and
// duplicates irrelevant); any other string is ignored and returned in the
// second result for the caller to log (spec.md §4.4: "Any other string is
// logged and ignored").
func CompilePermissions(raw map[string]string, modifyTree bool) (*CompiledPermissions, []string) {
	cp := &CompiledPermissions{literal: make(map[string]permEntry, len(raw)), modifyTree: modifyTree}
	var ignored []string
	for pattern, permStr := range raw {
		read, write, ok := parsePermissionString(permStr)
		if !ok {
			ignored = append(ignored, pattern+"="+permStr)
			continue
		}
		entry := permEntry{pattern: pattern, read: read, write: write}
		if strings.Contains(pattern, "*") {
			entry.re = compileWildcardPattern(pattern)
			cp.wildcard = append(cp.wildcard, entry)
		} else {
			cp.literal[pattern] = entry
		}
	}
	// The claim decodes into a map[string]string, which carries no
	// declaration order of its own; sort wildcard entries by pattern so two
	// tokens with the same permissions compile to the same match order
	// regardless of map iteration order.
	sort.Slice(cp.wildcard, func(i, j int) bool { return cp.wildcard[i].pattern < cp.wildcard[j].pattern })
	return cp, ignored
}

func parsePermissionString(s string) (read, write, ok bool) {
	switch s {
	case "r":
		return true, false, true
	case "w":
		return false, true, true
	case "rw", "wr":
		return true, true, true
	default:
		return false, false, false
	}
}

// compileWildcardPattern turns a dotted path pattern containing "*" into a
// segment-spanning regexp, per spec.md §4.4 ("replacing * with .* for
// segment-spanning match"): every other character is matched literally, and
// every "*", whether a whole segment or inside one, becomes ".*".
func compileWildcardPattern(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}
