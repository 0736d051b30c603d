package auth

import "github.com/kuksa/vssbroker/internal/vsspath"

// Letter is the single access mode a Check call asks about.
type Letter byte

const (
	LetterRead  Letter = 'r'
	LetterWrite Letter = 'w'
)

// Check answers whether the compiled permission map grants letter at path:
// literal patterns are tried first, then wildcard patterns in pattern-string
// order, and the first matching entry whose permission string contains the
// requested letter grants access (spec.md §4.4). A nil receiver (no token
// resolved yet) denies everything.
func (cp *CompiledPermissions) Check(path vsspath.Path, letter Letter) bool {
	if cp == nil {
		return false
	}
	canonical := path.Dotted()
	if entry, ok := cp.literal[canonical]; ok {
		return grants(entry, letter)
	}
	for _, entry := range cp.wildcard {
		if entry.re.MatchString(canonical) {
			return grants(entry, letter)
		}
	}
	return false
}

func grants(e permEntry, letter Letter) bool {
	switch letter {
	case LetterRead:
		return e.read
	case LetterWrite:
		return e.write
	default:
		return false
	}
}

// ModifyTree reports the separate tree-modification capability bit, carried
// as a top-level boolean claim and required for updateMetaData and
// updateVSSTree (spec.md §4.4).
func (cp *CompiledPermissions) ModifyTree() bool {
	return cp != nil && cp.modifyTree
}
