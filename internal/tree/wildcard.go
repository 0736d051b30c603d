package tree

import (
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

const wildcard = "*"

// match pairs a resolved node with the concrete (wildcard-free) path it was
// reached by.
type match struct {
	node *vss.Node
	path vsspath.Path
}

// resolveNodes walks segments from root, expanding "*" segments to every
// child at that level. Unlike the trapperkeeper teacher's fieldpath.go
// resolveRecursive (which returns the first wildcard match for short-circuit
// JSON-rule evaluation), the signal tree needs every match so a wildcard
// get/getMetaData can fan out to all of them (spec.md §4.3). Children are
// visited in each node's Children order (names sorted at parse time, names
// added by a later merge appended), which is already deterministic, so no
// extra sort is needed here.
func resolveNodes(root *vss.Node, rootPath vsspath.Path, segments []string) []match {
	matches := []match{{node: root, path: rootPath}}
	for _, seg := range segments {
		var next []match
		for _, m := range matches {
			if m.node == nil || m.node.IsLeaf() {
				continue
			}
			if seg == wildcard {
				for _, name := range m.node.Children {
					next = append(next, match{node: m.node.ChildByName[name], path: m.path.Join(name)})
				}
				continue
			}
			if child, ok := m.node.Child(seg); ok {
				next = append(next, match{node: child, path: m.path.Join(seg)})
			}
		}
		matches = next
		if len(matches) == 0 {
			return nil
		}
	}
	return matches
}

// collectLeaves expands a resolved match (branch or leaf) to its leaf
// descendants, depth-first in Children order, each paired with its full path.
func collectLeaves(m match) []match {
	if m.node == nil {
		return nil
	}
	if m.node.IsLeaf() {
		return []match{m}
	}
	var leaves []match
	for _, name := range m.node.Children {
		leaves = append(leaves, collectLeaves(match{node: m.node.ChildByName[name], path: m.path.Join(name)})...)
	}
	return leaves
}

// resolveLeaves resolves a Path to its leaf descendants: a non-wildcard path
// to a leaf yields that single leaf; a path to a branch expands to every
// leaf beneath it; a wildcard path unions the leaf sets of every match.
func resolveLeaves(root *vss.Node, p vsspath.Path) []match {
	segs := p.Segments()
	rootSeg := segs[0]
	if rootSeg != wildcard && rootSeg != root.Name {
		return nil
	}
	start := match{node: root, path: mustPath(root.Name, p.FromDot())}
	matches := resolveNodes(root, start.path, segs[1:])
	var leaves []match
	for _, mm := range matches {
		leaves = append(leaves, collectLeaves(mm)...)
	}
	return leaves
}

func mustPath(segment string, fromDot bool) vsspath.Path {
	p, _ := vsspath.NewFromSegments([]string{segment}, fromDot)
	return p
}
