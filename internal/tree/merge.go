package tree

import (
	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// MergeResult reports which paths a updateVSSTree merge added outright and
// which existing paths it replaced in place.
type MergeResult struct {
	Added    []vsspath.Path
	Replaced []vsspath.Path
}

// UpdateVSSTree deep-merges a patch document (the same shape ParseDefinition
// accepts) into the tree: existing keys are never removed, only added or
// replaced (spec.md §4.3). A patch leaf merges its declared metadata fields
// into an existing leaf of the same name, preserving that leaf's runtime
// data slot; a patch node introducing a new name is grafted wholesale and,
// if an attribute leaf, gets its default propagated immediately. The
// caller is responsible for the modify-tree capability check.
func (t *Tree) UpdateVSSTree(patchData []byte) (MergeResult, *brokererr.BrokerError) {
	patchRoot, err := ParseDefinition(patchData)
	if err != nil {
		return MergeResult{}, brokererr.Wrap(brokererr.CodeBadRequest, "invalid tree patch", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if patchRoot.Name != t.root.Name {
		return MergeResult{}, brokererr.New(brokererr.CodePathNotFound, "patch root "+patchRoot.Name+" does not match tree root "+t.root.Name)
	}

	var result MergeResult
	rootPath := mustPath(t.root.Name, true)
	mergeChildren(t.root, patchRoot, rootPath, &result)
	ApplyDefaults(t.root, t.nowNanos())
	return result, nil
}

func mergeChildren(dst, patch *vss.Node, path vsspath.Path, result *MergeResult) {
	for _, name := range patch.Children {
		patchChild := patch.ChildByName[name]
		childPath := path.Join(name)

		existing, ok := dst.Child(name)
		switch {
		case !ok:
			dst.AddChild(patchChild)
			result.Added = append(result.Added, childPath)
			recordGraftedLeaves(patchChild, childPath, result)
		case existing.IsLeaf() != patchChild.IsLeaf():
			dst.AddChild(patchChild)
			result.Replaced = append(result.Replaced, childPath)
			recordGraftedLeaves(patchChild, childPath, result)
		case existing.IsLeaf():
			mergeLeafMeta(existing, patchChild)
			result.Replaced = append(result.Replaced, childPath)
		default:
			mergeChildren(existing, patchChild, childPath, result)
		}
	}
}

// recordGraftedLeaves records every leaf under a freshly added or replaced
// subtree as part of the merge result, for branches grafted wholesale.
func recordGraftedLeaves(n *vss.Node, path vsspath.Path, result *MergeResult) {
	if n.IsLeaf() {
		return
	}
	for _, name := range n.Children {
		childPath := path.Join(name)
		child := n.ChildByName[name]
		if child.IsLeaf() {
			result.Added = append(result.Added, childPath)
		} else {
			recordGraftedLeaves(child, childPath, result)
		}
	}
}

func mergeLeafMeta(dst, patch *vss.Node) {
	dst.Description = coalesceString(patch.Description, dst.Description)
	if patch.Meta == nil {
		return
	}
	if dst.Meta == nil {
		dst.Meta = &vss.Metadata{}
	}
	m, p := dst.Meta, patch.Meta
	if p.Datatype != vss.DatatypeUnspecified {
		m.Datatype = p.Datatype
	}
	m.Description = coalesceString(p.Description, m.Description)
	m.Unit = coalesceString(p.Unit, m.Unit)
	if p.UUID != "" {
		m.UUID = p.UUID
	}
	if p.Min != nil {
		m.Min = p.Min
	}
	if p.Max != nil {
		m.Max = p.Max
	}
	if len(p.Allowed) > 0 {
		m.Allowed = p.Allowed
	}
	if p.Default != nil {
		m.Default = p.Default
	}
}

func coalesceString(patch, existing string) string {
	if patch != "" {
		return patch
	}
	return existing
}
