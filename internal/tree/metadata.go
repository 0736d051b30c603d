package tree

import (
	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// MetadataView is the JSON-shaped reconstruction GetMetaData returns: the
// smallest branch/children subtree rooted at the query target.
type MetadataView struct {
	Name        string
	Kind        vss.Kind
	Description string
	UUID        string
	Children    map[string]*MetadataView
	Meta        *vss.Metadata
}

// GetMetaData returns the smallest subtree of metadata rooted at the query
// target, preserving branch/children structure up to the root. A wildcard
// query returns the reconstructed branch tree containing all matches.
func (t *Tree) GetMetaData(p vsspath.Path) (*MetadataView, *brokererr.BrokerError) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	matches := resolveNodesForPath(t.root, p)
	if len(matches) == 0 {
		return nil, brokererr.New(brokererr.CodePathNotFound, "path not found: "+p.String())
	}
	root := &MetadataView{Name: t.root.Name, Kind: vss.KindBranch, Children: map[string]*MetadataView{}}
	for _, m := range matches {
		graftPath(root, m.path.Segments()[1:], m.node)
	}
	return root, nil
}

func graftPath(root *MetadataView, remaining []string, target *vss.Node) {
	cur := root
	for i, seg := range remaining {
		if i == len(remaining)-1 {
			cur.Children[seg] = nodeToView(target)
			return
		}
		child, ok := cur.Children[seg]
		if !ok {
			child = &MetadataView{Name: seg, Kind: vss.KindBranch, Children: map[string]*MetadataView{}}
			cur.Children[seg] = child
		}
		cur = child
	}
}

func nodeToView(n *vss.Node) *MetadataView {
	v := &MetadataView{Name: n.Name, Kind: n.Kind, Description: n.Description, UUID: n.UUID}
	if n.IsLeaf() {
		v.Meta = n.Meta
		return v
	}
	v.Children = map[string]*MetadataView{}
	for _, name := range n.Children {
		v.Children[name] = nodeToView(n.ChildByName[name])
	}
	return v
}

// UpdateMetaData shallow-merges patch fields into the leaf's metadata.
// Requires the caller to already hold the modify-tree capability; that
// check is the Request Processor's responsibility (spec.md §4.9).
func (t *Tree) UpdateMetaData(p vsspath.Path, patch MetadataPatch) *brokererr.BrokerError {
	t.mu.Lock()
	defer t.mu.Unlock()

	matches := resolveNodesForPath(t.root, p)
	if len(matches) != 1 || !matches[0].node.IsLeaf() {
		return brokererr.New(brokererr.CodePathNotFound, "path not found: "+p.String())
	}
	applyPatch(matches[0].node.Meta, patch)
	return nil
}

// MetadataPatch is a shallow set of optional metadata field overrides, as
// carried by an updateMetaData request's "metadata" object.
type MetadataPatch struct {
	Description *string
	Unit        *string
	Min         *float64
	Max         *float64
	Allowed     []any
	Default     any
	HasDefault  bool
}

func applyPatch(meta *vss.Metadata, patch MetadataPatch) {
	if patch.Description != nil {
		meta.Description = *patch.Description
	}
	if patch.Unit != nil {
		meta.Unit = *patch.Unit
	}
	if patch.Min != nil {
		meta.Min = patch.Min
	}
	if patch.Max != nil {
		meta.Max = patch.Max
	}
	if patch.Allowed != nil {
		meta.Allowed = patch.Allowed
	}
	if patch.HasDefault {
		meta.Default = patch.Default
	}
}
