// Package tree implements the Signal Tree: the in-memory, hierarchical
// store of VSS nodes, guarded by a single reader/writer lock, exposing the
// exists/readable/writable/attributable/leaves/get/set/getMetadata/
// updateMetadata/updateTree operations of spec.md §4.3.
//
// Grounded on the trapperkeeper teacher's pattern of guarding every shared
// resource with exactly one lock (its *sqlx.DB connection pool, its
// per-filename JSONL mutex map) — here a single sync.RWMutex guards the
// whole node tree, matching spec.md §5's "one reader/writer lock" model.
package tree

import (
	"sync"
	"time"

	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// Attribute names a leaf's runtime slot.
type Attribute string

const (
	AttrValue       Attribute = "value"
	AttrTargetValue Attribute = "targetValue"
)

// Publisher is the Subscription Registry's boundary interface into the
// tree: every successful SetSignal enqueues one publish event, outside the
// writer lock but before the response reaches the caller (spec.md §4.3).
type Publisher interface {
	Publish(path vsspath.Path, datatype vss.Datatype, attr Attribute, value any, ts int64)
}

type noopPublisher struct{}

func (noopPublisher) Publish(vsspath.Path, vss.Datatype, Attribute, any, int64) {}

// Tree is the broker's single authoritative signal tree.
type Tree struct {
	mu        sync.RWMutex
	root      *vss.Node
	publisher Publisher
	now       func() time.Time
}

// New constructs a Tree rooted at the given node. A nil publisher installs
// a no-op (useful for tests that don't exercise subscriptions).
func New(root *vss.Node, publisher Publisher) *Tree {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Tree{root: root, publisher: publisher, now: time.Now}
}

// SetPublisher rewires the tree's publish sink after construction, used by
// cmd/vssbroker to break the Tree/Subscription-Registry construction cycle.
func (t *Tree) SetPublisher(p Publisher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publisher = p
}

// Exists reports whether the query resolves to at least one node.
func (t *Tree) Exists(p vsspath.Path) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(resolveNodesForPath(t.root, p)) > 0
}

func matchesRoot(root *vss.Node, p vsspath.Path) bool {
	segs := p.Segments()
	return len(segs) > 0 && (segs[0] == wildcard || segs[0] == root.Name)
}

func rootMatchPath(root *vss.Node, p vsspath.Path) vsspath.Path {
	return mustPath(root.Name, p.FromDot())
}

// IsReadable reports whether the query resolves to exactly one leaf of a
// readable kind (sensor, actuator, or attribute) — or, for a wildcard query
// with multiple matches, true if at least one match is a readable leaf
// (spec.md §4.3: "Wildcarded reads return attributable=true when multiple
// matches exist").
func (t *Tree) IsReadable(p vsspath.Path) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaves := resolveLeaves(t.root, p)
	if p.HasWildcard() {
		return len(leaves) > 0
	}
	return len(leaves) == 1 && leaves[0].path.Equal(p)
}

// IsWritable reports whether the query resolves to exactly one leaf of kind
// sensor or actuator.
func (t *Tree) IsWritable(p vsspath.Path) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	matches := resolveNodesForPath(t.root, p)
	if len(matches) != 1 {
		return false
	}
	n := matches[0].node
	return n.IsLeaf() && (n.Kind == vss.KindSensor || n.Kind == vss.KindActuator)
}

// IsAttributable reports whether attr may be written at path: targetValue
// only on actuators, value on any leaf.
func (t *Tree) IsAttributable(p vsspath.Path, attr Attribute) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	matches := resolveNodesForPath(t.root, p)
	if len(matches) != 1 || !matches[0].node.IsLeaf() {
		return false
	}
	if attr == AttrTargetValue {
		return matches[0].node.Kind == vss.KindActuator
	}
	return true
}

func resolveNodesForPath(root *vss.Node, p vsspath.Path) []match {
	if !matchesRoot(root, p) {
		return nil
	}
	segs := p.Segments()
	start := match{node: root, path: rootMatchPath(root, p)}
	return resolveNodes(root, start.path, segs[1:])
}

// Leaves returns the set of leaf paths under the query; empty for
// non-existent paths.
func (t *Tree) Leaves(p vsspath.Path) []vsspath.Path {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaves := resolveLeaves(t.root, p)
	out := make([]vsspath.Path, len(leaves))
	for i, l := range leaves {
		out[i] = l.path
	}
	return out
}

// DatatypeOf returns the leaf's datatype; fails if path is not exactly one
// leaf.
func (t *Tree) DatatypeOf(p vsspath.Path) (vss.Datatype, *brokererr.BrokerError) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	matches := resolveNodesForPath(t.root, p)
	if len(matches) != 1 || !matches[0].node.IsLeaf() {
		return vss.DatatypeUnspecified, brokererr.New(brokererr.CodePathNotFound, "path is not a leaf: "+p.String())
	}
	return matches[0].node.Meta.Datatype, nil
}

func (t *Tree) nowNanos() int64 {
	return t.now().UnixNano()
}
