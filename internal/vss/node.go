package vss

import "time"

// Kind distinguishes the three leaf flavors from branches.
type Kind int

const (
	KindBranch Kind = iota
	KindSensor
	KindActuator
	KindAttribute
)

func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindSensor:
		return "sensor"
	case KindActuator:
		return "actuator"
	case KindAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// Metadata is the immutable-by-default description of a leaf: its datatype,
// documentation, and the bounds the type checker enforces. The legacy
// "enum" tree-definition key is normalized to Allowed at load time (spec
// open question: both names are accepted on read).
type Metadata struct {
	Datatype    Datatype
	Description string
	Unit        string
	UUID        string
	Min         *float64
	Max         *float64
	Allowed     []any
	Default     any
}

// DataSlot holds a leaf's runtime-sampled value and, for actuators, its
// commanded target value, each independently timestamped. Ts fields hold
// nanoseconds since the Unix epoch; a leaf never written carries a zero Ts.
type DataSlot struct {
	Value       any
	ValueTs     int64
	TargetValue any
	TargetTs    int64
	HasValue    bool
	HasTarget   bool
}

// SentinelTimestamp is the literal ISO-8601 instant a never-written slot
// renders as (spec.md §9: "testable promise, not an internal representation").
const SentinelTimestamp = "1970-01-01T00:00:00.0Z"

// TimestampToISO converts nanoseconds-since-epoch to the W3C ISO-8601 UTC
// profile used at every response boundary.
func TimestampToISO(nanos int64) string {
	if nanos == 0 {
		return SentinelTimestamp
	}
	t := time.Unix(0, nanos).UTC()
	return t.Format("2006-01-02T15:04:05.000000000Z")
}

// Node is either a branch with ordered children or a leaf carrying metadata
// and a data slot. Navigation is root-to-leaf only; nothing here holds a
// back-pointer (spec.md §9: "Cyclic references and back-pointers: Do not use").
type Node struct {
	Name        string
	Kind        Kind
	Description string
	UUID        string
	Children    []string
	ChildByName map[string]*Node

	Meta *Metadata
	Data *DataSlot
}

// NewBranch constructs an empty branch node.
func NewBranch(name, description, uuid string) *Node {
	return &Node{
		Name:        name,
		Kind:        KindBranch,
		Description: description,
		UUID:        uuid,
		ChildByName: make(map[string]*Node),
	}
}

// NewLeaf constructs a leaf node of the given kind with empty runtime state.
func NewLeaf(name string, kind Kind, meta *Metadata) *Node {
	return &Node{
		Name: name,
		Kind: kind,
		Meta: meta,
		Data: &DataSlot{},
	}
}

// IsLeaf reports whether the node is a sensor, actuator, or attribute.
func (n *Node) IsLeaf() bool {
	return n.Kind != KindBranch
}

// AddChild appends a child to a branch, preserving insertion order for
// deterministic leaf enumeration.
func (n *Node) AddChild(child *Node) {
	if _, exists := n.ChildByName[child.Name]; !exists {
		n.Children = append(n.Children, child.Name)
	}
	n.ChildByName[child.Name] = child
}

// Child looks up a direct child by name.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.ChildByName[name]
	return c, ok
}

// Clone deep-copies a node and its subtree: Meta and Data are copied by
// value, and a leaf without a Data slot gets a fresh empty one.
func (n *Node) Clone() *Node {
	clone := &Node{
		Name:        n.Name,
		Kind:        n.Kind,
		Description: n.Description,
		UUID:        n.UUID,
	}
	if n.Meta != nil {
		m := *n.Meta
		clone.Meta = &m
	}
	if n.Data != nil {
		d := *n.Data
		clone.Data = &d
	} else if n.IsLeaf() {
		clone.Data = &DataSlot{}
	}
	if n.ChildByName != nil {
		clone.ChildByName = make(map[string]*Node, len(n.ChildByName))
		clone.Children = append([]string(nil), n.Children...)
		for _, name := range n.Children {
			clone.ChildByName[name] = n.ChildByName[name].Clone()
		}
	}
	return clone
}
