package tree

import (
	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/typecheck"
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// Datapoint is a single {path, dp} result of a getSignal call.
type Datapoint struct {
	Path      vsspath.Path
	Value     any
	Datatype  vss.Datatype
	Timestamp string // ISO-8601 rendering of TsNanos
	TsNanos   int64
	Available bool
}

// GetSignal returns the datapoints for every leaf the query resolves to. A
// single non-wildcard leaf yields exactly one Datapoint; a branch or
// wildcard query yields one per matched leaf. A leaf whose slot was never
// written yields Available=false (spec.md §4.3 "unavailable_data" sentinel).
func (t *Tree) GetSignal(p vsspath.Path, attr Attribute) ([]Datapoint, *brokererr.BrokerError) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaves := resolveLeaves(t.root, p)
	if len(leaves) == 0 {
		return nil, brokererr.New(brokererr.CodePathNotFound, "no leaves found for "+p.String())
	}

	out := make([]Datapoint, 0, len(leaves))
	for _, l := range leaves {
		dp := Datapoint{Path: l.path, Datatype: l.node.Meta.Datatype}
		value, ts, has := readSlot(l.node, attr)
		dp.Available = has
		dp.TsNanos = ts
		dp.Timestamp = vss.TimestampToISO(ts)
		if has {
			dp.Value = value
		}
		out = append(out, dp)
	}
	return out, nil
}

func readSlot(n *vss.Node, attr Attribute) (value any, ts int64, has bool) {
	if n.Data == nil {
		return nil, 0, false
	}
	if attr == AttrTargetValue {
		return n.Data.TargetValue, n.Data.TargetTs, n.Data.HasTarget
	}
	return n.Data.Value, n.Data.ValueTs, n.Data.HasValue
}

// SetSignal type-checks and installs a value on exactly one leaf, stamping
// the slot with the current wall clock and enqueuing a publish event
// outside the writer lock (spec.md §4.3, §5). Wildcard paths are rejected.
func (t *Tree) SetSignal(p vsspath.Path, attr Attribute, value any) *brokererr.BrokerError {
	if p.HasWildcard() {
		return brokererr.New(brokererr.CodeForbidden, "set does not accept wildcard paths")
	}

	t.mu.Lock()
	matches := resolveNodesForPath(t.root, p)
	if len(matches) != 1 || !matches[0].node.IsLeaf() {
		t.mu.Unlock()
		return brokererr.New(brokererr.CodePathNotFound, "path not found: "+p.String())
	}
	n := matches[0].node
	if n.Kind != vss.KindSensor && n.Kind != vss.KindActuator {
		t.mu.Unlock()
		return brokererr.New(brokererr.CodeForbidden, "only sensor or actor leaves can be set")
	}
	if attr == AttrTargetValue && n.Kind != vss.KindActuator {
		t.mu.Unlock()
		return brokererr.New(brokererr.CodeForbidden, "only actuator leaves can hold a targetValue")
	}

	normalized, terr := typecheck.Check(n.Meta, value)
	if terr != nil {
		t.mu.Unlock()
		return terr
	}

	now := t.nowNanos()
	if attr == AttrTargetValue {
		n.Data.TargetValue = normalized
		n.Data.TargetTs = now
		n.Data.HasTarget = true
	} else {
		n.Data.Value = normalized
		n.Data.ValueTs = now
		n.Data.HasValue = true
	}
	publisher := t.publisher
	path := matches[0].path
	datatype := n.Meta.Datatype
	t.mu.Unlock()

	publisher.Publish(path, datatype, attr, normalized, now)
	return nil
}
