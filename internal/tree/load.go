package tree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kuksa/vssbroker/internal/vss"
)

// rawNode mirrors the tree-definition document's per-node JSON shape
// (spec.md §6): a branch carries "children"; a leaf carries "type",
// "datatype", "uuid" and optional description/unit/min/max/allowed/default.
// The legacy "enum" key is accepted as an alias for "allowed" (spec.md §9
// Open Questions).
type rawNode struct {
	Type        string              `json:"type"`
	Datatype    string              `json:"datatype"`
	UUID        string              `json:"uuid"`
	Description string              `json:"description"`
	Unit        string              `json:"unit"`
	Min         *float64            `json:"min"`
	Max         *float64            `json:"max"`
	Allowed     []any               `json:"allowed"`
	Enum        []any               `json:"enum"`
	Default     any                 `json:"default"`
	HasDefault  bool                `json:"-"`
	Children    map[string]rawNode  `json:"children"`
}

// ParseDefinition parses a tree-definition document whose single top-level
// key names the root branch, e.g. {"Vehicle": {"type":"branch", ...}}.
func ParseDefinition(data []byte) (*vss.Node, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tree definition: %w", err)
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("tree definition must have exactly one root key, got %d", len(doc))
	}
	var rootName string
	var rootRaw json.RawMessage
	for k, v := range doc {
		rootName, rootRaw = k, v
	}
	var raw rawNode
	if err := unmarshalRawNode(rootRaw, &raw); err != nil {
		return nil, fmt.Errorf("parse root %q: %w", rootName, err)
	}
	return buildNode(rootName, raw)
}

func unmarshalRawNode(data json.RawMessage, raw *rawNode) error {
	if err := json.Unmarshal(data, raw); err != nil {
		return err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, ok := probe["default"]; ok {
			raw.HasDefault = true
		}
	}
	return nil
}

func buildNode(name string, raw rawNode) (*vss.Node, error) {
	switch raw.Type {
	case "branch", "":
		n := vss.NewBranch(name, raw.Description, raw.UUID)
		names := make([]string, 0, len(raw.Children))
		for k := range raw.Children {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, childName := range names {
			child, err := buildNode(childName, raw.Children[childName])
			if err != nil {
				return nil, err
			}
			n.AddChild(child)
		}
		return n, nil
	case "sensor", "actuator", "attribute":
		kind := map[string]vss.Kind{"sensor": vss.KindSensor, "actuator": vss.KindActuator, "attribute": vss.KindAttribute}[raw.Type]
		dt, ok := vss.ParseDatatype(raw.Datatype)
		if !ok {
			return nil, fmt.Errorf("leaf %q: unsupported datatype %q", name, raw.Datatype)
		}
		allowed := raw.Allowed
		if len(allowed) == 0 {
			allowed = raw.Enum
		}
		meta := &vss.Metadata{
			Datatype:    dt,
			Description: raw.Description,
			Unit:        raw.Unit,
			UUID:        raw.UUID,
			Min:         raw.Min,
			Max:         raw.Max,
			Allowed:     allowed,
		}
		if raw.HasDefault {
			meta.Default = raw.Default
		}
		return vss.NewLeaf(name, kind, meta), nil
	default:
		return nil, fmt.Errorf("leaf %q: unknown node type %q", name, raw.Type)
	}
}

// ApplyDefaults recursively materializes each attribute leaf's declared
// default into its value slot if unpopulated, stamping it with loadTime.
// Already-set values are never overwritten (spec.md §4.3 "Default
// propagation").
func ApplyDefaults(root *vss.Node, loadTimeNanos int64) {
	if root.IsLeaf() {
		if root.Kind == vss.KindAttribute && root.Meta != nil && root.Meta.Default != nil && !root.Data.HasValue {
			root.Data.Value = root.Meta.Default
			root.Data.ValueTs = loadTimeNanos
			root.Data.HasValue = true
		}
		return
	}
	for _, name := range root.Children {
		ApplyDefaults(root.ChildByName[name], loadTimeNanos)
	}
}

// LoadOverlays applies every *.json file in dir to t, in lexicographic
// filename order, through UpdateVSSTree — mirroring the original
// OverlayLoader's fixed load-order guarantee (SPEC_FULL.md §6 "Overlay
// directory loading order"): later overlays can replace fields an earlier
// one set, but nothing is ever removed. An empty or missing dir is a no-op,
// so a deployment with no overlays need not special-case this call.
func (t *Tree) LoadOverlays(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read overlay dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read overlay %s: %w", name, err)
		}
		if _, berr := t.UpdateVSSTree(data); berr != nil {
			return fmt.Errorf("apply overlay %s: %s", name, berr.Message)
		}
	}
	return nil
}
