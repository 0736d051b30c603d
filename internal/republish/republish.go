// Package republish defines the External Republisher boundary: an optional
// fan-out of successful set events onto an external messaging fabric
// (spec.md §1 "telemetry-forwarder bridge", §2). The concrete bridge is
// deliberately out of scope; this package only carries the seam.
package republish

import (
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// Event is one republished set, carrying enough context for an external
// bridge to re-encode it without reaching back into the tree.
type Event struct {
	Path      vsspath.Path
	Datatype  vss.Datatype
	Attribute string
	Value     any
	TsNanos   int64
}

// Republisher fans a set event out to an external system. Implementations
// live outside this module; Noop satisfies the interface when no bridge is
// configured.
type Republisher interface {
	Republish(Event)
}

// Noop discards every event. It is the default when no external
// republisher is configured.
type Noop struct{}

func (Noop) Republish(Event) {}
