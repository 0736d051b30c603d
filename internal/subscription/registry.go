// Package subscription implements the Subscription Registry and its
// Publisher Loop (spec.md §4.6, §4.7): a (path,attribute) -> subscriber map
// plus the single background task that drains a bounded notification queue
// and hands each entry to the transport-owned Sink.
//
// The registry and the loop are modeled here as one cohesive type rather
// than two: the bounded queue is registry-internal state that only the
// loop drains, and splitting them would just move a channel reference
// across a package boundary for no isolation benefit.
package subscription

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kuksa/vssbroker/internal/auth"
	"github.com/kuksa/vssbroker/internal/brokererr"
	"github.com/kuksa/vssbroker/internal/tree"
	"github.com/kuksa/vssbroker/internal/vss"
	"github.com/kuksa/vssbroker/internal/vsspath"
)

// Notification is one queued (subscriptionId, session, datatype, payload)
// tuple, per spec.md §4.6/§4.7.
type Notification struct {
	SubscriptionID string
	Session        *auth.Session
	Path           vsspath.Path
	Attribute      tree.Attribute
	Datatype       vss.Datatype
	Value          any
	TsNanos        int64
}

// Sink is the transport boundary the Publisher Loop delivers notifications
// to. Concrete transports (WebSocket, HTTP long-poll, RPC streaming) are
// out of scope (spec.md §1); the broker only owns the handoff up to here.
type Sink interface {
	Deliver(Notification) error
}

type subjectKey struct {
	path string
	attr tree.Attribute
}

type subscriber struct {
	id      string
	session *auth.Session
}

// Registry maps (canonical path, attribute) to its subscribers, validates
// new subscriptions against the tree and the session's permissions, and
// runs the Publisher Loop that drains queued notifications to Sink.
//
// Grounded on the trapperkeeper teacher's getJSONLMutex pattern
// (internal/core/api/service.go): a single guard mutex protecting a lazily
// populated map, generalized here from per-filename mutexes to
// per-(path,attribute) subscriber sets.
type Registry struct {
	mu      sync.RWMutex
	bySubj  map[subjectKey]map[string]subscriber
	bySess  map[*auth.Session]map[string]subjectKey
	queue   chan Notification
	sink    Sink
	logger  *zap.Logger
	dropped atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Registry with the given bounded queue depth. Call Start
// to launch the Publisher Loop before any Publish calls are expected to be
// delivered (Publish itself never blocks waiting for the loop).
func New(sink Sink, queueDepth int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Registry{
		bySubj: make(map[subjectKey]map[string]subscriber),
		bySess: make(map[*auth.Session]map[string]subjectKey),
		queue:  make(chan Notification, queueDepth),
		sink:   sink,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Subscribe validates exists/isReadable/read-permission, allocates a v4
// subscription id, and registers it (spec.md §4.6).
func (r *Registry) Subscribe(session *auth.Session, t *tree.Tree, path vsspath.Path, attr tree.Attribute) (string, *brokererr.BrokerError) {
	if !t.Exists(path) {
		return "", brokererr.New(brokererr.CodePathNotFound, "no_path: "+path.String())
	}
	if !t.IsReadable(path) {
		return "", brokererr.New(brokererr.CodeForbidden, "not_readable: "+path.String())
	}
	if !session.Permissions().Check(path, auth.LetterRead) {
		return "", brokererr.New(brokererr.CodeNoAccess, "no_permission: "+path.String())
	}

	id := uuid.New().String()
	key := subjectKey{path: path.Dotted(), attr: attr}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bySubj[key] == nil {
		r.bySubj[key] = make(map[string]subscriber)
	}
	r.bySubj[key][id] = subscriber{id: id, session: session}
	if r.bySess[session] == nil {
		r.bySess[session] = make(map[string]subjectKey)
	}
	r.bySess[session][id] = key
	return id, nil
}

// Unsubscribe removes the entry wherever found; reports whether it existed.
func (r *Registry) Unsubscribe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) bool {
	for key, subs := range r.bySubj {
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(r.bySubj, key)
			}
			if sessSubs := r.bySess[sub.session]; sessSubs != nil {
				delete(sessSubs, id)
				if len(sessSubs) == 0 {
					delete(r.bySess, sub.session)
				}
			}
			return true
		}
	}
	return false
}

// UnsubscribeAll removes every subscription belonging to session, e.g. on
// session close (spec.md §3 "Subscription").
func (r *Registry) UnsubscribeAll(session *auth.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.bySess[session]
	count := 0
	for id := range ids {
		if r.removeLocked(id) {
			count++
		}
	}
	return count
}

// Publish implements tree.Publisher: for every subscriber of (path,attr) it
// enqueues a notification and signals the loop. Never blocks the caller
// (the tree's writer path): a notification that does not fit in a full
// queue is dropped (queued ones are kept) and logged, not retried.
func (r *Registry) Publish(path vsspath.Path, datatype vss.Datatype, attr tree.Attribute, value any, ts int64) {
	key := subjectKey{path: path.Dotted(), attr: attr}

	r.mu.RLock()
	subs := r.bySubj[key]
	notifications := make([]Notification, 0, len(subs))
	for id, sub := range subs {
		notifications = append(notifications, Notification{
			SubscriptionID: id,
			Session:        sub.session,
			Path:           path,
			Attribute:      attr,
			Datatype:       datatype,
			Value:          value,
			TsNanos:        ts,
		})
	}
	r.mu.RUnlock()

	for _, n := range notifications {
		select {
		case r.queue <- n:
		default:
			r.dropped.Add(1)
			r.logger.Warn("publisher queue full, dropping notification",
				zap.String("subscription_id", n.SubscriptionID),
				zap.String("path", n.Path.Dotted()))
		}
	}
}

// Dropped returns the count of notifications dropped so far due to a full
// queue, for metrics/diagnostics.
func (r *Registry) Dropped() uint64 {
	return r.dropped.Load()
}
