package statistics

import (
	"fmt"
	"time"
)

// AccessKind classifies a cache lookup.
type AccessKind int

const (
	AccessHit AccessKind = iota + 1
	AccessStaleHit
	AccessMiss
)

func (k AccessKind) String() string {
	switch k {
	case AccessHit:
		return "hit"
	case AccessStaleHit:
		return "stale_hit"
	case AccessMiss:
		return "miss"
	default:
		return fmt.Sprintf("access(%d)", int(k))
	}
}

// FlushKind identifies what triggered a flush.
type FlushKind int

const (
	FlushCache FlushKind = iota + 1
	FlushEntry
	FlushGroup
	FlushPattern
	FlushScope
)

var flushKindNames = map[FlushKind]string{
	FlushCache:   "cache",
	FlushEntry:   "entry",
	FlushGroup:   "group",
	FlushPattern: "pattern",
	FlushScope:   "scope",
}

func (k FlushKind) String() string {
	if name, ok := flushKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("flush(%d)", int(k))
}

// ParseFlushKind maps a name produced by FlushKind.String back to its kind.
func ParseFlushKind(name string) (FlushKind, bool) {
	for k, n := range flushKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Origin is an opaque marker supplied by the subject with a flush event.
// It is only ever compared for equality.
type Origin string

// NestedOrigin marks a flush fired as part of a larger flush already in
// progress. Listeners counting flushes skip it.
const NestedOrigin Origin = "NESTED"

// Scope identifies a web-style storage scope.
type Scope int

const (
	ScopeNone Scope = iota
	ScopePage
	ScopeRequest
	ScopeSession
	ScopeApplication
)

var scopeNames = [...]string{"", "page", "request", "session", "application"}

// ScopeName resolves a scope id through the scope name table.
func ScopeName(s Scope) string {
	if s > ScopeNone && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope is the inverse of ScopeName for known scopes.
func ParseScope(name string) (Scope, bool) {
	for i, n := range scopeNames {
		if i > 0 && n == name {
			return Scope(i), true
		}
	}
	return ScopeNone, false
}

// FlushEvent describes one flush notification. Only the field matching
// Kind is meaningful, except Origin which may accompany any kind.
type FlushEvent struct {
	Kind    FlushKind
	Key     string
	Group   string
	Pattern string
	Scope   Scope
	At      time.Time
	Origin  Origin
}

// Nested reports whether the event was fired inside another flush.
func (e FlushEvent) Nested() bool {
	return e.Origin == NestedOrigin
}

// Reason renders the flush trigger and its discriminator.
func (e FlushEvent) Reason() string {
	switch e.Kind {
	case FlushCache:
		return "wide " + e.At.Format(time.RFC3339)
	case FlushEntry:
		return "entry " + e.Key + " / " + string(e.Origin)
	case FlushGroup:
		return "group " + e.Group
	case FlushPattern:
		return "pattern " + e.Pattern
	case FlushScope:
		return "scope " + ScopeName(e.Scope)
	default:
		return e.Kind.String()
	}
}

// Subject is the observed cache as seen by a listener.
type Subject interface {
	Name() string
}

// Listener receives the events of one Subject.
type Listener interface {
	Initialize(subject Subject) error
	OnAccessed(kind AccessKind)
	OnEntryAdded()
	OnEntryRemoved()
	OnEntryUpdated()
	OnFlushed(ev FlushEvent)
	Teardown() error
}
