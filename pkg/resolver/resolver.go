// Package resolver defines the contract every reference back-end implements:
// fetch content behind a URL, and, for back-ends that track history, diff a
// pinned commit against the current tip. Concrete back-ends (file, https,
// gitlab, awssecret, k8sjq) live under pkg/resolvers and are registered
// into a Registry by the host at startup; nothing in this package discovers them.
package resolver

import (
	"context"

	"github.com/archi-tools/inspector/pkg/refurl"
)

// Content is plain, unversioned bytes returned by a resolve call.
type Content struct {
	Bytes []byte
}

func (Content) isResolveResult() {}

// VersionedContent additionally carries the resource's tip commit, returned
// the first time a dependency is pinned.
type VersionedContent struct {
	Bytes        []byte
	LastCommitID string
}

func (VersionedContent) isResolveResult() {}

// ResolveResult is the closed variant a resolve call returns: Content or
// VersionedContent. A nil ResolveResult with a nil error is the "none"
// outcome — transient failure or unresolvable reference, not a programmer
// error; callers treat it as "no content this time".
type ResolveResult interface {
	isResolveResult()
}

// DiffOutcome is the closed variant a diff call returns.
type DiffOutcome interface {
	isDiffOutcome()
}

// NoChange means the queried range is identical between the pinned commit
// and the current tip.
type NoChange struct{}

func (NoChange) isDiffOutcome() {}

// LinesMoved means the range's content is unchanged but its position
// shifted; UpdatedURL carries the new @commit and shifted fragment.
type LinesMoved struct {
	UpdatedURL          string
	CurrentLinesContent string
}

func (LinesMoved) isDiffOutcome() {}

// ContentChanged means the text within or overlapping the range differs.
type ContentChanged struct {
	UpdatedURL          string
	CurrentLinesContent string
	WasLinesContent     string
}

func (ContentChanged) isDiffOutcome() {}

// Resolver fetches content behind references of one URL scheme.
type Resolver interface {
	// Scheme is the URL scheme this resolver answers for.
	Scheme() string
	// Resolve fetches the bytes behind ref. A nil result and nil error is
	// the "none" outcome; a non-nil error aborts the entity being
	// processed.
	Resolve(ctx context.Context, ref refurl.Reference) (ResolveResult, error)
}

// VersioningResolver is a Resolver that can additionally compare a pinned
// commit against the current tip.
type VersioningResolver interface {
	Resolver
	// Diff compares ref's pinned commit to the tip (or, when the path
	// designates a symbolic ref, the sha that ref currently resolves to).
	// A nil outcome and nil error is the "none" outcome.
	Diff(ctx context.Context, ref refurl.Reference) (DiffOutcome, error)
}

// AsVersioning reports whether r also implements VersioningResolver, and
// returns it typed when so.
func AsVersioning(r Resolver) (VersioningResolver, bool) {
	vr, ok := r.(VersioningResolver)
	return vr, ok
}
