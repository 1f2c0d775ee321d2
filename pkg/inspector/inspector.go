// Package inspector implements the per-entity reference-drift state
// machine: it reads an entity's pwrt:inspector: properties, dispatches each
// reference to the resolver registered for its scheme, classifies drift,
// advances commit pins, re-extracts values through a capture expression,
// and leaves the entity sorted into its canonical child order ready for
// pkg/xmlmodel to write.
package inspector

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-logr/logr"

	"github.com/archi-tools/inspector/internal/xerrors"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
	"github.com/archi-tools/inspector/pkg/xmlmodel"
)

// Engine runs the inspection state machine against entity roots, dispatching
// reference resolution through a shared resolver registry.
type Engine struct {
	registry *resolver.Registry
	logger   logr.Logger
}

// New returns an Engine that dispatches references through registry.
func New(registry *resolver.Registry, logger logr.Logger) *Engine {
	return &Engine{registry: registry, logger: logger}
}

// Inspect runs the state machine against root, mutating it in place.
// Returns whether anything changed; when true, root's children have also
// been sorted into canonical order and the caller should write it out
// through pkg/xmlmodel.Write.
func (e *Engine) Inspect(ctx context.Context, root *xmlmodel.Element) (bool, error) {
	if _, locked := xmlmodel.FindProperty(root, KeyValueRequiresReviewing); locked {
		e.logger.V(1).Info("entity locked for review, skipping", "root", root.Tag)
		return false, nil
	}

	_, hasDeps := xmlmodel.FindProperty(root, KeyValueDeps)
	_, hasValueRef := xmlmodel.FindProperty(root, KeyValueRef)
	if !hasDeps && !hasValueRef {
		return false, nil
	}

	changed := false
	review := false

	if hasDeps {
		c, r, err := e.processDeps(ctx, root)
		if err != nil {
			return false, err
		}
		changed = changed || c
		review = review || r
	}

	if hasValueRef {
		c, r, err := e.processValueRef(ctx, root)
		if err != nil {
			return false, err
		}
		changed = changed || c
		review = review || r
	}

	if !changed {
		return false, nil
	}
	if review {
		xmlmodel.UpsertProperty(root, KeyValueRequiresReviewing, "true")
	}
	xmlmodel.SortChildren(root)
	return true, nil
}

// processDeps implements §4.4's "Process deps" step.
func (e *Engine) processDeps(ctx context.Context, root *xmlmodel.Element) (changed, review bool, err error) {
	depsProp, _ := xmlmodel.FindProperty(root, KeyValueDeps)
	depsVal, _ := depsProp.Get("value")
	deps := strings.Split(depsVal, ";")

	var knownHashes []string
	if hashesProp, hasHashes := xmlmodel.FindProperty(root, KeyValueDepsHashes); hasHashes {
		hv, _ := hashesProp.Get("value")
		knownHashes = strings.Split(hv, ";")
	}

	newDeps := make([]string, len(deps))
	newHashes := make([]string, len(deps))
	useHashes := false
	mismatch := false

	for i, depURL := range deps {
		ref, perr := refurl.Parse(depURL)
		if perr != nil {
			return false, false, xerrors.FailedToWithDetails("parse dependency reference", "inspector", depURL, perr)
		}

		res, rerr := e.registry.MustResolver(ref.Scheme)
		if rerr != nil {
			return false, false, rerr
		}

		if vr, isVersioning := resolver.AsVersioning(res); isVersioning && ref.Pinned() {
			newHashes[i] = ""
			outcome, derr := vr.Diff(ctx, ref)
			if derr != nil {
				return false, false, xerrors.Wrapf(derr, "diff dependency %s", depURL)
			}
			switch d := outcome.(type) {
			case resolver.LinesMoved:
				newDeps[i] = d.UpdatedURL
				mismatch = true
			case resolver.ContentChanged:
				newDeps[i] = d.UpdatedURL
				mismatch = true
				review = true
			default: // resolver.NoChange, or none (nil)
				newDeps[i] = depURL
			}
			continue
		}

		hKnown := sentinelNone
		if i < len(knownHashes) {
			hKnown = knownHashes[i]
		}

		result, rerr := res.Resolve(ctx, ref)
		if rerr != nil {
			return false, false, xerrors.Wrapf(rerr, "resolve dependency %s", depURL)
		}

		content, commit := contentAndCommit(result)
		hCalc := sentinelNone
		if content != nil {
			hCalc = contentDigest(content)
		}
		e.logger.V(1).Info("resolved dependency",
			"scheme", ref.Scheme, "url", depURL, "hashKnown", hKnown, "hashCalculated", hCalc)

		if hCalc != hKnown {
			mismatch = true
			review = true
		}

		if commit != "" {
			newDeps[i] = ref.WithCommit(shortCommit(commit)).String()
			newHashes[i] = ""
		} else {
			newDeps[i] = depURL
			newHashes[i] = hCalc
			useHashes = true
		}
	}

	if mismatch {
		changed = true
		xmlmodel.UpsertProperty(root, KeyValueDeps, strings.Join(newDeps, ";"))
		if useHashes {
			xmlmodel.UpsertProperty(root, KeyValueDepsHashes, strings.Join(newHashes, ";"))
		}
	}
	return changed, review, nil
}

// processValueRef implements §4.4's "Process valueRef" step.
func (e *Engine) processValueRef(ctx context.Context, root *xmlmodel.Element) (changed, review bool, err error) {
	refProp, _ := xmlmodel.FindProperty(root, KeyValueRef)
	refURL, _ := refProp.Get("value")

	regexpProp, hasRegexp := xmlmodel.FindProperty(root, KeyValueRegexp)
	if !hasRegexp {
		return false, false, xerrors.FailedToWithDetails("process value-ref", "inspector", refURL, fmt.Errorf("missing value-regexp"))
	}
	regexpVal, _ := regexpProp.Get("value")
	rx, cerr := regexp.Compile(regexpVal)
	if cerr != nil {
		return false, false, xerrors.ParseError("value-regexp", "regular expression", cerr)
	}

	knownProp, hasKnown := xmlmodel.FindProperty(root, KeyValue)
	known := sentinelNone
	if hasKnown {
		known, _ = knownProp.Get("value")
	}

	ref, perr := refurl.Parse(refURL)
	if perr != nil {
		return false, false, xerrors.FailedToWithDetails("parse value-ref", "inspector", refURL, perr)
	}

	res, rerr := e.registry.MustResolver(ref.Scheme)
	if rerr != nil {
		return false, false, rerr
	}

	newVal := sentinelNone

	if vr, isVersioning := resolver.AsVersioning(res); isVersioning && ref.Pinned() {
		outcome, derr := vr.Diff(ctx, ref)
		if derr != nil {
			return false, false, xerrors.Wrapf(derr, "diff value-ref %s", refURL)
		}

		switch d := outcome.(type) {
		case resolver.LinesMoved:
			changed = true
			xmlmodel.UpsertProperty(root, KeyValueRef, d.UpdatedURL)
			content, frerr := e.contentForDiffOutcome(ctx, res, d.UpdatedURL, d.CurrentLinesContent)
			if frerr != nil {
				return false, false, frerr
			}
			newVal = extractFirstGroup(rx, content)
		case resolver.ContentChanged:
			changed = true
			xmlmodel.UpsertProperty(root, KeyValueRef, d.UpdatedURL)
			content, frerr := e.contentForDiffOutcome(ctx, res, d.UpdatedURL, d.CurrentLinesContent)
			if frerr != nil {
				return false, false, frerr
			}
			newVal = extractFirstGroup(rx, content)
		default: // resolver.NoChange, or none (nil)
			if !hasKnown {
				result, rrerr := res.Resolve(ctx, ref)
				if rrerr != nil {
					return false, false, xerrors.Wrapf(rrerr, "resolve value-ref %s", refURL)
				}
				content, commit := contentAndCommit(result)
				if content != nil {
					newVal = extractFirstGroup(rx, string(content))
				}
				if commit != "" {
					changed = true
					xmlmodel.UpsertProperty(root, KeyValueRef, ref.WithCommit(shortCommit(commit)).String())
				}
			} else {
				newVal = known
			}
		}

		if !hasKnown || newVal != known {
			changed = true
			review = true
			xmlmodel.UpsertProperty(root, KeyValueNew, newVal)
		}
		return changed, review, nil
	}

	// Case B: not versioning-capable, or the reference is unpinned.
	result, rerr := res.Resolve(ctx, ref)
	if rerr != nil {
		return false, false, xerrors.Wrapf(rerr, "resolve value-ref %s", refURL)
	}

	switch c := result.(type) {
	case resolver.VersionedContent:
		changed = true
		review = true
		xmlmodel.UpsertProperty(root, KeyValueRef, ref.WithCommit(shortCommit(c.LastCommitID)).String())
		if len(c.Bytes) > 0 {
			newVal = extractFirstGroup(rx, string(c.Bytes))
		}
	case resolver.Content:
		if len(c.Bytes) > 0 {
			newVal = extractFirstGroup(rx, string(c.Bytes))
		}
	}

	if newVal != known {
		changed = true
		review = true
		xmlmodel.UpsertProperty(root, KeyValueNew, newVal)
	}
	return changed, review, nil
}

// contentForDiffOutcome returns diffContent unless it is empty, in which
// case it re-resolves updatedURL with its @commit stripped — the
// deliberate fallback for a LinesMoved/ContentChanged outcome that carried
// no content (§9).
func (e *Engine) contentForDiffOutcome(ctx context.Context, res resolver.Resolver, updatedURL, diffContent string) (string, error) {
	if diffContent != "" {
		return diffContent, nil
	}
	ref, perr := refurl.Parse(updatedURL)
	if perr != nil {
		return "", xerrors.FailedToWithDetails("parse updated reference", "inspector", updatedURL, perr)
	}
	result, rerr := res.Resolve(ctx, ref.Unpinned())
	if rerr != nil {
		return "", xerrors.Wrapf(rerr, "re-resolve %s", updatedURL)
	}
	content, _ := contentAndCommit(result)
	return string(content), nil
}

func contentAndCommit(result resolver.ResolveResult) ([]byte, string) {
	switch c := result.(type) {
	case resolver.Content:
		return c.Bytes, ""
	case resolver.VersionedContent:
		return c.Bytes, c.LastCommitID
	default:
		return nil, ""
	}
}

func extractFirstGroup(rx *regexp.Regexp, content string) string {
	m := rx.FindStringSubmatch(content)
	if len(m) < 2 {
		return sentinelNone
	}
	return m[1]
}
