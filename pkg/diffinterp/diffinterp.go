// Package diffinterp interprets a unified diff against a queried line range
// and classifies what happened to that range: untouched, shifted without
// content change, or changed. It is the line-locator half of pinned,
// versioning-capable resolvers — resolvers hand it a raw unified diff and a
// [from,to] range parsed out of a reference URL's fragment, and get back the
// new range plus the "was" and "now" text to compare.
//
// The line-accounting algorithm below intentionally matches a known
// imprecision around adjacent removal/addition pairs: when the queried range
// sits exactly on the first of a pair of "-" / "+" lines at the same
// position, the reported "deleted" fragment can be one line off. This is a
// documented property of the algorithm, not a bug to fix here — resolvers
// built on this package should not attempt to special-case it.
package diffinterp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Classification is the outcome of comparing a queried range's content
// before and after the diff.
type Classification int

const (
	// NoChange means the range's content and position are identical.
	NoChange Classification = iota
	// LinesMoved means the content is identical but the range shifted.
	LinesMoved
	// ContentChanged means the text itself differs.
	ContentChanged
)

func (c Classification) String() string {
	switch c {
	case NoChange:
		return "NoChange"
	case LinesMoved:
		return "LinesMoved"
	case ContentChanged:
		return "ContentChanged"
	default:
		return "unknown"
	}
}

// Result is the outcome of interpreting a diff against a queried range.
type Result struct {
	Classification Classification
	// NewFrom and NewTo are the range's line numbers in the new file. When
	// LinesDeleted is true they describe where the range used to map before
	// the deletion collapsed it; callers should not treat them as a valid
	// locator in that case.
	NewFrom, NewTo int
	// LinesDeleted is true when every queried line was removed outright.
	LinesDeleted bool
	// Was is the queried range's content before the diff.
	Was string
	// Now is the queried range's content after the diff ("" when deleted).
	Now string

	// queryFrom and queryTo are the range as originally asked for; when
	// LinesDeleted, the reported fragment echoes this original range
	// (marked deleted) rather than the collapsed New* numbers, matching how
	// the resolver this is grounded on reuses the incoming URL fragment
	// verbatim for that case.
	queryFrom, queryTo int
}

// Fragment renders the result's new range as an "Ln", "Ln-m", or
// "Ln<-lines deleted" fragment, matching the form a reference URL carries.
func (r Result) Fragment() string {
	if r.LinesDeleted {
		if r.queryTo > r.queryFrom {
			return fmt.Sprintf("L%d-%d<-lines deleted", r.queryFrom, r.queryTo)
		}
		return fmt.Sprintf("L%d<-lines deleted", r.queryFrom)
	}
	if r.NewTo > r.NewFrom {
		return fmt.Sprintf("L%d-%d", r.NewFrom, r.NewTo)
	}
	return fmt.Sprintf("L%d", r.NewFrom)
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []string // content lines, each still carrying its leading ' '/'-'/'+' indicator
}

var hunkHeaderPattern = regexp.MustCompile(`(?m)^@@ -(\d+),(\d+) \+(\d+)(?:,(\d+))?[ \t]@@.*\n?`)

// Interpret parses diffText as a unified diff and classifies what happened
// to the 1-indexed inclusive range [queryFrom, queryTo] in the old file.
func Interpret(diffText string, queryFrom, queryTo int) (Result, error) {
	hunks, err := parseHunks(diffText)
	if err != nil {
		return Result{}, err
	}

	newFrom, newTo := queryFrom, queryTo
	var wasParts, nowParts []string

	for _, h := range hunks {
		shift := (h.newStart - h.oldStart) + (h.newCount - h.oldCount)

		if queryFrom >= h.oldStart+h.oldCount {
			// Hunk lies entirely before the queried range.
			newFrom = queryFrom + shift
			newTo = queryTo + shift
			continue
		}
		if queryTo < h.oldStart {
			// Hunk lies entirely after the queried range; nothing left to
			// inspect since hunks are ordered.
			break
		}

		inLine, outLine := h.oldStart, h.newStart
		var newLines, wasLines []string

	hunkLines:
		for _, line := range h.lines {
			if inLine > queryTo+1 {
				break
			}
			indicator, text := line[0], line[1:]

			switch indicator {
			case ' ':
				newLines = append(newLines, text)
				wasLines = append(wasLines, text)
				if queryFrom == inLine {
					newFrom = outLine
				}
				if queryTo == inLine {
					newTo = outLine
				}
				inLine++
				outLine++
				if inLine > queryTo {
					break hunkLines
				}
			case '-':
				wasLines = append(wasLines, text)
				if queryFrom == inLine {
					newFrom = outLine
				}
				if queryTo == inLine {
					newTo = outLine - 1
				}
				inLine++
			case '+':
				newLines = append(newLines, text)
				if queryTo <= inLine {
					newTo = outLine
				}
				outLine++
			}
		}

		nowParts = append(nowParts, pySlice(newLines, newFrom-h.newStart, newTo-h.newStart))
		wasParts = append(wasParts, pySlice(wasLines, queryFrom-h.oldStart, queryTo-h.oldStart))

		if queryTo >= h.oldStart+h.oldCount {
			newTo = queryTo + shift
		}
	}

	now := strings.Join(nowParts, "...")
	was := strings.Join(wasParts, "...")

	result := Result{NewFrom: newFrom, NewTo: newTo, Was: was, Now: now, queryFrom: queryFrom, queryTo: queryTo}
	if newFrom > newTo {
		result.LinesDeleted = true
	}

	unmoved := !result.LinesDeleted && newFrom == queryFrom && newTo == queryTo
	switch {
	case unmoved && was == now:
		result.Classification = NoChange
	case was == now:
		result.Classification = LinesMoved
	default:
		result.Classification = ContentChanged
	}
	return result, nil
}

// pySlice reproduces the Python slice `list[start if start > 0 else None :
// end+1 if end < len(list) else None]` joined with "\n" — a negative or
// zero start clamps to the front of the list, and an end at or past the
// list's length clamps to its back.
func pySlice(lines []string, start, end int) string {
	lo := 0
	if start > 0 {
		lo = start
	}
	hi := len(lines)
	if end < len(lines) {
		hi = end + 1
	}
	if lo > len(lines) {
		lo = len(lines)
	}
	if hi < lo {
		hi = lo
	}
	return strings.Join(lines[lo:hi], "\n")
}

func parseHunks(diffText string) ([]hunk, error) {
	locs := hunkHeaderPattern.FindAllStringSubmatchIndex(diffText, -1)
	if locs == nil {
		return nil, nil
	}

	hunks := make([]hunk, 0, len(locs))
	for i, loc := range locs {
		oldStart, err := atoiRange(diffText, loc[2], loc[3])
		if err != nil {
			return nil, err
		}
		oldCount, err := atoiRange(diffText, loc[4], loc[5])
		if err != nil {
			return nil, err
		}
		newStart, err := atoiRange(diffText, loc[6], loc[7])
		if err != nil {
			return nil, err
		}
		newCount := 0
		if loc[8] != -1 {
			newCount, err = atoiRange(diffText, loc[8], loc[9])
			if err != nil {
				return nil, err
			}
		}

		contentStart := loc[1]
		contentEnd := len(diffText)
		if i+1 < len(locs) {
			contentEnd = locs[i+1][0]
		}
		content := diffText[contentStart:contentEnd]
		lines := strings.Split(content, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		hunks = append(hunks, hunk{
			oldStart: oldStart, oldCount: oldCount,
			newStart: newStart, newCount: newCount,
			lines: lines,
		})
	}
	return hunks, nil
}

func atoiRange(s string, from, to int) (int, error) {
	if from < 0 || to < 0 {
		return 0, fmt.Errorf("diffinterp: malformed hunk header in %q", s)
	}
	return strconv.Atoi(s[from:to])
}
