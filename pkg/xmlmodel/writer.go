package xmlmodel

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// archimateTagPattern recognizes an element's fully-qualified archimate tag;
// only the document root matches it in practice, but the writer (like the
// source it is grounded on) checks every element rather than special-casing
// depth zero.
var archimateTagPattern = regexp.MustCompile(`^\{http://www\.archimatetool\.com/archimate\}(.+)$`)

const xsiNamespace = "{http://www.w3.org/2001/XMLSchema-instance}"

// Write serializes root in the model's fixed-form, human-reviewable
// serialization (§4.2): two-space-per-depth indentation, one attribute per
// line, xsi: prefix rewriting, and &quot;-escaped attribute values. This is
// not general XML marshaling — the exact whitespace is part of the contract
// reviewers diff against.
func Write(root *Element, w io.Writer) error {
	return writeElement(root, w, 0)
}

func writeElement(e *Element, w io.Writer, indent int) error {
	pad := strings.Repeat(" ", indent)

	tag := e.Tag
	isArchimate := false
	if m := archimateTagPattern.FindStringSubmatch(e.Tag); m != nil {
		tag = "archimate:" + m[1]
		isArchimate = true
	}

	if _, err := fmt.Fprintf(w, "%s<%s", pad, tag); err != nil {
		return err
	}

	if isArchimate {
		if _, err := fmt.Fprintf(w, "\n%s    xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\"\n%s    xmlns:archimate=\"http://www.archimatetool.com/archimate\"", pad, pad); err != nil {
			return err
		}
	}

	for _, a := range e.Attrs {
		name := a.Name
		// Namespace declarations come back from Parse as ordinary attributes;
		// the archimate root's two are written above, the rest are dropped.
		if name == "xmlns" || strings.HasPrefix(name, "{xmlns}") {
			continue
		}
		if strings.HasPrefix(name, xsiNamespace) {
			name = "xsi:" + strings.TrimPrefix(name, xsiNamespace)
		}
		if _, err := fmt.Fprintf(w, "\n%s    %s=%s", pad, name, escapeAttr(a.Value)); err != nil {
			return err
		}
	}

	if len(e.Children) == 0 {
		_, err := fmt.Fprint(w, "/>\n")
		return err
	}

	if _, err := fmt.Fprint(w, ">\n"); err != nil {
		return err
	}
	for _, c := range e.Children {
		if err := writeElement(c, w, indent+2); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</%s>\n", pad, tag)
	return err
}

// escapeAttr renders value as a double-quoted, XML-safe attribute literal.
func escapeAttr(value string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		"\"", "&quot;",
	)
	return "\"" + r.Replace(value) + "\""
}
