package xmlmodel

import "sort"

// propertiesTag is the bare (unnamespaced) tag the coArchi model uses for
// its key/value property children.
const propertiesTag = "properties"

// FindProperty returns the properties child with the given key, if present.
func FindProperty(root *Element, key string) (*Element, bool) {
	for _, c := range root.Children {
		if c.Tag != propertiesTag {
			continue
		}
		if v, ok := c.Get("key"); ok && v == key {
			return c, true
		}
	}
	return nil, false
}

// PropertyValue is a convenience over FindProperty for the common case of
// reading just the value, defaulting when absent.
func PropertyValue(root *Element, key, defaultValue string) string {
	if p, ok := FindProperty(root, key); ok {
		if v, ok := p.Get("value"); ok {
			return v
		}
	}
	return defaultValue
}

// UpsertProperty sets (creating if necessary) the properties child for key
// to value.
func UpsertProperty(root *Element, key, value string) {
	if p, ok := FindProperty(root, key); ok {
		p.Set("value", value)
		return
	}
	root.Children = append(root.Children, &Element{
		Tag: propertiesTag,
		Attrs: []Attr{
			{Name: "key", Value: key},
			{Name: "value", Value: value},
		},
	})
}

// SortChildren reorders root's direct children by (tag, key) so the on-disk
// form is diff-stable (§3 invariant 3). Children without a "key" attribute
// sort as if key were empty, placing them before same-tag keyed siblings.
func SortChildren(root *Element) {
	sort.SliceStable(root.Children, func(i, j int) bool {
		a, b := root.Children[i], root.Children[j]
		ak, _ := a.Get("key")
		bk, _ := b.Get("key")
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		return ak < bk
	})
}
