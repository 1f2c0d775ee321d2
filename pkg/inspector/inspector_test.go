package inspector_test

import (
	"context"

	"github.com/go-logr/logr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archi-tools/inspector/pkg/inspector"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
	"github.com/archi-tools/inspector/pkg/xmlmodel"
)

// newEntity builds a minimal entity root carrying the given
// pwrt:inspector: properties, keyed by their bare suffix (e.g. "value-deps").
func newEntity(props map[string]string) *xmlmodel.Element {
	root := &xmlmodel.Element{Tag: "archimate:ArchimateElement"}
	for k, v := range props {
		xmlmodel.UpsertProperty(root, "pwrt:inspector:"+k, v)
	}
	return root
}

// stubResolver resolves every reference to a fixed ResolveResult, regardless
// of scheme or reference content.
type stubResolver struct {
	scheme string
	result resolver.ResolveResult
	err    error
}

func (s stubResolver) Scheme() string { return s.scheme }

func (s stubResolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	return s.result, s.err
}

// stubVersioningResolver adds a fixed Diff outcome and an optional underlying
// Resolve result used for the diff-outcome content-fallback path.
type stubVersioningResolver struct {
	stubResolver
	outcome resolver.DiffOutcome
}

func (s stubVersioningResolver) Diff(ctx context.Context, ref refurl.Reference) (resolver.DiffOutcome, error) {
	return s.outcome, nil
}

// notCalledResolver fails the test if Resolve or Diff is ever invoked, used
// to assert a locked entity never dispatches to a resolver.
type notCalledResolver struct {
	scheme string
}

func (n notCalledResolver) Scheme() string { return n.scheme }

func (n notCalledResolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	Fail("Resolve should not be called on a locked entity")
	return nil, nil
}

func (n notCalledResolver) Diff(ctx context.Context, ref refurl.Reference) (resolver.DiffOutcome, error) {
	Fail("Diff should not be called on a locked entity")
	return nil, nil
}

var _ = Describe("Engine.Inspect", func() {
	var (
		ctx context.Context
		reg *resolver.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		reg = resolver.NewRegistry()
	})

	Context("an entity with no dependency or value-ref properties", func() {
		It("reports no change and leaves the entity untouched", func() {
			root := newEntity(nil)
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
			Expect(root.Children).To(BeEmpty())
		})
	})

	Context("a locked entity", func() {
		It("skips inspection without dispatching to any resolver", func() {
			reg.Register(notCalledResolver{scheme: "file"})
			root := newEntity(map[string]string{
				"value-deps":               "file://repo/a.txt",
				"value-requires-reviewing": "true",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})
	})

	Context("an unpinned dependency inspected for the first time", func() {
		It("records the computed content hash and flags the entity for review", func() {
			reg.Register(stubResolver{
				scheme: "file",
				result: resolver.Content{Bytes: []byte("fakecontent")},
			})
			root := newEntity(map[string]string{
				"value-deps": "file://repo/a.txt",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-deps-hashes", "")).To(Equal("d5683b61"))
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-requires-reviewing", "")).To(Equal("true"))
		})
	})

	Context("a pinned dependency whose lines moved but content is unchanged", func() {
		It("advances the pin without flagging for review", func() {
			reg.Register(stubVersioningResolver{
				stubResolver: stubResolver{scheme: "gitlab"},
				outcome: resolver.LinesMoved{
					UpdatedURL:          "gitlab://group/proj/path/a.txt@22222222#L10",
					CurrentLinesContent: "line10",
				},
			})
			root := newEntity(map[string]string{
				"value-deps": "gitlab://group/proj/path/a.txt@11111111#L5",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-deps", "")).
				To(Equal("gitlab://group/proj/path/a.txt@22222222#L10"))
			_, locked := xmlmodel.FindProperty(root, "pwrt:inspector:value-requires-reviewing")
			Expect(locked).To(BeFalse())
		})
	})

	Context("a pinned dependency whose content changed", func() {
		It("advances the pin and flags the entity for review", func() {
			reg.Register(stubVersioningResolver{
				stubResolver: stubResolver{scheme: "gitlab"},
				outcome: resolver.ContentChanged{
					UpdatedURL:          "gitlab://group/proj/path/a.txt@22222222#L5",
					CurrentLinesContent: "new line5",
					WasLinesContent:     "line5",
				},
			})
			root := newEntity(map[string]string{
				"value-deps": "gitlab://group/proj/path/a.txt@11111111#L5",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-deps", "")).
				To(Equal("gitlab://group/proj/path/a.txt@22222222#L5"))
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-requires-reviewing", "")).To(Equal("true"))
		})
	})

	Context("a value-ref pinned at a commit whose content changed", func() {
		It("re-extracts through the capture expression and records value-new", func() {
			reg.Register(stubVersioningResolver{
				stubResolver: stubResolver{scheme: "gitlab"},
				outcome: resolver.ContentChanged{
					UpdatedURL:          "gitlab://group/proj/path/a.txt@22222222#L3",
					CurrentLinesContent: "xyz123newvalue456abc",
					WasLinesContent:     "xyz123knownvalue456abc",
				},
			})
			root := newEntity(map[string]string{
				"value-ref":    "gitlab://group/proj/path/a.txt@11111111#L3",
				"value-regexp": "123([a-z]+)456",
				"value":        "knownvalue",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-ref", "")).
				To(Equal("gitlab://group/proj/path/a.txt@22222222#L3"))
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-new", "")).To(Equal("newvalue"))
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-requires-reviewing", "")).To(Equal("true"))
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value", "")).To(Equal("knownvalue"))
		})
	})

	Context("a value-ref resolved through a non-versioning scheme", func() {
		It("flags for review when the extracted value differs from the known value", func() {
			reg.Register(stubResolver{
				scheme: "https",
				result: resolver.Content{Bytes: []byte("xyz123newvalue456abc")},
			})
			root := newEntity(map[string]string{
				"value-ref":    "https://example.com/a.txt",
				"value-regexp": "123([a-z]+)456",
				"value":        "knownvalue",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-new", "")).To(Equal("newvalue"))
			Expect(xmlmodel.PropertyValue(root, "pwrt:inspector:value-requires-reviewing", "")).To(Equal("true"))
		})

		It("reports no change when the extracted value matches the known value", func() {
			reg.Register(stubResolver{
				scheme: "https",
				result: resolver.Content{Bytes: []byte("xyz123knownvalue456abc")},
			})
			root := newEntity(map[string]string{
				"value-ref":    "https://example.com/a.txt",
				"value-regexp": "123([a-z]+)456",
				"value":        "knownvalue",
			})
			eng := inspector.New(reg, logr.Discard())

			changed, err := eng.Inspect(ctx, root)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
			_, hasNew := xmlmodel.FindProperty(root, "pwrt:inspector:value-new")
			Expect(hasNew).To(BeFalse())
		})
	})

	Context("idempotence", func() {
		It("leaves an already-settled entity unchanged on a second inspection", func() {
			reg.Register(stubResolver{
				scheme: "https",
				result: resolver.Content{Bytes: []byte("xyz123knownvalue456abc")},
			})
			root := newEntity(map[string]string{
				"value-ref":    "https://example.com/a.txt",
				"value-regexp": "123([a-z]+)456",
				"value":        "knownvalue",
			})
			eng := inspector.New(reg, logr.Discard())

			_, err := eng.Inspect(ctx, root)
			Expect(err).NotTo(HaveOccurred())

			changed, err := eng.Inspect(ctx, root)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})
	})
})
