package diffinterp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archi-tools/inspector/pkg/diffinterp"
)

// boundaryDiff is the single hunk used throughout: three context lines, an
// insertion, a context line, a changed line (removal+addition), two
// removals, and a trailing context line.
const boundaryDiff = "@@ -2,8 +3,7 @@\n" +
	" line2\n" +
	" line3\n" +
	" line4\n" +
	"+ins\n" +
	" line5\n" +
	"-line6\n" +
	"+line6 changed\n" +
	"-line7\n" +
	"-line8\n" +
	" line9\n"

var _ = Describe("Interpret", func() {
	Context("a range entirely before any hunk", func() {
		It("classifies as NoChange", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 1, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.NoChange))
			Expect(result.Fragment()).To(Equal("L1"))
		})
	})

	Context("a single context line ahead of an insertion", func() {
		It("classifies as LinesMoved to L3", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 2, 2)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.LinesMoved))
			Expect(result.Fragment()).To(Equal("L3"))
			Expect(result.Was).To(Equal(result.Now))
		})
	})

	Context("the context line directly after the insertion", func() {
		It("classifies as LinesMoved to L7", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 5, 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.LinesMoved))
			Expect(result.Fragment()).To(Equal("L7"))
		})
	})

	Context("the changed line", func() {
		It("classifies as ContentChanged with the old and new text", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 6, 6)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.ContentChanged))
			Expect(result.Fragment()).To(Equal("L8"))
			Expect(result.Was).To(Equal("line6"))
			Expect(result.Now).To(Equal("line6 changed"))
		})
	})

	Context("a line that was removed outright", func() {
		It("classifies as ContentChanged with a deleted-marker fragment", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 7, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.ContentChanged))
			Expect(result.LinesDeleted).To(BeTrue())
			Expect(result.Fragment()).To(Equal("L7<-lines deleted"))
			Expect(result.Was).To(Equal("line7"))
			Expect(result.Now).To(BeEmpty())
		})
	})

	Context("the trailing context line", func() {
		It("classifies as NoChange", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 9, 9)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.NoChange))
			Expect(result.Fragment()).To(Equal("L9"))
		})
	})

	Context("a range spanning the insertion and the following context line", func() {
		It("classifies as LinesMoved to L3-7", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 2, 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.LinesMoved))
			Expect(result.Fragment()).To(Equal("L3-7"))
			Expect(result.Was).To(Equal(result.Now))
		})
	})

	Context("a range spanning the changed line", func() {
		It("classifies as ContentChanged to L3-8", func() {
			result, err := diffinterp.Interpret(boundaryDiff, 2, 6)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.ContentChanged))
			Expect(result.Fragment()).To(Equal("L3-8"))
			Expect(result.Was).To(Equal("line2\nline3\nline4\nline5\nline6"))
			Expect(result.Now).To(Equal("line2\nline3\nline4\nins\nline5\nline6 changed"))
		})
	})

	Context("a diff with no hunks", func() {
		It("treats the range as untouched", func() {
			result, err := diffinterp.Interpret("", 1, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.NoChange))
			Expect(result.NewFrom).To(Equal(1))
			Expect(result.NewTo).To(Equal(3))
		})
	})

	Context("multiple hunks, with the queried range after the first", func() {
		It("shifts the range by the first hunk before evaluating the second", func() {
			diff := "@@ -1,2 +1,2 @@\n" +
				" a\n" +
				"-b\n" +
				"+b2\n" +
				"@@ -20,2 +20,2 @@\n" +
				" x\n" +
				" y\n"
			result, err := diffinterp.Interpret(diff, 20, 21)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Classification).To(Equal(diffinterp.NoChange))
			Expect(result.Fragment()).To(Equal("L20-21"))
		})
	})
})

var _ = Describe("Classification", func() {
	It("stringifies for diagnostics", func() {
		Expect(diffinterp.NoChange.String()).To(Equal("NoChange"))
		Expect(diffinterp.LinesMoved.String()).To(Equal("LinesMoved"))
		Expect(diffinterp.ContentChanged.String()).To(Equal("ContentChanged"))
	})
})
