package retrieval_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bylawhq/bylaw/pkg/retrieval"
	"github.com/bylawhq/bylaw/pkg/tokenizer"
)

var _ = Describe("Aggregate", func() {
	counter := tokenizer.NewHeuristic()

	It("returns a zero context for no candidates", func() {
		agg := retrieval.Aggregate(counter, nil)

		Expect(agg.Chunks).To(BeEmpty())
		Expect(agg.Text).To(BeEmpty())
		Expect(agg.Tokens).To(BeZero())
	})

	It("dedupes identical text, first occurrence wins", func() {
		chunks := []retrieval.Chunk{
			{Text: "Section 3.2.2 applies to all occupancies.", SourceRef: "3.2.2"},
			{Text: "Fire separations shall be continuous.", SourceRef: "3.1.8"},
			{Text: "Section 3.2.2 applies to all occupancies.", SourceRef: "dup"},
		}

		agg := retrieval.Aggregate(counter, chunks)

		Expect(agg.Chunks).To(HaveLen(2))
		// First occurrence keeps its source ref.
		Expect(agg.Chunks[0].SourceRef).To(Equal("3.2.2"))
		Expect(agg.Chunks[1].SourceRef).To(Equal("3.1.8"))
	})

	It("counts deduplicated text exactly once", func() {
		text := "Guards shall be not less than 1070 mm high."
		agg := retrieval.Aggregate(counter, []retrieval.Chunk{
			{Text: text}, {Text: text},
		})

		Expect(agg.Tokens).To(Equal(counter.Count(text)))
	})

	It("preserves order among survivors", func() {
		agg := retrieval.Aggregate(counter, []retrieval.Chunk{
			{Text: "first"}, {Text: "second"}, {Text: "first"}, {Text: "third"},
		})

		texts := []string{agg.Chunks[0].Text, agg.Chunks[1].Text, agg.Chunks[2].Text}
		Expect(texts).To(Equal([]string{"first", "second", "third"}))
	})

	It("joins surviving texts with blank lines", func() {
		agg := retrieval.Aggregate(counter, []retrieval.Chunk{
			{Text: "alpha"}, {Text: "beta"},
		})

		Expect(agg.Text).To(Equal("alpha\n\nbeta"))
	})

	It("sums token counts over survivors", func() {
		a := "Exit doors shall swing in the direction of travel."
		b := "Every floor area shall be served by at least two exits."
		agg := retrieval.Aggregate(counter, []retrieval.Chunk{
			{Text: a}, {Text: b}, {Text: a},
		})

		Expect(agg.Tokens).To(Equal(counter.Count(a) + counter.Count(b)))
	})
})
