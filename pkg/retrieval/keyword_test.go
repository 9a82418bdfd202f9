package retrieval_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bylawhq/bylaw/pkg/retrieval"
)

var _ = Describe("KeywordStore", func() {
	var (
		ctx   context.Context
		store *retrieval.KeywordStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = retrieval.NewKeywordStore([]retrieval.Chunk{
			{Text: "smoke alarms shall be installed in every dwelling unit", SourceRef: "9.10.19"},
			{Text: "carbon monoxide alarms near sleeping rooms", SourceRef: "9.33.4"},
			{Text: "plumbing vents shall terminate outdoors", SourceRef: "7.5.8"},
		})
	})

	It("ranks by term overlap", func() {
		chunks, err := store.Retrieve(ctx, "smoke alarms dwelling", 3)
		Expect(err).NotTo(HaveOccurred())

		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0].SourceRef).To(Equal("9.10.19"))
		Expect(chunks[1].SourceRef).To(Equal("9.33.4"))
	})

	It("omits chunks with no shared terms", func() {
		chunks, err := store.Retrieve(ctx, "zoning bylaws", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
	})

	It("truncates to k", func() {
		chunks, err := store.Retrieve(ctx, "alarms shall", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(1))
	})
})
