package retrieval_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bylawhq/bylaw/pkg/retrieval"
)

// axisEmbedder maps known texts onto fixed small vectors so nearest-neighbor
// results are predictable without a real embedding model.
type axisEmbedder struct {
	vectors map[string][]float32
	fallbak []float32
}

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.fallbak, nil
}

var _ = Describe("SQLiteVecStore", func() {
	var (
		ctx      context.Context
		store    *retrieval.SQLiteVecStore
		embedder *axisEmbedder
	)

	const (
		exitText  = "Every floor area shall be served by at least two exits."
		guardText = "Guards shall be not less than 1070 mm high."
		stairText = "Stair risers shall not exceed 200 mm."
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = &axisEmbedder{
			vectors: map[string][]float32{
				exitText:  {1, 0, 0, 0},
				guardText: {0, 1, 0, 0},
				stairText: {0, 0, 1, 0},
				"exits":   {0.9, 0.1, 0, 0},
				"guards":  {0.1, 0.9, 0, 0},
			},
			fallbak: []float32{0, 0, 0, 1},
		}

		var err error
		store, err = retrieval.NewSQLiteVecStore(":memory:", 4, embedder)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Seed(ctx, []retrieval.Chunk{
			{Text: exitText, SourceRef: "3.4.2"},
			{Text: guardText, SourceRef: "9.8.8"},
			{Text: stairText, SourceRef: "9.8.4"},
		})).To(Succeed())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	It("creates a file-backed store", func() {
		tmpDir := GinkgoT().TempDir()
		dbPath := filepath.Join(tmpDir, "chunks.db")

		s, err := retrieval.NewSQLiteVecStore(dbPath, 4, embedder)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns the nearest chunk first", func() {
		chunks, err := store.Retrieve(ctx, "exits", 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(chunks).NotTo(BeEmpty())
		Expect(chunks[0].Text).To(Equal(exitText))
		Expect(chunks[0].SourceRef).To(Equal("3.4.2"))
	})

	It("honors k", func() {
		chunks, err := store.Retrieve(ctx, "guards", 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(chunks).To(HaveLen(1))
		Expect(chunks[0].Text).To(Equal(guardText))
	})

	It("returns nothing for k <= 0", func() {
		chunks, err := store.Retrieve(ctx, "exits", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(BeEmpty())
	})

	It("skips duplicate text on seed", func() {
		Expect(store.Seed(ctx, []retrieval.Chunk{
			{Text: exitText, SourceRef: "again"},
		})).To(Succeed())

		n, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
	})
})
