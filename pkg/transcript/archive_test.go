package transcript_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bylawhq/bylaw/pkg/llm"
	"github.com/bylawhq/bylaw/pkg/transcript"
)

// Both archive drivers must satisfy the same behavior.
func describeArchive(name string, open func() transcript.Archive) bool {
	return Describe(name, func() {
		var (
			ctx     context.Context
			archive transcript.Archive
		)

		BeforeEach(func() {
			ctx = context.Background()
			archive = open()
		})

		AfterEach(func() {
			archive.Close()
		})

		It("stores and retrieves an entry", func() {
			e := transcript.NewEntry("user", "what is a fire separation", "m", nil)

			isNew, err := archive.Put(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			got, err := archive.Get(ctx, e.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal(e.Content))
			Expect(got.Role).To(Equal("user"))
		})

		It("deduplicates on second put", func() {
			e := transcript.NewEntry("user", "dup", "m", nil)

			isNew, err := archive.Put(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			isNew, err = archive.Put(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())

			all, err := archive.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("returns ErrNotFound for a missing hash", func() {
			_, err := archive.Get(ctx, "nope")
			Expect(err).To(BeAssignableToTypeOf(transcript.ErrNotFound{}))
		})

		It("reports existence with Has", func() {
			e := transcript.NewEntry("user", "here", "m", nil)
			_, err := archive.Put(ctx, e)
			Expect(err).NotTo(HaveOccurred())

			ok, err := archive.Has(ctx, e.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = archive.Has(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("finds conversation heads", func() {
			a := transcript.NewEntry("user", "q", "m", nil)
			b := transcript.NewEntry("assistant", "reply", "m", a)

			_, err := archive.Put(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			_, err = archive.Put(ctx, b)
			Expect(err).NotTo(HaveOccurred())

			heads, err := archive.Heads(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(heads).To(HaveLen(1))
			Expect(heads[0].Hash).To(Equal(b.Hash))
		})

		It("walks history in chronological order", func() {
			a := transcript.NewEntry("system", "sys", "m", nil)
			b := transcript.NewEntry("user", "q", "m", a)
			c := transcript.NewEntry("assistant", "reply", "m", b)
			for _, e := range []*transcript.Entry{a, b, c} {
				_, err := archive.Put(ctx, e)
				Expect(err).NotTo(HaveOccurred())
			}

			history, err := archive.History(ctx, c.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(3))
			Expect(history[0].Role).To(Equal("system"))
			Expect(history[2].Role).To(Equal("assistant"))
		})

		Describe("Record", func() {
			It("chains a conversation and returns the head", func() {
				msgs := []llm.Message{
					{Role: llm.RoleSystem, Content: "sys"},
					{Role: llm.RoleUser, Content: "q"},
					{Role: llm.RoleAssistant, Content: "a"},
				}

				head, err := transcript.Record(ctx, archive, "test-model", msgs)
				Expect(err).NotTo(HaveOccurred())
				Expect(head).NotTo(BeEmpty())

				history, err := archive.History(ctx, head)
				Expect(err).NotTo(HaveOccurred())
				Expect(history).To(HaveLen(3))
			})

			It("deduplicates a shared prefix across sessions", func() {
				base := []llm.Message{
					{Role: llm.RoleSystem, Content: "sys"},
					{Role: llm.RoleUser, Content: "q"},
				}

				_, err := transcript.Record(ctx, archive, "m",
					append(base[:2:2], llm.Message{Role: llm.RoleAssistant, Content: "reply one"}))
				Expect(err).NotTo(HaveOccurred())

				_, err = transcript.Record(ctx, archive, "m",
					append(base[:2:2], llm.Message{Role: llm.RoleAssistant, Content: "reply two"}))
				Expect(err).NotTo(HaveOccurred())

				// Two messages shared, two divergent replies.
				all, err := archive.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(4))

				heads, err := archive.Heads(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(heads).To(HaveLen(2))
			})

			It("returns an empty head for an empty conversation", func() {
				head, err := transcript.Record(ctx, archive, "m", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(head).To(BeEmpty())
			})
		})
	})
}

var _ = describeArchive("MemoryArchive", func() transcript.Archive {
	return transcript.NewMemoryArchive()
})

var _ = describeArchive("SQLiteArchive", func() transcript.Archive {
	a, err := transcript.NewSQLiteArchive(":memory:")
	Expect(err).NotTo(HaveOccurred())
	return a
})

var _ = Describe("SQLiteArchive files", func() {
	It("creates the database file on disk", func() {
		tmpDir := GinkgoT().TempDir()
		dbPath := filepath.Join(tmpDir, "transcripts.db")

		a, err := transcript.NewSQLiteArchive(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})
})
