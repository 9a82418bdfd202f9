package transcript_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bylawhq/bylaw/pkg/transcript"
)

var _ = Describe("Entry", func() {
	Context("first message of a conversation", func() {
		It("has a nil parent", func() {
			e := transcript.NewEntry("system", "you are a building code assistant", "m", nil)
			Expect(e.ParentHash).To(BeNil())
		})

		It("hashes identically for identical content", func() {
			a := transcript.NewEntry("user", "same question", "m", nil)
			b := transcript.NewEntry("user", "same question", "m", nil)
			Expect(a.Hash).To(Equal(b.Hash))
		})

		It("hashes differently for different content", func() {
			a := transcript.NewEntry("user", "question A", "m", nil)
			b := transcript.NewEntry("user", "question B", "m", nil)
			Expect(a.Hash).NotTo(Equal(b.Hash))
		})

		It("hashes differently for different roles", func() {
			a := transcript.NewEntry("user", "text", "m", nil)
			b := transcript.NewEntry("assistant", "text", "m", nil)
			Expect(a.Hash).NotTo(Equal(b.Hash))
		})
	})

	Context("chained messages", func() {
		It("links to the parent hash", func() {
			parent := transcript.NewEntry("user", "q", "m", nil)
			child := transcript.NewEntry("assistant", "a", "m", parent)

			Expect(child.ParentHash).NotTo(BeNil())
			Expect(*child.ParentHash).To(Equal(parent.Hash))
		})

		It("hashes differently under different parents", func() {
			p1 := transcript.NewEntry("user", "q1", "m", nil)
			p2 := transcript.NewEntry("user", "q2", "m", nil)

			c1 := transcript.NewEntry("assistant", "same reply", "m", p1)
			c2 := transcript.NewEntry("assistant", "same reply", "m", p2)
			Expect(c1.Hash).NotTo(Equal(c2.Hash))
		})
	})

	It("produces a valid SHA-256 hex string", func() {
		e := transcript.NewEntry("user", "q", "m", nil)
		Expect(e.Hash).To(HaveLen(64))
		Expect(e.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
	})
})
