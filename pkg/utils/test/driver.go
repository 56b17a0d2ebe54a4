package testutils

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/merkle"
	"github.com/shamba-ai/shamba/pkg/storage"
)

func hashes(nodes []*merkle.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Hash)
	}
	return out
}

// DriverBehaviors registers the behaviors every storage.Driver must pass. Call it
// inside a Describe; newDriver is invoked once per test.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context

		prompt, answer, followUp, followAnswer, otherAnswer *merkle.Node
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()

		prompt = merkle.NewNode(NewTestBucket(llm.RoleUser, "hello"), nil, At(1))
		answer = merkle.NewNode(NewTestBucket(llm.RoleAssistant, "hi there"), prompt, At(2))
		followUp = merkle.NewNode(NewTestBucket(llm.RoleUser, "how green is it?"), answer, At(3))
		followAnswer = merkle.NewNode(NewTestBucket(llm.RoleAssistant, "very"), followUp, At(4))
		otherAnswer = merkle.NewNode(NewTestBucket(llm.RoleAssistant, "greetings"), prompt, At(5))
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	putAll := func(nodes ...*merkle.Node) {
		for _, n := range nodes {
			_, err := driver.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	Describe("Put", func() {
		It("reports new inserts and deduplicates by hash", func() {
			isNew, err := driver.Put(ctx, prompt)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			isNew, err = driver.Put(ctx, merkle.NewNode(prompt.Bucket, nil, At(9)))
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())
		})

		It("rejects nil nodes", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get and Has", func() {
		It("round-trips a stored node", func() {
			putAll(prompt, answer)

			got, err := driver.Get(ctx, answer.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Hash).To(Equal(answer.Hash))
			Expect(*got.ParentHash).To(Equal(prompt.Hash))
			Expect(got.Bucket).To(Equal(answer.Bucket))
			Expect(got.CreatedAt.Equal(answer.CreatedAt)).To(BeTrue())
			Expect(got.Verify()).To(BeTrue())

			ok, err := driver.Has(ctx, answer.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("returns ErrNotFound for unknown hashes", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(err).To(MatchError(storage.ErrNotFound{Hash: "missing"}))

			ok, err := driver.Has(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("traversal", func() {
		BeforeEach(func() {
			putAll(prompt, answer, followUp, followAnswer, otherAnswer)
		})

		It("lists every node oldest first", func() {
			nodes, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hashes(nodes)).To(Equal(hashes([]*merkle.Node{prompt, answer, followUp, followAnswer, otherAnswer})))
		})

		It("finds roots and leaves", func() {
			roots, err := driver.Roots(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hashes(roots)).To(Equal([]string{prompt.Hash}))

			leaves, err := driver.Leaves(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hashes(leaves)).To(Equal([]string{followAnswer.Hash, otherAnswer.Hash}))
		})

		It("lists children oldest first", func() {
			children, err := driver.Children(ctx, prompt.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(hashes(children)).To(Equal([]string{answer.Hash, otherAnswer.Hash}))

			children, err = driver.Children(ctx, followAnswer.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(children).To(BeEmpty())
		})

		It("walks ancestry from node to root", func() {
			path, err := driver.Ancestry(ctx, followAnswer.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(hashes(path)).To(Equal([]string{followAnswer.Hash, followUp.Hash, answer.Hash, prompt.Hash}))

			depth, err := driver.Depth(ctx, followAnswer.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(3))

			depth, err = driver.Depth(ctx, prompt.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(BeZero())
		})

		It("fails ancestry for unknown hashes", func() {
			_, err := driver.Ancestry(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("loads conversation trees", func() {
			tree, err := merkle.LoadTree(ctx, driver, prompt.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(tree.Size()).To(Equal(5))
			Expect(tree.Transcripts()).To(HaveLen(2))
		})
	})
}
