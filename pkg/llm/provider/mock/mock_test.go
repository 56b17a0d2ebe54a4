package mock_test

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/llm/provider/mock"
)

var _ = Describe("Responder", func() {
	It("always replies with one of the canned responses", func() {
		r := mock.NewResponder(nil)
		for range 50 {
			Expect(mock.Responses()).To(ContainElement(r.Reply()))
		}
	})

	It("is deterministic for a fixed source", func() {
		a := mock.NewResponder(rand.NewPCG(1, 2))
		b := mock.NewResponder(rand.NewPCG(1, 2))
		for range 20 {
			Expect(a.Reply()).To(Equal(b.Reply()))
		}
	})

	It("picks roughly uniformly over many trials", func() {
		r := mock.NewResponder(rand.NewPCG(42, 7))
		counts := map[string]int{}
		const trials = 30000
		for range trials {
			counts[r.Reply()]++
		}

		Expect(counts).To(HaveLen(3))
		for _, n := range counts {
			Expect(n).To(BeNumerically("~", trials/3, trials/20))
		}
	})

	It("returns a copy of the canned set", func() {
		responses := mock.Responses()
		responses[0] = "changed"
		Expect(mock.Responses()[0]).NotTo(Equal("changed"))
	})
})
