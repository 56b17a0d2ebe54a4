package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/eventstream"
	"github.com/shamba-ai/shamba/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		err := p.PublishTurn(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(p.Published()).To(BeZero())
	})

	It("counts accepted events", func() {
		Expect(p.PublishTurn(context.Background(), &eventstream.TurnPersistedEvent{})).To(Succeed())
		Expect(p.PublishTurn(context.Background(), &eventstream.TurnPersistedEvent{})).To(Succeed())
		Expect(p.Published()).To(Equal(int64(2)))
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
