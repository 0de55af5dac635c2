package prefetch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kvcachesim/prefetch"
)

var _ = Describe("StreamPrefetcher", func() {
	var p *prefetch.StreamPrefetcher

	BeforeEach(func() {
		p = prefetch.NewStreamPrefetcher(2, 4, 2)
	})

	It("should stay idle-to-training on the first read with no burst", func() {
		Expect(p.Observe(10)).To(BeNil())
	})

	It("should not arm streaming on a single non-sequential follow-up", func() {
		p.Observe(10)
		Expect(p.Observe(50)).To(BeNil())
	})

	It("should arm streaming once the trigger count of sequential reads is met", func() {
		p.Observe(10)
		window := p.Observe(11)
		Expect(window).To(Equal([]uint64{12, 13, 14, 15}))
	})

	It("should keep topping up the window while streaming", func() {
		p.Observe(10)
		p.Observe(11) // arms streaming, last=11

		window := p.Observe(12)
		Expect(window).To(Equal([]uint64{13, 14, 15, 16}))
	})

	It("should disarm back to training on a gap and require retraining", func() {
		p.Observe(10)
		p.Observe(11) // streaming, last=11

		Expect(p.Observe(9999)).To(BeNil()) // gap disarms

		// one more sequential read is not yet enough to re-arm with trigger=2
		Expect(p.Observe(10000)).To(BeNil())

		window := p.Observe(10001)
		Expect(window).To(Equal([]uint64{10002, 10003, 10004, 10005}))
	})

	It("should not trigger on the first read a fresh prefetcher observes", func() {
		// Writes never reach Observe: the scheduler calls it for reads
		// only. A fresh prefetcher's first observation just seeds training.
		fresh := prefetch.NewStreamPrefetcher(2, 4, 2)
		Expect(fresh.Observe(0)).To(BeNil())
	})

	It("should expose its configured issue width", func() {
		Expect(p.IssueWidth()).To(Equal(2))
	})

	It("should never stream on the first read even with a trigger of 1", func() {
		immediate := prefetch.NewStreamPrefetcher(1, 3, 1)
		Expect(immediate.Observe(5)).To(BeNil())

		window := immediate.Observe(6)
		Expect(window).To(Equal([]uint64{7, 8, 9}))
	})

	It("should return no candidates when lookahead is zero", func() {
		noLookahead := prefetch.NewStreamPrefetcher(2, 0, 4)
		noLookahead.Observe(1)
		Expect(noLookahead.Observe(2)).To(BeEmpty())
	})
})
